package types

import "time"

// Scan is one biometric read as published by the reader: the matched subject
// and the instant the finger was captured.  The reader overwrites a single
// slot, so a Scan carries no sequence number and no delivery guarantee.
type Scan struct {
	SubjectID int64
	ScannedAt time.Time
}

// Same reports whether s and o describe the same physical scan.
func (s Scan) Same(o Scan) bool {
	return s.SubjectID == o.SubjectID && s.ScannedAt.Equal(o.ScannedAt)
}
