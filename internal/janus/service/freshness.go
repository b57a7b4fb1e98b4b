package service

import (
	"time"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
)

// DefaultCaptureWindow is how old a scan may be and still count as a
// check-in.  The slot is never cleared by the reader, so anything older is
// a leftover from a previous visitor.
const DefaultCaptureWindow = 10 * time.Second

// Fresh reports whether scan may be acted on at now.  Absent scans and scans
// without a capture time are never fresh.  Scans stamped slightly in the
// future (reader clock ahead of ours) are accepted.
func Fresh(scan *types.Scan, now time.Time, window time.Duration) bool {
	if scan == nil || scan.ScannedAt.IsZero() {
		return false
	}
	return now.Sub(scan.ScannedAt) <= window
}
