package service

import "github.com/BrandonDHaskell/Janus/server/internal/janus/types"

// IsNewEvent decides whether cur is a physical scan that has not been
// handled yet.  Polling re-reads the same slot every cadence, so this is the
// only thing standing between one finger press and a pile of attendance rows.
//
// A previous invalid verdict always forces a re-check of the same scan so a
// renewal made at the desk takes effect on the next poll.
func IsNewEvent(prev *types.Scan, cur types.Scan, prevVerdict *types.Verdict) bool {
	if prev == nil {
		return true
	}
	if cur.SubjectID != prev.SubjectID {
		return true
	}
	if !cur.ScannedAt.Equal(prev.ScannedAt) {
		return true
	}
	return prevVerdict != nil && prevVerdict.Status == types.VerdictInvalid
}
