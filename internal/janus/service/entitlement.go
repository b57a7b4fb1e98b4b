package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/store"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
)

// Classifier turns a scanned subject into a valid or invalid verdict against
// the member's record and membership window.
type Classifier struct {
	members store.MemberStore
	now     func() time.Time
}

func NewClassifier(members store.MemberStore, now func() time.Time) *Classifier {
	if now == nil {
		now = time.Now
	}
	return &Classifier{members: members, now: now}
}

// Classify never reports an unknown or lapsed member as an error; those are
// invalid verdicts.  The error return is reserved for a store that could not
// be read at all.
//
// The window is checked against the current time, not the scan time: what
// matters is whether the member is entitled while standing at the kiosk.
func (c *Classifier) Classify(ctx context.Context, scan types.Scan) (types.Verdict, error) {
	m, err := c.members.FindWithAttendanceCount(ctx, scan.SubjectID)
	if errors.Is(err, store.ErrNotFound) {
		return types.InvalidVerdict(scan.ScannedAt, types.ReasonUnknownMember), nil
	}
	if err != nil {
		return types.Verdict{}, fmt.Errorf("lookup member %d: %w", scan.SubjectID, err)
	}

	now := c.now()
	switch {
	case !m.Active:
		return types.InvalidVerdict(scan.ScannedAt, types.ReasonInactive), nil
	case m.MembershipEnd != nil && now.After(*m.MembershipEnd):
		return types.InvalidVerdict(scan.ScannedAt, types.ReasonMembershipExpired), nil
	case m.MembershipStart != nil && now.Before(*m.MembershipStart):
		return types.InvalidVerdict(scan.ScannedAt, types.ReasonMembershipNotStarted), nil
	}

	// The count includes the visit about to be recorded so the screen is
	// right before the write lands.
	return types.ValidVerdict(types.Identity{
		SubjectID:       m.ID,
		DisplayName:     m.Name,
		ScannedAt:       scan.ScannedAt,
		AttendanceCount: m.AttendanceCount + 1,
		MembershipStart: m.MembershipStart,
		MembershipEnd:   m.MembershipEnd,
		Remark:          m.Remark,
	}), nil
}
