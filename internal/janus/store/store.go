package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

// MemberStore is the membership side of the persistence collaborator.
type MemberStore interface {
	// FindWithAttendanceCount returns the member and the number of
	// attendance rows recorded for it, or ErrNotFound.
	FindWithAttendanceCount(ctx context.Context, id int64) (*MemberRecord, error)
	ListMembers(ctx context.Context) ([]MemberRecord, error)
	CreateMember(ctx context.Context, rec MemberRecord) (*MemberRecord, error)
	UpdateMembership(ctx context.Context, id int64, upd MembershipUpdate) (*MemberRecord, error)
	// LatestMemberID returns the highest member id, or 0 when there are none.
	LatestMemberID(ctx context.Context) (int64, error)
}

// AttendanceStore persists check-ins as an append-only log.
type AttendanceStore interface {
	AppendAttendance(ctx context.Context, memberID int64, at time.Time) error
	AttendanceReport(ctx context.Context, q ReportQuery) (*Report, error)
	PruneAttendanceOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Store bundles both halves; every backend implements it.
type Store interface {
	MemberStore
	AttendanceStore
}
