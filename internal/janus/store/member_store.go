package store

import "time"

type MemberRecord struct {
	ID              int64
	Name            string
	Fingerprint     string
	PhoneNumber     string
	Active          bool
	AttendanceCount int64
	MembershipStart *time.Time
	MembershipEnd   *time.Time
	Remark          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// MembershipUpdate replaces the active flag and the membership window.
// A nil bound clears it.
type MembershipUpdate struct {
	Active          bool
	MembershipStart *time.Time
	MembershipEnd   *time.Time
	UpdatedAt       time.Time
}
