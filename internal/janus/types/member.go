package types

import "time"

// CreateMemberRequest mirrors the enrollment form posted by the front desk.
// Dates are YYYY-MM-DD.
type CreateMemberRequest struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Fingerprint     string `json:"fingerprint"`
	PhoneNumber     string `json:"phone_number,omitempty"`
	MembershipStart string `json:"membership_start_at,omitempty"`
	MembershipEnd   string `json:"membership_end_at,omitempty"`
	Remark          string `json:"remark,omitempty"`
}

// UpdateMemberRequest toggles a member on or off and optionally replaces the
// membership window.  Active is a pointer so a missing field is rejected.
type UpdateMemberRequest struct {
	Active          *bool  `json:"active"`
	MembershipStart string `json:"membership_start_at,omitempty"`
	MembershipEnd   string `json:"membership_end_at,omitempty"`
}

type AttendanceRequest struct {
	MemberID int64 `json:"member_id"`
}

type AttendanceResponse struct {
	OK         bool   `json:"ok"`
	MemberID   int64  `json:"member_id"`
	ServerTime string `json:"server_time"`
}

// PendingEnrollment is a fingerprint the reader has enrolled that has no
// member row yet.
type PendingEnrollment struct {
	ID          int64  `json:"id"`
	Fingerprint string `json:"fingerprint"`
}

// Member is the API view of a member.  The fingerprint template is never
// returned.
type Member struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	PhoneNumber     string     `json:"phone_number,omitempty"`
	Active          bool       `json:"active"`
	AttendanceCount int64      `json:"attendance_count"`
	MembershipStart *time.Time `json:"membership_start_at,omitempty"`
	MembershipEnd   *time.Time `json:"membership_end_at,omitempty"`
	Remark          string     `json:"remark,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type ReportStats struct {
	TotalMembers        int64 `json:"total_members"`
	TodayAttendance     int64 `json:"today_attendance"`
	NewMembersThisMonth int64 `json:"new_members_this_month"`
}

// ReportEntry is one check-in on the report day.  Time is the local
// wall-clock time, for example "07:05 PM".
type ReportEntry struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Time     string `json:"time"`
	MemberID int64  `json:"member_id"`
}

type AttendanceReport struct {
	Date        string        `json:"date"`
	Stats       ReportStats   `json:"stats"`
	Attendances []ReportEntry `json:"attendance_list"`
}
