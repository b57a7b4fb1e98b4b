package store

import "time"

type AttendanceRecord struct {
	ID         int64
	MemberID   int64
	MemberName string
	CreatedAt  time.Time
}

// ReportQuery bounds a daily attendance report.  DayEnd is exclusive.
type ReportQuery struct {
	DayStart   time.Time
	DayEnd     time.Time
	MonthStart time.Time
}

type ReportStats struct {
	TotalMembers        int64
	TodayAttendance     int64
	NewMembersThisMonth int64
}

type Report struct {
	Stats       ReportStats
	Attendances []AttendanceRecord // ascending by CreatedAt
}
