package types

import "time"

type VerdictStatus string

const (
	VerdictValid   VerdictStatus = "valid"
	VerdictInvalid VerdictStatus = "invalid"
)

// Rejection reasons carried by invalid verdicts.
const (
	ReasonUnknownMember        = "unknown_member"
	ReasonInactive             = "inactive"
	ReasonMembershipExpired    = "membership_expired"
	ReasonMembershipNotStarted = "membership_not_started"
)

// Identity is what the kiosk shows for an entitled member.
type Identity struct {
	SubjectID       int64      `json:"id"`
	DisplayName     string     `json:"name"`
	ScannedAt       time.Time  `json:"identify_timestamp"`
	AttendanceCount int64      `json:"attendance_count"`
	MembershipStart *time.Time `json:"membership_start_at"`
	MembershipEnd   *time.Time `json:"membership_end_at"`
	Remark          string     `json:"remark,omitempty"`
}

// Verdict is the classified outcome of one accepted scan.  Identity is set
// only when Status is VerdictValid; Reason only when it is VerdictInvalid.
type Verdict struct {
	Status    VerdictStatus
	Reason    string
	ScannedAt time.Time
	Identity  *Identity
}

func ValidVerdict(id Identity) Verdict {
	return Verdict{Status: VerdictValid, ScannedAt: id.ScannedAt, Identity: &id}
}

func InvalidVerdict(scannedAt time.Time, reason string) Verdict {
	return Verdict{Status: VerdictInvalid, Reason: reason, ScannedAt: scannedAt}
}

func (v Verdict) IsValid() bool { return v.Status == VerdictValid }
