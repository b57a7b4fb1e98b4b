package httpapi

import (
	"errors"
	"math"
	"net/http"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/service"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
)

// Protobuf bodies use google.protobuf.Struct keyed exactly like the JSON
// bodies: same field names, and null where JSON has null, so kiosk clients
// can switch encodings without a schema change.

var errBadMemberID = errors.New("member_id must be an integer")

// ── Identity ─────────────────────────────────────────────────────────────────

func snapshotToProto(s service.Snapshot) (*structpb.Struct, error) {
	fields := map[string]any{
		"version":    float64(s.Version),
		"updated_at": formatTime(s.UpdatedAt),
		"valid":      nil,
		"identity":   nil,
	}
	if s.Valid != nil {
		fields["valid"] = *s.Valid
	}
	if s.Reason != "" {
		fields["reason"] = s.Reason
	}
	if s.Identity != nil {
		fields["identity"] = identityFields(*s.Identity)
	}
	return structpb.NewStruct(fields)
}

func identityFields(id types.Identity) map[string]any {
	out := map[string]any{
		"id":                  float64(id.SubjectID),
		"name":                id.DisplayName,
		"identify_timestamp":  formatTime(id.ScannedAt),
		"attendance_count":    float64(id.AttendanceCount),
		"membership_start_at": nil,
		"membership_end_at":   nil,
	}
	if id.MembershipStart != nil {
		out["membership_start_at"] = formatTime(*id.MembershipStart)
	}
	if id.MembershipEnd != nil {
		out["membership_end_at"] = formatTime(*id.MembershipEnd)
	}
	if id.Remark != "" {
		out["remark"] = id.Remark
	}
	return out
}

// ── Attendance ───────────────────────────────────────────────────────────────

func readAttendanceProto(r *http.Request) (types.AttendanceRequest, error) {
	var msg structpb.Struct
	if err := readProto(r, &msg); err != nil {
		return types.AttendanceRequest{}, err
	}

	v, ok := msg.GetFields()["member_id"]
	if !ok {
		return types.AttendanceRequest{}, nil
	}
	n := v.GetNumberValue()
	// int64(n) is undefined at or beyond ±2^63.
	if n != math.Trunc(n) || math.IsInf(n, 0) || math.Abs(n) >= 1<<63 {
		return types.AttendanceRequest{}, errBadMemberID
	}
	return types.AttendanceRequest{MemberID: int64(n)}, nil
}

func attendanceResponseToProto(resp types.AttendanceResponse) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"ok":          resp.OK,
		"member_id":   float64(resp.MemberID),
		"server_time": resp.ServerTime,
	})
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
