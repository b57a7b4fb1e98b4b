package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/scansource"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/store"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
)

var (
	ErrInvalidMemberID = errors.New("invalid member id")
	ErrMemberNotFound  = errors.New("member not found")
	ErrMemberExists    = errors.New("member already exists")
	ErrMissingFields   = errors.New("missing required fields: name, fingerprint, or id")
	ErrActiveRequired  = errors.New("active status must be a boolean")
	ErrInvalidDate     = errors.New("dates must be YYYY-MM-DD or RFC 3339")
)

const (
	dateLayout       = "2006-01-02"
	reportTimeLayout = "03:04 PM"
)

// MemberService backs the front-desk API: enrollment, membership edits,
// manual check-ins and the daily report.
type MemberService struct {
	store          store.Store
	enrollmentPath string
	loc            *time.Location
	now            func() time.Time
}

type MemberServiceConfig struct {
	// EnrollmentPath is the reader's "id:::fingerprint" template file.
	EnrollmentPath string

	// Location is used for date-only inputs and report day boundaries.
	// Defaults to UTC.
	Location *time.Location

	Now func() time.Time
}

func NewMemberService(st store.Store, cfg MemberServiceConfig) *MemberService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &MemberService{
		store:          st,
		enrollmentPath: cfg.EnrollmentPath,
		loc:            cfg.Location,
		now:            cfg.Now,
	}
}

func (s *MemberService) List(ctx context.Context) ([]types.Member, error) {
	recs, err := s.store.ListMembers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]types.Member, 0, len(recs))
	for _, r := range recs {
		out = append(out, toMember(r))
	}
	return out, nil
}

func (s *MemberService) Get(ctx context.Context, id int64) (types.Member, error) {
	if id <= 0 {
		return types.Member{}, ErrInvalidMemberID
	}
	rec, err := s.store.FindWithAttendanceCount(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return types.Member{}, ErrMemberNotFound
	}
	if err != nil {
		return types.Member{}, err
	}
	return toMember(*rec), nil
}

// Create enrolls a new member.  New members start active.
func (s *MemberService) Create(ctx context.Context, req types.CreateMemberRequest) (types.Member, error) {
	name := strings.TrimSpace(req.Name)
	fingerprint := strings.TrimSpace(req.Fingerprint)
	if req.ID == 0 || name == "" || fingerprint == "" {
		return types.Member{}, ErrMissingFields
	}
	if req.ID < 0 {
		return types.Member{}, ErrInvalidMemberID
	}

	start, err := s.parseDate(req.MembershipStart, false)
	if err != nil {
		return types.Member{}, err
	}
	end, err := s.parseDate(req.MembershipEnd, true)
	if err != nil {
		return types.Member{}, err
	}

	now := s.now().UTC()
	rec, err := s.store.CreateMember(ctx, store.MemberRecord{
		ID:              req.ID,
		Name:            name,
		Fingerprint:     fingerprint,
		PhoneNumber:     strings.TrimSpace(req.PhoneNumber),
		Active:          true,
		MembershipStart: start,
		MembershipEnd:   end,
		Remark:          strings.TrimSpace(req.Remark),
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if errors.Is(err, store.ErrConflict) {
		return types.Member{}, ErrMemberExists
	}
	if err != nil {
		return types.Member{}, err
	}
	return toMember(*rec), nil
}

// Update replaces the active flag and membership window.  Omitted dates
// clear the corresponding bound.
func (s *MemberService) Update(ctx context.Context, id int64, req types.UpdateMemberRequest) (types.Member, error) {
	if id <= 0 {
		return types.Member{}, ErrInvalidMemberID
	}
	if req.Active == nil {
		return types.Member{}, ErrActiveRequired
	}

	start, err := s.parseDate(req.MembershipStart, false)
	if err != nil {
		return types.Member{}, err
	}
	end, err := s.parseDate(req.MembershipEnd, true)
	if err != nil {
		return types.Member{}, err
	}

	rec, err := s.store.UpdateMembership(ctx, id, store.MembershipUpdate{
		Active:          *req.Active,
		MembershipStart: start,
		MembershipEnd:   end,
		UpdatedAt:       s.now().UTC(),
	})
	if errors.Is(err, store.ErrNotFound) {
		return types.Member{}, ErrMemberNotFound
	}
	if err != nil {
		return types.Member{}, err
	}
	return toMember(*rec), nil
}

// RecordManualAttendance appends a check-in on behalf of the front desk.
// It bypasses the kiosk's entitlement checks.
func (s *MemberService) RecordManualAttendance(ctx context.Context, memberID int64) (types.AttendanceResponse, error) {
	if memberID <= 0 {
		return types.AttendanceResponse{}, ErrInvalidMemberID
	}
	now := s.now().UTC()
	err := s.store.AppendAttendance(ctx, memberID, now)
	if errors.Is(err, store.ErrNotFound) {
		return types.AttendanceResponse{}, ErrMemberNotFound
	}
	if err != nil {
		return types.AttendanceResponse{}, err
	}
	return types.AttendanceResponse{
		OK:         true,
		MemberID:   memberID,
		ServerTime: now.Format(time.RFC3339Nano),
	}, nil
}

// Report summarises one local day.  An empty date means today.
func (s *MemberService) Report(ctx context.Context, date string) (types.AttendanceReport, error) {
	day := s.now().In(s.loc)
	if strings.TrimSpace(date) != "" {
		d, err := time.ParseInLocation(dateLayout, strings.TrimSpace(date), s.loc)
		if err != nil {
			return types.AttendanceReport{}, ErrInvalidDate
		}
		day = d
	}

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, s.loc)
	q := store.ReportQuery{
		DayStart:   dayStart,
		DayEnd:     dayStart.AddDate(0, 0, 1),
		MonthStart: time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, s.loc),
	}
	rep, err := s.store.AttendanceReport(ctx, q)
	if err != nil {
		return types.AttendanceReport{}, err
	}

	out := types.AttendanceReport{
		Date: dayStart.Format(dateLayout),
		Stats: types.ReportStats{
			TotalMembers:        rep.Stats.TotalMembers,
			TodayAttendance:     rep.Stats.TodayAttendance,
			NewMembersThisMonth: rep.Stats.NewMembersThisMonth,
		},
		Attendances: make([]types.ReportEntry, 0, len(rep.Attendances)),
	}
	for _, a := range rep.Attendances {
		out.Attendances = append(out.Attendances, types.ReportEntry{
			ID:       a.ID,
			Name:     a.MemberName,
			Time:     a.CreatedAt.In(s.loc).Format(reportTimeLayout),
			MemberID: a.MemberID,
		})
	}
	return out, nil
}

// PendingEnrollments lists templates the reader has enrolled beyond the
// highest member id, i.e. fingerprints still waiting for a member record.
func (s *MemberService) PendingEnrollments(ctx context.Context) ([]types.PendingEnrollment, error) {
	entries, err := scansource.ReadEnrollments(s.enrollmentPath)
	if err != nil {
		return nil, err
	}
	latest, err := s.store.LatestMemberID(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]types.PendingEnrollment, 0, len(entries))
	for _, e := range entries {
		if e.ID > latest {
			out = append(out, e)
		}
	}
	return out, nil
}

// parseDate accepts YYYY-MM-DD in the service location or RFC 3339.  A
// date-only end bound covers the whole of that day.
func (s *MemberService) parseDate(v string, endOfDay bool) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.ParseInLocation(dateLayout, v, s.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, v)
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Millisecond)
	}
	t = t.UTC()
	return &t, nil
}

func toMember(r store.MemberRecord) types.Member {
	return types.Member{
		ID:              r.ID,
		Name:            r.Name,
		PhoneNumber:     r.PhoneNumber,
		Active:          r.Active,
		AttendanceCount: r.AttendanceCount,
		MembershipStart: r.MembershipStart,
		MembershipEnd:   r.MembershipEnd,
		Remark:          r.Remark,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}
