package service_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/service"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/store/memory"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
)

func newMemberService(t *testing.T, now time.Time) (*service.MemberService, *memory.Store, string) {
	t.Helper()
	st := memory.New()
	enrollments := filepath.Join(t.TempDir(), "fingerprint-db.txt")
	svc := service.NewMemberService(st, service.MemberServiceConfig{
		EnrollmentPath: enrollments,
		Location:       time.UTC,
		Now:            func() time.Time { return now },
	})
	return svc, st, enrollments
}

func TestMemberService_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newMemberService(t, baseTime)

	m, err := svc.Create(ctx, types.CreateMemberRequest{
		ID: 7, Name: "  Grace  ", Fingerprint: "tmpl-7",
		MembershipStart: "2025-03-01", MembershipEnd: "2025-03-31",
		Remark: "student",
	})
	require.NoError(t, err)
	assert.Equal(t, "Grace", m.Name)
	assert.True(t, m.Active)
	require.NotNil(t, m.MembershipStart)
	require.NotNil(t, m.MembershipEnd)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), *m.MembershipStart)
	assert.Equal(t, time.Date(2025, 3, 31, 23, 59, 59, int(999*time.Millisecond), time.UTC), *m.MembershipEnd,
		"a date-only end covers the whole day")

	got, err := svc.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, int64(0), got.AttendanceCount)
}

func TestMemberService_CreateValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newMemberService(t, baseTime)

	_, err := svc.Create(ctx, types.CreateMemberRequest{Name: "x", Fingerprint: "y"})
	assert.ErrorIs(t, err, service.ErrMissingFields)

	_, err = svc.Create(ctx, types.CreateMemberRequest{ID: 1, Fingerprint: "y"})
	assert.ErrorIs(t, err, service.ErrMissingFields)

	_, err = svc.Create(ctx, types.CreateMemberRequest{ID: 1, Name: "x", Fingerprint: "y", MembershipEnd: "31/03/2025"})
	assert.ErrorIs(t, err, service.ErrInvalidDate)

	_, err = svc.Create(ctx, types.CreateMemberRequest{ID: 1, Name: "x", Fingerprint: "y"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, types.CreateMemberRequest{ID: 1, Name: "x", Fingerprint: "y"})
	assert.ErrorIs(t, err, service.ErrMemberExists)
}

func TestMemberService_GetErrors(t *testing.T) {
	svc, _, _ := newMemberService(t, baseTime)

	_, err := svc.Get(context.Background(), 0)
	assert.ErrorIs(t, err, service.ErrInvalidMemberID)

	_, err = svc.Get(context.Background(), 404)
	assert.ErrorIs(t, err, service.ErrMemberNotFound)
}

func TestMemberService_Update(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newMemberService(t, baseTime)
	_, err := svc.Create(ctx, types.CreateMemberRequest{ID: 3, Name: "Linus", Fingerprint: "fp", MembershipEnd: "2025-01-01"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, 3, types.UpdateMemberRequest{})
	assert.ErrorIs(t, err, service.ErrActiveRequired)

	_, err = svc.Update(ctx, 99, types.UpdateMemberRequest{Active: ptr(true)})
	assert.ErrorIs(t, err, service.ErrMemberNotFound)

	m, err := svc.Update(ctx, 3, types.UpdateMemberRequest{Active: ptr(false), MembershipEnd: "2026-01-01T00:00:00Z"})
	require.NoError(t, err)
	assert.False(t, m.Active)
	require.NotNil(t, m.MembershipEnd)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), *m.MembershipEnd)
	assert.Nil(t, m.MembershipStart)
}

func TestMemberService_ManualAttendance(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newMemberService(t, baseTime)
	_, err := svc.Create(ctx, types.CreateMemberRequest{ID: 5, Name: "Ken", Fingerprint: "fp"})
	require.NoError(t, err)

	_, err = svc.RecordManualAttendance(ctx, 0)
	assert.ErrorIs(t, err, service.ErrInvalidMemberID)

	_, err = svc.RecordManualAttendance(ctx, 6)
	assert.ErrorIs(t, err, service.ErrMemberNotFound)

	resp, err := svc.RecordManualAttendance(ctx, 5)
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.Equal(t, int64(5), resp.MemberID)
	assert.Len(t, st.Attendances(), 1)
}

func TestMemberService_Report(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newMemberService(t, baseTime)

	_, err := svc.Create(ctx, types.CreateMemberRequest{ID: 1, Name: "Ada", Fingerprint: "fp"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, types.CreateMemberRequest{ID: 2, Name: "Grace", Fingerprint: "fp"})
	require.NoError(t, err)
	_, err = svc.Update(ctx, 2, types.UpdateMemberRequest{Active: ptr(false)})
	require.NoError(t, err)

	day := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	require.NoError(t, st.AppendAttendance(ctx, 1, day.Add(19*time.Hour+5*time.Minute)))
	require.NoError(t, st.AppendAttendance(ctx, 2, day.Add(7*time.Hour)))
	require.NoError(t, st.AppendAttendance(ctx, 1, day.Add(-time.Minute)))
	require.NoError(t, st.AppendAttendance(ctx, 1, day.Add(24*time.Hour)))

	rep, err := svc.Report(ctx, "2025-03-14")
	require.NoError(t, err)

	assert.Equal(t, "2025-03-14", rep.Date)
	assert.Equal(t, int64(1), rep.Stats.TotalMembers, "only active members count")
	assert.Equal(t, int64(2), rep.Stats.TodayAttendance)
	assert.Equal(t, int64(2), rep.Stats.NewMembersThisMonth)

	require.Len(t, rep.Attendances, 2)
	assert.Equal(t, "Grace", rep.Attendances[0].Name)
	assert.Equal(t, "07:00 AM", rep.Attendances[0].Time)
	assert.Equal(t, "Ada", rep.Attendances[1].Name)
	assert.Equal(t, "07:05 PM", rep.Attendances[1].Time)
	assert.Equal(t, int64(1), rep.Attendances[1].MemberID)

	_, err = svc.Report(ctx, "March 14")
	assert.ErrorIs(t, err, service.ErrInvalidDate)

	today, err := svc.Report(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-14", today.Date)
}

func TestMemberService_PendingEnrollments(t *testing.T) {
	ctx := context.Background()
	svc, _, path := newMemberService(t, baseTime)

	pending, err := svc.PendingEnrollments(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending, "missing file means nothing pending")

	require.NoError(t, os.WriteFile(path, []byte("1:::aaa\n2:::bbb\nnot-an-id:::ccc\n\n3:::ddd\n"), 0o644))
	_, err = svc.Create(ctx, types.CreateMemberRequest{ID: 1, Name: "Ada", Fingerprint: "aaa"})
	require.NoError(t, err)

	pending, err = svc.PendingEnrollments(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.PendingEnrollment{
		{ID: 2, Fingerprint: "bbb"},
		{ID: 3, Fingerprint: "ddd"},
	}, pending)
}
