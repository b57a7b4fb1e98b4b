package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/service"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/store"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/store/memory"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
)

func TestClassifier(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(baseTime.Add(2 * time.Second))
	st := memory.New()

	addMember(t, st, store.MemberRecord{
		ID: 42, Name: "Ada", Active: true,
		MembershipStart: ptr(baseTime.AddDate(0, -1, 0)),
		MembershipEnd:   ptr(baseTime.AddDate(0, 1, 0)),
		Remark:          "locker 12",
	})
	addMember(t, st, store.MemberRecord{ID: 43, Active: true, MembershipEnd: ptr(baseTime.AddDate(0, 0, -1))})
	addMember(t, st, store.MemberRecord{ID: 44, Active: true, MembershipStart: ptr(baseTime.AddDate(0, 0, 1))})
	addMember(t, st, store.MemberRecord{ID: 45, Active: false})
	addMember(t, st, store.MemberRecord{ID: 46, Name: "Open Ended", Active: true})

	for i := 0; i < 3; i++ {
		require.NoError(t, st.AppendAttendance(ctx, 42, baseTime.AddDate(0, 0, -i-1)))
	}

	c := service.NewClassifier(st, clock.Now)
	scan := func(id int64) types.Scan { return types.Scan{SubjectID: id, ScannedAt: baseTime} }

	t.Run("valid member shows prior count plus one", func(t *testing.T) {
		v, err := c.Classify(ctx, scan(42))
		require.NoError(t, err)
		require.True(t, v.IsValid())
		require.NotNil(t, v.Identity)
		assert.Equal(t, int64(42), v.Identity.SubjectID)
		assert.Equal(t, "Ada", v.Identity.DisplayName)
		assert.Equal(t, int64(4), v.Identity.AttendanceCount)
		assert.Equal(t, "locker 12", v.Identity.Remark)
		assert.True(t, v.Identity.ScannedAt.Equal(baseTime))
		assert.True(t, v.ScannedAt.Equal(baseTime))
	})

	t.Run("unbounded membership is valid", func(t *testing.T) {
		v, err := c.Classify(ctx, scan(46))
		require.NoError(t, err)
		assert.True(t, v.IsValid())
		assert.Equal(t, int64(1), v.Identity.AttendanceCount)
	})

	invalid := []struct {
		name   string
		id     int64
		reason string
	}{
		{"unknown member", 999, types.ReasonUnknownMember},
		{"expired yesterday", 43, types.ReasonMembershipExpired},
		{"starts tomorrow", 44, types.ReasonMembershipNotStarted},
		{"deactivated", 45, types.ReasonInactive},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			v, err := c.Classify(ctx, scan(tt.id))
			require.NoError(t, err)
			assert.False(t, v.IsValid())
			assert.Equal(t, tt.reason, v.Reason)
			assert.Nil(t, v.Identity)
			assert.True(t, v.ScannedAt.Equal(baseTime))
		})
	}
}

func TestClassifier_UsesWallClockNotScanTime(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	end := baseTime.Add(time.Second)
	addMember(t, st, store.MemberRecord{ID: 42, Active: true, MembershipEnd: &end})

	clock := newFakeClock(baseTime.Add(2 * time.Second))
	c := service.NewClassifier(st, clock.Now)

	// Captured before the end, classified after it.
	v, err := c.Classify(ctx, types.Scan{SubjectID: 42, ScannedAt: baseTime})
	require.NoError(t, err)
	assert.Equal(t, types.ReasonMembershipExpired, v.Reason)
}

func TestClassifier_StoreFailureIsAnError(t *testing.T) {
	boom := errors.New("connection refused")
	c := service.NewClassifier(failingMembers{err: boom}, nil)

	_, err := c.Classify(context.Background(), types.Scan{SubjectID: 42, ScannedAt: baseTime})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}
