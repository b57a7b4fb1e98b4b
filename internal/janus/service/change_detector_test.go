package service_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/service"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
)

func TestIsNewEvent(t *testing.T) {
	prev := types.Scan{SubjectID: 42, ScannedAt: baseTime}
	valid := types.ValidVerdict(types.Identity{SubjectID: 42, ScannedAt: baseTime})
	invalid := types.InvalidVerdict(baseTime, types.ReasonMembershipExpired)

	tests := []struct {
		name        string
		prev        *types.Scan
		cur         types.Scan
		prevVerdict *types.Verdict
		want        bool
	}{
		{"first scan ever", nil, prev, nil, true},
		{"different subject", &prev, types.Scan{SubjectID: 7, ScannedAt: baseTime}, &valid, true},
		{"same subject new capture", &prev, types.Scan{SubjectID: 42, ScannedAt: baseTime.Add(time.Millisecond)}, &valid, true},
		{"repeat read after valid", &prev, prev, &valid, false},
		{"repeat read after dismissal", &prev, prev, nil, false},
		{"repeat read after invalid forces recheck", &prev, prev, &invalid, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, service.IsNewEvent(tt.prev, tt.cur, tt.prevVerdict))
		})
	}
}

func TestIsNewEvent_SameInstantDifferentLocation(t *testing.T) {
	prev := types.Scan{SubjectID: 42, ScannedAt: baseTime}
	cur := types.Scan{SubjectID: 42, ScannedAt: baseTime.In(time.FixedZone("UTC+8", 8*3600))}
	valid := types.ValidVerdict(types.Identity{SubjectID: 42})

	assert.False(t, service.IsNewEvent(&prev, cur, &valid))
}
