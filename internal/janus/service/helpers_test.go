package service_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/scansource"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/service"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/store"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/store/memory"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
	"github.com/BrandonDHaskell/Janus/server/internal/metrics"
)

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock is a settable clock shared by every component under test.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// baseTime is an arbitrary fixed instant ("T" in the scenarios).
var baseTime = time.Date(2025, 3, 14, 18, 30, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func addMember(t *testing.T, st store.MemberStore, rec store.MemberRecord) {
	t.Helper()
	if rec.Name == "" {
		rec.Name = "Member"
	}
	if rec.Fingerprint == "" {
		rec.Fingerprint = "fp"
	}
	_, err := st.CreateMember(context.Background(), rec)
	require.NoError(t, err)
}

// failingMembers fails every lookup with err.
type failingMembers struct {
	store.MemberStore
	err error
}

func (f failingMembers) FindWithAttendanceCount(context.Context, int64) (*store.MemberRecord, error) {
	return nil, f.err
}

// harness wires a Reconciler to in-memory collaborators.
type harness struct {
	clock      *fakeClock
	store      *memory.Store
	source     *scansource.MemorySource
	recorder   *service.AttendanceRecorder
	reconciler *service.Reconciler
	metrics    *metrics.Metrics
	health     []bool
}

type harnessOption func(*harness, *service.ReconcilerDeps, *service.ReconcilerConfig)

func withMembers(ms store.MemberStore) harnessOption {
	return func(h *harness, d *service.ReconcilerDeps, _ *service.ReconcilerConfig) {
		d.Classifier = service.NewClassifier(ms, h.clock.Now)
	}
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	h := &harness{
		clock:   newFakeClock(baseTime),
		store:   memory.New(),
		source:  scansource.NewMemorySource(),
		metrics: metrics.New(),
	}
	h.recorder = service.NewAttendanceRecorder(h.store, service.RecorderConfig{
		Now: h.clock.Now,
	}, silentLogger(), h.metrics)

	deps := service.ReconcilerDeps{
		Source:     h.source,
		Classifier: service.NewClassifier(h.store, h.clock.Now),
		Recorder:   h.recorder,
		Logger:     silentLogger(),
		Metrics:    h.metrics,
	}
	cfg := service.ReconcilerConfig{
		Cadence:        time.Second,
		CaptureWindow:  10 * time.Second,
		UnhealthyAfter: 3,
		Now:            h.clock.Now,
		OnHealthChange: func(serving bool) { h.health = append(h.health, serving) },
	}
	for _, o := range opts {
		o(h, &deps, &cfg)
	}
	h.reconciler = service.NewReconciler(deps, cfg)
	t.Cleanup(h.recorder.Wait)
	return h
}

func (h *harness) scan(id int64, at time.Time) types.Scan {
	s := types.Scan{SubjectID: id, ScannedAt: at}
	_ = h.source.Write(context.Background(), s)
	return s
}

// tick runs one tick and waits for any attendance write it dispatched.
func (h *harness) tick() string {
	out := h.reconciler.Tick(context.Background())
	h.recorder.Wait()
	return out
}
