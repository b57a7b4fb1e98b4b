package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/store"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
	"github.com/BrandonDHaskell/Janus/server/internal/metrics"
)

const defaultAttendanceWriteTimeout = 5 * time.Second

// RecorderConfig holds the parameters for NewAttendanceRecorder.
type RecorderConfig struct {
	// CaptureWindow bounds how long a dispatched scan is remembered.  A scan
	// older than the window can never be accepted again, so forgetting it is
	// safe.
	CaptureWindow time.Duration

	// WriteTimeout caps a single attendance write.  Defaults to 5s.
	WriteTimeout time.Duration

	Now func() time.Time
}

// AttendanceRecorder appends attendance rows in the background.  A write
// never blocks the caller, is never retried, and a failure is only logged:
// the kiosk keeps showing the welcome screen either way.
type AttendanceRecorder struct {
	store   store.AttendanceStore
	logger  *slog.Logger
	metrics *metrics.Metrics
	window  time.Duration
	timeout time.Duration
	now     func() time.Time

	mu         sync.Mutex
	dispatched map[scanKey]time.Time

	inflight sync.WaitGroup
}

func NewAttendanceRecorder(st store.AttendanceStore, cfg RecorderConfig, logger *slog.Logger, m *metrics.Metrics) *AttendanceRecorder {
	if cfg.CaptureWindow <= 0 {
		cfg.CaptureWindow = DefaultCaptureWindow
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultAttendanceWriteTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.New()
	}
	return &AttendanceRecorder{
		store:      st,
		logger:     logger,
		metrics:    m,
		window:     cfg.CaptureWindow,
		timeout:    cfg.WriteTimeout,
		now:        cfg.Now,
		dispatched: make(map[scanKey]time.Time),
	}
}

// Record dispatches one attendance write for scan.SubjectID unless the same
// (subject, capture time) pair was already dispatched.  It reports whether a
// write was started.
//
// The write runs on a context detached from ctx's cancellation: stopping the
// loop or dismissing the screen does not abort a check-in already under way.
func (r *AttendanceRecorder) Record(ctx context.Context, scan types.Scan) bool {
	key := scanKey{subjectID: scan.SubjectID, scannedAtMs: scan.ScannedAt.UnixMilli()}
	now := r.now()

	r.mu.Lock()
	r.forgetExpiredLocked(now)
	if _, seen := r.dispatched[key]; seen {
		r.mu.Unlock()
		r.metrics.AttendanceWrites.WithLabelValues("duplicate").Inc()
		return false
	}
	r.dispatched[key] = scan.ScannedAt
	r.inflight.Add(1)
	r.mu.Unlock()

	dispatchID := uuid.NewString()
	go r.write(context.WithoutCancel(ctx), dispatchID, scan, now)
	return true
}

// Wait blocks until every dispatched write has finished.
func (r *AttendanceRecorder) Wait() {
	r.inflight.Wait()
}

func (r *AttendanceRecorder) write(ctx context.Context, dispatchID string, scan types.Scan, at time.Time) {
	defer r.inflight.Done()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.store.AppendAttendance(ctx, scan.SubjectID, at); err != nil {
		r.metrics.AttendanceWrites.WithLabelValues("failed").Inc()
		r.logger.Error("attendance write failed",
			"dispatch_id", dispatchID,
			"member_id", scan.SubjectID,
			"scanned_at", scan.ScannedAt,
			"error", err,
		)
		return
	}

	r.metrics.AttendanceWrites.WithLabelValues("ok").Inc()
	r.logger.Info("attendance recorded",
		"dispatch_id", dispatchID,
		"member_id", scan.SubjectID,
		"scanned_at", scan.ScannedAt,
	)
}

func (r *AttendanceRecorder) forgetExpiredLocked(now time.Time) {
	for k, scannedAt := range r.dispatched {
		if now.Sub(scannedAt) > r.window {
			delete(r.dispatched, k)
		}
	}
}

// scanKey identifies one physical scan at the slot's millisecond resolution.
type scanKey struct {
	subjectID   int64
	scannedAtMs int64
}
