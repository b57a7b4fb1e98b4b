package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/scansource"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
	"github.com/BrandonDHaskell/Janus/server/internal/metrics"
)

const (
	DefaultCadence        = time.Second
	defaultUnhealthyAfter = 5
)

// ReconcilerConfig holds the timing parameters of the loop.
type ReconcilerConfig struct {
	// Cadence is the polling interval.  Defaults to 1s.
	Cadence time.Duration

	// CaptureWindow is the freshness limit.  Defaults to 10s.  It should be
	// several cadences long so a few slow ticks never lose a scan.
	CaptureWindow time.Duration

	// UnhealthyAfter is how many consecutive failed slot reads flip the
	// source to not-serving.  Defaults to 5.
	UnhealthyAfter int

	Now func() time.Time

	// OnHealthChange, if set, is called whenever the scan source flips
	// between serving and not serving.
	OnHealthChange func(serving bool)
}

// Reconciler is the kiosk's polling state machine.  Every tick it reads the
// scan slot, drops stale and repeated reads, classifies genuinely new scans,
// fires attendance for valid ones, and publishes the result to Display.
type Reconciler struct {
	source     scansource.Source
	classifier *Classifier
	recorder   *AttendanceRecorder
	display    *Display
	logger     *slog.Logger
	metrics    *metrics.Metrics
	cfg        ReconcilerConfig

	// mu serialises ticks and Dismiss.  It is held across the store lookup
	// so no two ticks ever interleave their view of the state below.
	mu             sync.Mutex
	lastAccepted   *types.Scan
	lastVerdict    *types.Verdict
	readFailures   int
	healthReported bool
	serving        bool
}

// ReconcilerDeps are the collaborators of a Reconciler.
type ReconcilerDeps struct {
	Source     scansource.Source
	Classifier *Classifier
	Recorder   *AttendanceRecorder
	Display    *Display
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
}

func NewReconciler(d ReconcilerDeps, cfg ReconcilerConfig) *Reconciler {
	if cfg.Cadence <= 0 {
		cfg.Cadence = DefaultCadence
	}
	if cfg.CaptureWindow <= 0 {
		cfg.CaptureWindow = DefaultCaptureWindow
	}
	if cfg.UnhealthyAfter <= 0 {
		cfg.UnhealthyAfter = defaultUnhealthyAfter
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if d.Display == nil {
		d.Display = NewDisplay(cfg.Now)
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	return &Reconciler{
		source:     d.Source,
		classifier: d.Classifier,
		recorder:   d.Recorder,
		display:    d.Display,
		logger:     d.Logger,
		metrics:    d.Metrics,
		cfg:        cfg,
	}
}

func (r *Reconciler) Display() *Display { return r.display }

// Run ticks once immediately and then on every cadence until ctx is
// cancelled.  Ticks run on this goroutine only; a tick that overruns the
// cadence makes the ticker drop the missed beats rather than queue them.
func (r *Reconciler) Run(ctx context.Context) error {
	r.logger.Info("reconciler started",
		"cadence", r.cfg.Cadence.String(),
		"capture_window", r.cfg.CaptureWindow.String(),
	)

	r.Tick(ctx)

	ticker := time.NewTicker(r.cfg.Cadence)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return nil
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick runs one reconciliation step and returns the scan outcome (one of
// the metrics.Scan* values).
func (r *Reconciler) Tick(ctx context.Context) string {
	start := time.Now()
	r.metrics.Ticks.Inc()
	defer func() { r.metrics.TickDuration.Observe(time.Since(start).Seconds()) }()

	r.mu.Lock()
	defer r.mu.Unlock()

	outcome := r.tickLocked(ctx)
	r.metrics.Scans.WithLabelValues(outcome).Inc()
	return outcome
}

func (r *Reconciler) tickLocked(ctx context.Context) string {
	scan, err := r.source.Latest(ctx)
	switch {
	case errors.Is(err, scansource.ErrMalformedScan):
		// A garbled slot is treated like an empty one.
		r.noteSourceReadLocked(true)
		r.logger.Debug("ignoring malformed scan slot", "error", err)
		return metrics.ScanMalformed
	case err != nil:
		r.metrics.SourceReadErrors.Inc()
		r.noteSourceReadLocked(false)
		r.logger.Warn("scan slot read failed", "error", err)
		return metrics.ScanError
	}
	r.noteSourceReadLocked(true)

	if scan == nil {
		return metrics.ScanAbsent
	}
	if !Fresh(scan, r.cfg.Now(), r.cfg.CaptureWindow) {
		return metrics.ScanStale
	}
	if !IsNewEvent(r.lastAccepted, *scan, r.lastVerdict) {
		return metrics.ScanRepeat
	}

	verdict, err := r.classifier.Classify(ctx, *scan)
	if err != nil {
		// Leave the state alone so the next tick retries the same scan.
		r.metrics.ClassifyErrors.Inc()
		r.logger.Warn("entitlement lookup failed",
			"member_id", scan.SubjectID,
			"error", err,
		)
		return metrics.ScanError
	}

	accepted := *scan
	r.lastAccepted = &accepted
	r.lastVerdict = &verdict
	r.metrics.Verdicts.WithLabelValues(string(verdict.Status), verdict.Reason).Inc()

	if !verdict.IsValid() {
		r.logger.Info("scan rejected",
			"member_id", scan.SubjectID,
			"scanned_at", scan.ScannedAt,
			"reason", verdict.Reason,
		)
		r.display.reject(verdict.Reason)
		return metrics.ScanNew
	}

	r.logger.Info("member checked in",
		"member_id", scan.SubjectID,
		"scanned_at", scan.ScannedAt,
		"attendance_count", verdict.Identity.AttendanceCount,
	)
	r.recorder.Record(ctx, *scan)
	r.display.show(*verdict.Identity)
	return metrics.ScanNew
}

// Dismiss clears the screen.  The last accepted scan is kept so the same
// slot content, re-read after dismissal, is still recognised as old.
func (r *Reconciler) Dismiss() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastVerdict = nil
	r.display.clear()
}

// State returns copies of the last accepted scan and last verdict.
func (r *Reconciler) State() (*types.Scan, *types.Verdict) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var scan *types.Scan
	if r.lastAccepted != nil {
		s := *r.lastAccepted
		scan = &s
	}
	var verdict *types.Verdict
	if r.lastVerdict != nil {
		v := *r.lastVerdict
		verdict = &v
	}
	return scan, verdict
}

func (r *Reconciler) noteSourceReadLocked(ok bool) {
	if ok {
		r.readFailures = 0
		r.setServingLocked(true)
		return
	}
	r.readFailures++
	if r.readFailures >= r.cfg.UnhealthyAfter {
		r.setServingLocked(false)
	}
}

func (r *Reconciler) setServingLocked(serving bool) {
	if r.healthReported && r.serving == serving {
		return
	}
	r.healthReported = true
	r.serving = serving
	if !serving {
		r.logger.Error("scan source unavailable", "consecutive_failures", r.readFailures)
	}
	if r.cfg.OnHealthChange != nil {
		r.cfg.OnHealthChange(serving)
	}
}
