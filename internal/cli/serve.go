package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/BrandonDHaskell/Janus/server/internal/config"
	"github.com/BrandonDHaskell/Janus/server/internal/grpcapi"
	"github.com/BrandonDHaskell/Janus/server/internal/httpapi"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/service"
	"github.com/BrandonDHaskell/Janus/server/internal/metrics"
)

const shutdownTimeout = 5 * time.Second

func NewServeCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the reconciliation loop and the HTTP and gRPC servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	logger := cfg.Logger(os.Stderr)
	loc, err := cfg.Location()
	if err != nil {
		return WrapExitError(ExitConfigError, "invalid configuration", err)
	}

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	src, closeSource, err := openScanSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSource()

	m := metrics.New()

	var grpcSrv *grpcapi.Server
	if cfg.GRPCAddr != "" {
		grpcSrv = grpcapi.NewServer(cfg.GRPCAddr, logger)
	}

	recorder := service.NewAttendanceRecorder(st, service.RecorderConfig{
		CaptureWindow: cfg.CaptureWindow,
		WriteTimeout:  cfg.AttendanceWriteLimit,
	}, logger, m)

	reconcilerCfg := service.ReconcilerConfig{
		Cadence:        cfg.Cadence,
		CaptureWindow:  cfg.CaptureWindow,
		UnhealthyAfter: cfg.UnhealthyAfter,
	}
	if grpcSrv != nil {
		reconcilerCfg.OnHealthChange = grpcSrv.SetScanSourceServing
	}
	reconciler := service.NewReconciler(service.ReconcilerDeps{
		Source:     src,
		Classifier: service.NewClassifier(st, nil),
		Recorder:   recorder,
		Logger:     logger,
		Metrics:    m,
	}, reconcilerCfg)

	members := service.NewMemberService(st, service.MemberServiceConfig{
		EnrollmentPath: cfg.EnrollmentFilePath,
		Location:       loc,
	})

	pruner := service.NewAttendancePruner(st, service.PrunerConfig{
		RetentionDays: cfg.AttendanceRetentionDays,
		Interval:      cfg.PruneInterval,
	}, logger, m)

	httpSrv := httpapi.NewServer(httpapi.Dependencies{
		Logger:        logger,
		Addr:          cfg.HTTPAddr,
		Reconciler:    reconciler,
		MemberService: members,
		Metrics:       m,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return reconciler.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if grpcSrv != nil {
		g.Go(grpcSrv.Serve)
	}

	pruner.Start(gctx)

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
		if grpcSrv != nil {
			grpcSrv.Stop()
		}
		pruner.Stop()
		return nil
	})

	err = g.Wait()

	// Let check-ins already dispatched land before the store closes.
	recorder.Wait()
	logger.Info("stopped")
	return err
}
