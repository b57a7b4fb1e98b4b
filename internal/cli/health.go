package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/BrandonDHaskell/Janus/server/internal/grpcapi"
)

// HealthOptions holds flags for the health command.
type HealthOptions struct {
	Addr    string
	Service string
	Timeout time.Duration
}

func NewHealthCommand(root *RootOptions) *cobra.Command {
	opts := &HealthOptions{}

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Query a running server's gRPC health service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr := opts.Addr
			if addr == "" {
				cfg, err := root.load()
				if err != nil {
					return err
				}
				addr = cfg.GRPCAddr
				if len(addr) > 0 && addr[0] == ':' {
					addr = "localhost" + addr
				}
			}
			if addr == "" {
				return NewExitError(ExitConfigError, "grpc is disabled (grpc_addr is empty)")
			}

			status, err := grpcapi.Check(cmd.Context(), addr, opts.Service, opts.Timeout)
			if err != nil {
				return WrapExitError(ExitNotAvailable, "health check failed", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", serviceLabel(opts.Service), status)
			if status != healthpb.HealthCheckResponse_SERVING {
				return NewExitError(ExitNotAvailable, "not serving")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "gRPC address (default from grpc_addr)")
	cmd.Flags().StringVar(&opts.Service, "service", grpcapi.ScanSourceService, "health service name; empty checks the whole server")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 3*time.Second, "RPC timeout")

	return cmd
}

func serviceLabel(s string) string {
	if s == "" {
		return "server"
	}
	return s
}
