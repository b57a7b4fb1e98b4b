package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/scansource"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
)

// ScanOptions holds flags for the scan command.
type ScanOptions struct {
	At  string
	Ago time.Duration
}

// NewScanCommand writes a scan into the slot the way the reader driver
// would, for testing a kiosk without hardware.
func NewScanCommand(root *RootOptions) *cobra.Command {
	opts := &ScanOptions{}

	cmd := &cobra.Command{
		Use:   "scan <member-id>",
		Short: "Simulate a fingerprint match by writing the scan slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return NewExitError(ExitConfigError, fmt.Sprintf("invalid member id %q", args[0]))
			}

			at := time.Now().Add(-opts.Ago)
			if opts.At != "" {
				at, err = time.Parse(time.RFC3339, opts.At)
				if err != nil {
					return WrapExitError(ExitConfigError, "invalid --at", err)
				}
			}

			cfg, err := root.load()
			if err != nil {
				return err
			}
			if cfg.ScanSource == "memory" {
				return NewExitError(ExitConfigError, "the memory scan source cannot be written from another process")
			}

			src, closeSource, err := openScanSource(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeSource()

			scan := types.Scan{SubjectID: id, ScannedAt: at}
			if err := src.Write(cmd.Context(), scan); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s to %s slot\n", scansource.FormatSlot(scan), cfg.ScanSource)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.At, "at", "", "scan time, RFC 3339 (default now)")
	cmd.Flags().DurationVar(&opts.Ago, "ago", 0, "back-date the scan by this much")

	return cmd
}
