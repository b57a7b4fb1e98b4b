package cli

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/service"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
)

func NewMemberCommand(root *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Manage members directly in the database",
	}
	cmd.AddCommand(newMemberAddCommand(root))
	return cmd
}

func newMemberAddCommand(root *RootOptions) *cobra.Command {
	req := types.CreateMemberRequest{}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Enroll a member",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				return WrapExitError(ExitConfigError, "invalid configuration", err)
			}
			logger := cfg.Logger(os.Stderr)

			st, closeStore, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			members := service.NewMemberService(st, service.MemberServiceConfig{
				EnrollmentPath: cfg.EnrollmentFilePath,
				Location:       loc,
			})
			m, err := members.Create(cmd.Context(), req)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(m)
		},
	}

	f := cmd.Flags()
	f.Int64Var(&req.ID, "id", 0, "member id, matching the reader's template id (required)")
	f.StringVar(&req.Name, "name", "", "display name (required)")
	f.StringVar(&req.Fingerprint, "fingerprint", "", "fingerprint template (required)")
	f.StringVar(&req.PhoneNumber, "phone", "", "phone number")
	f.StringVar(&req.MembershipStart, "start", "", "membership start, YYYY-MM-DD")
	f.StringVar(&req.MembershipEnd, "end", "", "membership end, YYYY-MM-DD (inclusive)")
	f.StringVar(&req.Remark, "remark", "", "free-form note shown on the kiosk")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("fingerprint")

	return cmd
}
