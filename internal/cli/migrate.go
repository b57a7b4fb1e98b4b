package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/Janus/server/internal/db"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/store/postgres"
)

func NewMigrateCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			switch cfg.DBDriver {
			case "sqlite":
				sqlDB, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
				if err != nil {
					return err
				}
				defer sqlDB.Close()

				versions, err := db.AppliedVersions(ctx, sqlDB)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "sqlite %s: applied migrations %v\n", cfg.DBPath, versions)

			case "postgres":
				sqlDB, err := postgres.Open(ctx, cfg.DatabaseURL)
				if err != nil {
					return err
				}
				defer sqlDB.Close()

				if err := postgres.New(sqlDB).EnsureSchema(ctx); err != nil {
					return err
				}
				fmt.Fprintln(out, "postgres: schema ready")

			default:
				return NewExitError(ExitConfigError, fmt.Sprintf("nothing to migrate for db driver %q", cfg.DBDriver))
			}
			return nil
		},
	}
}
