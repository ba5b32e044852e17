package daemon

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/forgehomes/lead-intake/internal/store/postgres"
)

func installMigrateCmd(app *App) {
	migrateCmd := &cobra.Command{
		Use:   "migrate path-to-migration-scripts",
		Short: "Run migration scripts",
		Long:  `Run migration scripts to create or update the PostgreSQL lead archive schema.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errors.New("migrate command accepts exactly one argument")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			app.cmd.SilenceUsage = false

			fileInfo, err := os.Stat(args[0])
			if err != nil {
				return fmt.Errorf("the provided path to migration scripts is not valid: %v", err)
			}
			if !fileInfo.IsDir() {
				return fmt.Errorf("the provided path to migration scripts should be a directory, not a file")
			}

			app.cmd.SilenceUsage = true

			slog.Info("Running migrate command")
			return postgres.Migrate(app.config.Store.Postgres, args[0])
		},
	}
	app.cmd.AddCommand(migrateCmd)
}
