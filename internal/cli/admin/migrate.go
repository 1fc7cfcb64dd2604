package admin

import (
	"fmt"

	"github.com/etvincen/boredapi/internal/config"
	"github.com/etvincen/boredapi/internal/database"
	"github.com/spf13/cobra"
)

func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long:  "Apply every pending schema migration and exit",
		RunE:  runMigrate,
	}

	cmd.Flags().String("migrations", database.DefaultMigrationsURL, "Migrations source URL")

	return cmd
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	source, _ := cmd.Flags().GetString("migrations")
	return database.Migrate(cfg.DatabaseURL, source, newLogger(cfg.Debug))
}
