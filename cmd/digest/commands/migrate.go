package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"media-digest-go/internal/store"
	"media-digest-go/pkg/config"
)

// NewMigrateCommand creates the migrate command
func NewMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status|version|redo|reset]",
		Short:     "Run the Postgres content store migrations",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"up", "down", "status", "version", "redo", "reset"},
		RunE:      runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	logger, err := loggerFrom(ctx)
	if err != nil {
		return err
	}

	command := "up"
	if len(args) == 1 {
		command = args[0]
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Store.DSN == "" {
		return fmt.Errorf("store.dsn (or DATABASE_URL) is required to run migrations")
	}

	db, err := store.OpenDB(cfg.Store.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	logger.Info("Running migrations", zap.String("command", command))
	if err := store.Migrate(db, command); err != nil {
		return err
	}
	logger.Info("Migrations finished", zap.String("command", command))
	return nil
}
