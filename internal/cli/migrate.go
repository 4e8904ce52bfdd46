package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/faultline/internal/core/config"
	"github.com/vietddude/faultline/internal/infra/storage/postgres"
)

var errNoDatabase = errors.New("database.url is not configured")

// openDB is replaced in tests.
var openDB = postgres.NewDB

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|status]",
	Short:     "Apply or inspect the database migrations",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "status"},
	Run:       runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	if err := migrateDatabase(context.Background(), cfg, args); err != nil {
		slog.Error("Migration failed", "error", err)
		os.Exit(1)
	}
	if len(args) == 0 || args[0] == "up" {
		slog.Info("Migrations applied")
	}
}

func migrateDatabase(ctx context.Context, cfg *config.AppConfig, args []string) error {
	if cfg.Database.URL == "" {
		return errNoDatabase
	}

	db, err := openDB(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if len(args) == 1 && args[0] == "status" {
		return postgres.MigrationStatus(db.DB.DB)
	}
	return postgres.Migrate(db.DB.DB)
}
