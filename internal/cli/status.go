package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vietddude/faultline/internal/core/config"
	redisclient "github.com/vietddude/faultline/internal/infra/redis"
	"github.com/vietddude/faultline/internal/infra/storage"
	"github.com/vietddude/faultline/internal/infra/storage/postgres"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show job counts of the configured queue backend",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// openQueue is replaced in tests.
var openQueue = func(ctx context.Context, cfg *config.AppConfig) (storage.JobQueue, func(), error) {
	switch cfg.Jobs.Backend {
	case "postgres":
		db, err := openDB(ctx, cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return postgres.NewJobRepo(db), func() { _ = db.Close() }, nil
	case "redis":
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return redisclient.NewJobQueue(client), func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("%w: the %s backend keeps no state between runs", config.ErrUnknownBackend, cfg.Jobs.Backend)
	}
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	if err := printStatus(context.Background(), cmd.OutOrStdout(), cfg); err != nil {
		slog.Error("Failed to read queue status", "error", err)
		os.Exit(1)
	}
}

func printStatus(ctx context.Context, out io.Writer, cfg *config.AppConfig) error {
	queue, closeQueue, err := openQueue(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeQueue()

	stats, err := queue.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read queue stats: %w", err)
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "BACKEND\tPENDING\tRUNNING\tCOMPLETED\tFAILED")
	_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n", cfg.Jobs.Backend, stats.Pending, stats.Running, stats.Completed, stats.Failed)
	return w.Flush()
}
