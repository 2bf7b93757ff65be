package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ans-archiver/internal/annotate"
	"ans-archiver/internal/ansclient"
	"ans-archiver/internal/archive"
	"ans-archiver/internal/config"
	"ans-archiver/internal/debugserver"
	"ans-archiver/internal/logging"
	"ans-archiver/internal/metrics"
	"ans-archiver/internal/ratelimit"
	"ans-archiver/internal/storage"
)

// newArchiveCmd creates the 'archive' subcommand, the main crawl entry
// point.
func newArchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive",
		Short: "Crawls and archives every reachable graded submission",
		Long: `Walks the course listing for the configured year, descends into every
assignment and graded submission, and stores the reconstructed attempt
and grading-panel documents plus annotated PDF uploads.`,
		RunE: runArchiveCommand,
	}
}

func runArchiveCommand(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.ANS.CoursesPath == "" {
		return errors.New("ans.courses_path must be set for the archive command")
	}

	runID := uuid.NewString()
	logger := logging.L.With(zap.String("run_id", runID))

	metrics.Init()
	if cfg.Metrics.Addr != "" {
		debug := debugserver.New(cfg.Metrics.Addr, logger)
		debug.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := debug.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Debug server shutdown failed", zap.Error(err))
			}
		}()
	}

	store, err := buildStore(ctx)
	if err != nil {
		return fmt.Errorf("init artifact store: %w", err)
	}

	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		JitterFactor:      cfg.RateLimit.JitterFactor,
	})
	client, err := ansclient.New(ansclient.Config{
		BaseURL:      cfg.ANS.BaseURL,
		SessionToken: cfg.SessionToken(),
		Timeout:      cfg.FetchTimeout(),
	}, limiter, logger)
	if err != nil {
		return fmt.Errorf("init fetch client: %w", err)
	}

	orchestrator := archive.New(client, store, annotate.NewEngine(logger), archive.Options{
		CoursesPath:   cfg.ANS.CoursesPath,
		Year:          cfg.Archive.Year,
		GradingScheme: cfg.Archive.GradingScheme,
		RunID:         runID,
	}, logger)

	runErr := orchestrator.Run(ctx)
	logger.Info("Request statistics", zap.String("summary", limiter.Snapshot().String()))
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("archive run: %w", runErr)
	}

	logger.Info("Archive command finished.")
	return nil
}

// buildStore selects the artifact store backend from configuration.
func buildStore(ctx context.Context) (storage.Provider, error) {
	switch cfg.Storage.Provider {
	case config.StorageNoOp:
		return &storage.NoOpProvider{}, nil
	case config.StorageGCS:
		return storage.NewGCSProvider(ctx, cfg.Storage.GCS.BucketName, cfg.Storage.GCS.Prefix)
	default:
		return storage.NewLocalProvider(cfg.Archive.BasePath)
	}
}
