package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alfredjeanlab/lowcode/internal/build"
	"github.com/alfredjeanlab/lowcode/internal/config"
	"github.com/alfredjeanlab/lowcode/internal/events"
	"github.com/alfredjeanlab/lowcode/internal/queue"
	"github.com/alfredjeanlab/lowcode/internal/store/postgres"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:               "worker",
	Short:             "Run the background build worker",
	GroupID:           "system",
	PersistentPreRunE: skipClient,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.RedisURL == "" {
			return fmt.Errorf("%sREDIS_URL is required for the worker", config.Prefix)
		}

		store, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer store.Close()

		q, err := queue.NewRedis(context.Background(), cfg.RedisURL, cfg.BuildQueue)
		if err != nil {
			return err
		}
		defer q.Close()

		publisher := newPublisher(cfg, logger)
		defer publisher.Close()

		dests, err := buildDestinations(context.Background(), cfg, logger)
		if err != nil {
			return err
		}
		if len(dests) == 0 {
			logger.Warn("no build destinations configured; builds will fail",
				"hint", "set "+config.Prefix+"BUILD_S3_BUCKET, BUILD_GIT_REPO or BUILD_DIR")
		}

		worker := build.NewWorker(store, q, dests, events.NewRecorder(store, publisher), cfg.WorkerPoll, logger)
		worker.Start()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		worker.Stop()
		logger.Info("build worker stopped")
		return nil
	},
}

// buildDestinations returns a destination for each configured target.
func buildDestinations(ctx context.Context, cfg *config.Config, logger *slog.Logger) ([]build.Destination, error) {
	var dests []build.Destination
	if cfg.BuildS3Bucket != "" {
		d, err := build.NewS3Destination(ctx, cfg.BuildS3Bucket, cfg.BuildS3Prefix, cfg.BuildS3Region, cfg.BuildS3Endpoint)
		if err != nil {
			return nil, fmt.Errorf("create S3 destination: %w", err)
		}
		dests = append(dests, d)
		logger.Info("build S3 destination enabled", "bucket", cfg.BuildS3Bucket, "prefix", cfg.BuildS3Prefix)
	}
	if cfg.BuildGitRepo != "" {
		dests = append(dests, build.NewGitDestination(cfg.BuildGitRepo, cfg.BuildGitBranch))
		logger.Info("build git destination enabled", "repo", cfg.BuildGitRepo, "branch", cfg.BuildGitBranch)
	}
	if cfg.BuildDir != "" {
		dests = append(dests, build.NewDirDestination(cfg.BuildDir))
		logger.Info("build directory destination enabled", "dir", cfg.BuildDir)
	}
	return dests, nil
}

// newPublisher connects to NATS when configured and falls back to a no-op
// publisher otherwise.
func newPublisher(cfg *config.Config, logger *slog.Logger) events.Publisher {
	if cfg.NATSURL == "" {
		logger.Info("events bus disabled (" + config.Prefix + "NATS_URL not set)")
		return &events.NoopPublisher{}
	}
	pub, err := events.NewNATSPublisher(cfg.NATSURL)
	if err != nil {
		logger.Error("failed to connect event publisher; continuing without bus", "nats_url", cfg.NATSURL, "err", err)
		return &events.NoopPublisher{}
	}
	logger.Info("events enabled", "nats_url", cfg.NATSURL)
	return pub
}
