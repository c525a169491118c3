package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sentinelcore/ingestcore/pkg/config"
	"github.com/sentinelcore/ingestcore/pkg/job"
	"github.com/sentinelcore/ingestcore/pkg/storage"
)

var (
	workerQueue string
	workerPodID string
)

var startWorkerCmd = &cobra.Command{
	Use:   "start-worker",
	Short: "Run a job worker pool against one queue until terminated",
	RunE:  runStartWorker,
}

func init() {
	startWorkerCmd.Flags().StringVar(&workerQueue, "queue", "extraction", "job queue name to poll")
	startWorkerCmd.Flags().StringVar(&workerPodID, "pod-id", getEnv("POD_ID", "ingestctl-worker"), "identifier for this replica, used in job claim bookkeeping")
}

func runStartWorker(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envPath := filepath.Join(configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("could not load .env file, continuing with existing environment", "path", envPath, "error", err)
	}

	cfg, err := config.Initialize(ctx, configDir)
	if err != nil {
		return err
	}

	dbCfg, err := storage.LoadConfigFromEnv()
	if err != nil {
		return err
	}
	dbClient, err := storage.NewClient(ctx, dbCfg)
	if err != nil {
		return err
	}
	defer dbClient.Pool.Close()

	jobStore := storage.NewJobStore(dbClient)
	handlers := job.NewRegistry()
	// No Handler is registered on this registry, so the pool fails every
	// job it claims with ErrUnknownJobType.

	pool := job.NewPool(workerPodID, workerQueue, jobStore, cfg.Job, handlers)
	if err := pool.Start(ctx); err != nil {
		return err
	}
	slog.Info("worker pool running", "queue", workerQueue, "pod_id", workerPodID)

	<-ctx.Done()
	slog.Info("shutdown signal received, stopping worker pool")
	pool.Stop()
	return nil
}
