package main

import (
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sentinelcore/ingestcore/pkg/cleanup"
	"github.com/sentinelcore/ingestcore/pkg/config"
	"github.com/sentinelcore/ingestcore/pkg/scheduler"
	"github.com/sentinelcore/ingestcore/pkg/storage"
)

var startBeatCmd = &cobra.Command{
	Use:   "start-beat",
	Short: "Run the cron beat, enqueuing scheduled jobs until terminated",
	RunE:  runStartBeat,
}

func runStartBeat(cmd *cobra.Command, args []string) error {
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
	s, err := scheduler.New(jobStore, scheduler.DefaultTriggers(), nil)
	if err != nil {
		return err
	}
	s.Start()
	slog.Info("beat scheduler running")

	articleStore := storage.NewArticleStore(dbClient)
	promptTestStore := storage.NewPromptTestStore(dbClient)
	cleanupSvc := cleanup.NewService(cfg.Retention, articleStore, jobStore, promptTestStore)
	cleanupSvc.Start(ctx)

	<-ctx.Done()
	slog.Info("shutdown signal received, stopping beat scheduler")
	s.Stop()
	cleanupSvc.Stop()
	return nil
}
