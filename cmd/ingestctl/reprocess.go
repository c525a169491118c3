package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sentinelcore/ingestcore/pkg/models"
	"github.com/sentinelcore/ingestcore/pkg/storage"
)

var (
	reprocessArticleIDs []string
	reprocessApply      bool
)

var reprocessIncidentsCmd = &cobra.Command{
	Use:   "reprocess-incidents",
	Short: "Re-enqueue a full-pipeline job for each given article",
	RunE:  runReprocessIncidents,
}

func init() {
	reprocessIncidentsCmd.Flags().StringSliceVar(&reprocessArticleIDs, "article-id", nil, "article id to reprocess (repeatable)")
	reprocessIncidentsCmd.Flags().BoolVar(&reprocessApply, "apply", false, "actually enqueue jobs; without this flag, only prints what would be enqueued")
}

func runReprocessIncidents(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if len(reprocessArticleIDs) == 0 {
		return fmt.Errorf("at least one --article-id is required")
	}

	envPath := filepath.Join(configDir, ".env")
	_ = godotenv.Load(envPath)

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

	for _, articleID := range reprocessArticleIDs {
		if !reprocessApply {
			fmt.Printf("[dry-run] would enqueue full_pipeline job for article %s\n", articleID)
			continue
		}
		id, err := jobStore.Enqueue(ctx, models.JobTypeFullPipeline, "extraction", map[string]any{"article_id": articleID}, 2)
		if err != nil {
			return fmt.Errorf("enqueuing reprocess job for %s: %w", articleID, err)
		}
		slog.Info("enqueued reprocess job", "article_id", articleID, "job_id", id)
	}
	return nil
}
