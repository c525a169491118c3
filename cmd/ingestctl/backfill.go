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
	backfillApply bool
	backfillLimit int
)

var backfillMergeInfoCmd = &cobra.Command{
	Use:   "backfill-merge-info",
	Short: "Stamp a synthesized merge_info onto legacy incidents that predate it",
	RunE:  runBackfillMergeInfo,
}

func init() {
	backfillMergeInfoCmd.Flags().BoolVar(&backfillApply, "apply", false, "actually write merge_info; without this flag, only reports candidates")
	backfillMergeInfoCmd.Flags().IntVar(&backfillLimit, "limit", 500, "maximum number of incidents to process in one run")
}

func runBackfillMergeInfo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

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

	incidents := storage.NewIncidentStore(dbClient)

	candidates, err := incidents.ListMissingMergeInfo(ctx, backfillLimit)
	if err != nil {
		return err
	}
	fmt.Printf("found %d incidents missing merge_info\n", len(candidates))

	if !backfillApply {
		for _, in := range candidates {
			fmt.Printf("[dry-run] would backfill merge_info for incident %s (source %s)\n", in.ID, in.SourceURL)
		}
		return nil
	}

	for _, in := range candidates {
		mergeInfo := &models.MergeInfo{
			PrimarySourceID: in.SourceURL,
			MergedSourceIDs: []string{in.SourceURL},
			Sources: []models.MergeSource{
				{ArticleID: in.SourceURL, Confidence: in.ExtractionConfidence, Role: models.MergeRoleSole},
			},
			Merged:          false,
			SelectionReason: "backfilled: single legacy source, predates merge_info",
		}
		if err := incidents.SetMergeInfo(ctx, in.ID, mergeInfo); err != nil {
			return fmt.Errorf("backfilling incident %s: %w", in.ID, err)
		}
		slog.Info("backfilled merge_info", "incident_id", in.ID)
	}
	return nil
}
