// Command ingestctl is the operator CLI for the ingest pipeline: run a
// job worker pool, run the cron beat, or kick off one-off maintenance
// passes over already-persisted data.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configDir string

var rootCmd = &cobra.Command{
	Use:           "ingestctl",
	Short:         "Operate the article ingest and incident extraction pipeline",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "path to configuration directory")
	rootCmd.AddCommand(startWorkerCmd)
	rootCmd.AddCommand(startBeatCmd)
	rootCmd.AddCommand(reprocessIncidentsCmd)
	rootCmd.AddCommand(backfillMergeInfoCmd)
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
