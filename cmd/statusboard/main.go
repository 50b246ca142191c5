// Command statusboard syncs a Notion task workspace into a local snapshot,
// writes edits back, serves a live board and renders the weekly report.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dbvcapital/statusboard/internal/config"
	"github.com/dbvcapital/statusboard/internal/logging"
)

var (
	configPath string
	cfg        *config.Config
	logs       *logging.Output
)

var rootCmd = &cobra.Command{
	Use:   "statusboard",
	Short: "Notion status sync, board and weekly report",
	Long: `statusboard pulls tasks and projects from a Notion workspace into a flat
CSV snapshot, pushes single-field edits back, serves a live board over HTTP
and renders the weekly status report as Markdown.

Configuration is read from statusboard.yaml (or --config), then from
STATUSBOARD_* environment variables and the NOTION_TOKEN, NOTION_DB_ID_* and
ANTHROPIC_API_KEY variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded

		if f := cmd.Flags().Lookup("snapshot"); f != nil && f.Changed {
			cfg.Snapshot = f.Value.String()
		}
		if f := cmd.Flags().Lookup("layout"); f != nil && f.Changed {
			cfg.Layout = f.Value.String()
		}

		out, err := logging.Open(logging.Options{
			File:       cfg.Log.File,
			Tee:        cfg.Log.Tee,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
		}, os.Stderr)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		logs = out
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logs != nil {
			_ = logs.Close()
		}
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "report", Title: "Report Commands:"},
		&cobra.Group{ID: "advanced", Title: "Advanced Commands:"},
	)
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ./statusboard.yaml)")
	rootCmd.PersistentFlags().String("snapshot", "", "Snapshot CSV path (overrides config)")
	rootCmd.PersistentFlags().String("layout", "", "Database layout: projects or demands (overrides config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
