package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dbvcapital/statusboard/internal/daemon"
	"github.com/dbvcapital/statusboard/internal/dashboard"
	"github.com/dbvcapital/statusboard/internal/db"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "sync",
	Short:   "Serve the live task board",
	Long: `Start the dashboard.

The snapshot is loaded into a SQLite query cache and watched for changes;
every reload is pushed to connected browsers over WebSocket.

Endpoints:
  GET  /                 task table (filters: area, project, responsible, status, unassigned)
  GET  /api/tasks        tasks as JSON, same filters
  GET  /api/stats        counts by status (?area=)
  POST /api/sync         run a forward sync
  POST /api/tasks/{id}   write one field back: {"field": "status", "value": "Done"}
  GET  /ws               WebSocket stream of sync_complete, stats and task_update
  GET  /health           health check

Without workspace credentials the board is served read-only.`,
	Run: func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("port") {
			cfg.Dashboard.Port, _ = cmd.Flags().GetInt("port")
		}
		if cmd.Flags().Changed("host") {
			cfg.Dashboard.Host, _ = cmd.Flags().GetString("host")
		}

		cache, err := db.Open(cfg.Cache)
		if err != nil {
			fatalf("failed to open cache: %v", err)
		}
		defer cache.Close()
		if err := cache.InitSchema(); err != nil {
			fatalf("failed to initialize cache: %v", err)
		}

		var syncer dashboard.Syncer
		if s, err := newSyncer(true); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v; serving read-only\n", err)
		} else {
			syncer = s
		}

		server := dashboard.NewServer(&dashboard.Config{
			Host:   cfg.Dashboard.Host,
			Port:   cfg.Dashboard.Port,
			Logger: logs.Logger("dashboard"),
		})

		var handler *dashboard.Handler
		watchConfig := &daemon.Config{
			SnapshotPath: cfg.Snapshot,
			OnReload: func(rows int) {
				if handler != nil {
					handler.OnReload(rows)
				}
			},
			Logger: logs.Logger("watch"),
		}
		if syncer != nil {
			watchConfig.SyncInterval = cfg.Dashboard.SyncInterval
			watchConfig.Sync = func(ctx context.Context) error {
				_, err := handler.RunSync(ctx)
				if errors.Is(err, dashboard.ErrSyncBusy) {
					return nil
				}
				return err
			}
		}
		watch, err := daemon.New(cache, watchConfig)
		if err != nil {
			fatalf("%v", err)
		}

		handler = dashboard.NewHandler(server, dashboard.HandlerConfig{
			Cache:  cache,
			Syncer: syncer,
			Reload: watch.Reload,
			Logger: logs.Logger("dashboard"),
		})
		if err := server.Start(); err != nil {
			fatalf("failed to start dashboard: %v", err)
		}
		fmt.Printf("Dashboard running on http://%s\n", server.Addr())
		fmt.Println("Press Ctrl+C to stop...")

		ctx, cancel := signalContext()
		defer cancel()

		if err := watch.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}

		fmt.Println("\nShutting down dashboard...")
		if err := server.Stop(); err != nil {
			fatalf("error during shutdown: %v", err)
		}
	},
}

func init() {
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on (overrides config)")
	serveCmd.Flags().String("host", "", "Address to bind (overrides config)")

	rootCmd.AddCommand(serveCmd)
}
