package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dbvcapital/statusboard/internal/snapshot"
	"github.com/dbvcapital/statusboard/internal/sync"
	"github.com/dbvcapital/statusboard/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Pull tasks from Notion into the snapshot",
	Long: `Rebuild the snapshot from the workspace.

This performs a full forward sync:
  1. Reads the projects database (projects layout) into a lookup table
  2. Pages through the tasks database
  3. Fetches each task's comment thread
  4. Normalizes status, dates and defaults
  5. Replaces the snapshot file atomically

A failed sync leaves the previous snapshot untouched.`,
	Run: func(cmd *cobra.Command, args []string) {
		s, err := newSyncer(false)
		if err != nil {
			fatalf("%v", err)
		}

		ctx, cancel := signalContext()
		defer cancel()

		out := ui.Stdout()
		fmt.Printf("%s Syncing %s layout into %s...\n", out.RenderAccent("→"), cfg.Layout, cfg.Snapshot)
		res, err := s.Run(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		out.Success("%s (%d projects, %s)", res.Message, res.Projects, res.Duration.Round(time.Millisecond))
	},
}

var setCmd = &cobra.Command{
	Use:     "set <page-id> <field> <value>...",
	GroupID: "sync",
	Short:   "Write one field of one task back to Notion",
	Long: `Write a single field back to the workspace, then run a forward sync.

Fields:
  status       canonical status or its label (e.g. Blocked, Bloqueado)
  title        task title
  observation  posted as a comment; falls back to the notes property

Example:
  statusboard set 1c9e...f0 status "Em Andamento"
  statusboard set 1c9e...f0 observation waiting on finance`,
	Args: cobra.MinimumNArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		field, ok := sync.ParseField(args[1])
		if !ok {
			fatalf("invalid field %q (want status, title or observation)", args[1])
		}
		value := strings.Join(args[2:], " ")

		s, err := newSyncer(false)
		if err != nil {
			fatalf("%v", err)
		}
		ctx, cancel := signalContext()
		defer cancel()

		out := ui.Stdout()
		outcome := s.Update(ctx, args[0], field, value)
		if !outcome.OK {
			fatalf("%s", outcome.Message)
		}
		out.Success("%s", outcome.Message)

		if noSync, _ := cmd.Flags().GetBool("no-sync"); noSync {
			return
		}
		res, err := s.Run(ctx)
		if err != nil {
			fatalf("sync after update failed: %v", err)
		}
		out.Success("%s", res.Message)
	},
}

var pushCmd = &cobra.Command{
	Use:     "push",
	GroupID: "sync",
	Short:   "Write edits from a CSV back to Notion",
	Long: `Compare an edited copy of the snapshot with the current snapshot and
write every changed status, title and observation back to the workspace.

Rows are matched by id. When an observation was extended, only the added
text is posted as a comment. A forward sync runs afterwards when anything
changed.`,
	Run: func(cmd *cobra.Command, args []string) {
		from, _ := cmd.Flags().GetString("from")
		if from == "" {
			fatalf("--from is required")
		}

		edited, err := snapshot.Read(from)
		if err != nil {
			fatalf("%v", err)
		}
		current, err := snapshot.Read(cfg.Snapshot)
		if err != nil {
			fatalf("failed to read current snapshot (run sync first): %v", err)
		}

		s, err := newSyncer(false)
		if err != nil {
			fatalf("%v", err)
		}
		ctx, cancel := signalContext()
		defer cancel()

		out := ui.Stdout()
		res := s.Push(ctx, edited, current)
		for _, e := range res.Errors {
			out.Failure("%s", e)
		}
		if res.Changed == 0 && res.Failed == 0 {
			fmt.Println("No changes.")
			return
		}
		out.Success("%d alterações enviadas", res.Changed)

		if res.Changed > 0 {
			synced, err := s.Run(ctx)
			if err != nil {
				fatalf("sync after push failed: %v", err)
			}
			out.Success("%s", synced.Message)
		}
		if res.Failed > 0 {
			fatalf("%d updates failed", res.Failed)
		}
	},
}

func init() {
	setCmd.Flags().Bool("no-sync", false, "Skip the forward sync after the update")
	pushCmd.Flags().String("from", "", "Edited CSV to push")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(pushCmd)
}
