package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/dbvcapital/statusboard/internal/schema"
	"github.com/dbvcapital/statusboard/internal/snapshot"
	"github.com/dbvcapital/statusboard/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "advanced",
	Short:   "Summarize the local snapshot",
	Run: func(cmd *cobra.Command, args []string) {
		out := ui.Stdout()

		info, err := os.Stat(cfg.Snapshot)
		if errors.Is(err, fs.ErrNotExist) {
			out.Warning("No snapshot at %s. Run 'statusboard sync' first.", cfg.Snapshot)
			return
		}
		if err != nil {
			fatalf("%v", err)
		}
		rows, err := snapshot.Read(cfg.Snapshot)
		if err != nil {
			fatalf("%v", err)
		}

		fmt.Printf("%s %s\n", out.RenderBold("Snapshot:"), cfg.Snapshot)
		fmt.Printf("  %d tarefas, %d bytes, updated %s (%s ago)\n",
			len(rows), info.Size(), info.ModTime().Format("2006-01-02 15:04"),
			time.Since(info.ModTime()).Round(time.Second))
		if f := cfg.File(); f != "" {
			fmt.Printf("  config %s, layout %s\n", f, cfg.Layout)
		} else {
			fmt.Printf("  layout %s\n", cfg.Layout)
		}

		byStatus := make(map[schema.Status]int)
		byArea := make(map[string]int)
		unassigned := 0
		for _, r := range rows {
			byStatus[r.Status]++
			byArea[r.Area]++
			if r.Unassigned() {
				unassigned++
			}
		}

		fmt.Printf("\n%s\n", out.RenderBold("Status"))
		for _, s := range schema.Statuses {
			fmt.Printf("  %-24s %d\n", out.RenderStatus(s), byStatus[s])
			delete(byStatus, s)
		}
		for s, n := range byStatus {
			fmt.Printf("  %-24s %d\n", out.RenderMuted(string(s)), n)
		}
		if unassigned > 0 {
			fmt.Printf("  %-24s %d\n", out.RenderWarn("sem responsável"), unassigned)
		}

		areas := make([]string, 0, len(byArea))
		for a := range byArea {
			areas = append(areas, a)
		}
		sort.Strings(areas)
		fmt.Printf("\n%s\n", out.RenderBold("Áreas"))
		for _, a := range areas {
			fmt.Printf("  %-24s %d\n", a, byArea[a])
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
