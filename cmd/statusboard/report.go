package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/dbvcapital/statusboard/internal/report"
	"github.com/dbvcapital/statusboard/internal/schema"
	"github.com/dbvcapital/statusboard/internal/snapshot"
	"github.com/dbvcapital/statusboard/internal/summary"
	"github.com/dbvcapital/statusboard/internal/ui"
)

var reportCmd = &cobra.Command{
	Use:     "report",
	GroupID: "report",
	Short:   "Render the weekly status report for an area",
	Long: `Render the weekly report for one area as Markdown.

The report combines the snapshot with hand-written annotations kept in a
TOML file (executive summary, per-project deliveries, blockers, next
actions and S+2 plan, KPIs, closing notes).

  --summarize  fills the per-project sections from the comment logs with
               the language model (needs ANTHROPIC_API_KEY)
  --edit       opens an interactive form for the annotations

The week is given as a date (2024-03-04, 04/03/2024) or in words
("last monday"); it defaults to today.

Example:
  statusboard report --area Ops --week "last monday" --summarize --edit`,
	Run: func(cmd *cobra.Command, args []string) {
		area, _ := cmd.Flags().GetString("area")
		projects, _ := cmd.Flags().GetStringSlice("projects")
		weekArg, _ := cmd.Flags().GetString("week")
		output, _ := cmd.Flags().GetString("output")
		annotationsPath, _ := cmd.Flags().GetString("annotations")
		summarize, _ := cmd.Flags().GetBool("summarize")
		edit, _ := cmd.Flags().GetBool("edit")

		if area == "" {
			area = cfg.Report.Area
		}
		if output == "" {
			output = cfg.Report.Output
		}
		if annotationsPath == "" {
			annotationsPath = cfg.Annotations
		}

		rows, err := snapshot.Read(cfg.Snapshot)
		if err != nil {
			fatalf("failed to read snapshot (run sync first): %v", err)
		}
		if area == "" {
			fatalf("--area is required (areas in snapshot: %s)", strings.Join(areas(rows), ", "))
		}
		inArea := report.AreaRows(rows, area)
		if len(inArea) == 0 {
			fatalf("no tasks for area %q (areas in snapshot: %s)", area, strings.Join(areas(rows), ", "))
		}

		week, err := report.ParseWeek(weekArg, time.Now())
		if err != nil {
			fatalf("%v", err)
		}
		ann, err := report.LoadAnnotations(annotationsPath)
		if err != nil {
			fatalf("%v", err)
		}

		tty := ui.IsTerminal(os.Stdin) && ui.IsTerminal(os.Stdout)
		interactive := edit && tty
		if edit && !tty {
			fmt.Fprintln(os.Stderr, "Warning: --edit needs a terminal; skipping the form")
		}
		if tty && len(projects) == 0 && output != "-" {
			if err := report.NewProjectPicker(report.ProjectNames(inArea), &projects).Run(); err != nil {
				exitOnAbort(err)
			}
		}

		ctx, cancel := signalContext()
		defer cancel()

		out := ui.Stdout()
		if summarize {
			s, err := summary.NewAnthropicSummarizer(summary.AnthropicConfig{
				APIKey: cfg.Anthropic.APIKey,
				Model:  cfg.Anthropic.Model,
				Logger: logs.Logger("summary"),
			})
			if err != nil {
				fatalf("%v", err)
			}
			fmt.Printf("%s Summarizing comments for %s...\n", out.RenderAccent("→"), week.Label())
			if err := report.Autofill(ctx, s, rows, area, projects, week, ann); err != nil {
				out.Warning("some projects were not summarized: %v", err)
			}
		}

		if interactive {
			names := projects
			if len(names) == 0 {
				names = report.ProjectNames(inArea)
			}
			if err := report.NewAnnotationsEditor(ann, names, week).Run(); err != nil {
				exitOnAbort(err)
			}
		}

		if summarize || interactive {
			if err := ann.Save(annotationsPath); err != nil {
				fatalf("%v", err)
			}
			out.Success("Annotations saved to %s", annotationsPath)
		}

		var buf bytes.Buffer
		if err := report.Render(&buf, report.Build(rows, area, projects, ann, week)); err != nil {
			fatalf("%v", err)
		}
		if output == "-" {
			_, _ = os.Stdout.Write(buf.Bytes())
			return
		}
		if err := atomic.WriteFile(output, &buf); err != nil {
			fatalf("failed to write report: %v", err)
		}
		out.Success("Report for %s (%s) written to %s", area, week.Label(), output)
	},
}

func areas(rows []schema.TaskRow) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range rows {
		if r.Area != "" && !seen[r.Area] {
			seen[r.Area] = true
			out = append(out, r.Area)
		}
	}
	return out
}

// exitOnAbort ends the command quietly when the user quits a form.
func exitOnAbort(err error) {
	if errors.Is(err, huh.ErrUserAborted) {
		fmt.Fprintln(os.Stderr, "Aborted.")
		os.Exit(1)
	}
	fatalf("%v", err)
}

func init() {
	reportCmd.Flags().StringP("area", "a", "", "Area to report on (default: report.area)")
	reportCmd.Flags().StringSlice("projects", nil, "Projects to include (default: all in the area)")
	reportCmd.Flags().StringP("week", "w", "", "Week start (default: today)")
	reportCmd.Flags().StringP("output", "o", "", "Output file, - for stdout (default: report.output)")
	reportCmd.Flags().String("annotations", "", "Annotations TOML file (default: annotations)")
	reportCmd.Flags().Bool("summarize", false, "Fill project sections from comments with the language model")
	reportCmd.Flags().BoolP("edit", "e", false, "Edit annotations interactively")

	rootCmd.AddCommand(reportCmd)
}
