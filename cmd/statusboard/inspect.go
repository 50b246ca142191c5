package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dbvcapital/statusboard/internal/notion"
	"github.com/dbvcapital/statusboard/internal/ui"
)

var inspectCmd = &cobra.Command{
	Use:     "inspect",
	GroupID: "advanced",
	Short:   "Show the properties of the configured databases",
	Long: `Show every property of the configured databases with its kind, and
check that the properties the layout reads are present.

With --sample N the first N records of each database are decoded and
printed, which helps when a column comes out empty in the snapshot.`,
	Run: func(cmd *cobra.Command, args []string) {
		sample, _ := cmd.Flags().GetInt("sample")

		if err := cfg.Validate(); err != nil {
			fatalf("%v", err)
		}
		layout, err := cfg.SyncLayout()
		if err != nil {
			fatalf("%v", err)
		}

		ctx, cancel := signalContext()
		defer cancel()

		client := newClient()
		out := ui.Stdout()
		failed := false

		targets := []struct {
			label  string
			id     string
			expect map[string][]string
		}{
			{"projects", layout.ProjectsDB, map[string][]string{
				"name": layout.ProjectName,
				"area": layout.ProjectArea,
			}},
			{"tasks", layout.TasksDB, map[string][]string{
				"title":       layout.TaskTitle,
				"responsible": layout.Responsible,
				"area":        layout.TaskArea,
				"project":     layout.ProjectLink,
				"start":       layout.StartDate,
				"due":         layout.DueDate,
				"dates":       layout.DateRange,
				"status":      layout.Status,
				"notes":       layout.Notes,
			}},
		}
		for _, target := range targets {
			if target.id == "" {
				continue
			}
			db, err := client.RetrieveDatabase(ctx, target.id)
			if err != nil {
				out.Failure("%s database %s: %v", target.label, target.id, err)
				failed = true
				continue
			}
			printDatabase(out, target.label, db, target.expect)
			if sample > 0 {
				if err := printSample(ctx, out, client, db.ID, sample); err != nil {
					out.Failure("failed to query %s: %v", target.label, err)
					failed = true
				}
			}
			fmt.Println()
		}
		if failed {
			fatalf("inspection failed (layout %s)", layout.Name)
		}
	},
}

func printDatabase(out *ui.Printer, label string, db *notion.Database, expect map[string][]string) {
	fmt.Printf("%s %s (%s)\n", out.RenderBold(strings.ToUpper(label)), db.Title, out.RenderMuted(db.ID))

	have := make(map[string]notion.Kind, len(db.Properties))
	for _, p := range db.Properties {
		have[strings.ToLower(p.Name)] = p.Kind
		fmt.Printf("  %-28s %s\n", p.Name, out.RenderMuted(p.Tag))
	}

	roles := make([]string, 0, len(expect))
	for role := range expect {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	for _, role := range roles {
		names := expect[role]
		if len(names) == 0 {
			continue
		}
		found := ""
		for _, name := range names {
			if _, ok := have[strings.ToLower(name)]; ok {
				found = name
				break
			}
		}
		if found == "" {
			out.Warning("%s: none of %s found", role, strings.Join(names, ", "))
		}
	}
}

func printSample(ctx context.Context, out *ui.Printer, client *notion.Client, dbID string, n int) error {
	page, err := client.QueryDatabase(ctx, dbID, "")
	if err != nil {
		return err
	}
	if len(page.Results) < n {
		n = len(page.Results)
	}
	for _, rec := range page.Results[:n] {
		fmt.Printf("  %s\n", out.RenderAccent(rec.ID))
		kinds := rec.Kinds()
		names := make([]string, 0, len(kinds))
		for name := range kinds {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			p, err := rec.Property(name)
			if err != nil {
				continue
			}
			v, err := p.Decode()
			switch {
			case err != nil:
				fmt.Printf("    %-26s %s\n", name, out.RenderFail(err.Error()))
			case v.Kind == notion.KindDate:
				fmt.Printf("    %-26s %s → %s\n", name, v.Date.Start, v.Date.End)
			default:
				fmt.Printf("    %-26s %s\n", name, v.Text)
			}
		}
	}
	return nil
}

func init() {
	inspectCmd.Flags().Int("sample", 0, "Decode and print the first N records of each database")
	rootCmd.AddCommand(inspectCmd)
}
