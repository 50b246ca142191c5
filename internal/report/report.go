// Package report builds the weekly status report for one area from the
// snapshot and the hand-written annotations, and renders it as Markdown.
package report

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dbvcapital/statusboard/internal/schema"
	"github.com/dbvcapital/statusboard/internal/summary"
)

// ProjectSection is one project of the report.
type ProjectSection struct {
	Name string
	summary.Sections
	Tasks []schema.TaskRow
	Done  int
	Total int
}

// Report is a fully assembled weekly report.
type Report struct {
	Area        string
	Responsible string
	Week        Week
	Summary     ExecutiveSummary
	Projects    []ProjectSection

	KPIs         []KPI
	RoutineNotes string
	Impact       string
	Directions   string

	GeneratedAt time.Time
}

// AreaRows returns the rows of area, compared case-insensitively.
func AreaRows(rows []schema.TaskRow, area string) []schema.TaskRow {
	var out []schema.TaskRow
	for _, r := range rows {
		if strings.EqualFold(strings.TrimSpace(r.Area), strings.TrimSpace(area)) {
			out = append(out, r)
		}
	}
	return out
}

// ProjectNames lists the distinct projects of rows, sorted.
func ProjectNames(rows []schema.TaskRow) []string {
	seen := make(map[string]bool)
	var names []string
	for _, r := range rows {
		if !seen[r.Project] {
			seen[r.Project] = true
			names = append(names, r.Project)
		}
	}
	sort.Strings(names)
	return names
}

// Build assembles the report for area. When projects is empty every
// project of the area is included. Tasks within a project are ordered by
// start date.
func Build(rows []schema.TaskRow, area string, projects []string, ann *Annotations, week Week) *Report {
	if ann == nil {
		ann = &Annotations{}
	}
	inArea := AreaRows(rows, area)
	if len(projects) == 0 {
		projects = ProjectNames(inArea)
	}

	rep := &Report{
		Area:         area,
		Responsible:  ann.Responsible,
		Week:         week,
		Summary:      ann.Summary,
		KPIs:         ann.KPIs,
		RoutineNotes: ann.RoutineNotes,
		Impact:       ann.Impact,
		Directions:   ann.Directions,
		GeneratedAt:  time.Now(),
	}

	for _, name := range projects {
		sec := ProjectSection{Name: name, Sections: ann.Project(name)}
		for _, r := range inArea {
			if r.Project != name {
				continue
			}
			sec.Tasks = append(sec.Tasks, r)
			sec.Total++
			if r.Status == schema.StatusDone {
				sec.Done++
			}
		}
		sort.SliceStable(sec.Tasks, func(i, j int) bool {
			return sec.Tasks[i].Start < sec.Tasks[j].Start
		})
		rep.Projects = append(rep.Projects, sec)
	}
	return rep
}

// Autofill asks s to summarize each project's comment log and stores the
// result in ann, replacing what was there. Projects without tasks are
// skipped. A failed project does not stop the others.
func Autofill(ctx context.Context, s summary.Summarizer, rows []schema.TaskRow, area string, projects []string, week Week, ann *Annotations) error {
	inArea := AreaRows(rows, area)
	if len(projects) == 0 {
		projects = ProjectNames(inArea)
	}

	var errs []error
	for _, name := range projects {
		var tasks []schema.TaskRow
		for _, r := range inArea {
			if r.Project == name {
				tasks = append(tasks, r)
			}
		}
		if len(tasks) == 0 {
			continue
		}
		sections, err := s.Summarize(ctx, summary.Request{
			Digest: summary.Digest(tasks),
			Week:   week.Label(),
			S2:     week.S2().Label(),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		ann.SetProject(name, sections)
	}
	return errors.Join(errs...)
}

var cleanReplacer = strings.NewReplacer(
	"*", "",
	"–", "-",
	"—", "-",
	"“", `"`,
	"”", `"`,
	"‘", "'",
	"’", "'",
)

// Clean strips emphasis markers and replaces typographic dashes and quotes
// with their ASCII forms.
func Clean(s string) string {
	return cleanReplacer.Replace(s)
}
