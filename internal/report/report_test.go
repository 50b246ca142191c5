package report

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dbvcapital/statusboard/internal/schema"
	"github.com/dbvcapital/statusboard/internal/summary"
	"github.com/google/go-cmp/cmp"
)

func fixtureRows() []schema.TaskRow {
	return []schema.TaskRow{
		{ID: "1", Area: "Ops", Project: "Alpha", Task: "Write *report*", Responsible: "Ana", Start: "2024-03-05", End: "2024-03-08", Status: schema.StatusInProgress, Observation: "(05/03) [Ana]: draft"},
		{ID: "2", Area: "ops", Project: "Alpha", Task: "Ship | deploy", Responsible: "Bruno", Start: "2024-03-01", End: "2024-03-02", Status: schema.StatusDone},
		{ID: "3", Area: "Ops", Project: "Beta", Task: "Plan", Responsible: "Carla", Start: "2024-03-03", End: "2024-03-03", Status: schema.StatusBlocked},
		{ID: "4", Area: "Finance", Project: "Gamma", Task: "Invoice", Responsible: "Dani", Start: "2024-03-04", End: "2024-03-04", Status: schema.StatusNotStarted},
	}
}

func TestParseWeek(t *testing.T) {
	now := time.Date(2024, 3, 6, 15, 30, 0, 0, time.UTC) // Wednesday

	tests := []struct {
		input string
		want  string
	}{
		{"", "06/03 a 10/03"},
		{"2024-03-04", "04/03 a 08/03"},
		{"04/03/2024", "04/03 a 08/03"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			w, err := ParseWeek(tt.input, now)
			if err != nil {
				t.Fatalf("ParseWeek(%q) failed: %v", tt.input, err)
			}
			if got := w.Label(); got != tt.want {
				t.Errorf("Label() = %q, want %q", got, tt.want)
			}
			if w.Start.Hour() != 0 {
				t.Errorf("Start should be midnight, got %v", w.Start)
			}
		})
	}

	w, err := ParseWeek("tomorrow", now)
	if err != nil {
		t.Fatalf("ParseWeek(tomorrow) failed: %v", err)
	}
	if w.Start.Day() != 7 {
		t.Errorf("ParseWeek(tomorrow) = %v", w.Start)
	}

	if _, err := ParseWeek("not a date at all", now); err == nil {
		t.Error("ParseWeek() should fail on unparseable input")
	}
}

func TestWeekS2(t *testing.T) {
	w := NewWeek(time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC))
	if got := w.S2().Label(); got != "18/03 a 22/03" {
		t.Errorf("S2().Label() = %q", got)
	}
	if got := NewWeek(time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC)).Label(); got != "30/12 a 03/01" {
		t.Errorf("year-crossing Label() = %q", got)
	}
}

func TestBuild(t *testing.T) {
	ann := &Annotations{Responsible: "Ana"}
	ann.SetProject("Alpha", summary.Sections{Deliveries: "- done"})
	week := NewWeek(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC))

	rep := Build(fixtureRows(), "OPS", nil, ann, week)
	if len(rep.Projects) != 2 {
		t.Fatalf("got %d projects, want 2", len(rep.Projects))
	}
	alpha := rep.Projects[0]
	if alpha.Name != "Alpha" || alpha.Total != 2 || alpha.Done != 1 {
		t.Errorf("Alpha = %+v", alpha)
	}
	if alpha.Deliveries != "- done" {
		t.Errorf("Alpha deliveries = %q", alpha.Deliveries)
	}
	var ids []string
	for _, r := range alpha.Tasks {
		ids = append(ids, r.ID)
	}
	if diff := cmp.Diff([]string{"2", "1"}, ids); diff != "" {
		t.Errorf("tasks not ordered by start (-want +got):\n%s", diff)
	}

	rep = Build(fixtureRows(), "Ops", []string{"Beta", "Missing"}, nil, week)
	if len(rep.Projects) != 2 || rep.Projects[0].Total != 1 || rep.Projects[1].Total != 0 {
		t.Errorf("selected projects = %+v", rep.Projects)
	}
}

type fakeSummarizer struct {
	requests []summary.Request
	failOn   string
}

func (f *fakeSummarizer) Summarize(ctx context.Context, req summary.Request) (summary.Sections, error) {
	f.requests = append(f.requests, req)
	if f.failOn != "" && strings.Contains(req.Digest, f.failOn) {
		return summary.Sections{}, errors.New("boom")
	}
	return summary.Sections{Deliveries: "auto", Blockers: "none"}, nil
}

func TestAutofill(t *testing.T) {
	s := &fakeSummarizer{failOn: "Plan"}
	ann := &Annotations{}
	week := NewWeek(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC))

	err := Autofill(context.Background(), s, fixtureRows(), "ops", nil, week, ann)
	if err == nil || !strings.Contains(err.Error(), "Beta") {
		t.Errorf("Autofill() error = %v, want failure naming Beta", err)
	}
	if len(s.requests) != 2 {
		t.Fatalf("got %d requests, want 2", len(s.requests))
	}
	req := s.requests[0]
	if req.Week != "04/03 a 08/03" || req.S2 != "18/03 a 22/03" {
		t.Errorf("request weeks = %q, %q", req.Week, req.S2)
	}
	if !strings.Contains(req.Digest, "- Write *report* (Em Andamento) [Data: 2024-03-08]: (05/03) [Ana]: draft") {
		t.Errorf("digest = %q", req.Digest)
	}
	if ann.Project("Alpha").Deliveries != "auto" {
		t.Errorf("Alpha not filled: %+v", ann.Project("Alpha"))
	}
	if _, ok := ann.Projects["Beta"]; ok {
		t.Error("failed project should not be stored")
	}
}

func TestAnnotationsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes", "week.toml")

	ann, err := LoadAnnotations(path)
	if err != nil {
		t.Fatalf("LoadAnnotations(missing) failed: %v", err)
	}
	if diff := cmp.Diff(DefaultKPIs(), ann.KPIs); diff != "" {
		t.Errorf("missing file should seed KPIs:\n%s", diff)
	}

	ann.Responsible = "Ana"
	ann.Summary.Risk = "prazo"
	ann.SetProject("Projeto X", summary.Sections{Deliveries: "- a\n- b", S2Plan: "launch"})
	if err := ann.Save(path); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	got, err := LoadAnnotations(path)
	if err != nil {
		t.Fatalf("LoadAnnotations() failed: %v", err)
	}
	if diff := cmp.Diff(ann, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadAnnotations_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("responsible = [unterminated"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadAnnotations(path); err == nil {
		t.Error("LoadAnnotations() should fail on invalid TOML")
	}
}

func TestClean(t *testing.T) {
	got := Clean("**Bold** – “quoted” — it’s")
	if want := `Bold - "quoted" - it's`; got != want {
		t.Errorf("Clean() = %q, want %q", got, want)
	}
}

func TestRender(t *testing.T) {
	ann := &Annotations{
		Responsible: "Ana",
		Summary:     ExecutiveSummary{Victory: "**launch**"},
		KPIs:        []KPI{{Name: "SLA", Target: "2h", Actual: "1h", Reading: "Bom"}, {}},
		Impact:      "alto",
	}
	ann.SetProject("Alpha", summary.Sections{Deliveries: "- shipped", S2Plan: "- next"})
	week := NewWeek(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC))

	var buf bytes.Buffer
	if err := Render(&buf, Build(fixtureRows(), "ops", []string{"Alpha"}, ann, week)); err != nil {
		t.Fatalf("Render() failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"# Relatório de Status: OPS",
		"**Responsável:** Ana | **Semana:** 04/03 a 08/03",
		"- **Vitória:** launch",
		"### Alpha",
		"2 tarefas | 1 concluídas",
		"- shipped",
		"**Planejamento S+2: Alpha (18/03 a 22/03)**",
		"| Concluído | Ship / deploy | Bruno | 2024-03-01 | 2024-03-02 |",
		"| Em Andamento | Write report | Ana |",
		"- **SLA:** 1h / 2h (Bom)",
		"alto",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "Beta") {
		t.Error("unselected project rendered")
	}
	if strings.Count(out, "- **") != 5 {
		t.Errorf("empty KPI rows should be skipped:\n%s", out)
	}
}

func TestRender_NoProjects(t *testing.T) {
	var buf bytes.Buffer
	rep := Build(nil, "Ops", nil, nil, NewWeek(time.Now()))
	if err := Render(&buf, rep); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Nenhum.") {
		t.Errorf("empty report should say Nenhum.:\n%s", buf.String())
	}
}

func TestAnnotationsEditor_Commit(t *testing.T) {
	ann := &Annotations{}
	ann.SetProject("Alpha", summary.Sections{Deliveries: "old"})
	e := NewAnnotationsEditor(ann, []string{"Alpha", "Beta"}, NewWeek(time.Now()))

	if e.sections[0].Deliveries != "old" {
		t.Fatalf("editor should start from stored sections, got %+v", e.sections[0])
	}
	e.sections[0].Deliveries = "new"
	e.sections[1].Blockers = "none"
	e.commit()

	if ann.Project("Alpha").Deliveries != "new" || ann.Project("Beta").Blockers != "none" {
		t.Errorf("commit did not store sections: %+v", ann.Projects)
	}
}
