package sync

import (
	"fmt"

	"github.com/dbvcapital/statusboard/internal/notion"
	"github.com/dbvcapital/statusboard/internal/schema"
)

// Layout names.
const (
	LayoutProjects = "projects"
	LayoutDemands  = "demands"
)

// Layout describes where each snapshot column lives in the workspace. Every
// field list holds candidate property names tried in order.
type Layout struct {
	Name string

	// ProjectsDB is empty when the workspace has no projects database.
	ProjectsDB string
	TasksDB    string

	ProjectName []string
	ProjectArea []string

	TaskTitle   []string
	Responsible []string
	TaskArea    []string
	ProjectLink []string
	StartDate   []string
	DueDate     []string
	DateRange   []string
	Status      []string
	Notes       []string

	// StatusKind is KindSelect or KindStatus, the encoding used when a
	// status is written back.
	StatusKind     notion.Kind
	StatusFallback schema.Status
	NativeLabels   map[schema.Status]string

	// IncludeOriginalStatus writes the native status label to the snapshot.
	IncludeOriginalStatus bool

	// PinNotes appends the notes property to the comment log as
	// "(Nota Fixa): ..." instead of using it only when there are no comments.
	PinNotes bool
}

// ProjectsLayout is the two-database workspace: a projects database joined
// to a tasks database through a relation.
func ProjectsLayout(projectsDB, tasksDB string) Layout {
	return Layout{
		Name:           LayoutProjects,
		ProjectsDB:     projectsDB,
		TasksDB:        tasksDB,
		ProjectName:    []string{"Projeto"},
		ProjectArea:    []string{"Área"},
		TaskTitle:      []string{"Tarefa"},
		Responsible:    []string{"Responsável"},
		TaskArea:       []string{"Área"},
		ProjectLink:    []string{"Projeto"},
		StartDate:      []string{"Data Inicio"},
		DueDate:        []string{"Data Entrega"},
		Status:         []string{"Status"},
		Notes:          []string{"Observação"},
		StatusKind:     notion.KindSelect,
		StatusFallback: schema.StatusNotStarted,
		NativeLabels:   copyLabels(schema.DefaultNativeLabels),
	}
}

// DemandsLayout is the single-database workspace where each record carries
// its own project name.
func DemandsLayout(demandsDB string) Layout {
	return Layout{
		Name:                  LayoutDemands,
		TasksDB:               demandsDB,
		TaskTitle:             []string{"Tarefa", "Name", "Nome"},
		Responsible:           []string{"Responsável", "Assignee", "Pessoa"},
		TaskArea:              []string{"Área", "Team"},
		ProjectLink:           []string{"Projeto", "Project"},
		DateRange:             []string{"Data", "Prazo", "Timeline"},
		Status:                []string{"Status"},
		Notes:                 []string{"Observação"},
		StatusKind:            notion.KindStatus,
		StatusFallback:        schema.StatusInProgress,
		NativeLabels:          copyLabels(schema.DefaultNativeLabels),
		IncludeOriginalStatus: true,
		PinNotes:              true,
	}
}

// Validate checks that the layout can drive a sync.
func (l *Layout) Validate() error {
	if l.TasksDB == "" {
		return fmt.Errorf("layout %s: tasks database id is required", l.Name)
	}
	if l.Name == LayoutProjects && l.ProjectsDB == "" {
		return fmt.Errorf("layout %s: projects database id is required", l.Name)
	}
	if len(l.TaskTitle) == 0 || len(l.Status) == 0 || len(l.Notes) == 0 {
		return fmt.Errorf("layout %s: title, status and notes properties are required", l.Name)
	}
	if l.StatusKind != notion.KindSelect && l.StatusKind != notion.KindStatus {
		return fmt.Errorf("layout %s: status kind must be select or status, got %s", l.Name, l.StatusKind)
	}
	return nil
}

func copyLabels(m map[schema.Status]string) map[schema.Status]string {
	out := make(map[schema.Status]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
