package report

import (
	"github.com/charmbracelet/huh"

	"github.com/dbvcapital/statusboard/internal/summary"
)

// NewProjectPicker builds a form that selects projects from available
// into selected.
func NewProjectPicker(available []string, selected *[]string) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Projetos").
				Description("Selecione os projetos do relatório").
				Options(huh.NewOptions(available...)...).
				Value(selected),
		),
	)
}

// AnnotationsEditor edits annotations interactively: one page for the
// header and executive summary, one per project, and one for routine and
// closing notes.
type AnnotationsEditor struct {
	form     *huh.Form
	ann      *Annotations
	projects []string
	// sections are bound to the per-project fields and copied back into
	// ann when the form completes.
	sections []summary.Sections
}

// NewAnnotationsEditor builds the form for ann and projects.
func NewAnnotationsEditor(ann *Annotations, projects []string, week Week) *AnnotationsEditor {
	e := &AnnotationsEditor{
		ann:      ann,
		projects: projects,
		sections: make([]summary.Sections, len(projects)),
	}
	s2 := week.S2().Label()

	groups := []*huh.Group{
		huh.NewGroup(
			huh.NewNote().
				Title("Relatório "+week.Label()).
				Description("S+2: "+s2),
			huh.NewInput().Title("Responsável").Value(&ann.Responsible),
			huh.NewInput().Title("Vitória").Value(&ann.Summary.Victory),
			huh.NewInput().Title("Risco").Value(&ann.Summary.Risk),
			huh.NewInput().Title("Decisão").Value(&ann.Summary.Decision),
			huh.NewInput().Title("Dependências").Value(&ann.Summary.Dependencies),
		),
	}

	for i, name := range projects {
		e.sections[i] = ann.Project(name)
		s := &e.sections[i]
		groups = append(groups, huh.NewGroup(
			huh.NewNote().Title(name),
			huh.NewText().Title("Entregas").Value(&s.Deliveries),
			huh.NewText().Title("Travas").Value(&s.Blockers),
			huh.NewText().Title("Ações (S+1)").Value(&s.NextActions),
			huh.NewText().Title("Planejamento S+2 ("+s2+")").Value(&s.S2Plan),
		))
	}

	groups = append(groups, huh.NewGroup(
		huh.NewInput().Title("Obs Rotina").Value(&ann.RoutineNotes),
		huh.NewText().Title("Impacto").Value(&ann.Impact),
		huh.NewText().Title("Direcionamentos").Value(&ann.Directions),
	))

	e.form = huh.NewForm(groups...)
	return e
}

// Run shows the form. The project sections are stored only when the form
// completes; huh.ErrUserAborted is returned when the user quits.
func (e *AnnotationsEditor) Run() error {
	if err := e.form.Run(); err != nil {
		return err
	}
	e.commit()
	return nil
}

func (e *AnnotationsEditor) commit() {
	for i, name := range e.projects {
		e.ann.SetProject(name, e.sections[i])
	}
}
