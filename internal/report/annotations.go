package report

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/natefinch/atomic"

	"github.com/dbvcapital/statusboard/internal/summary"
)

// ExecutiveSummary is the headline block of the report.
type ExecutiveSummary struct {
	Victory      string `toml:"victory"`
	Risk         string `toml:"risk"`
	Decision     string `toml:"decision"`
	Dependencies string `toml:"dependencies"`
}

// KPI is one indicator row: actual against target.
type KPI struct {
	Name     string `toml:"name"`
	Target   string `toml:"target"`
	Actual   string `toml:"actual"`
	Variance string `toml:"variance"`
	Reading  string `toml:"reading"`
}

// Annotations is everything in the report that is typed by hand rather
// than pulled from the snapshot. It is kept in a TOML file between runs.
type Annotations struct {
	Responsible string           `toml:"responsible"`
	Summary     ExecutiveSummary `toml:"summary"`

	// Projects holds the per-project sections keyed by project name.
	Projects map[string]summary.Sections `toml:"projects"`

	KPIs         []KPI  `toml:"kpi"`
	RoutineNotes string `toml:"routine_notes"`
	Impact       string `toml:"impact"`
	Directions   string `toml:"directions"`
}

// DefaultKPIs seeds a new annotations file.
func DefaultKPIs() []KPI {
	return []KPI{
		{Name: "Vendas", Target: "100", Actual: "80", Variance: "-20%", Reading: "Baixo"},
		{Name: "SLA", Target: "2h", Actual: "1h", Variance: "Ok", Reading: "Bom"},
	}
}

// LoadAnnotations reads path. A missing file yields empty annotations
// seeded with DefaultKPIs.
func LoadAnnotations(path string) (*Annotations, error) {
	a := &Annotations{Projects: make(map[string]summary.Sections)}
	if _, err := toml.DecodeFile(path, a); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			a.KPIs = DefaultKPIs()
			return a, nil
		}
		return nil, fmt.Errorf("failed to read annotations %s: %w", path, err)
	}
	if a.Projects == nil {
		a.Projects = make(map[string]summary.Sections)
	}
	return a, nil
}

// Save writes the annotations to path, replacing it atomically.
func (a *Annotations) Save(path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(a); err != nil {
		return fmt.Errorf("failed to encode annotations: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("failed to write annotations %s: %w", path, err)
	}
	return nil
}

// Project returns the sections recorded for name.
func (a *Annotations) Project(name string) summary.Sections {
	return a.Projects[name]
}

// SetProject records the sections for name.
func (a *Annotations) SetProject(name string, s summary.Sections) {
	if a.Projects == nil {
		a.Projects = make(map[string]summary.Sections)
	}
	a.Projects[name] = s
}
