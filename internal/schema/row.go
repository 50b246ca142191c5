// Package schema defines the flat task row that a forward sync produces and
// the canonical status vocabulary shared by every other package.
package schema

import (
	"fmt"
	"strings"
	"time"
)

// Defaults written when a record lacks the corresponding property.
const (
	DefaultTitle       = "Sem Nome"
	DefaultArea        = "Geral"
	DefaultProject     = "Avulso"
	DefaultResponsible = "Time"
	DefaultNativeState = "Não Iniciado"
)

// DateLayout is the on-disk format for Start and End.
const DateLayout = "2006-01-02"

// TaskRow is one row of the snapshot.
type TaskRow struct {
	ID             string `json:"id"`
	Area           string `json:"area"`
	Project        string `json:"project"`
	Task           string `json:"task"`
	Responsible    string `json:"responsible"`
	Start          string `json:"start_date"`
	End            string `json:"end_date"`
	Status         Status `json:"status"`
	StatusOriginal string `json:"status_original,omitempty"`
	Observation    string `json:"observation"`
}

// Validate checks the row invariants that hold at write time.
func (r *TaskRow) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("id is required")
	}
	if !r.Status.Valid() {
		return fmt.Errorf("status %q is not canonical", r.Status)
	}
	return nil
}

// Unassigned reports whether the row has no project of its own.
func (r *TaskRow) Unassigned() bool {
	switch strings.TrimSpace(r.Project) {
	case "", DefaultProject, DefaultTitle, DefaultArea:
		return true
	}
	return false
}

// StartTime parses Start; the zero time is returned when it is empty or invalid.
func (r *TaskRow) StartTime() time.Time {
	t, _ := time.Parse(DateLayout, r.Start)
	return t
}

// EndTime parses End; the zero time is returned when it is empty or invalid.
func (r *TaskRow) EndTime() time.Time {
	t, _ := time.Parse(DateLayout, r.End)
	return t
}

// ResponsibleNames splits the comma-joined responsible field.
func (r *TaskRow) ResponsibleNames() []string {
	var names []string
	for _, n := range strings.Split(r.Responsible, ",") {
		n = strings.TrimSpace(n)
		if n == "" || n == "-" {
			continue
		}
		names = append(names, n)
	}
	return names
}

// ValidateRows validates every row and rejects duplicate ids.
func ValidateRows(rows []TaskRow) error {
	seen := make(map[string]struct{}, len(rows))
	for i := range rows {
		if err := rows[i].Validate(); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		if _, dup := seen[rows[i].ID]; dup {
			return fmt.Errorf("row %d: duplicate id %s", i, rows[i].ID)
		}
		seen[rows[i].ID] = struct{}{}
	}
	return nil
}

// NormalizeDate reduces a Notion date or datetime to DateLayout.
// Unparseable input is returned trimmed so nothing is silently lost.
func NormalizeDate(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if len(v) >= len(DateLayout) {
		if t, err := time.Parse(DateLayout, v[:len(DateLayout)]); err == nil {
			return t.Format(DateLayout)
		}
	}
	return v
}
