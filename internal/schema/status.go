package schema

import (
	"strings"
)

// Status is the canonical task status used locally, regardless of the
// labels configured in the Notion workspace.
type Status string

const (
	StatusNotStarted Status = "Not Started"
	StatusInProgress Status = "In Progress"
	StatusBlocked    Status = "Blocked"
	StatusDone       Status = "Done"
)

// Statuses lists the canonical values in board order.
var Statuses = []Status{StatusNotStarted, StatusInProgress, StatusBlocked, StatusDone}

var statusLabels = map[Status]string{
	StatusNotStarted: "Não Iniciado",
	StatusInProgress: "Em Andamento",
	StatusBlocked:    "Bloqueado",
	StatusDone:       "Concluído",
}

// Label returns the Portuguese display label shown on the board and in reports.
func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// Valid reports whether s is one of the four canonical values.
func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// ParseStatus accepts a canonical value or its display label, case-insensitively.
func ParseStatus(v string) (Status, bool) {
	v = strings.TrimSpace(v)
	for _, s := range Statuses {
		if strings.EqualFold(v, string(s)) || strings.EqualFold(v, s.Label()) {
			return s, true
		}
	}
	return "", false
}

// statusRule maps a keyword set to a canonical status.
type statusRule struct {
	status   Status
	keywords []string
}

// Rules are checked in this order; the first rule with a matching keyword wins.
var statusRules = []statusRule{
	{StatusDone, []string{"conclu", "done", "final"}},
	{StatusInProgress, []string{"andamento", "aprov"}},
	{StatusNotStarted, []string{"não", "nao", "to do", "backlog"}},
	{StatusBlocked, []string{"cancel", "stand", "trav", "block", "risco"}},
}

// Normalizer maps native Notion status labels onto canonical statuses.
type Normalizer struct {
	// Fallback is used when no keyword matches. Zero value means Not Started.
	Fallback Status
}

// Normalize matches the lowercased native label against the keyword rules.
func (n Normalizer) Normalize(native string) Status {
	l := strings.ToLower(native)
	for _, r := range statusRules {
		for _, k := range r.keywords {
			if strings.Contains(l, k) {
				return r.status
			}
		}
	}
	if n.Fallback.Valid() {
		return n.Fallback
	}
	return StatusNotStarted
}

// DefaultNativeLabels maps canonical statuses back to the labels used by the
// tasks database's status select.
var DefaultNativeLabels = map[Status]string{
	StatusDone:       "Concluída",
	StatusInProgress: "Em andamento",
	StatusNotStarted: "Não iniciado",
	StatusBlocked:    "Stand By",
}

// NativeLabel resolves v (canonical value or display label) through labels.
// Values without a mapping entry are returned unchanged.
func NativeLabel(labels map[Status]string, v string) string {
	s, ok := ParseStatus(v)
	if !ok {
		return v
	}
	if native, ok := labels[s]; ok {
		return native
	}
	return v
}
