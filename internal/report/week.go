package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

const labelLayout = "02/01"

// Week is a reporting week, Monday to Friday by convention. Only the
// start date is stored; the label covers start through start+4.
type Week struct {
	Start time.Time
}

// NewWeek returns the week starting on the date of t.
func NewWeek(t time.Time) Week {
	y, m, d := t.Date()
	return Week{Start: time.Date(y, m, d, 0, 0, 0, 0, t.Location())}
}

// ParseWeek reads a week start. Empty input means today; ISO
// (2024-03-04) and Brazilian (04/03/2024) dates are accepted, as is natural
// language such as "last monday".
func ParseWeek(s string, now time.Time) (Week, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return NewWeek(now), nil
	}
	for _, layout := range []string{"2006-01-02", "02/01/2006"} {
		if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
			return NewWeek(t), nil
		}
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	r, err := w.Parse(s, now)
	if err != nil {
		return Week{}, fmt.Errorf("failed to parse week %q: %w", s, err)
	}
	if r == nil {
		return Week{}, fmt.Errorf("failed to parse week %q: no date found", s)
	}
	return NewWeek(r.Time), nil
}

// End is the last weekday of the week.
func (w Week) End() time.Time {
	return w.Start.AddDate(0, 0, 4)
}

// Label formats the week as "dd/mm a dd/mm".
func (w Week) Label() string {
	return w.Start.Format(labelLayout) + " a " + w.End().Format(labelLayout)
}

// S2 is the week two weeks after w.
func (w Week) S2() Week {
	return Week{Start: w.Start.AddDate(0, 0, 14)}
}
