package sync

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dbvcapital/statusboard/internal/notion"
	"github.com/dbvcapital/statusboard/internal/schema"
)

// TaskSynchronizer turns task records into snapshot rows.
type TaskSynchronizer struct {
	db         Querier
	comments   *CommentAggregator
	layout     *Layout
	normalizer schema.Normalizer
	now        func() time.Time
	logger     *log.Logger
}

// NewTaskSynchronizer creates a synchronizer. now supplies the date used
// for records without any date; nil means time.Now.
func NewTaskSynchronizer(db Querier, comments *CommentAggregator, layout *Layout, now func() time.Time, logger *log.Logger) *TaskSynchronizer {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = defaultLogger()
	}
	return &TaskSynchronizer{
		db:         db,
		comments:   comments,
		layout:     layout,
		normalizer: schema.Normalizer{Fallback: layout.StatusFallback},
		now:        now,
		logger:     logger,
	}
}

// Fetch pages through the tasks database. On a request error it returns the
// rows built so far and the error. A page id seen twice keeps its first row.
func (s *TaskSynchronizer) Fetch(ctx context.Context, projects map[string]Project) ([]schema.TaskRow, error) {
	var rows []schema.TaskRow
	seen := make(map[string]struct{})

	err := forEachRecord(ctx, s.db, s.layout.TasksDB, func(rec notion.Record) {
		if rec.ID == "" {
			s.logger.Printf("WARNING: skipping task record without id")
			return
		}
		if _, dup := seen[rec.ID]; dup {
			s.logger.Printf("WARNING: skipping duplicate task %s", rec.ID)
			return
		}
		seen[rec.ID] = struct{}{}
		rows = append(rows, s.Row(ctx, rec, projects))
	})
	if err != nil {
		return rows, err
	}
	return rows, nil
}

// Row builds the snapshot row for one record. It never fails: every column
// falls back to its default.
func (s *TaskSynchronizer) Row(ctx context.Context, rec notion.Record, projects map[string]Project) schema.TaskRow {
	l := s.layout
	native := rec.TextOr(schema.DefaultNativeState, l.Status...)

	row := schema.TaskRow{
		ID:          rec.ID,
		Task:        rec.TextOr(schema.DefaultTitle, l.TaskTitle...),
		Responsible: rec.TextOr(schema.DefaultResponsible, l.Responsible...),
		Status:      s.normalizer.Normalize(native),
		Observation: s.observation(ctx, rec),
	}
	if l.IncludeOriginalStatus {
		row.StatusOriginal = native
	}
	row.Project, row.Area = s.project(rec, projects)
	row.Start, row.End = s.dates(rec)
	return row
}

func (s *TaskSynchronizer) project(rec notion.Record, projects map[string]Project) (name, area string) {
	fallbackArea := rec.TextOr(schema.DefaultArea, s.layout.TaskArea...)

	p, err := rec.Property(s.layout.ProjectLink...)
	if err != nil {
		return schema.DefaultProject, fallbackArea
	}
	if p.Kind == notion.KindRelation {
		id, err := p.Relation()
		if err != nil {
			return schema.DefaultProject, fallbackArea
		}
		proj, ok := projects[notion.NormalizeID(id)]
		if !ok {
			return schema.DefaultProject, fallbackArea
		}
		return proj.Name, proj.Area
	}

	// A select or text project column names the project directly.
	if text, err := p.Text(); err == nil && strings.TrimSpace(text) != "" {
		return text, fallbackArea
	}
	return schema.DefaultProject, fallbackArea
}

func (s *TaskSynchronizer) dates(rec notion.Record) (start, end string) {
	l := s.layout
	startDate, hasStart := rec.DateOr(l.StartDate...)
	due, hasDue := rec.DateOr(l.DueDate...)
	span, hasSpan := rec.DateOr(l.DateRange...)

	switch {
	case hasStart:
		start = startDate.Start
	case hasDue:
		start = due.Start
	case hasSpan:
		start = span.Start
	}

	switch {
	case hasDue:
		end = due.Start
	case hasSpan && span.End != "":
		end = span.End
	case hasSpan:
		end = span.Start
	default:
		end = start
	}

	if start == "" {
		today := s.now().Format(schema.DateLayout)
		return today, today
	}
	return schema.NormalizeDate(start), schema.NormalizeDate(end)
}

func (s *TaskSynchronizer) observation(ctx context.Context, rec notion.Record) string {
	notes := rec.TextOr("", s.layout.Notes...)

	thread, err := s.comments.Aggregate(ctx, rec.ID)
	if err != nil {
		s.logger.Printf("WARNING: %v (using notes)", err)
		thread = ""
	}

	if s.layout.PinNotes {
		var parts []string
		if thread != "" {
			parts = append(parts, thread)
		}
		if notes != "" {
			parts = append(parts, fmt.Sprintf("(Nota Fixa): %s", notes))
		}
		return strings.Join(parts, "\n")
	}
	if thread != "" {
		return thread
	}
	return notes
}
