package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dbvcapital/statusboard/internal/schema"
	"github.com/dbvcapital/statusboard/internal/snapshot"
)

// ErrNoTasks is returned by Run when the tasks database yields no rows.
var ErrNoTasks = errors.New("0 tarefas")

// Options configures a Syncer.
type Options struct {
	Layout       Layout
	SnapshotPath string

	// Users is shared across runs when set; otherwise each run starts with
	// an empty cache.
	Users *UserCache

	// Now supplies the fallback date for undated tasks.
	Now func() time.Time

	Logger *log.Logger
}

// Result describes a completed forward sync.
type Result struct {
	Rows     int
	Projects int
	Path     string
	Message  string
	Duration time.Duration
}

// syncer implements the Syncer interface.
type syncer struct {
	client Notion
	opts   Options
	writer *Writer
	logger *log.Logger
}

// New creates a Syncer.
//
// If opts.Logger is nil, a default logger writing to stderr is used.
//
// Example:
//
//	client := notion.NewClient(token)
//	s := sync.New(client, sync.Options{
//	    Layout:       sync.ProjectsLayout(projectsDB, tasksDB),
//	    SnapshotPath: "tarefas_dbv.csv",
//	})
func New(client Notion, opts Options) Syncer {
	if opts.Logger == nil {
		opts.Logger = defaultLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &syncer{client: client, opts: opts, logger: opts.Logger}
	s.writer = NewWriter(client, &s.opts.Layout, opts.Logger)
	return s
}

func defaultLogger() *log.Logger {
	return log.New(os.Stderr, "[sync] ", log.LstdFlags)
}

// Run implements Syncer.Run.
func (s *syncer) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	layout := &s.opts.Layout
	s.logger.Printf("Starting sync (layout=%s)", layout.Name)

	users := s.opts.Users
	if users == nil {
		users = NewUserCache(s.client, s.logger)
	}

	projects, err := NewProjectResolver(s.client, layout, s.logger).Resolve(ctx)
	if err != nil {
		s.logger.Printf("WARNING: %v (continuing with partial project map)", err)
	}

	tasks := NewTaskSynchronizer(s.client, NewCommentAggregator(s.client, users), layout, s.opts.Now, s.logger)
	rows, err := tasks.Fetch(ctx, projects)
	if err != nil {
		return nil, fmt.Errorf("sync incomplete after %d rows: %w", len(rows), err)
	}
	if len(rows) == 0 {
		return nil, ErrNoTasks
	}

	written, err := snapshot.Write(s.opts.SnapshotPath, rows, snapshot.Options{
		IncludeOriginalStatus: layout.IncludeOriginalStatus,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write snapshot: %w", err)
	}

	res := &Result{
		Rows:     written.Rows,
		Projects: len(projects),
		Path:     written.Path,
		Message:  written.Message,
		Duration: time.Since(start),
	}
	s.logger.Printf("Sync complete: %d tasks, %d projects in %s", res.Rows, res.Projects, res.Duration.Round(time.Millisecond))
	return res, nil
}

// Update implements Syncer.Update.
func (s *syncer) Update(ctx context.Context, pageID string, field Field, value string) Outcome {
	return s.writer.Update(ctx, pageID, field, value)
}

// Push implements Syncer.Push.
func (s *syncer) Push(ctx context.Context, edited, current []schema.TaskRow) PushResult {
	return s.writer.Push(ctx, edited, current)
}
