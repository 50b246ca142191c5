package sync

import (
	"context"
	"fmt"
	"log"

	"github.com/dbvcapital/statusboard/internal/notion"
	"github.com/dbvcapital/statusboard/internal/schema"
)

// Querier pages through a database.
type Querier interface {
	QueryDatabase(ctx context.Context, dbID, cursor string) (*notion.QueryPage, error)
}

// Project is one entry of the project lookup table.
type Project struct {
	Name string
	Area string
}

// ProjectResolver builds the id → Project table used to join tasks to their
// project.
type ProjectResolver struct {
	db     Querier
	layout *Layout
	logger *log.Logger
}

// NewProjectResolver creates a resolver for layout.
func NewProjectResolver(db Querier, layout *Layout, logger *log.Logger) *ProjectResolver {
	if logger == nil {
		logger = defaultLogger()
	}
	return &ProjectResolver{db: db, layout: layout, logger: logger}
}

// Resolve reads every project. On a request error it stops and returns the
// entries collected so far together with the error. Layouts without a
// projects database resolve to an empty table.
func (r *ProjectResolver) Resolve(ctx context.Context) (map[string]Project, error) {
	projects := make(map[string]Project)
	if r.layout.ProjectsDB == "" {
		return projects, nil
	}

	err := forEachRecord(ctx, r.db, r.layout.ProjectsDB, func(rec notion.Record) {
		projects[notion.NormalizeID(rec.ID)] = Project{
			Name: rec.TextOr(schema.DefaultTitle, r.layout.ProjectName...),
			Area: rec.TextOr(schema.DefaultArea, r.layout.ProjectArea...),
		}
	})
	if err != nil {
		return projects, fmt.Errorf("failed to resolve projects after %d entries: %w", len(projects), err)
	}

	r.logger.Printf("Resolved %d projects", len(projects))
	return projects, nil
}

// forEachRecord pages through dbID and calls fn for every record. It stops
// at the first request error.
func forEachRecord(ctx context.Context, db Querier, dbID string, fn func(notion.Record)) error {
	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := db.QueryDatabase(ctx, dbID, cursor)
		if err != nil {
			return err
		}
		for _, rec := range page.Results {
			fn(rec)
		}
		if !page.HasMore || page.NextCursor == "" {
			return nil
		}
		cursor = page.NextCursor
	}
}
