package sync

import (
	"context"
	"encoding/json"

	"github.com/dbvcapital/statusboard/internal/notion"
	"github.com/dbvcapital/statusboard/internal/schema"
)

// Notion is the part of the API client the sync layer depends on.
// *notion.Client satisfies it.
type Notion interface {
	QueryDatabase(ctx context.Context, dbID, cursor string) (*notion.QueryPage, error)
	ListComments(ctx context.Context, blockID, cursor string) (*notion.CommentPage, error)
	CreateComment(ctx context.Context, pageID, text string) error
	RetrieveUser(ctx context.Context, userID string) (*notion.User, error)
	UpdatePage(ctx context.Context, pageID string, properties json.RawMessage) error
}

// Syncer moves task data between the workspace and the local snapshot.
//
// Forward sync (Run) rebuilds the snapshot from scratch. Reverse sync
// (Update, Push) writes single fields back to the workspace; callers run a
// forward sync afterwards to see the result.
//
// There is no locking across processes: two concurrent syncs race on the
// snapshot file and the last rename wins.
type Syncer interface {
	// Run pulls projects and tasks, normalizes them and replaces the
	// snapshot. On failure the previous snapshot is left untouched.
	//
	// Example:
	//   res, err := s.Run(ctx)
	//   fmt.Println(res.Message) // "42 tarefas atualizadas."
	Run(ctx context.Context) (*Result, error)

	// Update writes one field of one page back to the workspace.
	// It never retries and never panics; failures are reported in the
	// returned Outcome.
	//
	// Example:
	//   out := s.Update(ctx, pageID, FieldStatus, "Blocked")
	Update(ctx context.Context, pageID string, field Field, value string) Outcome

	// Push diffs an edited table against the current snapshot and calls
	// Update for every changed cell.
	Push(ctx context.Context, edited, current []schema.TaskRow) PushResult
}
