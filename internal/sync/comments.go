package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dbvcapital/statusboard/internal/notion"
)

// CommentLister lists a page's comment thread.
type CommentLister interface {
	ListComments(ctx context.Context, blockID, cursor string) (*notion.CommentPage, error)
}

// CommentAggregator renders a page's comment thread as a chronological log,
// one "(dd/mm) [Author]: text" line per comment.
type CommentAggregator struct {
	comments CommentLister
	users    *UserCache
}

// NewCommentAggregator creates an aggregator that names authors via users.
func NewCommentAggregator(comments CommentLister, users *UserCache) *CommentAggregator {
	return &CommentAggregator{comments: comments, users: users}
}

// Aggregate returns the log for pageID, oldest comment first. Comments with
// no text are skipped. If any page of the thread cannot be fetched the
// result is "" and the error.
func (a *CommentAggregator) Aggregate(ctx context.Context, pageID string) (string, error) {
	var lines []string
	cursor := ""
	for {
		page, err := a.comments.ListComments(ctx, pageID, cursor)
		if err != nil {
			return "", fmt.Errorf("failed to list comments for %s: %w", pageID, err)
		}
		for _, c := range page.Comments {
			if c.Text == "" {
				continue
			}
			lines = append(lines, FormatComment(c.CreatedTime, a.users.Name(ctx, c.AuthorID), c.Text))
		}
		if !page.HasMore || page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	return strings.Join(lines, "\n"), nil
}

// FormatComment renders one log line. The date is day/month in UTC and
// empty when created is zero.
func FormatComment(created time.Time, author, text string) string {
	date := ""
	if !created.IsZero() {
		date = created.UTC().Format("02/01")
	}
	return fmt.Sprintf("(%s) [%s]: %s", date, author, text)
}
