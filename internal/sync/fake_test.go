package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dbvcapital/statusboard/internal/notion"
)

var errFake = errors.New("connection reset")

// fakeNotion is an in-memory workspace. Each database is a list of result
// pages; cursors are "c<index>".
type fakeNotion struct {
	mu sync.Mutex

	pages     map[string][][]notion.Record
	pageErrAt map[string]int

	comments    map[string][]notion.Comment
	commentErr  map[string]error
	users       map[string]string
	userCalls   map[string]int
	userErr     error
	createErr   error
	updateErr   error
	created     []string
	updates     []pageUpdate
	queryCalls  int
	commentCall int
}

type pageUpdate struct {
	PageID string
	Props  string
}

func newFakeNotion() *fakeNotion {
	return &fakeNotion{
		pages:      make(map[string][][]notion.Record),
		pageErrAt:  make(map[string]int),
		comments:   make(map[string][]notion.Comment),
		commentErr: make(map[string]error),
		users:      make(map[string]string),
		userCalls:  make(map[string]int),
	}
}

func (f *fakeNotion) addPage(dbID string, recs ...notion.Record) {
	f.pages[dbID] = append(f.pages[dbID], recs)
}

func (f *fakeNotion) QueryDatabase(ctx context.Context, dbID, cursor string) (*notion.QueryPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryCalls++

	idx := 0
	if cursor != "" {
		if _, err := fmt.Sscanf(cursor, "c%d", &idx); err != nil {
			return nil, fmt.Errorf("bad cursor %q", cursor)
		}
	}
	if at, ok := f.pageErrAt[dbID]; ok && at == idx {
		return nil, fmt.Errorf("%w: %v", notion.ErrTransport, errFake)
	}
	pages := f.pages[dbID]
	if idx >= len(pages) {
		return &notion.QueryPage{}, nil
	}
	page := &notion.QueryPage{Results: pages[idx]}
	if idx+1 < len(pages) {
		page.HasMore = true
		page.NextCursor = fmt.Sprintf("c%d", idx+1)
	}
	return page, nil
}

func (f *fakeNotion) ListComments(ctx context.Context, blockID, cursor string) (*notion.CommentPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commentCall++

	if err := f.commentErr[blockID]; err != nil {
		return nil, err
	}
	all := f.comments[blockID]
	// Two comments per page to exercise pagination.
	idx := 0
	if cursor != "" {
		fmt.Sscanf(cursor, "k%d", &idx)
	}
	end := min(idx+2, len(all))
	page := &notion.CommentPage{Comments: all[idx:end]}
	if end < len(all) {
		page.HasMore = true
		page.NextCursor = fmt.Sprintf("k%d", end)
	}
	return page, nil
}

func (f *fakeNotion) CreateComment(ctx context.Context, pageID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, pageID+": "+text)
	return nil
}

func (f *fakeNotion) RetrieveUser(ctx context.Context, userID string) (*notion.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userCalls[userID]++
	if f.userErr != nil {
		return nil, f.userErr
	}
	name, ok := f.users[userID]
	if !ok {
		return nil, &notion.APIError{Status: 404, Code: "object_not_found"}
	}
	return &notion.User{ID: userID, Name: name}, nil
}

func (f *fakeNotion) UpdatePage(ctx context.Context, pageID string, props json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, pageUpdate{PageID: pageID, Props: string(props)})
	return nil
}

// record builds a page object from property fragments.
func record(id string, props ...string) notion.Record {
	return notion.NewRecord([]byte(fmt.Sprintf(`{"id":%q,"properties":{%s}}`, id, strings.Join(props, ","))))
}

func titleProp(name, v string) string {
	return fmt.Sprintf(`%q:{"type":"title","title":[{"plain_text":%q}]}`, name, v)
}

func textProp(name, v string) string {
	return fmt.Sprintf(`%q:{"type":"rich_text","rich_text":[{"plain_text":%q}]}`, name, v)
}

func selectProp(name, v string) string {
	return fmt.Sprintf(`%q:{"type":"select","select":{"name":%q}}`, name, v)
}

func statusProp(name, v string) string {
	return fmt.Sprintf(`%q:{"type":"status","status":{"name":%q}}`, name, v)
}

func peopleProp(name string, people ...string) string {
	var parts []string
	for _, p := range people {
		parts = append(parts, fmt.Sprintf(`{"name":%q}`, p))
	}
	return fmt.Sprintf(`%q:{"type":"people","people":[%s]}`, name, strings.Join(parts, ","))
}

func relationProp(name string, ids ...string) string {
	var parts []string
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf(`{"id":%q}`, id))
	}
	return fmt.Sprintf(`%q:{"type":"relation","relation":[%s]}`, name, strings.Join(parts, ","))
}

func dateProp(name, start, end string) string {
	endJSON := "null"
	if end != "" {
		endJSON = fmt.Sprintf("%q", end)
	}
	return fmt.Sprintf(`%q:{"type":"date","date":{"start":%q,"end":%s}}`, name, start, endJSON)
}
