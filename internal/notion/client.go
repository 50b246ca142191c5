// Package notion is a small client for the parts of the Notion REST API the
// status board needs: database queries, comments, users and page updates.
//
// Page objects are kept as raw JSON and decoded lazily, one property at a
// time, by Record (see props.go).
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"golang.org/x/oauth2"
)

const (
	// DefaultBaseURL is the public API endpoint.
	DefaultBaseURL = "https://api.notion.com"

	// APIVersion is sent as the Notion-Version header.
	APIVersion = "2022-06-28"

	// DefaultPageSize is the maximum page size the API accepts.
	DefaultPageSize = 100

	defaultTimeout = 30 * time.Second
)

// Client talks to the Notion API with a static integration token.
type Client struct {
	baseURL  string
	pageSize int
	http     *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another endpoint (used by tests).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithPageSize overrides the page size for queries and comment listings.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 && n <= DefaultPageSize {
			c.pageSize = n
		}
	}
}

// WithTransport sets the base transport under the bearer token injector.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.http.Transport.(*oauth2.Transport).Base = rt
	}
}

// NewClient creates a client authenticated with token.
func NewClient(token string, opts ...Option) *Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	c := &Client{
		baseURL:  DefaultBaseURL,
		pageSize: DefaultPageSize,
		http: &http.Client{
			Timeout:   defaultTimeout,
			Transport: &oauth2.Transport{Source: src},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// QueryPage is one page of database query results.
type QueryPage struct {
	Results    []Record
	HasMore    bool
	NextCursor string
}

// Comment is a single comment on a page.
type Comment struct {
	ID          string
	AuthorID    string
	CreatedTime time.Time
	Text        string
}

// CommentPage is one page of a comment thread.
type CommentPage struct {
	Comments   []Comment
	HasMore    bool
	NextCursor string
}

// User is a workspace member. Name may be empty.
type User struct {
	ID   string
	Name string
}

// PropertyInfo describes one column of a database.
type PropertyInfo struct {
	Name string
	Kind Kind
	Tag  string
}

// Database is the schema of a database.
type Database struct {
	ID         string
	Title      string
	Properties []PropertyInfo
}

// NormalizeID converts a UUID in any accepted form (undashed, braced, urn)
// into the dashed form the API returns. Other strings are only trimmed.
func NormalizeID(id string) string {
	id = strings.TrimSpace(id)
	if u, err := uuid.Parse(id); err == nil {
		return u.String()
	}
	return id
}

// QueryDatabase fetches one page of records. An empty cursor starts at the
// beginning.
func (c *Client) QueryDatabase(ctx context.Context, dbID, cursor string) (*QueryPage, error) {
	body, err := sjson.SetBytes([]byte(`{}`), "page_size", c.pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	if cursor != "" {
		if body, err = sjson.SetBytes(body, "start_cursor", cursor); err != nil {
			return nil, fmt.Errorf("failed to build query: %w", err)
		}
	}

	resp, err := c.do(ctx, http.MethodPost, "/v1/databases/"+url.PathEscape(NormalizeID(dbID))+"/query", nil, body)
	if err != nil {
		return nil, err
	}
	results := resp.Get("results")
	if !results.IsArray() {
		return nil, fmt.Errorf("%w: query has no results array", ErrMalformedResponse)
	}

	page := &QueryPage{
		HasMore:    resp.Get("has_more").Bool(),
		NextCursor: resp.Get("next_cursor").String(),
	}
	for _, r := range results.Array() {
		page.Results = append(page.Results, recordFromResult(r))
	}
	return page, nil
}

// ListComments fetches one page of the comment thread on a page or block.
func (c *Client) ListComments(ctx context.Context, blockID, cursor string) (*CommentPage, error) {
	q := url.Values{}
	q.Set("block_id", blockID)
	q.Set("page_size", fmt.Sprint(c.pageSize))
	if cursor != "" {
		q.Set("start_cursor", cursor)
	}

	resp, err := c.do(ctx, http.MethodGet, "/v1/comments", q, nil)
	if err != nil {
		return nil, err
	}
	results := resp.Get("results")
	if !results.IsArray() {
		return nil, fmt.Errorf("%w: comments have no results array", ErrMalformedResponse)
	}

	page := &CommentPage{
		HasMore:    resp.Get("has_more").Bool(),
		NextCursor: resp.Get("next_cursor").String(),
	}
	for _, r := range results.Array() {
		var text strings.Builder
		for _, frag := range r.Get("rich_text").Array() {
			text.WriteString(frag.Get("plain_text").String())
		}
		created, _ := time.Parse(time.RFC3339, r.Get("created_time").String())
		page.Comments = append(page.Comments, Comment{
			ID:          r.Get("id").String(),
			AuthorID:    r.Get("created_by.id").String(),
			CreatedTime: created,
			Text:        text.String(),
		})
	}
	return page, nil
}

// CreateComment posts a new top-level comment on a page.
func (c *Client) CreateComment(ctx context.Context, pageID, text string) error {
	rich, err := richText(text)
	if err != nil {
		return err
	}
	body, err := sjson.SetBytes([]byte(`{}`), "parent.page_id", pageID)
	if err == nil {
		body, err = sjson.SetRawBytes(body, "rich_text", rich)
	}
	if err != nil {
		return fmt.Errorf("failed to build comment: %w", err)
	}
	_, err = c.do(ctx, http.MethodPost, "/v1/comments", nil, body)
	return err
}

// RetrieveUser fetches a workspace member by id.
func (c *Client) RetrieveUser(ctx context.Context, userID string) (*User, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v1/users/"+url.PathEscape(userID), nil, nil)
	if err != nil {
		return nil, err
	}
	return &User{ID: resp.Get("id").String(), Name: resp.Get("name").String()}, nil
}

// UpdatePage overwrites the given properties of a page. properties is a JSON
// object keyed by property name, as built by TextProperty and OptionProperty.
func (c *Client) UpdatePage(ctx context.Context, pageID string, properties json.RawMessage) error {
	body, err := sjson.SetRawBytes([]byte(`{}`), "properties", properties)
	if err != nil {
		return fmt.Errorf("failed to build page update: %w", err)
	}
	_, err = c.do(ctx, http.MethodPatch, "/v1/pages/"+url.PathEscape(pageID), nil, body)
	return err
}

// RetrieveDatabase fetches a database's title and property schema.
// Properties are returned in the order the API lists them.
func (c *Client) RetrieveDatabase(ctx context.Context, dbID string) (*Database, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v1/databases/"+url.PathEscape(NormalizeID(dbID)), nil, nil)
	if err != nil {
		return nil, err
	}
	db := &Database{
		ID:    resp.Get("id").String(),
		Title: resp.Get("title.0.plain_text").String(),
	}
	resp.Get("properties").ForEach(func(key, value gjson.Result) bool {
		tag := value.Get("type").String()
		db.Properties = append(db.Properties, PropertyInfo{Name: key.String(), Kind: ParseKind(tag), Tag: tag})
		return true
	})
	return db, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte) (gjson.Result, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, err)
	}
	req.Header.Set("Notion-Version", APIVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%w: reading %s %s: %v", ErrTransport, method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		if gjson.ValidBytes(data) {
			parsed := gjson.ParseBytes(data)
			apiErr.Code = parsed.Get("code").String()
			apiErr.Message = parsed.Get("message").String()
		}
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return gjson.Result{}, apiErr
	}

	if !gjson.ValidBytes(data) {
		return gjson.Result{}, fmt.Errorf("%w: %s %s", ErrMalformedResponse, method, path)
	}
	return gjson.ParseBytes(data), nil
}
