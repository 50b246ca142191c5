package dashboard

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dbvcapital/statusboard/internal/db"
	"github.com/dbvcapital/statusboard/internal/schema"
	statussync "github.com/dbvcapital/statusboard/internal/sync"
)

//go:embed templates/*.html
var templateFS embed.FS

var indexTemplate = template.Must(template.New("index.html").Funcs(template.FuncMap{
	"label": func(s schema.Status) string { return s.Label() },
	"statusClass": func(s schema.Status) string {
		return strings.ToLower(strings.ReplaceAll(string(s), " ", "-"))
	},
	"selected": func(want string, opts []string) bool {
		for _, o := range opts {
			if o == want {
				return true
			}
		}
		return false
	},
}).ParseFS(templateFS, "templates/index.html"))

// ErrSyncBusy is reported when a sync is requested while another one is
// still running in this process.
var ErrSyncBusy = errors.New("sync already running")

// ErrSyncDisabled is reported when the board runs without workspace
// credentials.
var ErrSyncDisabled = errors.New("sync is not configured")

// Syncer is the part of the sync layer the dashboard drives.
type Syncer interface {
	Run(ctx context.Context) (*statussync.Result, error)
	Update(ctx context.Context, pageID string, field statussync.Field, value string) statussync.Outcome
}

// StatsData contains task statistics
type StatsData struct {
	Area       string         `json:"area,omitempty"`
	Total      int            `json:"total"`
	ByStatus   map[string]int `json:"by_status"`
	NotStarted int            `json:"not_started"`
	InProgress int            `json:"in_progress"`
	Blocked    int            `json:"blocked"`
	Done       int            `json:"done"`
	LoadedAt   time.Time      `json:"loaded_at,omitzero"`
}

// SyncCompleteData contains sync completion information
type SyncCompleteData struct {
	TasksProcessed int           `json:"tasks_processed"`
	Message        string        `json:"message,omitempty"`
	Duration       time.Duration `json:"duration"`
}

// TaskUpdateData describes a field written back from the board.
type TaskUpdateData struct {
	TaskID  string `json:"task_id"`
	Field   string `json:"field"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// HandlerConfig wires a Handler to the cache and the sync layer.
type HandlerConfig struct {
	Cache *db.DB

	// Syncer is optional; without it the board is read-only.
	Syncer Syncer

	// Reload refreshes the cache from the snapshot after a sync.
	Reload func(ctx context.Context) (int, error)

	Logger *log.Logger
}

// Handler serves the board pages and API and turns cache reloads into
// dashboard messages.
type Handler struct {
	server *Server
	cache  *db.DB
	syncer Syncer
	reload func(ctx context.Context) (int, error)
	logger *log.Logger

	syncMu  sync.Mutex
	syncing atomic.Bool
}

// NewHandler creates a handler and registers its routes on server.
func NewHandler(server *Server, config HandlerConfig) *Handler {
	if config.Logger == nil {
		config.Logger = defaultLogger()
	}

	h := &Handler{
		server: server,
		cache:  config.Cache,
		syncer: config.Syncer,
		reload: config.Reload,
		logger: config.Logger,
	}

	server.HandleFunc("GET /{$}", h.handleIndex)
	server.HandleFunc("GET /api/tasks", h.handleTasks)
	server.HandleFunc("GET /api/stats", h.handleStats)
	server.HandleFunc("POST /api/sync", h.handleSync)
	server.HandleFunc("POST /api/tasks/{id}", h.handleUpdate)
	server.SetWelcome(h.statsMessage)

	return h
}

// OnReload broadcasts a completed cache reload followed by fresh stats.
func (h *Handler) OnReload(rows int) {
	if h.syncing.Load() {
		return
	}
	h.OnSyncComplete(SyncCompleteData{TasksProcessed: rows})
}

// OnSyncComplete handles sync and reload completion events
func (h *Handler) OnSyncComplete(data SyncCompleteData) {
	h.logger.Printf("Sync complete: %d tasks in %v", data.TasksProcessed, data.Duration)
	h.send(MessageTypeSyncComplete, data)
	h.server.Broadcast(h.statsMessage())
}

// Stats counts cached tasks by status, optionally restricted to an area.
func (h *Handler) Stats(ctx context.Context, area string) (StatsData, error) {
	counts, err := h.cache.CountByStatus(ctx, area)
	if err != nil {
		return StatsData{}, err
	}
	stats := StatsData{
		Area:       area,
		ByStatus:   make(map[string]int, len(counts)),
		NotStarted: counts[schema.StatusNotStarted],
		InProgress: counts[schema.StatusInProgress],
		Blocked:    counts[schema.StatusBlocked],
		Done:       counts[schema.StatusDone],
	}
	for status, n := range counts {
		stats.ByStatus[string(status)] = n
		stats.Total += n
	}
	if loaded, err := h.cache.LoadedAt(ctx); err == nil {
		stats.LoadedAt = loaded
	}
	return stats, nil
}

// RunSync runs a forward sync and reloads the cache. Only one sync runs at
// a time; a concurrent call returns ErrSyncBusy.
func (h *Handler) RunSync(ctx context.Context) (*statussync.Result, error) {
	if !h.syncMu.TryLock() {
		return nil, ErrSyncBusy
	}
	defer h.syncMu.Unlock()
	return h.runSyncLocked(ctx)
}

func (h *Handler) runSyncLocked(ctx context.Context) (*statussync.Result, error) {
	if h.syncer == nil {
		return nil, ErrSyncDisabled
	}
	res, err := h.syncer.Run(ctx)
	if err != nil {
		return nil, err
	}
	if h.reload != nil {
		// The sync result below is announced instead of the plain reload.
		h.syncing.Store(true)
		_, err := h.reload(ctx)
		h.syncing.Store(false)
		if err != nil {
			h.logger.Printf("Warning: cache reload after sync failed: %v", err)
		}
	}
	h.OnSyncComplete(SyncCompleteData{
		TasksProcessed: res.Rows,
		Message:        res.Message,
		Duration:       res.Duration,
	})
	return res, nil
}

type indexData struct {
	Filter      filterParams
	Areas       []string
	Projects    []string
	Statuses    []schema.Status
	Tasks       []schema.TaskRow
	Stats       StatsData
	CanSync     bool
	GeneratedAt time.Time
}

type filterParams struct {
	Area        string
	Projects    []string
	Responsible string
	Status      string
	Unassigned  bool
}

func parseFilter(r *http.Request) filterParams {
	q := r.URL.Query()
	var projects []string
	for _, p := range q["project"] {
		if p = strings.TrimSpace(p); p != "" {
			projects = append(projects, p)
		}
	}
	unassigned := q.Get("unassigned")
	return filterParams{
		Area:        strings.TrimSpace(q.Get("area")),
		Projects:    projects,
		Responsible: strings.TrimSpace(q.Get("responsible")),
		Status:      strings.TrimSpace(q.Get("status")),
		Unassigned:  unassigned == "1" || unassigned == "true" || unassigned == "on",
	}
}

func (f filterParams) query() db.ListTasksFilter {
	filter := db.ListTasksFilter{
		Area:           f.Area,
		Projects:       f.Projects,
		Responsible:    f.Responsible,
		UnassignedOnly: f.Unassigned,
	}
	if s, ok := schema.ParseStatus(f.Status); ok {
		filter.Status = s
	}
	return filter
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter := parseFilter(r)

	tasks, err := h.cache.ListTasksContext(ctx, filter.query())
	if err != nil {
		h.serverError(w, "list tasks", err)
		return
	}
	areas, err := h.cache.Areas(ctx)
	if err != nil {
		h.serverError(w, "list areas", err)
		return
	}
	projects, err := h.cache.Projects(ctx, filter.Area)
	if err != nil {
		h.serverError(w, "list projects", err)
		return
	}
	stats, err := h.Stats(ctx, filter.Area)
	if err != nil {
		h.serverError(w, "count tasks", err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err = indexTemplate.Execute(w, indexData{
		Filter:      filter,
		Areas:       areas,
		Projects:    projects,
		Statuses:    schema.Statuses,
		Tasks:       tasks,
		Stats:       stats,
		CanSync:     h.syncer != nil,
		GeneratedAt: time.Now(),
	})
	if err != nil {
		h.logger.Printf("Failed to render board: %v", err)
	}
}

func (h *Handler) handleTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.cache.ListTasksContext(r.Context(), parseFilter(r).query())
	if err != nil {
		h.serverError(w, "list tasks", err)
		return
	}
	if tasks == nil {
		tasks = []schema.TaskRow{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Stats(r.Context(), strings.TrimSpace(r.URL.Query().Get("area")))
	if err != nil {
		h.serverError(w, "count tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleSync(w http.ResponseWriter, r *http.Request) {
	res, err := h.RunSync(r.Context())
	switch {
	case errors.Is(err, ErrSyncBusy):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	case errors.Is(err, ErrSyncDisabled):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	case err != nil:
		h.logger.Printf("Sync failed: %v", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rows":     res.Rows,
		"message":  res.Message,
		"duration": res.Duration.String(),
	})
}

type updateRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	field, ok := statussync.ParseField(req.Field)
	if !ok {
		writeJSON(w, http.StatusBadRequest, statussync.Outcome{Message: "invalid field"})
		return
	}
	if h.syncer == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": ErrSyncDisabled.Error()})
		return
	}

	if !h.syncMu.TryLock() {
		writeJSON(w, http.StatusConflict, map[string]string{"error": ErrSyncBusy.Error()})
		return
	}
	defer h.syncMu.Unlock()

	ctx := r.Context()
	outcome := h.syncer.Update(ctx, id, field, req.Value)
	h.send(MessageTypeTaskUpdate, TaskUpdateData{
		TaskID:  id,
		Field:   string(field),
		OK:      outcome.OK,
		Message: outcome.Message,
	})
	if !outcome.OK {
		writeJSON(w, http.StatusBadGateway, outcome)
		return
	}

	resp := map[string]any{"ok": true, "message": outcome.Message}
	if res, err := h.runSyncLocked(ctx); err != nil {
		h.logger.Printf("Sync after update failed: %v", err)
		resp["sync_error"] = err.Error()
	} else {
		resp["sync"] = res.Message
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) statsMessage() Message {
	msg := Message{Type: MessageTypeStats, Timestamp: time.Now()}
	stats, err := h.Stats(context.Background(), "")
	if err != nil {
		h.logger.Printf("Failed to count tasks: %v", err)
		return msg
	}
	if data, err := json.Marshal(stats); err == nil {
		msg.Data = data
	}
	return msg
}

func (h *Handler) send(typ MessageType, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Printf("Failed to marshal %s data: %v", typ, err)
		return
	}
	h.server.Broadcast(Message{
		Type:      typ,
		Timestamp: time.Now(),
		Data:      data,
	})
}

func (h *Handler) serverError(w http.ResponseWriter, what string, err error) {
	h.logger.Printf("Failed to %s: %v", what, err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}
