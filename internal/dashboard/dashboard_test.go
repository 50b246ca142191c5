package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/dbvcapital/statusboard/internal/db"
	"github.com/dbvcapital/statusboard/internal/schema"
	statussync "github.com/dbvcapital/statusboard/internal/sync"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func setupCache(t *testing.T) *db.DB {
	t.Helper()
	cache, err := db.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("db.Open() failed: %v", err)
	}
	t.Cleanup(func() { cache.Close() })
	if err := cache.InitSchema(); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}
	err = cache.ReplaceTasks([]schema.TaskRow{
		{ID: "p1", Area: "Ops", Project: "Alpha", Task: "Write report", Responsible: "Ana", Start: "2024-03-05", End: "2024-03-10", Status: schema.StatusInProgress, Observation: "(05/03) [Ana]: draft"},
		{ID: "p2", Area: "Ops", Project: "Avulso", Task: "Loose end", Responsible: "Bruno", Start: "2024-03-01", End: "2024-03-01", Status: schema.StatusBlocked},
		{ID: "p3", Area: "Finance", Project: "Beta", Task: "Invoice <b>", Responsible: "Carla", Start: "2024-03-02", End: "2024-03-02", Status: schema.StatusDone},
	})
	if err != nil {
		t.Fatalf("ReplaceTasks() failed: %v", err)
	}
	return cache
}

type fakeSyncer struct {
	runs    atomic.Int32
	runErr  error
	block   chan struct{}
	updates []string
	outcome statussync.Outcome
}

func (f *fakeSyncer) Run(ctx context.Context) (*statussync.Result, error) {
	f.runs.Add(1)
	if f.block != nil {
		<-f.block
	}
	if f.runErr != nil {
		return nil, f.runErr
	}
	return &statussync.Result{Rows: 3, Message: "3 tarefas atualizadas.", Duration: time.Second}, nil
}

func (f *fakeSyncer) Update(ctx context.Context, pageID string, field statussync.Field, value string) statussync.Outcome {
	f.updates = append(f.updates, pageID+"|"+string(field)+"|"+value)
	return f.outcome
}

func newTestHandler(t *testing.T, syncer Syncer) (*Server, *Handler, *httptest.Server) {
	t.Helper()
	server := NewServer(&Config{Port: 0, Logger: quietLogger()})
	h := NewHandler(server, HandlerConfig{
		Cache:  setupCache(t),
		Syncer: syncer,
		Logger: quietLogger(),
	})
	ts := httptest.NewServer(server.mux)
	t.Cleanup(ts.Close)
	return server, h, ts
}

func TestServerStartStop(t *testing.T) {
	server := NewServer(&Config{Port: 0, Host: "127.0.0.1", Logger: quietLogger()})

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}

	addr := server.Addr()
	if addr == "" || strings.HasSuffix(addr, ":0") {
		t.Fatalf("unexpected server address %q", addr)
	}

	resp, err := http.Get("http://" + addr + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	var health map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&health)
	resp.Body.Close()
	if health["status"] != "ok" {
		t.Errorf("health = %v", health)
	}

	if err := server.Stop(); err != nil {
		t.Fatalf("Failed to stop server: %v", err)
	}
}

func TestWebSocketWelcomeAndBroadcast(t *testing.T) {
	server := NewServer(&Config{Port: 0, Host: "127.0.0.1", Logger: quietLogger()})
	h := NewHandler(server, HandlerConfig{Cache: setupCache(t), Logger: quietLogger()})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+server.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	msg := readMessage(ctx, t, conn)
	if msg.Type != MessageTypeStats {
		t.Fatalf("welcome type = %s, want %s", msg.Type, MessageTypeStats)
	}
	var stats StatsData
	if err := json.Unmarshal(msg.Data, &stats); err != nil {
		t.Fatalf("Failed to unmarshal stats: %v", err)
	}
	if stats.Total != 3 || stats.Blocked != 1 || stats.Done != 1 {
		t.Errorf("welcome stats = %+v", stats)
	}
	if server.ClientCount() != 1 {
		t.Errorf("ClientCount() = %d, want 1", server.ClientCount())
	}

	h.OnReload(3)

	msg = readMessage(ctx, t, conn)
	if msg.Type != MessageTypeSyncComplete {
		t.Fatalf("message type = %s, want %s", msg.Type, MessageTypeSyncComplete)
	}
	var done SyncCompleteData
	if err := json.Unmarshal(msg.Data, &done); err != nil {
		t.Fatal(err)
	}
	if done.TasksProcessed != 3 {
		t.Errorf("TasksProcessed = %d, want 3", done.TasksProcessed)
	}

	if msg = readMessage(ctx, t, conn); msg.Type != MessageTypeStats {
		t.Errorf("message type = %s, want %s", msg.Type, MessageTypeStats)
	}
}

func readMessage(ctx context.Context, t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	return msg
}

func TestIndex(t *testing.T) {
	_, _, ts := newTestHandler(t, nil)

	tests := []struct {
		name     string
		query    string
		contains []string
		excludes []string
	}{
		{"all", "", []string{"Write report", "Loose end", "Invoice &lt;b&gt;", "Em Andamento"}, []string{"Invoice <b>", "Sincronizar</button>"}},
		{"area", "?area=ops", []string{"Write report", "Loose end"}, []string{"Invoice"}},
		{"unassigned", "?unassigned=1", []string{"Loose end"}, []string{"Write report"}},
		{"responsible", "?responsible=Carla", []string{"Invoice"}, []string{"Loose end"}},
		{"status label", "?status=Bloqueado", []string{"Loose end"}, []string{"Write report"}},
		{"empty", "?project=Nope", []string{"Nenhuma tarefa encontrada."}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(ts.URL + "/" + tt.query)
			if err != nil {
				t.Fatal(err)
			}
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
			}
			page := string(body)
			for _, s := range tt.contains {
				if !strings.Contains(page, s) {
					t.Errorf("page missing %q", s)
				}
			}
			for _, s := range tt.excludes {
				if strings.Contains(page, s) {
					t.Errorf("page should not contain %q", s)
				}
			}
		})
	}
}

func TestIndex_UnknownPathIs404(t *testing.T) {
	_, _, ts := newTestHandler(t, nil)
	resp, err := http.Get(ts.URL + "/nope")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestAPITasksAndStats(t *testing.T) {
	_, _, ts := newTestHandler(t, nil)

	resp, err := http.Get(ts.URL + "/api/tasks?area=Ops&project=Alpha")
	if err != nil {
		t.Fatal(err)
	}
	var tasks []schema.TaskRow
	if err := json.NewDecoder(resp.Body).Decode(&tasks); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if len(tasks) != 1 || tasks[0].ID != "p1" {
		t.Errorf("tasks = %+v", tasks)
	}

	resp, err = http.Get(ts.URL + "/api/tasks?area=None")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if strings.TrimSpace(string(body)) != "[]" {
		t.Errorf("empty result body = %s, want []", body)
	}

	resp, err = http.Get(ts.URL + "/api/stats?area=Ops")
	if err != nil {
		t.Fatal(err)
	}
	var stats StatsData
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if stats.Total != 2 || stats.InProgress != 1 || stats.Blocked != 1 || stats.Area != "Ops" {
		t.Errorf("stats = %+v", stats)
	}
	if stats.LoadedAt.IsZero() {
		t.Error("stats should report when the cache was loaded")
	}
}

func TestAPISync(t *testing.T) {
	syncer := &fakeSyncer{}
	_, _, ts := newTestHandler(t, syncer)

	resp, err := http.Post(ts.URL+"/api/sync", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	var body map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, body)
	}
	if body["message"] != "3 tarefas atualizadas." {
		t.Errorf("body = %v", body)
	}
	if syncer.runs.Load() != 1 {
		t.Errorf("runs = %d, want 1", syncer.runs.Load())
	}
}

func TestAPISync_Failure(t *testing.T) {
	syncer := &fakeSyncer{runErr: errors.New("0 tarefas")}
	_, _, ts := newTestHandler(t, syncer)

	resp, err := http.Post(ts.URL+"/api/sync", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
}

func TestAPISync_ConcurrentIsRejected(t *testing.T) {
	syncer := &fakeSyncer{block: make(chan struct{})}
	_, h, ts := newTestHandler(t, syncer)

	first := make(chan error, 1)
	go func() {
		_, err := h.RunSync(context.Background())
		first <- err
	}()

	deadline := time.Now().Add(5 * time.Second)
	for syncer.runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	resp, err := http.Post(ts.URL+"/api/sync", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}

	close(syncer.block)
	if err := <-first; err != nil {
		t.Errorf("first sync failed: %v", err)
	}
}

func TestAPIUpdate(t *testing.T) {
	syncer := &fakeSyncer{outcome: statussync.Outcome{OK: true, Message: "Atualizado com sucesso"}}
	var reloads int
	server := NewServer(&Config{Port: 0, Logger: quietLogger()})
	NewHandler(server, HandlerConfig{
		Cache:  setupCache(t),
		Syncer: syncer,
		Reload: func(context.Context) (int, error) { reloads++; return 3, nil },
		Logger: quietLogger(),
	})
	ts := httptest.NewServer(server.mux)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/tasks/p1", "application/json",
		strings.NewReader(`{"field":"status","value":"Blocked"}`))
	if err != nil {
		t.Fatal(err)
	}
	var body map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, body)
	}
	if len(syncer.updates) != 1 || syncer.updates[0] != "p1|status|Blocked" {
		t.Errorf("updates = %v", syncer.updates)
	}
	if body["message"] != "Atualizado com sucesso" || body["sync"] != "3 tarefas atualizadas." {
		t.Errorf("body = %v", body)
	}
	if syncer.runs.Load() != 1 || reloads != 1 {
		t.Errorf("runs = %d, reloads = %d, want 1 and 1", syncer.runs.Load(), reloads)
	}
}

func TestAPIUpdate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		outcome statussync.Outcome
		status  int
		runs    int32
	}{
		{"bad json", `{`, statussync.Outcome{}, http.StatusBadRequest, 0},
		{"invalid field", `{"field":"priority","value":"x"}`, statussync.Outcome{}, http.StatusBadRequest, 0},
		{"write failed", `{"field":"title","value":"x"}`, statussync.Outcome{Message: "notion: 404"}, http.StatusBadGateway, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			syncer := &fakeSyncer{outcome: tt.outcome}
			_, _, ts := newTestHandler(t, syncer)

			resp, err := http.Post(ts.URL+"/api/tasks/p1", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			if syncer.runs.Load() != tt.runs {
				t.Errorf("runs = %d, want %d", syncer.runs.Load(), tt.runs)
			}
		})
	}
}

func TestAPIUpdate_ReadOnly(t *testing.T) {
	_, _, ts := newTestHandler(t, nil)
	resp, err := http.Post(ts.URL+"/api/tasks/p1", "application/json",
		strings.NewReader(`{"field":"status","value":"Done"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestAPISync_ReadOnly(t *testing.T) {
	_, h, ts := newTestHandler(t, nil)
	resp, err := http.Post(ts.URL+"/api/sync", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
	if _, err := h.RunSync(context.Background()); !errors.Is(err, ErrSyncDisabled) {
		t.Errorf("RunSync() error = %v, want ErrSyncDisabled", err)
	}
}
