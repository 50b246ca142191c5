package summary

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/dbvcapital/statusboard/internal/schema"
	"github.com/google/go-cmp/cmp"
)

func TestDigest(t *testing.T) {
	rows := []schema.TaskRow{
		{Task: "Write report", Status: schema.StatusInProgress, End: "2024-03-10", Observation: "(05/03) [Ana]: draft"},
		{Task: "Ship", Status: schema.StatusDone, End: "2024-03-02"},
	}
	want := "- Write report (Em Andamento) [Data: 2024-03-10]: (05/03) [Ana]: draft\n" +
		"- Ship (Concluído) [Data: 2024-03-02]: \n"
	if got := Digest(rows); got != want {
		t.Errorf("Digest() mismatch:\n%s", cmp.Diff(want, got))
	}
	if Digest(nil) != "" {
		t.Error("Digest(nil) should be empty")
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  Sections
	}{
		{
			name:  "all sections",
			reply: "[ENTREGAS]: - a\n[TRAVAS]: - b\n[ACAO]: - c\n[S2]: - d",
			want:  Sections{Deliveries: "- a", Blockers: "- b", NextActions: "- c", S2Plan: "- d"},
		},
		{
			name:  "missing blockers",
			reply: "intro\n[ENTREGAS]: - a\n[ACAO]: - c\n[S2]: - d\n",
			want:  Sections{Deliveries: "- a", Blockers: Unidentified, NextActions: "- c", S2Plan: "- d"},
		},
		{
			name:  "out of order",
			reply: "[S2]: - d\n[ENTREGAS]: - a",
			want:  Sections{Deliveries: "- a", Blockers: Unidentified, NextActions: Unidentified, S2Plan: "- d"},
		},
		{
			name:  "empty section",
			reply: "[ENTREGAS]:\n[TRAVAS]: - b",
			want:  Sections{Deliveries: Unidentified, Blockers: "- b", NextActions: Unidentified, S2Plan: Unidentified},
		},
		{
			name:  "no tags",
			reply: "nothing useful",
			want:  Sections{Deliveries: Unidentified, Blockers: Unidentified, NextActions: Unidentified, S2Plan: Unidentified},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Parse(tt.reply)); diff != "" {
				t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPrompt(t *testing.T) {
	p := Prompt(Request{Digest: "- x (Bloqueado) [Data: 2024-03-01]: y\n", Week: "04/03 a 08/03", S2: "18/03 a 22/03"})
	for _, want := range []string{"04/03 a 08/03", "(18/03 a 22/03)", TagDeliveries, TagS2, "- x (Bloqueado)"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestNewAnthropicSummarizer_RequiresKey(t *testing.T) {
	if _, err := NewAnthropicSummarizer(AnthropicConfig{}); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("error = %v, want ErrNoAPIKey", err)
	}
}

func newFakeAnthropic(t *testing.T, reply string, status int) (*httptest.Server, *map[string]any) {
	t.Helper()
	var got map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = io.WriteString(w, `{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":            "msg_1",
			"type":          "message",
			"role":          "assistant",
			"model":         DefaultModel,
			"stop_reason":   "end_turn",
			"stop_sequence": nil,
			"content":       []map[string]any{{"type": "text", "text": reply}},
			"usage":         map[string]any{"input_tokens": 10, "output_tokens": 5},
		})
	}))
	t.Cleanup(ts.Close)
	return ts, &got
}

func newTestSummarizer(t *testing.T, baseURL string) *AnthropicSummarizer {
	t.Helper()
	s, err := NewAnthropicSummarizer(AnthropicConfig{
		APIKey:  "test-key",
		Options: []option.RequestOption{option.WithBaseURL(baseURL), option.WithMaxRetries(0)},
		Logger:  log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestAnthropicSummarizer_Summarize(t *testing.T) {
	ts, got := newFakeAnthropic(t, "[ENTREGAS]: - shipped\n[TRAVAS]: - none\n[ACAO]: - test\n[S2]: - launch", http.StatusOK)
	s := newTestSummarizer(t, ts.URL)

	sections, err := s.Summarize(context.Background(), Request{
		Digest: "- Ship (Concluído) [Data: 2024-03-02]: done\n",
		Week:   "04/03 a 08/03",
		S2:     "18/03 a 22/03",
	})
	if err != nil {
		t.Fatalf("Summarize() failed: %v", err)
	}
	want := Sections{Deliveries: "- shipped", Blockers: "- none", NextActions: "- test", S2Plan: "- launch"}
	if diff := cmp.Diff(want, sections); diff != "" {
		t.Errorf("Summarize() mismatch (-want +got):\n%s", diff)
	}

	req := *got
	if req["model"] != DefaultModel {
		t.Errorf("model = %v", req["model"])
	}
	if req["temperature"] != 0.3 {
		t.Errorf("temperature = %v, want 0.3", req["temperature"])
	}
}

func TestAnthropicSummarizer_ShortInputSkipsCall(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()
	s := newTestSummarizer(t, ts.URL)

	sections, err := s.Summarize(context.Background(), Request{Digest: "  short  "})
	if err != nil {
		t.Fatal(err)
	}
	if sections.Deliveries != NoData || calls != 0 {
		t.Errorf("sections = %+v, calls = %d", sections, calls)
	}
}

func TestAnthropicSummarizer_APIError(t *testing.T) {
	ts, _ := newFakeAnthropic(t, "", http.StatusBadRequest)
	s := newTestSummarizer(t, ts.URL)

	_, err := s.Summarize(context.Background(), Request{Digest: "- something long enough\n"})
	if err == nil {
		t.Fatal("Summarize() should fail on API error")
	}
}
