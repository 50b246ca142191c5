package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/dbvcapital/statusboard/internal/notion"
	"github.com/dbvcapital/statusboard/internal/schema"
)

// Field is a snapshot column that can be written back.
type Field string

const (
	FieldObservation Field = "observation"
	FieldStatus      Field = "status"
	FieldTitle       Field = "title"
)

var fieldAliases = map[string]Field{
	"observation": FieldObservation,
	"observacao":  FieldObservation,
	"observação":  FieldObservation,
	"status":      FieldStatus,
	"title":       FieldTitle,
	"task":        FieldTitle,
	"tarefa":      FieldTitle,
}

// ParseField maps a column name (English or the Portuguese board
// headers) to a Field.
func ParseField(name string) (Field, bool) {
	f, ok := fieldAliases[strings.ToLower(strings.TrimSpace(name))]
	return f, ok
}

// Outcome reports the result of a single write.
type Outcome struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Writer sends single-field edits back to the workspace.
type Writer struct {
	client Notion
	layout *Layout
	logger *log.Logger
}

// NewWriter creates a writer for layout.
func NewWriter(client Notion, layout *Layout, logger *log.Logger) *Writer {
	if logger == nil {
		logger = defaultLogger()
	}
	return &Writer{client: client, layout: layout, logger: logger}
}

// Update writes value to field of pageID. There are no retries.
func (w *Writer) Update(ctx context.Context, pageID string, field Field, value string) Outcome {
	switch field {
	case FieldObservation:
		return w.updateObservation(ctx, pageID, value)
	case FieldStatus:
		native := schema.NativeLabel(w.layout.NativeLabels, value)
		props, err := notion.OptionProperty(w.layout.StatusKind, w.layout.Status[0], native)
		return w.updatePage(ctx, pageID, props, err)
	case FieldTitle:
		props, err := notion.TextProperty(notion.KindTitle, w.layout.TaskTitle[0], value)
		return w.updatePage(ctx, pageID, props, err)
	}
	return Outcome{OK: false, Message: "invalid field"}
}

func (w *Writer) updateObservation(ctx context.Context, pageID, value string) Outcome {
	err := w.client.CreateComment(ctx, pageID, value)
	if err == nil {
		w.logger.Printf("Commented on %s", pageID)
		return Outcome{OK: true, Message: "Comentário adicionado"}
	}
	w.logger.Printf("WARNING: failed to comment on %s, overwriting notes instead: %v", pageID, err)

	props, perr := notion.TextProperty(notion.KindRichText, w.layout.Notes[0], value)
	return w.updatePage(ctx, pageID, props, perr)
}

func (w *Writer) updatePage(ctx context.Context, pageID string, props json.RawMessage, buildErr error) Outcome {
	if buildErr != nil {
		return Outcome{OK: false, Message: buildErr.Error()}
	}
	if err := w.client.UpdatePage(ctx, pageID, props); err != nil {
		w.logger.Printf("WARNING: failed to update %s: %v", pageID, err)
		return Outcome{OK: false, Message: err.Error()}
	}
	w.logger.Printf("Updated %s", pageID)
	return Outcome{OK: true, Message: "Atualizado com sucesso"}
}

// PushResult counts the writes made by a push.
type PushResult struct {
	Changed int
	Failed  int
	Errors  []string
}

// Push compares edited with current by id and writes back every changed
// status, title and observation. Rows missing from current are ignored.
// When an edited observation extends the current log, only the appended
// text is sent.
func (w *Writer) Push(ctx context.Context, edited, current []schema.TaskRow) PushResult {
	var res PushResult
	byID := make(map[string]schema.TaskRow, len(current))
	for _, r := range current {
		byID[r.ID] = r
	}

	record := func(id string, f Field, out Outcome) {
		if out.OK {
			res.Changed++
			return
		}
		res.Failed++
		res.Errors = append(res.Errors, fmt.Sprintf("%s %s: %s", id, f, out.Message))
	}

	for _, e := range edited {
		cur, ok := byID[e.ID]
		if !ok {
			continue
		}
		if e.Status != cur.Status && strings.TrimSpace(string(e.Status)) != "" {
			record(e.ID, FieldStatus, w.Update(ctx, e.ID, FieldStatus, string(e.Status)))
		}
		if e.Task != cur.Task && strings.TrimSpace(e.Task) != "" {
			record(e.ID, FieldTitle, w.Update(ctx, e.ID, FieldTitle, e.Task))
		}
		if note, changed := appendedText(cur.Observation, e.Observation); changed {
			record(e.ID, FieldObservation, w.Update(ctx, e.ID, FieldObservation, note))
		}
	}
	return res
}

// appendedText returns what should be posted for an observation edit.
func appendedText(current, edited string) (string, bool) {
	if edited == current || strings.TrimSpace(edited) == "" {
		return "", false
	}
	if current != "" && strings.HasPrefix(edited, current) {
		suffix := strings.TrimSpace(edited[len(current):])
		return suffix, suffix != ""
	}
	return edited, true
}
