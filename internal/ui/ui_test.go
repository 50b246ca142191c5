package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dbvcapital/statusboard/internal/schema"
)

func TestPrinter_PlainWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	if got := p.RenderAccent("title"); got != "title" {
		t.Errorf("RenderAccent() = %q, want plain text", got)
	}
	if got := p.RenderStatus(schema.StatusBlocked); got != "Bloqueado" {
		t.Errorf("RenderStatus() = %q", got)
	}

	p.Success("%d tarefas atualizadas.", 3)
	p.Failure("boom")
	out := buf.String()
	if strings.Contains(out, "\x1b[") {
		t.Errorf("unexpected escape codes: %q", out)
	}
	if !strings.Contains(out, "✓ 3 tarefas atualizadas.\n") || !strings.Contains(out, "✗ boom\n") {
		t.Errorf("output = %q", out)
	}
}

func TestIsTerminal_Nil(t *testing.T) {
	if IsTerminal(nil) {
		t.Error("IsTerminal(nil) should be false")
	}
}
