package schema

import "testing"

func TestNormalizer_Normalize(t *testing.T) {
	tests := []struct {
		native string
		want   Status
	}{
		{"Done", StatusDone},
		{"DONE", StatusDone},
		{"Concluída", StatusDone},
		{"concluido", StatusDone},
		{"Finalizado", StatusDone},
		{"Em andamento", StatusInProgress},
		{"Aguardando aprovação", StatusInProgress},
		{"Não iniciado", StatusNotStarted},
		{"NÃO INICIADO", StatusNotStarted},
		{"To Do", StatusNotStarted},
		{"Backlog", StatusNotStarted},
		{"Stand By", StatusBlocked},
		{"Cancelado", StatusBlocked},
		{"Travado", StatusBlocked},
		{"Blocked", StatusBlocked},
		{"Em risco", StatusBlocked},
		{"Something else", StatusNotStarted},
		{"", StatusNotStarted},
	}

	n := Normalizer{}
	for _, tt := range tests {
		t.Run(tt.native, func(t *testing.T) {
			if got := n.Normalize(tt.native); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.native, got, tt.want)
			}
		})
	}
}

func TestNormalizer_PriorityOrder(t *testing.T) {
	n := Normalizer{}
	// "done" beats "block" because the Done rule is checked first.
	if got := n.Normalize("blocked then done"); got != StatusDone {
		t.Errorf("got %q, want %q", got, StatusDone)
	}
	// "andamento" beats "não".
	if got := n.Normalize("não em andamento"); got != StatusInProgress {
		t.Errorf("got %q, want %q", got, StatusInProgress)
	}
}

func TestNormalizer_Fallback(t *testing.T) {
	n := Normalizer{Fallback: StatusInProgress}
	if got := n.Normalize("Review"); got != StatusInProgress {
		t.Errorf("Normalize with fallback = %q, want %q", got, StatusInProgress)
	}
	if got := n.Normalize("Backlog"); got != StatusNotStarted {
		t.Errorf("keyword match should ignore fallback, got %q", got)
	}

	bad := Normalizer{Fallback: "nonsense"}
	if got := bad.Normalize("Review"); got != StatusNotStarted {
		t.Errorf("invalid fallback should degrade to Not Started, got %q", got)
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want Status
		ok   bool
	}{
		{"Done", StatusDone, true},
		{"concluído", StatusDone, true},
		{" Em Andamento ", StatusInProgress, true},
		{"blocked", StatusBlocked, true},
		{"Não Iniciado", StatusNotStarted, true},
		{"Stand By", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseStatus(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseStatus(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNativeLabel_RoundTrip(t *testing.T) {
	n := Normalizer{}
	for _, s := range Statuses {
		native := NativeLabel(DefaultNativeLabels, string(s))
		if got := n.Normalize(native); got != s {
			t.Errorf("status %q -> native %q -> normalized %q", s, native, got)
		}
	}
}

func TestNativeLabel_Passthrough(t *testing.T) {
	if got := NativeLabel(DefaultNativeLabels, "Aguardando cliente"); got != "Aguardando cliente" {
		t.Errorf("unmapped value changed: %q", got)
	}
	if got := NativeLabel(map[Status]string{}, "Done"); got != "Done" {
		t.Errorf("missing mapping entry should pass through, got %q", got)
	}
	if got := NativeLabel(DefaultNativeLabels, "Bloqueado"); got != "Stand By" {
		t.Errorf("display label should map, got %q", got)
	}
}
