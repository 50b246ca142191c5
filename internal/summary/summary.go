// Package summary condenses a project's comment log into the four sections
// of the weekly report.
package summary

import (
	"context"
	"fmt"
	"strings"

	"github.com/dbvcapital/statusboard/internal/schema"
)

const (
	// NoData is the deliveries text for a project without usable input.
	NoData = "Sem dados."
	// Unidentified fills a section the model did not produce.
	Unidentified = "Não identificado."

	// minInputLen is the shortest digest worth sending to the model.
	minInputLen = 10
)

// Section tags expected in the model's reply, in order.
const (
	TagDeliveries  = "[ENTREGAS]:"
	TagBlockers    = "[TRAVAS]:"
	TagNextActions = "[ACAO]:"
	TagS2          = "[S2]:"
)

var tags = []string{TagDeliveries, TagBlockers, TagNextActions, TagS2}

// Sections is a summarized project status.
type Sections struct {
	Deliveries  string `toml:"deliveries"`
	Blockers    string `toml:"blockers"`
	NextActions string `toml:"next_actions"`
	S2Plan      string `toml:"s2_plan"`
}

// Request is the input for one project.
type Request struct {
	// Digest is the task digest built by Digest.
	Digest string
	// Week and S2 are the labels of the current week and of the week two
	// weeks ahead, e.g. "04/03 a 08/03".
	Week string
	S2   string
}

// Summarizer turns a project digest into report sections.
type Summarizer interface {
	Summarize(ctx context.Context, req Request) (Sections, error)
}

// Digest renders rows as one line per task:
//
//	- <task> (<status>) [Data: <end>]: <observation>
func Digest(rows []schema.TaskRow) string {
	var b strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&b, "- %s (%s) [Data: %s]: %s\n", r.Task, r.Status.Label(), r.End, r.Observation)
	}
	return b.String()
}

// TooShort reports whether a digest has too little content to summarize.
func TooShort(digest string) bool {
	return len(strings.TrimSpace(digest)) < minInputLen
}

// Prompt builds the user prompt for req.
func Prompt(req Request) string {
	var b strings.Builder
	b.WriteString("Atue como um PMO Sênior. Analise o status, datas e comentários.\n\n")
	b.WriteString("CONTEXTO:\n")
	fmt.Fprintf(&b, "- Hoje (Semana Atual): %s\n", req.Week)
	fmt.Fprintf(&b, "- Semana Futura (S+2 - Daqui a 15 dias): %s\n\n", req.S2)
	b.WriteString("Gere 4 seções OBRIGATÓRIAS usando EXATAMENTE estas tags:\n\n")
	fmt.Fprintf(&b, "%s O que foi concluído/avançado NESTA semana.\n", TagDeliveries)
	fmt.Fprintf(&b, "%s O que está impedindo o avanço hoje.\n", TagBlockers)
	fmt.Fprintf(&b, "%s O que será feito na semana que vem (S+1).\n", TagNextActions)
	fmt.Fprintf(&b, "%s O que está planejado para a semana S+2 (%s). Se não houver info explícita, PROJETE o próximo passo lógico.\n\n", TagS2, req.S2)
	b.WriteString("REGRAS VISUAIS:\n- Use APENAS hífens (-) para os itens.\n- Sem negrito.\n- Texto limpo e direto.\n\n")
	b.WriteString("DADOS:\n")
	b.WriteString(req.Digest)
	return b.String()
}

// Parse splits a reply into sections. Each section runs from its tag to
// the next tag that follows it; missing sections are Unidentified.
func Parse(reply string) Sections {
	found := make(map[string]string, len(tags))
	for _, tag := range tags {
		i := strings.Index(reply, tag)
		if i < 0 {
			continue
		}
		rest := reply[i+len(tag):]
		end := len(rest)
		for _, other := range tags {
			if j := strings.Index(rest, other); j >= 0 && j < end {
				end = j
			}
		}
		if text := strings.TrimSpace(rest[:end]); text != "" {
			found[tag] = text
		}
	}

	get := func(tag string) string {
		if v, ok := found[tag]; ok {
			return v
		}
		return Unidentified
	}
	return Sections{
		Deliveries:  get(TagDeliveries),
		Blockers:    get(TagBlockers),
		NextActions: get(TagNextActions),
		S2Plan:      get(TagS2),
	}
}
