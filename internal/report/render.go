package report

import (
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/dbvcapital/statusboard/internal/schema"
)

var funcs = template.FuncMap{
	"clean": Clean,
	"upper": strings.ToUpper,
	"label": func(s schema.Status) string { return s.Label() },
	// cell makes a value safe inside a Markdown table row.
	"cell": func(s string) string {
		s = Clean(s)
		s = strings.ReplaceAll(s, "|", "/")
		return strings.Join(strings.Fields(s), " ")
	},
	// para renders free text; empty text becomes a dash.
	"para": func(s string) string {
		s = strings.TrimSpace(Clean(s))
		if s == "" {
			return "-"
		}
		return s
	},
}

const markdownTemplate = `# Relatório de Status: {{upper (clean .Area)}}

**Responsável:** {{clean .Responsible}} | **Semana:** {{.Week.Label}}

## Resumo Executivo

- **Vitória:** {{clean .Summary.Victory}}
- **Risco:** {{clean .Summary.Risk}}
- **Decisão:** {{clean .Summary.Decision}}
- **Dependências:** {{clean .Summary.Dependencies}}

## Detalhamento por Projeto
{{range .Projects}}
### {{clean .Name}}

{{.Total}} tarefas | {{.Done}} concluídas

**Entregas (visão do momento)**

{{para .Deliveries}}

**Travas**

{{para .Blockers}}

**Próximos passos (S+1)**

{{para .NextActions}}
{{if .S2Plan}}
**Planejamento S+2: {{clean .Name}} ({{$.Week.S2.Label}})**

{{para .S2Plan}}
{{end}}{{if .Tasks}}
| Status | Tarefa | Responsável | Início | Entrega |
|---|---|---|---|---|
{{range .Tasks}}| {{label .Status}} | {{cell .Task}} | {{cell .Responsible}} | {{.Start}} | {{.End}} |
{{end}}{{end}}{{else}}
Nenhum.
{{end}}
## KPIs & Rotina

Obs: {{clean .RoutineNotes}}
{{range .KPIs}}{{if .Name}}
- **{{clean .Name}}:** {{clean .Actual}} / {{clean .Target}} ({{clean .Reading}}){{end}}{{end}}

## Encerramento

**Impacto:**

{{para .Impact}}

**Direcionamentos:**

{{para .Directions}}
`

var markdown = template.Must(template.New("report").Funcs(funcs).Parse(markdownTemplate))

// Render writes rep as Markdown.
func Render(w io.Writer, rep *Report) error {
	if err := markdown.Execute(w, rep); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return nil
}
