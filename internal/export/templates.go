package export

import (
	"bytes"
	"strings"
	"text/template"
	"time"
)

const boardMarkdown = `# {{ .Title }}
{{- if .Description }}

{{ .Description }}
{{- end }}

_Exported {{ formatDate .ExportedAt }}_
{{ range .Lists }}
## {{ .Title }}{{ if .IsArchived }} (archived){{ end }}
{{ if .Cards }}
{{ range .Cards -}}
- [{{ if .IsCompleted }}x{{ else }} {{ end }}] {{ .Title }}{{ if .DueDate }} (due {{ formatDay .DueDate }}){{ end }}
{{ end -}}
{{ else }}
_No cards_
{{ end -}}
{{ end -}}
`

var markdownTemplate = template.Must(template.New("board").Funcs(template.FuncMap{
	"formatDate": func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
	"formatDay":  func(t *time.Time) string { return t.UTC().Format("2006-01-02") },
}).Parse(boardMarkdown))

// RenderMarkdown renders the snapshot as a Markdown checklist per list.
func RenderMarkdown(s Snapshot) (string, error) {
	var buf bytes.Buffer
	if err := markdownTemplate.Execute(&buf, s); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// sanitizeFilename creates a safe filename from a title
func sanitizeFilename(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('-')
		case r == '-', r == '_':
			b.WriteRune(r)
		}
	}

	result := b.String()
	if len(result) > 50 {
		result = result[:50]
	}
	if result == "" {
		result = "board"
	}
	return result
}
