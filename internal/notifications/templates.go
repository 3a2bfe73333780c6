package notifications

import (
	"bytes"
	"text/template"
	"time"
)

// TemplateData is the view of an event the summary templates render.
type TemplateData struct {
	RunID        string
	AppObjectID  string
	SecretName   string
	VaultBackend string
	Stage        string
	Error        string
	Duration     time.Duration
	CreatedKeyID string
	RemovedCount int
}

// SummaryTemplates holds the one-paragraph summary for each event type.
var SummaryTemplates = map[EventType]*template.Template{
	EventTypeCompleted:    template.Must(template.New("completed").Parse(completedTemplate)),
	EventTypeFailed:       template.Must(template.New("failed").Parse(failedTemplate)),
	EventTypeInconsistent: template.Must(template.New("inconsistent").Parse(inconsistentTemplate)),
}

const completedTemplate = `Rotated {{.SecretName}} for application {{.AppObjectID}} in {{.Duration}}.` +
	`{{if .CreatedKeyID}} New credential {{.CreatedKeyID}}.{{end}}` +
	`{{if .RemovedCount}} Pruned {{.RemovedCount}} expired credential(s).{{end}}`

const failedTemplate = `Rotation of {{.SecretName}} for application {{.AppObjectID}} failed at {{.Stage}}: {{.Error}}` +
	`{{if .CreatedKeyID}} Credential {{.CreatedKeyID}} was created and stored.{{end}}`

const inconsistentTemplate = `INCONSISTENT STATE: credential {{if .CreatedKeyID}}{{.CreatedKeyID}}{{else}}(unknown key id){{end}}` +
	` exists on application {{.AppObjectID}} but {{.SecretName}} in {{.VaultBackend}} was not updated.` +
	` Manual reconciliation required.`

// RenderSummary renders the summary for event. Unknown types render empty.
func RenderSummary(event RotationEvent) string {
	tmpl, ok := SummaryTemplates[event.Type]
	if !ok {
		return ""
	}

	data := TemplateData{
		RunID:        event.RunID,
		AppObjectID:  event.AppObjectID,
		SecretName:   event.SecretName,
		VaultBackend: event.VaultBackend,
		Stage:        event.Stage,
		Duration:     event.Duration.Round(time.Millisecond),
		CreatedKeyID: event.CreatedKeyID,
		RemovedCount: event.RemovedCount,
	}
	if event.Error != nil {
		data.Error = event.Error.Error()
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return string(event.Type)
	}
	return buf.String()
}
