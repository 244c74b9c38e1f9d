package notify

import (
	"bytes"
	"errors"
	"text/template"
)

const DefaultSubject = `[VoIP Monitor] {{.NewCount}} new critical alert{{if ne .NewCount 1}}s{{end}}`

const DefaultTemplate = `VoIP monitoring alert ({{.GeneratedAt}})
Thresholds: warning > {{.Lower}}% offline, critical > {{.Upper}}% offline
Critical devices: {{.CohortOffline}}/{{.CohortTotal}} offline ({{.CohortPercentage}}%) - {{.CohortLevel}}
{{- if .Buildings}}

Buildings in critical state:
{{- range .Buildings}}
- {{.Name}}: {{.Offline}}/{{.Total}} devices offline ({{.Percentage}}%)
{{- end}}
{{- end}}
{{- if .Devices}}

Critical devices offline:
{{- range .Devices}}
- {{.Name}}{{if .Building}} ({{.Building}}){{end}}
{{- end}}
{{- end}}

Reference: {{.CycleID}}
`

// BuildingLine is one building in the message.
type BuildingLine struct {
	ID         string
	Name       string
	Offline    int
	Total      int
	Percentage string
}

// DeviceLine is one critical device in the message.
type DeviceLine struct {
	ID       string
	Name     string
	Building string
}

// TemplateData provides fields for rendering notification content.
type TemplateData struct {
	CycleID          string
	GeneratedAt      string
	Lower            string
	Upper            string
	CohortLevel      string
	CohortOffline    int
	CohortTotal      int
	CohortPercentage string
	NewCount         int
	Buildings        []BuildingLine
	Devices          []DeviceLine
}

// Template renders the subject line and body of a consolidated message.
type Template struct {
	subject *template.Template
	body    *template.Template
}

// NewTemplate parses the body and subject templates, falling back to the defaults.
func NewTemplate(body, subject string) (*Template, error) {
	if body == "" {
		body = DefaultTemplate
	}
	if subject == "" {
		subject = DefaultSubject
	}
	parsedBody, err := template.New("alert-body").Parse(body)
	if err != nil {
		return nil, err
	}
	parsedSubject, err := template.New("alert-subject").Parse(subject)
	if err != nil {
		return nil, err
	}
	return &Template{subject: parsedSubject, body: parsedBody}, nil
}

// Render applies the templates to data.
func (t *Template) Render(data TemplateData) (subject, body string, err error) {
	if t == nil || t.body == nil || t.subject == nil {
		return "", "", errors.New("alert template: nil")
	}
	var buf bytes.Buffer
	if err := t.subject.Execute(&buf, data); err != nil {
		return "", "", err
	}
	subject = buf.String()
	buf.Reset()
	if err := t.body.Execute(&buf, data); err != nil {
		return "", "", err
	}
	return subject, buf.String(), nil
}
