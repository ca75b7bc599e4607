package assets

import (
	"bytes"
	_ "embed"
	"text/template"
)

//go:embed messages/email-subject.txt
var emailSubjectTemplate string

//go:embed messages/email-body.txt
var emailBodyTemplate string

// Pre-parsed templates. template.Must panics on malformed templates,
// catching errors at program startup rather than at call time.
var (
	emailSubjectTmpl = template.Must(template.New("subject").Parse(emailSubjectTemplate))
	emailBodyTmpl    = template.Must(template.New("body").Parse(emailBodyTemplate))
)

// EmailData holds the dynamic data injected into the email templates.
type EmailData struct {
	EventName string
	Filename  string
	Date      string
}

// RenderEmailSubject renders the subject line for a print delivery email.
func RenderEmailSubject(data EmailData) string {
	return renderTemplate(emailSubjectTmpl, data)
}

// RenderEmailBody renders the plain-text body for a print delivery email.
func RenderEmailBody(data EmailData) string {
	return renderTemplate(emailBodyTmpl, data)
}

func renderTemplate(tmpl *template.Template, data EmailData) string {
	var buf bytes.Buffer
	// Execution errors are not expected with these templates; whatever was
	// rendered is returned.
	_ = tmpl.Execute(&buf, data)
	return buf.String()
}
