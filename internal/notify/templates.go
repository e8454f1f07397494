package notify

import (
	"bytes"
	"errors"
	"fmt"
	htmltpl "html/template"
	"strings"
	texttpl "text/template"

	"github.com/jmehdipour/leadsite/internal/model"
)

var ErrUnknownTemplate = errors.New("unknown template")

// TemplateData is what every template can reference.
type TemplateData struct {
	Lead         model.Lead
	BusinessName string
	OwnerName    string
	BookingLink  string
	SiteURL      string
}

// FirstName is the first word of the lead's name, or "there".
func (d TemplateData) FirstName() string {
	if f := strings.Fields(d.Lead.Name); len(f) > 0 {
		return f[0]
	}
	return "there"
}

type emailTemplate struct {
	subject *texttpl.Template
	body    *htmltpl.Template
}

func mustEmail(name, subject, body string) emailTemplate {
	return emailTemplate{
		subject: texttpl.Must(texttpl.New(name + ".subject").Parse(subject)),
		body:    htmltpl.Must(htmltpl.New(name).Parse(emailLayoutStart + body + emailLayoutEnd)),
	}
}

const emailLayoutStart = `<!DOCTYPE html><html><body style="font-family:Arial,sans-serif;color:#1f2937;max-width:600px;margin:0 auto;padding:24px">`

const emailLayoutEnd = `<p style="color:#6b7280;font-size:12px;margin-top:32px">{{.BusinessName}}{{if .SiteURL}} · <a href="{{.SiteURL}}">{{.SiteURL}}</a>{{end}}</p></body></html>`

var emailTemplates = map[string]emailTemplate{
	"leadConfirmation": mustEmail("leadConfirmation",
		`Thanks for reaching out, {{.FirstName}}!`,
		`<h2>Hi {{.FirstName}},</h2>
<p>Thanks for your interest in <strong>{{.Lead.Service}}</strong>. We received your request and will get back to you within 24 hours.</p>
{{if .BookingLink}}<p>Prefer to talk sooner? <a href="{{.BookingLink}}">Book a free consultation</a>.</p>{{end}}
<p>Best,<br>{{.OwnerName}}</p>`),

	"ownerNotification": mustEmail("ownerNotification",
		`New lead: {{.Lead.Name}} ({{.Lead.Service}})`,
		`<h2>New lead received</h2>
<table cellpadding="4">
<tr><td><b>Name</b></td><td>{{.Lead.Name}}</td></tr>
<tr><td><b>Email</b></td><td>{{.Lead.Email}}</td></tr>
<tr><td><b>Phone</b></td><td>{{.Lead.Phone}}</td></tr>
{{if .Lead.Company}}<tr><td><b>Company</b></td><td>{{.Lead.Company}}</td></tr>{{end}}
<tr><td><b>Service</b></td><td>{{.Lead.Service}}</td></tr>
{{if .Lead.Budget}}<tr><td><b>Budget</b></td><td>{{.Lead.Budget}}</td></tr>{{end}}
{{if .Lead.PreferredTime}}<tr><td><b>Preferred time</b></td><td>{{.Lead.PreferredTime}}</td></tr>{{end}}
{{if .Lead.BusinessType}}<tr><td><b>Site</b></td><td>{{.Lead.BusinessType}}</td></tr>{{end}}
<tr><td><b>Submitted</b></td><td>{{.Lead.SubmittedAt}}</td></tr>
</table>
{{if .Lead.Message}}<p><b>Message</b><br>{{.Lead.Message}}</p>{{end}}`),

	"followUp1": mustEmail("followUp1",
		`Following up on your {{.Lead.Service}} request`,
		`<h2>Hi {{.FirstName}},</h2>
<p>Just checking in on your request about <strong>{{.Lead.Service}}</strong>. Do you have any questions we can answer?</p>
{{if .BookingLink}}<p><a href="{{.BookingLink}}">Pick a time that suits you</a> and we'll walk you through it.</p>{{end}}
<p>Best,<br>{{.OwnerName}}</p>`),

	"followUp2": mustEmail("followUp2",
		`Still interested in {{.Lead.Service}}?`,
		`<h2>Hi {{.FirstName}},</h2>
<p>We don't want to crowd your inbox, so this is our last note about <strong>{{.Lead.Service}}</strong>.</p>
<p>If the timing isn't right, no problem. Just reply whenever you're ready.</p>
{{if .BookingLink}}<p><a href="{{.BookingLink}}">Book a call</a></p>{{end}}
<p>Best,<br>{{.OwnerName}}</p>`),
}

var whatsAppTemplates = map[string]*texttpl.Template{
	"leadConfirmation": texttpl.Must(texttpl.New("leadConfirmation").Parse(
		`Hi {{.FirstName}}! Thanks for contacting {{.BusinessName}} about {{.Lead.Service}}. We'll be in touch within 24 hours.{{if .BookingLink}} Book a call anytime: {{.BookingLink}}{{end}}`)),
	"ownerAlert": texttpl.Must(texttpl.New("ownerAlert").Parse(
		`New lead: {{.Lead.Name}} ({{.Lead.Email}}, {{.Lead.Phone}}) wants {{.Lead.Service}}.`)),
	"followUp": texttpl.Must(texttpl.New("followUp").Parse(
		`Hi {{.FirstName}}, just following up on your {{.Lead.Service}} request with {{.BusinessName}}. Any questions?{{if .BookingLink}} {{.BookingLink}}{{end}}`)),
}

func renderEmail(name string, data TemplateData) (subject, body string, err error) {
	t, ok := emailTemplates[name]
	if !ok {
		return "", "", fmt.Errorf("%w: email/%s", ErrUnknownTemplate, name)
	}

	var sb, bb bytes.Buffer
	if err := t.subject.Execute(&sb, data); err != nil {
		return "", "", fmt.Errorf("render subject %s: %w", name, err)
	}
	if err := t.body.Execute(&bb, data); err != nil {
		return "", "", fmt.Errorf("render body %s: %w", name, err)
	}
	return sb.String(), bb.String(), nil
}

func renderWhatsApp(name string, data TemplateData) (string, error) {
	t, ok := whatsAppTemplates[name]
	if !ok {
		return "", fmt.Errorf("%w: whatsapp/%s", ErrUnknownTemplate, name)
	}

	var b bytes.Buffer
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return b.String(), nil
}
