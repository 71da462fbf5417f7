package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	texttemplate "text/template"
	"time"
)

// ConfirmData is the data for double-opt-in confirmation emails.
type ConfirmData struct {
	SiteName   string
	ConfirmURL string
	Interests  []string
}

// ContactData is the data for contact-form relay emails.
type ContactData struct {
	Name    string
	Email   string
	Message string
}

type confirmTemplate struct {
	subject string
	html    string
	text    string
}

const confirmHTMLDefault = `<!DOCTYPE html>
<html>
<body style="font-family:sans-serif;background:#f5f5f5;padding:20px">
<div style="max-width:600px;margin:0 auto;background:#fff;border-radius:8px;padding:24px">
  <h2 style="color:#333">One more step</h2>
  <p>Thanks for signing up to {{.SiteName}}! Please confirm your email to start receiving your picks{{if .Interests}} for {{interestsList .Interests}}{{end}}:</p>
  <p style="margin-top:24px">
    <a href="{{.ConfirmURL}}" style="background:#4f46e5;color:#fff;padding:8px 16px;text-decoration:none;border-radius:4px">Confirm my email</a>
  </p>
  <p style="color:#999;font-size:12px">If this wasn't you, just ignore this email.</p>
</div>
</body>
</html>`

const confirmTextDefault = `Thanks for signing up to {{.SiteName}}!

Please confirm your email by opening this link:

{{.ConfirmURL}}

If this wasn't you, just ignore this email.
`

const confirmHTMLWeekend = `<!DOCTYPE html>
<html>
<body style="font-family:sans-serif;background:#fff7ed;padding:20px">
<div style="max-width:600px;margin:0 auto;background:#fff;border-radius:8px;padding:24px">
  <h2 style="color:#9a3412">Your weekend, sorted</h2>
  <p>You're one click away from the best of London every Thursday. Confirm your email and we'll take it from there:</p>
  <p style="margin-top:24px">
    <a href="{{.ConfirmURL}}" style="background:#ea580c;color:#fff;padding:8px 16px;text-decoration:none;border-radius:4px">Confirm my email</a>
  </p>
  <p style="color:#999;font-size:12px">If this wasn't you, just ignore this email.</p>
</div>
</body>
</html>`

const contactRelayHTML = `<!DOCTYPE html>
<html>
<body style="font-family:sans-serif;padding:20px">
  <h3>New contact form message</h3>
  <p><strong>From:</strong> {{.Name}} &lt;{{.Email}}&gt;</p>
  <blockquote style="border-left:3px solid #ddd;margin:16px 0;padding:4px 12px;color:#333">{{.Message}}</blockquote>
</body>
</html>`

// confirmTemplates maps newsletter slugs to their themed confirmation
// email. Unknown slugs fall back to DefaultNewsletter.
const DefaultNewsletter = "sidestreets"

var confirmTemplates = map[string]confirmTemplate{
	DefaultNewsletter: {
		subject: "Confirm your %s subscription",
		html:    confirmHTMLDefault,
		text:    confirmTextDefault,
	},
	"weekend": {
		subject: "Confirm your email for %s Weekend",
		html:    confirmHTMLWeekend,
		text:    confirmTextDefault,
	},
}

func renderHTML(tpl string, data interface{}) (string, error) {
	t, err := template.New("").Funcs(template.FuncMap{
		"year": func() int { return time.Now().Year() },
		"interestsList": func(items []string) string {
			return strings.Join(items, ", ")
		},
	}).Parse(tpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderText(tpl string, data interface{}) (string, error) {
	t, err := texttemplate.New("").Parse(tpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// resolveConfirmTemplate returns the template for a newsletter slug,
// falling back to the default.
func resolveConfirmTemplate(newsletter string) confirmTemplate {
	slug := strings.ToLower(strings.TrimSpace(newsletter))
	if tpl, ok := confirmTemplates[slug]; ok {
		return tpl
	}
	return confirmTemplates[DefaultNewsletter]
}

// SendConfirm sends the double-opt-in confirmation email for a newsletter.
func (s *Sender) SendConfirm(to, newsletter string, data ConfirmData) error {
	tpl := resolveConfirmTemplate(newsletter)
	html, err := renderHTML(tpl.html, data)
	if err != nil {
		return err
	}
	text, err := renderText(tpl.text, data)
	if err != nil {
		return err
	}
	return s.Send(Message{
		To:      []string{to},
		Subject: fmt.Sprintf(tpl.subject, data.SiteName),
		HTML:    html,
		Text:    text,
	})
}

// SendContactRelay forwards a contact-form message to the site inbox.
func (s *Sender) SendContactRelay(to string, data ContactData) error {
	if strings.TrimSpace(data.Name) == "" {
		data.Name = "Anonymous"
	}
	html, err := renderHTML(contactRelayHTML, data)
	if err != nil {
		return err
	}
	return s.Send(Message{
		To:      []string{to},
		Subject: fmt.Sprintf("Contact form: %s", data.Name),
		HTML:    html,
		Text:    fmt.Sprintf("From: %s <%s>\n\n%s", data.Name, data.Email, data.Message),
	})
}
