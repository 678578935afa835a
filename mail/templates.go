package mail

import (
	"bytes"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

type templateData struct {
	Brand string
	Name  string
	Link  string
	TTL   string
}

type template struct {
	subject string
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

func newTemplate(name, subject, text, html string) template {
	return template{
		subject: subject,
		text:    texttemplate.Must(texttemplate.New(name).Parse(text)),
		html:    htmltemplate.Must(htmltemplate.New(name).Parse(html)),
	}
}

func (t template) render(to string, data templateData) (Message, error) {
	var text, html bytes.Buffer
	if err := t.text.Execute(&text, data); err != nil {
		return Message{}, err
	}
	if err := t.html.Execute(&html, data); err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: strings.ReplaceAll(t.subject, "{brand}", data.Brand),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

const layoutOpen = `<div style="font-family:Arial,sans-serif;max-width:600px;margin:0 auto;padding:20px;">`

var verificationTemplate = newTemplate("verification",
	"Verify Your Email - {brand}",
	`Hello {{if .Name}}{{.Name}}{{else}}there{{end}},

Please verify your email by opening: {{.Link}}

This link expires in {{.TTL}}.

{{.Brand}} Team
`,
	layoutOpen+`
<h2 style="color:#0B4F6C;">Welcome to {{.Brand}}!</h2>
<p>Hello <strong>{{if .Name}}{{.Name}}{{else}}there{{end}}</strong>,</p>
<p>Please verify your email address to activate your account.</p>
<a href="{{.Link}}" style="display:inline-block;padding:12px 24px;background:#0B4F6C;color:white;text-decoration:none;border-radius:6px;margin:16px 0;">Verify Email</a>
<p style="color:#666;font-size:12px;">This link expires in {{.TTL}}. If you didn't create an account, ignore this email.</p>
</div>`)

var resetTemplate = newTemplate("reset",
	"Password Reset - {brand}",
	`Hello {{if .Name}}{{.Name}}{{else}}there{{end}},

Reset your password: {{.Link}}

This link expires in {{.TTL}}. If you didn't request this, ignore this email.
`,
	layoutOpen+`
<h2 style="color:#0B4F6C;">Password Reset Request</h2>
<p>Hello <strong>{{if .Name}}{{.Name}}{{else}}there{{end}}</strong>,</p>
<p>We received a request to reset your password. Click below to proceed:</p>
<a href="{{.Link}}" style="display:inline-block;padding:12px 24px;background:#dc2626;color:white;text-decoration:none;border-radius:6px;margin:16px 0;">Reset Password</a>
<p style="color:#666;font-size:12px;">This link expires in {{.TTL}}. If you didn't request this, ignore this email.</p>
</div>`)

var passwordChangedTemplate = newTemplate("password-changed",
	"Password Changed - {brand}",
	`Your password has been changed successfully.

If you did not make this change, please contact support immediately.
`,
	layoutOpen+`
<h2 style="color:#0B4F6C;">Password Changed</h2>
<p>Your password has been changed successfully.</p>
<p>If you did not make this change, please contact support immediately.</p>
</div>`)
