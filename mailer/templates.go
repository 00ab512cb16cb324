package mailer

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Kind selects an email template.
type Kind string

const (
	KindVerify Kind = "verify"
	KindReset  Kind = "reset"
)

var subjects = map[Kind]string{
	KindVerify: "Verify Your Email",
	KindReset:  "Reset Your Password",
}

type templateData struct {
	Name     string
	URL      string
	ValidFor string
}

type renderer struct {
	html map[Kind]*htmltemplate.Template
	text map[Kind]*texttemplate.Template
}

func newRenderer() (*renderer, error) {
	r := &renderer{
		html: make(map[Kind]*htmltemplate.Template, len(subjects)),
		text: make(map[Kind]*texttemplate.Template, len(subjects)),
	}
	for kind := range subjects {
		h, err := htmltemplate.ParseFS(templateFS, "templates/"+string(kind)+".html.tmpl")
		if err != nil {
			return nil, fmt.Errorf("parse %s html template: %w", kind, err)
		}
		t, err := texttemplate.ParseFS(templateFS, "templates/"+string(kind)+".txt.tmpl")
		if err != nil {
			return nil, fmt.Errorf("parse %s text template: %w", kind, err)
		}
		r.html[kind] = h
		r.text[kind] = t
	}
	return r, nil
}

// render returns the plain-text and HTML bodies for kind.
func (r *renderer) render(kind Kind, data templateData) (string, string, error) {
	h, ok := r.html[kind]
	if !ok {
		return "", "", fmt.Errorf("unknown template %q", kind)
	}

	var text, html bytes.Buffer
	if err := r.text[kind].Execute(&text, data); err != nil {
		return "", "", fmt.Errorf("render %s text: %w", kind, err)
	}
	if err := h.Execute(&html, data); err != nil {
		return "", "", fmt.Errorf("render %s html: %w", kind, err)
	}
	return text.String(), html.String(), nil
}

// validFor renders the remaining lifetime of a link, rounded to whole hours
// when at least an hour remains and to minutes otherwise.
func validFor(expiresAt, now time.Time) string {
	d := expiresAt.Sub(now)
	if d <= 0 {
		return "a few minutes"
	}
	if d >= time.Hour {
		hours := int((d + 30*time.Minute) / time.Hour)
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	minutes := int((d + 30*time.Second) / time.Minute)
	if minutes <= 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}
