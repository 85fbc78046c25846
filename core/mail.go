package core

import (
	"bytes"
	"encoding/base64"
	htmltmpl "html/template"
	"io"
	"net/http"
	"net/mail"
	"path/filepath"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"
)

const (
	textExt = ".txt"
	htmlExt = ".gohtml"
)

type executor interface {
	Execute(w io.Writer, data interface{}) error
}

// emailTemplates holds the parsed text & HTML variants of every email, by name.
type emailTemplates struct {
	mu          sync.RWMutex
	text        map[string]*texttmpl.Template
	html        map[string]*htmltmpl.Template
	frontendURL string
}

var mailTemplates = &emailTemplates{
	text: make(map[string]*texttmpl.Template),
	html: make(map[string]*htmltmpl.Template),
}

func (et *emailTemplates) render(name string, data interface{}) (text, html string, err error) {
	et.mu.RLock()
	defer et.mu.RUnlock()

	ctx := TemplateContext{FrontendBaseURL: et.frontendURL, Data: data}
	if tmpl, ok := et.text[name]; ok {
		if text, err = execute(tmpl, ctx); err != nil {
			return "", "", err
		}
	}
	if tmpl, ok := et.html[name]; ok {
		if html, err = execute(tmpl, ctx); err != nil {
			return "", "", err
		}
	}
	return text, html, nil
}

func execute(tmpl executor, ctx TemplateContext) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return "", err
	}
	return buf.String(), nil
}

type (
	// Attachment content is base64 encoded.
	Attachment struct {
		Content     *bytes.Buffer
		ContentType string
		Filename    string
	}

	// EmailMessage is rendered from the TemplateName templates before being sent.
	EmailMessage struct {
		To          []mail.Address
		Cc          []mail.Address
		Bcc         []mail.Address
		Subject     string
		Attachments []Attachment

		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	TemplateContext struct {
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

// Render fills TextContent & HTMLContent. Messages with content already set are left as is.
func (m *EmailMessage) Render() error {
	if m.TemplateName == "" || m.HasContent() {
		return nil
	}
	text, html, err := mailTemplates.render(m.TemplateName, m.TemplateData)
	if err != nil {
		return errors.Wrapf(err, "rendering %s email", m.TemplateName)
	}
	m.TextContent, m.HTMLContent = text, html
	return nil
}

// Attach reads r and adds its content as an attachment.
// The content type is sniffed when not provided.
func (m *EmailMessage) Attach(r io.Reader, filename string, ct ...string) error {
	content, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	at := Attachment{Filename: filename, Content: new(bytes.Buffer)}
	encoder := base64.NewEncoder(base64.StdEncoding, at.Content)
	if _, err = encoder.Write(content); err != nil {
		return err
	}
	if err = encoder.Close(); err != nil {
		return err
	}

	at.ContentType = http.DetectContentType(content)
	if len(ct) > 0 && ct[0] != "" {
		at.ContentType = ct[0]
	}
	m.Attachments = append(m.Attachments, at)
	return nil
}

func (m *EmailMessage) HasRecipients() bool  { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool     { return m.TextContent != "" || m.HTMLContent != "" }
func (m *EmailMessage) HasAttachments() bool { return len(m.Attachments) > 0 }

// ParseEmailTemplates loads the email templates found in `<WorkDir>/assets/templates/email`,
// each one along with the `_base` template of the same extension.
// Broken templates are logged and skipped: the emails using them are sent without content.
func ParseEmailTemplates(conf *Config, logger Logger) {
	dir := filepath.Join(conf.WorkDir, "assets", "templates", "email")
	strict := conf.Debug || conf.TestMode

	text := make(map[string]*texttmpl.Template)
	html := make(map[string]*htmltmpl.Template)

	paths, err := filepath.Glob(filepath.Join(dir, "*"))
	if err != nil {
		logger.Error("listing email templates", err)
	}
	for _, path := range paths {
		fname := filepath.Base(path)
		ext := filepath.Ext(fname)
		name := strings.TrimSuffix(fname, ext)
		if strings.HasPrefix(fname, "_") {
			continue
		}

		switch ext {
		case textExt:
			tmpl, err := texttmpl.ParseFiles(filepath.Join(dir, "_base"+textExt), path)
			if err != nil {
				logger.Error("parsing email template "+fname, err)
				continue
			}
			if strict {
				tmpl = tmpl.Option("missingkey=error")
			}
			text[name] = tmpl
		case htmlExt:
			tmpl, err := htmltmpl.ParseFiles(filepath.Join(dir, "_base"+htmlExt), path)
			if err != nil {
				logger.Error("parsing email template "+fname, err)
				continue
			}
			if strict {
				tmpl = tmpl.Option("missingkey=error")
			}
			html[name] = tmpl
		}
	}

	mailTemplates.mu.Lock()
	mailTemplates.text, mailTemplates.html = text, html
	mailTemplates.frontendURL = conf.FrontendBaseURL
	mailTemplates.mu.Unlock()
}
