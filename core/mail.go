package core

import (
	"bytes"
	"encoding/base64"
	htmltmpl "html/template"
	"io"
	"io/fs"
	"net/http"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"
)

var (
	templates   = make(tmplCache)
	templatesMu sync.RWMutex
	frontendURL string
	schoolName  string
)

type (
	tmplCacheEntry map[string]executor       // {ext: *Template}
	tmplCache      map[string]tmplCacheEntry // {name: {tmplCacheEntry}}

	Attachment struct {
		Content     *bytes.Buffer
		ContentType string
		Filename    string
	}

	EmailMessage struct {
		To          []mail.Address
		Cc          []mail.Address
		Bcc         []mail.Address
		Subject     string
		BodyStr     string // simple text/plain, non-templated content
		Attachments []Attachment

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	ContextData struct {
		FrontendBaseURL string
		SchoolName      string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

func (m *EmailMessage) getContextData() ContextData {
	return ContextData{
		FrontendBaseURL: frontendURL,
		SchoolName:      schoolName,
		Data:            m.TemplateData,
	}
}

// executor is satisfied by both *texttmpl.Template and *htmltmpl.Template.
type executor interface {
	Execute(w io.Writer, data interface{}) error
}

func (m *EmailMessage) getTemplate(ext string) (executor, bool) {
	templatesMu.RLock()
	defer templatesMu.RUnlock()
	tmpl, ok := templates[m.TemplateName][ext]
	return tmpl, ok
}

// render executes the template of m with the given extension into dst; a missing template is not an error.
func (m *EmailMessage) render(ext string, dst *string) error {
	if m.TemplateName == "" {
		return nil
	}
	tmpl, ok := m.getTemplate(ext)
	if !ok {
		return nil
	}

	var buff bytes.Buffer
	if err := tmpl.Execute(&buff, m.getContextData()); err != nil {
		return errors.Wrapf(err, "rendering %s%s", m.TemplateName, ext)
	}
	*dst = buff.String()
	return nil
}

// Render fills TextContent (BodyStr wins over the text template) and HTMLContent.
func (m *EmailMessage) Render() error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
	} else if err := m.render(".txt", &m.TextContent); err != nil {
		return err
	}
	return m.render(".gohtml", &m.HTMLContent)
}

func (m *EmailMessage) Attach(r io.Reader, filename string, ct ...string) error {
	at := Attachment{Filename: filename, Content: new(bytes.Buffer)}

	content, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	encoder := base64.NewEncoder(base64.StdEncoding, at.Content)
	if _, err := encoder.Write(content); err != nil {
		return err
	}
	if err := encoder.Close(); err != nil {
		return err
	}

	if len(ct) > 0 {
		at.ContentType = ct[0]
	} else {
		at.ContentType = http.DetectContentType(content)
	}
	m.Attachments = append(m.Attachments, at)
	return nil
}

func (m *EmailMessage) HasRecipients() bool  { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool     { return (m.TextContent != "") || (m.HTMLContent != "") }
func (m *EmailMessage) HasAttachments() bool { return len(m.Attachments) > 0 }

// Prepare renders m and reports whether it has anything to deliver to anyone.
func (m *EmailMessage) Prepare() (bool, error) {
	if err := m.Render(); err != nil {
		return false, err
	}
	return m.HasRecipients() && (m.HasContent() || m.HasAttachments()), nil
}

// ContentPart is one MIME alternative of a rendered message.
type ContentPart struct {
	Type  string
	Value string
}

// Parts lists the non-empty alternatives of m, text/plain first.
func (m *EmailMessage) Parts() []ContentPart {
	parts := make([]ContentPart, 0, 2)
	if m.TextContent != "" {
		parts = append(parts, ContentPart{Type: "text/plain", Value: m.TextContent})
	}
	if m.HTMLContent != "" {
		parts = append(parts, ContentPart{Type: "text/html", Value: m.HTMLContent})
	}
	return parts
}

// ParseEmailTemplates parses every <name>.txt and <name>.gohtml template under `dir` of fsys,
// each one on top of the matching _base template.
func ParseEmailTemplates(fsys fs.FS, dir string, conf *Config, logger Logger) {
	templatesMu.Lock()
	defer templatesMu.Unlock()

	frontendURL = conf.FrontendBaseURL
	schoolName = conf.SchoolName
	templates = make(tmplCache)

	fps, err := fs.Glob(fsys, path.Join(dir, "*"))
	if err != nil {
		logger.Error("parsing email templates", errors.Wrap(err, "globbing"))
		return
	}

	strict := conf.Debug || conf.TestMode
	for _, fp := range fps {
		fname := path.Base(fp)
		ext := path.Ext(fname)
		if strings.HasPrefix(fname, "_") || !(ext == ".txt" || ext == ".gohtml") {
			continue
		}
		name := strings.TrimSuffix(fname, ext)
		entry, ok := templates[name]
		if !ok {
			entry = make(tmplCacheEntry)
			templates[name] = entry
		}
		if ext == ".txt" {
			tmpl, err := texttmpl.ParseFS(fsys, path.Join(dir, "_base.txt"), fp)
			if err != nil {
				logger.Error("parsing email template "+fname, err)
				continue
			}
			if strict {
				tmpl = tmpl.Option("missingkey=error")
			}
			entry[ext] = tmpl
		} else {
			tmpl, err := htmltmpl.ParseFS(fsys, path.Join(dir, "_base.gohtml"), fp)
			if err != nil {
				logger.Error("parsing email template "+fname, err)
				continue
			}
			if strict {
				tmpl = tmpl.Option("missingkey=error")
			}
			entry[ext] = tmpl
		}
	}
}
