package mailer

import (
	"bytes"
	"fmt"
	"io/fs"
	"net/http"

	"github.com/gofiber/template/django/v3"
	accounts "github.com/goliatone/go-accounts"
)

const templateExtension = ".html"

// TemplateRenderer renders email bodies from django templates
type TemplateRenderer struct {
	engine *django.Engine
}

var _ accounts.MessageRenderer = (*TemplateRenderer)(nil)

// NewTemplateRenderer loads every template in fsys. Pass
// accounts.GetTemplatesFS() for the bundled templates.
func NewTemplateRenderer(fsys fs.FS) (*TemplateRenderer, error) {
	engine := django.NewFileSystem(http.FS(fsys), templateExtension)
	if err := engine.Load(); err != nil {
		return nil, fmt.Errorf("load email templates: %w", err)
	}

	return &TemplateRenderer{engine: engine}, nil
}

// Render executes template name with data
func (r *TemplateRenderer) Render(name string, data map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := r.engine.Render(&buf, name, data); err != nil {
		return "", fmt.Errorf("render email template %s: %w", name, err)
	}
	return buf.String(), nil
}
