package core

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Masterminds/sprig/v3"
)

// Renderer holds the parsed template set. Templates are loaded once at
// startup and treated as read-only; Reload swaps in a fresh set and exists
// for dev-mode watching.
type Renderer struct {
	config Config
	env    string

	mu   sync.RWMutex
	tmpl *template.Template
}

func NewRenderer(config Config, env string) (*Renderer, error) {
	r := &Renderer{config: config, env: env}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-parses every template under the templates directory. Template
// names are slash-separated paths relative to the directory, e.g.
// "index.html".
func (r *Renderer) Reload() error {
	root := template.New("").Funcs(sprig.HtmlFuncMap()).Funcs(GlazedTemplateFuncs(r.env, r.config))

	err := filepath.WalkDir(r.config.TemplatesDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".html") {
			return err
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(r.config.TemplatesDir, path)
		if err != nil {
			return err
		}

		_, err = root.New(filepath.ToSlash(rel)).Parse(string(content))
		return err
	})
	if err != nil {
		return fmt.Errorf("loading templates from %s: %w", r.config.TemplatesDir, err)
	}

	r.mu.Lock()
	r.tmpl = root
	r.mu.Unlock()
	return nil
}

// Has reports whether a template with the given name was loaded.
func (r *Renderer) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tmpl.Lookup(name) != nil
}

// Names lists the loaded template names.
func (r *Renderer) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for _, t := range r.tmpl.Templates() {
		if t.Name() != "" {
			names = append(names, t.Name())
		}
	}
	return names
}

// Render executes the named template against data. The body is built in a
// buffer so an execution failure never produces a partial response.
func (r *Renderer) Render(name string, data any) ([]byte, error) {
	r.mu.RLock()
	tmpl := r.tmpl.Lookup(name)
	r.mu.RUnlock()

	if tmpl == nil {
		return nil, fmt.Errorf("template %q: %w", name, ErrNotFound)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, &RenderError{Template: name, Err: err}
	}
	return buf.Bytes(), nil
}
