package core

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// RuntimeContext carries the per-invocation behavior that is not part of
// the config file: which mode we run in and the dev-mode reload hooks.
type RuntimeContext struct {
	Env         string
	EnableWatch bool
	OnReload    func()
}

// Router dispatches page requests to the template renderer. It is mounted
// as the fallback handler, so anything the static server or the API
// endpoints did not claim lands here.
type Router struct {
	config   Config
	renderer *Renderer
	env      string
	watcher  *fsnotify.Watcher
}

func NewRouter(config Config, renderer *Renderer, ctx RuntimeContext) *Router {
	r := &Router{config: config, renderer: renderer, env: ctx.Env}

	if ctx.EnableWatch {
		dirs := []string{config.TemplatesDir, config.StaticDir}
		watcher, err := WatchDirs(dirs, func() {
			if err := renderer.Reload(); err != nil {
				slog.Error("template reload failed, keeping previous set", "error", err)
				return
			}
			if ctx.OnReload != nil {
				ctx.OnReload()
			}
		})
		if err != nil {
			slog.Warn("file watching unavailable, live reload disabled", "error", err)
		} else {
			r.watcher = watcher
		}
	}

	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	path := strings.Trim(req.URL.Path, "/")

	name := path + ".html"
	if path == "" {
		name = "index.html"
	} else if strings.HasSuffix(path, ".html") {
		name = path
	}

	if !r.renderer.Has(name) {
		r.notFound(w, req)
		return
	}

	params := map[string]string{}
	for key, values := range req.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	body, err := r.renderer.Render(name, map[string]interface{}{
		"Env":    r.env,
		"Path":   "/" + path,
		"Params": params,
	})
	if err != nil {
		if IsNotFoundError(err) {
			r.notFound(w, req)
			return
		}
		http.Error(w, "Template error: "+err.Error(), HTTPStatus(err))
		return
	}

	if r.config.DebugHeaders {
		w.Header().Set("X-Glazed-Template", name)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(body)
}

// notFound serves the static 404 page when one exists, keeping unresolved
// paths on-brand without requiring a template.
func (r *Router) notFound(w http.ResponseWriter, req *http.Request) {
	page := filepath.Join(r.config.StaticDir, "404.html")
	if content, err := os.ReadFile(page); err == nil {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		w.Write(content)
		return
	}
	http.NotFound(w, req)
}
