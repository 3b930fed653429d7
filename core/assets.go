package core

import (
	"bytes"
	"compress/gzip"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"html/template"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/tdewolff/minify/v2"
	mincss "github.com/tdewolff/minify/v2/css"
	minjs "github.com/tdewolff/minify/v2/js"
)

// StaticHandler serves files below the configured static root. Mount it
// under /static/ behind http.StripPrefix. Requests resolving outside the
// root are rejected with 403, missing files with 404.
type StaticHandler struct {
	config Config
	env    string
}

func NewStaticHandler(config Config, env string) *StaticHandler {
	return &StaticHandler{config: config, env: env}
}

func (h *StaticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rel, err := h.resolve(r.URL.Path)
	if err != nil {
		http.Error(w, "Forbidden", HTTPStatus(err))
		return
	}

	if h.env == "dev" {
		w.Header().Set("Cache-Control", "no-store")
		h.serveFile(w, r, filepath.Join(h.config.StaticDir, rel))
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")

	cachedFile := filepath.Join(h.config.OutputDir, "static", rel)
	if acceptsGzip(r) {
		if gzipFile := cachedFile + ".gz"; fileExists(gzipFile) {
			w.Header().Set("Content-Type", detectMimeType(cachedFile))
			w.Header().Set("Content-Encoding", "gzip")
			w.Header().Set("Vary", "Accept-Encoding")
			http.ServeFile(w, r, gzipFile)
			return
		}
	}
	if fileExists(cachedFile) {
		h.serveFile(w, r, cachedFile)
		return
	}

	h.serveFile(w, r, filepath.Join(h.config.StaticDir, rel))
}

// resolve normalizes a request path to a root-relative file path, refusing
// anything that would escape the static root.
func (h *StaticHandler) resolve(urlPath string) (string, error) {
	uri := urlPath
	if i := strings.Index(uri, "?"); i != -1 {
		uri = uri[:i]
	}
	rel := filepath.FromSlash(strings.TrimPrefix(uri, "/"))

	if rel == "" || !filepath.IsLocal(rel) {
		return "", &AccessError{Path: urlPath}
	}
	return rel, nil
}

func (h *StaticHandler) serveFile(w http.ResponseWriter, r *http.Request, file string) {
	if !fileExists(file) {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", detectMimeType(file))
	http.ServeFile(w, r, file)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func acceptsGzip(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept-Encoding"), "gzip")
}

func detectMimeType(path string) string {
	ext := filepath.Ext(path)
	if ext == ".gz" {
		ext = filepath.Ext(strings.TrimSuffix(path, ".gz"))
	}

	switch ext {
	case ".css":
		return "text/css"
	case ".js":
		return "application/javascript"
	case ".webp":
		return "image/webp"
	case ".svg":
		return "image/svg+xml"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".woff":
		return "font/woff"
	case ".woff2":
		return "font/woff2"
	case ".html":
		return "text/html; charset=utf-8"
	case ".json":
		return "application/json"
	}

	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

// MinifyAsset minifies a /static/ css or js path into the output directory
// and returns a hashed URL for it. Outside prod, or when minification is
// not possible, the original path is returned unchanged.
func MinifyAsset(env, path, staticDir, cacheDir string) string {
	if env != "prod" {
		return path
	}

	ext := filepath.Ext(path)
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, ext)

	if ext != ".css" && ext != ".js" {
		return path
	}

	if strings.Contains(name, ".min") {
		return path
	}

	rel := strings.TrimPrefix(path, "/static/")
	src := filepath.Join(staticDir, rel)
	min := filepath.Join(cacheDir, "static", fmt.Sprintf("%s.min%s", name, ext))

	original, err := os.ReadFile(src)
	if err != nil {
		return path
	}

	m := minify.New()
	m.AddFunc("text/css", mincss.Minify)
	m.AddFunc("application/javascript", minjs.Minify)

	var buf bytes.Buffer
	var minifyErr error

	switch ext {
	case ".css":
		minifyErr = m.Minify("text/css", &buf, bytes.NewReader(original))
	case ".js":
		minifyErr = m.Minify("application/javascript", &buf, bytes.NewReader(original))
	}

	if minifyErr != nil {
		return path
	}

	minified := buf.Bytes()

	if err := os.MkdirAll(filepath.Dir(min), os.ModePerm); err != nil {
		return path
	}

	if err := os.WriteFile(min, minified, 0644); err != nil {
		return path
	}

	if f, err := os.Create(min + ".gz"); err == nil {
		gz := gzip.NewWriter(f)
		if _, err := gz.Write(minified); err == nil {
			_ = gz.Close()
		}
		f.Close()
	}

	h := md5.New()
	h.Write(minified)
	hash := hex.EncodeToString(h.Sum(nil))[:6]

	return fmt.Sprintf("/static/%s.min%s?v=%s", name, ext, hash)
}

// GlazedTemplateFuncs are the funcs available to every template, on top of
// the sprig set.
func GlazedTemplateFuncs(env string, config Config) template.FuncMap {
	return template.FuncMap{
		"minify": func(path string) string {
			return MinifyAsset(env, path, config.StaticDir, config.OutputDir)
		},
		"safeHTML": func(s interface{}) template.HTML {
			switch val := s.(type) {
			case template.HTML:
				return val
			case string:
				return template.HTML(val)
			default:
				return ""
			}
		},
		"props": func(values ...interface{}) map[string]interface{} {
			if len(values)%2 != 0 {
				panic("props must be called with even number of arguments")
			}
			m := make(map[string]interface{}, len(values)/2)
			for i := 0; i < len(values); i += 2 {
				key, ok := values[i].(string)
				if !ok {
					panic("props keys must be strings")
				}
				m[key] = values[i+1]
			}
			return m
		},
		"versioned": func(path string) string {
			if !strings.HasPrefix(path, "/static/") {
				return path
			}

			rel := strings.TrimPrefix(path, "/static/")
			locations := []string{
				filepath.Join(config.StaticDir, rel),
				filepath.Join(config.OutputDir, "static", rel),
			}

			for _, file := range locations {
				if content, err := os.ReadFile(file); err == nil {
					h := md5.New()
					h.Write(content)
					hash := hex.EncodeToString(h.Sum(nil))[:6]
					return fmt.Sprintf("/static/%s?v=%s", rel, hash)
				}
			}

			return path
		},
	}
}
