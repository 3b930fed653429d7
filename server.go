package glazed

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/diamondlightsource/glazed/core"
	"github.com/diamondlightsource/glazed/tiled"
)

type RuntimeConfig struct {
	Env        string
	ConfigFile string

	// OnListen, when set, receives the bound address once the listener is
	// accepting connections. Binding ":0" and reading the address back is
	// how callers get an ephemeral port.
	OnListen func(net.Addr)
}

// Start loads config, wires the handler tree and serves until the process
// is interrupted, then drains in-flight requests.
func Start(rc RuntimeConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return Serve(ctx, rc)
}

// Serve runs the gateway until ctx is canceled, then shuts down with a
// bounded drain of in-flight requests.
func Serve(ctx context.Context, rc RuntimeConfig) error {
	if rc.Env == "" {
		rc.Env = "prod"
	}

	config, err := core.LoadConfig(rc.ConfigFile)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if config.DebugLogs {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	handler, err := NewHandler(config, rc.Env)
	if err != nil {
		return err
	}

	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	listener, err := net.Listen("tcp", config.BindAddress)
	if err != nil {
		return err
	}
	if rc.OnListen != nil {
		rc.OnListen(listener.Addr())
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(listener)
	}()

	slog.Info("serving glazed", "address", listener.Addr().String(), "env", rc.Env)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		slog.Info("server interrupted, shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

// NewHandler builds the full handler tree: static assets, the GraphQL
// endpoint and console, the asset download proxy and the template router
// as fallback.
func NewHandler(config core.Config, env string) (http.Handler, error) {
	renderer, err := core.NewRenderer(config, env)
	if err != nil {
		return nil, err
	}

	client, err := tiled.NewClient(config.TiledAddress)
	if err != nil {
		return nil, err
	}

	public, err := config.PublicURL()
	if err != nil {
		return nil, err
	}

	gql, err := core.NewGraphQL(client, public, renderer)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()

	mux.Handle("/static/", http.StripPrefix("/static/", core.NewStaticHandler(config, env)))
	for _, file := range []string{"favicon.ico", "robots.txt"} {
		path, target := "/"+file, filepath.Join(config.StaticDir, file)
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			if env == "dev" {
				w.Header().Set("Cache-Control", "no-store")
			} else {
				w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
			}
			http.ServeFile(w, r, target)
		})
	}

	mux.Handle("/graphql", gql)
	mux.HandleFunc("/graphiql", gql.GraphiQL)
	mux.Handle("GET /asset/{run}/{stream}/{det}/{id}", core.NewDownloadHandler(client))

	if env == "dev" {
		reloader := core.NewLiveReloader()
		mux.HandleFunc("/__glazed_reload", reloader.Handler)

		mux.Handle("/", core.NewRouter(config, renderer, core.RuntimeContext{
			Env:         env,
			EnableWatch: true,
			OnReload:    reloader.BroadcastReload,
		}))
	} else {
		mux.Handle("/", core.NewRouter(config, renderer, core.RuntimeContext{
			Env:         env,
			EnableWatch: false,
		}))
	}

	return logRequests(mux), nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack keeps the live-reload websocket upgrade working behind the logger.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return hijacker.Hijack()
}

// logRequests tags each request with an id and logs method, path, status
// and duration.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(recorder, r)

		slog.Info("request",
			"id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.status,
			"duration", time.Since(start),
		)
	})
}
