package web

import (
	"context"
	"embed"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hpungsan/lsearch/internal/catalog"
	"github.com/hpungsan/lsearch/internal/config"
	"github.com/hpungsan/lsearch/internal/ops"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Deps are the collaborators the HTTP handlers need.
type Deps struct {
	Store   ops.Store
	Syncer  *ops.Syncer
	Catalog *catalog.Catalog
	Config  *config.Config
	Logger  *slog.Logger
	Version string
}

// NewHandlers builds the handlers and parses the embedded templates.
func NewHandlers(deps Deps) (*Handlers, error) {
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, err
	}
	renderer, err := NewRenderer(templateSub, deps.Version)
	if err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	cat := deps.Catalog
	if cat == nil {
		cat = catalog.New(nil, nil, nil)
	}
	renderer.logger = logger

	return &Handlers{
		store:    deps.Store,
		syncer:   deps.Syncer,
		catalog:  cat,
		cfg:      cfg,
		logger:   logger,
		renderer: renderer,
	}, nil
}

// Routes registers every page and API route.
func (h *Handlers) Routes() http.Handler {
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/commands", http.StatusFound)
	})
	mux.HandleFunc("GET /commands", h.HandleList)
	mux.HandleFunc("GET /commands/{name}", h.HandleDetail)

	mux.HandleFunc("GET /api/notebooklm", h.HandleNotebookInfo)
	mux.HandleFunc("POST /api/notebooklm", h.HandleNotebookAction)
	mux.HandleFunc("POST /api/upload", h.HandleUpload)
	mux.HandleFunc("GET /api/seed", h.HandleSeedStatus)
	mux.HandleFunc("POST /api/seed", h.HandleSeed)
	mux.HandleFunc("GET /api/commands", h.HandleSearchCommands)
	mux.HandleFunc("POST /api/commands", h.HandlePutCommand)
	mux.HandleFunc("PATCH /api/commands", h.HandleRepopulate)
	mux.HandleFunc("GET /api/commands/{name}", h.HandleGetCommand)

	mux.HandleFunc("GET /static/categories.css", h.HandleCategoryCSS)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticSub)))

	return securityHeaders(recoverPanics(h.logger, mux))
}

// NewServer creates the HTTP server for the catalog UI and API.
func NewServer(h *Handlers, addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// recoverPanics turns a handler panic into a 500 JSON response.
func recoverPanics(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				logger.Error("handler panic", "path", r.URL.Path, "panic", v)
				renderJSON(w, http.StatusInternalServerError, map[string]any{
					"success": false,
					"error":   "internal error",
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM.
func Run(srv *http.Server, logger *slog.Logger) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("lsearch UI running", "url", "http://"+srv.Addr)

	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		logger.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
