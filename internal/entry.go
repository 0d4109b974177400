// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/notegraph/internal/api"
	"github.com/starford/notegraph/internal/export"
	"github.com/starford/notegraph/internal/index"
	"github.com/starford/notegraph/internal/mcpserver"
	"github.com/starford/notegraph/internal/noteservice"
	"github.com/starford/notegraph/internal/render"
	"github.com/starford/notegraph/internal/sse"
	"github.com/starford/notegraph/internal/storage"
	"github.com/starford/notegraph/internal/vault"
)

// stack holds the components shared by every command.
type stack struct {
	store *storage.FS
	db    *index.DB
	svc   *noteservice.Service
}

func (s *stack) close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func newApplication(opts []Option, defaultOut io.Writer) (*application, error) {
	app := &application{logOutput: defaultOut}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func (a *application) newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
}

// open prepares storage, the SQLite index and the note service.
func (a *application) open(logger *slog.Logger) (*stack, error) {
	cfg := a.config

	logger.Info("Configuration loaded",
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Int("workers", cfg.Build.Workers),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	svc := noteservice.NewService(store, db, logger, vault.WithWorkers(cfg.Build.Workers))
	return &stack{store: store, db: db, svc: svc}, nil
}

// Build runs a one-shot build: it reads the vault, saves it to SQLite, writes
// the JSON export and renders one HTML page per note into the output
// directory.
func Build(ctx context.Context, opts ...Option) (*vault.Report, error) {
	app, err := newApplication(opts, os.Stdout)
	if err != nil {
		return nil, err
	}
	cfg := app.config
	logger := app.newLogger()

	st, err := app.open(logger)
	if err != nil {
		return nil, err
	}
	defer st.close()

	report, err := st.svc.Rebuild(ctx)
	if err != nil {
		return nil, err
	}
	v, err := st.svc.Vault()
	if err != nil {
		return nil, err
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	out, err := storage.NewFS(cfg.Output.Dir)
	if err != nil {
		return nil, fmt.Errorf("init output: %w", err)
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, v); err != nil {
		return nil, err
	}
	if err := out.Write(cfg.Output.JSONFile, buf.Bytes()); err != nil {
		return nil, fmt.Errorf("write export: %w", err)
	}

	pages, err := render.New(cfg.Output.Naming).WriteAll(ctx, v, out)
	if err != nil {
		return nil, err
	}

	logger.Info("Build finished",
		slog.String("output", out.Root()),
		slog.Int("pages", pages),
		slog.Any("report", report))
	for _, c := range report.DuplicateTitles {
		logger.Warn("duplicate title", slog.String("title", c.Title),
			slog.String("previous", c.Previous.String()), slog.String("winner", c.Winner.String()))
	}
	for _, u := range report.Unresolved {
		logger.Warn("unresolved link", slog.String("source", u.SourcePath), slog.String("target", u.Target))
	}
	return report, nil
}

// Run starts the HTTP server and the vault watcher.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts, os.Stdout)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := app.newLogger()
	slog.SetDefault(logger)

	st, err := app.open(logger)
	if err != nil {
		return err
	}
	defer st.close()

	if _, err := st.svc.Rebuild(ctx); err != nil {
		logger.Warn("initial build failed", slog.String("error", err.Error()))
	}

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	apiRouter := api.NewRouter(st.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, broker.PublishRebuild)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := st.svc.Vault(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"building"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return st.svc.Watch(gCtx, broker.PublishRebuild)
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		// SSE streams only end when the broker closes.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// ServeMCP builds the vault and serves the MCP tools over stdio until stdin
// closes. Logs go to stderr because stdout carries the protocol.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts, os.Stderr)
	if err != nil {
		return err
	}
	logger := app.newLogger()

	st, err := app.open(logger)
	if err != nil {
		return err
	}
	defer st.close()

	if _, err := st.svc.Rebuild(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return st.svc.Watch(gCtx, nil)
	})

	logger.Info("MCP server starting on stdio")
	serveErr := mcpserver.New(st.svc).ServeStdio()
	cancel()
	if err := g.Wait(); err != nil {
		logger.Warn("watcher stopped", slog.String("error", err.Error()))
	}
	return serveErr
}
