// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/memman/internal/api"
	"github.com/starford/memman/internal/correction"
	"github.com/starford/memman/internal/mcpserver"
	"github.com/starford/memman/internal/memservice"
	"github.com/starford/memman/internal/models"
	"github.com/starford/memman/internal/sse"
	"github.com/starford/memman/internal/storage"
	"github.com/starford/memman/internal/store"
	"github.com/starford/memman/internal/syncer"
	"github.com/starford/memman/internal/watch"
)

// App is the wired application: project files, store, engines, and the
// service shared by the CLI, the status API, and the MCP server.
type App struct {
	cfg     *Config
	logger  *slog.Logger
	version string
	db      *store.DB
	broker  *sse.Broker
	svc     *memservice.Service
}

// New wires the application from options. The caller must Close it.
func New(opts ...Option) (*App, error) {
	app := &application{version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := app.logger
	if logger == nil {
		// Stdout carries command output and the MCP stdio transport.
		handlerOpts := &slog.HandlerOptions{Level: cfg.App.LogLevel}
		if app.text {
			logger = slog.New(slog.NewTextHandler(os.Stderr, handlerOpts))
		} else {
			logger = slog.New(slog.NewJSONHandler(os.Stderr, handlerOpts))
		}
	}
	slog.SetDefault(logger)

	logger.Debug("Configuration loaded",
		slog.String("project_root", cfg.Project.Root),
		slog.String("primary", cfg.Project.Primary),
		slog.String("mirror", cfg.Project.Mirror),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("direction", string(cfg.Sync.Direction)),
		slog.Bool("oracle", cfg.Oracle.Usable()))

	files, err := storage.NewFS(cfg.Project.Root)
	if err != nil {
		return nil, fmt.Errorf("init project storage: %w", err)
	}
	memory, err := storage.EnsureFS(cfg.Project.MemoryDir)
	if err != nil {
		return nil, fmt.Errorf("init memory storage: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	scope := models.Scope{Kind: models.ScopeProject, Qualifier: cfg.Project.Root}
	engine := syncer.New(files, db, syncer.Config{
		PrimaryPath: cfg.Project.Primary,
		MirrorPath:  cfg.Project.Mirror,
		Direction:   cfg.Sync.Direction,
		Scope:       scope,
	}, logger)

	var extractor correction.Extractor
	if cfg.Oracle.Usable() {
		extractor = correction.NewAnthropicExtractor(cfg.Oracle.APIKey, cfg.Oracle.BaseURL, cfg.Oracle.Timeout)
	} else if cfg.Oracle.Enabled {
		logger.Warn("oracle enabled but no API key set, using pattern detection only")
	}
	pipeline := correction.NewPipeline(db, extractor, correction.Config{
		Model:            cfg.Oracle.Model,
		WindowChars:      cfg.Oracle.MaxTranscriptChars,
		PromoteThreshold: cfg.Correction.PromoteThreshold,
		EditThreshold:    cfg.Correction.EditThreshold,
		Scope:            scope,
	}, logger)

	a := &App{
		cfg:     cfg,
		logger:  logger,
		version: app.version,
		db:      db,
		broker:  sse.NewBroker(2 * time.Second),
	}
	a.svc = memservice.NewService(memservice.Deps{
		Files:    files,
		Memory:   memory,
		DB:       db,
		Engine:   engine,
		Pipeline: pipeline,
		RulesDir: cfg.Project.RulesDir,
		Logger:   logger,
	}, memservice.WithSyncHook(a.publishSync))

	return a, nil
}

// Service returns the application service.
func (a *App) Service() *memservice.Service { return a.svc }

// Close releases the broker and the database.
func (a *App) Close() error {
	a.broker.Close()
	return a.db.Close()
}

func (a *App) publishSync(res syncer.Result) {
	for _, p := range res.Written {
		a.broker.DocumentWritten(p)
	}
	for _, c := range res.Conflicts {
		a.broker.Publish(sse.Event{Type: sse.TypeSyncConflict, Data: c})
	}
	a.broker.Publish(sse.Event{Type: sse.TypeSyncCompleted, Data: res})
}

// ServeMCP serves the MCP tools on stdin/stdout until the client disconnects.
func (a *App) ServeMCP(_ context.Context) error {
	a.logger.Info("MCP server starting on stdio")
	return mcpserver.New(a.svc, a.version).ServeStdio()
}

// Serve runs the status API and the document watcher until ctx is
// cancelled or a shutdown signal arrives. With watchDocs, every settled
// change to either document triggers a sync.
func (a *App) Serve(ctx context.Context, watchDocs bool) error {
	cfg := a.cfg
	logger := a.logger

	// Bring the documents in step before watching them.
	if res, err := a.svc.Sync(ctx, false, ""); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	} else {
		logSync(logger, "initial sync complete", res)
	}

	apiRouter := api.NewRouter(a.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, a.broker)

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
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := a.svc.Stats(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
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

	if watchDocs {
		g.Go(func() error {
			return watch.Watch(gCtx, cfg.Project.Root, []string{cfg.Project.Primary, cfg.Project.Mirror},
				watch.DefaultDebounce, logger, func(changed []string) {
					for _, p := range changed {
						a.broker.DocumentChanged(p)
					}
					res, err := a.svc.Sync(gCtx, false, "")
					if err != nil {
						logger.Error("watch sync failed", slog.String("error", err.Error()))
						return
					}
					logSync(logger, "watch sync complete", res)
				})
		})
	}

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

func logSync(logger *slog.Logger, msg string, res syncer.Result) {
	logger.Info(msg,
		slog.Int("pushed", res.Pushed),
		slog.Int("pulled", res.Pulled),
		slog.Int("skipped", res.Skipped),
		slog.Int("new_entries", res.NewEntries),
		slog.Int("conflicts", len(res.Conflicts)),
		slog.Any("written", res.Written))
}
