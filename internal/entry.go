// Package internal provides the main application initialization and runtime logic.
package internal

import (
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

	"github.com/starford/lorekeeper/internal/ai"
	"github.com/starford/lorekeeper/internal/api"
	"github.com/starford/lorekeeper/internal/index"
	"github.com/starford/lorekeeper/internal/mcpserver"
	"github.com/starford/lorekeeper/internal/session"
	"github.com/starford/lorekeeper/internal/sse"
	"github.com/starford/lorekeeper/internal/storage"
)

// project is an opened project with its optional search index.
type project struct {
	sess *session.Session
	fs   storage.Provider
	db   *index.DB
}

func (p *project) Close(logger *slog.Logger) {
	if err := p.sess.Close(); err != nil {
		logger.Error("session close failed", slog.String("error", err.Error()))
	}
	if p.db != nil {
		p.db.Close()
	}
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

// openProject initializes the project directory, builds the search index
// and opens a session. pub may be nil.
func openProject(ctx context.Context, cfg *Config, logger *slog.Logger, pub session.Publisher) (*project, error) {
	root := cfg.Project.Path
	if err := storage.InitProject(root); err != nil {
		return nil, fmt.Errorf("init project: %w", err)
	}
	fs, err := storage.NewFS(root)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	deps := session.Deps{
		FS:            fs,
		Logger:        logger,
		AI:            ai.New(ai.WithBaseURL(cfg.AI.BaseURL), ai.WithTimeout(cfg.AI.Timeout)),
		Publisher:     pub,
		AutosaveDelay: cfg.Autosave.Delay,
		CursorDelay:   cfg.Autosave.SettingsDelay,
	}

	p := &project{fs: fs}
	if cfg.Index.Enabled {
		db, err := index.Open(cfg.Index.DBPath(root))
		if err != nil {
			return nil, fmt.Errorf("init index: %w", err)
		}
		if err := index.Sync(db, fs, logger); err != nil {
			logger.Warn("initial sync failed", slog.String("error", err.Error()))
		}
		p.db = db
		deps.Index = db
	}

	p.sess, err = session.Open(ctx, deps)
	if err != nil {
		if p.db != nil {
			p.db.Close()
		}
		return nil, fmt.Errorf("open project: %w", err)
	}
	return p, nil
}

// Run starts the HTTP application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	cfg, err := resolveConfig(opts)
	if err != nil {
		return err
	}

	// Initialize structured JSON logger.
	logger := newLogger(os.Stdout, cfg.App.LogLevel)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("project_path", cfg.Project.Path),
		slog.Bool("index_enabled", cfg.Index.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	proj, err := openProject(ctx, cfg, logger, broker)
	if err != nil {
		return err
	}
	defer proj.Close(logger)

	apiRouter := api.NewRouter(proj.sess, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
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
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher with SSE callback.
	if proj.db != nil {
		g.Go(func() error {
			if err := index.Watch(gCtx, proj.db, proj.fs, cfg.Project.Path, logger, broker.PublishFileEvent); err != nil {
				logger.Error("watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		// Write pending edits before the deferred close.
		if err := proj.sess.FlushEditor(); err != nil {
			logger.Error("flush on shutdown failed", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the project over MCP on stdin/stdout. Logs go to stderr.
func RunMCP(ctx context.Context, opts ...Option) error {
	cfg, err := resolveConfig(opts)
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr, cfg.App.LogLevel)

	proj, err := openProject(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer proj.Close(logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if proj.db != nil {
		go func() {
			if err := index.Watch(ctx, proj.db, proj.fs, cfg.Project.Path, logger, nil); err != nil {
				logger.Error("watcher stopped", slog.String("error", err.Error()))
			}
		}()
	}

	logger.Info("MCP server starting", slog.String("project_path", cfg.Project.Path))
	return mcpserver.New(proj.sess).ServeStdio()
}
