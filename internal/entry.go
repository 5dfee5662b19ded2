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
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/api"
	"github.com/starford/ansuz/internal/mcpserver"
	"github.com/starford/ansuz/internal/metrics"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/pipeline"
	"github.com/starford/ansuz/internal/scheduler"
	"github.com/starford/ansuz/internal/storage"
)

// Run starts the admin server, the scheduler and the site file server.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("repository", cfg.Source.Repository),
		slog.String("output_dir", cfg.Site.OutputDir),
		slog.String("tracker_path", cfg.Tracker.Path),
		slog.Duration("sync_interval", cfg.Sync.Interval),
		slog.String("log_level", cfg.App.LogLevel.String()))

	c, err := wire(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("close components", slog.String("error", err.Error()))
		}
	}()

	var sched *scheduler.Scheduler
	if cfg.Sync.Interval > 0 {
		sched, err = scheduler.New(c.orch, logger)
		if err != nil {
			return err
		}
		if _, err := sched.SchedulePeriodicSync(cfg.Sync.Interval); err != nil {
			return err
		}
	}

	routerOpts := api.RouterOptions{
		AuthEnabled:   cfg.Auth.AuthEnabled(),
		Token:         cfg.Auth.Token,
		WebhookSecret: cfg.Sync.WebhookSecret,
		Branch:        cfg.Sync.Branch,
		Events:        c.broker,
	}
	if cfg.Metrics.Enabled {
		routerOpts.Metrics = metrics.HTTPHandler(c.registry)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Mount("/api", api.NewRouter(c.service, routerOpts))
	// Generated site.
	r.Handle("/*", http.FileServer(http.Dir(cfg.Site.OutputDir)))

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if sched != nil {
		g.Go(func() error {
			sched.Start(gCtx)
			<-gCtx.Done()
			return sched.Stop()
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

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		c.service.Wait()
		return context.Canceled
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// Build renders the local content directory into the output directory and
// stops at the first document that cannot be published.
func Build(ctx context.Context, opts ...Option) (models.BuildSummary, error) {
	app, err := newApplication(opts)
	if err != nil {
		return models.BuildSummary{}, err
	}
	cfg := app.config
	logger := app.logger()

	source, err := storage.NewFS(cfg.Site.ContentDir)
	if err != nil {
		return models.BuildSummary{}, fmt.Errorf("open content dir: %w", err)
	}
	pub, err := newSite(cfg)
	if err != nil {
		return models.BuildSummary{}, err
	}

	popts := []pipeline.Option{pipeline.WithLogger(logger)}
	if cfg.Site.StaticDir != "" {
		static, err := storage.NewFS(cfg.Site.StaticDir)
		if err != nil {
			return models.BuildSummary{}, fmt.Errorf("open static dir: %w", err)
		}
		popts = append(popts, pipeline.WithStatic(static))
	}

	summary := pipeline.New(source, pub, popts...).Run(ctx)
	if !summary.Success {
		return summary, fmt.Errorf("build failed: %v", summary.Errors)
	}
	return summary, nil
}

// SyncOnce runs a single sync against the configured repository.
func SyncOnce(ctx context.Context, req models.SyncRequest, opts ...Option) (*models.SyncResult, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	logger := app.logger()

	c, err := wire(app.config, logger)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	return c.orch.Sync(ctx, req)
}

// ServeMCP serves the MCP tools over stdio until the client disconnects.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := app.logger()

	c, err := wire(app.config, logger)
	if err != nil {
		return err
	}
	defer c.Close()
	defer c.service.Wait()

	logger.Info("MCP server starting on stdio")
	return mcpserver.New(c.service).ServeStdio()
}
