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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/starford/metaedit/internal/api"
	"github.com/starford/metaedit/internal/metrics"
	"github.com/starford/metaedit/internal/photometa"
	"github.com/starford/metaedit/internal/photoservice"
	"github.com/starford/metaedit/internal/session"
	"github.com/starford/metaedit/internal/sse"
)

// Run opens the configured library and serves the HTTP API until ctx is
// cancelled or the process receives SIGINT/SIGTERM.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(os.Stdout, opts...)
	if err != nil {
		return err
	}
	cfg := app.config
	if err := cfg.Library.RequireDir(); err != nil {
		return fmt.Errorf("library: %w", err)
	}

	logger := app.logger
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("library_dir", cfg.Library.Dir),
		slog.Int("workers", cfg.Library.Workers),
		slog.Bool("watch", cfg.Library.Watch),
		slog.String("log_level", cfg.App.LogLevel.String()))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sess := app.newSession(metrics.New(reg))
	if err := sess.Open(ctx, cfg.Library.Dir); err != nil {
		return fmt.Errorf("open library: %w", err)
	}

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	svc := photoservice.NewService(sess)
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, "ok")
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		if _, err := sess.Library(); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "no library")
			return
		}
		writeStatus(w, http.StatusOK, "ok")
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Library.Watch {
		g.Go(func() error {
			if err := sess.Watch(gCtx, broker.PublishPhotoEvent); err != nil {
				return fmt.Errorf("watcher: %w", err)
			}
			return nil
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
		<-gCtx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
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

func (a *application) newSession(m *metrics.Metrics) *session.Session {
	return session.New(photometa.NewCodec(a.logger), session.Options{
		Workers:   a.config.Library.Workers,
		ExportDir: a.config.Export.Dir,
		Logger:    a.logger,
		Metrics:   m,
	})
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = fmt.Fprintf(w, `{"status":%q}`, status)
}
