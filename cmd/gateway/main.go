package main

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
	"golang.org/x/sync/errgroup"

	"doc-extractor/internal/app"
	"doc-extractor/internal/httputil"
	"doc-extractor/internal/metrics"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Build(ctx)
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := deps.Close(); err != nil {
			deps.Log.Warn("failed to close dependencies", "err", err)
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", deps.Config.Port),
		Handler:           newRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		deps.Log.Info("gateway listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		deps.Log.Info("shutting down gateway")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		deps.Log.Error("server failed", "err", err)
		os.Exit(1)
	}
}

func newRouter(deps app.Deps) *chi.Mux {
	r := httputil.NewRouter(deps.Log)

	r.Route("/api/documents", func(r chi.Router) {
		r.Post("/upload", uploadHandler(deps))
		r.Get("/", listDocumentsHandler(deps))
		r.Get("/search", searchDocumentsHandler(deps))
		r.Get("/{id}", getDocumentHandler(deps))
		r.Delete("/{id}", deleteDocumentHandler(deps))
	})
	r.Route("/api/search/keys", func(r chi.Router) {
		r.Get("/", searchKeysHandler(deps))
		r.Get("/stats", keyStatsHandler(deps))
	})
	r.Route("/api/chat", func(r chi.Router) {
		r.Post("/query", chatQueryHandler(deps))
		r.Get("/history/{sessionId}", chatHistoryHandler(deps))
		r.Delete("/history/{sessionId}", clearChatHandler(deps))
	})
	r.Get("/healthz", httputil.HealthHandler(deps.Log))
	r.Handle("/metrics", metrics.Handler())

	return r
}
