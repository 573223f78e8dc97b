package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/workflow-dashboard/internal/adapters/http"
	"github.com/kirillkom/workflow-dashboard/internal/bootstrap"
	"github.com/kirillkom/workflow-dashboard/internal/config"
	"github.com/kirillkom/workflow-dashboard/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	logging.Install("api", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "api")
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	router := httpadapter.NewRouter(cfg, httpadapter.Services{
		Uploads:   app.Uploads,
		Files:     app.Files,
		Statuses:  app.Statuses,
		Logs:      app.Logs,
		Dashboard: app.Dashboard,
		Metrics:   app.Metrics,
	}).Handler()
	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		// Uploads stream progress for up to five pipeline steps.
		WriteTimeout: 5*cfg.PipelineStepTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	app.Scheduler.Start(ctx)

	go func() {
		slog.Info("api_listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_failed", "error", err)
	}
	app.Scheduler.Stop()
	slog.Info("api_stopped")
}
