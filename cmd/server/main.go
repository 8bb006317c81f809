package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ecotune/ecotune/internal/cluster"
	"github.com/ecotune/ecotune/internal/config"
	"github.com/ecotune/ecotune/internal/errors"
	"github.com/ecotune/ecotune/internal/logging"
	"github.com/ecotune/ecotune/internal/objective"
	"github.com/ecotune/ecotune/internal/server"
	"github.com/ecotune/ecotune/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(&logging.Config{
		Level:  cfg.Logging.Level,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	serviceLogger := logger.WithFields(map[string]interface{}{
		"service":    "ecotune",
		"deployment": cfg.Target.Deployment,
	})

	// Cluster and telemetry access are optional: without them the service
	// still serves formula-mode runs, and live-mode requests get a 503.
	var applier objective.Applier
	if clientset, err := cluster.NewClientset(cfg.Target.Kubeconfig); err != nil {
		serviceLogger.Warn("no cluster access, live tuning disabled", map[string]interface{}{
			"error": err.Error(),
		})
	} else {
		applier = cluster.NewDeploymentPatcher(
			clientset,
			cfg.Target.Namespace,
			cfg.Target.Deployment,
			cfg.Target.Container,
			0, 1, // replicas and cpu_request positions in the live space
			serviceLogger,
		)
	}

	var metrics objective.MetricSource
	if promClient, err := telemetry.NewClient(cfg.Target.PrometheusURL, serviceLogger); err != nil {
		serviceLogger.Warn("no telemetry access, live tuning disabled", map[string]interface{}{
			"error": err.Error(),
		})
	} else {
		metrics = promClient
	}

	reporter := telemetry.NewReporter(cfg.Target.PushgatewayURL, "ecotune", cfg.Target.Deployment, serviceLogger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware(logger))
	r.Use(errors.RecoveryMiddleware(serviceLogger))
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	srv := server.NewServer(cfg, serviceLogger, applier, metrics, reporter)
	srv.RegisterRoutes(r)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		serviceLogger.Info("starting server", map[string]interface{}{
			"address": httpServer.Addr,
		})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serviceLogger.Fatal("failed to start server", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	serviceLogger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		serviceLogger.Error("server forced to shutdown", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	if err := srv.Close(); err != nil {
		serviceLogger.Error("error closing server resources", map[string]interface{}{"error": err.Error()})
	}

	serviceLogger.Info("server stopped")
}
