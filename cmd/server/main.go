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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/copyleftdev/verdant/internal/config"
	"github.com/copyleftdev/verdant/internal/engine"
	"github.com/copyleftdev/verdant/internal/errors"
	"github.com/copyleftdev/verdant/internal/logging"
	"github.com/copyleftdev/verdant/internal/metrics"
	"github.com/copyleftdev/verdant/internal/optimization/routing"
	"github.com/copyleftdev/verdant/internal/optimization/segmentation"
	"github.com/copyleftdev/verdant/internal/server"
)

func main() {
	started := time.Now()

	// Load configuration
	var envFiles []string
	if path := config.GetEnv("ENV_FILE", ""); path != "" {
		envFiles = append(envFiles, path)
	}
	cfg, err := config.Load(envFiles...)
	if err != nil {
		// Use standard logger as fallback if config loading fails
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize base logger
	logger, err := logging.NewLogger(&logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	// Create a service logger with additional fields
	serviceLogger := logger.WithFields(map[string]interface{}{
		"service":     "verdant-engine",
		"version":     "1.0.0",
		"environment": cfg.Environment,
	})
	engineLogger := logging.NewZapLogger(serviceLogger).Named("engine")
	defer func() { _ = engineLogger.Sync() }()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder, err := metrics.New(registry)
	if err != nil {
		serviceLogger.Fatal("Failed to register metrics", map[string]interface{}{"error": err})
	}

	// Engines
	optimizer := routing.NewOptimizer(
		routing.NewPool(cfg.Routing.MaxWorkspaces),
		routing.WithLogger(engineLogger.Named("routing")),
	)
	eng := engine.New(
		engine.WithLogger(engineLogger),
		engine.WithMetrics(recorder),
		engine.WithOptimizer(optimizer),
		engine.WithModelOptions(segmentation.WithMaxRounds(cfg.Segmentation.MaxRounds)),
	)

	// Create a context with logger
	ctx := (&logging.CtxLogger{Logger: serviceLogger}).WithContext(context.Background())

	// Create router
	r := chi.NewRouter()

	// Add middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware(serviceLogger))
	r.Use(errors.RecoveryMiddleware(serviceLogger))
	r.Use(errors.ErrorHandler(serviceLogger))
	r.Use(middleware.Timeout(cfg.HTTP.WriteTimeout))

	// Add request context logger
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLogger := serviceLogger.WithFields(map[string]interface{}{
				"request_id": middleware.GetReqID(r.Context()),
			})
			reqCtx := (&logging.CtxLogger{Logger: reqLogger}).WithContext(r.Context())
			next.ServeHTTP(w, r.WithContext(reqCtx))
		})
	})

	// Add health check endpoint
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if logger := logging.FromContext(r.Context()); logger != nil {
			logger.Debug("Health check")
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Add metrics endpoint
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	// Create server instance with our logger
	srv := server.NewServer(cfg, serviceLogger, eng)
	srv.RegisterRoutes(r)

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	// Start HTTP server
	go func() {
		serviceLogger.Info("Starting server", map[string]interface{}{
			"address":         httpServer.Addr,
			"route_buffer":    cfg.Routing.BufferSize,
			"segment_buffer":  cfg.Segmentation.BufferSize,
			"route_workspace": optimizer.Pool().Capacity(),
		})

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serviceLogger.Fatal("Failed to start server", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	serviceLogger.Info("Shutting down server...")

	// Create a deadline to wait for
	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.HTTP.ShutdownTimeout)
	defer cancel()

	// Shutdown the server
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		serviceLogger.Error("Server forced to shutdown", map[string]interface{}{"error": err})
		os.Exit(1)
	}

	engineLogger.Info("engine stopped",
		zap.Strings("tenants", eng.Tenants()),
		zap.Int("workspaces_in_use", optimizer.Pool().InUse()),
		zap.Duration("uptime", time.Since(started)),
	)
	serviceLogger.Info("server exited properly")
}
