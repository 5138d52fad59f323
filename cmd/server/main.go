package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"route-pricing/internal/app"
	"route-pricing/internal/config"
	"route-pricing/internal/handlers"
	"route-pricing/pkg/logging"
	"route-pricing/pkg/metrics"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg, "route-pricing-api")

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting route pricing API server", logging.Fields{
		"version":          app.Version,
		"server_host":      cfg.Server.Host,
		"server_port":      cfg.Server.Port,
		"db_host":          cfg.Database.Host,
		"db_name":          cfg.Database.Database,
		"matching_enabled": cfg.Matching.Enabled,
		"routing_enabled":  cfg.Routing.Enabled,
		"auth_enabled":     cfg.Server.APIKey != "",
	})
	if cfg.Server.APIKey == "" {
		logger.Warn(ctx, "[STARTUP] No API key configured, /api/pricing is unauthenticated", logging.Fields{})
	}

	metricsCollector := metrics.NewCollector("route_pricing")

	pricing, err := app.NewPricing(ctx, cfg, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to initialize pricing", logging.Fields{}, err)
	}
	defer pricing.Close()

	pricingHandler := handlers.NewPricingHandler(pricing.Service, logger, metricsCollector)

	// Setup router
	router := mux.NewRouter()
	router.Use(handlers.RequestID, handlers.AccessLog(logger))

	pricingHandler.RegisterRoutes(router, handlers.APIKeyAuth(cfg.Server.APIKey, logger, metricsCollector))

	// Prometheus metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	// SIGHUP reloads reference data, SIGINT/SIGTERM stop the server
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range signals {
		if sig != syscall.SIGHUP {
			break
		}
		snap, err := pricing.RefData.Reload()
		if err != nil {
			logger.Error(ctx, "[REFDATA_RELOAD_ERROR] Keeping previous reference data", logging.Fields{}, err)
			continue
		}
		app.RecordRefData(ctx, snap, logger, metricsCollector)
	}

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}
