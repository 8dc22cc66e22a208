package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/appointment-agent/internal/api/router"
	"github.com/wolfman30/appointment-agent/internal/app/bootstrap"
	appconfig "github.com/wolfman30/appointment-agent/internal/config"
	"github.com/wolfman30/appointment-agent/internal/http/handlers"
	"github.com/wolfman30/appointment-agent/internal/messaging"
	"github.com/wolfman30/appointment-agent/internal/webchat"
	"github.com/wolfman30/appointment-agent/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting appointment assistant API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"history_backend", cfg.HistoryBackend,
	)

	ctx := context.Background()
	reg, metricsHandler := setupMetrics()
	services, err := bootstrap.Build(ctx, cfg, reg, logger)
	if err != nil {
		logger.Error("failed to build services", "error", err)
		os.Exit(1)
	}
	defer services.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           buildRouter(cfg, services, metricsHandler, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Leaves room for a slow model call within AGENT_REQUEST_TIMEOUT.
		WriteTimeout: cfg.AgentRequestTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		return
	}
	logger.Info("server stopped")
}

func setupMetrics() (*prometheus.Registry, http.Handler) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func buildRouter(cfg *appconfig.Config, services *bootstrap.Services, metricsHandler http.Handler, logger *logging.Logger) http.Handler {
	messagingHandler := messaging.NewHandler(
		cfg.TwilioWebhookSecret,
		services.Dispatcher,
		services.History,
		logger,
		messaging.WithPublicBaseURL(cfg.PublicBaseURL),
		messaging.WithRequestTimeout(cfg.AgentRequestTimeout),
		messaging.WithMetrics(services.Metrics),
		messaging.WithClearOnTerminal(cfg.ClearOnTerminal),
	)
	webchatHandler := webchat.NewHandler(services.Dispatcher, services.History, webchat.Config{
		DefaultSessionKey: cfg.WebchatSessionKey,
		ClearOnTerminal:   cfg.ClearOnTerminal,
		RequestTimeout:    cfg.AgentRequestTimeout,
		Metrics:           services.Metrics,
	}, logger)

	var admin *handlers.AdminAppointmentsHandler
	if cfg.AdminJWTSecret != "" {
		admin = handlers.NewAdminAppointmentsHandler(services.Repository, services.Notifier, logger)
	} else {
		logger.Warn("ADMIN_JWT_SECRET not set; dashboard API disabled")
	}

	return router.New(&router.Config{
		Logger:             logger,
		MessagingHandler:   messagingHandler,
		WebchatHandler:     webchatHandler,
		AdminAppointments:  admin,
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		HealthCheck: func(r *http.Request) error {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			return services.Ready(ctx)
		},
	})
}
