package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-record-service/internal/client"
	"github.com/kjstillabower/weather-record-service/internal/config"
	httphandler "github.com/kjstillabower/weather-record-service/internal/http"
	"github.com/kjstillabower/weather-record-service/internal/lifecycle"
	"github.com/kjstillabower/weather-record-service/internal/observability"
	"github.com/kjstillabower/weather-record-service/internal/service"
	"github.com/kjstillabower/weather-record-service/internal/store"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	db, err := store.Open(cfg.DatabaseURL, store.PoolConfig{
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	}, logger, cfg.IsDevelopment())
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	schemaCtx, schemaCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := store.EnsureSchema(schemaCtx, db); err != nil {
		logger.Fatal("database schema", zap.Error(err))
	}
	schemaCancel()
	if sqlDB, err := db.DB(); err == nil {
		observability.RegisterDBStats(sqlDB)
	}
	recordStore := store.New(db)

	forecastClient := newForecastClient(cfg, logger)

	records := service.NewRecordService(recordStore, logger)
	fetcher := service.NewFetchService(forecastClient, recordStore, logger, nil)
	handler := httphandler.NewHandler(records, fetcher, recordStore, logger)

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	inFlight := httphandler.NewInFlightTracker()
	router := httphandler.NewRouter(handler, logger, httphandler.RouterConfig{
		CORSOrigins:    cfg.CORSOrigins,
		RequestTimeout: cfg.RequestTimeout,
		Limiter:        limiter,
		InFlight:       inFlight,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	lifecycle.MarkStarted(time.Now())
	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort), zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight.Active()))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := inFlight.Drain(waitCtx, cfg.ShutdownInFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", inFlight.Active()))
	}

	if err := recordStore.Close(); err != nil {
		logger.Error("database close", zap.Error(err))
	}
	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// newForecastClient builds the upstream client. Any problem with the key only
// disables range fetch: the result is then a nil interface, not a typed nil,
// so range fetch reports the missing configuration.
func newForecastClient(cfg *config.Config, logger *zap.Logger) client.ForecastClient {
	if !cfg.WeatherAPIConfigured() {
		logger.Warn("WEATHER_API_KEY not set; range fetch disabled")
		return nil
	}
	apiClient, err := client.NewWeatherAPIClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.WeatherAPITimeout)
	if err != nil {
		logger.Warn("weather client not created; range fetch disabled", zap.Error(err))
		return nil
	}
	if cfg.CircuitBreakerEnabled {
		apiClient.SetCircuitBreaker(client.NewCircuitBreaker(cfg.CircuitBreakerFailureThreshold, cfg.CircuitBreakerTimeout, func(from, to string) {
			logger.Warn("circuit breaker state change", zap.String("from", from), zap.String("to", to))
		}))
		logger.Info("circuit breaker enabled", zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold), zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}

	checkCtx, checkCancel := context.WithTimeout(context.Background(), cfg.WeatherAPITimeout)
	defer checkCancel()
	if err := apiClient.ValidateAPIKey(checkCtx); err != nil {
		logger.Warn("weather API key check failed", zap.Error(err))
	}
	return apiClient
}
