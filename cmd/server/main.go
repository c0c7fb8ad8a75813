package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"

	"github.com/sentryops/account-security/internal/alert"
	"github.com/sentryops/account-security/internal/client"
	"github.com/sentryops/account-security/internal/config"
	"github.com/sentryops/account-security/internal/geo"
	"github.com/sentryops/account-security/internal/handler"
	"github.com/sentryops/account-security/internal/middleware"
	"github.com/sentryops/account-security/internal/repository"
	"github.com/sentryops/account-security/internal/service"
	"github.com/sentryops/account-security/internal/telemetry"
	"github.com/sentryops/account-security/internal/util/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		logger.Errorf("Server exited with error: %v", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.Init(&cfg.Logger)
	defer logger.Sync()

	if cfg.Secrets.Enabled {
		secrets, err := config.NewAWSSecretsLoader(ctx)
		if err != nil {
			return fmt.Errorf("init secrets loader: %w", err)
		}
		if err := cfg.ResolveSecrets(secrets); err != nil {
			return fmt.Errorf("resolve secrets: %w", err)
		}
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	redisClient, err := client.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	dispatcher, err := alert.NewKafkaDispatcher(cfg.Alerts)
	if err != nil {
		return fmt.Errorf("init alert dispatcher: %w", err)
	}
	dispatcher.Start()

	shipper, err := telemetry.NewKafkaAuditShipper(cfg.Telemetry.Kafka)
	if err != nil {
		return fmt.Errorf("init audit shipper: %w", err)
	}
	shipper.Start()

	auditRepo := repository.NewPostgresAuditLogRepository(db)
	deviceRepo := repository.NewPostgresDeviceRepository(db)
	sessionRepo := repository.NewPostgresSessionRepository(db)
	geofenceRepo := repository.NewPostgresGeofencingRepository(db)
	profileRepo := repository.NewPostgresProfileRepository(db)

	resolver := geo.NewResolver(cfg.Geolocation, redisClient)
	detector := service.NewDetector(auditRepo)
	events := service.NewEventLogger(auditRepo, profileRepo, resolver, detector, dispatcher)
	geofence := service.NewGeofenceService(geofenceRepo, profileRepo, dispatcher)
	tracker := service.NewDeviceTracker(deviceRepo, sessionRepo, profileRepo, dispatcher)
	score := service.NewScoreService(profileRepo, deviceRepo, sessionRepo)

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.Recoverer)
	router.Use(middleware.RequestMetadata(cfg.Proxy))
	router.Use(middleware.RequestAudit(shipper))

	health := handler.NewHealthHandler(db, redisClient, cfg.Env)
	router.Get("/healthz", health.Healthz)
	router.Get("/readyz", health.Readyz)

	router.Route("/api/v1", func(r chi.Router) {
		r.Post("/geofencing/check", handler.NewGeofencingHandler(geofence, resolver).Check)
		r.Post("/geolocation", handler.NewGeolocationHandler(resolver).Resolve)
		r.Post("/security/events", handler.NewSecurityEventHandler(events).Log)
		r.Post("/devices/track", handler.NewDeviceHandler(tracker).Track)
		r.Get("/security/score", handler.NewScoreHandler(score, sessionRepo).Get)
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Listening on %s (env=%s)", srv.Addr, cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Infof("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("HTTP shutdown: %v", err)
	}
	dispatcher.Stop(shutdownCtx)
	shipper.Stop(shutdownCtx)
	return nil
}
