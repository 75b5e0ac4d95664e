package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/api"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/appointment"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/auth"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/availability"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/config"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/db"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/logging"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/metrics"
	redisclient "github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/redis"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/stats"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/storage"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/store"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/user"
)

// set with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("version", version),
		zap.String("timezone", cfg.Location.String()),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MigrateOnStart {
		if err := migrateUp(cfg.PostgresDSN); err != nil {
			logger.Fatal("migrations failed", zap.Error(err))
		}
		logger.Info("migrations applied")
	}

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.PostgresMaxConns)
	cancelPg()
	if err != nil {
		logger.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(rootCtx, cfg)
	if err != nil {
		logger.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("error closing redis", zap.Error(err))
		}
	}()
	logger.Info("connected to Redis")

	m := metrics.New(prometheus.DefaultRegisterer)
	st := store.NewPgStore(pgPool)

	userRepo := user.NewStoreRepository(st)
	availRepo := availability.NewStoreRepository(st)
	authSvc := auth.NewService(st, userRepo, redisclient.NewRevocationList(rdb), cfg, logger)
	userSvc := user.NewService(userRepo, authSvc, availRepo, logger)
	apptSvc := appointment.NewService(
		appointment.NewStoreRepository(st),
		availRepo,
		userRepo,
		redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL, redisclient.WithAcquireWait(cfg.LockWait)),
		cfg,
		logger,
		m,
	)
	statsSvc := stats.NewService(stats.NewPgRepository(pgPool), userRepo, cfg.Location)

	unsubscribe := authSvc.OnSessionChange(func(ch auth.SessionChange) {
		logger.Info("session change",
			zap.String("event", string(ch.Event)),
			zap.String("user_id", ch.Session.UserID),
			zap.String("role", string(ch.Session.Role)),
		)
	})
	defer unsubscribe()

	health := api.NewHealthHandler(pgPool, rdb, cfg.Env, version)

	images, bucketCheck, err := imageStore(rootCtx, cfg.Minio)
	if err != nil {
		logger.Fatal("minio init error", zap.Error(err))
	}
	if images == nil {
		logger.Warn("MINIO_ENDPOINT not set, profile image uploads disabled")
	} else {
		health.WithCheck("minio", bucketCheck)
	}

	router := api.NewRouter(api.RouterConfig{
		Appointments:  apptSvc,
		Users:         userSvc,
		Auth:          authSvc,
		Stats:         statsSvc,
		Images:        images,
		Health:        health,
		Logger:        logger,
		Metrics:       m,
		Location:      cfg.Location,
		CORSOrigins:   cfg.CORSOrigins,
		AuthRateLimit: cfg.AuthRateLimit,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-rootCtx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Error("http server failed", zap.Error(err))
		}
	}

	logger.Info("shutting down api-server", zap.Duration("timeout", cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func migrateUp(dsn string) error {
	mg, err := db.NewMigrator(dsn)
	if err != nil {
		return err
	}
	defer func() { _ = mg.Close() }()
	return mg.Up()
}

// imageStore returns nil when no MinIO endpoint is configured. The returned check reports
// whether the bucket is still reachable.
func imageStore(ctx context.Context, cfg config.MinioConfig) (*storage.ImageStore, func(context.Context) error, error) {
	if cfg.Endpoint == "" {
		return nil, nil, nil
	}
	client, err := storage.NewMinioClient(cfg)
	if err != nil {
		return nil, nil, err
	}

	bucketCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := storage.EnsureBucket(bucketCtx, client, cfg.Bucket); err != nil {
		return nil, nil, err
	}

	publicURL := cfg.PublicURL
	if publicURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicURL = scheme + "://" + cfg.Endpoint
	}
	check := func(ctx context.Context) error { return storage.CheckBucket(ctx, client, cfg.Bucket) }
	return storage.NewImageStore(client, cfg.Bucket, publicURL), check, nil
}
