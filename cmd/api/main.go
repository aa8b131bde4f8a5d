package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rentalhub/internal/api"
	"rentalhub/internal/auth"
	"rentalhub/internal/config"
	"rentalhub/internal/database"
	"rentalhub/internal/domain"
	"rentalhub/internal/events"
	"rentalhub/internal/logging"
	"rentalhub/internal/metrics"
	"rentalhub/internal/models"
	"rentalhub/internal/repository"
	"rentalhub/internal/scheduler"
	"rentalhub/internal/service"
	"rentalhub/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	db, err := database.NewDB(cfg.Database.Path, logging.Component(&logger, "database"))
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	auditWorker := worker.NewAuditWorker(db, redisClient, cfg.Audit, logging.Component(&logger, "audit-worker"))
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		auditWorker.Start(ctx)
	}()

	services, rentals, tokens := buildServices(cfg, db, redisClient, auditWorker, &logger)

	if err := seedCatalog(ctx, db, &logger); err != nil {
		return err
	}
	if err := ensureAdmin(ctx, services.Auth, &logger); err != nil {
		return err
	}

	backups := database.NewBackupService(db, cfg.Database.Path, cfg.Backup, logging.Component(&logger, "backup"))
	sched, err := scheduler.NewFromConfig(cfg, rentals, backups, logging.Component(&logger, "scheduler"))
	if err != nil {
		logger.Error().Err(err).Msg("create scheduler")
		return err
	}
	sched.Start()
	defer sched.Stop()

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(cfg.API, db, tokens, logging.Component(&logger, "grpc"))
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}

	httpServer := api.NewHTTPServer(cfg.API, services, cfg.Audit.Enabled, logging.Component(&logger, "http"))

	startMetrics(ctx, cfg, &logger)

	err = startServers(ctx, grpcServer, httpServer, cfg, &logger)

	// воркер дописывает очередь после отмены контекста
	<-workerDone
	return err
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := redisClient.Ping(pingCtx).Result(); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func buildServices(
	cfg *config.Config,
	db *database.DB,
	redisClient *redis.Client,
	audit domain.AuditSink,
	logger *zerolog.Logger,
) (api.Services, *service.RentalService, *auth.TokenManager) {
	var cacheStore domain.CacheStore = repository.NewMemoryCacheStore()
	if redisClient != nil {
		cacheStore = repository.NewFailoverCacheStore(
			repository.NewRedisCacheStore(redisClient),
			cacheStore,
			logging.Component(logger, "cache"),
		)
	}

	eventBus := events.NewEventBus()
	eventLogger := logging.Component(logger, "events")
	eventBus.Subscribe(events.AllEvents, func(event *events.Event) error {
		eventLogger.Debug().Str("event_type", event.Type).RawJSON("payload", event.Payload).Msg("domain event")
		return nil
	})
	eventBus.OnError(func(event *events.Event, err error) {
		eventLogger.Error().Err(err).Str("event_type", event.Type).Msg("event handler error")
	})

	tokens := auth.NewTokenManager(cfg.API.Auth.JWTSecret, cfg.API.Auth.TokenTTL, cfg.API.Auth.Issuer)
	hasher := auth.NewHasher(cfg.API.Auth.BcryptCost)
	catalog := service.NewCatalogCache(cacheStore, cfg.Cache.CatalogTTL, logging.Component(logger, "catalog-cache"))
	svcLogger := logging.Component(logger, "service")

	rentals := service.NewRentalService(db, catalog, cfg.Rentals.InitialStatus, eventBus, audit, svcLogger)

	services := api.Services{
		Auth:       service.NewAuthService(db, tokens, hasher, cacheStore, cfg.API.Auth, eventBus, audit, svcLogger),
		Equipment:  service.NewEquipmentService(db, catalog, eventBus, audit, svcLogger),
		Rentals:    rentals,
		Deliveries: service.NewDeliveryService(db, db, db, catalog, eventBus, audit, svcLogger),
		Payments:   service.NewPaymentService(db, db, eventBus, audit, svcLogger),
		Reports:    service.NewReportService(db, cfg.Exports, svcLogger),
		Audit:      audit,
		DB:         db,
	}
	return services, rentals, tokens
}

// seedCatalog fills an empty catalog from SEED_PATH. A missing file is not an error.
func seedCatalog(ctx context.Context, db *database.DB, logger *zerolog.Logger) error {
	seedPath := os.Getenv("SEED_PATH")
	if seedPath == "" {
		seedPath = "configs/seed.yaml"
	}

	items, err := loadSeed(seedPath)
	if errors.Is(err, os.ErrNotExist) {
		logger.Info().Str("seed_path", seedPath).Msg("no seed file, skipping catalog seed")
		return nil
	}
	if err != nil {
		logger.Error().Err(err).Str("seed_path", seedPath).Msg("load seed")
		return err
	}

	count, err := db.CountEquipment(ctx, models.EquipmentFilter{})
	if err != nil {
		return fmt.Errorf("count equipment: %w", err)
	}
	if count > 0 {
		return nil
	}

	for _, item := range items {
		if item.Status == "" {
			item.Status = models.EquipmentAvailable
		}
		if item.AvailableQuantity == 0 {
			item.AvailableQuantity = item.TotalQuantity
		}
		// каталог из файла считается проверенным
		item.Approved = true
		if err := db.CreateEquipment(ctx, item); err != nil {
			logger.Error().Err(err).Str("name", item.Name).Msg("seed equipment")
			return err
		}
	}

	logger.Info().Int("count", len(items)).Str("seed_path", seedPath).Msg("catalog seeded")
	return nil
}

func loadSeed(seedPath string) ([]*models.Equipment, error) {
	data, err := os.ReadFile(seedPath)
	if err != nil {
		return nil, err
	}

	var seed struct {
		Equipment []*models.Equipment `yaml:"equipment"`
	}
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}

	for i, item := range seed.Equipment {
		if item.Name == "" || !models.IsValidCategory(item.Category) {
			return nil, fmt.Errorf("seed item %d: name and a known category are required", i)
		}
	}
	return seed.Equipment, nil
}

// ensureAdmin creates the first admin from ADMIN_EMAIL / ADMIN_PASSWORD when no admin exists yet.
func ensureAdmin(ctx context.Context, authService *service.AuthService, logger *zerolog.Logger) error {
	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		return nil
	}

	name := os.Getenv("ADMIN_NAME")
	if name == "" {
		name = "Administrator"
	}

	created, err := authService.EnsureAdmin(ctx, service.RegisterInput{Name: name, Email: email, Password: password})
	if err != nil {
		logger.Error().Err(err).Str("email", email).Msg("bootstrap admin")
		return err
	}
	if !created {
		logger.Debug().Msg("admin already exists")
	}
	return nil
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	event := logger.Info().Int("http_port", cfg.API.HTTP.Port).Bool("http_enabled", cfg.API.HTTP.Enabled)
	if grpcServer != nil {
		event = event.Str("grpc_addr", grpcServer.Addr())
	}
	event.Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	if cfg.API.HTTP.Enabled {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("http shutdown")
		}
	}

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
