// Package main is the entry point of the EduPulse Analytics server.
//
// The server bundles the HTTP/websocket API, the realtime analytics
// engine, and the background job scheduler into a single process:
// events stream in over REST and websocket, live dashboards stream
// out, and scheduler jobs drain the buffers into Redis and Postgres.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/edupulse/edupulse-analytics/config"
	"github.com/edupulse/edupulse-analytics/internal/infrastructure/external/classroom"
	"github.com/edupulse/edupulse-analytics/internal/infrastructure/external/gemini"
	"github.com/edupulse/edupulse-analytics/internal/infrastructure/persistence/postgres"
	"github.com/edupulse/edupulse-analytics/internal/infrastructure/persistence/redis"
	"github.com/edupulse/edupulse-analytics/internal/infrastructure/scheduler"
	"github.com/edupulse/edupulse-analytics/internal/infrastructure/scheduler/jobs"
	httpiface "github.com/edupulse/edupulse-analytics/internal/interface/http"
	"github.com/edupulse/edupulse-analytics/internal/realtime"
	"github.com/edupulse/edupulse-analytics/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting EduPulse Analytics",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"debug", cfg.App.Debug,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. DATABASE (PostgreSQL)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	log.Info("running database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database schema is up to date")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS CACHE
	// ─────────────────────────────────────────────────────────────────────────
	var cache realtime.Cache = noopCache{}
	var redisCache *redis.Cache

	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisCfg := redisConfigFrom(cfg.Redis)
		redisCache, err = redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, live event caching disabled", "error", err)
		} else {
			defer redisCache.Close()
			cache = redisCache
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. REPOSITORIES
	// ─────────────────────────────────────────────────────────────────────────
	activityRepo := postgres.NewActivityRepository(dbConn)
	engagementRepo := postgres.NewEngagementRepository(dbConn)
	progressRepo := postgres.NewProgressRepository(dbConn)
	metricsRepo := postgres.NewMetricsRepository(dbConn)
	integrationLogRepo := postgres.NewIntegrationLogRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. REALTIME CORE
	// ─────────────────────────────────────────────────────────────────────────
	registry := realtime.NewRegistry(log)

	realtimeCfg := realtime.DefaultConfig()
	realtimeCfg.MaxBufferedEvents = cfg.Realtime.MaxBufferPerUser
	realtimeCfg.SessionTimeout = cfg.Realtime.SessionTimeout

	service := realtime.NewService(
		registry,
		cache,
		activityRepo,
		engagementRepo,
		progressRepo,
		realtimeCfg,
		log,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. EXTERNAL CLIENTS
	// ─────────────────────────────────────────────────────────────────────────
	var classroomClient *classroom.Client
	if cfg.Features.IsEnabled(config.FeatureIntegrationClassroom, nil) {
		classroomCfg := classroom.DefaultClientConfig(cfg.Classroom.BaseURL)
		classroomCfg.AccessToken = cfg.Classroom.AccessToken
		classroomCfg.Timeout = cfg.Classroom.RequestTimeout
		classroomCfg.PageSize = cfg.Classroom.PageSize
		classroomCfg.Logger = log
		classroomClient = classroom.NewClient(classroomCfg, activityRepo, integrationLogRepo)
		if classroomClient.Enabled() {
			log.Info("Classroom integration enabled")
		}
	}

	var geminiClient *gemini.Client
	if cfg.Features.IsEnabled(config.FeatureIntegrationGemini, nil) {
		geminiCfg := gemini.DefaultClientConfig(cfg.Gemini.APIKey)
		geminiCfg.BaseURL = cfg.Gemini.BaseURL
		geminiCfg.Model = cfg.Gemini.Model
		geminiCfg.Timeout = cfg.Gemini.RequestTimeout
		geminiCfg.Logger = log
		geminiClient = gemini.NewClient(geminiCfg)
		if geminiClient.Enabled() {
			log.Info("Gemini integration enabled", "model", cfg.Gemini.Model)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. SCHEDULER & JOBS
	// ─────────────────────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.NewScheduler(scheduler.SchedulerConfig{
			Logger:   log,
			Timezone: cfg.App.Location,
		})

		if err := registerJobs(sched, cfg, service, registry, cache, metricsRepo, log); err != nil {
			return fmt.Errorf("failed to register jobs: %w", err)
		}

		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() {
			log.Info("stopping scheduler...")
			_ = sched.Stop()
		}()
		log.Info("scheduler started", "jobs", len(sched.ListJobs()))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	httpLog := logger.New(logger.Options{
		Output: os.Stdout,
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
	})

	serverCfg := httpiface.DefaultConfig()
	serverCfg.Host = cfg.HTTP.Host
	serverCfg.Port = cfg.HTTP.Port
	serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	serverCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	serverCfg.EnableCORS = cfg.HTTP.EnableCORS
	serverCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	serverCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute

	deps := httpiface.Dependencies{
		Service:   service,
		Registry:  registry,
		Classroom: classroomClient,
		Gemini:    geminiClient,
		Database:  dbConn,
		Logger:    httpLog,
	}
	if redisCache != nil {
		deps.Cache = redisCache
		if serverCfg.RateLimitPerMinute > 0 {
			deps.Limiter = redis.NewRateLimiter(redisCache, "http",
				serverCfg.RateLimitPerMinute, time.Minute)
		}
	}

	server := httpiface.NewServer(serverCfg, deps)
	serverErr := server.StartAsync()

	log.Info("EduPulse Analytics is running", "address", server.Address())

	// ─────────────────────────────────────────────────────────────────────────
	// 10. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", "error", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// registerJobs wires all background jobs into the scheduler. Feature
// flags can switch individual jobs off without touching the rest.
func registerJobs(
	sched *scheduler.Scheduler,
	cfg *config.Config,
	service *realtime.Service,
	registry *realtime.Registry,
	cache realtime.Cache,
	metricsRepo *postgres.MetricsRepository,
	log *slog.Logger,
) error {
	aggregateCfg := jobs.DefaultAggregateMetricsConfig()
	aggregateCfg.Interval = cfg.Scheduler.AggregateInterval
	if err := sched.Register(
		jobs.NewAggregateMetricsJob(service, cache, aggregateCfg, log),
		scheduler.NewIntervalSchedule(aggregateCfg.Interval),
	); err != nil {
		return err
	}

	if cfg.Features.IsEnabled(config.FeatureRealtimeLiveBroadcast, nil) {
		broadcastCfg := jobs.DefaultBroadcastLiveConfig()
		broadcastCfg.Interval = cfg.Scheduler.BroadcastInterval
		if err := sched.Register(
			jobs.NewBroadcastLiveJob(service, broadcastCfg, log),
			scheduler.NewIntervalSchedule(broadcastCfg.Interval),
		); err != nil {
			return err
		}
	}

	reapCfg := jobs.DefaultReapSessionsConfig()
	reapCfg.Interval = cfg.Scheduler.ReapInterval
	reapCfg.SessionTimeout = cfg.Realtime.SessionTimeout
	if err := sched.Register(
		jobs.NewReapSessionsJob(service, reapCfg, log),
		scheduler.NewIntervalSchedule(reapCfg.Interval),
	); err != nil {
		return err
	}

	persistCfg := jobs.DefaultPersistMetricsConfig()
	persistCfg.Interval = cfg.Scheduler.PersistInterval
	if err := sched.Register(
		jobs.NewPersistMetricsJob(service, metricsRepo, persistCfg, log),
		scheduler.NewIntervalSchedule(persistCfg.Interval),
	); err != nil {
		return err
	}

	heartbeatCfg := jobs.DefaultHeartbeatConfig()
	heartbeatCfg.Interval = cfg.Scheduler.HeartbeatInterval
	if err := sched.Register(
		jobs.NewHeartbeatJob(registry, heartbeatCfg, log),
		scheduler.NewIntervalSchedule(heartbeatCfg.Interval),
	); err != nil {
		return err
	}

	if cfg.Features.IsEnabled(config.FeatureAnalyticsSnapshots, nil) {
		snapshotCfg := jobs.DefaultSnapshotAnalyticsConfig()
		snapshotCfg.Interval = cfg.Scheduler.SnapshotInterval
		if err := sched.Register(
			jobs.NewSnapshotAnalyticsJob(service, metricsRepo, snapshotCfg, log),
			scheduler.NewIntervalSchedule(snapshotCfg.Interval),
		); err != nil {
			return err
		}
	}

	if cfg.Features.IsEnabled(config.FeatureAnalyticsCleanup, nil) {
		cleanupCfg := jobs.DefaultCleanupOldDataConfig()
		cleanupCfg.CronExpression = cfg.Scheduler.CleanupSchedule
		cleanupCfg.Retention = cfg.Scheduler.SnapshotRetention
		cleanupSchedule, err := scheduler.ParseCronSchedule(cleanupCfg.CronExpression)
		if err != nil {
			return fmt.Errorf("invalid cleanup schedule %q: %w", cleanupCfg.CronExpression, err)
		}
		if err := sched.Register(
			jobs.NewCleanupOldDataJob(metricsRepo, cleanupCfg, log),
			cleanupSchedule,
		); err != nil {
			return err
		}
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger configures structured logging for the process.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "json" || cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}

// redisConfigFrom maps the central Redis settings onto the cache config,
// accepting either a redis:// URL or host/port fields.
func redisConfigFrom(rc config.RedisConfig) redis.Config {
	cfg := redis.DefaultConfig()
	cfg.Host = rc.Host
	cfg.Port = rc.Port
	cfg.Password = rc.Password
	cfg.DB = rc.DB
	cfg.PoolSize = rc.PoolSize
	cfg.MinIdleConns = rc.MinIdleConns
	cfg.DialTimeout = rc.DialTimeout
	cfg.ReadTimeout = rc.ReadTimeout
	cfg.WriteTimeout = rc.WriteTimeout

	if rc.URL != "" {
		host, port := parseRedisURL(rc.URL)
		if host != "" {
			cfg.Host = host
		}
		if port > 0 {
			cfg.Port = port
		}
	}

	return cfg
}

// parseRedisURL extracts host and port from a redis:// URL. Anything it
// cannot parse falls back to the configured host/port fields.
func parseRedisURL(url string) (string, int) {
	addr := strings.TrimPrefix(url, "redis://")
	if idx := strings.Index(addr, "@"); idx != -1 {
		addr = addr[idx+1:]
	}
	if idx := strings.Index(addr, "/"); idx != -1 {
		addr = addr[:idx]
	}

	host, portStr, found := strings.Cut(addr, ":")
	if !found {
		return addr, 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 0
	}
	return host, port
}

// noopCache satisfies the realtime cache interface when Redis is
// unavailable; reads always miss.
type noopCache struct{}

func (noopCache) SetString(ctx context.Context, key, value string, ttl time.Duration) error {
	return nil
}

func (noopCache) GetString(ctx context.Context, key string) (string, error) {
	return "", redis.ErrCacheMiss
}
