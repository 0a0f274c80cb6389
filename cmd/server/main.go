package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"linkfolio/internal/admin"
	"linkfolio/internal/avatar"
	"linkfolio/internal/biopages"
	"linkfolio/internal/cache"
	"linkfolio/internal/config"
	"linkfolio/internal/credentials"
	"linkfolio/internal/db"
	"linkfolio/internal/db/mock"
	"linkfolio/internal/handlers"
	"linkfolio/internal/identity"
	"linkfolio/internal/links"
	applog "linkfolio/internal/log"
	"linkfolio/internal/mail"
	"linkfolio/internal/metrics"
	"linkfolio/internal/ratelimit"
	"linkfolio/internal/server"
	"linkfolio/internal/themes"
	"linkfolio/internal/tracking"
)

type serverLifecycle interface {
	Start() error
	Stop() error
}

var (
	loadDotEnvFunc       = func() error { return config.LoadDotEnv() }
	loadConfigFunc       = config.Load
	setLogLevelFunc      = applog.SetLevel
	setLogFormatFunc     = applog.SetFormat
	newMockDatabaseFunc  = mock.New
	configureDatabase    = db.Configure
	connectRedisFunc     = connectRedis
	newServerFunc        = defaultNewServer
	subscribeShutdownSig = defaultSubscribeShutdownSig
)

func main() {
	os.Exit(run(context.Background()))
}

func run(ctx context.Context) int {
	if err := loadDotEnvFunc(); err != nil {
		applog.Error(ctx, "failed to load .env file", "error", err)
		return 1
	}

	cfg, err := loadConfigFunc()
	if err != nil {
		applog.Error(ctx, "failed to load configuration", "error", err)
		return 1
	}

	if err := setLogLevelFunc(cfg.Logging.Level); err != nil {
		applog.Error(ctx, "invalid log level", "level", cfg.Logging.Level, "error", err)
		return 1
	}
	if err := setLogFormatFunc(cfg.Logging.Format); err != nil {
		applog.Error(ctx, "invalid log format", "format", cfg.Logging.Format, "error", err)
		return 1
	}

	database, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		applog.Error(ctx, "failed to initialise database", "error", err)
		return 1
	}

	deps, cleanup, err := buildDependencies(ctx, cfg, database)
	if err != nil {
		applog.Error(ctx, "failed to build dependencies", "error", err)
		return 1
	}
	defer cleanup()

	srv, err := newServerFunc(server.Config{
		Addr:     cfg.Server.Addr,
		Session:  cfg.Auth.Session,
		Database: database,
		Handlers: deps,
	})
	if err != nil {
		applog.Error(ctx, "failed to create server", "error", err)
		return 1
	}

	serverErr := make(chan error, 1)
	go func() {
		applog.Info(ctx, "starting http server", "addr", cfg.Server.Addr)
		serverErr <- srv.Start()
	}()

	signals, stop := subscribeShutdownSig()
	defer stop()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			applog.Error(ctx, "server encountered an error", "error", err)
			return 1
		}
		return 0
	case sig := <-signals:
		applog.Info(ctx, "shutting down http server", "signal", sig.String())
	}

	if err := srv.Stop(); err != nil {
		applog.Error(ctx, "graceful shutdown failed", "error", err)
		return 1
	}
	if err := <-serverErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		applog.Error(ctx, "server encountered an error", "error", err)
		return 1
	}
	return 0
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*gorm.DB, error) {
	if cfg.UseMock {
		applog.Info(ctx, "using mock database", "admin", mock.AdminEmail, "demo", mock.DemoEmail)
		return newMockDatabaseFunc(ctx)
	}
	return configureDatabase(cfg)
}

// buildDependencies wires the domain services. Redis backs the rate limiter
// and page cache when configured; otherwise both run in process.
func buildDependencies(ctx context.Context, cfg config.Config, database *gorm.DB) (handlers.Dependencies, func(), error) {
	cleanup := func() {}

	var (
		limiter   ratelimit.Limiter = ratelimit.NewMemory()
		pageCache cache.Cache       = cache.Noop{}
	)
	if cfg.Cache.Enabled() {
		client, err := connectRedisFunc(ctx, cfg.Cache.RedisURL)
		if err != nil {
			return handlers.Dependencies{}, cleanup, err
		}
		cleanup = func() {
			if err := client.Close(); err != nil {
				applog.Warn(ctx, "failed to close redis client", "error", err)
			}
		}
		limiter = ratelimit.NewRedis(client)
		pageCache = cache.NewRedis(client)
		applog.Info(ctx, "redis enabled for rate limiting and page cache")
	}

	registry := biopages.New(database, avatar.NewGravatar())
	deps := handlers.Dependencies{
		Identity:       identity.New(database, credentials.NewBcryptHasher(), registry, mail.New(cfg.Mail), cfg.Server.BaseURL),
		Pages:          registry,
		Links:          links.New(database),
		Themes:         themes.New(database),
		Admin:          admin.New(database, time.Now()),
		Limiter:        limiter,
		Cache:          pageCache,
		CacheTTL:       cfg.Cache.TTL,
		Metrics:        metrics.New(),
		Tracker:        tracking.New(cfg.Tracking),
		TrustedProxies: cfg.Server.TrustedProxies,
	}
	return deps, cleanup, nil
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func defaultNewServer(cfg server.Config) (serverLifecycle, error) {
	return server.New(cfg)
}

func defaultSubscribeShutdownSig() (<-chan os.Signal, func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT)
	return ch, func() { signal.Stop(ch) }
}
