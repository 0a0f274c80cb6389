package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"gorm.io/gorm"

	"linkfolio/internal/cache"
	"linkfolio/internal/config"
	"linkfolio/internal/ratelimit"
	"linkfolio/internal/server"
)

type stubServer struct {
	startErr       error
	stopErr        error
	blockUntilStop bool

	startCalled bool
	stopCalled  bool

	startGate   chan struct{}
	startNotify chan struct{}
}

func newStubServer(startErr, stopErr error, block bool) *stubServer {
	s := &stubServer{
		startErr:       startErr,
		stopErr:        stopErr,
		blockUntilStop: block,
		startNotify:    make(chan struct{}),
	}
	if block {
		s.startGate = make(chan struct{})
	}
	return s
}

func (s *stubServer) Start() error {
	s.startCalled = true
	close(s.startNotify)
	if s.blockUntilStop {
		<-s.startGate
	}
	return s.startErr
}

func (s *stubServer) Stop() error {
	s.stopCalled = true
	if s.blockUntilStop {
		close(s.startGate)
	}
	return s.stopErr
}

// restoreHooks resets every injectable function once the test finishes and
// stubs out the ones that touch the process environment.
func restoreHooks(t *testing.T) {
	t.Helper()
	originalDotEnv := loadDotEnvFunc
	originalLoadConfig := loadConfigFunc
	originalSetLogLevel := setLogLevelFunc
	originalSetLogFormat := setLogFormatFunc
	originalMock := newMockDatabaseFunc
	originalConfigure := configureDatabase
	originalRedis := connectRedisFunc
	originalNewServer := newServerFunc
	originalSubscribe := subscribeShutdownSig

	t.Cleanup(func() {
		loadDotEnvFunc = originalDotEnv
		loadConfigFunc = originalLoadConfig
		setLogLevelFunc = originalSetLogLevel
		setLogFormatFunc = originalSetLogFormat
		newMockDatabaseFunc = originalMock
		configureDatabase = originalConfigure
		connectRedisFunc = originalRedis
		newServerFunc = originalNewServer
		subscribeShutdownSig = originalSubscribe
	})

	loadDotEnvFunc = func() error { return nil }
	setLogLevelFunc = func(string) error { return nil }
	setLogFormatFunc = func(string) error { return nil }
}

func TestRunUsesMockDatabaseWhenConfigured(t *testing.T) {
	restoreHooks(t)

	cfg := config.Config{
		Server: config.ServerConfig{Addr: ":8080"},
		Database: config.DatabaseConfig{
			UseMock: true,
		},
		Logging: config.LoggingConfig{Level: "debug"},
		Auth: config.AuthConfig{
			Session: config.SessionConfig{
				Lifetime:     time.Hour,
				CookieName:   "test",
				CookieSecure: true,
			},
		},
	}

	var mockCalled bool
	var received server.Config
	loadConfigFunc = func() (config.Config, error) { return cfg, nil }
	newMockDatabaseFunc = func(ctx context.Context) (*gorm.DB, error) {
		mockCalled = true
		return &gorm.DB{}, nil
	}
	configureDatabase = func(config.DatabaseConfig) (*gorm.DB, error) {
		t.Fatal("configureDatabase should not be called when mock is enabled")
		return nil, nil
	}

	serverStub := newStubServer(http.ErrServerClosed, nil, true)
	newServerFunc = func(c server.Config) (serverLifecycle, error) {
		received = c
		return serverStub, nil
	}

	shutdownCh := make(chan os.Signal, 1)
	subscribeShutdownSig = func() (<-chan os.Signal, func()) {
		return shutdownCh, func() {}
	}

	go func() {
		<-serverStub.startNotify
		shutdownCh <- syscall.SIGTERM
	}()

	code := run(context.Background())
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	if !mockCalled {
		t.Fatal("expected mock database to be used")
	}
	if !serverStub.startCalled || !serverStub.stopCalled {
		t.Fatal("expected server start and stop to be invoked")
	}
	if received.Session.CookieName != "test" || received.Addr != ":8080" {
		t.Fatalf("unexpected server config: %+v", received)
	}
	if received.Handlers.Identity == nil || received.Handlers.Admin == nil {
		t.Fatal("expected domain services to be wired")
	}
	if _, ok := received.Handlers.Limiter.(*ratelimit.Memory); !ok {
		t.Fatalf("expected in-process limiter without redis, got %T", received.Handlers.Limiter)
	}
}

func TestRunReturnsErrorWhenServerStartFails(t *testing.T) {
	restoreHooks(t)

	cfg := config.Config{
		Server: config.ServerConfig{Addr: ":8080"},
		Database: config.DatabaseConfig{
			UseMock: true,
		},
		Logging: config.LoggingConfig{Level: "info"},
		Auth:    config.AuthConfig{Session: config.SessionConfig{Lifetime: time.Hour}},
	}

	loadConfigFunc = func() (config.Config, error) { return cfg, nil }
	newMockDatabaseFunc = func(context.Context) (*gorm.DB, error) { return &gorm.DB{}, nil }

	serverStub := newStubServer(errors.New("listener failure"), nil, false)
	newServerFunc = func(server.Config) (serverLifecycle, error) {
		return serverStub, nil
	}

	subscribeShutdownSig = func() (<-chan os.Signal, func()) {
		return make(chan os.Signal), func() {}
	}

	code := run(context.Background())
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if serverStub.stopCalled {
		t.Fatal("server stop should not be called on start error")
	}
}

func TestRunHandlesDatabaseConfigurationError(t *testing.T) {
	restoreHooks(t)

	cfg := config.Config{
		Server:   config.ServerConfig{Addr: ":8080"},
		Database: config.DatabaseConfig{URL: "postgres://example", UseMock: false},
		Logging:  config.LoggingConfig{Level: "info"},
	}

	loadConfigFunc = func() (config.Config, error) { return cfg, nil }
	newMockDatabaseFunc = func(context.Context) (*gorm.DB, error) {
		t.Fatal("mock database should not be used when URL is configured")
		return nil, nil
	}
	configureDatabase = func(config.DatabaseConfig) (*gorm.DB, error) {
		return nil, errors.New("db connection refused")
	}

	code := run(context.Background())
	if code != 1 {
		t.Fatalf("expected exit code 1 on database configuration failure, got %d", code)
	}
}

func TestRunReturnsErrorWhenLogLevelInvalid(t *testing.T) {
	restoreHooks(t)

	cfg := config.Config{Logging: config.LoggingConfig{Level: "invalid"}}
	loadConfigFunc = func() (config.Config, error) { return cfg, nil }
	setLogLevelFunc = func(string) error { return errors.New("invalid level") }

	code := run(context.Background())
	if code != 1 {
		t.Fatalf("expected exit code 1 for invalid log level, got %d", code)
	}
}

func TestRunReturnsErrorWhenConfigInvalid(t *testing.T) {
	restoreHooks(t)

	loadConfigFunc = func() (config.Config, error) { return config.Config{}, errors.New("database URL must be set") }

	if code := run(context.Background()); code != 1 {
		t.Fatalf("expected exit code 1 for invalid configuration, got %d", code)
	}
}

func TestBuildDependenciesUsesRedisWhenConfigured(t *testing.T) {
	srv := miniredis.RunT(t)

	cfg := config.Config{
		Server: config.ServerConfig{BaseURL: "http://localhost:8080"},
		Cache:  config.CacheConfig{RedisURL: "redis://" + srv.Addr(), TTL: time.Minute},
	}
	deps, cleanup, err := buildDependencies(context.Background(), cfg, &gorm.DB{})
	if err != nil {
		t.Fatalf("build dependencies: %v", err)
	}
	t.Cleanup(cleanup)

	if _, ok := deps.Limiter.(*ratelimit.Redis); !ok {
		t.Fatalf("expected redis limiter, got %T", deps.Limiter)
	}
	if _, ok := deps.Cache.(*cache.Redis); !ok {
		t.Fatalf("expected redis cache, got %T", deps.Cache)
	}
	if deps.CacheTTL != time.Minute {
		t.Fatalf("expected cache ttl to be forwarded, got %s", deps.CacheTTL)
	}
}

func TestBuildDependenciesFailsWhenRedisUnreachable(t *testing.T) {
	srv := miniredis.RunT(t)
	addr := srv.Addr()
	srv.Close()

	cfg := config.Config{Cache: config.CacheConfig{RedisURL: "redis://" + addr}}
	if _, _, err := buildDependencies(context.Background(), cfg, &gorm.DB{}); err == nil {
		t.Fatal("expected an error when redis cannot be reached")
	}
}
