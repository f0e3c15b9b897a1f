package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	config "github.com/NordCoder/KUSeek/internal/config/api"
	"github.com/NordCoder/KUSeek/internal/ratelimit"
	pg "github.com/NordCoder/KUSeek/internal/repository/postgres"
	redisrepo "github.com/NordCoder/KUSeek/internal/repository/redis"
	"go.uber.org/zap"

	tokens "github.com/NordCoder/KUSeek/internal/auth"
	authsvc "github.com/NordCoder/KUSeek/internal/services/api/auth"
)

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	path := os.Getenv("KUSEEK_CONFIG")
	if path == "" {
		path = "config/api.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		panic(err)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting api", zap.String("env", cfg.App.Env), zap.String("ver", cfg.App.Version))

	otelShutdown, err := initOTel(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	db, err := initDB(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb, err := initRedis(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal("redis connect", zap.Error(err))
	}
	defer func() { _ = rdb.Close() }()

	store := redisrepo.NewCounterStore(rdb, cfg.Redis.OpTimeout)
	apiLimiter, err := ratelimit.New(store, cfg.RateLimit.API, logger)
	if err != nil {
		logger.Fatal("api limiter", zap.Error(err))
	}
	loginLimiter, err := ratelimit.New(store, cfg.RateLimit.Login, logger)
	if err != nil {
		logger.Fatal("login limiter", zap.Error(err))
	}

	issuer, err := tokens.NewIssuer(tokens.Config{
		Secret:     []byte(cfg.Auth.JWTSecret),
		AccessTTL:  cfg.Auth.AccessTTL,
		RefreshTTL: cfg.Auth.RefreshTTL,
	})
	if err != nil {
		logger.Fatal("token issuer", zap.Error(err))
	}
	hasher := tokens.DefaultHasher()
	hasher.Memory, hasher.Time, hasher.Threads = cfg.Auth.HashMemory, cfg.Auth.HashTime, cfg.Auth.HashThreads

	uc, err := authsvc.NewUseCase(authsvc.Deps{
		Users:    pg.NewUserRepo(db),
		Profiles: pg.NewProfileRepo(db),
		Sessions: pg.NewSessionRepo(db),
		Outbox:   pg.NewOutboxRepo(db),
		Tx:       pg.NewTransactor(db, logger),
		Tokens:   issuer,
		Hasher:   hasher,
		Bans:     apiLimiter,
		BanSets: map[string]authsvc.BanClearer{
			apiLimiter.Policy().Name:   apiLimiter,
			loginLimiter.Policy().Name: loginLimiter,
		},
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("auth usecase", zap.Error(err))
	}

	authServer, err := authsvc.NewServer(uc, authsvc.Opts{
		Logger: logger,
		Cookies: authsvc.CookieOpts{
			Name:   cfg.Auth.CookieName,
			Domain: cfg.Auth.CookieDomain,
			Path:   cfg.Auth.CookiePath,
			Secure: cfg.Auth.CookieSecure,
			TTL:    cfg.Auth.RefreshTTL,
		},
		TrustProxy:   cfg.Server.TrustProxyHeaders,
		LoginLimiter: loginLimiter,
		APILimiter:   apiLimiter,
	})
	if err != nil {
		logger.Fatal("auth server", zap.Error(err))
	}

	httpSrv := buildHTTPServer(cfg, logger, authServer, map[string]healthCheck{
		"db":    db.Ping,
		"redis": store.Ping,
	})

	httpErrCh := make(chan error, 1)
	go func() { httpErrCh <- serveHTTP(httpSrv, logger) }()

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal", zap.String("reason", "context canceled"))
	case err := <-httpErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve", zap.Error(err))
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	logger.Info("bye")
}
