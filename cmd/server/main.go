// Command authkeeper-server starts the authkeeper gRPC server.
package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/and161185/authkeeper/internal/api/authv1"
	"github.com/and161185/authkeeper/internal/cache"
	"github.com/and161185/authkeeper/internal/config"
	"github.com/and161185/authkeeper/internal/limiter"
	"github.com/and161185/authkeeper/internal/metrics"
	"github.com/and161185/authkeeper/internal/migrate"
	"github.com/and161185/authkeeper/internal/repository"
	"github.com/and161185/authkeeper/internal/repository/memory"
	"github.com/and161185/authkeeper/internal/repository/postgres"
	grpcserver "github.com/and161185/authkeeper/internal/server/grpc"
	"github.com/and161185/authkeeper/internal/service"
	"github.com/and161185/authkeeper/internal/token"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// cacheHealthService is the health-check name that follows the cache flag.
const cacheHealthService = "authkeeper.cache"

func newLogger(level string, dev bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if dev {
		cfg = zap.NewDevelopmentConfig()
	}
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	cfg.Level = lvl
	return cfg.Build()
}

// main loads configuration, wires the stores and services, and serves gRPC until
// SIGINT or SIGTERM.
func main() {
	cfgPath := flag.String("config", "", "path to YAML config (defaults when empty)")
	dev := flag.Bool("dev", false, "development logging and gRPC reflection")
	flag.Parse()

	boot, _ := zap.NewProduction()
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		boot.Fatal("load config", zap.Error(err))
	}
	if *dev {
		cfg.Server.Dev = true
	}

	logger, err := newLogger(cfg.Log.Level, cfg.Server.Dev)
	if err != nil {
		boot.Fatal("build logger", zap.Error(err))
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Server.GRPCAddr),
		zap.String("store", cfg.Database.Store),
	)

	if err := cfg.Validate(token.MinKeyLen); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Stores
	var (
		identities repository.IdentityRepository
		sessions   repository.SessionRepository
	)
	switch cfg.Database.Store {
	case config.StorePostgres:
		if err := migrate.Up(ctx, cfg.Database.DSN, logger); err != nil {
			logger.Fatal("migrate up", zap.Error(err))
		}
		db, err := postgres.New(ctx, cfg.Database.DSN)
		if err != nil {
			logger.Fatal("postgres", zap.Error(err))
		}
		defer db.Close()
		identities = postgres.NewIdentityRepo(db)
		sessions = postgres.NewSessionRepo(db)
	default:
		logger.Warn("using in-memory store; data is lost on restart")
		identities = memory.NewIdentities()
		sessions = memory.NewSessions()
	}

	m := metrics.New()
	hs := health.NewServer()
	reportCache := func(healthy bool) {
		m.CacheHealth(healthy)
		st := healthpb.HealthCheckResponse_SERVING
		if !healthy {
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
		hs.SetServingStatus(cacheHealthService, st)
	}

	// Ephemeral cache
	rc := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() { _ = rc.Close() }()
	c := cache.New(rc, logger, cache.Options{
		Attempts:       cfg.Cache.RetryAttempts,
		RetryBase:      cfg.Cache.RetryBase,
		OpTimeout:      cfg.Redis.OpTimeout,
		HealthInterval: cfg.Cache.HealthInterval,
		OnHealthChange: reportCache,
		OnFailure:      m.CacheFailure,
	})
	// the server starts even with the cache down; it degrades until a health check succeeds
	reportCache(c.Check(ctx))
	go c.Run(ctx)

	// Services
	issuer, err := token.NewIssuer(token.Options{
		SignKey:      []byte(cfg.Auth.JWTKey),
		AccessTTL:    cfg.Auth.AccessTTL,
		RefreshTTL:   cfg.Auth.RefreshTTL,
		RefreshBytes: cfg.Auth.RefreshTokenBytes,
		HashKey:      []byte(cfg.Auth.TokenHashKey),
	})
	if err != nil {
		logger.Fatal("token issuer", zap.Error(err))
	}
	lim := limiter.NewCached(c, cfg.Limiter.Window, cfg.Limiter.MaxFailures, cfg.Limiter.BlockFor)

	sessionSvc := service.NewSessionService(sessions, issuer, c, logger, m,
		service.SessionOptions{LogoutFallbackTTL: cfg.Auth.LogoutFallbackTTL})
	authSvc := service.NewAuthService(identities, sessionSvc, lim, logger, m)
	codeSvc := service.NewCodeService(identities, sessionSvc, c, service.LogSender{Log: logger}, logger, m,
		service.CodeOptions{TTL: cfg.Auth.CodeTTL, Digits: cfg.Auth.CodeDigits})
	authn := service.NewAuthenticator(issuer, c)

	// gRPC server with interceptors
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			grpcserver.RecoverUnary(logger),
			grpcserver.TraceUnary(),
			grpcserver.LoggingUnary(logger),
			grpcserver.AuthUnary(authn, logger),
		),
	}
	if cfg.Server.TLSCert != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.Server.TLSCert, cfg.Server.TLSKey)
		if err != nil {
			logger.Fatal("failed to load TLS cert/key", zap.Error(err))
		}
		opts = append(opts, grpc.Creds(creds))
	} else {
		logger.Warn("TLS disabled; serving plaintext gRPC")
	}
	s := grpc.NewServer(opts...)
	authv1.RegisterAuthServiceServer(s, grpcserver.New(authSvc, codeSvc, sessionSvc, logger))

	// Health & reflection (dev)
	healthpb.RegisterHealthServer(s, hs)
	if cfg.Server.Dev {
		reflection.Register(s)
	}

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Fatal("listen", zap.Error(err))
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Server.GRPCAddr))
		errCh <- s.Serve(lis)
	}()

	var ms *http.Server
	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		ms = &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("metrics listening", zap.String("addr", cfg.Server.MetricsAddr))
			if err := ms.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	// Wait for stop
	select {
	case <-ctx.Done():
		hs.Shutdown()
		if ms != nil {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = ms.Shutdown(sctx)
			cancel()
		}
		done := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			s.Stop()
		}
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
