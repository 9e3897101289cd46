package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/example/account-ledger/internal/account"
	"github.com/example/account-ledger/internal/api"
	"github.com/example/account-ledger/internal/auth"
	"github.com/example/account-ledger/internal/config"
	"github.com/example/account-ledger/internal/ledger"
	"github.com/example/account-ledger/internal/rpc"
	"github.com/example/account-ledger/internal/security"
	"github.com/example/account-ledger/internal/sendmoney"
	"github.com/example/account-ledger/pkg/audit"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		logger.Error("ledger stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.Migrate(ctx); err != nil {
		return err
	}

	var (
		lock    sendmoney.AccountLock = sendmoney.NewMemoryLock()
		limiter *security.FixedWindowLimiter
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to ping redis: %w", err)
		}
		lock = sendmoney.NewRedisLock(rdb, "ledger")
		if cfg.RateLimitPerMinute > 0 {
			limiter = security.NewFixedWindowLimiter(rdb, "ledger", cfg.RateLimitPerMinute)
		}
	} else if cfg.RateLimitPerMinute > 0 {
		logger.Warn("rate limiting disabled: REDIS_ADDR not set")
	}

	trail, closeAudit, err := openAuditTrail(cfg.AuditLogPath)
	if err != nil {
		return err
	}
	defer closeAudit()

	service := sendmoney.NewService(store, store, lock, sendmoney.Config{
		BaselineWindow:    cfg.BaselineWindow,
		TransferThreshold: account.NewMoney(cfg.TransferThreshold),
	}, sendmoney.WithLogger(logger), sendmoney.WithAuditor(trail))

	validator := &auth.JWTValidator{Secret: []byte(cfg.JWTSecret), Issuer: cfg.JWTIssuer}
	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set: every authenticated request will be rejected")
	}

	allowlist, err := security.ParseAllowlist(cfg.AllowedCIDRs)
	if err != nil {
		return err
	}

	router, err := api.NewRouter(api.Dependencies{
		Logger:       logger,
		JWTValidator: validator,
		Transfers:    service,
		Accounts:     store,
		RateLimiter:  limiter,
		IPAllowlist:  allowlist,
		MaxBodyBytes: cfg.MaxBodyBytes,
	})
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}

	var tlsCfg *tls.Config
	tlsFiles := security.TLSConfig{CertFile: cfg.TLSCertFile, KeyFile: cfg.TLSKeyFile, ClientCAFile: cfg.TLSClientCAFile}
	if tlsFiles.Enabled() {
		if tlsCfg, err = security.LoadServerTLSConfig(tlsFiles); err != nil {
			return err
		}
	}

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		TLSConfig:         tlsCfg,
	}

	grpcOpts := []grpc.ServerOption{
		grpc.MaxRecvMsgSize(1024 * 1024),
		grpc.MaxSendMsgSize(1024 * 1024),
		grpc.ChainUnaryInterceptor(
			rpc.UnaryLoggingInterceptor(logger),
			rpc.UnaryAuthInterceptor(validator, rpc.MethodScopes),
		),
	}
	if tlsCfg != nil {
		grpcOpts = append(grpcOpts, grpc.Creds(credentials.NewTLS(tlsCfg)))
	}
	grpcSrv := grpc.NewServer(grpcOpts...)
	rpc.RegisterAccountServiceServer(grpcSrv, rpc.NewServer(service, store, logger))
	healthSrv := health.NewServer()
	healthSrv.SetServingStatus(rpc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)

	httpLn, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.HTTPAddr, err)
	}
	if tlsCfg != nil {
		httpLn = tls.NewListener(httpLn, tlsCfg)
	}
	grpcLn, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		httpLn.Close()
		return fmt.Errorf("failed to listen on %s: %w", cfg.GRPCAddr, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", "addr", cfg.HTTPAddr, "tls", tlsCfg != nil)
		if err := httpSrv.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("grpc server listening", "addr", cfg.GRPCAddr, "tls", tlsCfg != nil)
		if err := grpcSrv.Serve(grpcLn); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		healthSrv.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		grpcSrv.GracefulStop()
		return httpSrv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info("audit trail closed", "recorded", trail.Recorded(), "last_hash", trail.LastHash())
	return err
}

// openAuditTrail verifies the existing log at path and continues its chain.
func openAuditTrail(path string) (*audit.Trail, func(), error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	trail, err := audit.ResumeTrail(f, f)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to resume audit trail %s: %w", path, err)
	}
	return trail, func() { f.Close() }, nil
}

func openStore(ctx context.Context, cfg *config.Config) (ledger.Store, func(), error) {
	switch cfg.DatabaseDriver {
	case config.DriverSQLite:
		db, err := ledger.OpenSQLite(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return ledger.NewSQLiteStore(db), func() { _ = db.Close() }, nil
	default:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create database pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to ping database: %w", err)
		}
		return ledger.NewPostgresStore(pool), pool.Close, nil
	}
}
