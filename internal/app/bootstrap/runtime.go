package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	cacheadapter "github.com/securevault/securevault/internal/adapters/cache"
	eventadapter "github.com/securevault/securevault/internal/adapters/events"
	httpadapter "github.com/securevault/securevault/internal/adapters/http"
	"github.com/securevault/securevault/internal/adapters/postgres"
	"github.com/securevault/securevault/internal/adapters/security"
	"github.com/securevault/securevault/internal/application"
	"github.com/securevault/securevault/internal/domain"
	"github.com/securevault/securevault/internal/ports"
)

type Runtime struct {
	cfg           Config
	logger        *slog.Logger
	httpServer    *http.Server
	grpcServer    *grpc.Server
	grpcLis       net.Listener
	refreshTokens ports.RefreshTokenRepository
	cleanupFn     func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("missing DB_URL/POSTGRES_URL")
	}
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("missing REDIS_URL")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	logger.Info("bootstrapping authentication service", "http_port", cfg.HTTPPort, "grpc_port", cfg.GRPCPort)

	db, err := postgres.Connect(ctx, cfg.DatabaseURL, 20)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}

	if err := postgres.RunMigrations(ctx, db); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	redisClient, err := cacheadapter.Connect(ctx, cfg.RedisURL)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	repos := postgres.NewRepositories(db)

	tokenSigner, err := security.NewRSASigner(cfg.JWTKeyID, cfg.JWTPrivateKeyPEM, cfg.JWTPublicKeyPEM)
	if err != nil {
		if !cfg.AllowEphemeralJWT {
			_ = sqlDB.Close()
			_ = redisClient.Close()
			return nil, fmt.Errorf("init jwt signer: %w", err)
		}
		logger.Warn("using ephemeral JWT keys for local/dev runtime")
		tokenSigner, err = security.NewEphemeralRSASigner(cfg.JWTKeyID)
		if err != nil {
			_ = sqlDB.Close()
			_ = redisClient.Close()
			return nil, fmt.Errorf("init ephemeral jwt signer: %w", err)
		}
	}

	var audit ports.AuditPublisher
	if cfg.AuditServiceURL != "" {
		audit = eventadapter.NewHTTPAuditPublisher(cfg.AuditServiceURL, logger, cfg.AuditTimeout)
	} else {
		audit = eventadapter.NewLoggingAuditPublisher(logger)
	}

	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			DefaultRole:     domain.RoleUser,
			AccessTokenTTL:  cfg.AccessTokenTTL,
			RefreshTokenTTL: cfg.RefreshTokenTTL,
		},
		Users:         repos.Users,
		RefreshTokens: repos.RefreshTokens,
		Denylist:      cacheadapter.NewRedisDenylistStore(redisClient),
		Hasher:        security.NewBcryptHasher(cfg.BcryptCost),
		TokenSigner:   tokenSigner,
		TOTP:          security.NewTOTP(),
		Audit:         audit,
	})

	readiness := func(ctx context.Context) error {
		if err := sqlDB.PingContext(ctx); err != nil {
			return err
		}
		return redisClient.Ping(ctx).Err()
	}

	handler := httpadapter.NewHandler(svc, readiness)
	router := httpadapter.NewRouter(handler)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		_ = sqlDB.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("listen gRPC: %w", err)
	}

	return &Runtime{
		cfg:           cfg,
		logger:        logger,
		httpServer:    httpServer,
		grpcServer:    grpcServer,
		grpcLis:       lis,
		refreshTokens: repos.RefreshTokens,
		cleanupFn: func(ctx context.Context) {
			_ = redisClient.Close()
			_ = sqlDB.Close()
		},
	}, nil
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		r.logger.Info("http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		r.logger.Info("grpc server started", "addr", r.grpcLis.Addr().String())
		if err := r.grpcServer.Serve(r.grpcLis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	go r.runRefreshCleanup(ctx)

	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case err := <-errCh:
		r.logger.Error("server failure", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	r.cleanupFn(shutdownCtx)
	return nil
}

// runRefreshCleanup periodically deletes refresh rows that have expired.
// Expired rows are already unusable; this only bounds table growth.
func (r *Runtime) runRefreshCleanup(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.RefreshCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := r.refreshTokens.DeleteExpired(ctx, time.Now().UTC())
			if err != nil {
				r.logger.Warn("refresh token cleanup failed", "error", err)
				continue
			}
			if deleted > 0 {
				r.logger.Info("refresh token cleanup", "deleted", deleted)
			}
		}
	}
}
