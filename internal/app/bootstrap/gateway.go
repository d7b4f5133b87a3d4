package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cacheadapter "github.com/securevault/securevault/internal/adapters/cache"
	"github.com/securevault/securevault/internal/adapters/security"
	"github.com/securevault/securevault/internal/gateway"
)

// GatewayRuntime hosts the edge filter chain in front of the internal
// services. It holds no durable state; everything it needs is the shared
// counter store and the token public key.
type GatewayRuntime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	cleanupFn  func()
}

func NewGatewayRuntime(ctx context.Context, configPath string) (*GatewayRuntime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("missing REDIS_URL")
	}
	if cfg.JWTPublicKeyPEM == "" {
		return nil, fmt.Errorf("missing JWT_PUBLIC_KEY_PEM: the gateway verifies tokens it cannot issue")
	}
	if len(cfg.GatewayRoutes) == 0 {
		return nil, fmt.Errorf("no gateway routes configured")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With(
		"service", "securevault-gateway",
	)
	slog.SetDefault(logger)
	logger.Info("bootstrapping gateway", "port", cfg.GatewayPort, "routes", len(cfg.GatewayRoutes))

	redisClient, err := cacheadapter.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	verifier, err := security.NewRSAVerifier(cfg.JWTPublicKeyPEM)
	if err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("init token verifier: %w", err)
	}

	routeSpecs := make([]gateway.Route, 0, len(cfg.GatewayRoutes))
	for _, route := range cfg.GatewayRoutes {
		routeSpecs = append(routeSpecs, gateway.Route{
			Prefix:    route.Prefix,
			Upstream:  route.Upstream,
			AdminOnly: route.AdminOnly,
		})
	}
	routes, err := gateway.NewRouteTable(routeSpecs, logger)
	if err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("build route table: %w", err)
	}

	gateway.RegisterMetrics()
	limiter := gateway.NewRateLimiter(
		cacheadapter.NewRedisRateStore(redisClient),
		gateway.RateLimitConfig{
			GeneralLimit: cfg.GatewayGeneralLimit,
			LoginLimit:   cfg.GatewayLoginLimit,
		},
		logger,
	)
	jwtFilter := gateway.NewJWTFilter(verifier)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.GatewayPort),
		Handler:           gateway.NewRouter(routes, limiter, jwtFilter),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &GatewayRuntime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		cleanupFn: func() {
			_ = redisClient.Close()
		},
	}, nil
}

func (r *GatewayRuntime) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		r.logger.Info("gateway started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("gateway server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case err := <-errCh:
		r.logger.Error("server failure", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.cleanupFn()
	return nil
}
