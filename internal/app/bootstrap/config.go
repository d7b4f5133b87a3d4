package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration for both binaries.
// It merges file defaults and environment overrides to support both local
// and deployed runs.
type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	DatabaseURL string
	RedisURL    string

	JWTPrivateKeyPEM  string
	JWTPublicKeyPEM   string
	JWTKeyID          string
	AllowEphemeralJWT bool

	BcryptCost int

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	AuditServiceURL string
	AuditTimeout    time.Duration

	RefreshCleanupInterval time.Duration

	GatewayPort         int
	GatewayGeneralLimit int64
	GatewayLoginLimit   int64
	GatewayRoutes       []GatewayRoute
}

// GatewayRoute maps a path prefix to an upstream service.
type GatewayRoute struct {
	Prefix    string `yaml:"prefix"`
	Upstream  string `yaml:"upstream"`
	AdminOnly bool   `yaml:"admin_only"`
}

// configFile mirrors the YAML schema used by configs/default.yaml.
// It is intentionally separate from Config so runtime-only fields stay
// internal.
type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL string `yaml:"postgres_url"`
		RedisURL    string `yaml:"redis_url"`
		AuditURL    string `yaml:"audit_url"`
	} `yaml:"dependencies"`
	Gateway struct {
		Port         int            `yaml:"port"`
		GeneralLimit int64          `yaml:"general_limit"`
		LoginLimit   int64          `yaml:"login_limit"`
		Routes       []GatewayRoute `yaml:"routes"`
	} `yaml:"gateway"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
// This order keeps local bootstrap simple while allowing environment-specific
// overrides.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:              "securevault-auth",
		HTTPPort:               8081,
		GRPCPort:               9091,
		JWTKeyID:               "securevault-key-1",
		AllowEphemeralJWT:      true,
		BcryptCost:             12,
		AccessTokenTTL:         15 * time.Minute,
		RefreshTokenTTL:        7 * 24 * time.Hour,
		AuditTimeout:           3 * time.Second,
		RefreshCleanupInterval: time.Hour,
		GatewayPort:            8080,
		GatewayGeneralLimit:    100,
		GatewayLoginLimit:      10,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if f.Dependencies.AuditURL != "" {
			cfg.AuditServiceURL = f.Dependencies.AuditURL
		}
		if f.Gateway.Port > 0 {
			cfg.GatewayPort = f.Gateway.Port
		}
		if f.Gateway.GeneralLimit > 0 {
			cfg.GatewayGeneralLimit = f.Gateway.GeneralLimit
		}
		if f.Gateway.LoginLimit > 0 {
			cfg.GatewayLoginLimit = f.Gateway.LoginLimit
		}
		if len(f.Gateway.Routes) > 0 {
			cfg.GatewayRoutes = f.Gateway.Routes
		}
	}

	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.AuditServiceURL = envOrDefault("AUDIT_SERVICE_URL", cfg.AuditServiceURL)
	cfg.JWTPrivateKeyPEM = envOrDefault("JWT_PRIVATE_KEY_PEM", cfg.JWTPrivateKeyPEM)
	cfg.JWTPublicKeyPEM = envOrDefault("JWT_PUBLIC_KEY_PEM", cfg.JWTPublicKeyPEM)
	cfg.JWTKeyID = envOrDefault("JWT_KEY_ID", cfg.JWTKeyID)
	cfg.AllowEphemeralJWT = envBool("JWT_ALLOW_EPHEMERAL", cfg.AllowEphemeralJWT)

	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.BcryptCost = envInt("BCRYPT_ROUNDS", cfg.BcryptCost)
	cfg.GatewayPort = envInt("GATEWAY_PORT", cfg.GatewayPort)
	cfg.GatewayGeneralLimit = int64(envInt("RATE_LIMIT_GENERAL", int(cfg.GatewayGeneralLimit)))
	cfg.GatewayLoginLimit = int64(envInt("RATE_LIMIT_LOGIN", int(cfg.GatewayLoginLimit)))

	cfg.AccessTokenTTL = time.Duration(envInt("ACCESS_TOKEN_TTL_MINUTES", int(cfg.AccessTokenTTL.Minutes()))) * time.Minute
	cfg.RefreshTokenTTL = time.Duration(envInt("REFRESH_TOKEN_TTL_HOURS", int(cfg.RefreshTokenTTL.Hours()))) * time.Hour
	cfg.RefreshCleanupInterval = time.Duration(envInt("REFRESH_CLEANUP_INTERVAL_MINUTES", int(cfg.RefreshCleanupInterval.Minutes()))) * time.Minute

	if (cfg.JWTPrivateKeyPEM == "" || cfg.JWTPublicKeyPEM == "") && !cfg.AllowEphemeralJWT {
		return Config{}, fmt.Errorf("missing JWT_PRIVATE_KEY_PEM or JWT_PUBLIC_KEY_PEM")
	}

	return cfg, nil
}

// envOrDefault returns an env var when present, otherwise the provided
// fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return b
}
