package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Auth      AuthConfig      `yaml:"auth"`
	OAuth     OAuthConfig     `yaml:"oauth"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	GinMode        string   `yaml:"ginMode"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type PostgresConfig struct {
	DatabaseURL string `yaml:"databaseUrl"`
	Host        string `yaml:"host"`
	Port        string `yaml:"port"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	Database    string `yaml:"database"`
	SSLMode     string `yaml:"sslmode"`
}

// AuthConfig keeps durations as strings; service.NewTokenManager parses
// and validates them.
type AuthConfig struct {
	JWTSecret                 string `yaml:"jwtSecret"`
	JWTIssuer                 string `yaml:"jwtIssuer"`
	JWTAccessTTL              string `yaml:"jwtAccessTtl"`
	JWTRefreshTTL             string `yaml:"jwtRefreshTtl"`
	BcryptCost                string `yaml:"bcryptCost"`
	RevocationCleanupInterval string `yaml:"revocationCleanupInterval"`
}

type OAuthConfig struct {
	GoogleClientID     string `yaml:"googleClientId"`
	GoogleClientSecret string `yaml:"googleClientSecret"`
	GoogleRedirectURL  string `yaml:"googleRedirectUrl"`
	GoogleIssuerURL    string `yaml:"googleIssuerUrl"`
}

// Enabled reports whether federated login is configured.
func (c OAuthConfig) Enabled() bool {
	return strings.TrimSpace(c.GoogleClientID) != ""
}

type RateLimitConfig struct {
	PerMinute string `yaml:"perMinute"`
	Burst     string `yaml:"burst"`
}

// Load builds the configuration once at startup: .env file (optional),
// YAML file named by CONFIG_FILE (optional), then environment variables.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Addr = getenv("SERVER_ADDR", or(cfg.Server.Addr, ":8080"))
	cfg.Server.GinMode = getenv("GIN_MODE", or(cfg.Server.GinMode, "release"))
	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		cfg.Server.AllowedOrigins = splitCSV(origins)
	}

	cfg.Log.Level = getenv("LOG_LEVEL", or(cfg.Log.Level, "info"))
	cfg.Log.Format = getenv("LOG_FORMAT", or(cfg.Log.Format, "json"))

	cfg.Postgres.DatabaseURL = getenv("DATABASE_URL", cfg.Postgres.DatabaseURL)
	cfg.Postgres.Host = getenv("PGHOST", or(cfg.Postgres.Host, "localhost"))
	cfg.Postgres.Port = getenv("PGPORT", or(cfg.Postgres.Port, "5432"))
	cfg.Postgres.User = getenv("PGUSER", cfg.Postgres.User)
	cfg.Postgres.Password = getenv("PGPASSWORD", cfg.Postgres.Password)
	cfg.Postgres.Database = getenv("PGDATABASE", cfg.Postgres.Database)
	cfg.Postgres.SSLMode = getenv("PGSSLMODE", or(cfg.Postgres.SSLMode, "disable"))

	cfg.Auth.JWTSecret = getenv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.JWTIssuer = getenv("JWT_ISSUER", or(cfg.Auth.JWTIssuer, "shelfmark"))
	cfg.Auth.JWTAccessTTL = getenv("JWT_ACCESS_TTL", or(cfg.Auth.JWTAccessTTL, "2h"))
	cfg.Auth.JWTRefreshTTL = getenv("JWT_REFRESH_TTL", or(cfg.Auth.JWTRefreshTTL, "720h"))
	cfg.Auth.BcryptCost = getenv("AUTH_BCRYPT_COST", cfg.Auth.BcryptCost)
	cfg.Auth.RevocationCleanupInterval = getenv("AUTH_REVOCATION_CLEANUP_INTERVAL", or(cfg.Auth.RevocationCleanupInterval, "1h"))

	cfg.OAuth.GoogleClientID = getenv("GOOGLE_CLIENT_ID", cfg.OAuth.GoogleClientID)
	cfg.OAuth.GoogleClientSecret = getenv("GOOGLE_CLIENT_SECRET", cfg.OAuth.GoogleClientSecret)
	cfg.OAuth.GoogleRedirectURL = getenv("GOOGLE_REDIRECT_URL", cfg.OAuth.GoogleRedirectURL)
	cfg.OAuth.GoogleIssuerURL = getenv("GOOGLE_ISSUER_URL", or(cfg.OAuth.GoogleIssuerURL, "https://accounts.google.com"))

	cfg.RateLimit.PerMinute = getenv("AUTH_RATE_LIMIT_PER_MINUTE", or(cfg.RateLimit.PerMinute, "20"))
	cfg.RateLimit.Burst = getenv("AUTH_RATE_LIMIT_BURST", or(cfg.RateLimit.Burst, "5"))
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func or(val, fallback string) string {
	if strings.TrimSpace(val) != "" {
		return val
	}
	return fallback
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
