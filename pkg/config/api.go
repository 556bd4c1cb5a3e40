package config

import (
	"errors"
	"strings"
	"time"
)

// DatabaseConfig is the subset of settings needed to reach the database.
type DatabaseConfig struct {
	DatabaseURL   string `env:"DATABASE_URL" envDefault:"postgres://portfolio:portfolio@db:5432/portfolio?sslmode=disable"`
	MigrationsDir string `env:"DB_MIGRATIONS_DIR" envDefault:"db/migrations"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
}

// AuthConfig describes the single operator account allowed to call the API.
type AuthConfig struct {
	Username       string        `env:"API_AUTH_USERNAME" envDefault:"admin"`
	Password       string        `env:"API_AUTH_PASSWORD" envDefault:"admin"`
	Role           string        `env:"API_AUTH_ROLE" envDefault:"ADMIN"`
	JWTSecret      string        `env:"JWT_SECRET" envDefault:"supersecuresecret"`
	AccessTokenTTL time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	BcryptCost     int           `env:"API_AUTH_BCRYPT_COST" envDefault:"10"`
}

// MembersAPIConfig configures the external identity source and the
// eligibility rules applied to the profiles it returns.
type MembersAPIConfig struct {
	BaseURL              string        `env:"MEMBERS_API_BASE_URL" envDefault:"http://members-api:8081"`
	Timeout              time.Duration `env:"MEMBERS_API_TIMEOUT" envDefault:"5s"`
	RequiredOccupationID int           `env:"MEMBERS_REQUIRED_OCCUPATION_ID,required"`
	RequiredContractID   int           `env:"MEMBERS_REQUIRED_CONTRACT_ID,required"`
	BreakerMaxRequests   uint32        `env:"MEMBERS_BREAKER_MAX_REQUESTS" envDefault:"3"`
	BreakerInterval      time.Duration `env:"MEMBERS_BREAKER_INTERVAL" envDefault:"1m"`
	BreakerTimeout       time.Duration `env:"MEMBERS_BREAKER_TIMEOUT" envDefault:"30s"`
	BreakerFailures      uint32        `env:"MEMBERS_BREAKER_CONSECUTIVE_FAILURES" envDefault:"5"`
}

// RateLimitConfig holds per-principal request budgets and the optional Redis store.
type RateLimitConfig struct {
	RedisAddr string        `env:"RATE_LIMIT_REDIS_ADDR"`
	RedisPass string        `env:"RATE_LIMIT_REDIS_PASSWORD"`
	RedisDB   int           `env:"RATE_LIMIT_REDIS_DB" envDefault:"0"`
	Read      int           `env:"RATE_LIMIT_READ" envDefault:"120"`
	Write     int           `env:"RATE_LIMIT_WRITE" envDefault:"60"`
	Window    time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
}

// TelemetryConfig controls trace export. An empty endpoint disables export.
type TelemetryConfig struct {
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string `env:"OTEL_SERVICE_NAME" envDefault:"project-portfolio-api"`
}

// APIConfig holds runtime configuration for the API service.
type APIConfig struct {
	Environment string `env:"APP_ENV" envDefault:"development"`
	Addr        string `env:"API_ADDR" envDefault:":8080"`
	DatabaseConfig
	Auth      AuthConfig
	Members   MembersAPIConfig
	RateLimit RateLimitConfig
	Telemetry TelemetryConfig
}

// LoadAPIConfig constructs an APIConfig from environment variables.
func LoadAPIConfig() (APIConfig, error) {
	var cfg APIConfig
	if err := ParseEnv(&cfg); err != nil {
		return APIConfig{}, err
	}
	cfg.Members.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Members.BaseURL), "/")
	if cfg.Members.BaseURL == "" {
		return APIConfig{}, errors.New("MEMBERS_API_BASE_URL must not be empty")
	}
	if strings.TrimSpace(cfg.Auth.Username) == "" || cfg.Auth.Password == "" {
		return APIConfig{}, errors.New("API_AUTH_USERNAME and API_AUTH_PASSWORD must be set")
	}
	return cfg, nil
}

// LoadDatabaseConfig reads only the database settings, for tools that do not
// serve requests.
func LoadDatabaseConfig() (DatabaseConfig, error) {
	var cfg DatabaseConfig
	if err := ParseEnv(&cfg); err != nil {
		return DatabaseConfig{}, err
	}
	return cfg, nil
}
