package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	BackendPostgres  = "postgres"
	BackendCouchbase = "couchbase"
	BackendMemory    = "memory"
)

type Config struct {
	Port      string `mapstructure:"PORT"`
	Env       string `mapstructure:"ENV"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	StoreBackend  string `mapstructure:"STORE_BACKEND"`
	DatabaseURL   string `mapstructure:"DATABASE_URL"`
	DBMaxConns    int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns    int32  `mapstructure:"DB_MIN_CONNS"`
	MigrationsDir string `mapstructure:"MIGRATIONS_DIR"`

	CouchbaseURL      string `mapstructure:"COUCHBASE_URL"`
	CouchbaseUsername string `mapstructure:"COUCHBASE_USERNAME"`
	CouchbasePassword string `mapstructure:"COUCHBASE_PASSWORD"`
	CouchbaseBucket   string `mapstructure:"COUCHBASE_BUCKET"`

	RedisURL string        `mapstructure:"REDIS_URL"`
	CacheTTL time.Duration `mapstructure:"CACHE_TTL"`

	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	BodyLimit      string   `mapstructure:"BODY_LIMIT"`
	RateLimitRPS   float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `mapstructure:"RATE_LIMIT_BURST"`

	// RequestTimeout bounds each HTTP request; zero disables it.
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`

	AuthJWTSecret string `mapstructure:"AUTH_JWT_SECRET"`
	AuthJWKSURL   string `mapstructure:"AUTH_JWKS_URL"`
	AuthIssuer    string `mapstructure:"AUTH_ISSUER"`

	WebhookURL        string        `mapstructure:"WEBHOOK_URL"`
	WebhookSecret     string        `mapstructure:"WEBHOOK_SECRET"`
	WebhookMaxRetries int           `mapstructure:"WEBHOOK_MAX_RETRIES"`
	WebhookTimeout    time.Duration `mapstructure:"WEBHOOK_TIMEOUT"`

	MQTTBroker   string `mapstructure:"MQTT_BROKER"`
	MQTTTopic    string `mapstructure:"MQTT_TOPIC"`
	MQTTClientID string `mapstructure:"MQTT_CLIENT_ID"`
	MQTTUsername string `mapstructure:"MQTT_USERNAME"`
	MQTTPassword string `mapstructure:"MQTT_PASSWORD"`

	TLSEnabled  bool   `mapstructure:"TLS_ENABLED"`
	TLSCertFile string `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile  string `mapstructure:"TLS_KEY_FILE"`

	SystemMetricsInterval time.Duration `mapstructure:"METRICS_SYSTEM_INTERVAL"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL", "LOG_FORMAT",
	"STORE_BACKEND", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "MIGRATIONS_DIR",
	"COUCHBASE_URL", "COUCHBASE_USERNAME", "COUCHBASE_PASSWORD", "COUCHBASE_BUCKET",
	"REDIS_URL", "CACHE_TTL",
	"CORS_ORIGINS", "BODY_LIMIT", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT",
	"AUTH_JWT_SECRET", "AUTH_JWKS_URL", "AUTH_ISSUER",
	"WEBHOOK_URL", "WEBHOOK_SECRET", "WEBHOOK_MAX_RETRIES", "WEBHOOK_TIMEOUT",
	"MQTT_BROKER", "MQTT_TOPIC", "MQTT_CLIENT_ID", "MQTT_USERNAME", "MQTT_PASSWORD",
	"TLS_ENABLED", "TLS_CERT_FILE", "TLS_KEY_FILE",
	"METRICS_SYSTEM_INTERVAL",
}

// Load reads configuration from the environment. A .env file in the
// working directory is loaded first when present; variables already set
// in the environment win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_BACKEND", BackendPostgres)
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("MIGRATIONS_DIR", "")
	v.SetDefault("COUCHBASE_BUCKET", "fhir")
	v.SetDefault("CACHE_TTL", "10m")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("WEBHOOK_MAX_RETRIES", 3)
	v.SetDefault("WEBHOOK_TIMEOUT", "10s")
	v.SetDefault("MQTT_TOPIC", "fhir/bundles/created")
	v.SetDefault("MQTT_CLIENT_ID", "fhir-transformer")
	v.SetDefault("METRICS_SYSTEM_INTERVAL", "15s")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}
	for i := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
	}

	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
		if cfg.IsDev() {
			cfg.LogFormat = "console"
		}
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// AuthEnabled reports whether bearer tokens are required on the protected
// routes.
func (c *Config) AuthEnabled() bool {
	return c.AuthJWTSecret != "" || c.AuthJWKSURL != ""
}

// Validate checks that the configuration is complete for the selected
// store backend and the enabled optional features.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND is %q", BackendPostgres)
		}
		if c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
		}
	case BackendCouchbase:
		if c.CouchbaseURL == "" {
			return fmt.Errorf("COUCHBASE_URL is required when STORE_BACKEND is %q", BackendCouchbase)
		}
		if c.CouchbaseBucket == "" {
			return fmt.Errorf("COUCHBASE_BUCKET is required when STORE_BACKEND is %q", BackendCouchbase)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q, %q, or %q, got %q",
			BackendPostgres, BackendCouchbase, BackendMemory, c.StoreBackend)
	}

	switch c.LogFormat {
	case "console", "json", "ecs":
	default:
		return fmt.Errorf("LOG_FORMAT must be \"console\", \"json\", or \"ecs\", got %q", c.LogFormat)
	}

	if c.AuthJWTSecret != "" && c.AuthJWKSURL != "" {
		return fmt.Errorf("AUTH_JWT_SECRET and AUTH_JWKS_URL are mutually exclusive")
	}

	if c.WebhookURL != "" && c.WebhookMaxRetries < 0 {
		return fmt.Errorf("WEBHOOK_MAX_RETRIES must not be negative, got %d", c.WebhookMaxRetries)
	}

	if c.RedisURL != "" && c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive when REDIS_URL is set")
	}

	// TLS validation: when TLS is enabled, cert and key files must be specified.
	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}

	return nil
}
