package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Log       LogConfig       `mapstructure:"log"`
	Event     EventConfig     `mapstructure:"event"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Shopify   ShopifyConfig   `mapstructure:"shopify"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Security  SecurityConfig  `mapstructure:"security"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
	Output string `mapstructure:"output"` // stdout, stderr, or file path
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Port string `mapstructure:"port"`
}

// DatabaseConfig holds PostgreSQL connection and pool settings
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // minutes
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // minutes
	// MigrateOnStart applies the embedded migrations before the server starts
	MigrateOnStart bool `mapstructure:"migrate_on_start"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// Required disables the in-memory fallback when Redis is unreachable
	Required bool `mapstructure:"required"`
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig holds settings for the operator API bearer tokens
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`

	// RevocationPrefix is the Redis key namespace of revoked tokens
	RevocationPrefix string `mapstructure:"revocation_prefix"`
}

// EventConfig controls the outbox processor
type EventConfig struct {
	ProcessorEnabled bool          `mapstructure:"processor_enabled"`
	BatchSize        int           `mapstructure:"batch_size"`
	Workers          int           `mapstructure:"workers"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	MaxRetries       int           `mapstructure:"max_retries"`
	CleanupEnabled   bool          `mapstructure:"cleanup_enabled"`
	CleanupRetention time.Duration `mapstructure:"cleanup_retention"`
}

type HTTPConfig struct {
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	IdleTimeout      time.Duration `mapstructure:"idle_timeout"`
	MaxHeaderBytes   int           `mapstructure:"max_header_bytes"`
	MaxBodySize      int64         `mapstructure:"max_body_size"`
	CORSAllowOrigins []string      `mapstructure:"cors_allow_origins"`
	TrustedProxies   []string      `mapstructure:"trusted_proxies"`
}

// ShopifyConfig holds Admin API and webhook settings
type ShopifyConfig struct {
	APIVersion      string        `mapstructure:"api_version"`
	APIKey          string        `mapstructure:"api_key"`
	APISecret       string        `mapstructure:"api_secret"` // webhook HMAC secret
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	CallLimit       int64         `mapstructure:"call_limit"`  // bucket size per shop
	CallWindow      time.Duration `mapstructure:"call_window"` // window for CallLimit
	MaxAcquireTries int           `mapstructure:"max_acquire_tries"`
	WebhookDedupTTL time.Duration `mapstructure:"webhook_dedup_ttl"`
}

// SyncConfig holds pacing and debounce settings for sync runs
type SyncConfig struct {
	DebounceWindow time.Duration `mapstructure:"debounce_window"`
	BatchSize      int           `mapstructure:"batch_size"`
	FallbackDelay  time.Duration `mapstructure:"fallback_delay"`
	PriceDelay     time.Duration `mapstructure:"price_delay"`
	MetafieldDelay time.Duration `mapstructure:"metafield_delay"`
	OrderLookback  time.Duration `mapstructure:"order_lookback"`
	NotifyOnImport bool          `mapstructure:"notify_on_import"`
	DefaultReason  string        `mapstructure:"default_reason"`
	RunTimeout     time.Duration `mapstructure:"run_timeout"`
	MaxConcurrent  int           `mapstructure:"max_concurrent"`
}

// SchedulerConfig holds cron schedules for background sync jobs
type SchedulerConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	OrderPullSchedule string        `mapstructure:"order_pull_schedule"`
	ReconcileSchedule string        `mapstructure:"reconcile_schedule"`
	IncomingSchedule  string        `mapstructure:"incoming_schedule"`
	JobTimeout        time.Duration `mapstructure:"job_timeout"`
}

// SecurityConfig holds the key used to seal platform access tokens
type SecurityConfig struct {
	TokenEncryptionKey string `mapstructure:"token_encryption_key"` // base64, 32 bytes
}

// StorageConfig holds S3-compatible object storage settings for the order archive
type StorageConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Endpoint     string `mapstructure:"endpoint"`
	Region       string `mapstructure:"region"`
	Bucket       string `mapstructure:"bucket"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	UseSSL       bool   `mapstructure:"use_ssl"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	Prefix       string `mapstructure:"prefix"`
}

type TelemetryConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	CollectorEndpoint string  `mapstructure:"collector_endpoint"` // OTLP gRPC host:port
	SamplingRatio     float64 `mapstructure:"sampling_ratio"`
	ServiceName       string  `mapstructure:"service_name"`
	Insecure          bool    `mapstructure:"insecure"`
	LogsEnabled       bool    `mapstructure:"logs_enabled"` // bridge zap into the OTLP logs pipeline

	DBTraceEnabled    bool          `mapstructure:"db_trace_enabled"`
	DBLogFullSQL      bool          `mapstructure:"db_log_full_sql"`
	DBSlowQueryThresh time.Duration `mapstructure:"db_slow_query_threshold"`
}

// defaults lists every key Load understands. Keys absent here are invisible
// to environment overrides, so zero values are listed too.
var defaults = map[string]any{
	"app.name": "shopsync",
	"app.env":  "development",
	"app.port": "8080",

	"database.host":               "localhost",
	"database.port":               5432,
	"database.user":               "postgres",
	"database.password":           "",
	"database.dbname":             "wms",
	"database.sslmode":            "disable",
	"database.max_open_conns":     25,
	"database.max_idle_conns":     5,
	"database.conn_max_lifetime":  60,
	"database.conn_max_idle_time": 30,
	"database.migrate_on_start":   false,

	"redis.host":     "localhost",
	"redis.port":     6379,
	"redis.password": "",
	"redis.db":       0,
	"redis.required": false,

	"jwt.secret":            "",
	"jwt.issuer":            "wms",
	"jwt.revocation_prefix": "",

	"log.level":  "info",
	"log.format": "console",
	"log.output": "stdout",

	"event.processor_enabled": false,
	"event.batch_size":        50,
	"event.workers":           4,
	"event.poll_interval":     2 * time.Second,
	"event.max_retries":       5,
	"event.cleanup_enabled":   true,
	"event.cleanup_retention": 7 * 24 * time.Hour,

	"http.read_timeout":       15 * time.Second,
	"http.write_timeout":      60 * time.Second,
	"http.idle_timeout":       60 * time.Second,
	"http.max_header_bytes":   1 << 20,
	"http.max_body_size":      int64(10 << 20),
	"http.cors_allow_origins": []string{},
	"http.trusted_proxies":    []string{},

	"shopify.api_version":       "2024-10",
	"shopify.api_key":           "",
	"shopify.api_secret":        "",
	"shopify.request_timeout":   30 * time.Second,
	"shopify.call_limit":        int64(40),
	"shopify.call_window":       20 * time.Second,
	"shopify.max_acquire_tries": 3,
	"shopify.webhook_dedup_ttl": 48 * time.Hour,

	"sync.debounce_window":  5 * time.Second,
	"sync.batch_size":       100,
	"sync.fallback_delay":   500 * time.Millisecond,
	"sync.price_delay":      500 * time.Millisecond,
	"sync.metafield_delay":  500 * time.Millisecond,
	"sync.order_lookback":   7 * 24 * time.Hour,
	"sync.notify_on_import": false,
	"sync.default_reason":   "correction",
	"sync.run_timeout":      10 * time.Minute,
	"sync.max_concurrent":   4,

	"scheduler.enabled":             false,
	"scheduler.order_pull_schedule": "*/15 * * * *",
	"scheduler.reconcile_schedule":  "0 3 * * *",
	"scheduler.incoming_schedule":   "0 * * * *",
	"scheduler.job_timeout":         30 * time.Minute,

	"security.token_encryption_key": "",

	"storage.enabled":        false,
	"storage.endpoint":       "",
	"storage.region":         "us-east-1",
	"storage.bucket":         "",
	"storage.access_key":     "",
	"storage.secret_key":     "",
	"storage.use_ssl":        true,
	"storage.use_path_style": false,
	"storage.prefix":         "orders",

	"telemetry.enabled":                 false,
	"telemetry.collector_endpoint":      "localhost:4317",
	"telemetry.sampling_ratio":          1.0,
	"telemetry.service_name":            "shopsync",
	"telemetry.insecure":                false,
	"telemetry.logs_enabled":            false,
	"telemetry.db_trace_enabled":        false,
	"telemetry.db_log_full_sql":         false,
	"telemetry.db_slow_query_threshold": 200 * time.Millisecond,
}

// Load reads config.toml from the working directory or /app, then applies
// SHOPSYNC_* environment overrides (SHOPSYNC_DATABASE_PASSWORD sets
// database.password). A missing file is not an error.
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("SHOPSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate reports every problem at once
func (c *Config) validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	db := c.Database
	switch {
	case db.MaxOpenConns <= 0:
		fail("database.max_open_conns must be positive")
	case db.MaxIdleConns < 0:
		fail("database.max_idle_conns cannot be negative")
	case db.MaxIdleConns > db.MaxOpenConns:
		fail("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)", db.MaxIdleConns, db.MaxOpenConns)
	}

	// the Admin API caps paginated and bulk requests at 100 items
	if c.Sync.BatchSize < 0 || c.Sync.BatchSize > 100 {
		fail("sync.batch_size must be within 0..100, got %d", c.Sync.BatchSize)
	}
	if c.Event.Workers < 1 {
		fail("event.workers must be at least 1")
	}
	if c.Security.TokenEncryptionKey != "" {
		if _, err := c.Security.DecodeKey(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Storage.Enabled && c.Storage.Bucket == "" {
		fail("storage.bucket is required when storage is enabled")
	}
	if r := c.Telemetry.SamplingRatio; r < 0 || r > 1 {
		fail("telemetry.sampling_ratio must be between 0.0 and 1.0, got %g", r)
	}

	if c.App.Env == "production" {
		if len(c.JWT.Secret) < 32 {
			fail("jwt.secret must be at least 32 characters in production")
		}
		if db.Password == "" {
			fail("database.password is required in production")
		}
		if db.SSLMode == "disable" {
			fail("database.sslmode cannot be 'disable' in production")
		}
		if c.Security.TokenEncryptionKey == "" {
			fail("security.token_encryption_key is required in production")
		}
		if c.Shopify.APISecret == "" {
			fail("shopify.api_secret is required in production")
		}
		if c.Telemetry.DBLogFullSQL {
			fail("telemetry.db_log_full_sql must be false in production")
		}
	}
	return errors.Join(errs...)
}

// DecodeKey returns the 32-byte token encryption key
func (s SecurityConfig) DecodeKey() ([32]byte, error) {
	var key [32]byte
	raw, err := base64.StdEncoding.DecodeString(s.TokenEncryptionKey)
	if err != nil {
		return key, fmt.Errorf("security.token_encryption_key must be base64: %w", err)
	}
	if len(raw) != len(key) {
		return key, fmt.Errorf("security.token_encryption_key must decode to 32 bytes, got %d", len(raw))
	}
	copy(key[:], raw)
	return key, nil
}

// DSN returns the database URL with user and password escaped
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.DBName,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}
