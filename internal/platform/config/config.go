package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Lock backends.
const (
	LockNone  = "none"
	LockLocal = "local"
	LockRedis = "redis"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr           string
	RequestTimeout time.Duration
	ShutdownGrace  time.Duration
}

// CORSConfig lists the browser origins allowed to call the API. "*" allows any.
type CORSConfig struct {
	AllowedOrigins []string
}

// LogConfig selects the log level and encoder.
type LogConfig struct {
	Level  string
	Format string
}

// DatabaseConfig holds the PostgreSQL connection pool settings.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

// RedisConfig holds the Redis connection settings.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// LockConfig selects the identifier lock placed in front of the store.
type LockConfig struct {
	Backend string
	TTL     time.Duration
	Wait    time.Duration
}

// KafkaConfig enables link event publishing when Brokers is non-empty.
type KafkaConfig struct {
	Brokers     []string
	Topic       string
	CreateTopic bool
}

// TxConfig bounds a single reconciliation transaction and its retries.
type TxConfig struct {
	Timeout     time.Duration
	MaxAttempts int
}

// Config is the full process configuration.
type Config struct {
	Server   Server
	CORS     CORSConfig
	Log      LogConfig
	Storage  string
	Database DatabaseConfig
	Redis    RedisConfig
	Lock     LockConfig
	Kafka    KafkaConfig
	Tx       TxConfig
}

// Load reads an optional .env file and then builds the config from the environment.
// Values already present in the environment win over the file.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	p := &parser{}

	addr := os.Getenv("LINKAGE_ADDR")
	if addr == "" {
		if port := os.Getenv("PORT"); port != "" {
			addr = ":" + port
		} else {
			addr = ":3000"
		}
	}

	cfg := Config{
		Server: Server{
			Addr:           addr,
			RequestTimeout: p.duration("REQUEST_TIMEOUT", 30*time.Second),
			ShutdownGrace:  p.duration("SHUTDOWN_GRACE", 10*time.Second),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(stringOr("CORS_ALLOWED_ORIGINS", "*")),
		},
		Log: LogConfig{
			Level:  stringOr("LOG_LEVEL", "info"),
			Format: stringOr("LOG_FORMAT", "json"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    p.int("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    p.int("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: p.duration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			AutoMigrate:     p.bool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     p.int("REDIS_POOL_SIZE", 10),
			MinIdleConns: p.int("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  p.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  p.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: p.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Lock: LockConfig{
			TTL:  p.duration("LOCK_TTL", 10*time.Second),
			Wait: p.duration("LOCK_WAIT", 5*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:     splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:       stringOr("KAFKA_TOPIC", "contact-links"),
			CreateTopic: p.bool("KAFKA_CREATE_TOPIC", false),
		},
		Tx: TxConfig{
			Timeout:     p.duration("TX_TIMEOUT", 5*time.Second),
			MaxAttempts: p.int("TX_MAX_ATTEMPTS", 5),
		},
	}

	cfg.Storage = os.Getenv("STORAGE_BACKEND")
	if cfg.Storage == "" {
		cfg.Storage = StorageMemory
		if cfg.Database.URL != "" {
			cfg.Storage = StoragePostgres
		}
	}
	cfg.Lock.Backend = os.Getenv("LOCK_BACKEND")
	if cfg.Lock.Backend == "" {
		cfg.Lock.Backend = LockLocal
		if cfg.Redis.URL != "" {
			cfg.Lock.Backend = LockRedis
		}
	}

	if len(p.errs) > 0 {
		return Config{}, errors.Join(p.errs...)
	}
	return cfg, cfg.Validate()
}

// Validate reports settings that cannot work together.
func (c Config) Validate() error {
	var errs []error
	switch c.Storage {
	case StorageMemory:
	case StoragePostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres storage backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage))
	}
	switch c.Lock.Backend {
	case LockNone, LockLocal:
	case LockRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis lock backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LOCK_BACKEND %q", c.Lock.Backend))
	}
	if c.Tx.MaxAttempts < 1 {
		errs = append(errs, errors.New("TX_MAX_ATTEMPTS must be at least 1"))
	}
	return errors.Join(errs...)
}

type parser struct {
	errs []error
}

func (p *parser) int(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func (p *parser) bool(key string, def bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func stringOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
