package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

const devSecret = "dev-secret-key-change-in-production"

type Config struct {
	Port          string   `toml:"port"`
	LogLevel      string   `toml:"logLevel"`
	Storage       string   `toml:"storage"`
	DatabaseURL   string   `toml:"databaseURL"`
	RedisURL      string   `toml:"redisURL"`
	SQLitePath    string   `toml:"sqlitePath"`
	KeyPrefix     string   `toml:"keyPrefix"`
	JWTSecret     string   `toml:"jwtSecret"`
	CORSOrigins   []string `toml:"corsOrigins"`
	MaxImageBytes int64    `toml:"maxImageBytes"`
	// AuthRateLimit caps signup/login attempts per IP per minute; negative disables.
	AuthRateLimit int `toml:"authRateLimit"`
}

// Load reads an optional .env file, an optional TOML file at path, and then
// applies environment overrides. An empty path skips the TOML step.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug("[CONFIG] no .env file found, reading from environment")
	}

	var cfg Config
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.defaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Port, "PORT")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.Storage, "STORAGE")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.RedisURL, "REDIS_URL")
	setString(&c.SQLitePath, "SQLITE_PATH")
	setString(&c.KeyPrefix, "KEY_PREFIX")
	setString(&c.JWTSecret, "JWT_SECRET")

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.CORSOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("MAX_IMAGE_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.MaxImageBytes = n
		} else {
			log.Warnf("[CONFIG] ignoring MAX_IMAGE_BYTES=%q: %v", v, err)
		}
	}
	if v := os.Getenv("AUTH_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.AuthRateLimit = n
		} else {
			log.Warnf("[CONFIG] ignoring AUTH_RATE_LIMIT=%q: %v", v, err)
		}
	}
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func (c *Config) defaults() {
	if c.Port == "" {
		c.Port = "8082"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Storage == "" {
		c.Storage = BackendSQLite
	}
	if c.SQLitePath == "" {
		c.SQLitePath = "chirp.db"
	}
	if c.JWTSecret == "" {
		c.JWTSecret = devSecret
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"http://localhost:3000"}
	}
	if c.MaxImageBytes <= 0 {
		c.MaxImageBytes = 5 << 20
	}
	if c.AuthRateLimit == 0 {
		c.AuthRateLimit = 10
	}
}

var (
	ErrUnknownBackend = errors.New("unknown storage backend")
	ErrMissingURL     = errors.New("storage backend requires a connection URL")
)

func (c Config) Validate() error {
	switch c.Storage {
	case BackendMemory, BackendSQLite:
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("%w: redis", ErrMissingURL)
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: postgres", ErrMissingURL)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Storage)
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// UsesDevSecret reports whether the built-in JWT secret is in effect.
func (c Config) UsesDevSecret() bool {
	return c.JWTSecret == devSecret
}

func (c Config) String() string {
	c.JWTSecret = strings.Repeat("*", len([]rune(c.JWTSecret)))
	return fmt.Sprintf("%+v", struct {
		Port, LogLevel, Storage, SQLitePath, KeyPrefix, JWTSecret string
		CORSOrigins                                               []string
		MaxImageBytes                                             int64
		AuthRateLimit                                             int
	}{c.Port, c.LogLevel, c.Storage, c.SQLitePath, c.KeyPrefix, c.JWTSecret, c.CORSOrigins, c.MaxImageBytes, c.AuthRateLimit})
}
