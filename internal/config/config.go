// Package config reads process settings from the environment and .env files.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	DefaultChainTTL      = 2 * time.Minute
	DefaultSessionTTL    = 24 * time.Hour
	DefaultAuditInterval = 30 * time.Minute
	DefaultPrefix        = "catalog"
)

type Config struct {
	BotToken      string        `validate:"required"`
	WebhookURL    string        `validate:"required,url"`
	HTTPPort      string        `validate:"required,numeric"`
	AdminIDs      []int64       `validate:"dive,gt=0"`
	LogLevel      string        `validate:"oneof=dev debug info warn error"`
	SessionTTL    time.Duration `validate:"gt=0"`
	AuditInterval time.Duration `validate:"gt=0"`
	Storage       Storage
}

type Storage struct {
	Driver   string        `validate:"oneof=memory mongo redis mysql"`
	Prefix   string        `validate:"required,max=64"`
	ChainTTL time.Duration `validate:"gt=0"`
	Mongo    Mongo
	Redis    Redis
	MySQL    MySQL
}

type Mongo struct {
	URI      string
	Host     string
	Port     int `validate:"gte=0,lte=65535"`
	Username string
	Password string
	Database string
}

type Redis struct {
	Addr     string
	Password string
	DB       int `validate:"gte=0"`
}

type MySQL struct {
	Username string
	Password string
	Host     string
	Port     string
	Database string
}

// LoadEnv loads the first .env found near the working directory and returns
// its path.
func LoadEnv() (string, error) {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	for _, path := range possiblePaths {
		if err := godotenv.Load(path); err == nil {
			return path, nil
		}
	}
	return "", errors.New("could not load .env file from any path")
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return FromEnv(os.Getenv)
}

func FromEnv(getenv func(string) string) (*Config, error) {
	env := envReader{getenv: getenv}

	cfg := &Config{
		BotToken:      env.str("BOT_TOKEN", ""),
		WebhookURL:    env.str("BOT_WEBHOOK_URL", ""),
		HTTPPort:      env.str("HTTP_PORT", "8080"),
		AdminIDs:      env.ids("ADMIN_IDS"),
		LogLevel:      env.str("LOG_LEVEL", "info"),
		SessionTTL:    env.duration("SESSION_TTL", DefaultSessionTTL),
		AuditInterval: env.duration("AUDIT_INTERVAL", DefaultAuditInterval),
		Storage: Storage{
			Driver:   env.str("STORAGE_DRIVER", "memory"),
			Prefix:   env.str("STORAGE_PREFIX", DefaultPrefix),
			ChainTTL: env.duration("CHAIN_TTL", DefaultChainTTL),
			Mongo: Mongo{
				URI:      env.str("MONGO_URI", ""),
				Host:     env.str("MONGO_HOST", "localhost"),
				Port:     env.number("MONGO_PORT", 27017),
				Username: env.str("MONGO_USERNAME", ""),
				Password: env.str("MONGO_PASSWORD", ""),
				Database: env.str("MONGO_DB", "support"),
			},
			Redis: Redis{
				Addr:     env.str("REDIS_ADDR", "localhost:6379"),
				Password: env.str("REDIS_PASSWORD", ""),
				DB:       env.number("REDIS_DB", 0),
			},
			MySQL: MySQL{
				Username: env.str("DB_USERNAME", ""),
				Password: env.str("DB_PASSWORD", ""),
				Host:     env.str("DB_HOST", "localhost"),
				Port:     env.str("DB_PORT", "3306"),
				Database: env.str("DB_DATABASE", ""),
			},
		},
	}

	if len(env.errs) > 0 {
		return nil, errors.Join(env.errs...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	switch c.Storage.Driver {
	case "mongo":
		if c.Storage.Mongo.URI == "" && c.Storage.Mongo.Host == "" {
			return errors.New("invalid configuration: mongo needs MONGO_URI or MONGO_HOST")
		}
	case "redis":
		if c.Storage.Redis.Addr == "" {
			return errors.New("invalid configuration: redis needs REDIS_ADDR")
		}
	case "mysql":
		if c.Storage.MySQL.Database == "" {
			return errors.New("invalid configuration: mysql needs DB_DATABASE")
		}
	}
	return nil
}

// IsAdmin reports whether userID may edit the catalog.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

type envReader struct {
	getenv func(string) string
	errs   []error
}

func (e *envReader) str(key, def string) string {
	if v := strings.TrimSpace(e.getenv(key)); v != "" {
		return v
	}
	return def
}

func (e *envReader) number(key string, def int) int {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

// ids parses a comma separated list such as "1234,5678".
func (e *envReader) ids(key string) []int64 {
	var out []int64
	for _, part := range strings.Split(e.str(key, ""), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		out = append(out, id)
	}
	return out
}
