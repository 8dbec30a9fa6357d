package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/PratikDhanave/event-token-service/internal/ledger"
)

// Storage drivers accepted by STORE_DRIVER.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Config contains runtime configuration required by the service.
type Config struct {
	HTTPAddr      string `env:"HTTP_ADDR" envDefault:":8080"`
	StoreDriver   string `env:"STORE_DRIVER" envDefault:"sqlite"`
	DBURL         string `env:"DB_URL"`
	SQLitePath    string `env:"SQLITE_PATH" envDefault:"events.db"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	APIKeysRaw    string `env:"API_KEYS"`

	// APIKeys maps apiKey -> caller identity.
	APIKeys map[string]ledger.Identity
}

// Load reads values from environment variables.
// API_KEYS format: "identity1:key1,identity2:key2"
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	if cfg.StoreDriver == "" {
		cfg.StoreDriver = DriverSQLite
	}
	switch cfg.StoreDriver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if strings.TrimSpace(cfg.DBURL) == "" {
			return Config{}, errors.New("DB_URL required for postgres driver")
		}
	case DriverRedis:
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return Config{}, errors.New("REDIS_ADDR required for redis driver")
		}
	default:
		return Config{}, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	keys, err := parseAPIKeys(cfg.APIKeysRaw)
	if err != nil {
		return Config{}, err
	}
	cfg.APIKeys = keys
	return cfg, nil
}

func parseAPIKeys(raw string) (map[string]ledger.Identity, error) {
	apiKeys := map[string]ledger.Identity{}
	raw = strings.TrimSpace(raw)

	if raw != "" {
		pairs := strings.Split(raw, ",")
		for _, p := range pairs {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			parts := strings.SplitN(p, ":", 2)
			if len(parts) != 2 {
				return nil, errors.New(`API_KEYS must be "identity:key,identity:key"`)
			}
			name := strings.TrimSpace(parts[0])
			key := strings.TrimSpace(parts[1])
			if name == "" || key == "" {
				return nil, errors.New(`API_KEYS must be "identity:key,identity:key"`)
			}
			id, err := ledger.ParseIdentity(name)
			if err != nil {
				return nil, fmt.Errorf("API_KEYS identity %q: %w", name, err)
			}
			apiKeys[key] = id
		}
	}

	// Local dev fallback so the service runs out-of-the-box.
	if len(apiKeys) == 0 {
		apiKeys["creator-key-123"] = "creator"
		apiKeys["claimer-key-456"] = "claimer"
	}
	return apiKeys, nil
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
