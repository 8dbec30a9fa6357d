package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/PratikDhanave/event-token-service/internal/config"
	"github.com/PratikDhanave/event-token-service/internal/httpserver"
	"github.com/PratikDhanave/event-token-service/internal/service"
	"github.com/PratikDhanave/event-token-service/internal/store"
)

// main boots the service: config → storage → schema → HTTP server.
func main() {
	// Load runtime config from environment (STORE_DRIVER, DB_URL, API_KEYS, ...).
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	st, err := openStore(cfg)
	if err != nil {
		logger.Error("open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	l := service.New(st, service.WithLogger(logger))
	router := httpserver.NewRouter(cfg, l)

	logger.Info("server started", "addr", cfg.HTTPAddr, "driver", cfg.StoreDriver)
	if err := router.Run(cfg.HTTPAddr); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// openStore connects the configured backend and makes sure its schema exists,
// so `docker compose up --build` is enough.
func openStore(cfg config.Config) (store.Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch cfg.StoreDriver {
	case config.DriverMemory:
		return store.NewMemoryStore(), nil
	case config.DriverSQLite:
		return store.OpenSQLite(ctx, cfg.SQLitePath)
	case config.DriverPostgres:
		pg, err := store.NewPostgresStore(cfg.DBURL)
		if err != nil {
			return nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		return pg, nil
	case config.DriverRedis:
		rs := store.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := rs.Ping(ctx); err != nil {
			rs.Close()
			return nil, err
		}
		return rs, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
