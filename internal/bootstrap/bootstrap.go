// Package bootstrap opens the storage gateway and report cache named by the
// configuration. Both binaries share it.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"shopledger/backend/internal/cache"
	"shopledger/backend/internal/config"
	"shopledger/backend/internal/money"
	"shopledger/backend/internal/service"
	"shopledger/backend/internal/store"
	"shopledger/backend/internal/store/memory"
	pgstore "shopledger/backend/internal/store/postgres"
	sqlitestore "shopledger/backend/internal/store/sqlite"
)

func OpenGateway(ctx context.Context, cfg config.Config, log zerolog.Logger) (store.Gateway, error) {
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres unavailable: %w", err)
		}
		log.Info().Str("driver", cfg.StorageDriver).Msg("storage ready")
		return pg, nil
	case config.DriverSQLite:
		db, err := sqlitestore.New(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite unavailable: %w", err)
		}
		log.Info().Str("driver", cfg.StorageDriver).Str("path", cfg.SQLitePath).Msg("storage ready")
		return db, nil
	case config.DriverMemory:
		log.Warn().Msg("storage is in-memory; data is lost on exit")
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
}

// OpenCache returns the redis report cache when REDIS_ADDR is set and
// reachable, and a no-op cache otherwise. The closer is nil for the no-op.
func OpenCache(ctx context.Context, cfg config.Config, log zerolog.Logger) (cache.ReportCache, func() error) {
	if cfg.RedisAddr == "" {
		log.Info().Msg("cache: noop")
		return cache.NoopReportCache{}, nil
	}
	redisCache := cache.NewRedisReportCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := redisCache.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("redis unavailable, using noop cache")
		_ = redisCache.Close()
		return cache.NoopReportCache{}, nil
	}
	log.Info().Str("addr", cfg.RedisAddr).Msg("cache: redis")
	return redisCache, redisCache.Close
}

// Service wires a Service over gw with the configured currency and cache.
func Service(cfg config.Config, gw store.Gateway, reports cache.ReportCache) (*service.Service, error) {
	conv, err := money.NewConverter(cfg.BaseCurrency)
	if err != nil {
		return nil, err
	}
	return service.New(gw, conv, service.Options{
		Cache:       reports,
		CacheTTL:    cfg.ReportCacheTTL(),
		WarningDays: cfg.ExpiryWarningDays,
	}), nil
}
