package storage

import (
	"context"
	"fmt"

	"github.com/notebook-ai/cli/config"
	"go.uber.org/zap"
)

// Open builds the Adapter for the configured driver, scoped to the origin
// of the configured backend
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Adapter, error) {
	origin := OriginOf(cfg.Backend.BaseURL)

	var (
		backend Backend
		err     error
	)
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		backend, err = NewSQLiteBackend(cfg.Storage.Path, origin)
	case config.DriverRedis:
		backend, err = NewRedisBackend(ctx, cfg.Storage.RedisAddr, cfg.Storage.RedisDB, origin)
	case config.DriverPostgres:
		backend, err = NewPostgresBackend(ctx, cfg.Storage.ConnectionString, origin)
	case config.DriverMemory:
		backend = NewMemoryBackend(origin)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
	if err != nil {
		return nil, err
	}

	return NewAdapter(backend, log), nil
}
