package storage

import (
	"context"
	"fmt"

	"github.com/dvloznov/voice-ledger/internal/config"
)

// Open builds the backend named by cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "bolt":
		return NewBolt(cfg.Path)
	case "sqlite":
		return NewSQLite(cfg.Path)
	case "redis":
		return DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisKey)
	case "memory":
		return NewMemory(), nil
	}
	return nil, fmt.Errorf("storage.Open: unknown driver %q", cfg.Driver)
}
