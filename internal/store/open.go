package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/assistance-scheduling/internal/config"
	"github.com/hackgods/assistance-scheduling/internal/db"
	redisclient "github.com/hackgods/assistance-scheduling/internal/redis"
)

// Open builds the store selected by cfg.StoreDriver. The redis client is
// returned as well when the driver uses one, so callers can share it for
// calendar locks; it is nil otherwise.
func Open(ctx context.Context, cfg config.Config) (Store, *redis.Client, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		return NewMemoryStore(), nil, nil

	case config.StoreRedis:
		rdb, err := redisclient.NewRedisClient(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		return NewRedisStore(rdb, cfg.CacheTTL), rdb, nil

	case config.StorePostgres:
		pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := db.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return NewPostgresStore(pool), nil, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
