// Package cache provides the shared cover-art tiers: Redis for multi-instance deployments
// and Badger for a single instance that should keep its answers across restarts.
package cache

import (
	"context"
	"fmt"
	"io"

	"songrec/internal/config"
	"songrec/internal/coverart"
)

// Store is a coverart.Store that holds a connection or file handle.
type Store interface {
	coverart.Store
	io.Closer
}

// New opens the backend named by cfg.Backend; "none" returns (nil, nil).
func New(ctx context.Context, cfg config.CacheConfig) (Store, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "redis":
		s, err := NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.TTL)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "badger":
		s, err := OpenBadger(cfg.BadgerPath, cfg.TTL)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
}
