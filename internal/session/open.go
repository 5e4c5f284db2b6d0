package session

import (
	"context"
	"fmt"

	"github.com/kalambet/ragroute/internal/storage"
)

// Open returns the Store for backend. The returned close function releases
// backend connections; the shared SQLite database is left to its owner.
func Open(ctx context.Context, backend string, db *storage.Store, redisURL string, opts Options) (Store, func() error, error) {
	noop := func() error { return nil }
	switch backend {
	case BackendSQLite, "":
		if db == nil {
			return nil, nil, fmt.Errorf("sqlite session backend requires a database")
		}
		return NewSQLiteStore(db, opts), noop, nil
	case BackendMemory:
		return NewMemoryStore(opts), noop, nil
	case BackendRedis:
		if redisURL == "" {
			return nil, nil, fmt.Errorf("redis session backend requires session.redis_url")
		}
		rdb, err := DialRedis(ctx, redisURL)
		if err != nil {
			return nil, nil, err
		}
		return NewRedisStore(rdb, opts), rdb.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", backend)
	}
}
