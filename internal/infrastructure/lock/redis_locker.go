package lock

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Config tunes the identity locks.
type Config struct {
	Prefix string
	Expiry time.Duration
	Tries  int
}

// RedisLocker serialises reconciliation of the same identities across
// instances with redsync mutexes. It implements chat.Locker.
type RedisLocker struct {
	rs  *redsync.Redsync
	cfg Config
	log zerolog.Logger
}

// NewRedisLocker creates a locker on top of an existing Redis client.
func NewRedisLocker(client redis.UniversalClient, cfg Config, log zerolog.Logger) *RedisLocker {
	if cfg.Expiry <= 0 {
		cfg.Expiry = 8 * time.Second
	}
	if cfg.Tries <= 0 {
		cfg.Tries = 16
	}
	return &RedisLocker{
		rs:  redsync.New(goredis.NewPool(client)),
		cfg: cfg,
		log: log.With().Str("component", "identity-lock").Logger(),
	}
}

// Lock acquires one mutex per key in a fixed order so that two callers
// sharing keys cannot deadlock. The returned func releases all of them.
func (l *RedisLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	names := lockNames(l.cfg.Prefix, keys)
	held := make([]*redsync.Mutex, 0, len(names))

	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			unlockCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			if ok, err := held[i].UnlockContext(unlockCtx); err != nil || !ok {
				l.log.Warn().Err(err).Str("lock", held[i].Name()).Msg("release identity lock")
			}
			cancel()
		}
	}

	for _, name := range names {
		mutex := l.rs.NewMutex(name,
			redsync.WithExpiry(l.cfg.Expiry),
			redsync.WithTries(l.cfg.Tries),
		)
		if err := mutex.LockContext(ctx); err != nil {
			release()
			return nil, fmt.Errorf("acquire %s: %w", name, err)
		}
		held = append(held, mutex)
	}
	return release, nil
}

func lockNames(prefix string, keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	names := make([]string, 0, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		names = append(names, prefix+key)
	}
	sort.Strings(names)
	return names
}
