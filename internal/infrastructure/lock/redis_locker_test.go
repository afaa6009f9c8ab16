package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockNames(t *testing.T) {
	got := lockNames("p:", []string{"anon:b", "account:a", "", "anon:b"})
	assert.Equal(t, []string{"p:account:a", "p:anon:b"}, got)
}

func TestLock_UnreachableRedisFails(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond})
	t.Cleanup(func() { _ = client.Close() })

	locker := NewRedisLocker(client, Config{Prefix: "test:", Expiry: time.Second, Tries: 1}, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	unlock, err := locker.Lock(ctx, "anon:x")
	require.Error(t, err)
	assert.Nil(t, unlock)
}

func TestLock_SharedKeyIsExclusive(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker := NewRedisLocker(client, Config{Prefix: "test:", Expiry: 5 * time.Second, Tries: 1}, zerolog.Nop())
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "anon:c1", "account:u1")
	require.NoError(t, err)
	assert.True(t, server.Exists("test:anon:c1"))

	_, err = locker.Lock(ctx, "account:u1")
	require.Error(t, err, "a held identity cannot be locked twice")
	assert.True(t, server.Exists("test:anon:c1"), "a failed attempt keeps the holder's locks")

	other, err := locker.Lock(ctx, "anon:c2")
	require.NoError(t, err, "unrelated identities do not contend")
	other()

	unlock()
	assert.False(t, server.Exists("test:anon:c1"))
	again, err := locker.Lock(ctx, "account:u1")
	require.NoError(t, err)
	again()
}
