package lock

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var Module = fx.Module("lock", fx.Provide(NewRedisLocker))

// ErrNotAcquired is returned when another holder owns the key.
var ErrNotAcquired = errors.New("lock: not acquired")

type Locker interface {
	// Acquire takes key for ttl and returns a release func. It never blocks
	// waiting for the current holder.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

// only the owner may delete the key
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisLocker struct {
	rdb  *redis.Client
	node *snowflake.Node
}

func NewRedisLocker(rdb *redis.Client, node *snowflake.Node) Locker {
	return &redisLocker{rdb: rdb, node: node}
}

func (l *redisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	owner := l.node.Generate().String()

	ok, err := l.rdb.SetNX(ctx, key, owner, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotAcquired
	}

	return func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.rdb, []string{key}, owner).Err()
	}, nil
}
