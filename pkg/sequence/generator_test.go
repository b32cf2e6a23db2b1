package sequence

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestNextCommerceOrderIncrementsPerDay(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	day := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	g := &RedisGenerator{rdb: rdb, now: func() time.Time { return day }}

	first, err := g.NextCommerceOrder(context.Background(), "42")
	require.NoError(t, err)
	second, err := g.NextCommerceOrder(context.Background(), "42")
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(first, "FEE-260105-001"), first)
	require.True(t, strings.HasPrefix(second, "FEE-260105-002"), second)
	require.True(t, mr.Exists("seq:FEE:42:260105"))
	require.Greater(t, mr.TTL("seq:FEE:42:260105"), time.Duration(0))
}
