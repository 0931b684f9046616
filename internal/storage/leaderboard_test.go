package storage

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newLeaderboard(t *testing.T) *Leaderboard {
	t.Helper()
	mr := miniredis.RunT(t)
	return NewLeaderboard(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
}

// ✅ 赢额累计 + 排序
func TestLeaderboardAccumulates(t *testing.T) {
	lb := newLeaderboard(t)
	ctx := context.Background()

	lb.AddWin(ctx, "0xAAA", 2000)
	lb.AddWin(ctx, "0xBBB", 500)
	lb.AddWin(ctx, "0xAAA", 1000)

	top, err := lb.Top(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	require.Equal(t, "0xAAA", top[0].Address)
	require.EqualValues(t, 3000, top[0].Total)
	require.Equal(t, "0xBBB", top[1].Address)
	require.EqualValues(t, 500, top[1].Total)
}

func TestLeaderboardTopLimit(t *testing.T) {
	lb := newLeaderboard(t)
	ctx := context.Background()

	for i, addr := range []string{"0x1", "0x2", "0x3"} {
		lb.AddWin(ctx, addr, int64(100*(i+1)))
	}
	top, err := lb.Top(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	require.Equal(t, "0x3", top[0].Address)
}
