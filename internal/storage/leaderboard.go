package storage

import (
	"context"

	"ChainHoldem/internal/utils"

	"github.com/redis/go-redis/v9"
)

const leaderboardKey = "leaderboard:wins"

// Leaderboard 各地址累计赢得的筹码，Redis 有序集合
type Leaderboard struct {
	rdb *redis.Client
}

func NewLeaderboard(rdb *redis.Client) *Leaderboard {
	return &Leaderboard{rdb: rdb}
}

// AddWin 给地址累加一次赢得的底池
func (l *Leaderboard) AddWin(ctx context.Context, address string, amount int64) {
	if err := l.rdb.ZIncrBy(ctx, leaderboardKey, float64(amount), address).Err(); err != nil {
		utils.Error.Printf("leaderboard AddWin(%s) failed: %v", address, err)
	}
}

type LeaderboardEntry struct {
	Address string `json:"address"`
	Total   int64  `json:"total"`
}

// Top 返回累计赢额前 n 名
func (l *Leaderboard) Top(ctx context.Context, n int64) ([]LeaderboardEntry, error) {
	zs, err := l.rdb.ZRevRangeWithScores(ctx, leaderboardKey, 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]LeaderboardEntry, 0, len(zs))
	for _, z := range zs {
		addr, _ := z.Member.(string)
		out = append(out, LeaderboardEntry{Address: addr, Total: int64(z.Score)})
	}
	return out, nil
}
