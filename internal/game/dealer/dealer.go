package dealer

import (
	"math/rand"

	"ChainHoldem/internal/game/table"
)

// Dealer 只负责发牌（无规则判断）。
// 每次 Draw 独立均匀抽取，不建 52 张牌堆，允许重复出牌，
// 与本仓库其它小游戏共用同一套"庄家占优"的随机哲学。
type Dealer struct {
	rnd *rand.Rand
}

func NewDealer(seed int64) *Dealer {
	return &Dealer{
		rnd: rand.New(rand.NewSource(seed)),
	}
}

// Draw 均匀抽取一张牌 (rank 2..14, suit 0..3)
func (d *Dealer) Draw() table.Card {
	return table.Card{
		Suit: d.rnd.Intn(4),
		Rank: 2 + d.rnd.Intn(13),
	}
}

// DealHoleCards 给每个玩家发 2 张底牌，返回 map address -> []Card
func (d *Dealer) DealHoleCards(players []string) map[string][]table.Card {
	out := make(map[string][]table.Card, len(players))
	// 轮流发牌：先每人一张，再每人第二张
	for i := 0; i < 2; i++ {
		for _, addr := range players {
			out[addr] = append(out[addr], d.Draw())
		}
	}
	return out
}

// DealCommunity 发公共牌 n 张（burn 忽略）
func (d *Dealer) DealCommunity(n int) []table.Card {
	out := make([]table.Card, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, d.Draw())
	}
	return out
}
