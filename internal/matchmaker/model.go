package matchmaker

import (
	"errors"
	"time"
)

var (
	ErrInvalidBet   = errors.New("invalid_bet")
	ErrInvalidInput = errors.New("invalid_input")
	ErrNotWaiting   = errors.New("not_in_waiting_list")
)

// Entry 等待池条目，按钱包地址唯一。
// 同地址重复加入是原地覆盖（幂等重入），不会产生重复排队。
type Entry struct {
	Address   string    `json:"address"`
	ChannelID string    `json:"channelId"`
	Bet       int64     `json:"betAmount"`
	JoinedAt  time.Time `json:"joinedAt"`
}

// PoolView 广播给所有客户端的等待池快照
type PoolView struct {
	Address   string `json:"address"`
	BetAmount int64  `json:"betAmount"`
}
