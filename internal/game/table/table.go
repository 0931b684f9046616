package table

import (
	"fmt"
	"time"
)

// 阶段（street）：只会单向推进
type Phase string

const (
	PhasePreFlop  Phase = "preflop"
	PhaseFlop     Phase = "flop"
	PhaseTurn     Phase = "turn"
	PhaseRiver    Phase = "river"
	PhaseShowdown Phase = "showdown"
)

// 会话状态：waiting → playing → finished（终态）
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// Card 定义 (suit 0-3, rank 2-14，A=14)
type Card struct {
	Suit int `json:"suit"`
	Rank int `json:"rank"`
}

func (c Card) String() string {
	suits := []string{"♣", "♦", "♥", "♠"}
	ranks := map[int]string{
		11: "J",
		12: "Q",
		13: "K",
		14: "A",
	}
	rankStr, ok := ranks[c.Rank]
	if !ok {
		rankStr = fmt.Sprintf("%d", c.Rank)
	}
	suitStr := "?"
	if c.Suit >= 0 && c.Suit < len(suits) {
		suitStr = suits[c.Suit]
	}
	return rankStr + suitStr
}

// Player 一个座位：地址 + 当前连接 + 初始下注
type Player struct {
	ChannelID string `json:"channelId"`
	Address   string `json:"address"`
	Bet       int64  `json:"bet"`
}

// Session 一局双人对局的全部运行时状态。
// 所有字段只允许在对应 Engine 的事件循环里修改。
type Session struct {
	ID        string
	Players   [2]Player // 座次在建桌时固定，players[0] 先手
	CreatedAt time.Time

	Community []Card
	HoleCards map[string][]Card // address -> 2 张底牌，发牌后不再变

	Phase  Phase
	Status Status

	Pot           int64
	CurrentBet    int64            // 本轮台面注额，换街归零
	Contributions map[string]int64 // address -> 本轮已投入，换街归零

	TurnHolder    string // 应行动玩家的 channelId
	RoundClosed   bool
	TimeRemaining int // 当前回合剩余秒数（展示权威值）
}

func NewSession(id string, p0, p1 Player) *Session {
	return &Session{
		ID:        id,
		Players:   [2]Player{p0, p1},
		CreatedAt: time.Now(),
		Community: make([]Card, 0, 5),
		HoleCards: make(map[string][]Card, 2),
		Phase:     PhasePreFlop,
		Status:    StatusWaiting,
		Pot:       p0.Bet + p1.Bet,
		Contributions: map[string]int64{
			p0.Address: 0,
			p1.Address: 0,
		},
		TurnHolder: p0.ChannelID,
	}
}

// Addresses 返回两个座位的地址（广播用）
func (s *Session) Addresses() []string {
	return []string{s.Players[0].Address, s.Players[1].Address}
}

// PlayerByAddress 返回座位下标，未入座返回 -1
func (s *Session) PlayerByAddress(addr string) int {
	for i := range s.Players {
		if s.Players[i].Address == addr {
			return i
		}
	}
	return -1
}

// PlayerByChannel 按连接 ID 找座位，未入座返回 -1
func (s *Session) PlayerByChannel(channelID string) int {
	for i := range s.Players {
		if s.Players[i].ChannelID == channelID {
			return i
		}
	}
	return -1
}

// Opponent 对手座位下标
func Opponent(i int) int { return 1 - i }

// ActingIndex 当前应行动玩家的座位下标
func (s *Session) ActingIndex() int {
	return s.PlayerByChannel(s.TurnHolder)
}

// -----------------------------------------------------
//  快照：对局图只走一遍，产出纯树形结构，
//  重复引用一律省略，不会出现环
// -----------------------------------------------------

type PlayerView struct {
	ChannelID string `json:"channelId"`
	Address   string `json:"address"`
	Bet       int64  `json:"bet"`
}

type Snapshot struct {
	GameID        string           `json:"gameId"`
	Players       []PlayerView     `json:"players"`
	Community     []Card           `json:"community"`
	Phase         Phase            `json:"phase"`
	Status        Status           `json:"status"`
	Pot           int64            `json:"pot"`
	CurrentBet    int64            `json:"currentBet"`
	Contributions map[string]int64 `json:"contributions"`
	TurnHolder    string           `json:"turnHolder"`
	TimeRemaining int              `json:"timeRemaining"`
	YourHole      []Card           `json:"yourHole,omitempty"` // 仅对观察者自己填充
}

// SnapshotFor 生成发给 viewer 的会话快照；对手底牌不出现在树里
func (s *Session) SnapshotFor(viewer string) Snapshot {
	players := make([]PlayerView, 0, 2)
	for _, p := range s.Players {
		players = append(players, PlayerView{
			ChannelID: p.ChannelID,
			Address:   p.Address,
			Bet:       p.Bet,
		})
	}
	contrib := make(map[string]int64, len(s.Contributions))
	for addr, v := range s.Contributions {
		contrib[addr] = v
	}
	community := make([]Card, len(s.Community))
	copy(community, s.Community)

	snap := Snapshot{
		GameID:        s.ID,
		Players:       players,
		Community:     community,
		Phase:         s.Phase,
		Status:        s.Status,
		Pot:           s.Pot,
		CurrentBet:    s.CurrentBet,
		Contributions: contrib,
		TurnHolder:    s.TurnHolder,
		TimeRemaining: s.TimeRemaining,
	}
	if hole, ok := s.HoleCards[viewer]; ok {
		snap.YourHole = append([]Card(nil), hole...)
	}
	return snap
}
