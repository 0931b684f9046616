package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"ChainHoldem/internal/game/table"
	"ChainHoldem/internal/websocket"
)

// mockHub 实现 HubInterface，记录消息
type mockHub struct {
	mu           sync.Mutex
	sentToPlayer map[string][]websocket.OutgoingMessage
	clients      map[string]*websocket.Client
	broadcasts   []websocket.OutgoingMessage
}

func newMockHub() *mockHub {
	return &mockHub{
		sentToPlayer: make(map[string][]websocket.OutgoingMessage),
		clients:      make(map[string]*websocket.Client),
	}
}

func (h *mockHub) BroadcastToPlayers(addrs []string, msg websocket.OutgoingMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcasts = append(h.broadcasts, msg)
}

func (h *mockHub) BroadcastAll(msg websocket.OutgoingMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcasts = append(h.broadcasts, msg)
}

func (h *mockHub) SendToPlayer(addr string, msg websocket.OutgoingMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sentToPlayer[addr] = append(h.sentToPlayer[addr], msg)
}

func (h *mockHub) ClientByAddress(addr string) (*websocket.Client, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[addr]
	return c, ok
}

func (h *mockHub) Close() {}

func (h *mockHub) attach(addr, channelID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[addr] = &websocket.Client{ID: channelID, Address: addr}
}

func (h *mockHub) detach(addr string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, addr)
}

func (h *mockHub) eventsFor(addr, event string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, m := range h.sentToPlayer[addr] {
		if m.Event == event {
			n++
		}
	}
	return n
}

// mockStore 记录持久层调用
type mockStore struct {
	mu       sync.Mutex
	potWrite int64
	deleted  []string
	statuses []table.Status
}

func (s *mockStore) UpdateStatus(ctx context.Context, id string, st table.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, st)
	return nil
}
func (s *mockStore) UpdatePot(ctx context.Context, id string, pot int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.potWrite = pot
	return nil
}
func (s *mockStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, id)
	return nil
}
func (s *mockStore) SaveChannel(ctx context.Context, id, addr, ch string) error { return nil }

type mockLedger struct {
	mu      sync.Mutex
	payouts map[string]int64
	refunds map[string]int64
}

func newMockLedger() *mockLedger {
	return &mockLedger{payouts: make(map[string]int64), refunds: make(map[string]int64)}
}
func (l *mockLedger) Payout(ctx context.Context, addr string, amount int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.payouts[addr] += amount
}
func (l *mockLedger) Refund(ctx context.Context, addr string, amount int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refunds[addr] += amount
}

type mockScores struct {
	mu   sync.Mutex
	wins map[string]int64
}

func newMockScores() *mockScores { return &mockScores{wins: make(map[string]int64)} }
func (s *mockScores) AddWin(ctx context.Context, addr string, amount int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wins[addr] += amount
}

const (
	addrX = "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	addrY = "0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB"
	chX   = "ch-x"
	chY   = "ch-y"
)

func newTestEngine(t *testing.T, bet int64) (*Engine, *mockHub, *mockStore, *mockLedger, *mockScores) {
	t.Helper()
	h := newMockHub()
	h.attach(addrX, chX)
	h.attach(addrY, chY)
	st := &mockStore{}
	lg := newMockLedger()
	sc := newMockScores()
	s := table.NewSession("game-1",
		table.Player{ChannelID: chX, Address: addrX, Bet: bet},
		table.Player{ChannelID: chY, Address: addrY, Bet: bet},
	)
	e := NewEngine(s, h, st, lg, sc, Config{MinBet: 100, TurnSeconds: 30})
	e.Session.Status = table.StatusPlaying
	e.Session.HoleCards[addrX] = []table.Card{{Rank: 2, Suit: 0}, {Rank: 3, Suit: 1}}
	e.Session.HoleCards[addrY] = []table.Card{{Rank: 4, Suit: 2}, {Rank: 5, Suit: 3}}
	t.Cleanup(e.cancelTimer)
	return e, h, st, lg, sc
}

// ✅ 场景 A：双方各押 1000，底池 2000；X 无注过牌 → 本轮立即收口，发 3 张翻牌
func TestCheckClosesRoundAndDealsFlop(t *testing.T) {
	e, _, _, _, _ := newTestEngine(t, 1000)

	if e.Session.Pot != 2000 {
		t.Fatalf("expected starting pot 2000, got %d", e.Session.Pot)
	}

	e.handleMove(command{kind: cmdMove, addr: addrX, channelID: chX, action: ActionCheck})

	if e.Session.Phase != table.PhaseFlop {
		t.Fatalf("expected flop, got %s", e.Session.Phase)
	}
	if len(e.Session.Community) != 3 {
		t.Fatalf("expected 3 community cards, got %d", len(e.Session.Community))
	}
	if e.Session.CurrentBet != 0 {
		t.Fatalf("currentBet must reset on street change, got %d", e.Session.CurrentBet)
	}
	// 收口方是 X，新街由 Y 先行动
	if e.Session.TurnHolder != chY {
		t.Fatalf("new street should open with the player who did not close the round")
	}
}

// ✅ 场景 B：翻牌圈 X bet 500，Y call → 底池 +1000，发转牌
func TestBetCallAdvancesStreet(t *testing.T) {
	e, _, st, _, _ := newTestEngine(t, 1000)

	// 过完翻牌前
	e.handleMove(command{kind: cmdMove, addr: addrX, channelID: chX, action: ActionCheck})
	potBefore := e.Session.Pot

	// 翻牌圈 Y 先手
	e.handleMove(command{kind: cmdMove, addr: addrY, channelID: chY, action: ActionBet, amount: 500})
	if e.Session.CurrentBet != 500 {
		t.Fatalf("expected currentBet 500, got %d", e.Session.CurrentBet)
	}
	if e.Session.TurnHolder != chX {
		t.Fatalf("turn must pass to the opponent after a bet")
	}

	e.handleMove(command{kind: cmdMove, addr: addrX, channelID: chX, action: ActionCall})

	if e.Session.Pot != potBefore+1000 {
		t.Fatalf("expected pot %d, got %d", potBefore+1000, e.Session.Pot)
	}
	if e.Session.Phase != table.PhaseTurn || len(e.Session.Community) != 4 {
		t.Fatalf("expected turn street with 4 cards, got %s/%d", e.Session.Phase, len(e.Session.Community))
	}
	st.mu.Lock()
	pw := st.potWrite
	st.mu.Unlock()
	if pw != e.Session.Pot {
		t.Fatalf("pot write should follow the in-memory pot, got %d vs %d", pw, e.Session.Pot)
	}
}

// ✅ 欠注时过牌被拒：状态不变，错误只发给行动方
func TestCheckWhileOwingRejected(t *testing.T) {
	e, h, _, _, _ := newTestEngine(t, 1000)

	e.handleMove(command{kind: cmdMove, addr: addrX, channelID: chX, action: ActionBet, amount: 300})
	potBefore := e.Session.Pot

	e.handleMove(command{kind: cmdMove, addr: addrY, channelID: chY, action: ActionCheck})

	if e.Session.Pot != potBefore {
		t.Fatalf("illegal move must not change the pot")
	}
	if e.Session.Phase != table.PhasePreFlop {
		t.Fatalf("illegal move must not advance the street")
	}
	if h.eventsFor(addrY, websocket.EventError) == 0 {
		t.Fatalf("actor should receive an error event")
	}
	if h.eventsFor(addrX, websocket.EventError) != 0 {
		t.Fatalf("opponent should not receive the error")
	}
}

// ✅ 非行动方出手被拒
func TestOutOfTurnRejected(t *testing.T) {
	e, h, _, _, _ := newTestEngine(t, 1000)

	e.handleMove(command{kind: cmdMove, addr: addrY, channelID: chY, action: ActionCheck})

	if e.Session.Phase != table.PhasePreFlop {
		t.Fatalf("out-of-turn move must not mutate state")
	}
	if h.eventsFor(addrY, websocket.EventError) == 0 {
		t.Fatalf("out-of-turn actor should receive an error")
	}
}

// ✅ 低于台桌最低注的 bet 被拒
func TestBetBelowMinimumRejected(t *testing.T) {
	e, h, _, _, _ := newTestEngine(t, 1000)

	e.handleMove(command{kind: cmdMove, addr: addrX, channelID: chX, action: ActionBet, amount: 50})

	if e.Session.CurrentBet != 0 || e.Session.Pot != 2000 {
		t.Fatalf("rejected bet must not mutate state")
	}
	if h.eventsFor(addrX, websocket.EventError) == 0 {
		t.Fatalf("actor should receive an error event")
	}
}

// ✅ 弃牌：对手整池入账，会话终局并删除持久记录
func TestFoldAwardsPotAndFinishes(t *testing.T) {
	e, _, st, lg, sc := newTestEngine(t, 1000)

	e.handleMove(command{kind: cmdMove, addr: addrX, channelID: chX, action: ActionFold})

	if e.Session.Status != table.StatusFinished {
		t.Fatalf("expected finished, got %s", e.Session.Status)
	}
	lg.mu.Lock()
	paid := lg.payouts[addrY]
	lg.mu.Unlock()
	if paid != 2000 {
		t.Fatalf("expected opponent to win pot 2000, got %d", paid)
	}
	sc.mu.Lock()
	wins := sc.wins[addrY]
	sc.mu.Unlock()
	if wins != 2000 {
		t.Fatalf("leaderboard should record the win")
	}
	st.mu.Lock()
	deleted := len(st.deleted)
	st.mu.Unlock()
	if deleted != 1 {
		t.Fatalf("durable record should be deleted on finish")
	}
	if e.LiveTimers() != 0 {
		t.Fatalf("finished session must not hold a live timer")
	}
}

// ✅ 场景 C：倒计时归零 → 行动方被自动弃牌，对手整池
func TestTimerExpiryAutoFolds(t *testing.T) {
	e, _, _, lg, _ := newTestEngine(t, 1000)
	e.Cfg.TurnSeconds = 1

	e.startTimer()
	e.handleTick(e.timerGen)

	if e.Session.Status != table.StatusFinished {
		t.Fatalf("expected finished after timeout, got %s", e.Session.Status)
	}
	lg.mu.Lock()
	paid := lg.payouts[addrY]
	lg.mu.Unlock()
	if paid != 2000 {
		t.Fatalf("expected opponent awarded pot on timeout, got %d", paid)
	}
}

// ✅ tick 发现行动方连接已脱落 → 按断线认输处理
func TestTickDetachedActorForfeits(t *testing.T) {
	e, h, _, lg, _ := newTestEngine(t, 1000)
	e.startTimer()
	h.detach(addrX)

	e.handleTick(e.timerGen)

	if e.Session.Status != table.StatusFinished {
		t.Fatalf("detached actor should forfeit")
	}
	lg.mu.Lock()
	paid := lg.payouts[addrY]
	lg.mu.Unlock()
	if paid != 2000 {
		t.Fatalf("opponent should win the pot, got %d", paid)
	}
}

// ✅ 场景 D：断线判负；双方都断则退款
func TestDisconnectForfeitOrRefund(t *testing.T) {
	e, h, _, lg, _ := newTestEngine(t, 1000)
	h.detach(addrY)
	e.handleDisconnect(chY)

	lg.mu.Lock()
	paid := lg.payouts[addrX]
	lg.mu.Unlock()
	if paid != 2000 {
		t.Fatalf("remaining player should win the pot, got %d", paid)
	}

	// 双断退款
	e2, h2, _, lg2, _ := newTestEngine(t, 700)
	h2.detach(addrX)
	h2.detach(addrY)
	e2.handleDisconnect(chX)

	lg2.mu.Lock()
	defer lg2.mu.Unlock()
	if lg2.refunds[addrX] != 700 || lg2.refunds[addrY] != 700 {
		t.Fatalf("both players should get their bets back, got %v", lg2.refunds)
	}
	if lg2.payouts[addrX] != 0 && lg2.payouts[addrY] != 0 {
		t.Fatalf("refund path must not award the pot")
	}
}

// ✅ 场景 E：摊牌比牌 —— 同花胜两对，排行榜累计
func TestShowdownFlushBeatsTwoPair(t *testing.T) {
	e, _, _, lg, sc := newTestEngine(t, 1000)
	s := e.Session

	// 固定牌面：X 两张红桃凑同花，Y 两对
	s.Community = []table.Card{
		{Rank: 14, Suit: 2}, {Rank: 9, Suit: 2}, {Rank: 4, Suit: 2},
		{Rank: 11, Suit: 0}, {Rank: 6, Suit: 1},
	}
	s.HoleCards[addrX] = []table.Card{{Rank: 13, Suit: 2}, {Rank: 2, Suit: 2}}
	s.HoleCards[addrY] = []table.Card{{Rank: 11, Suit: 3}, {Rank: 6, Suit: 0}}
	s.Phase = table.PhaseRiver

	// 河牌圈双方过牌 → 摊牌
	e.handleMove(command{kind: cmdMove, addr: addrX, channelID: chX, action: ActionCheck})

	if e.Session.Status != table.StatusFinished || e.Session.Phase != table.PhaseShowdown {
		t.Fatalf("expected showdown finish, got %s/%s", e.Session.Status, e.Session.Phase)
	}
	lg.mu.Lock()
	paid := lg.payouts[addrX]
	lg.mu.Unlock()
	if paid != 2000 {
		t.Fatalf("flush should take the whole pot, got %d", paid)
	}
	sc.mu.Lock()
	wins := sc.wins[addrX]
	sc.mu.Unlock()
	if wins != 2000 {
		t.Fatalf("leaderboard total should increase by the pot amount")
	}
}

// ✅ 真平局：公共牌就是最优牌时对半分池
func TestShowdownTieSplitsPot(t *testing.T) {
	e, _, _, lg, _ := newTestEngine(t, 1000)
	s := e.Session

	// 皇家同花顺在公共牌上，双方底牌都用不上
	s.Community = []table.Card{
		{Rank: 14, Suit: 3}, {Rank: 13, Suit: 3}, {Rank: 12, Suit: 3},
		{Rank: 11, Suit: 3}, {Rank: 10, Suit: 3},
	}
	s.HoleCards[addrX] = []table.Card{{Rank: 2, Suit: 0}, {Rank: 3, Suit: 1}}
	s.HoleCards[addrY] = []table.Card{{Rank: 4, Suit: 0}, {Rank: 5, Suit: 1}}
	s.Phase = table.PhaseRiver

	e.handleMove(command{kind: cmdMove, addr: addrX, channelID: chX, action: ActionCheck})

	lg.mu.Lock()
	defer lg.mu.Unlock()
	if lg.payouts[addrX] != 1000 || lg.payouts[addrY] != 1000 {
		t.Fatalf("tie should split the pot exactly in half, got %v", lg.payouts)
	}
}

// ✅ 街序推进：preflop→flop→turn→river→showdown，公共牌 0/3/4/5
func TestPhaseProgression(t *testing.T) {
	e, _, _, _, _ := newTestEngine(t, 1000)

	wantCards := map[table.Phase]int{
		table.PhaseFlop:  3,
		table.PhaseTurn:  4,
		table.PhaseRiver: 5,
	}
	if len(e.Session.Community) != 0 {
		t.Fatalf("preflop should have 0 community cards")
	}

	// 每条街由后手过牌收口
	order := []struct{ addr, ch string }{
		{addrX, chX}, // preflop: X 行动收口
		{addrY, chY}, // flop: Y 先手
		{addrX, chX}, // turn
		{addrY, chY}, // river → showdown
	}
	phases := []table.Phase{table.PhaseFlop, table.PhaseTurn, table.PhaseRiver, table.PhaseShowdown}
	for i, mv := range order {
		e.handleMove(command{kind: cmdMove, addr: mv.addr, channelID: mv.ch, action: ActionCheck})
		if e.Session.Phase != phases[i] {
			t.Fatalf("step %d: expected phase %s, got %s", i, phases[i], e.Session.Phase)
		}
		if n, ok := wantCards[phases[i]]; ok && len(e.Session.Community) != n {
			t.Fatalf("phase %s should have %d community cards, got %d",
				phases[i], n, len(e.Session.Community))
		}
	}
	if e.Session.Status != table.StatusFinished {
		t.Fatalf("showdown should finish the session")
	}
}

// ✅ 计时器不变量：任何时刻至多一个活动计时器
func TestSingleLiveTimerInvariant(t *testing.T) {
	e, _, _, _, _ := newTestEngine(t, 1000)

	for i := 0; i < 5; i++ {
		e.startTimer()
		if e.LiveTimers() != 1 {
			t.Fatalf("expected exactly 1 live timer after start, got %d", e.LiveTimers())
		}
	}
	e.cancelTimer()
	if e.LiveTimers() != 0 {
		t.Fatalf("expected 0 live timers after cancel, got %d", e.LiveTimers())
	}
	// 重复取消不下穿零
	e.cancelTimer()
	if e.LiveTimers() != 0 {
		t.Fatalf("double cancel must be a no-op")
	}
}

// ✅ 重连换绑：turnHolder 跟着旧 channel 一起更新
func TestReconnectRebindsChannel(t *testing.T) {
	e, h, _, _, _ := newTestEngine(t, 1000)

	h.attach(addrX, "ch-x2")
	e.handleReconnect(addrX, "ch-x2")

	if e.Session.Players[0].ChannelID != "ch-x2" {
		t.Fatalf("seat channel should be rebound")
	}
	if e.Session.TurnHolder != "ch-x2" {
		t.Fatalf("turnHolder referencing the stale channel must be rebound too")
	}
	if h.eventsFor(addrX, websocket.EventGameState) == 0 {
		t.Fatalf("reconnect should re-broadcast the snapshot")
	}
}

// ✅ 事件循环串行化：并发提交的动作不会撕裂状态
func TestLoopSerializesMoves(t *testing.T) {
	e, _, _, lg, _ := newTestEngine(t, 1000)
	go e.loop()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.SubmitMove(addrX, chX, ActionFold, 0)
			e.SubmitMove(addrY, chY, ActionFold, 0)
		}()
	}
	wg.Wait()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		lg.mu.Lock()
		total := lg.payouts[addrX] + lg.payouts[addrY]
		lg.mu.Unlock()
		if total == 2000 {
			return // 整池恰好发了一次
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected exactly one pot award, got %v", lg.payouts)
}

// ✅ 队列塞满时：进行中的会话要把拒收告知玩家，终局后静默丢弃
func TestEnqueueOverflowNotifiesLivePlayer(t *testing.T) {
	e, h, _, _, _ := newTestEngine(t, 1000)

	// loop 未启动，填满缓冲模拟积压
	for i := 0; i < cap(e.cmds); i++ {
		e.cmds <- command{kind: cmdTick}
	}

	e.SubmitMove(addrX, chX, ActionCheck, 0)
	if h.eventsFor(addrX, websocket.EventError) != 1 {
		t.Fatalf("overflowed move must bounce back with an error notice")
	}

	// 终局后同样的溢出不再打扰玩家
	close(e.done)
	e.SubmitMove(addrX, chX, ActionCheck, 0)
	if h.eventsFor(addrX, websocket.EventError) != 1 {
		t.Fatalf("post-finish drops should stay silent")
	}
}
