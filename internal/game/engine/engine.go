package engine

import (
	"context"
	"time"

	"ChainHoldem/internal/game/dealer"
	"ChainHoldem/internal/game/hand"
	"ChainHoldem/internal/game/table"
	"ChainHoldem/internal/utils"
	"ChainHoldem/internal/websocket"
)

// ---------------------
//   外部协作方（由 manager 注入）
// ---------------------

// Store 持久层子集：写失败只记日志，不回滚内存状态（开局保存除外，见 manager）
type Store interface {
	UpdateStatus(ctx context.Context, gameID string, status table.Status) error
	UpdatePot(ctx context.Context, gameID string, pot int64) error
	Delete(ctx context.Context, gameID string) error
	SaveChannel(ctx context.Context, gameID, address, channelID string) error
}

// Ledger 结算服务：异步、可重试、独立于游戏逻辑失败
type Ledger interface {
	Payout(ctx context.Context, winner string, amount int64)
	Refund(ctx context.Context, player string, amount int64)
}

// Scores 胜场累计（排行榜）
type Scores interface {
	AddWin(ctx context.Context, address string, amount int64)
}

type Config struct {
	MinBet      int64
	TurnSeconds int
	DealPause   time.Duration
}

// ---------------------
//   事件循环命令：move/tick/断线/重连/退款
//   全部串行经过一个 channel，保证单会话互斥
// ---------------------

type cmdKind int

const (
	cmdMove cmdKind = iota
	cmdTick
	cmdDisconnect
	cmdReconnect
	cmdRefund
)

type command struct {
	kind      cmdKind
	addr      string
	channelID string
	action    string
	amount    int64
	gen       int
}

// ---------------------
//       ENGINE
// ---------------------

type Engine struct {
	Session *table.Session
	Dealer  *dealer.Dealer
	Hub     websocket.HubInterface
	Store   Store
	Ledger  Ledger
	Scores  Scores
	Cfg     Config

	// 终局回调：manager 借此从注册表摘除会话
	OnFinished func(gameID string)

	cmds      chan command
	done      chan struct{} // 终局后关闭，loop 不再消费命令
	timer     *turnTimer
	timerGen  int
	tickEvery time.Duration

	timerStarts  int
	timerCancels int
}

func NewEngine(s *table.Session, hub websocket.HubInterface, store Store, ledger Ledger, scores Scores, cfg Config) *Engine {
	return &Engine{
		Session:   s,
		Dealer:    dealer.NewDealer(time.Now().UnixNano()),
		Hub:       hub,
		Store:     store,
		Ledger:    ledger,
		Scores:    scores,
		Cfg:       cfg,
		cmds:      make(chan command, 32), // 防止死锁
		done:      make(chan struct{}),
		tickEvery: time.Second,
	}
}

// Start 发底牌并进入事件循环。调用方已确认两个玩家的连接都在线。
func (e *Engine) Start() {
	s := e.Session

	holeMap := e.Dealer.DealHoleCards(s.Addresses())
	for addr, cards := range holeMap {
		s.HoleCards[addr] = cards
	}

	s.Phase = table.PhasePreFlop
	s.Status = table.StatusPlaying
	s.TurnHolder = s.Players[0].ChannelID

	if err := e.Store.UpdateStatus(context.Background(), s.ID, table.StatusPlaying); err != nil {
		utils.Error.Printf("UpdateStatus(%s) failed: %v", s.ID, err)
	}

	// 私牌单发，不进公共快照
	for addr, cards := range holeMap {
		e.Hub.SendToPlayer(addr, websocket.OutgoingMessage{
			Event: websocket.EventDealHole,
			Data: map[string]any{
				"gameId": s.ID,
				"cards":  cards,
			},
		})
	}

	e.startTimer()
	e.broadcastState()

	go e.loop()
}

// ---------------------
//   对外入口（全部只往队列里投递）
// ---------------------

func (e *Engine) SubmitMove(addr, channelID, action string, amount int64) {
	e.enqueue(command{kind: cmdMove, addr: addr, channelID: channelID, action: action, amount: amount})
}

func (e *Engine) NotifyDisconnect(channelID string) {
	e.enqueue(command{kind: cmdDisconnect, channelID: channelID})
}

func (e *Engine) Rebind(addr, channelID string) {
	e.enqueue(command{kind: cmdReconnect, addr: addr, channelID: channelID})
}

func (e *Engine) RequestRefund() {
	e.enqueue(command{kind: cmdRefund})
}

func (e *Engine) enqueue(cmd command) {
	select {
	case e.cmds <- cmd:
		return
	default:
	}
	// 发送方绝不阻塞；终局后无人消费，静默丢弃即可
	select {
	case <-e.done:
		return
	default:
	}
	// 会话还在进行中却塞满了队列：不能让玩家的操作无声蒸发
	utils.Error.Printf("game %s: command queue full, dropped %v", e.Session.ID, cmd.kind)
	if cmd.kind == cmdMove {
		e.sendError(cmd.addr, "server busy, please resend your move")
	}
}

// ---------------------
//   事件循环：单会话所有状态变更的唯一入口
// ---------------------

func (e *Engine) loop() {
	for cmd := range e.cmds {
		switch cmd.kind {
		case cmdMove:
			e.handleMove(cmd)
		case cmdTick:
			e.handleTick(cmd.gen)
		case cmdDisconnect:
			e.handleDisconnect(cmd.channelID)
		case cmdReconnect:
			e.handleReconnect(cmd.addr, cmd.channelID)
		case cmdRefund:
			e.handleRefund()
		}
		if e.Session.Status == table.StatusFinished {
			return
		}
	}
}

// ---------------------
//   动作处理
// ---------------------

func (e *Engine) handleMove(cmd command) {
	s := e.Session
	seat := s.PlayerByAddress(cmd.addr)
	if seat < 0 {
		e.sendError(cmd.addr, "you are not seated at this table")
		return
	}
	if s.Players[seat].ChannelID != s.TurnHolder || cmd.channelID != s.TurnHolder {
		// 非行动方：拒绝，桌面状态原样重发
		e.sendError(cmd.addr, ErrNotYourTurn.Error())
		e.broadcastState()
		return
	}

	if err := e.validateMove(seat, cmd.action, cmd.amount); err != nil {
		e.sendError(cmd.addr, err.Error())
		e.broadcastState()
		return
	}

	// 合法动作先取消计时器，再改状态
	e.cancelTimer()
	out := e.applyMove(seat, cmd.action, cmd.amount)

	if out.folded {
		e.finishWithWinner(table.Opponent(seat), "opponent folded")
		return
	}

	if out.potDelta > 0 {
		if err := e.Store.UpdatePot(context.Background(), s.ID, s.Pot); err != nil {
			utils.Error.Printf("UpdatePot(%s) failed: %v", s.ID, err)
		}
	}

	if out.roundClosed {
		e.advancePhase(seat)
		return
	}

	// 轮到对手行动
	s.TurnHolder = s.Players[table.Opponent(seat)].ChannelID
	e.startTimer()
	e.broadcastState()
}

// ---------------------
//   计时器 tick / 超时
// ---------------------

func (e *Engine) handleTick(gen int) {
	if gen != e.timerGen || e.timer == nil {
		return // 已取消计时器的残留 tick
	}
	s := e.Session

	acting := s.ActingIndex()
	if acting < 0 {
		return
	}

	// 行动方连接已不在：按断线认输处理
	if !e.attached(acting) {
		e.handleDisconnect(s.Players[acting].ChannelID)
		return
	}

	s.TimeRemaining--
	if s.TimeRemaining <= 0 {
		// 超时自动弃牌，效果与主动 fold 一致
		e.cancelTimer()
		utils.Info.Printf("game %s: %s timed out, auto-fold", s.ID, s.Players[acting].Address)
		e.finishWithWinner(table.Opponent(acting), "opponent timed out")
		return
	}
	e.broadcastState()
}

// attached 座位上的玩家当前连接是否仍然挂在 Hub 上
func (e *Engine) attached(seat int) bool {
	p := e.Session.Players[seat]
	c, ok := e.Hub.ClientByAddress(p.Address)
	return ok && c.ID == p.ChannelID
}

// ---------------------
//   换街
// ---------------------

func (e *Engine) advancePhase(closedBy int) {
	s := e.Session

	s.CurrentBet = 0
	for addr := range s.Contributions {
		s.Contributions[addr] = 0
	}
	s.RoundClosed = false
	// 新一条街由没有收口的那名玩家先行动
	s.TurnHolder = s.Players[table.Opponent(closedBy)].ChannelID

	var deal int
	switch s.Phase {
	case table.PhasePreFlop:
		s.Phase = table.PhaseFlop
		deal = 3
	case table.PhaseFlop:
		s.Phase = table.PhaseTurn
		deal = 1
	case table.PhaseTurn:
		s.Phase = table.PhaseRiver
		deal = 1
	case table.PhaseRiver:
		e.showdown()
		return
	}

	// 换街先播报，停顿一拍再发牌：纯演出节奏，期间不跑任何逻辑
	e.broadcastState()
	if e.Cfg.DealPause > 0 {
		time.Sleep(e.Cfg.DealPause)
	}
	s.Community = append(s.Community, e.Dealer.DealCommunity(deal)...)

	e.startTimer()
	e.broadcastState()
}

// ---------------------
//   摊牌与终局
// ---------------------

func (e *Engine) showdown() {
	s := e.Session
	s.Phase = table.PhaseShowdown

	p0, p1 := s.Players[0], s.Players[1]
	r0 := hand.Evaluate7(append(append([]table.Card{}, s.HoleCards[p0.Address]...), s.Community...))
	r1 := hand.Evaluate7(append(append([]table.Card{}, s.HoleCards[p1.Address]...), s.Community...))

	switch cmp := hand.Compare(r0, r1); {
	case cmp > 0:
		e.finishWithWinner(0, hand.CategoryName(r0.Category))
	case cmp < 0:
		e.finishWithWinner(1, hand.CategoryName(r1.Category))
	default:
		// 真平局：对半分池
		half := s.Pot / 2
		e.settle(p0.Address, s.Pot-half)
		e.settle(p1.Address, half)
		utils.Info.Printf("game %s: split pot %d (%s)", s.ID, s.Pot, hand.CategoryName(r0.Category))
		e.finish()
	}
}

// finishWithWinner 整池判给一名玩家（摊牌胜出/对手弃牌/超时/断线共用）
func (e *Engine) finishWithWinner(seat int, reason string) {
	s := e.Session
	winner := s.Players[seat].Address
	utils.Info.Printf("game %s: %s wins pot %d (%s)", s.ID, winner, s.Pot, reason)
	e.settle(winner, s.Pot)
	e.finish()
}

// settle 给单个地址发奖：链上结算 + 排行榜 + 中奖通知
func (e *Engine) settle(addr string, amount int64) {
	e.Ledger.Payout(context.Background(), addr, amount)
	e.Scores.AddWin(context.Background(), addr, amount)
	e.Hub.SendToPlayer(addr, websocket.OutgoingMessage{
		Event: websocket.EventDistribute,
		Data: map[string]any{
			"address":  addr,
			"amount":   amount,
			"isRefund": false,
		},
	})
}

// finish 收尾：标记终局、撤计时器、删持久记录、通知注册表
func (e *Engine) finish() {
	s := e.Session
	e.cancelTimer()
	s.Status = table.StatusFinished
	close(e.done)
	if err := e.Store.Delete(context.Background(), s.ID); err != nil {
		utils.Error.Printf("Delete(%s) failed: %v", s.ID, err)
	}
	e.broadcastState()
	if e.OnFinished != nil {
		e.OnFinished(s.ID)
	}
}

// ---------------------
//   断线 / 重连 / 退款
// ---------------------

func (e *Engine) handleDisconnect(channelID string) {
	s := e.Session
	seat := s.PlayerByChannel(channelID)
	if seat < 0 {
		return
	}
	opp := table.Opponent(seat)
	if e.attached(opp) {
		// 对手还在：断线方认输，整池归对手
		e.finishWithWinner(opp, "opponent disconnected")
		return
	}
	// 双方都不在：退回各自本金
	e.handleRefund()
}

func (e *Engine) handleReconnect(addr, channelID string) {
	s := e.Session
	seat := s.PlayerByAddress(addr)
	if seat < 0 {
		e.sendError(addr, "player not found in this game")
		return
	}
	old := s.Players[seat].ChannelID
	s.Players[seat].ChannelID = channelID
	if s.TurnHolder == old {
		s.TurnHolder = channelID
	}
	if err := e.Store.SaveChannel(context.Background(), s.ID, addr, channelID); err != nil {
		utils.Error.Printf("SaveChannel(%s) failed: %v", s.ID, err)
	}
	e.broadcastState()
}

// handleRefund 单会话退款：各退本金，幂等（终局后重复调用为 no-op，
// 因为终局会话的 loop 已退出，命令不会再被消费）
func (e *Engine) handleRefund() {
	s := e.Session
	for _, p := range s.Players {
		e.Ledger.Refund(context.Background(), p.Address, p.Bet)
		if c, ok := e.Hub.ClientByAddress(p.Address); ok && c.ID == p.ChannelID {
			e.Hub.SendToPlayer(p.Address, websocket.OutgoingMessage{
				Event: websocket.EventRefund,
				Data: map[string]any{
					"message":  "game cancelled, your bet has been returned",
					"amount":   p.Bet,
					"isRefund": true,
				},
			})
		}
	}
	utils.Info.Printf("game %s: refunded both players", s.ID)
	e.finish()
}

// ---------------------
//   广播
// ---------------------

// broadcastState 状态先变、快照后发；每人一份带自己底牌的视图
func (e *Engine) broadcastState() {
	for _, p := range e.Session.Players {
		e.Hub.SendToPlayer(p.Address, websocket.OutgoingMessage{
			Event: websocket.EventGameState,
			Data:  e.Session.SnapshotFor(p.Address),
		})
	}
}

func (e *Engine) sendError(addr, msg string) {
	e.Hub.SendToPlayer(addr, websocket.OutgoingMessage{
		Event: websocket.EventError,
		Data:  map[string]any{"message": msg},
	})
}
