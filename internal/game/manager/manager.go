package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"ChainHoldem/internal/game/engine"
	"ChainHoldem/internal/game/table"
	"ChainHoldem/internal/matchmaker"
	"ChainHoldem/internal/storage"
	"ChainHoldem/internal/utils"
	"ChainHoldem/internal/websocket"

	"github.com/google/uuid"
)

// Store 在 engine.Store 之上补齐建桌与恢复所需的操作
type Store interface {
	engine.Store
	Save(ctx context.Context, sess *table.Session) error
	FindActive(ctx context.Context) ([]storage.SessionRecord, error)
}

// Pool 等待池入口（由 matchmaker.Service 实现）
type Pool interface {
	Join(ctx context.Context, address, channelID string, bet int64) error
	Leave(ctx context.Context, address, channelID string) error
}

// GameManager 进程内唯一的会话注册表。
// 会话注册/摘除/查找走这里；单会话内部状态归各自 Engine 的事件循环。
type GameManager struct {
	mu         sync.RWMutex
	engines    map[string]*engine.Engine // gameID → engine
	addrToGame map[string]string         // player address → gameID

	hub    websocket.HubInterface
	store  Store
	ledger engine.Ledger
	scores engine.Scores
	pool   Pool
	cfg    engine.Config

	drainTimeout time.Duration // RefundAll 等在线会话退完的上限
}

func NewGameManager(hub websocket.HubInterface, store Store, ledger engine.Ledger, scores engine.Scores, cfg engine.Config) *GameManager {
	return &GameManager{
		engines:    make(map[string]*engine.Engine),
		addrToGame: make(map[string]string),
		hub:        hub,
		store:      store,
		ledger:     ledger,
		scores:     scores,
		cfg:        cfg,

		drainTimeout: 5 * time.Second,
	}
}

// SetPool 等待池在 main 里后注入（双方都依赖 hub，先后顺序由 main 控制）
func (m *GameManager) SetPool(p Pool) { m.pool = p }

// -----------------------------------------------------
//  建桌
// -----------------------------------------------------

// StartSession 把配对成功的两个等待条目变成一局。
// 持久记录写失败在这里是致命的：没有记录崩溃后无法退款，
// 所以直接退钱散桌。
func (m *GameManager) StartSession(e0, e1 matchmaker.Entry) {
	ctx := context.Background()
	sess := table.NewSession(
		uuid.NewString(),
		table.Player{ChannelID: e0.ChannelID, Address: e0.Address, Bet: e0.Bet},
		table.Player{ChannelID: e1.ChannelID, Address: e1.Address, Bet: e1.Bet},
	)

	if err := m.store.Save(ctx, sess); err != nil {
		utils.Error.Printf("session %s: save failed, refunding: %v", sess.ID, err)
		m.refundEntries(ctx, e0, e1)
		return
	}

	eng := engine.NewEngine(sess, m.hub, m.store, m.ledger, m.scores, m.cfg)
	eng.OnFinished = m.remove

	// 发牌前两边连接必须都还挂着，否则退款散桌
	for _, e := range []matchmaker.Entry{e0, e1} {
		c, ok := m.hub.ClientByAddress(e.Address)
		if !ok || c.ID != e.ChannelID {
			utils.Error.Printf("session %s: %s detached before deal, refunding", sess.ID, e.Address)
			m.refundEntries(ctx, e0, e1)
			if err := m.store.Delete(ctx, sess.ID); err != nil {
				utils.Error.Printf("session %s: cleanup delete failed: %v", sess.ID, err)
			}
			return
		}
	}

	m.mu.Lock()
	m.engines[sess.ID] = eng
	for _, p := range sess.Players {
		m.addrToGame[p.Address] = sess.ID
	}
	m.mu.Unlock()

	utils.Info.Printf("session %s: %s vs %s, pot %d", sess.ID, e0.Address, e1.Address, sess.Pot)
	eng.Start()
}

func (m *GameManager) refundEntries(ctx context.Context, entries ...matchmaker.Entry) {
	for _, e := range entries {
		m.ledger.Refund(ctx, e.Address, e.Bet)
		m.hub.SendToPlayer(e.Address, websocket.OutgoingMessage{
			Event: websocket.EventRefund,
			Data: map[string]any{
				"message":  "match could not start, your bet has been returned",
				"amount":   e.Bet,
				"isRefund": true,
			},
		})
	}
}

// remove 终局回调：从注册表摘除（Engine 自己已撤计时器、删持久记录）
func (m *GameManager) remove(gameID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	eng, ok := m.engines[gameID]
	if !ok {
		return
	}
	delete(m.engines, gameID)
	for _, p := range eng.Session.Players {
		if m.addrToGame[p.Address] == gameID {
			delete(m.addrToGame, p.Address)
		}
	}
}

func (m *GameManager) engineByID(gameID string) *engine.Engine {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.engines[gameID]
}

func (m *GameManager) engineByAddress(addr string) *engine.Engine {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.engines[m.addrToGame[addr]]
}

// -----------------------------------------------------
//  入站消息分发：封闭事件集合，一个 switch 穷尽
// -----------------------------------------------------

func (m *GameManager) HandleClientMessage(msg websocket.IncomingMessage) {
	ctx := context.Background()

	switch msg.Event {

	case websocket.EventJoin:
		var p websocket.JoinPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			m.sendError(msg.From, "malformed join payload")
			return
		}
		if err := m.pool.Join(ctx, msg.From, msg.ChannelID, p.BetAmount); err != nil {
			m.sendError(msg.From, err.Error())
		}

	case websocket.EventLeave:
		if err := m.pool.Leave(ctx, msg.From, msg.ChannelID); err != nil {
			m.sendError(msg.From, err.Error())
		}

	case websocket.EventReconnect:
		var p websocket.ReconnectPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			m.sendError(msg.From, "malformed reconnect payload")
			return
		}
		eng := m.engineByID(p.GameID)
		if eng == nil || eng.Session.PlayerByAddress(msg.From) < 0 {
			m.sendError(msg.From, "game not found")
			return
		}
		eng.Rebind(msg.From, msg.ChannelID)

	case websocket.EventMove:
		var p websocket.MovePayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			m.sendError(msg.From, "malformed move payload")
			return
		}
		eng := m.engineByID(p.GameID)
		if eng == nil {
			eng = m.engineByAddress(msg.From)
		}
		if eng == nil {
			m.sendError(msg.From, "game not found")
			return
		}
		eng.SubmitMove(msg.From, msg.ChannelID, p.Action, p.Amount)

	default:
		m.sendError(msg.From, "unknown event "+msg.Event)
	}
}

func (m *GameManager) sendError(addr, msg string) {
	m.hub.SendToPlayer(addr, websocket.OutgoingMessage{
		Event: websocket.EventError,
		Data:  map[string]any{"message": msg},
	})
}

// -----------------------------------------------------
//  断线 / 退款 / 恢复
// -----------------------------------------------------

// HandleDisconnect 连接关闭入口：先清等待池，再走会话的认输/退款路径
func (m *GameManager) HandleDisconnect(address, channelID string) {
	if m.pool != nil {
		// 不在池里会返回 not_in_waiting_list，忽略即可
		_ = m.pool.Leave(context.Background(), address, channelID)
	}
	if eng := m.engineByAddress(address); eng != nil {
		eng.NotifyDisconnect(channelID)
	}
}

// RefundSession 单会话退款，幂等：已摘除的会话直接 no-op
func (m *GameManager) RefundSession(gameID string) {
	if eng := m.engineByID(gameID); eng != nil {
		eng.RequestRefund()
	}
}

// RefundAll 全量退款：工作清单来自持久层而不是内存 —— 崩溃重启后
// 内存里没有会话，但钱必须退。活着的会话走各自事件循环退款；
// 只剩记录的直接按记录退。
func (m *GameManager) RefundAll(ctx context.Context) error {
	records, err := m.store.FindActive(ctx)
	if err != nil {
		return err
	}
	for _, rec := range records {
		if eng := m.engineByID(rec.GameID); eng != nil {
			eng.RequestRefund()
			continue
		}
		// 内存里没有的残留记录（上次崩溃遗留）
		for _, p := range rec.Players {
			m.ledger.Refund(ctx, p.Address, p.Bet)
		}
		if err := m.store.Delete(ctx, rec.GameID); err != nil {
			utils.Error.Printf("refund sweep: delete %s failed: %v", rec.GameID, err)
		}
		utils.Info.Printf("refund sweep: stale session %s refunded", rec.GameID)
	}

	// 等在线会话的事件循环消化完退款命令
	deadline := time.Now().Add(m.drainTimeout)
	for time.Now().Before(deadline) {
		m.mu.RLock()
		n := len(m.engines)
		m.mu.RUnlock()
		if n == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	m.mu.RLock()
	n := len(m.engines)
	m.mu.RUnlock()
	// 超时还有会话没退完：不能假装扫干净了
	utils.Error.Printf("refund sweep: timed out with %d sessions still live", n)
	return fmt.Errorf("refund sweep incomplete: %d sessions still live", n)
}

// ActiveSessions 注册表里的在线会话数
func (m *GameManager) ActiveSessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.engines)
}
