package matchmaker

import (
	"context"
	"fmt"
	"time"

	"ChainHoldem/internal/utils"
	"ChainHoldem/internal/websocket"

	"github.com/ethereum/go-ethereum/common"
)

type HubBroadcaster interface {
	BroadcastAll(msg websocket.OutgoingMessage)
	SendToPlayer(addr string, msg websocket.OutgoingMessage)
}

type Refunder interface {
	Refund(ctx context.Context, player string, amount int64)
}

type Service struct {
	repo   Repo
	hub    HubBroadcaster
	ledger Refunder
	minBet int64

	// 成桌回调：弹出的两名玩家交给 GameManager 开局
	OnPairReady func(p0, p1 Entry)
}

func NewService(repo Repo, hub HubBroadcaster, ledger Refunder, minBet int64) *Service {
	return &Service{repo: repo, hub: hub, ledger: ledger, minBet: minBet}
}

// Join 入池并在凑满两人时立即成桌。
// 同地址重复加入是幂等覆盖；下注不合法直接拒绝，池不变。
func (s *Service) Join(ctx context.Context, address, channelID string, bet int64) error {
	if !common.IsHexAddress(address) {
		return fmt.Errorf("%w: malformed wallet address %q", ErrInvalidInput, address)
	}
	if bet <= 0 || bet < s.minBet {
		return fmt.Errorf("%w: bet %d below table minimum %d", ErrInvalidBet, bet, s.minBet)
	}

	if err := s.repo.Upsert(ctx, Entry{
		Address:   address,
		ChannelID: channelID,
		Bet:       bet,
		JoinedAt:  time.Now(),
	}); err != nil {
		return err
	}

	s.hub.SendToPlayer(address, websocket.OutgoingMessage{
		Event: websocket.EventWaiting,
		Data: map[string]any{
			"message": "waiting for an opponent",
			"players": s.poolView(ctx),
		},
	})
	s.broadcastPool(ctx)

	cnt, err := s.repo.Count(ctx)
	if err != nil {
		return err
	}
	if cnt < 2 {
		return nil
	}

	// 先到先配：弹出最早的两人
	pair, err := s.repo.PopOldest(ctx, 2)
	if err != nil {
		return err
	}
	if len(pair) < 2 {
		// 与并发 Leave 竞争导致弹出不足两人：已弹出的条目要放回池里，
		// 否则这名玩家既没开局也没退款，押注就丢了
		for _, e := range pair {
			if err := s.repo.Upsert(ctx, e); err != nil {
				utils.Error.Printf("requeue %s failed: %v, refunding bet", e.Address, err)
				s.ledger.Refund(ctx, e.Address, e.Bet)
				s.hub.SendToPlayer(e.Address, websocket.OutgoingMessage{
					Event: websocket.EventRefund,
					Data: map[string]any{
						"message":  "matchmaking failed, your bet has been returned",
						"amount":   e.Bet,
						"isRefund": true,
					},
				})
			}
		}
		return nil
	}
	utils.Info.Printf("matched %s vs %s", pair[0].Address, pair[1].Address)
	s.broadcastPool(ctx)
	if s.OnPairReady != nil {
		go s.OnPairReady(pair[0], pair[1])
	}
	return nil
}

// Leave 离池。地址与连接 ID 必须同时匹配，防止残留的旧连接
// 把更新的排队条目顶掉。
func (s *Service) Leave(ctx context.Context, address, channelID string) error {
	e, ok, err := s.repo.Remove(ctx, address, channelID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotWaiting
	}

	s.ledger.Refund(ctx, e.Address, e.Bet)
	s.hub.SendToPlayer(address, websocket.OutgoingMessage{
		Event: websocket.EventRefund,
		Data: map[string]any{
			"message":  "left waiting list, your bet has been returned",
			"amount":   e.Bet,
			"isRefund": true,
		},
	})
	s.hub.SendToPlayer(address, websocket.OutgoingMessage{
		Event: websocket.EventLeftWaitingList,
		Data:  map[string]any{"message": "you left the waiting list"},
	})
	s.broadcastPool(ctx)
	return nil
}

func (s *Service) broadcastPool(ctx context.Context) {
	s.hub.BroadcastAll(websocket.OutgoingMessage{
		Event: websocket.EventWaitingPlayers,
		Data:  s.poolView(ctx),
	})
}

func (s *Service) poolView(ctx context.Context) []PoolView {
	entries, err := s.repo.List(ctx)
	if err != nil {
		utils.Error.Printf("waiting pool list failed: %v", err)
		return []PoolView{}
	}
	out := make([]PoolView, 0, len(entries))
	for _, e := range entries {
		out = append(out, PoolView{Address: e.Address, BetAmount: e.Bet})
	}
	return out
}
