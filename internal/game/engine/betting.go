package engine

import (
	"errors"
	"fmt"

	"ChainHoldem/internal/game/table"
)

// 玩家动作
const (
	ActionFold  = "fold"
	ActionCheck = "check"
	ActionCall  = "call"
	ActionBet   = "bet"
	ActionRaise = "raise"
)

var (
	ErrNotYourTurn = errors.New("not_your_turn")
	ErrIllegalMove = errors.New("illegal_move")
	ErrInvalidBet  = errors.New("invalid_bet")
)

// moveOutcome 下注引擎产出的本地结果，由状态机决定后续动作。
// 规则错误永远不会越过会话边界往外抛。
type moveOutcome struct {
	roundClosed bool  // 本轮是否收口（双方投入持平）
	folded      bool  // 弃牌直接终局
	potDelta    int64 // 本次动作进入底池的筹码
}

// validateMove 只做校验，不碰任何状态
func (e *Engine) validateMove(seat int, action string, amount int64) error {
	s := e.Session
	contrib := s.Contributions[s.Players[seat].Address]

	switch action {
	case ActionFold, ActionCall:
		return nil
	case ActionCheck:
		if s.CurrentBet > contrib {
			return fmt.Errorf("%w: owing %d, cannot check", ErrIllegalMove, s.CurrentBet-contrib)
		}
		return nil
	case ActionBet:
		if s.CurrentBet != 0 {
			return fmt.Errorf("%w: table already has a bet, raise instead", ErrIllegalMove)
		}
		if amount < e.Cfg.MinBet || amount <= s.CurrentBet {
			return fmt.Errorf("%w: bet %d below table minimum %d", ErrInvalidBet, amount, e.Cfg.MinBet)
		}
		return nil
	case ActionRaise:
		if s.CurrentBet == 0 {
			return fmt.Errorf("%w: nothing to raise, bet instead", ErrIllegalMove)
		}
		if amount < e.Cfg.MinBet {
			return fmt.Errorf("%w: raise %d below table minimum %d", ErrInvalidBet, amount, e.Cfg.MinBet)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown action %q", ErrIllegalMove, action)
	}
}

// applyMove 执行已通过校验的动作并返回本地结果。
// 调用前必须先 validateMove。
func (e *Engine) applyMove(seat int, action string, amount int64) moveOutcome {
	s := e.Session
	addr := s.Players[seat].Address
	opp := s.Players[table.Opponent(seat)].Address
	contrib := s.Contributions[addr]

	switch action {
	case ActionFold:
		return moveOutcome{folded: true}

	case ActionCheck:
		// 过牌不动筹码；双方投入持平即收口
		closed := s.Contributions[addr] == s.Contributions[opp]
		if closed {
			s.RoundClosed = true
		}
		return moveOutcome{roundClosed: closed}

	case ActionCall:
		// 无注可跟时等同过牌收口
		delta := s.CurrentBet - contrib
		if delta < 0 {
			delta = 0
		}
		s.Pot += delta
		s.Contributions[addr] = s.CurrentBet
		closed := s.Contributions[addr] == s.Contributions[opp]
		if closed {
			s.RoundClosed = true
		}
		return moveOutcome{roundClosed: closed, potDelta: delta}

	case ActionBet, ActionRaise:
		newLevel := amount
		if action == ActionRaise {
			newLevel = s.CurrentBet + amount
		}
		delta := newLevel - contrib
		s.Pot += delta
		s.Contributions[addr] = newLevel
		s.CurrentBet = newLevel
		s.RoundClosed = false
		return moveOutcome{potDelta: delta}
	}
	return moveOutcome{}
}
