package settlement

import (
	"context"

	"ChainHoldem/internal/utils"

	"github.com/ethereum/go-ethereum/common"
)

// Ledger 链上结算服务的边界。指令是 fire-and-forget：
// 结算失败独立于游戏逻辑，由结算侧自行重试。
type Ledger interface {
	Payout(ctx context.Context, winner string, amount int64)
	Refund(ctx context.Context, player string, amount int64)
}

// ChainLedger 生产适配器：校验地址后异步下发结算指令。
// 实际的交易构造/钱包签名在独立服务里，不属于本进程。
type ChainLedger struct {
	// 结算指令出口，nil 时只记日志（本地联调）
	Dispatch func(instruction Instruction)
}

type Instruction struct {
	Address  string `json:"address"`
	Amount   int64  `json:"amount"`
	IsRefund bool   `json:"isRefund"`
}

func NewChainLedger() *ChainLedger {
	return &ChainLedger{}
}

func (l *ChainLedger) Payout(ctx context.Context, winner string, amount int64) {
	l.instruct(Instruction{Address: winner, Amount: amount, IsRefund: false})
}

func (l *ChainLedger) Refund(ctx context.Context, player string, amount int64) {
	l.instruct(Instruction{Address: player, Amount: amount, IsRefund: true})
}

func (l *ChainLedger) instruct(in Instruction) {
	if !common.IsHexAddress(in.Address) {
		utils.Error.Printf("settlement: refusing instruction for malformed address %q", in.Address)
		return
	}
	if in.Amount <= 0 {
		return
	}
	go func() {
		if l.Dispatch != nil {
			l.Dispatch(in)
			return
		}
		utils.Info.Printf("settlement: instructed %d -> %s (refund=%v)", in.Amount, in.Address, in.IsRefund)
	}()
}
