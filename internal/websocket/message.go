package websocket

import "encoding/json"

// -----------------------------------------------------
//  事件名常量：入站/出站事件收敛为封闭集合，
//  避免散落的字符串事件名漂移
// -----------------------------------------------------

// 入站（玩家 → 服务器）
const (
	EventJoin      = "join"
	EventLeave     = "leave"
	EventReconnect = "reconnect"
	EventMove      = "move"
)

// 出站（服务器 → 玩家/全桌）
const (
	EventWaiting         = "waiting"
	EventWaitingPlayers  = "waitingPlayers"
	EventLeftWaitingList = "leftWaitingList"
	EventError           = "error"
	EventGameState       = "gameState"
	EventDistribute      = "distributeWinnings"
	EventRefund          = "refund"
	EventDealHole        = "dealHole"
)

type OutgoingMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type IncomingMessage struct {
	From      string          `json:"-"` // 钱包地址，由连接注入
	ChannelID string          `json:"-"` // 连接 ID，由连接注入
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
}

// 入站事件的有类型负载

type JoinPayload struct {
	BetAmount int64 `json:"betAmount"`
}

type ReconnectPayload struct {
	GameID string `json:"gameId"`
}

type MovePayload struct {
	GameID string `json:"gameId"`
	Action string `json:"action"`
	Amount int64  `json:"amount"`
}
