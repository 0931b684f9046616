package websocket

import (
	"log"
	"sync"
)

type HubInterface interface {
	BroadcastToPlayers(addrs []string, msg OutgoingMessage)
	BroadcastAll(msg OutgoingMessage)
	ClientByAddress(addr string) (*Client, bool)
	SendToPlayer(addr string, msg OutgoingMessage)
	Close()
}

type Hub struct {
	clients    map[string]*Client // address -> client
	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastReq
	sendOne    chan sendReq
	incoming   chan IncomingMessage
	OnIncoming func(IncomingMessage)
	// 连接关闭时回调（断线即认输/退款的入口）
	OnDisconnect func(address, channelID string)
	quit         chan struct{}
	mu           sync.RWMutex
}

type broadcastReq struct {
	Addresses []string
	Message   OutgoingMessage
}

type sendReq struct {
	Address string
	Message OutgoingMessage
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcastReq),
		sendOne:    make(chan sendReq),
		incoming:   make(chan IncomingMessage),
		quit:       make(chan struct{}),
	}
}

func (h *Hub) Run() {

	log.Println("Hub started")

	// incoming 由独立 goroutine 消费：OnIncoming 里会回写 sendOne/broadcast，
	// 若在本循环内同步调用会自锁
	go h.drainIncoming()

	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			// 同地址重连：替换旧连接，旧 Send 直接关闭
			if old, ok := h.clients[c.Address]; ok && old.ID != c.ID {
				close(old.Send)
			}
			h.clients[c.Address] = c
			log.Printf("Hub.register -> %s ch=%s (当前连接数: %d)", c.Address, c.ID, len(h.clients))
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			// 只有当前仍挂着的连接才算断线；被重连顶掉的旧连接不触发
			if cur, ok := h.clients[c.Address]; ok && cur.ID == c.ID {
				delete(h.clients, c.Address)
				log.Printf("Hub.unregister -> %s ch=%s (当前连接数: %d)", c.Address, c.ID, len(h.clients))
				close(c.Send)
				if h.OnDisconnect != nil {
					go h.OnDisconnect(c.Address, c.ID)
				}
			}
			h.mu.Unlock()

		case req := <-h.broadcast:
			h.mu.RLock()
			if req.Addresses == nil {
				for _, client := range h.clients {
					select {
					case client.Send <- req.Message:
					default:
					}
				}
			} else {
				for _, addr := range req.Addresses {
					if client, ok := h.clients[addr]; ok {
						select {
						case client.Send <- req.Message:
						default:
						}
					}
				}
			}
			h.mu.RUnlock()

		case req := <-h.sendOne:
			h.mu.RLock()
			if client, ok := h.clients[req.Address]; ok {
				select {
				case client.Send <- req.Message:
				default:
					// 慢客户端：丢弃而不是阻塞 Hub
				}
			}
			h.mu.RUnlock()

		case <-h.quit:
			h.mu.Lock()
			for _, c := range h.clients {
				close(c.Send)
			}
			h.clients = make(map[string]*Client)
			h.mu.Unlock()
			return
		}
	}
}

// 玩家消息统一转发给游戏层（Manager）；单消费者，保证同连接消息顺序
func (h *Hub) drainIncoming() {
	for {
		select {
		case req := <-h.incoming:
			if h.OnIncoming != nil {
				h.OnIncoming(req)
			}
		case <-h.quit:
			return
		}
	}
}

// Broadcast to multiple players
func (h *Hub) BroadcastToPlayers(addrs []string, msg OutgoingMessage) {
	h.broadcast <- broadcastReq{
		Addresses: addrs,
		Message:   msg,
	}
}

// Broadcast to every connected client (等待池快照等全员消息)
func (h *Hub) BroadcastAll(msg OutgoingMessage) {
	h.broadcast <- broadcastReq{
		Addresses: nil,
		Message:   msg,
	}
}

// Send to a single player (safe concurrent)
func (h *Hub) SendToPlayer(addr string, msg OutgoingMessage) {
	h.sendOne <- sendReq{
		Address: addr,
		Message: msg,
	}
}

// Lookup for a player client by address
func (h *Hub) ClientByAddress(addr string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[addr]
	return c, ok
}

func (h *Hub) Close() {
	close(h.quit)
}
