package matchmaker

import (
	"context"
	"sync"
)

// memRepo 内存版等待池，行为与 Redis 版对齐，测试用
type memRepo struct {
	mu    sync.Mutex
	order []string // FIFO 排队顺序
	byAdr map[string]Entry
}

func NewMemoryRepo() Repo {
	return &memRepo{
		order: make([]string, 0),
		byAdr: make(map[string]Entry),
	}
}

func (m *memRepo) Upsert(ctx context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byAdr[e.Address]; !ok {
		m.order = append(m.order, e.Address)
	}
	// 已在队列：覆盖 channel/bet，排队位置不变
	m.byAdr[e.Address] = e
	return nil
}

func (m *memRepo) Remove(ctx context.Context, address, channelID string) (Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.byAdr[address]
	if !ok || e.ChannelID != channelID {
		return Entry{}, false, nil
	}
	delete(m.byAdr, address)
	for i, a := range m.order {
		if a == address {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return e, true, nil
}

func (m *memRepo) PopOldest(ctx context.Context, n int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, 0, n)
	for len(out) < n && len(m.order) > 0 {
		addr := m.order[0]
		m.order = m.order[1:]
		if e, ok := m.byAdr[addr]; ok {
			out = append(out, e)
			delete(m.byAdr, addr)
		}
	}
	return out, nil
}

func (m *memRepo) List(ctx context.Context) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, 0, len(m.order))
	for _, addr := range m.order {
		if e, ok := m.byAdr[addr]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memRepo) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.byAdr)), nil
}
