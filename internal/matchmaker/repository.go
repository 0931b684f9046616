package matchmaker

import "context"

// Repo 等待池的抽象操作。配对顺序是 FIFO：最早入队的两人先成桌。
type Repo interface {
	// Upsert 按地址插入或原地更新；已有条目保留原排队位置
	Upsert(ctx context.Context, e Entry) error
	// Remove 只有地址与连接 ID 同时匹配才移除（防止旧连接误踢新会话）
	Remove(ctx context.Context, address, channelID string) (Entry, bool, error)
	// PopOldest 原子弹出最早的 n 个条目
	PopOldest(ctx context.Context, n int) ([]Entry, error)
	// List 按入队顺序返回全部条目
	List(ctx context.Context) ([]Entry, error)
	// Count 池内人数
	Count(ctx context.Context) (int64, error)
}
