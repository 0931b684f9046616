package matchmaker

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisRepo struct {
	rdb *redis.Client
}

func NewRedisRepo(rdb *redis.Client) Repo {
	return &redisRepo{rdb: rdb}
}

// key 约定：
//
//	list: wp:queue              -> 地址的 FIFO 队列
//	hash: wp:entry:{address}    -> channelId / bet / joinedAt
const queueKey = "wp:queue"

func entryKey(addr string) string {
	return "wp:entry:" + addr
}

func (r *redisRepo) Upsert(ctx context.Context, e Entry) error {
	exists, err := r.rdb.Exists(ctx, entryKey(e.Address)).Result()
	if err != nil {
		return err
	}
	p := r.rdb.Pipeline()
	if exists == 0 {
		p.RPush(ctx, queueKey, e.Address)
	}
	// 重入只覆盖字段，不改排队位置
	p.HSet(ctx, entryKey(e.Address), map[string]any{
		"channelId": e.ChannelID,
		"bet":       e.Bet,
		"joinedAt":  e.JoinedAt.UnixNano(),
	})
	_, err = p.Exec(ctx)
	return err
}

func (r *redisRepo) Remove(ctx context.Context, address, channelID string) (Entry, bool, error) {
	e, ok, err := r.getEntry(ctx, address)
	if err != nil || !ok || e.ChannelID != channelID {
		return Entry{}, false, err
	}
	// Lua：地址出队 + 条目删除一步完成
	script := `
        redis.call("LREM", KEYS[1], 1, ARGV[1])
        redis.call("DEL", KEYS[2])
        return 1
    `
	if err := r.rdb.Eval(ctx, script, []string{queueKey, entryKey(address)}, address).Err(); err != nil {
		// Eval 不可用时退化为非原子流水线
		p := r.rdb.Pipeline()
		p.LRem(ctx, queueKey, 1, address)
		p.Del(ctx, entryKey(address))
		if _, execErr := p.Exec(ctx); execErr != nil {
			return Entry{}, false, execErr
		}
	}
	return e, true, nil
}

func (r *redisRepo) PopOldest(ctx context.Context, n int) ([]Entry, error) {
	out := make([]Entry, 0, n)
	for len(out) < n {
		addr, err := r.rdb.LPop(ctx, queueKey).Result()
		if err == redis.Nil {
			break
		}
		if err != nil {
			return out, err
		}
		e, ok, err := r.getEntry(ctx, addr)
		if err != nil {
			return out, err
		}
		if !ok {
			continue // 残留地址，条目已过期
		}
		_ = r.rdb.Del(ctx, entryKey(addr)).Err()
		out = append(out, e)
	}
	return out, nil
}

func (r *redisRepo) List(ctx context.Context) ([]Entry, error) {
	addrs, err := r.rdb.LRange(ctx, queueKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(addrs))
	for _, addr := range addrs {
		if e, ok, err := r.getEntry(ctx, addr); err == nil && ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *redisRepo) Count(ctx context.Context) (int64, error) {
	return r.rdb.LLen(ctx, queueKey).Result()
}

func (r *redisRepo) getEntry(ctx context.Context, address string) (Entry, bool, error) {
	m, err := r.rdb.HGetAll(ctx, entryKey(address)).Result()
	if err != nil {
		return Entry{}, false, err
	}
	if len(m) == 0 {
		return Entry{}, false, nil
	}
	bet, _ := strconv.ParseInt(m["bet"], 10, 64)
	joined, _ := strconv.ParseInt(m["joinedAt"], 10, 64)
	return Entry{
		Address:   address,
		ChannelID: m["channelId"],
		Bet:       bet,
		JoinedAt:  time.Unix(0, joined),
	}, true, nil
}
