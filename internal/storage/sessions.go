package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"ChainHoldem/internal/game/table"
)

// PlayerRecord 持久化的座位信息
type PlayerRecord struct {
	ChannelID string `json:"channelId"`
	Address   string `json:"address"`
	Bet       int64  `json:"bet"`
}

// SessionRecord 崩溃恢复用的会话持久记录。
// 内存注册表才是游戏进行中的权威状态，这张表只为重启后退款服务。
type SessionRecord struct {
	GameID    string
	Players   []PlayerRecord
	Pot       int64
	Status    table.Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

type SessionStore struct {
	db *sql.DB
}

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

// Save 新建或整体覆盖一条会话记录
func (s *SessionStore) Save(ctx context.Context, sess *table.Session) error {
	players := make([]PlayerRecord, 0, 2)
	for _, p := range sess.Players {
		players = append(players, PlayerRecord{
			ChannelID: p.ChannelID,
			Address:   p.Address,
			Bet:       p.Bet,
		})
	}
	data, err := json.Marshal(players)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO game_sessions (game_id, players, pot, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (game_id) DO UPDATE
		SET players = EXCLUDED.players, pot = EXCLUDED.pot,
		    status = EXCLUDED.status, updated_at = now()`,
		sess.ID, data, sess.Pot, string(sess.Status))
	return err
}

func (s *SessionStore) UpdateStatus(ctx context.Context, gameID string, status table.Status) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE game_sessions SET status = $2, updated_at = now() WHERE game_id = $1`,
		gameID, string(status))
	return err
}

func (s *SessionStore) UpdatePot(ctx context.Context, gameID string, pot int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE game_sessions SET pot = $2, updated_at = now() WHERE game_id = $1`,
		gameID, pot)
	return err
}

func (s *SessionStore) Delete(ctx context.Context, gameID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM game_sessions WHERE game_id = $1`, gameID)
	return err
}

// SaveChannel 重连后把座位换绑到新连接
func (s *SessionStore) SaveChannel(ctx context.Context, gameID, address, channelID string) error {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT players FROM game_sessions WHERE game_id = $1`, gameID).Scan(&data)
	if err != nil {
		return err
	}
	var players []PlayerRecord
	if err := json.Unmarshal(data, &players); err != nil {
		return err
	}
	for i := range players {
		if players[i].Address == address {
			players[i].ChannelID = channelID
		}
	}
	out, err := json.Marshal(players)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE game_sessions SET players = $2, updated_at = now() WHERE game_id = $1`,
		gameID, out)
	return err
}

// FindActive 返回全部未终局的会话记录（崩溃恢复/停机退款的工作清单）
func (s *SessionStore) FindActive(ctx context.Context) ([]SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT game_id, players, pot, status, created_at, updated_at
		FROM game_sessions
		WHERE status <> $1
		ORDER BY created_at`, string(table.StatusFinished))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]SessionRecord, 0)
	for rows.Next() {
		var rec SessionRecord
		var players []byte
		var status string
		if err := rows.Scan(&rec.GameID, &players, &rec.Pot, &status, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(players, &rec.Players); err != nil {
			return nil, err
		}
		rec.Status = table.Status(status)
		out = append(out, rec)
	}
	return out, rows.Err()
}
