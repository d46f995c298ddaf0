package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/microwire-quality/internal/model"
)

// ChatRepo stores assistant sessions and their messages.
type ChatRepo struct {
	db *sql.DB
}

func NewChatRepo(db *sql.DB) *ChatRepo { return &ChatRepo{db: db} }

func (r *ChatRepo) CreateSession(ctx context.Context, s *model.ChatSession) error {
	res, err := r.db.ExecContext(ctx, "INSERT INTO chat_sessions (user_id, title) VALUES (?, ?)", s.UserID, s.Title)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := r.GetSession(ctx, uint64(id), s.UserID)
	if err != nil {
		return err
	}
	*s = *created
	return nil
}

// GetSession returns ErrNotFound when the session does not exist and
// ErrForbidden when it belongs to another user.
func (r *ChatRepo) GetSession(ctx context.Context, id, userID uint64) (*model.ChatSession, error) {
	var s model.ChatSession
	err := r.db.QueryRowContext(ctx,
		"SELECT id, user_id, title, created_at, updated_at FROM chat_sessions WHERE id = ?", id).
		Scan(&s.ID, &s.UserID, &s.Title, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	if s.UserID != userID {
		return nil, ErrForbidden
	}
	return &s, nil
}

// ListSessions returns the user's sessions, most recently active first.
func (r *ChatRepo) ListSessions(ctx context.Context, userID uint64) ([]*model.ChatSession, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, user_id, title, created_at, updated_at FROM chat_sessions WHERE user_id = ? ORDER BY updated_at DESC, id DESC",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.ChatSession
	for rows.Next() {
		s := new(model.ChatSession)
		if err := rows.Scan(&s.ID, &s.UserID, &s.Title, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *ChatRepo) DeleteSession(ctx context.Context, id, userID uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM chat_sessions WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return err
	}
	return affectedOne(res)
}

// AppendMessage inserts m and bumps the session's updated_at in one
// transaction.
func (r *ChatRepo) AppendMessage(ctx context.Context, m *model.ChatMessage) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	res, err := tx.ExecContext(ctx,
		"INSERT INTO chat_messages (session_id, role, content) VALUES (?, ?, ?)", m.SessionID, m.Role, m.Content)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx,
		"UPDATE chat_sessions SET updated_at = CURRENT_TIMESTAMP WHERE id = ?", m.SessionID); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	m.ID = uint64(id)
	m.CreatedAt = time.Now().UTC()
	return nil
}

// RecentMessages returns at most limit messages of a session in
// chronological order.  limit <= 0 returns the whole history.
func (r *ChatRepo) RecentMessages(ctx context.Context, sessionID uint64, limit int) ([]model.ChatMessage, error) {
	q := `SELECT id, session_id, role, content, created_at FROM chat_messages WHERE session_id = ? ORDER BY id DESC`
	args := []any{sessionID}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ChatMessage
	for rows.Next() {
		var m model.ChatMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
