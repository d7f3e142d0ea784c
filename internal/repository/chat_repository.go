package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/marketplace-backend/internal/model"
)

// ChatRepo stores order chats and their messages.  A chat is unique per
// (order, owner) pair.
type ChatRepo struct {
	db *sql.DB
}

func NewChatRepo(db *sql.DB) *ChatRepo { return &ChatRepo{db: db} }

// participantColumn maps a chat side to its column.  Admins never take
// part in chats.
func participantColumn(role model.Role) (string, error) {
	switch role {
	case model.RoleUser:
		return "user_id", nil
	case model.RoleOwner:
		return "owner_id", nil
	}
	return "", fmt.Errorf("role %q cannot take part in chats", role)
}

// GetOrCreate returns the chat for (orderID, ownerID), creating it when
// missing.  ON DUPLICATE KEY makes concurrent opens converge on one row.
func (r *ChatRepo) GetOrCreate(ctx context.Context, orderID, userID, ownerID uint64) (*model.Chat, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO chats (order_id, user_id, owner_id) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id)",
		orderID, userID, ownerID)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, uint64(id))
}

// GetByID fetches the chat row without message summary fields.
func (r *ChatRepo) GetByID(ctx context.Context, id uint64) (*model.Chat, error) {
	var c model.Chat
	err := r.db.QueryRowContext(ctx,
		"SELECT id, order_id, user_id, owner_id, created_at, updated_at FROM chats WHERE id = ?", id).
		Scan(&c.ID, &c.OrderID, &c.UserID, &c.OwnerID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListFor returns the participant's chats, most recently active first,
// each with its last message and the number of unread messages sent by
// the other side.
func (r *ChatRepo) ListFor(ctx context.Context, role model.Role, id uint64) ([]*model.Chat, error) {
	col, err := participantColumn(role)
	if err != nil {
		return nil, err
	}
	q := `SELECT c.id, c.order_id, c.user_id, c.owner_id, c.created_at, c.updated_at,
       (SELECT m.body FROM messages m WHERE m.chat_id = c.id ORDER BY m.id DESC LIMIT 1),
       (SELECT m.created_at FROM messages m WHERE m.chat_id = c.id ORDER BY m.id DESC LIMIT 1),
       (SELECT COUNT(*) FROM messages m WHERE m.chat_id = c.id AND m.is_read = 0 AND m.sender_role <> ?)
FROM chats c
WHERE c.` + col + ` = ?
ORDER BY c.updated_at DESC, c.id DESC`
	rows, err := r.db.QueryContext(ctx, q, string(role), id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*model.Chat{}
	for rows.Next() {
		var (
			c      model.Chat
			last   sql.NullString
			lastAt sql.NullTime
		)
		if err := rows.Scan(&c.ID, &c.OrderID, &c.UserID, &c.OwnerID, &c.CreatedAt, &c.UpdatedAt, &last, &lastAt, &c.UnreadCount); err != nil {
			return nil, err
		}
		if last.Valid {
			v := last.String
			c.LastMessage = &v
		}
		if lastAt.Valid {
			t := lastAt.Time
			c.LastAt = &t
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// AddMessage appends a message and bumps the chat's activity time.
func (r *ChatRepo) AddMessage(ctx context.Context, m *model.Message) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO messages (chat_id, sender_role, sender_id, body) VALUES (?, ?, ?, ?)",
		m.ChatID, string(m.SenderRole), m.SenderID, m.Body)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "UPDATE chats SET updated_at = CURRENT_TIMESTAMP WHERE id = ?", m.ChatID); err != nil {
		return err
	}
	if err := tx.QueryRowContext(ctx, "SELECT created_at FROM messages WHERE id = ?", id).Scan(&m.CreatedAt); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	m.ID = uint64(id)
	m.IsRead = false
	return nil
}

// ListMessages returns a chat's messages oldest first.
func (r *ChatRepo) ListMessages(ctx context.Context, chatID uint64) ([]*model.Message, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, chat_id, sender_role, sender_id, body, is_read, created_at FROM messages WHERE chat_id = ? ORDER BY id",
		chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*model.Message{}
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderRole, &m.SenderID, &m.Body, &m.IsRead, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// MarkRead flags as read every message in the chat sent by the side
// opposite to reader.
func (r *ChatRepo) MarkRead(ctx context.Context, chatID uint64, reader model.Role) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE messages SET is_read = 1 WHERE chat_id = ? AND sender_role <> ? AND is_read = 0",
		chatID, string(reader))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UnreadCount totals unread incoming messages across the participant's chats.
func (r *ChatRepo) UnreadCount(ctx context.Context, role model.Role, id uint64) (int, error) {
	col, err := participantColumn(role)
	if err != nil {
		return 0, err
	}
	var n int
	err = r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM messages m JOIN chats c ON c.id = m.chat_id WHERE c."+col+" = ? AND m.sender_role <> ? AND m.is_read = 0",
		id, string(role)).Scan(&n)
	return n, err
}
