package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/marketplace-backend/internal/model"
)

// NotificationRepo stores per-recipient notifications.  Each row names
// exactly one of user_id, owner_id and admin_id.
type NotificationRepo struct {
	db *sql.DB
}

func NewNotificationRepo(db *sql.DB) *NotificationRepo { return &NotificationRepo{db: db} }

const notificationCols = "id, user_id, owner_id, admin_id, type, title, message, link, is_read, created_at"

// recipientColumn is the only place a role becomes a column name.
func recipientColumn(role model.Role) (string, error) {
	switch role {
	case model.RoleUser:
		return "user_id", nil
	case model.RoleOwner:
		return "owner_id", nil
	case model.RoleAdmin:
		return "admin_id", nil
	}
	return "", fmt.Errorf("unknown recipient role %q", role)
}

func scanNotification(s rowScanner) (*model.Notification, error) {
	var (
		n                        model.Notification
		userID, ownerID, adminID sql.NullInt64
	)
	if err := s.Scan(&n.ID, &userID, &ownerID, &adminID, &n.Type, &n.Title, &n.Message, &n.Link, &n.IsRead, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.UserID = nullID(userID)
	n.OwnerID = nullID(ownerID)
	n.AdminID = nullID(adminID)
	return &n, nil
}

func nullID(v sql.NullInt64) *uint64 {
	if !v.Valid {
		return nil
	}
	id := uint64(v.Int64)
	return &id
}

// Create inserts one notification and fills ID.
func (r *NotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO notifications (user_id, owner_id, admin_id, type, title, message, link) VALUES (?, ?, ?, ?, ?, ?, ?)",
		n.UserID, n.OwnerID, n.AdminID, string(n.Type), n.Title, n.Message, n.Link)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	n.ID = uint64(id)
	return nil
}

// CreateMany inserts notifications with a single multi-row statement.
func (r *NotificationRepo) CreateMany(ctx context.Context, ns []*model.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	q := "INSERT INTO notifications (user_id, owner_id, admin_id, type, title, message, link) VALUES "
	args := make([]any, 0, len(ns)*7)
	for i, n := range ns {
		if i > 0 {
			q += ","
		}
		q += "(?, ?, ?, ?, ?, ?, ?)"
		args = append(args, n.UserID, n.OwnerID, n.AdminID, string(n.Type), n.Title, n.Message, n.Link)
	}
	_, err := r.db.ExecContext(ctx, q, args...)
	return err
}

// GetByID fetches one notification.
func (r *NotificationRepo) GetByID(ctx context.Context, id uint64) (*model.Notification, error) {
	n, err := scanNotification(r.db.QueryRowContext(ctx, "SELECT "+notificationCols+" FROM notifications WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotificationNotFound
	}
	return n, err
}

// ListFor returns the recipient's notifications, newest first.  A
// non-positive limit means 50.
func (r *NotificationRepo) ListFor(ctx context.Context, to model.Recipient, unreadOnly bool, limit int) ([]*model.Notification, error) {
	col, err := recipientColumn(to.Role)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	q := "SELECT " + notificationCols + " FROM notifications WHERE " + col + " = ?"
	if unreadOnly {
		q += " AND is_read = 0"
	}
	q += " ORDER BY created_at DESC, id DESC LIMIT ?"
	rows, err := r.db.QueryContext(ctx, q, to.ID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*model.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// UnreadCount counts the recipient's unread notifications.
func (r *NotificationRepo) UnreadCount(ctx context.Context, to model.Recipient) (int, error) {
	col, err := recipientColumn(to.Role)
	if err != nil {
		return 0, err
	}
	var n int
	err = r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM notifications WHERE "+col+" = ? AND is_read = 0", to.ID).Scan(&n)
	return n, err
}

// MarkRead flags one notification as read.
func (r *NotificationRepo) MarkRead(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx, "UPDATE notifications SET is_read = 1 WHERE id = ?", id)
	return err
}

// MarkAllRead flags every unread notification of the recipient.
func (r *NotificationRepo) MarkAllRead(ctx context.Context, to model.Recipient) (int64, error) {
	col, err := recipientColumn(to.Role)
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, "UPDATE notifications SET is_read = 1 WHERE "+col+" = ? AND is_read = 0", to.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Delete removes one notification.
func (r *NotificationRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM notifications WHERE id = ?", id)
	if err != nil {
		return err
	}
	return mustAffect(res, ErrNotificationNotFound)
}
