package service

import (
	"context"

	"github.com/iliyamo/marketplace-backend/internal/model"
)

// InboxService lets any account read and manage its own notifications.
// Every per-notification operation checks that the caller is the
// recipient before touching the row.
type InboxService struct {
	store NotificationStore
}

func NewInboxService(store NotificationStore) *InboxService {
	return &InboxService{store: store}
}

// List returns the caller's notifications, newest first.
func (s *InboxService) List(ctx context.Context, to model.Recipient, unreadOnly bool, limit int) ([]*model.Notification, error) {
	list, err := s.store.ListFor(ctx, to, unreadOnly, limit)
	return list, translate(err)
}

// UnreadCount returns the number of unread notifications.
func (s *InboxService) UnreadCount(ctx context.Context, to model.Recipient) (int, error) {
	n, err := s.store.UnreadCount(ctx, to)
	return n, translate(err)
}

func (s *InboxService) owned(ctx context.Context, to model.Recipient, id uint64) (*model.Notification, error) {
	return Authorize(ctx, id, s.store.GetByID, func(n *model.Notification) bool {
		return n.Recipient() == to
	})
}

// MarkRead marks one of the caller's notifications as read.
func (s *InboxService) MarkRead(ctx context.Context, to model.Recipient, id uint64) (*model.Notification, error) {
	n, err := s.owned(ctx, to, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.MarkRead(ctx, id); err != nil {
		return nil, translate(err)
	}
	n.IsRead = true
	return n, nil
}

// MarkAllRead marks every unread notification of the caller.
func (s *InboxService) MarkAllRead(ctx context.Context, to model.Recipient) (int64, error) {
	n, err := s.store.MarkAllRead(ctx, to)
	return n, translate(err)
}

// Delete removes one of the caller's notifications.
func (s *InboxService) Delete(ctx context.Context, to model.Recipient, id uint64) error {
	if _, err := s.owned(ctx, to, id); err != nil {
		return err
	}
	return translate(s.store.Delete(ctx, id))
}
