package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/marketplace-backend/internal/metrics"
	"github.com/iliyamo/marketplace-backend/internal/model"
)

// NotificationWriter is the write half of NotificationStore.
type NotificationWriter interface {
	Create(ctx context.Context, n *model.Notification) error
	CreateMany(ctx context.Context, ns []*model.Notification) error
}

// AdminDirectory lists the current admins for platform-wide fan-out.
type AdminDirectory interface {
	ListAdminIDs(ctx context.Context) ([]uint64, error)
}

// Notifier writes notification rows on behalf of business operations.
// Every method is best-effort: failures are logged at warn level and
// counted, never returned, so the triggering operation still succeeds.
type Notifier struct {
	store  NotificationWriter
	admins AdminDirectory
	log    *logrus.Logger
}

func NewNotifier(store NotificationWriter, admins AdminDirectory, log *logrus.Logger) *Notifier {
	return &Notifier{store: store, admins: admins, log: log}
}

// Message is the content of a notification independent of its recipient.
type Message struct {
	Type  model.NotificationType
	Title string
	Body  string
	Link  string
}

// Notify writes one notification for to.
func (n *Notifier) Notify(ctx context.Context, to model.Recipient, m Message) {
	row := model.NewNotification(to, m.Type, m.Title, m.Body, m.Link)
	err := n.store.Create(ctx, row)
	metrics.NotificationWritten(string(to.Role), err == nil)
	if err != nil {
		n.log.WithError(err).WithFields(logrus.Fields{
			"recipient_role": to.Role,
			"recipient_id":   to.ID,
			"type":           m.Type,
		}).Warn("notification write failed")
	}
}

// NotifyUser is Notify addressed to a user.
func (n *Notifier) NotifyUser(ctx context.Context, userID uint64, m Message) {
	n.Notify(ctx, model.Recipient{Role: model.RoleUser, ID: userID}, m)
}

// NotifyOwner is Notify addressed to an owner.
func (n *Notifier) NotifyOwner(ctx context.Context, ownerID uint64, m Message) {
	n.Notify(ctx, model.Recipient{Role: model.RoleOwner, ID: ownerID}, m)
}

// NotifyAdmin is Notify addressed to one admin.
func (n *Notifier) NotifyAdmin(ctx context.Context, adminID uint64, m Message) {
	n.Notify(ctx, model.Recipient{Role: model.RoleAdmin, ID: adminID}, m)
}

// NotifyOwners writes one notification per distinct owner id, keeping
// the first-seen order.
func (n *Notifier) NotifyOwners(ctx context.Context, ownerIDs []uint64, m Message) {
	seen := make(map[uint64]struct{}, len(ownerIDs))
	for _, id := range ownerIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		n.NotifyOwner(ctx, id, m)
	}
}

// NotifyAdmins fans m out to every current admin in one bulk insert.
func (n *Notifier) NotifyAdmins(ctx context.Context, m Message) {
	ids, err := n.admins.ListAdminIDs(ctx)
	if err != nil {
		metrics.NotificationWritten(string(model.RoleAdmin), false)
		n.log.WithError(err).WithField("type", m.Type).Warn("admin fan-out: list admins failed")
		return
	}
	if len(ids) == 0 {
		return
	}
	rows := make([]*model.Notification, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, model.NewNotification(model.Recipient{Role: model.RoleAdmin, ID: id}, m.Type, m.Title, m.Body, m.Link))
	}
	err = n.store.CreateMany(ctx, rows)
	for range rows {
		metrics.NotificationWritten(string(model.RoleAdmin), err == nil)
	}
	if err != nil {
		n.log.WithError(err).WithFields(logrus.Fields{
			"type":   m.Type,
			"admins": len(ids),
		}).Warn("admin fan-out write failed")
	}
}
