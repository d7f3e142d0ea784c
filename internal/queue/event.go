// Package queue defines message payloads exchanged over the message broker
// together with the publisher and the audit consumer.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/marketplace-backend/internal/model"
)

// OrderEventsQueue is the durable queue every order event is routed to
// through the default exchange.
const OrderEventsQueue = "order.events"

// Event types carried in OrderEvent.Type.
const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderCancelled     = "order.cancelled"
	EventOrderCompleted     = "order.completed"
)

// OrderEvent is published after an order changes.  It carries enough
// information for downstream consumers to log or trigger analytics
// without querying the primary database.
type OrderEvent struct {
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	OrderID    uint64    `json:"order_id"`
	UserID     uint64    `json:"user_id"`
	OwnerIDs   []uint64  `json:"owner_ids"`
	Status     string    `json:"status"`
	Total      string    `json:"total"`
	ItemCount  int       `json:"item_count"`
	ReceiptID  string    `json:"receipt_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewOrderEvent snapshots o into an event of the given type.
func NewOrderEvent(typ string, o *model.Order) OrderEvent {
	ev := OrderEvent{
		EventID:    uuid.NewString(),
		Type:       typ,
		OrderID:    o.ID,
		UserID:     o.UserID,
		OwnerIDs:   o.OwnerIDs(),
		Status:     string(o.Status),
		Total:      o.Total.StringFixed(2),
		ItemCount:  len(o.Items),
		OccurredAt: time.Now().UTC(),
	}
	if o.ReceiptID != nil {
		ev.ReceiptID = *o.ReceiptID
	}
	return ev
}
