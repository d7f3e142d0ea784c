package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/marketplace-backend/internal/apperr"
	"github.com/iliyamo/marketplace-backend/internal/metrics"
	"github.com/iliyamo/marketplace-backend/internal/model"
	"github.com/iliyamo/marketplace-backend/internal/queue"
	"github.com/iliyamo/marketplace-backend/internal/repository"
)

// CreateOrderInput is the body of POST /api/orders.  An empty shipping
// address falls back to the address on the user's profile.
type CreateOrderInput struct {
	Items           []model.OrderLine `json:"items" validate:"required,min=1,max=100,dive"`
	ShippingAddress string            `json:"shipping_address" validate:"omitempty,max=255"`
}

// OrderService implements checkout and the order lifecycle.
//
// Stock checks, the stock decrement and the order insert run in a single
// transaction in the store; this service adds the surrounding rules,
// owner notifications and broker events.
type OrderService struct {
	orders   OrderStore
	accounts AccountStore
	notify   *Notifier
	events   EventPublisher
	log      *logrus.Logger
	now      func() time.Time
}

// NewOrderService wires the service.  events may be nil, which disables
// event publishing.
func NewOrderService(orders OrderStore, accounts AccountStore, notify *Notifier, events EventPublisher, log *logrus.Logger) *OrderService {
	return &OrderService{
		orders:   orders,
		accounts: accounts,
		notify:   notify,
		events:   events,
		log:      log,
		now:      time.Now,
	}
}

func (s *OrderService) publish(ctx context.Context, typ string, o *model.Order) {
	if s.events == nil {
		return
	}
	err := s.events.Publish(ctx, queue.NewOrderEvent(typ, o))
	metrics.EventPublished(typ, err == nil)
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"event":    typ,
			"order_id": o.ID,
		}).Warn("order event not published")
	}
}

func validateLines(lines []model.OrderLine) error {
	if len(lines) == 0 {
		return apperr.Validation("order has no items", apperr.FieldError{Field: "items", Message: "must contain at least one item"})
	}
	var details []apperr.FieldError
	for i, l := range lines {
		if l.ProductID == 0 {
			details = append(details, apperr.FieldError{Field: fmt.Sprintf("items[%d].product_id", i), Message: "is required"})
		}
		if l.Quantity < 1 {
			details = append(details, apperr.FieldError{Field: fmt.Sprintf("items[%d].quantity", i), Message: "must be at least 1"})
		}
	}
	if len(details) > 0 {
		return apperr.Validation("invalid order items", details...)
	}
	return nil
}

// Create places an order for userID.  Either every line is reserved or
// nothing is written.  Each distinct owner supplying the order receives
// exactly one notification.
func (s *OrderService) Create(ctx context.Context, userID uint64, in CreateOrderInput) (*model.Order, error) {
	if err := validateLines(in.Items); err != nil {
		metrics.OrderRejected(apperr.CodeValidation)
		return nil, err
	}
	address := strings.TrimSpace(in.ShippingAddress)
	if address == "" {
		u, err := s.accounts.GetUser(ctx, userID)
		if err != nil {
			return nil, translate(err)
		}
		address = u.Address
	}

	o, err := s.orders.Place(ctx, userID, in.Items, address)
	if err != nil {
		err = translate(err)
		if ae, ok := apperr.As(err); ok {
			metrics.OrderRejected(ae.Code)
		}
		return nil, err
	}
	metrics.OrderPlaced()

	s.notify.NotifyOwners(ctx, o.OwnerIDs(), Message{
		Type:  model.NotifOrderCreated,
		Title: "New order",
		Body:  fmt.Sprintf("Order #%d was placed for items from your shop.", o.ID),
		Link:  fmt.Sprintf("/owner/orders/%d", o.ID),
	})
	s.publish(ctx, queue.EventOrderCreated, o)
	return o, nil
}

func (s *OrderService) ListMine(ctx context.Context, userID uint64) ([]*model.Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// Get returns one of the user's orders.
func (s *OrderService) Get(ctx context.Context, userID, id uint64) (*model.Order, error) {
	return Authorize(ctx, id, s.orders.GetByID, func(o *model.Order) bool {
		return o.UserID == userID
	})
}

// Cancel cancels a pending order of userID and restores its stock.
func (s *OrderService) Cancel(ctx context.Context, userID, id uint64) (*model.Order, error) {
	o, err := s.orders.Cancel(ctx, id, userID)
	if errors.Is(err, repository.ErrConflict) {
		return nil, apperr.InvalidState("only pending orders can be cancelled")
	}
	if err != nil {
		return nil, translate(err)
	}
	s.notify.NotifyOwners(ctx, o.OwnerIDs(), Message{
		Type:  model.NotifOrderCancelled,
		Title: "Order cancelled",
		Body:  fmt.Sprintf("Order #%d was cancelled by the customer.", o.ID),
		Link:  fmt.Sprintf("/owner/orders/%d", o.ID),
	})
	s.publish(ctx, queue.EventOrderCancelled, o)
	return o, nil
}

func confirmable(o *model.Order) error {
	if o.ReceiptID != nil {
		return apperr.AlreadyConfirmed().With("receipt_id", *o.ReceiptID)
	}
	if o.Status != model.OrderDelivered {
		return apperr.InvalidState(fmt.Sprintf("order is %s; only delivered orders can be confirmed", o.Status))
	}
	return nil
}

// Confirm records that the user received a delivered order, completing it
// and issuing a receipt id.  A second confirmation reports
// ALREADY_CONFIRMED with the original receipt.
func (s *OrderService) Confirm(ctx context.Context, userID, id uint64) (*model.Order, error) {
	o, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := confirmable(o); err != nil {
		return nil, err
	}
	receipt, err := model.NewReceiptID(s.now())
	if err != nil {
		return nil, err
	}
	if err := s.orders.Complete(ctx, id, receipt); err != nil {
		if !errors.Is(err, repository.ErrConflict) {
			return nil, translate(err)
		}
		// Someone changed the order between the read and the write.
		fresh, lerr := s.orders.GetByID(ctx, id)
		if lerr != nil {
			return nil, translate(lerr)
		}
		if cerr := confirmable(fresh); cerr != nil {
			return nil, cerr
		}
		return nil, apperr.Conflict("order changed concurrently, retry")
	}
	o.Status = model.OrderCompleted
	o.ReceiptID = &receipt

	s.notify.NotifyOwners(ctx, o.OwnerIDs(), Message{
		Type:  model.NotifOrderCompleted,
		Title: "Order completed",
		Body:  fmt.Sprintf("Order #%d was confirmed by the customer. Receipt %s.", o.ID, receipt),
		Link:  fmt.Sprintf("/owner/orders/%d", o.ID),
	})
	s.publish(ctx, queue.EventOrderCompleted, o)
	return o, nil
}

// ListForOwner returns orders containing the owner's items.  Each order
// carries only that owner's lines.
func (s *OrderService) ListForOwner(ctx context.Context, ownerID uint64) ([]*model.Order, error) {
	return s.orders.ListByOwner(ctx, ownerID)
}

// UpdateStatus lets any owner supplying the order move it to any known
// status.  The user is notified of the change.
func (s *OrderService) UpdateStatus(ctx context.Context, ownerID, id uint64, status model.OrderStatus) (*model.Order, error) {
	if !status.Valid() {
		return nil, apperr.Validation("invalid status", apperr.FieldError{
			Field:   "status",
			Message: "must be one of pending, processing, shipped, delivered, completed, cancelled",
		})
	}
	o, err := Authorize(ctx, id, s.orders.GetByID, func(o *model.Order) bool {
		return o.SuppliedBy(ownerID)
	})
	if err != nil {
		return nil, err
	}
	if err := s.orders.UpdateStatus(ctx, id, status); err != nil {
		return nil, translate(err)
	}
	o.Status = status

	s.notify.NotifyUser(ctx, o.UserID, Message{
		Type:  model.NotifOrderStatus,
		Title: "Order update",
		Body:  fmt.Sprintf("Order #%d is now %s.", o.ID, status),
		Link:  fmt.Sprintf("/orders/%d", o.ID),
	})
	s.publish(ctx, queue.EventOrderStatusChanged, o)
	return o, nil
}
