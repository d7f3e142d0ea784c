package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/marketplace-backend/internal/apperr"
	"github.com/iliyamo/marketplace-backend/internal/model"
)

// CreateOfferInput is the body of POST /api/offers.
type CreateOfferInput struct {
	ProductID uint64          `json:"product_id" validate:"required"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity" validate:"required,min=1"`
	Message   string          `json:"message" validate:"omitempty,max=2000"`
}

// OfferService handles user offers against Buying products.
type OfferService struct {
	offers   OfferStore
	products ProductStore
	notify   *Notifier
}

func NewOfferService(offers OfferStore, products ProductStore, notify *Notifier) *OfferService {
	return &OfferService{offers: offers, products: products, notify: notify}
}

// Create submits an offer to sell into an approved Buying product and
// notifies the product's owner.
func (s *OfferService) Create(ctx context.Context, userID uint64, in CreateOfferInput) (*model.Offer, error) {
	if !in.Price.IsPositive() {
		return nil, apperr.Validation("invalid offer", apperr.FieldError{Field: "price", Message: "must be greater than zero"})
	}
	if in.Quantity < 1 {
		return nil, apperr.Validation("invalid offer", apperr.FieldError{Field: "quantity", Message: "must be at least 1"})
	}
	p, err := s.products.GetApproved(ctx, in.ProductID)
	if err != nil {
		return nil, translate(err)
	}
	if p.Type != model.ProductBuying {
		return nil, apperr.InvalidState("offers can only be made on Buying products")
	}
	o := &model.Offer{
		UserID:    userID,
		ProductID: p.ID,
		OwnerID:   p.OwnerID,
		Price:     in.Price,
		Quantity:  in.Quantity,
		Message:   strings.TrimSpace(in.Message),
	}
	if err := s.offers.Create(ctx, o); err != nil {
		return nil, translate(err)
	}
	s.notify.NotifyOwner(ctx, o.OwnerID, Message{
		Type:  model.NotifOfferReceived,
		Title: "New offer",
		Body:  fmt.Sprintf("You received an offer of %s x%d for %q.", o.Price.StringFixed(2), o.Quantity, p.Name),
		Link:  fmt.Sprintf("/owner/offers/%d", o.ID),
	})
	return o, nil
}

func (s *OfferService) ListMine(ctx context.Context, userID uint64) ([]*model.Offer, error) {
	return s.offers.ListByUser(ctx, userID)
}

func (s *OfferService) ListReceived(ctx context.Context, ownerID uint64) ([]*model.Offer, error) {
	return s.offers.ListByOwner(ctx, ownerID)
}

// UpdateStatus lets the receiving owner set any known offer status and
// tells the user who made the offer.
func (s *OfferService) UpdateStatus(ctx context.Context, ownerID, id uint64, status model.OfferStatus) (*model.Offer, error) {
	if !status.Valid() {
		return nil, apperr.Validation("invalid status", apperr.FieldError{Field: "status", Message: "must be pending, accepted or rejected"})
	}
	o, err := Authorize(ctx, id, s.offers.GetByID, func(o *model.Offer) bool {
		return o.OwnerID == ownerID
	})
	if err != nil {
		return nil, err
	}
	if err := s.offers.UpdateStatus(ctx, id, status); err != nil {
		return nil, translate(err)
	}
	o.Status = status
	s.notify.NotifyUser(ctx, o.UserID, Message{
		Type:  model.NotifOfferStatus,
		Title: "Offer update",
		Body:  fmt.Sprintf("Your offer for %q is now %s.", o.ProductName, status),
		Link:  fmt.Sprintf("/offers/%d", o.ID),
	})
	return o, nil
}
