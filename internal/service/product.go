package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/marketplace-backend/internal/apperr"
	"github.com/iliyamo/marketplace-backend/internal/model"
)

// ProductInput is the body of POST and PUT /api/products.  ShopID is
// ignored on update; products do not move between shops.
type ProductInput struct {
	ShopID      uint64          `json:"shop_id"`
	Name        string          `json:"name" validate:"required,max=200"`
	Description string          `json:"description" validate:"omitempty,max=5000"`
	Category    string          `json:"category" validate:"omitempty,max=100"`
	ImageURL    string          `json:"image_url" validate:"omitempty,url,max=500"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock" validate:"min=0"`
	Type        string          `json:"type" validate:"required,oneof=Buying Selling"`
}

func (in ProductInput) check() error {
	if in.Price.IsNegative() {
		return apperr.Validation("invalid product", apperr.FieldError{Field: "price", Message: "must not be negative"})
	}
	if !model.ProductType(in.Type).Valid() {
		return apperr.Validation("invalid product", apperr.FieldError{Field: "type", Message: "must be Buying or Selling"})
	}
	return nil
}

func (in ProductInput) apply(p *model.Product) {
	p.Name = strings.TrimSpace(in.Name)
	p.Description = strings.TrimSpace(in.Description)
	p.Category = strings.TrimSpace(in.Category)
	p.ImageURL = strings.TrimSpace(in.ImageURL)
	p.Price = in.Price
	p.Stock = in.Stock
	p.Type = model.ProductType(in.Type)
}

// ProductService serves the public catalogue, owner product management
// and admin moderation.  Public reads only ever see approved products.
type ProductService struct {
	products ProductStore
	shops    *ShopService
	notify   *Notifier
}

func NewProductService(products ProductStore, shops *ShopService, notify *Notifier) *ProductService {
	return &ProductService{products: products, shops: shops, notify: notify}
}

// List returns one page of approved products and the total match count.
func (s *ProductService) List(ctx context.Context, q model.ProductQuery) ([]*model.Product, int, error) {
	return s.products.ListApproved(ctx, q.Normalize())
}

// Get returns an approved product.  Pending and rejected products are
// reported as not found.
func (s *ProductService) Get(ctx context.Context, id uint64) (*model.Product, error) {
	p, err := s.products.GetApproved(ctx, id)
	return p, translate(err)
}

func (s *ProductService) ListMine(ctx context.Context, ownerID uint64) ([]*model.Product, error) {
	return s.products.ListByOwner(ctx, ownerID)
}

func (s *ProductService) ListByStatus(ctx context.Context, status model.ProductStatus) ([]*model.Product, error) {
	if !status.Valid() {
		return nil, apperr.Validation("invalid status", apperr.FieldError{Field: "status", Message: "must be pending, approved or rejected"})
	}
	return s.products.ListByStatus(ctx, status)
}

func (s *ProductService) owned(ctx context.Context, ownerID, id uint64) (*model.Product, error) {
	return Authorize(ctx, id, s.products.GetByID, func(p *model.Product) bool {
		return p.OwnerID == ownerID
	})
}

func (s *ProductService) queueForReview(ctx context.Context, p *model.Product, verb string) {
	s.notify.NotifyAdmins(ctx, Message{
		Type:  model.NotifProductPending,
		Title: "Product awaiting review",
		Body:  fmt.Sprintf("%q was %s and needs moderation.", p.Name, verb),
		Link:  fmt.Sprintf("/admin/products/%d", p.ID),
	})
}

// Create adds a pending product to one of the owner's shops and asks the
// admins to review it.
func (s *ProductService) Create(ctx context.Context, ownerID uint64, in ProductInput) (*model.Product, error) {
	if err := in.check(); err != nil {
		return nil, err
	}
	if in.ShopID == 0 {
		return nil, apperr.Validation("invalid product", apperr.FieldError{Field: "shop_id", Message: "is required"})
	}
	if _, err := s.shops.Owned(ctx, ownerID, in.ShopID); err != nil {
		return nil, err
	}
	p := &model.Product{ShopID: in.ShopID}
	in.apply(p)
	if err := s.products.Create(ctx, p); err != nil {
		return nil, translate(err)
	}
	s.queueForReview(ctx, p, "created")
	return p, nil
}

// Update edits an owned product.  Any edit sends the product back to
// pending so changed listings are re-reviewed.
func (s *ProductService) Update(ctx context.Context, ownerID, id uint64, in ProductInput) (*model.Product, error) {
	if err := in.check(); err != nil {
		return nil, err
	}
	p, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	in.apply(p)
	if err := s.products.Update(ctx, p); err != nil {
		return nil, translate(err)
	}
	s.queueForReview(ctx, p, "updated")
	return p, nil
}

func (s *ProductService) Delete(ctx context.Context, ownerID, id uint64) error {
	if _, err := s.owned(ctx, ownerID, id); err != nil {
		return err
	}
	return translate(s.products.Delete(ctx, id))
}

// Moderate records an admin decision and tells the owner about it.
func (s *ProductService) Moderate(ctx context.Context, id uint64, status model.ProductStatus) (*model.Product, error) {
	if status != model.ProductApproved && status != model.ProductRejected {
		return nil, apperr.Validation("invalid status", apperr.FieldError{Field: "status", Message: "must be approved or rejected"})
	}
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if err := s.products.SetStatus(ctx, id, status); err != nil {
		return nil, translate(err)
	}
	p.Status = status

	m := Message{
		Type:  model.NotifProductApproved,
		Title: "Product approved",
		Body:  fmt.Sprintf("%q is now visible in the catalogue.", p.Name),
		Link:  fmt.Sprintf("/products/%d", p.ID),
	}
	if status == model.ProductRejected {
		m = Message{
			Type:  model.NotifProductRejected,
			Title: "Product rejected",
			Body:  fmt.Sprintf("%q was rejected by a moderator.", p.Name),
			Link:  fmt.Sprintf("/owner/products/%d", p.ID),
		}
	}
	s.notify.NotifyOwner(ctx, p.OwnerID, m)
	return p, nil
}
