package service

import (
	"context"
	"strings"

	"github.com/iliyamo/marketplace-backend/internal/model"
)

// ShopInput is the body of POST and PUT /api/shops.
type ShopInput struct {
	Name        string `json:"name" validate:"required,max=160"`
	Description string `json:"description" validate:"omitempty,max=2000"`
	Address     string `json:"address" validate:"required,max=255"`
}

// ShopService exposes the public shop directory and owner shop CRUD.
type ShopService struct {
	shops ShopStore
}

func NewShopService(shops ShopStore) *ShopService {
	return &ShopService{shops: shops}
}

func (s *ShopService) List(ctx context.Context) ([]*model.Shop, error) {
	return s.shops.List(ctx)
}

func (s *ShopService) Get(ctx context.Context, id uint64) (*model.Shop, error) {
	sh, err := s.shops.GetByID(ctx, id)
	return sh, translate(err)
}

func (s *ShopService) ListMine(ctx context.Context, ownerID uint64) ([]*model.Shop, error) {
	return s.shops.ListByOwner(ctx, ownerID)
}

// Create opens a shop for ownerID.
func (s *ShopService) Create(ctx context.Context, ownerID uint64, in ShopInput) (*model.Shop, error) {
	sh := &model.Shop{
		OwnerID:     ownerID,
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Address:     strings.TrimSpace(in.Address),
	}
	if err := s.shops.Create(ctx, sh); err != nil {
		return nil, translate(err)
	}
	return sh, nil
}

// Owned loads a shop and checks it belongs to ownerID.
func (s *ShopService) Owned(ctx context.Context, ownerID, id uint64) (*model.Shop, error) {
	return Authorize(ctx, id, s.shops.GetByID, func(sh *model.Shop) bool {
		return sh.OwnerID == ownerID
	})
}

func (s *ShopService) Update(ctx context.Context, ownerID, id uint64, in ShopInput) (*model.Shop, error) {
	sh, err := s.Owned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	sh.Name = strings.TrimSpace(in.Name)
	sh.Description = strings.TrimSpace(in.Description)
	sh.Address = strings.TrimSpace(in.Address)
	if err := s.shops.Update(ctx, sh); err != nil {
		return nil, translate(err)
	}
	return sh, nil
}

// Delete removes a shop; its products go with it through the foreign key.
func (s *ShopService) Delete(ctx context.Context, ownerID, id uint64) error {
	if _, err := s.Owned(ctx, ownerID, id); err != nil {
		return err
	}
	return translate(s.shops.Delete(ctx, id))
}
