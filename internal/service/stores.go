// Package service holds the marketplace business rules.  Services depend
// on the small store interfaces below rather than on concrete
// repositories; the MySQL repositories satisfy them in production and
// in-memory fakes do in tests.
package service

import (
	"context"
	"time"

	"github.com/iliyamo/marketplace-backend/internal/model"
	"github.com/iliyamo/marketplace-backend/internal/queue"
	"github.com/iliyamo/marketplace-backend/internal/repository"
)

// AccountStore persists users, owners and admins.
type AccountStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	CreateOwner(ctx context.Context, o *model.Owner) error
	GetUser(ctx context.Context, id uint64) (*model.User, error)
	GetOwner(ctx context.Context, id uint64) (*model.Owner, error)
	GetAccount(ctx context.Context, role model.Role, id uint64) (model.Account, error)
	GetAccountByEmail(ctx context.Context, role model.Role, email string) (model.Account, error)
	UpdateProfile(ctx context.Context, role model.Role, id uint64, p model.ProfileUpdate) (model.Account, error)
	UpdatePassword(ctx context.Context, role model.Role, id uint64, hash string) error
	SetOwnerApproved(ctx context.Context, id uint64, approved bool) error
	ListOwners(ctx context.Context, approved bool) ([]*model.Owner, error)
	ListUsers(ctx context.Context) ([]*model.User, error)
	ListAdminIDs(ctx context.Context) ([]uint64, error)
	ToggleWishlist(ctx context.Context, userID, productID uint64) ([]uint64, error)
	Stats(ctx context.Context) (repository.Stats, error)
}

// RefreshStore persists hashed refresh tokens.
type RefreshStore interface {
	StoreRefresh(ctx context.Context, role model.Role, accountID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (model.Role, uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllFor(ctx context.Context, role model.Role, accountID uint64) error
}

// ShopStore persists shops.
type ShopStore interface {
	Create(ctx context.Context, s *model.Shop) error
	GetByID(ctx context.Context, id uint64) (*model.Shop, error)
	List(ctx context.Context) ([]*model.Shop, error)
	ListByOwner(ctx context.Context, ownerID uint64) ([]*model.Shop, error)
	Update(ctx context.Context, s *model.Shop) error
	Delete(ctx context.Context, id uint64) error
}

// ProductStore persists products.
type ProductStore interface {
	ListApproved(ctx context.Context, q model.ProductQuery) ([]*model.Product, int, error)
	GetApproved(ctx context.Context, id uint64) (*model.Product, error)
	GetByID(ctx context.Context, id uint64) (*model.Product, error)
	ListByOwner(ctx context.Context, ownerID uint64) ([]*model.Product, error)
	ListByStatus(ctx context.Context, status model.ProductStatus) ([]*model.Product, error)
	Create(ctx context.Context, p *model.Product) error
	Update(ctx context.Context, p *model.Product) error
	Delete(ctx context.Context, id uint64) error
	SetStatus(ctx context.Context, id uint64, status model.ProductStatus) error
}

// OrderStore persists orders.  Place and Cancel are atomic.
type OrderStore interface {
	Place(ctx context.Context, userID uint64, lines []model.OrderLine, shippingAddress string) (*model.Order, error)
	GetByID(ctx context.Context, id uint64) (*model.Order, error)
	ListByUser(ctx context.Context, userID uint64) ([]*model.Order, error)
	ListByOwner(ctx context.Context, ownerID uint64) ([]*model.Order, error)
	UpdateStatus(ctx context.Context, id uint64, status model.OrderStatus) error
	Cancel(ctx context.Context, id, userID uint64) (*model.Order, error)
	Complete(ctx context.Context, id uint64, receiptID string) error
}

// OfferStore persists offers.
type OfferStore interface {
	Create(ctx context.Context, o *model.Offer) error
	GetByID(ctx context.Context, id uint64) (*model.Offer, error)
	ListByUser(ctx context.Context, userID uint64) ([]*model.Offer, error)
	ListByOwner(ctx context.Context, ownerID uint64) ([]*model.Offer, error)
	UpdateStatus(ctx context.Context, id uint64, status model.OfferStatus) error
}

// ChatStore persists chats and messages.
type ChatStore interface {
	GetOrCreate(ctx context.Context, orderID, userID, ownerID uint64) (*model.Chat, error)
	GetByID(ctx context.Context, id uint64) (*model.Chat, error)
	ListFor(ctx context.Context, role model.Role, id uint64) ([]*model.Chat, error)
	AddMessage(ctx context.Context, m *model.Message) error
	ListMessages(ctx context.Context, chatID uint64) ([]*model.Message, error)
	MarkRead(ctx context.Context, chatID uint64, reader model.Role) (int64, error)
	UnreadCount(ctx context.Context, role model.Role, id uint64) (int, error)
}

// NotificationStore persists notifications.
type NotificationStore interface {
	Create(ctx context.Context, n *model.Notification) error
	CreateMany(ctx context.Context, ns []*model.Notification) error
	GetByID(ctx context.Context, id uint64) (*model.Notification, error)
	ListFor(ctx context.Context, to model.Recipient, unreadOnly bool, limit int) ([]*model.Notification, error)
	UnreadCount(ctx context.Context, to model.Recipient) (int, error)
	MarkRead(ctx context.Context, id uint64) error
	MarkAllRead(ctx context.Context, to model.Recipient) (int64, error)
	Delete(ctx context.Context, id uint64) error
}

// EventPublisher ships order events to the broker.  Publishing is
// best-effort; a nil publisher disables it.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.OrderEvent) error
}

var (
	_ AccountStore      = (*repository.AccountRepo)(nil)
	_ RefreshStore      = (*repository.TokenRepo)(nil)
	_ ShopStore         = (*repository.ShopRepo)(nil)
	_ ProductStore      = (*repository.ProductRepo)(nil)
	_ OrderStore        = (*repository.OrderRepo)(nil)
	_ OfferStore        = (*repository.OfferRepo)(nil)
	_ ChatStore         = (*repository.ChatRepo)(nil)
	_ NotificationStore = (*repository.NotificationRepo)(nil)
	_ EventPublisher    = (*queue.Publisher)(nil)
)
