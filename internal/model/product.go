package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Shop belongs to exactly one owner and lists products.
type Shop struct {
	ID          uint64    `json:"id"`
	OwnerID     uint64    `json:"owner_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Address     string    `json:"address"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProductStatus is the moderation state set by admins.
type ProductStatus string

const (
	ProductPending  ProductStatus = "pending"
	ProductApproved ProductStatus = "approved"
	ProductRejected ProductStatus = "rejected"
)

func (s ProductStatus) Valid() bool {
	switch s {
	case ProductPending, ProductApproved, ProductRejected:
		return true
	}
	return false
}

// ProductType distinguishes listings that sell goods from listings that
// ask users to sell goods to the shop (these accept offers).
type ProductType string

const (
	ProductBuying  ProductType = "Buying"
	ProductSelling ProductType = "Selling"
)

func (t ProductType) Valid() bool {
	return t == ProductBuying || t == ProductSelling
}

// Product represents a row in `products`.  OwnerID and ShopName are
// joined from `shops` on read.
type Product struct {
	ID          uint64          `json:"id"`
	ShopID      uint64          `json:"shop_id"`
	OwnerID     uint64          `json:"owner_id"`
	ShopName    string          `json:"shop_name,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	ImageURL    string          `json:"image_url"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Type        ProductType     `json:"type"`
	Status      ProductStatus   `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ProductQuery filters the public catalogue.
type ProductQuery struct {
	Search   string
	Type     ProductType
	Category string
	ShopID   uint64
	Page     int
	PageSize int
}

// Normalize clamps pagination to sane bounds.
func (q ProductQuery) Normalize() ProductQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = 20
	}
	if q.PageSize > 100 {
		q.PageSize = 100
	}
	return q
}

// Offset returns the row offset for the current page.
func (q ProductQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}
