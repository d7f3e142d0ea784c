package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

// Order represents a row in `orders` plus its items.
type Order struct {
	ID              uint64          `json:"id"`
	UserID          uint64          `json:"user_id"`
	Status          OrderStatus     `json:"status"`
	Total           decimal.Decimal `json:"total"`
	ShippingAddress string          `json:"shipping_address"`
	ReceiptID       *string         `json:"receipt_id"`
	Items           []OrderItem     `json:"items"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// OrderItem snapshots a product line at order time.  Price is the product
// price when the order was placed, not the live price.
type OrderItem struct {
	ID          uint64          `json:"id"`
	OrderID     uint64          `json:"order_id"`
	ProductID   uint64          `json:"product_id"`
	ShopID      uint64          `json:"shop_id"`
	OwnerID     uint64          `json:"owner_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

// Subtotal is Price × Quantity.
func (it OrderItem) Subtotal() decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// OrderLine is one requested line of a new order.
type OrderLine struct {
	ProductID uint64 `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

// OwnerIDs returns the distinct owners supplying the order, in item order.
func (o *Order) OwnerIDs() []uint64 {
	seen := make(map[uint64]struct{}, len(o.Items))
	out := make([]uint64, 0, len(o.Items))
	for _, it := range o.Items {
		if _, ok := seen[it.OwnerID]; ok {
			continue
		}
		seen[it.OwnerID] = struct{}{}
		out = append(out, it.OwnerID)
	}
	return out
}

// SuppliedBy reports whether ownerID supplies at least one item.
func (o *Order) SuppliedBy(ownerID uint64) bool {
	for _, it := range o.Items {
		if it.OwnerID == ownerID {
			return true
		}
	}
	return false
}

// ComputeTotal sums item subtotals.
func ComputeTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}
