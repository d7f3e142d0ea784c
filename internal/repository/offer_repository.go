package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/marketplace-backend/internal/model"
)

// OfferRepo stores user offers against Buying products.
type OfferRepo struct {
	db *sql.DB
}

func NewOfferRepo(db *sql.DB) *OfferRepo { return &OfferRepo{db: db} }

const offerSelect = `SELECT o.id, o.user_id, o.product_id, o.owner_id, p.name, o.price, o.quantity,
       COALESCE(o.message, ''), o.status, o.created_at, o.updated_at
FROM offers o
JOIN products p ON p.id = o.product_id`

func scanOffer(s rowScanner) (*model.Offer, error) {
	var o model.Offer
	if err := s.Scan(&o.ID, &o.UserID, &o.ProductID, &o.OwnerID, &o.ProductName, &o.Price, &o.Quantity,
		&o.Message, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

// Create inserts a pending offer.  OwnerID must already be resolved from
// the product's shop.
func (r *OfferRepo) Create(ctx context.Context, o *model.Offer) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO offers (user_id, product_id, owner_id, price, quantity, message, status) VALUES (?, ?, ?, ?, ?, ?, 'pending')",
		o.UserID, o.ProductID, o.OwnerID, o.Price, o.Quantity, o.Message)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	fresh, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*o = *fresh
	return nil
}

// GetByID fetches one offer.
func (r *OfferRepo) GetByID(ctx context.Context, id uint64) (*model.Offer, error) {
	o, err := scanOffer(r.db.QueryRowContext(ctx, offerSelect+" WHERE o.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOfferNotFound
	}
	return o, err
}

// ListByUser returns offers the user made, newest first.
func (r *OfferRepo) ListByUser(ctx context.Context, userID uint64) ([]*model.Offer, error) {
	return r.list(ctx, offerSelect+" WHERE o.user_id = ? ORDER BY o.created_at DESC, o.id DESC", userID)
}

// ListByOwner returns offers received by the owner, newest first.
func (r *OfferRepo) ListByOwner(ctx context.Context, ownerID uint64) ([]*model.Offer, error) {
	return r.list(ctx, offerSelect+" WHERE o.owner_id = ? ORDER BY o.created_at DESC, o.id DESC", ownerID)
}

func (r *OfferRepo) list(ctx context.Context, q string, args ...any) ([]*model.Offer, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*model.Offer{}
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// UpdateStatus sets any enumerated offer status.
func (r *OfferRepo) UpdateStatus(ctx context.Context, id uint64, status model.OfferStatus) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE offers SET status = ? WHERE id = ?", string(status), id); err != nil {
		return err
	}
	return nil
}
