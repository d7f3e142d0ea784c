package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/marketplace-backend/internal/model"
)

// ShopRepo encapsulates all database queries related to shops.
type ShopRepo struct {
	db *sql.DB
}

// NewShopRepo constructs a ShopRepo with the provided DB handle.
func NewShopRepo(db *sql.DB) *ShopRepo {
	return &ShopRepo{db: db}
}

const shopCols = "id, owner_id, name, COALESCE(description, ''), address, created_at, updated_at"

func scanShop(s rowScanner) (*model.Shop, error) {
	var sh model.Shop
	if err := s.Scan(&sh.ID, &sh.OwnerID, &sh.Name, &sh.Description, &sh.Address, &sh.CreatedAt, &sh.UpdatedAt); err != nil {
		return nil, err
	}
	return &sh, nil
}

// Create inserts a shop and reloads it so timestamps are populated.
func (r *ShopRepo) Create(ctx context.Context, s *model.Shop) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO shops (owner_id, name, description, address) VALUES (?, ?, ?, ?)",
		s.OwnerID, s.Name, s.Description, s.Address)
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
	*s = *fresh
	return nil
}

// GetByID fetches a shop regardless of owner.
func (r *ShopRepo) GetByID(ctx context.Context, id uint64) (*model.Shop, error) {
	sh, err := scanShop(r.db.QueryRowContext(ctx, "SELECT "+shopCols+" FROM shops WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrShopNotFound
	}
	return sh, err
}

// List returns every shop ordered by id.
func (r *ShopRepo) List(ctx context.Context) ([]*model.Shop, error) {
	return r.list(ctx, "SELECT "+shopCols+" FROM shops ORDER BY id")
}

// ListByOwner returns the shops of one owner ordered by id.
func (r *ShopRepo) ListByOwner(ctx context.Context, ownerID uint64) ([]*model.Shop, error) {
	return r.list(ctx, "SELECT "+shopCols+" FROM shops WHERE owner_id = ? ORDER BY id", ownerID)
}

func (r *ShopRepo) list(ctx context.Context, q string, args ...any) ([]*model.Shop, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*model.Shop{}
	for rows.Next() {
		sh, err := scanShop(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}

// Update writes name, description and address.  Ownership has been
// checked by the caller.
func (r *ShopRepo) Update(ctx context.Context, s *model.Shop) error {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE shops SET name = ?, description = ?, address = ? WHERE id = ?",
		s.Name, s.Description, s.Address, s.ID); err != nil {
		return err
	}
	// RowsAffected is 0 for unchanged values, so existence is decided by the reload.
	fresh, err := r.GetByID(ctx, s.ID)
	if err != nil {
		return err
	}
	*s = *fresh
	return nil
}

// Delete removes a shop; its products cascade.
func (r *ShopRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM shops WHERE id = ?", id)
	if err != nil {
		return err
	}
	return mustAffect(res, ErrShopNotFound)
}
