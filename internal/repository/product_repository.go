package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/marketplace-backend/internal/model"
)

// ProductRepo provides access to products.  Every read joins shops so the
// returned product carries its owner id, which ownership checks rely on.
type ProductRepo struct {
	db *sql.DB
}

// NewProductRepo returns a ProductRepo bound to db.
func NewProductRepo(db *sql.DB) *ProductRepo { return &ProductRepo{db: db} }

const productSelect = `SELECT p.id, p.shop_id, s.owner_id, s.name, p.name, COALESCE(p.description, ''),
       p.category, p.image_url, p.price, p.stock, p.type, p.status, p.created_at, p.updated_at
FROM products p
JOIN shops s ON s.id = p.shop_id`

func scanProduct(s rowScanner) (*model.Product, error) {
	var p model.Product
	if err := s.Scan(&p.ID, &p.ShopID, &p.OwnerID, &p.ShopName, &p.Name, &p.Description,
		&p.Category, &p.ImageURL, &p.Price, &p.Stock, &p.Type, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProductRepo) list(ctx context.Context, q string, args ...any) ([]*model.Product, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*model.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListApproved returns one page of the public catalogue and the total
// number of matching rows.  Only approved products are ever considered.
func (r *ProductRepo) ListApproved(ctx context.Context, q model.ProductQuery) ([]*model.Product, int, error) {
	q = q.Normalize()
	where := []string{"p.status = 'approved'"}
	args := []any{}
	if s := strings.TrimSpace(q.Search); s != "" {
		where = append(where, "(p.name LIKE ? OR p.description LIKE ?)")
		like := "%" + s + "%"
		args = append(args, like, like)
	}
	if q.Type != "" {
		where = append(where, "p.type = ?")
		args = append(args, string(q.Type))
	}
	if q.Category != "" {
		where = append(where, "p.category = ?")
		args = append(args, q.Category)
	}
	if q.ShopID != 0 {
		where = append(where, "p.shop_id = ?")
		args = append(args, q.ShopID)
	}
	cond := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products p"+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	pageArgs := append(append([]any{}, args...), q.PageSize, q.Offset())
	items, err := r.list(ctx, productSelect+cond+" ORDER BY p.created_at DESC, p.id DESC LIMIT ? OFFSET ?", pageArgs...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// GetApproved fetches a product only if it is approved.  Pending and
// rejected products are reported as not found.
func (r *ProductRepo) GetApproved(ctx context.Context, id uint64) (*model.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, productSelect+" WHERE p.id = ? AND p.status = 'approved'", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	return p, err
}

// GetByID fetches a product in any moderation state.
func (r *ProductRepo) GetByID(ctx context.Context, id uint64) (*model.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, productSelect+" WHERE p.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	return p, err
}

// ListByOwner returns every product across the owner's shops.
func (r *ProductRepo) ListByOwner(ctx context.Context, ownerID uint64) ([]*model.Product, error) {
	return r.list(ctx, productSelect+" WHERE s.owner_id = ? ORDER BY p.id DESC", ownerID)
}

// ListByStatus returns products in one moderation state, oldest first so
// the moderation queue is worked in arrival order.
func (r *ProductRepo) ListByStatus(ctx context.Context, status model.ProductStatus) ([]*model.Product, error) {
	return r.list(ctx, productSelect+" WHERE p.status = ? ORDER BY p.created_at, p.id", string(status))
}

// Create inserts a product in pending state.
func (r *ProductRepo) Create(ctx context.Context, p *model.Product) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO products (shop_id, name, description, category, image_url, price, stock, type, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'pending')`,
		p.ShopID, p.Name, p.Description, p.Category, p.ImageURL, p.Price, p.Stock, string(p.Type))
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
	*p = *fresh
	return nil
}

// Update writes the editable fields and puts the product back into the
// moderation queue.
func (r *ProductRepo) Update(ctx context.Context, p *model.Product) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE products SET name = ?, description = ?, category = ?, image_url = ?, price = ?, stock = ?, type = ?, status = 'pending'
		 WHERE id = ?`,
		p.Name, p.Description, p.Category, p.ImageURL, p.Price, p.Stock, string(p.Type), p.ID); err != nil {
		return err
	}
	fresh, err := r.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	*p = *fresh
	return nil
}

// Delete removes a product.
func (r *ProductRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM products WHERE id = ?", id)
	if err != nil {
		return err
	}
	return mustAffect(res, ErrProductNotFound)
}

// SetStatus records a moderation decision.
func (r *ProductRepo) SetStatus(ctx context.Context, id uint64, status model.ProductStatus) error {
	res, err := r.db.ExecContext(ctx, "UPDATE products SET status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		_, err := r.GetByID(ctx, id)
		return err
	}
	return nil
}
