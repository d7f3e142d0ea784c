package repository

import (
	"context"
	"database/sql"
	"errors"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/marketplace-backend/internal/model"
)

// OrderRepo persists orders and their items.  Placing and cancelling an
// order touch product stock and run inside a single transaction.
type OrderRepo struct {
	db *sql.DB
}

// NewOrderRepo returns a new OrderRepo bound to the given database.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

const (
	orderCols     = "id, user_id, status, total, shipping_address, receipt_id, created_at, updated_at"
	orderItemCols = "id, order_id, product_id, shop_id, owner_id, product_name, quantity, price"
)

func scanOrder(s rowScanner) (*model.Order, error) {
	var (
		o       model.Order
		receipt sql.NullString
	)
	if err := s.Scan(&o.ID, &o.UserID, &o.Status, &o.Total, &o.ShippingAddress, &receipt, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	if receipt.Valid {
		v := receipt.String
		o.ReceiptID = &v
	}
	o.Items = []model.OrderItem{}
	return &o, nil
}

// lockedProduct is the slice of a product row needed to price and
// reserve an order line.
type lockedProduct struct {
	id       uint64
	shopID   uint64
	ownerID  uint64
	name     string
	price    decimal.Decimal
	stock    int
	reserved int
}

// Place creates an order for userID from lines.  The distinct products
// are locked with SELECT ... FOR UPDATE in ascending id order, so two
// checkouts naming the same products in a different order queue on each
// other instead of deadlocking.  Every line is then checked, in request
// order, before the first write, so a failing line leaves stock
// untouched.  Prices are snapshotted into the items.  A
// *MissingProductError or *InsufficientStockError describes the first
// line that could not be served.
func (r *OrderRepo) Place(ctx context.Context, userID uint64, lines []model.OrderLine, shippingAddress string) (*model.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const lockQ = `SELECT p.id, p.shop_id, s.owner_id, p.name, p.price, p.stock, p.status
FROM products p
JOIN shops s ON s.id = p.shop_id
WHERE p.id = ? FOR UPDATE`

	order := distinctProductIDs(lines)
	locked := make(map[uint64]*lockedProduct, len(order))
	for _, pid := range order {
		lp := &lockedProduct{}
		var status model.ProductStatus
		err := tx.QueryRowContext(ctx, lockQ, pid).Scan(
			&lp.id, &lp.shopID, &lp.ownerID, &lp.name, &lp.price, &lp.stock, &status)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if status == model.ProductApproved {
			locked[pid] = lp
		}
	}

	items := make([]model.OrderItem, 0, len(lines))
	for _, line := range lines {
		lp, ok := locked[line.ProductID]
		if !ok {
			return nil, &MissingProductError{ProductID: line.ProductID}
		}
		if lp.reserved+line.Quantity > lp.stock {
			return nil, &InsufficientStockError{
				ProductID: lp.id,
				Name:      lp.name,
				Requested: lp.reserved + line.Quantity,
				Available: lp.stock,
			}
		}
		lp.reserved += line.Quantity
		items = append(items, model.OrderItem{
			ProductID:   lp.id,
			ShopID:      lp.shopID,
			OwnerID:     lp.ownerID,
			ProductName: lp.name,
			Quantity:    line.Quantity,
			Price:       lp.price,
		})
	}

	total := model.ComputeTotal(items)
	res, err := tx.ExecContext(ctx,
		"INSERT INTO orders (user_id, status, total, shipping_address) VALUES (?, 'pending', ?, ?)",
		userID, total, shippingAddress)
	if err != nil {
		return nil, err
	}
	id64, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	orderID := uint64(id64)

	for _, pid := range order {
		lp := locked[pid]
		if _, err := tx.ExecContext(ctx, "UPDATE products SET stock = stock - ? WHERE id = ?", lp.reserved, pid); err != nil {
			return nil, err
		}
	}

	q := "INSERT INTO order_items (order_id, product_id, shop_id, owner_id, product_name, quantity, price) VALUES "
	args := make([]any, 0, len(items)*7)
	for i, it := range items {
		if i > 0 {
			q += ","
		}
		q += "(?, ?, ?, ?, ?, ?, ?)"
		args = append(args, orderID, it.ProductID, it.ShopID, it.OwnerID, it.ProductName, it.Quantity, it.Price)
	}
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return r.GetByID(ctx, orderID)
}

// distinctProductIDs returns the product ids named by lines, once each,
// in ascending order.
func distinctProductIDs(lines []model.OrderLine) []uint64 {
	ids := make([]uint64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

// GetByID loads an order with all of its items.
func (r *OrderRepo) GetByID(ctx context.Context, id uint64) (*model.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, "SELECT "+orderCols+" FROM orders WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := r.attachItems(ctx, []*model.Order{o}, 0); err != nil {
		return nil, err
	}
	return o, nil
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepo) ListByUser(ctx context.Context, userID uint64) ([]*model.Order, error) {
	out, err := r.list(ctx, "SELECT "+orderCols+" FROM orders WHERE user_id = ? ORDER BY created_at DESC, id DESC", userID)
	if err != nil {
		return nil, err
	}
	return out, r.attachItems(ctx, out, 0)
}

// ListByOwner returns orders containing at least one item supplied by
// ownerID.  Only that owner's items are attached.
func (r *OrderRepo) ListByOwner(ctx context.Context, ownerID uint64) ([]*model.Order, error) {
	out, err := r.list(ctx, `SELECT `+orderCols+` FROM orders
WHERE id IN (SELECT DISTINCT order_id FROM order_items WHERE owner_id = ?)
ORDER BY created_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	return out, r.attachItems(ctx, out, ownerID)
}

func (r *OrderRepo) list(ctx context.Context, q string, args ...any) ([]*model.Order, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*model.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// attachItems loads items for orders in one query.  A non-zero ownerID
// restricts the items to that owner.
func (r *OrderRepo) attachItems(ctx context.Context, orders []*model.Order, ownerID uint64) error {
	if len(orders) == 0 {
		return nil
	}
	byID := make(map[uint64]*model.Order, len(orders))
	args := make([]any, 0, len(orders)+1)
	for _, o := range orders {
		byID[o.ID] = o
		args = append(args, o.ID)
	}
	q := "SELECT " + orderItemCols + " FROM order_items WHERE order_id IN (" + placeholders(len(orders)) + ")"
	if ownerID != 0 {
		q += " AND owner_id = ?"
		args = append(args, ownerID)
	}
	q += " ORDER BY order_id, id"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ShopID, &it.OwnerID, &it.ProductName, &it.Quantity, &it.Price); err != nil {
			return err
		}
		if o, ok := byID[it.OrderID]; ok {
			o.Items = append(o.Items, it)
		}
	}
	return rows.Err()
}

// UpdateStatus sets any enumerated status.  Transition rules, if any,
// belong to the caller.
func (r *OrderRepo) UpdateStatus(ctx context.Context, id uint64, status model.OrderStatus) error {
	res, err := r.db.ExecContext(ctx, "UPDATE orders SET status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var one int
		err := r.db.QueryRowContext(ctx, "SELECT 1 FROM orders WHERE id = ?", id).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrOrderNotFound
		}
		return err
	}
	return nil
}

// Cancel moves a pending order owned by userID to cancelled and returns
// the reserved stock, all in one transaction.  ErrConflict means the
// order is no longer pending.
func (r *OrderRepo) Cancel(ctx context.Context, id, userID uint64) (*model.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var (
		owner  uint64
		status model.OrderStatus
	)
	err = tx.QueryRowContext(ctx, "SELECT user_id, status FROM orders WHERE id = ? FOR UPDATE", id).Scan(&owner, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if owner != userID {
		return nil, ErrForbidden
	}
	if status != model.OrderPending {
		return nil, ErrConflict
	}

	rows, err := tx.QueryContext(ctx, "SELECT product_id, SUM(quantity) FROM order_items WHERE order_id = ? GROUP BY product_id ORDER BY product_id", id)
	if err != nil {
		return nil, err
	}
	type restock struct {
		productID uint64
		qty       int
	}
	var back []restock
	for rows.Next() {
		var rs restock
		if err := rows.Scan(&rs.productID, &rs.qty); err != nil {
			rows.Close()
			return nil, err
		}
		back = append(back, rs)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, rs := range back {
		if _, err := tx.ExecContext(ctx, "UPDATE products SET stock = stock + ? WHERE id = ?", rs.qty, rs.productID); err != nil {
			return nil, err
		}
	}
	if _, err := tx.ExecContext(ctx, "UPDATE orders SET status = 'cancelled' WHERE id = ?", id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return r.GetByID(ctx, id)
}

// Complete stamps receiptID and moves a delivered, unreceipted order to
// completed.  ErrConflict means another request got there first or the
// order left the delivered state.
func (r *OrderRepo) Complete(ctx context.Context, id uint64, receiptID string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE orders SET status = 'completed', receipt_id = ? WHERE id = ? AND status = 'delivered' AND receipt_id IS NULL",
		strings.TrimSpace(receiptID), id)
	if err != nil {
		return err
	}
	return mustAffect(res, ErrConflict)
}
