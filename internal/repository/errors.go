// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services and the HTTP error handler to distinguish between different
// failure scenarios without inspecting driver errors.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is wrapped by every "x not found" error so callers can test
// with errors.Is regardless of the entity.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an update cannot be performed because the
// row is no longer in the state the caller expected, such as cancelling
// an order that has already been processed.
var ErrConflict = errors.New("conflict")

// ErrEmailExists is returned when an account email is already registered.
var ErrEmailExists = errors.New("email already exists")

var (
	ErrUserNotFound         = fmt.Errorf("user %w", ErrNotFound)
	ErrOwnerNotFound        = fmt.Errorf("owner %w", ErrNotFound)
	ErrAdminNotFound        = fmt.Errorf("admin %w", ErrNotFound)
	ErrShopNotFound         = fmt.Errorf("shop %w", ErrNotFound)
	ErrProductNotFound      = fmt.Errorf("product %w", ErrNotFound)
	ErrOrderNotFound        = fmt.Errorf("order %w", ErrNotFound)
	ErrOfferNotFound        = fmt.Errorf("offer %w", ErrNotFound)
	ErrChatNotFound         = fmt.Errorf("chat %w", ErrNotFound)
	ErrNotificationNotFound = fmt.Errorf("notification %w", ErrNotFound)
)

// InsufficientStockError reports the first order line that cannot be
// served.  No stock has been modified when it is returned.
type InsufficientStockError struct {
	ProductID uint64
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: requested %d, available %d", e.Name, e.Requested, e.Available)
}

// MissingProductError reports an order line naming an unknown or
// unlisted product.  It matches ErrProductNotFound.
type MissingProductError struct {
	ProductID uint64
}

func (e *MissingProductError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

func (e *MissingProductError) Is(target error) bool {
	return target == ErrProductNotFound || target == ErrNotFound
}

// isDuplicate reports a MySQL unique-key violation (error 1062).
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return err != nil && strings.Contains(err.Error(), "1062")
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// mustAffect converts a zero RowsAffected into notFound.
func mustAffect(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// placeholders returns "?,?,?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
