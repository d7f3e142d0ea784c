package service

import (
	"context"

	"github.com/iliyamo/marketplace-backend/internal/apperr"
)

// Loader fetches a resource by id.  Repository GetByID methods fit.
type Loader[T any] func(ctx context.Context, id uint64) (T, error)

// Authorize is the single ownership check used by every mutating
// operation: it loads the resource (propagating not-found) and then asks
// owns whether the caller may act on it.  A false answer is NOT_OWNER.
func Authorize[T any](ctx context.Context, id uint64, load Loader[T], owns func(T) bool) (T, error) {
	var zero T
	res, err := load(ctx, id)
	if err != nil {
		return zero, translate(err)
	}
	if !owns(res) {
		return zero, apperr.NotOwner()
	}
	return res, nil
}
