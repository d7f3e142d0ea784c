package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/marketplace-backend/internal/apperr"
	"github.com/iliyamo/marketplace-backend/internal/repository"
)

// translate lifts repository sentinels into the client-visible taxonomy.
// Errors it does not recognise are returned unchanged and end up as 500s.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.As(err); ok {
		return err
	}
	var stock *repository.InsufficientStockError
	if errors.As(err, &stock) {
		return apperr.InsufficientStock(fmt.Sprintf("insufficient stock for %s", stock.Name)).
			With("product_id", stock.ProductID).
			With("requested", stock.Requested).
			With("available", stock.Available)
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound(err.Error())
	case errors.Is(err, repository.ErrEmailExists):
		return apperr.EmailExists()
	case errors.Is(err, repository.ErrForbidden):
		return apperr.NotOwner()
	case errors.Is(err, repository.ErrConflict):
		return apperr.Conflict("resource changed concurrently")
	}
	return err
}
