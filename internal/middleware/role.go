package middleware

import (
	"context"
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marketplace-backend/internal/apperr"
	"github.com/iliyamo/marketplace-backend/internal/model"
	"github.com/iliyamo/marketplace-backend/internal/repository"
)

// AccountLoader loads the account named by a token.  AccountRepo fits.
type AccountLoader interface {
	GetAccount(ctx context.Context, role model.Role, id uint64) (model.Account, error)
}

// RequireRole admits only callers whose token carries role.  The account
// is reloaded on every request so deleted accounts stop working at once,
// and owners are held at PENDING_APPROVAL until an admin approves them.
// It must run after Identify.
func RequireRole(role model.Role, accounts AccountLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok {
				return apperr.Unauthenticated("authentication required")
			}
			if id.Role != role {
				return apperr.WrongRole()
			}
			acc, err := accounts.GetAccount(c.Request().Context(), id.Role, id.ID)
			if errors.Is(err, repository.ErrNotFound) {
				return apperr.StaleCredential()
			}
			if err != nil {
				return err
			}
			if o, isOwner := acc.(*model.Owner); isOwner && !o.Approved {
				return apperr.PendingApproval()
			}
			// The stored email wins over the one frozen into the token.
			id.Email = acc.AccountEmail()
			c.Set(principalKey, model.Principal{Identity: id, Account: acc})
			return next(c)
		}
	}
}

// RequireAnyRole admits callers whose token carries one of roles without
// touching the database.
func RequireAnyRole(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok {
				return apperr.Unauthenticated("authentication required")
			}
			if !allowed[id.Role] {
				return apperr.WrongRole()
			}
			c.Set(principalKey, model.Principal{Identity: id})
			return next(c)
		}
	}
}
