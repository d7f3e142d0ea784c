package middleware

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marketplace-backend/internal/apperr"
	"github.com/iliyamo/marketplace-backend/internal/model"
	"github.com/iliyamo/marketplace-backend/internal/utils"
)

// Context keys under which the middlewares store the caller.
const (
	identityKey  = "identity"
	principalKey = "principal"
)

// IdentityFrom returns the identity attached by Identify.
func IdentityFrom(c echo.Context) (model.Identity, bool) {
	id, ok := c.Get(identityKey).(model.Identity)
	return id, ok
}

// PrincipalFrom returns the principal attached by RequireRole.  Routes
// guarded by RequireAnyRole get a principal without an Account.
func PrincipalFrom(c echo.Context) (model.Principal, bool) {
	p, ok := c.Get(principalKey).(model.Principal)
	return p, ok
}

// rawToken reads the session cookie first and falls back to the
// Authorization header.
func rawToken(c echo.Context, cookieName string) (string, bool) {
	if ck, err := c.Cookie(cookieName); err == nil && ck.Value != "" {
		return ck.Value, true
	}
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	const prefix = "Bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		if tok := strings.TrimSpace(auth[len(prefix):]); tok != "" {
			return tok, true
		}
	}
	return "", false
}

// Identify resolves the caller from the session cookie or a Bearer token
// and stores the verified identity in the context.  A request carrying
// neither is UNAUTHENTICATED; a token that fails verification for any
// reason is INVALID_TOKEN.
func Identify(secret, cookieName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := rawToken(c, cookieName)
			if !ok {
				return apperr.Unauthenticated("authentication required")
			}
			id, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return apperr.InvalidToken()
			}
			c.Set(identityKey, id)
			return next(c)
		}
	}
}

// OptionalIdentify attaches the identity when a valid token is present
// and otherwise lets the request through anonymously.
func OptionalIdentify(secret, cookieName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if raw, ok := rawToken(c, cookieName); ok {
				if id, err := utils.ParseAccessToken(secret, raw); err == nil {
					c.Set(identityKey, id)
				}
			}
			return next(c)
		}
	}
}

// subject names the caller for rate limiting keys.
func subject(c echo.Context) string {
	if id, ok := IdentityFrom(c); ok {
		return string(id.Role) + "-" + strconv.FormatUint(id.ID, 10)
	}
	return "anon"
}
