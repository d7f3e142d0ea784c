package handler

import (
	"context"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marketplace-backend/internal/apperr"
	"github.com/iliyamo/marketplace-backend/internal/middleware"
	"github.com/iliyamo/marketplace-backend/internal/model"
)

// requestTimeout bounds the database work of a single request.
const requestTimeout = 5 * time.Second

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// pathID parses a positive integer path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("invalid "+name, apperr.FieldError{Field: name, Message: "must be a positive integer"})
	}
	return id, nil
}

// queryInt parses an optional integer query parameter, returning def
// when it is absent.
func queryInt(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation("invalid "+name, apperr.FieldError{Field: name, Message: "must be an integer"})
	}
	return n, nil
}

// caller returns the principal attached by the role middlewares.
func caller(c echo.Context) (model.Principal, error) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return model.Principal{}, apperr.Unauthenticated("authentication required")
	}
	return p, nil
}

// statusReq is the body of every PATCH .../status endpoint.
type statusReq struct {
	Status string `json:"status" validate:"required"`
}

// listResp wraps collections so responses can grow fields later.
type listResp[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func list[T any](items []T) listResp[T] {
	if items == nil {
		items = []T{}
	}
	return listResp[T]{Items: items, Count: len(items)}
}
