package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/marketplace-backend/internal/apperr"
	"github.com/iliyamo/marketplace-backend/internal/repository"
)

// errorBody is the JSON shape of every error response.  Meta entries
// (for example receipt_id on ALREADY_CONFIRMED) are merged in at the top
// level.
type errorBody map[string]any

// toAppErr maps any error onto the client taxonomy.  The second result is
// false when the error was not recognised and must be logged as a 500.
func toAppErr(err error) (*apperr.Error, bool) {
	if ae, ok := apperr.As(err); ok {
		return ae, true
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		}
		return &apperr.Error{Kind: kindFor(he.Code), Code: codeFor(he.Code), Message: strings.ToLower(msg)}, true
	}
	var stock *repository.InsufficientStockError
	switch {
	case errors.As(err, &stock):
		return apperr.InsufficientStock(stock.Error()), true
	case errors.Is(err, sql.ErrNoRows):
		return apperr.NotFound("not found"), true
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound(err.Error()), true
	case errors.Is(err, repository.ErrEmailExists):
		return apperr.EmailExists(), true
	case errors.Is(err, repository.ErrForbidden):
		return apperr.NotOwner(), true
	case errors.Is(err, repository.ErrConflict):
		return apperr.Conflict("resource changed concurrently"), true
	}
	return apperr.Internal("internal server error"), false
}

func kindFor(status int) apperr.Kind {
	switch status {
	case http.StatusUnauthorized:
		return apperr.KindUnauthenticated
	case http.StatusForbidden:
		return apperr.KindForbidden
	case http.StatusNotFound:
		return apperr.KindNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
		return apperr.KindValidation
	case http.StatusConflict:
		return apperr.KindConflict
	}
	return apperr.KindInternal
}

func codeFor(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return apperr.CodeUnauthenticated
	case http.StatusForbidden:
		return apperr.CodeForbidden
	case http.StatusNotFound:
		return apperr.CodeNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return apperr.CodeValidation
	case http.StatusConflict:
		return apperr.CodeConflict
	}
	return strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_"))
}

// ErrorHandler is installed as echo.HTTPErrorHandler.  It is the single
// place where errors become HTTP responses.
func ErrorHandler(log *logrus.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		ae, known := toAppErr(err)
		status := ae.Status()
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Code >= 400 {
			status = he.Code
		}
		if !known {
			log.WithError(err).WithFields(logrus.Fields{
				"method": c.Request().Method,
				"uri":    c.Request().RequestURI,
			}).Error("unhandled error")
		}

		body := errorBody{"error": ae.Message, "code": ae.Code}
		if len(ae.Details) > 0 {
			body["details"] = ae.Details
		}
		for k, v := range ae.Meta {
			body[k] = v
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			log.WithError(werr).Warn("write error response")
		}
	}
}
