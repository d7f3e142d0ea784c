package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/marketplace-backend/internal/apperr"
	"github.com/iliyamo/marketplace-backend/internal/logging"
	"github.com/iliyamo/marketplace-backend/internal/model"
	"github.com/iliyamo/marketplace-backend/internal/repository"
	"github.com/iliyamo/marketplace-backend/internal/service"
)

func newEcho() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(logging.Discard())
	e.Validator = NewValidator()
	return e
}

// serve runs a single handler behind the error handler and decodes the
// JSON body, if any.
func serve(t *testing.T, method, target, body string, h echo.HandlerFunc) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	e := newEcho()
	e.Add(method, "/t", h)
	req := httptest.NewRequest(method, "/t"+target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestErrorHandlerMapsAppErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{apperr.Unauthenticated("authentication required"), http.StatusUnauthorized, apperr.CodeUnauthenticated},
		{apperr.PendingApproval(), http.StatusForbidden, apperr.CodePendingApproval},
		{apperr.NotOwner(), http.StatusForbidden, apperr.CodeNotOwner},
		{apperr.NotFound("order not found"), http.StatusNotFound, apperr.CodeNotFound},
		{apperr.InsufficientStock("no stock"), http.StatusBadRequest, apperr.CodeInsufficientStock},
		{apperr.Conflict("changed"), http.StatusConflict, apperr.CodeConflict},
		{fmt.Errorf("load: %w", repository.ErrNotFound), http.StatusNotFound, apperr.CodeNotFound},
		{repository.ErrEmailExists, http.StatusBadRequest, apperr.CodeEmailExists},
		{&repository.InsufficientStockError{Name: "Lamp", Requested: 3, Available: 1}, http.StatusBadRequest, apperr.CodeInsufficientStock},
		{echo.ErrNotFound, http.StatusNotFound, apperr.CodeNotFound},
		{echo.ErrMethodNotAllowed, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED"},
		{errors.New("boom"), http.StatusInternalServerError, apperr.CodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			rec, body := serve(t, http.MethodGet, "", "", func(echo.Context) error { return tc.err })
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, body["code"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestErrorHandlerHidesInternalMessages(t *testing.T) {
	_, body := serve(t, http.MethodGet, "", "", func(echo.Context) error {
		return errors.New("dial tcp 10.0.0.3:3306: connection refused")
	})
	assert.Equal(t, "internal server error", body["error"])
}

func TestErrorHandlerMergesMeta(t *testing.T) {
	rec, body := serve(t, http.MethodPost, "", "", func(echo.Context) error {
		return apperr.AlreadyConfirmed().With("receipt_id", "RCP-1")
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperr.CodeAlreadyConfirmed, body["code"])
	assert.Equal(t, "RCP-1", body["receipt_id"])
}

func TestErrorHandlerHeadHasNoBody(t *testing.T) {
	rec, _ := serve(t, http.MethodHead, "", "", func(echo.Context) error {
		return apperr.NotFound("missing")
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, rec.Body.Len())
}

func TestBindReportsFieldPaths(t *testing.T) {
	h := func(c echo.Context) error {
		var in service.CreateOrderInput
		if err := bind(c, &in); err != nil {
			return err
		}
		return c.NoContent(http.StatusNoContent)
	}

	rec, body := serve(t, http.MethodPost, "", `{"items":[{"product_id":1,"quantity":2},{"product_id":2}]}`, h)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperr.CodeValidation, body["code"])
	details, ok := body["details"].([]any)
	require.True(t, ok)
	require.Len(t, details, 1)
	first := details[0].(map[string]any)
	assert.Equal(t, "items[1].quantity", first["field"])
	assert.Equal(t, "is required", first["message"])

	rec, body = serve(t, http.MethodPost, "", `{}`, h)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	first = body["details"].([]any)[0].(map[string]any)
	assert.Equal(t, "items", first["field"])

	rec, _ = serve(t, http.MethodPost, "", `{"items":[{"product_id":1,"quantity":1}]}`, h)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestBindRejectsMalformedBody(t *testing.T) {
	rec, body := serve(t, http.MethodPost, "", `{"items":`, func(c echo.Context) error {
		var in service.CreateOrderInput
		return bind(c, &in)
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperr.CodeValidation, body["code"])
	assert.Equal(t, "invalid request body", body["error"])
}

func TestValidatorMessages(t *testing.T) {
	v := NewValidator()
	err := v.Validate(&forgotReq{Email: "not-an-email", Role: "root"})
	ae, ok := apperr.As(err)
	require.True(t, ok)
	require.Len(t, ae.Details, 2)
	msgs := map[string]string{}
	for _, d := range ae.Details {
		msgs[d.Field] = d.Message
	}
	assert.Equal(t, "must be a valid email address", msgs["email"])
	assert.Equal(t, "must be one of user, owner, admin", msgs["role"])

	err = v.Validate(&resetReq{Token: "t", Password: "short"})
	ae, _ = apperr.As(err)
	require.Len(t, ae.Details, 1)
	assert.Equal(t, "password", ae.Details[0].Field)
	assert.Equal(t, "must be at least 8 characters", ae.Details[0].Message)
}

func TestPathIDAndQueryInt(t *testing.T) {
	e := newEcho()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?limit=x&page=3", nil), httptest.NewRecorder())
	c.SetParamNames("id", "orderId")
	c.SetParamValues("42", "0")

	id, err := pathID(c, "id")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)

	_, err = pathID(c, "orderId")
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))

	n, err := queryInt(c, "page", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = queryInt(c, "page_size", 20)
	require.NoError(t, err)
	assert.Equal(t, 20, n)

	_, err = queryInt(c, "limit", 50)
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))
}

func TestListNeverRendersNull(t *testing.T) {
	b, err := json.Marshal(list[*model.Order](nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[],"count":0}`, string(b))
}

func TestHandlersRequirePrincipal(t *testing.T) {
	inbox := &NotificationHandler{}
	rec, body := serve(t, http.MethodGet, "", "", inbox.List)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, apperr.CodeUnauthenticated, body["code"])
}

func TestChatOpenRejectsBadOrderID(t *testing.T) {
	e := newEcho()
	h := &ChatHandler{}
	e.POST("/chats/order/:orderId", h.Open, func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("principal", model.Principal{Identity: model.Identity{ID: 1, Role: model.RoleUser}})
			return next(c)
		}
	})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chats/order/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "orderId")
}

func TestSetCookieClearsOnEmptyValue(t *testing.T) {
	h := &AuthHandler{Cookie: CookieSettings{Name: "token", Secure: true}}
	e := newEcho()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)

	h.setCookie(c, "", time.Time{})
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "token", cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	h := &HealthHandler{DB: pinger{}}
	rec, body := serve(t, http.MethodGet, "", "", h.Health)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["db"])
	assert.Equal(t, "disabled", body["redis"])

	h.DB = pinger{err: errors.New("down")}
	rec, body = serve(t, http.MethodGet, "", "", h.Health)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "down", body["db"])
}
