package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/marketplace-backend/internal/apperr"
	"github.com/iliyamo/marketplace-backend/internal/config"
	"github.com/iliyamo/marketplace-backend/internal/handler"
	"github.com/iliyamo/marketplace-backend/internal/logging"
	"github.com/iliyamo/marketplace-backend/internal/model"
	"github.com/iliyamo/marketplace-backend/internal/repository"
	"github.com/iliyamo/marketplace-backend/internal/utils"
)

const secret = "router-secret"

type accounts map[uint64]model.Account

func (a accounts) GetAccount(_ context.Context, _ model.Role, id uint64) (model.Account, error) {
	if acc, ok := a[id]; ok {
		return acc, nil
	}
	return nil, repository.ErrNotFound
}

func newServer(t *testing.T, rl config.RateLimitConfig) *echo.Echo {
	t.Helper()
	return New(&Deps{
		Log:        logging.Discard(),
		Secret:     secret,
		CookieName: "token",
		Accounts: accounts{
			7: &model.Owner{ID: 7, Email: "o@shop.test", Approved: false},
		},
		RateLimit: rl,
		Health:    &handler.HealthHandler{},
		Auth:      &handler.AuthHandler{},
		Account:   &handler.AccountHandler{},
		Catalog:   &handler.CatalogHandler{},
		Orders:    &handler.OrderHandler{},
		Offers:    &handler.OfferHandler{},
		Chats:     &handler.ChatHandler{},
		Inbox:     &handler.NotificationHandler{},
		Admin:     &handler.AdminHandler{},
	})
}

func do(t *testing.T, e *echo.Echo, method, path string, id *model.Identity) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if id != nil {
		at, err := utils.NewAccessToken(secret, *id, time.Hour)
		require.NoError(t, err)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+at.Token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	body := map[string]any{}
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) && rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	e := newServer(t, config.RateLimitConfig{})

	rec, body := do(t, e, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	rec, _ = do(t, e, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRoleGates(t *testing.T) {
	e := newServer(t, config.RateLimitConfig{})
	user := &model.Identity{ID: 1, Email: "u@x.test", Role: model.RoleUser}
	owner := &model.Identity{ID: 7, Email: "o@shop.test", Role: model.RoleOwner}

	cases := []struct {
		name   string
		method string
		path   string
		who    *model.Identity
		status int
		code   string
	}{
		{"orders need a token", http.MethodGet, "/api/orders", nil, http.StatusUnauthorized, apperr.CodeUnauthenticated},
		{"admin console rejects users", http.MethodGet, "/api/admin/stats", user, http.StatusForbidden, apperr.CodeWrongRole},
		{"owner routes reject users", http.MethodGet, "/api/owner/orders", user, http.StatusForbidden, apperr.CodeWrongRole},
		{"unapproved owner is held", http.MethodGet, "/api/owner/orders", owner, http.StatusForbidden, apperr.CodePendingApproval},
		{"product writes need an owner", http.MethodPost, "/api/products", user, http.StatusForbidden, apperr.CodeWrongRole},
		{"offer answers need an owner", http.MethodPatch, "/api/offers/3/status", user, http.StatusForbidden, apperr.CodeWrongRole},
		{"user chats reject owners", http.MethodGet, "/api/chats", owner, http.StatusForbidden, apperr.CodeWrongRole},
		{"me needs a token", http.MethodGet, "/api/auth/me", nil, http.StatusUnauthorized, apperr.CodeUnauthenticated},
		{"moderation queue rejects owners", http.MethodGet, "/api/admin/products/pending", owner, http.StatusForbidden, apperr.CodeWrongRole},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, body := do(t, e, tc.method, tc.path, tc.who)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, body["code"])
		})
	}
}

// ownerOnly reports whether a registered route is reserved for owners.
func ownerOnly(r *echo.Route) bool {
	if strings.HasPrefix(r.Path, "/api/owner/") {
		return true
	}
	switch r.Method + " " + r.Path {
	case "POST /api/shops", "PUT /api/shops/:id", "DELETE /api/shops/:id",
		"POST /api/products", "PUT /api/products/:id", "DELETE /api/products/:id",
		"GET /api/offers/received", "PATCH /api/offers/:id/status":
		return true
	}
	return false
}

var pathParam = regexp.MustCompile(`:[A-Za-z]+`)

func TestUnapprovedOwnerHeldOnEveryOwnerRoute(t *testing.T) {
	e := newServer(t, config.RateLimitConfig{})
	owner := &model.Identity{ID: 7, Email: "o@shop.test", Role: model.RoleOwner}

	methods := map[string]bool{
		http.MethodGet: true, http.MethodPost: true, http.MethodPut: true,
		http.MethodPatch: true, http.MethodDelete: true,
	}
	checked := 0
	for _, r := range e.Routes() {
		if !methods[r.Method] || !ownerOnly(r) {
			continue
		}
		path := pathParam.ReplaceAllString(r.Path, "1")
		t.Run(r.Method+" "+r.Path, func(t *testing.T) {
			rec, body := do(t, e, r.Method, path, owner)
			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.Equal(t, apperr.CodePendingApproval, body["code"])
		})
		checked++
	}
	// shops and products writes, two offer routes, profile, catalogue,
	// orders, five chat and five notification routes.
	assert.Equal(t, 24, checked)
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	e := newServer(t, config.RateLimitConfig{})
	rec, body := do(t, e, http.MethodGet, "/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apperr.CodeNotFound, body["code"])
}

func TestAPIIsRateLimited(t *testing.T) {
	e := newServer(t, config.RateLimitConfig{
		Enabled:        true,
		Capacity:       1,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            time.Hour,
		KeyStrategy:    "ip",
		Prefix:         "rl",
	})

	rec, _ := do(t, e, http.MethodGet, "/api/orders", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body := do(t, e, http.MethodGet, "/api/orders", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMITED", body["code"])

	// Health checks sit outside the limiter.
	rec, _ = do(t, e, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitKeysByCaller(t *testing.T) {
	e := newServer(t, config.RateLimitConfig{
		Enabled:        true,
		Capacity:       1,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            time.Hour,
		KeyStrategy:    "user",
		Prefix:         "rl",
		Debug:          true,
	})
	first := &model.Identity{ID: 1, Email: "a@x.test", Role: model.RoleUser}
	second := &model.Identity{ID: 2, Email: "b@x.test", Role: model.RoleUser}

	rec, _ := do(t, e, http.MethodGet, "/api/admin/stats", first)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "rl:user:user-1", rec.Header().Get("X-RateLimit-Key"))

	// A different caller has a bucket of its own.
	rec, _ = do(t, e, http.MethodGet, "/api/admin/stats", second)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "rl:user:user-2", rec.Header().Get("X-RateLimit-Key"))

	rec, _ = do(t, e, http.MethodGet, "/api/admin/stats", first)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec, _ = do(t, e, http.MethodGet, "/api/orders", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "rl:user:anon", rec.Header().Get("X-RateLimit-Key"))
}
