package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/marketplace-backend/internal/apperr"
	"github.com/iliyamo/marketplace-backend/internal/config"
	"github.com/iliyamo/marketplace-backend/internal/logging"
	"github.com/iliyamo/marketplace-backend/internal/model"
	"github.com/iliyamo/marketplace-backend/internal/repository"
	"github.com/iliyamo/marketplace-backend/internal/utils"
)

const secret = "test-secret"

func token(t *testing.T, id model.Identity) string {
	t.Helper()
	at, err := utils.NewAccessToken(secret, id, time.Hour)
	require.NoError(t, err)
	return at.Token
}

func newCtx(req *http.Request) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	ae, ok := apperr.As(err)
	require.True(t, ok, "expected *apperr.Error, got %v", err)
	assert.Equal(t, code, ae.Code)
}

func ok(c echo.Context) error { return c.NoContent(http.StatusNoContent) }

func TestIdentifyPrefersCookieOverBearer(t *testing.T) {
	cookieID := model.Identity{ID: 3, Email: "c@x.test", Role: model.RoleOwner}
	headerID := model.Identity{ID: 4, Email: "h@x.test", Role: model.RoleUser}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: token(t, cookieID)})
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token(t, headerID))
	c, _ := newCtx(req)

	var got model.Identity
	err := Identify(secret, "token")(func(c echo.Context) error {
		got, _ = IdentityFrom(c)
		return nil
	})(c)
	require.NoError(t, err)
	assert.Equal(t, cookieID, got)
}

func TestIdentifyFallsBackToBearer(t *testing.T) {
	id := model.Identity{ID: 4, Email: "h@x.test", Role: model.RoleUser}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "bearer "+token(t, id))
	c, _ := newCtx(req)

	require.NoError(t, Identify(secret, "token")(ok)(c))
	got, found := IdentityFrom(c)
	require.True(t, found)
	assert.Equal(t, id, got)
}

func TestIdentifyFailures(t *testing.T) {
	c, _ := newCtx(httptest.NewRequest(http.MethodGet, "/", nil))
	requireCode(t, Identify(secret, "token")(ok)(c), apperr.CodeUnauthenticated)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer not-a-jwt")
	c, _ = newCtx(req)
	requireCode(t, Identify(secret, "token")(ok)(c), apperr.CodeInvalidToken)

	expired, err := utils.NewAccessToken(secret, model.Identity{ID: 1, Role: model.RoleUser}, -time.Minute)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: expired.Token})
	c, _ = newCtx(req)
	requireCode(t, Identify(secret, "token")(ok)(c), apperr.CodeInvalidToken)

	other, err := utils.NewAccessToken("other-secret", model.Identity{ID: 1, Role: model.RoleUser}, time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+other.Token)
	c, _ = newCtx(req)
	requireCode(t, Identify(secret, "token")(ok)(c), apperr.CodeInvalidToken)
}

func TestOptionalIdentifyLetsAnonymousThrough(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer junk")
	c, rec := newCtx(req)

	require.NoError(t, OptionalIdentify(secret, "token")(ok)(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, found := IdentityFrom(c)
	assert.False(t, found)
}

type stubAccounts map[model.Role]map[uint64]model.Account

func (s stubAccounts) GetAccount(_ context.Context, role model.Role, id uint64) (model.Account, error) {
	if acc, ok := s[role][id]; ok {
		return acc, nil
	}
	return nil, repository.ErrNotFound
}

func gate(t *testing.T, id model.Identity, role model.Role, accounts AccountLoader) (echo.Context, error) {
	t.Helper()
	c, _ := newCtx(httptest.NewRequest(http.MethodGet, "/", nil))
	c.Set(identityKey, id)
	return c, RequireRole(role, accounts)(ok)(c)
}

func TestRequireRole(t *testing.T) {
	accounts := stubAccounts{
		model.RoleUser: {
			1: &model.User{ID: 1, Email: "fresh@x.test"},
		},
		model.RoleOwner: {
			5: &model.Owner{ID: 5, Approved: true},
			6: &model.Owner{ID: 6, Approved: false},
		},
	}

	_, err := gate(t, model.Identity{ID: 1, Role: model.RoleUser}, model.RoleOwner, accounts)
	requireCode(t, err, apperr.CodeWrongRole)

	_, err = gate(t, model.Identity{ID: 2, Role: model.RoleUser}, model.RoleUser, accounts)
	requireCode(t, err, apperr.CodeStaleCredential)

	_, err = gate(t, model.Identity{ID: 6, Role: model.RoleOwner}, model.RoleOwner, accounts)
	requireCode(t, err, apperr.CodePendingApproval)

	_, err = gate(t, model.Identity{ID: 5, Role: model.RoleOwner}, model.RoleOwner, accounts)
	require.NoError(t, err)

	c, err := gate(t, model.Identity{ID: 1, Email: "stale@x.test", Role: model.RoleUser}, model.RoleUser, accounts)
	require.NoError(t, err)
	p, found := PrincipalFrom(c)
	require.True(t, found)
	assert.Equal(t, "fresh@x.test", p.Email)
	assert.IsType(t, &model.User{}, p.Account)

	c, _ = newCtx(httptest.NewRequest(http.MethodGet, "/", nil))
	requireCode(t, RequireRole(model.RoleUser, accounts)(ok)(c), apperr.CodeUnauthenticated)
}

func TestRequireAnyRole(t *testing.T) {
	mw := RequireAnyRole(model.RoleUser, model.RoleOwner)

	c, _ := newCtx(httptest.NewRequest(http.MethodGet, "/", nil))
	c.Set(identityKey, model.Identity{ID: 9, Role: model.RoleAdmin})
	requireCode(t, mw(ok)(c), apperr.CodeWrongRole)

	c, _ = newCtx(httptest.NewRequest(http.MethodGet, "/", nil))
	c.Set(identityKey, model.Identity{ID: 6, Role: model.RoleOwner})
	require.NoError(t, mw(ok)(c))
	p, _ := PrincipalFrom(c)
	assert.Nil(t, p.Account)
	assert.Equal(t, uint64(6), p.ID)
}

func TestTokenBucketFallsBackToMemory(t *testing.T) {
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            time.Hour,
		KeyStrategy:    "ip",
		Prefix:         "rl",
	}
	e := echo.New()
	e.Use(NewTokenBucket(cfg, nil, logging.Discard()))
	e.GET("/ping", ok)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE_LIMITED")
}

func TestCacheDisabledWithoutRedis(t *testing.T) {
	cfg := config.CacheConfig{Enabled: true, MethodList: []string{"GET"}}
	rc := NewResponseCache(cfg, nil, logging.Discard())
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.String(http.StatusOK, "hi") }, rc.Serve())
	e.POST("/x", func(c echo.Context) error { return c.NoContent(http.StatusCreated) }, rc.Invalidate())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, "hi", rec.Body.String())
	assert.Empty(t, rec.Header().Get("X-Cache"))

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/x", nil))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

// memStore is an in-process cacheStore.
type memStore struct {
	mu     sync.Mutex
	vals   map[string][]byte
	getErr error
}

func newMemStore() *memStore { return &memStore{vals: map[string][]byte{}} }

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.vals[key]
	if !ok {
		return nil, redis.Nil
	}
	return v, nil
}

func (m *memStore) SetEx(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals[key] = append([]byte(nil), value...)
	return nil
}

func (m *memStore) Incr(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, _ := strconv.ParseInt(string(m.vals[key]), 10, 64)
	m.vals[key] = []byte(strconv.FormatInt(n+1, 10))
	return nil
}

// catalogue serves one product whose status a moderation route can flip.
// Only approved products are public.
func catalogue(rc *ResponseCache) *echo.Echo {
	status := "approved"
	e := echo.New()
	e.GET("/api/products/:id", func(c echo.Context) error {
		if status != "approved" {
			return c.JSON(http.StatusNotFound, map[string]string{"code": "NOT_FOUND"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": status})
	}, rc.Serve())
	e.PATCH("/api/admin/products/:id/status", func(c echo.Context) error {
		next := c.QueryParam("to")
		if next == "bogus" {
			return c.JSON(http.StatusBadRequest, map[string]string{"code": "VALIDATION_FAILED"})
		}
		status = next
		return c.JSON(http.StatusOK, map[string]string{"status": status})
	}, rc.Invalidate())
	return e
}

func serveCache(e *echo.Echo, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestCacheStopsServingProductOnceRejected(t *testing.T) {
	cfg := config.CacheConfig{Enabled: true, MethodList: []string{"GET"}, Prefix: "cache", TTL: time.Minute}
	e := catalogue(newResponseCache(cfg, newMemStore(), logging.Discard()))

	rec := serveCache(e, http.MethodGet, "/api/products/1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))

	rec = serveCache(e, http.MethodGet, "/api/products/1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))

	rec = serveCache(e, http.MethodPatch, "/api/admin/products/1/status?to=rejected")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serveCache(e, http.MethodGet, "/api/products/1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEqual(t, "HIT", rec.Header().Get("X-Cache"))
	assert.NotContains(t, rec.Body.String(), "approved")
}

func TestCacheKeepsEntriesWhenWriteFails(t *testing.T) {
	cfg := config.CacheConfig{Enabled: true, MethodList: []string{"GET"}, Prefix: "cache", TTL: time.Minute}
	store := newMemStore()
	e := catalogue(newResponseCache(cfg, store, logging.Discard()))

	serveCache(e, http.MethodGet, "/api/products/1")
	rec := serveCache(e, http.MethodPatch, "/api/admin/products/1/status?to=bogus")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, store.vals, "cache:gen")

	rec = serveCache(e, http.MethodGet, "/api/products/1")
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
}

func TestCacheBypassedWhenGenerationUnreadable(t *testing.T) {
	cfg := config.CacheConfig{Enabled: true, MethodList: []string{"GET"}, Prefix: "cache", TTL: time.Minute}
	store := newMemStore()
	store.getErr = errors.New("connection refused")
	e := catalogue(newResponseCache(cfg, store, logging.Discard()))

	rec := serveCache(e, http.MethodGet, "/api/products/1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))
	assert.Empty(t, store.vals)
}

func TestCachePayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": []string{"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"a":1}`))
	require.NoError(t, err)

	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, `{"a":1}`, string(body))

	_, _, _, ok = decodePayload(bs[:5])
	assert.False(t, ok)
}

func TestCacheKeyIncludesConcretePath(t *testing.T) {
	cfg := config.CacheConfig{Prefix: "cache", KeyStrategy: "route_query"}
	e := echo.New()
	keys := map[string]bool{}
	e.GET("/api/products/:id", func(c echo.Context) error {
		keys[cacheKey(cfg, c, 0)] = true
		return nil
	})
	for _, p := range []string{"/api/products/1", "/api/products/2", "/api/products/1"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}
	assert.Len(t, keys, 2)
}

func TestCacheKeyChangesWithGeneration(t *testing.T) {
	cfg := config.CacheConfig{Prefix: "cache", KeyStrategy: "route_query"}
	e := echo.New()
	var before, after string
	e.GET("/api/products", func(c echo.Context) error {
		before, after = cacheKey(cfg, c, 3), cacheKey(cfg, c, 4)
		return nil
	})
	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/products?q=lamp", nil))
	assert.NotEqual(t, before, after)
	assert.True(t, strings.HasPrefix(before, "cache:3:"))
}
