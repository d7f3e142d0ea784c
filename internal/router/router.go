package router // package router defines how HTTP routes are registered for the API

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/marketplace-backend/internal/config"
	"github.com/iliyamo/marketplace-backend/internal/handler"
	"github.com/iliyamo/marketplace-backend/internal/metrics"
	"github.com/iliyamo/marketplace-backend/internal/middleware"
	"github.com/iliyamo/marketplace-backend/internal/model"
)

// Deps carries everything the routes need.  Redis may be nil; the cache
// is then disabled and the rate limiter runs in-process.
type Deps struct {
	Log         *logrus.Logger
	Secret      string
	CookieName  string
	CORSOrigins []string
	Accounts    middleware.AccountLoader
	Redis       *redis.Client
	Cache       config.CacheConfig
	RateLimit   config.RateLimitConfig

	Health  *handler.HealthHandler
	Auth    *handler.AuthHandler
	Account *handler.AccountHandler
	Catalog *handler.CatalogHandler
	Orders  *handler.OrderHandler
	Offers  *handler.OfferHandler
	Chats   *handler.ChatHandler
	Inbox   *handler.NotificationHandler
	Admin   *handler.AdminHandler

	cache *middleware.ResponseCache
}

// responseCache returns the catalogue cache shared by the public reads
// and every write that changes what they return.
func (d *Deps) responseCache() *middleware.ResponseCache {
	if d.cache == nil {
		d.cache = middleware.NewResponseCache(d.Cache, d.Redis, d.Log)
	}
	return d.cache
}

// as returns the middleware chain admitting only approved accounts of role.
func (d *Deps) as(role model.Role) []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{
		middleware.Identify(d.Secret, d.CookieName),
		middleware.RequireRole(role, d.Accounts),
	}
}

// New builds the Echo instance with the global middleware stack and every
// route registered.
func New(d *Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.ErrorHandler(d.Log)

	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(d.Log))
	e.Use(metrics.Middleware())
	e.Use(echomw.BodyLimit("1M"))
	e.Use(cors(d.CORSOrigins))

	RegisterRoutes(e, d.Health)

	// The caller is identified before the limiter so per-user key
	// strategies see who is calling; route guards still verify the token.
	api := e.Group("/api",
		middleware.OptionalIdentify(d.Secret, d.CookieName),
		middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Log),
	)
	RegisterAuth(api, d)
	RegisterCatalog(api, d)
	RegisterUser(api, d)
	RegisterOffers(api, d)
	RegisterOwner(api, d)
	RegisterAdmin(api, d)
	return e
}

// cors allows credentialed requests from the configured origins only.
// With no origins configured any origin may call, without cookies.
func cors(origins []string) echo.MiddlewareFunc {
	cfg := echomw.CORSConfig{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}
	if len(origins) > 0 {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return echomw.CORSWithConfig(cfg)
}

// RegisterRoutes registers routes that do not require authentication and
// sit outside the rate limiter: the health check and the Prometheus
// scrape endpoint.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", h.Health)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
}

// RegisterAuth registers /api/auth.  Register, login, refresh and the
// password reset pair are anonymous; logout identifies the caller when it
// can; me accepts any role.
func RegisterAuth(api *echo.Group, d *Deps) {
	a := d.Auth
	g := api.Group("/auth")
	g.POST("/register", a.Register)
	g.POST("/register-owner", a.RegisterOwner)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout, middleware.OptionalIdentify(d.Secret, d.CookieName))
	g.POST("/forgot-password", a.ForgotPassword)
	g.POST("/reset-password", a.ResetPassword)
	g.GET("/me", a.Me,
		middleware.Identify(d.Secret, d.CookieName),
		middleware.RequireAnyRole(model.RoleUser, model.RoleOwner, model.RoleAdmin),
	)
}

// mountInbox registers the notification endpoints shared by all roles on
// an already guarded .../notifications group.
func mountInbox(n *echo.Group, h *handler.NotificationHandler) {
	n.GET("", h.List)
	n.GET("/unread-count", h.UnreadCount)
	n.PATCH("/read-all", h.MarkAllRead)
	n.PATCH("/:id/read", h.MarkRead)
	n.DELETE("/:id", h.Delete)
}

// mountChats registers the chat endpoints shared by users and owners on
// an already guarded .../chats group.
func mountChats(ch *echo.Group, h *handler.ChatHandler) {
	ch.GET("", h.List)
	ch.GET("/unread-count", h.UnreadCount)
	ch.POST("/order/:orderId", h.Open)
	ch.GET("/:id/messages", h.Messages)
	ch.POST("/:id/messages", h.Send)
}
