package router // router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marketplace-backend/internal/model"
)

// RegisterOwner registers owner-scoped endpoints under /api/owner.
// All routes require a valid token for an approved owner.
func RegisterOwner(api *echo.Group, d *Deps) {
	g := api.Group("/owner", d.as(model.RoleOwner)...)

	// ---- Profile ----
	g.GET("/profile", d.Account.Profile)
	g.PUT("/profile", d.Account.UpdateProfile)

	// ---- Catalog ----
	// Mutations live on /api/shops and /api/products; these list the
	// owner's own rows in every moderation state.
	g.GET("/shops", d.Catalog.MyShops)
	g.GET("/products", d.Catalog.MyProducts)

	// ---- Orders ----
	g.GET("/orders", d.Orders.ListForOwner)
	g.PATCH("/orders/:id/status", d.Orders.UpdateStatus)

	mountChats(g.Group("/chats"), d.Chats)
	mountInbox(g.Group("/notifications"), d.Inbox)
}

// RegisterAdmin registers the admin console under /api/admin.
func RegisterAdmin(api *echo.Group, d *Deps) {
	h := d.Admin
	g := api.Group("/admin", d.as(model.RoleAdmin)...)

	g.GET("/owners/pending", h.PendingOwners)
	g.PATCH("/owners/:id/approve", h.ApproveOwner)

	// /products takes ?status=; /products/pending is the moderation queue.
	g.GET("/products", h.ProductQueue)
	g.GET("/products/pending", h.ProductQueue)
	g.PATCH("/products/:id/status", h.ModerateProduct, d.responseCache().Invalidate())

	g.GET("/users", h.Users)
	g.GET("/stats", h.Stats)

	mountInbox(g.Group("/notifications"), d.Inbox)
}
