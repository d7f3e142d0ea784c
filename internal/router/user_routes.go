package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marketplace-backend/internal/model"
)

// RegisterUser registers the endpoints reserved for the user role: the
// profile and wishlist, orders, chats and the user's notifications.
func RegisterUser(api *echo.Group, d *Deps) {
	user := d.as(model.RoleUser)

	u := api.Group("/users", user...)
	u.GET("/profile", d.Account.Profile)
	u.PUT("/profile", d.Account.UpdateProfile)
	u.GET("/wishlist", d.Account.Wishlist)
	u.POST("/wishlist/:productId", d.Account.ToggleWishlist)

	// Placing and cancelling an order move stock, which public product
	// reads show.
	stock := d.responseCache().Invalidate()
	o := api.Group("/orders", user...)
	o.POST("", d.Orders.Create, stock)
	o.GET("", d.Orders.ListMine)
	o.GET("/:id", d.Orders.Get)
	o.POST("/:id/cancel", d.Orders.Cancel, stock)
	o.POST("/:id/confirm", d.Orders.Confirm)

	mountChats(api.Group("/chats", user...), d.Chats)
	mountInbox(api.Group("/notifications", user...), d.Inbox)
}

// RegisterOffers registers /api/offers, which mixes roles: users make and
// list offers, owners list and answer the offers on their products.
func RegisterOffers(api *echo.Group, d *Deps) {
	h := d.Offers
	g := api.Group("/offers")
	g.POST("", h.Create, d.as(model.RoleUser)...)
	g.GET("/mine", h.ListMine, d.as(model.RoleUser)...)
	g.GET("/received", h.ListReceived, d.as(model.RoleOwner)...)
	g.PATCH("/:id/status", h.UpdateStatus, d.as(model.RoleOwner)...)
}
