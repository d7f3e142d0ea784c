package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marketplace-backend/internal/model"
)

// RegisterCatalog registers /api/shops and /api/products.  Reads are
// public and go through the response cache; writes require an approved
// owner, are checked for ownership in the service and invalidate the
// cache once they succeed.
func RegisterCatalog(api *echo.Group, d *Deps) {
	h := d.Catalog
	cache := d.responseCache().Serve()
	owner := append(d.as(model.RoleOwner), d.responseCache().Invalidate())

	shops := api.Group("/shops")
	shops.GET("", h.ListShops, cache)
	shops.GET("/:id", h.GetShop, cache)
	shops.POST("", h.CreateShop, owner...)
	shops.PUT("/:id", h.UpdateShop, owner...)
	shops.DELETE("/:id", h.DeleteShop, owner...)

	products := api.Group("/products")
	products.GET("", h.ListProducts, cache)
	products.GET("/:id", h.GetProduct, cache)
	products.POST("", h.CreateProduct, owner...)
	products.PUT("/:id", h.UpdateProduct, owner...)
	products.DELETE("/:id", h.DeleteProduct, owner...)
}
