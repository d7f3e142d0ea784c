package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marketplace-backend/internal/apperr"
	"github.com/iliyamo/marketplace-backend/internal/model"
	"github.com/iliyamo/marketplace-backend/internal/service"
)

// CatalogHandler serves shops and products: the public catalogue and the
// owner-side management endpoints.
type CatalogHandler struct {
	Shops    *service.ShopService
	Products *service.ProductService
}

func NewCatalogHandler(shops *service.ShopService, products *service.ProductService) *CatalogHandler {
	return &CatalogHandler{Shops: shops, Products: products}
}

// ----- shops -----

func (h *CatalogHandler) ListShops(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	shops, err := h.Shops.List(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list(shops))
}

func (h *CatalogHandler) GetShop(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	sh, err := h.Shops.Get(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sh)
}

func (h *CatalogHandler) MyShops(c echo.Context) error {
	p, err := caller(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	shops, err := h.Shops.ListMine(ctx, p.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list(shops))
}

func (h *CatalogHandler) CreateShop(c echo.Context) error {
	p, err := caller(c)
	if err != nil {
		return err
	}
	var req service.ShopInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	sh, err := h.Shops.Create(ctx, p.ID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, sh)
}

func (h *CatalogHandler) UpdateShop(c echo.Context) error {
	p, err := caller(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req service.ShopInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	sh, err := h.Shops.Update(ctx, p.ID, id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sh)
}

func (h *CatalogHandler) DeleteShop(c echo.Context) error {
	p, err := caller(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Shops.Delete(ctx, p.ID, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ----- products -----

type productPage struct {
	Items    []*model.Product `json:"items"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

// productQuery reads q, type, category, shop_id, page and page_size.
func productQuery(c echo.Context) (model.ProductQuery, error) {
	q := model.ProductQuery{
		Search:   strings.TrimSpace(c.QueryParam("q")),
		Category: strings.TrimSpace(c.QueryParam("category")),
	}
	if t := c.QueryParam("type"); t != "" {
		q.Type = model.ProductType(t)
		if !q.Type.Valid() {
			return q, apperr.Validation("invalid type", apperr.FieldError{Field: "type", Message: "must be one of Buying, Selling"})
		}
	}
	if s := c.QueryParam("shop_id"); s != "" {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return q, apperr.Validation("invalid shop_id", apperr.FieldError{Field: "shop_id", Message: "must be a positive integer"})
		}
		q.ShopID = id
	}
	var err error
	if q.Page, err = queryInt(c, "page", 1); err != nil {
		return q, err
	}
	if q.PageSize, err = queryInt(c, "page_size", 20); err != nil {
		return q, err
	}
	return q.Normalize(), nil
}

// ListProducts is the public catalogue: approved products only.
func (h *CatalogHandler) ListProducts(c echo.Context) error {
	q, err := productQuery(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, total, err := h.Products.List(ctx, q)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*model.Product{}
	}
	return c.JSON(http.StatusOK, productPage{Items: items, Total: total, Page: q.Page, PageSize: q.PageSize})
}

func (h *CatalogHandler) GetProduct(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.Products.Get(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *CatalogHandler) MyProducts(c echo.Context) error {
	p, err := caller(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.Products.ListMine(ctx, p.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list(items))
}

func (h *CatalogHandler) CreateProduct(c echo.Context) error {
	p, err := caller(c)
	if err != nil {
		return err
	}
	var req service.ProductInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	prod, err := h.Products.Create(ctx, p.ID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, prod)
}

func (h *CatalogHandler) UpdateProduct(c echo.Context) error {
	p, err := caller(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req service.ProductInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	prod, err := h.Products.Update(ctx, p.ID, id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, prod)
}

func (h *CatalogHandler) DeleteProduct(c echo.Context) error {
	p, err := caller(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Products.Delete(ctx, p.ID, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
