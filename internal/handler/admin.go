package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marketplace-backend/internal/model"
	"github.com/iliyamo/marketplace-backend/internal/service"
)

// AdminHandler serves the /api/admin console: owner approval, product
// moderation, user listing and platform statistics.
type AdminHandler struct {
	Accounts *service.AccountService
	Products *service.ProductService
}

func NewAdminHandler(accounts *service.AccountService, products *service.ProductService) *AdminHandler {
	return &AdminHandler{Accounts: accounts, Products: products}
}

func (h *AdminHandler) PendingOwners(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	owners, err := h.Accounts.PendingOwners(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list(owners))
}

func (h *AdminHandler) ApproveOwner(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	o, err := h.Accounts.ApproveOwner(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, o)
}

// ProductQueue lists products in one moderation state, pending by default.
func (h *AdminHandler) ProductQueue(c echo.Context) error {
	status := model.ProductPending
	if s := c.QueryParam("status"); s != "" {
		status = model.ProductStatus(s)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.Products.ListByStatus(ctx, status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list(items))
}

// ModerateProduct approves or rejects a product.
func (h *AdminHandler) ModerateProduct(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req statusReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.Products.Moderate(ctx, id, model.ProductStatus(req.Status))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *AdminHandler) Users(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	users, err := h.Accounts.Users(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list(users))
}

func (h *AdminHandler) Stats(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	st, err := h.Accounts.Stats(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}
