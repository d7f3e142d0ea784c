package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marketplace-backend/internal/model"
	"github.com/iliyamo/marketplace-backend/internal/service"
)

// AccountHandler serves profile and wishlist endpoints for users and the
// profile endpoints for owners.
type AccountHandler struct {
	Accounts *service.AccountService
}

func NewAccountHandler(accounts *service.AccountService) *AccountHandler {
	return &AccountHandler{Accounts: accounts}
}

// profileReq carries optional profile changes.  Fields the caller's
// account kind does not have are ignored.
type profileReq struct {
	Name         *string `json:"name" validate:"omitempty,min=1,max=120"`
	Phone        *string `json:"phone" validate:"omitempty,max=40"`
	Address      *string `json:"address" validate:"omitempty,max=255"`
	BusinessName *string `json:"business_name" validate:"omitempty,min=1,max=160"`
}

// Profile returns the account loaded by the role gate.
func (h *AccountHandler) Profile(c echo.Context) error {
	p, err := caller(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p.Account)
}

func (h *AccountHandler) UpdateProfile(c echo.Context) error {
	p, err := caller(c)
	if err != nil {
		return err
	}
	var req profileReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	acc, err := h.Accounts.UpdateProfile(ctx, p.Identity, model.ProfileUpdate{
		Name:         req.Name,
		Phone:        req.Phone,
		Address:      req.Address,
		BusinessName: req.BusinessName,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, acc)
}

func (h *AccountHandler) Wishlist(c echo.Context) error {
	p, err := caller(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	ids, err := h.Accounts.Wishlist(ctx, p.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"wishlist": ids})
}

// ToggleWishlist adds or removes :productId.
func (h *AccountHandler) ToggleWishlist(c echo.Context) error {
	p, err := caller(c)
	if err != nil {
		return err
	}
	productID, err := pathID(c, "productId")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	ids, err := h.Accounts.ToggleWishlist(ctx, p.ID, productID)
	if err != nil {
		return err
	}
	in := false
	for _, id := range ids {
		if id == productID {
			in = true
			break
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"wishlist": ids, "in_wishlist": in})
}
