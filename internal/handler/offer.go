package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marketplace-backend/internal/model"
	"github.com/iliyamo/marketplace-backend/internal/service"
)

type OfferHandler struct {
	Offers *service.OfferService
}

func NewOfferHandler(offers *service.OfferService) *OfferHandler {
	return &OfferHandler{Offers: offers}
}

func (h *OfferHandler) Create(c echo.Context) error {
	p, err := caller(c)
	if err != nil {
		return err
	}
	var req service.CreateOfferInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	o, err := h.Offers.Create(ctx, p.ID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, o)
}

func (h *OfferHandler) ListMine(c echo.Context) error {
	p, err := caller(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	offers, err := h.Offers.ListMine(ctx, p.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list(offers))
}

func (h *OfferHandler) ListReceived(c echo.Context) error {
	p, err := caller(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	offers, err := h.Offers.ListReceived(ctx, p.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list(offers))
}

func (h *OfferHandler) UpdateStatus(c echo.Context) error {
	p, err := caller(c)
	if err != nil {
		return err
	}
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
	o, err := h.Offers.UpdateStatus(ctx, p.ID, id, model.OfferStatus(req.Status))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, o)
}
