package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marketplace-backend/internal/service"
)

// NotificationHandler serves the same inbox endpoints to all three roles.
// The recipient is always the caller.
type NotificationHandler struct {
	Inbox *service.InboxService
}

func NewNotificationHandler(inbox *service.InboxService) *NotificationHandler {
	return &NotificationHandler{Inbox: inbox}
}

// List supports ?unread=true and ?limit=N (default 50, max 200).
func (h *NotificationHandler) List(c echo.Context) error {
	p, err := caller(c)
	if err != nil {
		return err
	}
	unread, _ := strconv.ParseBool(c.QueryParam("unread"))
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		return err
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.Inbox.List(ctx, p.Recipient(), unread, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list(items))
}

func (h *NotificationHandler) UnreadCount(c echo.Context) error {
	p, err := caller(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	n, err := h.Inbox.UnreadCount(ctx, p.Recipient())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"unread": n})
}

func (h *NotificationHandler) MarkRead(c echo.Context) error {
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
	n, err := h.Inbox.MarkRead(ctx, p.Recipient(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, n)
}

func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	p, err := caller(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	n, err := h.Inbox.MarkAllRead(ctx, p.Recipient())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"updated": n})
}

func (h *NotificationHandler) Delete(c echo.Context) error {
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
	if err := h.Inbox.Delete(ctx, p.Recipient(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
