package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marketplace-backend/internal/service"
)

// ChatHandler serves /api/chats for users and /api/owner/chats for
// owners; the caller's role decides which side of the chat they are.
type ChatHandler struct {
	Chats *service.ChatService
}

func NewChatHandler(chats *service.ChatService) *ChatHandler {
	return &ChatHandler{Chats: chats}
}

type openChatReq struct {
	OwnerID uint64 `json:"owner_id"`
}

func (h *ChatHandler) List(c echo.Context) error {
	p, err := caller(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	chats, err := h.Chats.List(ctx, p.Identity)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list(chats))
}

// Open returns the chat for :orderId, creating it on first use.  Users
// supplying an order with several owners pick one with owner_id.
func (h *ChatHandler) Open(c echo.Context) error {
	p, err := caller(c)
	if err != nil {
		return err
	}
	orderID, err := pathID(c, "orderId")
	if err != nil {
		return err
	}
	var req openChatReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	chat, err := h.Chats.Open(ctx, p.Identity, orderID, req.OwnerID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, chat)
}

// Messages lists a chat and marks the counterpart's messages as read.
func (h *ChatHandler) Messages(c echo.Context) error {
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
	msgs, err := h.Chats.Messages(ctx, p.Identity, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list(msgs))
}

func (h *ChatHandler) Send(c echo.Context) error {
	p, err := caller(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req service.SendMessageInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	m, err := h.Chats.Send(ctx, p.Identity, id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *ChatHandler) UnreadCount(c echo.Context) error {
	p, err := caller(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	n, err := h.Chats.UnreadCount(ctx, p.Identity)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"unread": n})
}
