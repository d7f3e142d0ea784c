package service

import (
	"context"
	"strings"

	"github.com/iliyamo/marketplace-backend/internal/apperr"
	"github.com/iliyamo/marketplace-backend/internal/model"
)

// SendMessageInput is the body of POST /chats/:id/messages.
type SendMessageInput struct {
	Body string `json:"body" validate:"required,max=4000"`
}

// ChatService manages the per-order conversations between a user and the
// owners supplying their order.
type ChatService struct {
	chats  ChatStore
	orders OrderStore
}

func NewChatService(chats ChatStore, orders OrderStore) *ChatService {
	return &ChatService{chats: chats, orders: orders}
}

// Open returns the chat about orderID between its user and one supplying
// owner, creating it on first use.  A user must name the owner when the
// order has several; with one owner it may be omitted.
func (s *ChatService) Open(ctx context.Context, who model.Identity, orderID, ownerID uint64) (*model.Chat, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, translate(err)
	}
	switch who.Role {
	case model.RoleUser:
		if o.UserID != who.ID {
			return nil, apperr.NotOwner()
		}
		if ownerID == 0 {
			owners := o.OwnerIDs()
			if len(owners) != 1 {
				return nil, apperr.Validation("owner_id required", apperr.FieldError{Field: "owner_id", Message: "order has several owners"})
			}
			ownerID = owners[0]
		}
		if !o.SuppliedBy(ownerID) {
			return nil, apperr.NotFound("owner does not supply this order")
		}
	case model.RoleOwner:
		if !o.SuppliedBy(who.ID) {
			return nil, apperr.NotOwner()
		}
		ownerID = who.ID
	default:
		return nil, apperr.WrongRole()
	}
	c, err := s.chats.GetOrCreate(ctx, orderID, o.UserID, ownerID)
	return c, translate(err)
}

func (s *ChatService) List(ctx context.Context, who model.Identity) ([]*model.Chat, error) {
	list, err := s.chats.ListFor(ctx, who.Role, who.ID)
	return list, translate(err)
}

func (s *ChatService) participant(ctx context.Context, who model.Identity, chatID uint64) (*model.Chat, error) {
	return Authorize(ctx, chatID, s.chats.GetByID, func(c *model.Chat) bool {
		return c.Participant(who.Role, who.ID)
	})
}

// Messages returns the conversation oldest first and marks the messages
// sent by the other side as read.
func (s *ChatService) Messages(ctx context.Context, who model.Identity, chatID uint64) ([]*model.Message, error) {
	if _, err := s.participant(ctx, who, chatID); err != nil {
		return nil, err
	}
	msgs, err := s.chats.ListMessages(ctx, chatID)
	if err != nil {
		return nil, translate(err)
	}
	if _, err := s.chats.MarkRead(ctx, chatID, who.Role); err != nil {
		return nil, translate(err)
	}
	for _, m := range msgs {
		if m.SenderRole != who.Role {
			m.IsRead = true
		}
	}
	return msgs, nil
}

// Send appends a message from the caller.
func (s *ChatService) Send(ctx context.Context, who model.Identity, chatID uint64, in SendMessageInput) (*model.Message, error) {
	body := strings.TrimSpace(in.Body)
	if body == "" {
		return nil, apperr.Validation("empty message", apperr.FieldError{Field: "body", Message: "is required"})
	}
	if _, err := s.participant(ctx, who, chatID); err != nil {
		return nil, err
	}
	m := &model.Message{ChatID: chatID, SenderRole: who.Role, SenderID: who.ID, Body: body}
	if err := s.chats.AddMessage(ctx, m); err != nil {
		return nil, translate(err)
	}
	return m, nil
}

func (s *ChatService) UnreadCount(ctx context.Context, who model.Identity) (int, error) {
	n, err := s.chats.UnreadCount(ctx, who.Role, who.ID)
	return n, translate(err)
}
