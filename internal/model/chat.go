package model

import "time"

// Chat links one user and one owner around an order.
type Chat struct {
	ID          uint64     `json:"id"`
	OrderID     uint64     `json:"order_id"`
	UserID      uint64     `json:"user_id"`
	OwnerID     uint64     `json:"owner_id"`
	LastMessage *string    `json:"last_message,omitempty"`
	LastAt      *time.Time `json:"last_message_at,omitempty"`
	UnreadCount int        `json:"unread_count"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Participant reports whether the (role, id) pair is one of the two parties.
func (c *Chat) Participant(role Role, id uint64) bool {
	switch role {
	case RoleUser:
		return c.UserID == id
	case RoleOwner:
		return c.OwnerID == id
	}
	return false
}

// Counterpart returns the recipient on the other side of the chat.
func (c *Chat) Counterpart(role Role) Recipient {
	if role == RoleUser {
		return Recipient{Role: RoleOwner, ID: c.OwnerID}
	}
	return Recipient{Role: RoleUser, ID: c.UserID}
}

// Message is one chat line.  SenderRole is user or owner.
type Message struct {
	ID         uint64    `json:"id"`
	ChatID     uint64    `json:"chat_id"`
	SenderRole Role      `json:"sender_role"`
	SenderID   uint64    `json:"sender_id"`
	Body       string    `json:"body"`
	IsRead     bool      `json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`
}
