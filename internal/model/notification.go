package model

import "time"

type NotificationType string

const (
	NotifOrderCreated    NotificationType = "order_created"
	NotifOrderStatus     NotificationType = "order_status"
	NotifOrderCancelled  NotificationType = "order_cancelled"
	NotifOrderCompleted  NotificationType = "order_completed"
	NotifOfferReceived   NotificationType = "offer_received"
	NotifOfferStatus     NotificationType = "offer_status"
	NotifProductPending  NotificationType = "product_pending"
	NotifProductApproved NotificationType = "product_approved"
	NotifProductRejected NotificationType = "product_rejected"
	NotifOwnerRegistered NotificationType = "owner_registered"
	NotifOwnerApproved   NotificationType = "owner_approved"
	NotifPasswordChanged NotificationType = "password_changed"
)

// Recipient addresses exactly one account.
type Recipient struct {
	Role Role
	ID   uint64
}

// Notification is addressed to exactly one of user, owner or admin; the
// other two ids are nil.
type Notification struct {
	ID        uint64           `json:"id"`
	UserID    *uint64          `json:"user_id,omitempty"`
	OwnerID   *uint64          `json:"owner_id,omitempty"`
	AdminID   *uint64          `json:"admin_id,omitempty"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Link      string           `json:"link"`
	IsRead    bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}

// NewNotification builds an unread notification for r.
func NewNotification(r Recipient, t NotificationType, title, message, link string) *Notification {
	n := &Notification{Type: t, Title: title, Message: message, Link: link}
	id := r.ID
	switch r.Role {
	case RoleUser:
		n.UserID = &id
	case RoleOwner:
		n.OwnerID = &id
	case RoleAdmin:
		n.AdminID = &id
	}
	return n
}

// Recipient reports who the notification is addressed to.
func (n *Notification) Recipient() Recipient {
	switch {
	case n.UserID != nil:
		return Recipient{Role: RoleUser, ID: *n.UserID}
	case n.OwnerID != nil:
		return Recipient{Role: RoleOwner, ID: *n.OwnerID}
	case n.AdminID != nil:
		return Recipient{Role: RoleAdmin, ID: *n.AdminID}
	}
	return Recipient{}
}
