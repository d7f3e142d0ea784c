package model

import (
	"strings"
	"time"
)

// Role names one of the three account kinds.  The value is what the JWT
// "role" claim carries and what chat messages record as sender role.
type Role string

const (
	RoleUser  Role = "user"
	RoleOwner Role = "owner"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleOwner, RoleAdmin:
		return true
	}
	return false
}

// ParseRole normalizes s and reports whether it names a role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

// Account is implemented by every account variant.  Code that needs the
// variant-specific fields type-switches on *User, *Owner or *Admin.
type Account interface {
	AccountID() uint64
	AccountEmail() string
	AccountRole() Role
	HashedPassword() string
}

// User represents a row in the `users` table: a buyer.
//
// Fields:
//
//	Wishlist – ordered product ids, stored as a JSON array.
type User struct {
	ID           uint64    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	Address      string    `json:"address"`
	Wishlist     []uint64  `json:"wishlist"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) AccountID() uint64      { return u.ID }
func (u *User) AccountEmail() string   { return u.Email }
func (u *User) AccountRole() Role      { return RoleUser }
func (u *User) HashedPassword() string { return u.PasswordHash }

// Owner represents a row in the `owners` table.  An owner runs shops and
// may only use owner endpoints once an admin has set Approved.
type Owner struct {
	ID           uint64    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	BusinessName string    `json:"business_name"`
	Approved     bool      `json:"approved"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (o *Owner) AccountID() uint64      { return o.ID }
func (o *Owner) AccountEmail() string   { return o.Email }
func (o *Owner) AccountRole() Role      { return RoleOwner }
func (o *Owner) HashedPassword() string { return o.PasswordHash }

// Admin represents a row in the `admins` table.  Admins are created out of
// band (cmd/createadmin), never through public registration.
type Admin struct {
	ID           uint64    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (a *Admin) AccountID() uint64      { return a.ID }
func (a *Admin) AccountEmail() string   { return a.Email }
func (a *Admin) AccountRole() Role      { return RoleAdmin }
func (a *Admin) HashedPassword() string { return a.PasswordHash }

// Identity is what a verified access token asserts.
type Identity struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Principal is the authenticated caller attached to a request: the token
// identity merged with the freshly loaded account.  Account is nil for
// routes guarded only by role membership.
type Principal struct {
	Identity
	Account Account `json:"account,omitempty"`
}

// Recipient addresses the principal's own notifications.
func (p Principal) Recipient() Recipient {
	return Recipient{Role: p.Role, ID: p.ID}
}

// ProfileUpdate carries optional profile changes; nil fields are untouched.
type ProfileUpdate struct {
	Name         *string
	Phone        *string
	Address      *string
	BusinessName *string
}

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA-256 hash of the token value is stored.
type RefreshToken struct {
	ID          uint64
	AccountRole Role
	AccountID   uint64
	TokenHash   string
	ExpiresAt   time.Time
	RevokedAt   *time.Time
	CreatedAt   time.Time
}
