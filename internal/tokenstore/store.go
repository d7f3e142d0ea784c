// Package tokenstore keeps short-lived password-reset tokens.  The primary
// implementation lives in Redis so that tokens survive restarts and are
// visible to every instance; Memory is a single-process fallback used when
// Redis is unavailable.
package tokenstore

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/marketplace-backend/internal/model"
)

// ErrNotFound is returned by Consume for unknown, expired or already used
// tokens.
var ErrNotFound = errors.New("reset token not found")

// Subject identifies the account a reset token was issued for and when
// the token lapses.
type Subject struct {
	Role    model.Role `json:"role"`
	ID      uint64     `json:"id"`
	Expires time.Time  `json:"expires"`
}

// ResetTokenStore saves tokens with a TTL and consumes them exactly once.
type ResetTokenStore interface {
	Save(ctx context.Context, token string, subject Subject, ttl time.Duration) error
	Consume(ctx context.Context, token string) (Subject, error)
}
