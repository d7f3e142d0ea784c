package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Mailer delivers password-reset tokens to the address on file.  The
// token never travels back to whoever asked for the reset.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to, token string, expires time.Time) error
}

// LogMailer writes reset mails to the log instead of sending them.  It is
// the development transport.
type LogMailer struct {
	Log *logrus.Logger
}

func (m LogMailer) SendPasswordReset(_ context.Context, to, token string, expires time.Time) error {
	m.Log.WithFields(logrus.Fields{
		"to":      to,
		"token":   token,
		"expires": expires.Format(time.RFC3339),
	}).Info("mail: password reset")
	return nil
}
