package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/marketplace-backend/internal/apperr"
	"github.com/iliyamo/marketplace-backend/internal/model"
	"github.com/iliyamo/marketplace-backend/internal/repository"
	"github.com/iliyamo/marketplace-backend/internal/tokenstore"
	"github.com/iliyamo/marketplace-backend/internal/utils"
)

// AuthSettings carries the credential parameters taken from config.
type AuthSettings struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	BcryptCost int
	ResetTTL   time.Duration
}

// Session is the credential pair issued on register, login and refresh.
type Session struct {
	Access  utils.AccessToken
	Refresh utils.RefreshToken
}

// RegisterUserInput is the body of POST /api/auth/register.
type RegisterUserInput struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"required,max=120"`
	Phone    string `json:"phone" validate:"omitempty,max=40"`
	Address  string `json:"address" validate:"omitempty,max=255"`
}

// RegisterOwnerInput is the body of POST /api/auth/register-owner.
type RegisterOwnerInput struct {
	Email        string `json:"email" validate:"required,email,max=255"`
	Password     string `json:"password" validate:"required,min=8,max=72"`
	Name         string `json:"name" validate:"required,max=120"`
	Phone        string `json:"phone" validate:"omitempty,max=40"`
	BusinessName string `json:"business_name" validate:"required,max=160"`
}

// LoginInput selects the account table by role; an empty role means user.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"omitempty,oneof=user owner admin"`
}

// AccountService implements registration, login, sessions, profiles,
// wishlists, password reset and the admin side of owner approval.
type AccountService struct {
	accounts AccountStore
	tokens   RefreshStore
	products ProductStore
	resets   tokenstore.ResetTokenStore
	mail     Mailer
	notify   *Notifier
	auth     AuthSettings
	log      *logrus.Logger
}

func NewAccountService(accounts AccountStore, tokens RefreshStore, products ProductStore, resets tokenstore.ResetTokenStore,
	mail Mailer, notify *Notifier, auth AuthSettings, log *logrus.Logger) *AccountService {
	return &AccountService{
		accounts: accounts,
		tokens:   tokens,
		products: products,
		resets:   resets,
		mail:     mail,
		notify:   notify,
		auth:     auth,
		log:      log,
	}
}

func identityOf(acc model.Account) model.Identity {
	return model.Identity{ID: acc.AccountID(), Email: acc.AccountEmail(), Role: acc.AccountRole()}
}

// issue signs an access token and stores a fresh refresh token.
func (s *AccountService) issue(ctx context.Context, acc model.Account) (Session, error) {
	access, err := utils.NewAccessToken(s.auth.Secret, identityOf(acc), s.auth.AccessTTL)
	if err != nil {
		return Session{}, fmt.Errorf("issue access: %w", err)
	}
	refresh, err := utils.NewRefreshToken(s.auth.RefreshTTL)
	if err != nil {
		return Session{}, fmt.Errorf("issue refresh: %w", err)
	}
	if err := s.tokens.StoreRefresh(ctx, acc.AccountRole(), acc.AccountID(), utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return Session{}, fmt.Errorf("save refresh: %w", err)
	}
	return Session{Access: access, Refresh: refresh}, nil
}

// RegisterUser creates a user and signs them in.
func (s *AccountService) RegisterUser(ctx context.Context, in RegisterUserInput) (model.Account, Session, error) {
	hash, err := utils.HashPassword(in.Password, s.auth.BcryptCost)
	if err != nil {
		return nil, Session{}, err
	}
	u := &model.User{
		Email:        in.Email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(in.Name),
		Phone:        strings.TrimSpace(in.Phone),
		Address:      strings.TrimSpace(in.Address),
	}
	if err := s.accounts.CreateUser(ctx, u); err != nil {
		return nil, Session{}, translate(err)
	}
	sess, err := s.issue(ctx, u)
	if err != nil {
		return nil, Session{}, err
	}
	return u, sess, nil
}

// RegisterOwner creates an unapproved owner, signs them in and tells
// every admin there is an owner waiting for approval.  Owner-only
// endpoints keep answering PENDING_APPROVAL until an admin approves.
func (s *AccountService) RegisterOwner(ctx context.Context, in RegisterOwnerInput) (model.Account, Session, error) {
	hash, err := utils.HashPassword(in.Password, s.auth.BcryptCost)
	if err != nil {
		return nil, Session{}, err
	}
	o := &model.Owner{
		Email:        in.Email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(in.Name),
		Phone:        strings.TrimSpace(in.Phone),
		BusinessName: strings.TrimSpace(in.BusinessName),
	}
	if err := s.accounts.CreateOwner(ctx, o); err != nil {
		return nil, Session{}, translate(err)
	}
	sess, err := s.issue(ctx, o)
	if err != nil {
		return nil, Session{}, err
	}
	s.notify.NotifyAdmins(ctx, Message{
		Type:  model.NotifOwnerRegistered,
		Title: "New owner awaiting approval",
		Body:  fmt.Sprintf("%s (%s) registered as a shop owner.", o.BusinessName, o.Email),
		Link:  "/admin/owners/pending",
	})
	return o, sess, nil
}

// Login verifies credentials against the table selected by role.
// Unknown emails still pay for one bcrypt comparison so response timing
// does not reveal which emails exist.
func (s *AccountService) Login(ctx context.Context, in LoginInput) (model.Account, Session, error) {
	role := model.RoleUser
	if in.Role != "" {
		r, ok := model.ParseRole(in.Role)
		if !ok {
			return nil, Session{}, apperr.Validation("invalid role", apperr.FieldError{Field: "role", Message: "must be one of user, owner, admin"})
		}
		role = r
	}
	acc, err := s.accounts.GetAccountByEmail(ctx, role, in.Email)
	if errors.Is(err, repository.ErrNotFound) {
		utils.BurnPasswordCheck(in.Password)
		return nil, Session{}, apperr.InvalidCredentials()
	}
	if err != nil {
		return nil, Session{}, err
	}
	if !utils.VerifyPassword(acc.HashedPassword(), in.Password) {
		return nil, Session{}, apperr.InvalidCredentials()
	}
	sess, err := s.issue(ctx, acc)
	if err != nil {
		return nil, Session{}, err
	}
	return acc, sess, nil
}

// Refresh validates a refresh token, revokes it and issues a new pair.
func (s *AccountService) Refresh(ctx context.Context, raw string) (model.Account, Session, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, Session{}, apperr.Validation("refresh_token required", apperr.FieldError{Field: "refresh_token", Message: "is required"})
	}
	hash := utils.HashRefreshRaw(raw)
	role, id, err := s.tokens.ValidateRefresh(ctx, hash)
	if errors.Is(err, repository.ErrInvalidRefresh) {
		return nil, Session{}, apperr.InvalidToken()
	}
	if err != nil {
		return nil, Session{}, err
	}
	if err := s.tokens.RevokeByHash(ctx, hash); err != nil {
		return nil, Session{}, err
	}
	acc, err := s.accounts.GetAccount(ctx, role, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, Session{}, apperr.StaleCredential()
	}
	if err != nil {
		return nil, Session{}, err
	}
	sess, err := s.issue(ctx, acc)
	if err != nil {
		return nil, Session{}, err
	}
	return acc, sess, nil
}

// Logout revokes the given refresh token, or every refresh token of who
// when no token is supplied.  Access tokens are stateless and simply
// expire; the handler clears the session cookie.
func (s *AccountService) Logout(ctx context.Context, raw string, who *model.Identity) error {
	if raw = strings.TrimSpace(raw); raw != "" {
		return s.tokens.RevokeByHash(ctx, utils.HashRefreshRaw(raw))
	}
	if who != nil {
		return s.tokens.RevokeAllFor(ctx, who.Role, who.ID)
	}
	return nil
}

// Me loads the caller's account.
func (s *AccountService) Me(ctx context.Context, who model.Identity) (model.Account, error) {
	acc, err := s.accounts.GetAccount(ctx, who.Role, who.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.StaleCredential()
	}
	return acc, err
}

// UpdateProfile applies the fields the caller's account kind supports.
func (s *AccountService) UpdateProfile(ctx context.Context, who model.Identity, p model.ProfileUpdate) (model.Account, error) {
	acc, err := s.accounts.UpdateProfile(ctx, who.Role, who.ID, p)
	return acc, translate(err)
}

// Wishlist returns the user's wishlist in insertion order.
func (s *AccountService) Wishlist(ctx context.Context, userID uint64) ([]uint64, error) {
	u, err := s.accounts.GetUser(ctx, userID)
	if err != nil {
		return nil, translate(err)
	}
	return u.Wishlist, nil
}

// ToggleWishlist adds productID when absent and removes it when present.
// Only approved products can be added; removal always succeeds so stale
// entries can be cleaned up.
func (s *AccountService) ToggleWishlist(ctx context.Context, userID, productID uint64) ([]uint64, error) {
	current, err := s.Wishlist(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !contains(current, productID) {
		if _, err := s.products.GetApproved(ctx, productID); err != nil {
			return nil, translate(err)
		}
	}
	list, err := s.accounts.ToggleWishlist(ctx, userID, productID)
	return list, translate(err)
}

func contains(list []uint64, id uint64) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

// ForgotPassword mails a single-use reset token to the account's address.
// The outcome is the same whether or not the email is registered, and a
// failed delivery is only logged, so callers learn nothing about which
// accounts exist.
func (s *AccountService) ForgotPassword(ctx context.Context, role model.Role, email string) error {
	acc, err := s.accounts.GetAccountByEmail(ctx, role, email)
	if errors.Is(err, repository.ErrNotFound) {
		s.log.WithField("role", role).Debug("password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return err
	}
	token := uuid.NewString()
	exp := time.Now().UTC().Add(s.auth.ResetTTL)
	sub := tokenstore.Subject{Role: acc.AccountRole(), ID: acc.AccountID(), Expires: exp}
	if err := s.resets.Save(ctx, token, sub, s.auth.ResetTTL); err != nil {
		return fmt.Errorf("save reset token: %w", err)
	}
	if err := s.mail.SendPasswordReset(ctx, acc.AccountEmail(), token, exp); err != nil {
		s.log.WithError(err).WithField("account_id", acc.AccountID()).Warn("password reset mail not sent")
	}
	return nil
}

// ResetPassword consumes token, sets the new password and revokes every
// refresh token of the account.  When the password cannot be stored the
// token is put back for the rest of its lifetime so the user can retry.
func (s *AccountService) ResetPassword(ctx context.Context, token, password string) error {
	token = strings.TrimSpace(token)
	hash, err := utils.HashPassword(password, s.auth.BcryptCost)
	if err != nil {
		return err
	}
	sub, err := s.resets.Consume(ctx, token)
	if errors.Is(err, tokenstore.ErrNotFound) {
		return apperr.InvalidResetToken()
	}
	if err != nil {
		return err
	}
	if err := s.accounts.UpdatePassword(ctx, sub.Role, sub.ID, hash); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.restoreReset(ctx, token, sub)
		}
		return translate(err)
	}
	if err := s.tokens.RevokeAllFor(ctx, sub.Role, sub.ID); err != nil {
		s.log.WithError(err).WithField("account_id", sub.ID).Warn("revoke sessions after password reset failed")
	}
	s.notify.Notify(ctx, model.Recipient{Role: sub.Role, ID: sub.ID}, Message{
		Type:  model.NotifPasswordChanged,
		Title: "Password changed",
		Body:  "Your password was reset. If this was not you, contact support.",
	})
	return nil
}

func (s *AccountService) restoreReset(ctx context.Context, token string, sub tokenstore.Subject) {
	ttl := time.Until(sub.Expires)
	if sub.Expires.IsZero() || ttl <= 0 {
		return
	}
	if err := s.resets.Save(context.WithoutCancel(ctx), token, sub, ttl); err != nil {
		s.log.WithError(err).WithField("account_id", sub.ID).Warn("reset token could not be restored")
	}
}

// PendingOwners lists owners awaiting approval.
func (s *AccountService) PendingOwners(ctx context.Context) ([]*model.Owner, error) {
	return s.accounts.ListOwners(ctx, false)
}

// ApproveOwner flips the owner's approved flag and notifies them.
// Approving an already approved owner is a no-op that still succeeds.
func (s *AccountService) ApproveOwner(ctx context.Context, ownerID uint64) (*model.Owner, error) {
	o, err := s.accounts.GetOwner(ctx, ownerID)
	if err != nil {
		return nil, translate(err)
	}
	if o.Approved {
		return o, nil
	}
	if err := s.accounts.SetOwnerApproved(ctx, ownerID, true); err != nil {
		return nil, translate(err)
	}
	o.Approved = true
	s.notify.NotifyOwner(ctx, ownerID, Message{
		Type:  model.NotifOwnerApproved,
		Title: "Account approved",
		Body:  "Your owner account has been approved. You can now create shops and products.",
		Link:  "/owner/shops",
	})
	return o, nil
}

// Users lists every user for the admin console.
func (s *AccountService) Users(ctx context.Context) ([]*model.User, error) {
	return s.accounts.ListUsers(ctx)
}

// Stats returns platform counters for the admin dashboard.
func (s *AccountService) Stats(ctx context.Context) (repository.Stats, error) {
	return s.accounts.Stats(ctx)
}
