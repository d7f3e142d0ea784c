package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marketplace-backend/internal/middleware"
	"github.com/iliyamo/marketplace-backend/internal/model"
	"github.com/iliyamo/marketplace-backend/internal/service"
)

// CookieSettings controls the HttpOnly session cookie carrying the
// access token.
type CookieSettings struct {
	Name   string
	Secure bool
}

// AuthHandler serves /api/auth.
type AuthHandler struct {
	Accounts *service.AccountService
	Cookie   CookieSettings
}

func NewAuthHandler(accounts *service.AccountService, cookie CookieSettings) *AuthHandler {
	return &AuthHandler{Accounts: accounts, Cookie: cookie}
}

// ----- DTOs -----

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type forgotReq struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"omitempty,oneof=user owner admin"`
}

type resetReq struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type authResp struct {
	Role    model.Role    `json:"role"`
	Account model.Account `json:"account"`
	Access  tokenPart     `json:"access"`
	Refresh tokenPart     `json:"refresh"`
}

func (h *AuthHandler) setCookie(c echo.Context, value string, exp time.Time) {
	ck := &http.Cookie{
		Name:     h.Cookie.Name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.Cookie.Secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  exp,
	}
	if value == "" {
		ck.MaxAge = -1
		ck.Expires = time.Unix(0, 0)
	}
	c.SetCookie(ck)
}

// session writes the cookie and the token pair.  The raw refresh token is
// only ever returned here; the database keeps its hash.
func (h *AuthHandler) session(c echo.Context, status int, acc model.Account, s service.Session) error {
	h.setCookie(c, s.Access.Token, s.Access.Exp)
	return c.JSON(status, authResp{
		Role:    acc.AccountRole(),
		Account: acc,
		Access:  tokenPart{Token: s.Access.Token, Expires: s.Access.Exp},
		Refresh: tokenPart{Token: s.Refresh.Raw, Expires: s.Refresh.Exp},
	})
}

// Register creates a user account and signs it in.
func (h *AuthHandler) Register(c echo.Context) error {
	var req service.RegisterUserInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	acc, s, err := h.Accounts.RegisterUser(ctx, req)
	if err != nil {
		return err
	}
	return h.session(c, http.StatusCreated, acc, s)
}

// RegisterOwner creates an owner account awaiting admin approval.
func (h *AuthHandler) RegisterOwner(c echo.Context) error {
	var req service.RegisterOwnerInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	acc, s, err := h.Accounts.RegisterOwner(ctx, req)
	if err != nil {
		return err
	}
	return h.session(c, http.StatusCreated, acc, s)
}

// Login verifies credentials for the role named in the body.
func (h *AuthHandler) Login(c echo.Context) error {
	var req service.LoginInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	acc, s, err := h.Accounts.Login(ctx, req)
	if err != nil {
		return err
	}
	return h.session(c, http.StatusOK, acc, s)
}

// Refresh rotates a refresh token into a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	acc, s, err := h.Accounts.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return err
	}
	return h.session(c, http.StatusOK, acc, s)
}

// Logout revokes the supplied refresh token, or all of the caller's when
// none is given, and clears the session cookie.  It always succeeds for
// anonymous callers so clients can use it unconditionally.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	ctx, cancel := reqCtx(c)
	defer cancel()

	var who *model.Identity
	if id, ok := middleware.IdentityFrom(c); ok {
		who = &id
	}
	if err := h.Accounts.Logout(ctx, req.RefreshToken, who); err != nil {
		return err
	}
	h.setCookie(c, "", time.Time{})
	return c.NoContent(http.StatusNoContent)
}

// Me returns the caller's account.
func (h *AuthHandler) Me(c echo.Context) error {
	p, err := caller(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	acc, err := h.Accounts.Me(ctx, p.Identity)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"role": p.Role, "account": acc})
}

// resetRequested is the answer to every well-formed forgot-password
// request, whether or not the email belongs to an account.
const resetRequested = "if the account exists, a reset link has been sent"

// ForgotPassword asks for a reset token to be mailed to the account.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotReq
	if err := bind(c, &req); err != nil {
		return err
	}
	role := model.RoleUser
	if req.Role != "" {
		role = model.Role(req.Role)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Accounts.ForgotPassword(ctx, role, req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": resetRequested})
}

// ResetPassword consumes a reset token and sets a new password.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Accounts.ResetPassword(ctx, req.Token, req.Password); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password updated"})
}
