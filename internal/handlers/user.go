// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"log/slog"
	"net/http"
	"net/url"

	"codeberg.org/inw/serpback/internal/appcontext"
	"codeberg.org/inw/serpback/internal/services/account"
	"codeberg.org/inw/serpback/internal/services/session"
	"github.com/labstack/echo/v4"
)

// UserHandlers contains the /api/user endpoints.
type UserHandlers struct {
	accounts *account.Service
	sessions *session.Manager
}

// NewUser creates a new UserHandlers instance.
func NewUser(accounts *account.Service, sessions *session.Manager) *UserHandlers {
	return &UserHandlers{accounts: accounts, sessions: sessions}
}

// LoginRequest is the body of POST /api/user/login. Username may be a
// login or an email address.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned on successful login.
type LoginResponse struct {
	Login       string   `json:"login"`
	Authorities []string `json:"authorities"`
}

// ResetInitRequest is the body of POST /api/user/reset/init.
type ResetInitRequest struct {
	Login string `json:"login"`
}

// ResetFinishRequest is the body of POST /api/user/reset/finish/:token.
type ResetFinishRequest struct {
	Password string `json:"password"`
}

// AuthoritiesRequest is the body of PUT /api/user/:login/authorities. A
// missing or null list removes all roles.
type AuthoritiesRequest struct {
	Authorities []string `json:"authorities"`
}

func bindError(err error) error {
	return echo.NewHTTPError(http.StatusBadRequest, "invalid request body").SetInternal(err)
}

// Login authenticates the user and starts a session.
func (h *UserHandlers) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return bindError(err)
	}

	principal, err := h.accounts.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return respondError(c, err)
	}

	cookie, err := h.sessions.Create(principal.UserID, principal.Login)
	if err != nil {
		return respondError(c, err)
	}
	c.SetCookie(cookie)

	return c.JSON(http.StatusOK, LoginResponse{
		Login:       principal.Login,
		Authorities: principal.Authorities,
	})
}

// Logout ends the session.
func (h *UserHandlers) Logout(c echo.Context) error {
	c.SetCookie(h.sessions.Clear())
	return c.NoContent(http.StatusOK)
}

// Register creates a pending account.
func (h *UserHandlers) Register(c echo.Context) error {
	var req account.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return bindError(err)
	}

	summary, err := h.accounts.Register(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err)
	}

	return created(c, summary)
}

// ConfirmRegistration enables the account owning the token in the path.
func (h *UserHandlers) ConfirmRegistration(c echo.Context) error {
	ok, err := h.accounts.ConfirmRegistration(c.Request().Context(), c.Param("token"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, ok)
}

// PasswordResetInit starts a password reset. It always answers 200.
func (h *UserHandlers) PasswordResetInit(c echo.Context) error {
	var req ResetInitRequest
	if err := c.Bind(&req); err != nil {
		slog.InfoContext(c.Request().Context(), "password_reset_init_bad_request", "error", err)
		return c.NoContent(http.StatusOK)
	}

	if err := h.accounts.PasswordResetInit(c.Request().Context(), req.Login); err != nil {
		slog.ErrorContext(c.Request().Context(), "password_reset_init_failed", "error", err)
	}
	return c.NoContent(http.StatusOK)
}

// PasswordResetFinish sets a new password for the token in the path.
func (h *UserHandlers) PasswordResetFinish(c echo.Context) error {
	var req ResetFinishRequest
	if err := c.Bind(&req); err != nil {
		return bindError(err)
	}

	if err := h.accounts.PasswordResetFinish(c.Request().Context(), c.Param("token"), req.Password); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusOK)
}

// Get returns the details of an account. Users may only read their own.
func (h *UserHandlers) Get(c echo.Context) error {
	login := c.Param("login")
	if !appcontext.From(c).Principal.CanAccess(login) {
		return writeError(c, http.StatusUnauthorized, ErrorResponse{
			ErrorCode: CodeUnauthorized,
			Details:   "not allowed to access this account",
		})
	}

	details, err := h.accounts.GetDetails(c.Request().Context(), login)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, details)
}

// List returns all accounts.
func (h *UserHandlers) List(c echo.Context) error {
	details, err := h.accounts.ListDetails(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, details)
}

// Create creates an account on behalf of an admin.
func (h *UserHandlers) Create(c echo.Context) error {
	var req account.CreateRequest
	if err := c.Bind(&req); err != nil {
		return bindError(err)
	}

	summary, err := h.accounts.CreateUser(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err)
	}

	return created(c, summary)
}

// Update changes login and email of an account. Admins may also change
// authorities and update any account.
func (h *UserHandlers) Update(c echo.Context) error {
	login := c.Param("login")
	ac := appcontext.From(c)
	if !ac.Principal.CanAccess(login) {
		return writeError(c, http.StatusUnauthorized, ErrorResponse{
			ErrorCode: CodeUnauthorized,
			Details:   "not allowed to change this account",
		})
	}

	var req account.UpdateRequest
	if err := c.Bind(&req); err != nil {
		return bindError(err)
	}

	details, err := h.accounts.UpdateUser(c.Request().Context(), login, req, ac.IsAdmin())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, details)
}

// UpdateAuthorities replaces the roles of an account.
func (h *UserHandlers) UpdateAuthorities(c echo.Context) error {
	var req AuthoritiesRequest
	if err := c.Bind(&req); err != nil {
		return bindError(err)
	}
	if req.Authorities == nil {
		req.Authorities = []string{}
	}

	details, err := h.accounts.UpdateAuthorities(c.Request().Context(), c.Param("login"), req.Authorities)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, details)
}

// Delete removes an account.
func (h *UserHandlers) Delete(c echo.Context) error {
	if _, err := h.accounts.DeleteUser(c.Request().Context(), c.Param("login")); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func created(c echo.Context, summary *account.CreatedSummary) error {
	c.Response().Header().Set(echo.HeaderLocation, "/api/user/"+url.PathEscape(summary.Login))
	return c.JSON(http.StatusCreated, summary)
}
