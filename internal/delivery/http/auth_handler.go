package http

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"papertrade/internal/delivery/http/dto"
	"papertrade/internal/domain"
	"papertrade/internal/middleware"
	"papertrade/internal/usecase"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	accounts *usecase.AccountService
	auth     *middleware.Auth
	secure   bool
}

// NewAuthHandler creates a new AuthHandler. secure marks the session cookie
// HTTPS-only.
func NewAuthHandler(accounts *usecase.AccountService, auth *middleware.Auth, secure bool) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		auth:     auth,
		secure:   secure,
	}
}

// Login handles user login
// POST /api/auth/login
func (h *AuthHandler) Login(c echo.Context) error {
	var req dto.LoginRequest
	if err := c.Bind(&req); err != nil {
		return BadRequestResponse(c, "Invalid request payload")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	user, err := h.accounts.VerifyCredentials(ctx, req.Username, req.Password)
	if err != nil {
		return FailureResponse(c, err)
	}

	return h.startSession(c, http.StatusOK, user)
}

// Logout handles user logout
// POST /api/auth/logout
func (h *AuthHandler) Logout(c echo.Context) error {
	// Clear the cookie
	c.SetCookie(&http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1, // Delete cookie
	})

	return SuccessMessageResponse(c, "Logged out", nil)
}

// Register handles user registration and logs the new user in
// POST /api/auth/register
func (h *AuthHandler) Register(c echo.Context) error {
	var req dto.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return BadRequestResponse(c, "Invalid request payload")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	user, err := h.accounts.Register(ctx, req.Username, req.Password, req.Confirmation)
	if err != nil {
		return FailureResponse(c, err)
	}

	return h.startSession(c, http.StatusCreated, user)
}

// CheckUsername reports whether a username is free
// GET /api/auth/check?username=
func (h *AuthHandler) CheckUsername(c echo.Context) error {
	username := c.QueryParam("username")

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	available, err := h.accounts.IsUsernameAvailable(ctx, username)
	if err != nil {
		return FailureResponse(c, err)
	}

	return SuccessResponse(c, dto.UsernameCheckOutput{
		Username:  username,
		Available: available,
	})
}

func (h *AuthHandler) startSession(c echo.Context, status int, user *domain.User) error {
	token, err := h.auth.GenerateJWT(user.ID, user.Username)
	if err != nil {
		return FailureResponse(c, err)
	}

	// Set HTTP-only cookie
	c.SetCookie(&http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(h.auth.TTL().Seconds()),
	})

	return c.JSON(status, Response{
		Status: "success",
		Data: dto.LoginResponse{
			Token: token,
			User:  dto.NewUserOutput(user),
		},
	})
}
