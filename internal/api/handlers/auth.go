package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/JvSe/deep-logs/internal/api/middleware"
	"github.com/JvSe/deep-logs/internal/database/models"
	"github.com/JvSe/deep-logs/internal/services"
	"github.com/gin-gonic/gin"
)

// AuthHandler handles dashboard login, logout and profile requests
type AuthHandler struct {
	userService   *services.UserService
	sessions      *middleware.SessionManager
	secureCookies bool
}

// NewAuthHandler creates a new AuthHandler instance
func NewAuthHandler(userService *services.UserService, sessions *middleware.SessionManager, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		userService:   userService,
		sessions:      sessions,
		secureCookies: secureCookies,
	}
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse represents the login response body
type LoginResponse struct {
	Message string       `json:"message"`
	User    *models.User `json:"user"`
}

// Login checks credentials and sets the session cookie
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadBody(c)
		return
	}

	verr := &services.ValidationError{}
	if strings.TrimSpace(req.Email) == "" {
		verr.Fields = append(verr.Fields, services.FieldError{Field: "email", Message: "email is required"})
	}
	if req.Password == "" {
		verr.Fields = append(verr.Fields, services.FieldError{Field: "password", Message: "password is required"})
	}
	if len(verr.Fields) > 0 {
		respondError(c, "login", verr)
		return
	}

	user, err := h.userService.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
		case errors.Is(err, services.ErrUserInactive):
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "user inactive"})
		default:
			respondError(c, "authenticate", err)
		}
		return
	}

	token, expiresAt, err := h.sessions.Issue(middleware.Session{
		UserID: user.ID,
		Email:  user.Email,
		Role:   string(user.Role),
	})
	if err != nil {
		respondError(c, "issue session", err)
		return
	}

	maxAge := int(h.sessions.TTL().Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookieName, token, maxAge, "/", "", h.secureCookies, true)
	c.Header("X-Session-Expires", expiresAt.UTC().Format(time.RFC3339))

	c.JSON(http.StatusOK, LoginResponse{
		Message: "Login successful",
		User:    user,
	})
}

// Logout clears the session cookie
// POST /api/auth/logout
// GET /api/auth/logout redirects to the home page afterwards
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookieName, "", -1, "/", "", h.secureCookies, true)

	if c.Request.Method == http.MethodGet {
		c.Redirect(http.StatusFound, "/")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Logout successful",
	})
}

// Me returns the profile of the logged in user
// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	session, ok := middleware.GetSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Authentication required"})
		return
	}

	user, err := h.userService.GetUserByID(c.Request.Context(), session.UserID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Invalid session"})
			return
		}
		respondError(c, "get user", err)
		return
	}
	if !user.IsActive {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "user inactive"})
		return
	}

	c.JSON(http.StatusOK, user)
}
