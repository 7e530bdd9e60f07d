package http

import (
	stderrors "errors"
	"net/http"
	"strings"

	"dealerhub/internal/core/domain"
	"dealerhub/internal/core/ports"
	"dealerhub/internal/core/services"
	"dealerhub/internal/infrastructure/middleware"
	"dealerhub/pkg/errors"
	"dealerhub/pkg/validation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	sessions   ports.SessionService
	navigation *services.NavigationService
	cookie     middleware.CookieConfig
	loginLimit gin.HandlerFunc
	logger     *zap.SugaredLogger
}

// NewAuthHandler wires the login endpoints. loginLimit may be nil.
func NewAuthHandler(
	sessions ports.SessionService,
	navigation *services.NavigationService,
	cookie middleware.CookieConfig,
	loginLimit gin.HandlerFunc,
	logger *zap.SugaredLogger,
) *AuthHandler {
	return &AuthHandler{
		sessions:   sessions,
		navigation: navigation,
		cookie:     cookie,
		loginLimit: loginLimit,
		logger:     logger,
	}
}

func (h *AuthHandler) SetupRoutes(router gin.IRouter) {
	auth := router.Group("/auth")
	{
		if h.loginLimit != nil {
			auth.POST("/login", h.loginLimit, h.Login)
		} else {
			auth.POST("/login", h.Login)
		}
		auth.POST("/logout", h.Logout)
		auth.GET("/session", h.Session)
	}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required,max=100"`
	Password string `json:"password" binding:"required,max=128"`
	// Next is where the client was heading when it was sent to login.
	Next string `json:"next" binding:"max=2048"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if err := validation.ValidateUsername(req.Username); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}
	if err := validation.ValidatePassword(req.Password); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}

	session, token, err := h.sessions.Login(c.Request.Context(), domain.Credentials{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		c.Error(loginError(err))
		return
	}

	redirect := h.navigation.HomePath(session)
	if req.Next != "" && validation.ValidateReturnPath(req.Next) == nil {
		redirect = req.Next
	}

	middleware.SetSessionCookie(c, h.cookie, token, session.ExpiresAt)
	c.JSON(http.StatusOK, gin.H{
		"session":  session,
		"token":    token,
		"redirect": redirect,
	})
}

func loginError(err error) *errors.AppError {
	switch {
	case stderrors.Is(err, domain.ErrInvalidCredentials):
		return errors.NewInvalidCredentialsError()
	case stderrors.Is(err, domain.ErrProviderUnavailable):
		return errors.WrapError(err, errors.ErrCodeServiceUnavailable,
			"authentication service unavailable", http.StatusServiceUnavailable)
	case stderrors.Is(err, domain.ErrLoginPending):
		return errors.NewConflictError("a login for this user is already in progress")
	case stderrors.Is(err, domain.ErrUnknownRole):
		return errors.NewForbiddenError("account role is not supported by the portal")
	default:
		return errors.WrapError(err, errors.ErrCodeInternal, "login failed", http.StatusInternalServerError)
	}
}

// Logout always clears the cookie, even when the token is already dead.
func (h *AuthHandler) Logout(c *gin.Context) {
	token := middleware.SessionToken(c, h.cookie.Name)
	middleware.ClearSessionCookie(c, h.cookie)

	if token != "" {
		if err := h.sessions.Logout(c.Request.Context(), token); err != nil {
			c.Error(errors.WrapError(err, errors.ErrCodeInternal, "logout failed", http.StatusInternalServerError))
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"redirect": h.navigation.HomePath(nil),
	})
}

func (h *AuthHandler) Session(c *gin.Context) {
	session, ok := middleware.SessionFromContext(c)
	if !ok {
		c.Error(errors.NewUnauthorizedError("not signed in"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session": session,
		"home":    h.navigation.HomePath(session),
	})
}
