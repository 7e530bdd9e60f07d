package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"dealerhub/internal/core/domain"
	"dealerhub/internal/core/ports"
	"dealerhub/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ginKey string

const (
	sessionKey ginKey = "dealerhub.session"
	tokenKey   ginKey = "dealerhub.token"
)

// CookieConfig describes the cookie that persists the session token.
type CookieConfig struct {
	Name   string
	Domain string
	Secure bool
}

func SetSessionCookie(c *gin.Context, cfg CookieConfig, token string, expires time.Time) {
	maxAge := int(time.Until(expires).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cfg.Name, token, maxAge, "/", cfg.Domain, cfg.Secure, true)
}

func ClearSessionCookie(c *gin.Context, cfg CookieConfig) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cfg.Name, "", -1, "/", cfg.Domain, cfg.Secure, true)
}

// SessionToken reads the persisted token from the Authorization header or,
// failing that, the session cookie.
func SessionToken(c *gin.Context, cookieName string) string {
	if header := c.GetHeader("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := c.Cookie(cookieName); err == nil {
		return cookie
	}
	return ""
}

// SessionMiddleware restores the session for every request. Requests
// without a usable token continue anonymously; the guard decides whether
// that is acceptable.
func SessionMiddleware(sessions ports.SessionService, cookie CookieConfig, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := SessionToken(c, cookie.Name)
		if token == "" {
			c.Next()
			return
		}

		session, err := sessions.Current(c.Request.Context(), token)
		switch {
		case err == nil:
			c.Set(string(sessionKey), session)
			c.Set(string(tokenKey), token)
			ctx := logger.WithSession(c.Request.Context(), string(session.ID), string(session.UserID))
			c.Request = c.Request.WithContext(ctx)
		case isDeadToken(err):
			// Stop the client from presenting a token we will never accept.
			ClearSessionCookie(c, cookie)
		default:
			log.Errorw("failed to restore session",
				"error", err,
				"path", c.Request.URL.Path,
			)
		}

		c.Next()
	}
}

func isDeadToken(err error) bool {
	return errors.Is(err, domain.ErrSessionInvalid) ||
		errors.Is(err, domain.ErrSessionExpired) ||
		errors.Is(err, domain.ErrTokenRevoked) ||
		errors.Is(err, domain.ErrSessionNotFound)
}

// SessionFromContext returns the session restored for this request.
func SessionFromContext(c *gin.Context) (*domain.Session, bool) {
	v, ok := c.Get(string(sessionKey))
	if !ok {
		return nil, false
	}
	session, ok := v.(*domain.Session)
	return session, ok && session != nil
}

// TokenFromContext returns the token the session was restored from.
func TokenFromContext(c *gin.Context) string {
	return c.GetString(string(tokenKey))
}
