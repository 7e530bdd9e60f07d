package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"dealerhub/internal/core/domain"
	"dealerhub/internal/core/ports"
	"dealerhub/internal/core/services"
	"dealerhub/pkg/tracing"

	"github.com/gin-gonic/gin"
)

// Guard evaluates rule for the request's session. Rendering continues the
// chain; a redirect aborts it.
func Guard(guard *services.RouteGuard, view string, rule domain.AccessRule, metrics ports.GuardMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, _ := SessionFromContext(c)
		decision := guard.Evaluate(rule, session)

		if metrics != nil {
			metrics.RecordDecision(view, decision.Outcome.String(), decision.Reason)
		}
		tracing.AddSpanAttributes(c.Request.Context(),
			tracing.ViewKey.String(view),
			tracing.OutcomeKey.String(decision.Outcome.String()),
			tracing.ReasonKey.String(decision.Reason),
		)

		if decision.Rendered() {
			c.Next()
			return
		}
		abortWithRedirect(c, decision)
	}
}

// GuardView is Guard for a registered view.
func GuardView(guard *services.RouteGuard, view services.View, metrics ports.GuardMetrics) gin.HandlerFunc {
	return Guard(guard, string(view.ID), view.Rule, metrics)
}

func abortWithRedirect(c *gin.Context, decision domain.Decision) {
	target := decision.Path
	if decision.Reason == domain.ReasonUnauthenticated && c.Request.Method == http.MethodGet {
		target += "?next=" + url.QueryEscape(c.Request.URL.RequestURI())
	}

	if IsAPIRequest(c.Request) {
		status := http.StatusForbidden
		if decision.Reason == domain.ReasonUnauthenticated {
			status = http.StatusUnauthorized
		}
		c.AbortWithStatusJSON(status, gin.H{
			"error":    decision.Reason,
			"redirect": target,
		})
		return
	}

	c.Redirect(http.StatusFound, target)
	c.Abort()
}

// IsAPIRequest tells programmatic callers, who get JSON, from browser
// navigations, who get redirected.
func IsAPIRequest(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}
