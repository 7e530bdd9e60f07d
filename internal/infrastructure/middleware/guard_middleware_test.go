package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"dealerhub/internal/core/domain"
	"dealerhub/internal/core/ports"
	"dealerhub/internal/core/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type decision struct {
	view, outcome, reason string
}

type recordingGuardMetrics struct {
	decisions []decision
}

func (r *recordingGuardMetrics) RecordDecision(view, outcome, reason string) {
	r.decisions = append(r.decisions, decision{view, outcome, reason})
}

// guardRouter injects session directly, standing in for SessionMiddleware.
func guardRouter(session *domain.Session, rule domain.AccessRule, metrics ports.GuardMetrics) *gin.Engine {
	gin.SetMode(gin.TestMode)
	guard := services.NewRouteGuard("/login", "/unauthorized")

	router := gin.New()
	router.Use(func(c *gin.Context) {
		if session != nil {
			c.Set(string(sessionKey), session)
		}
		c.Next()
	})
	handler := func(c *gin.Context) { c.String(http.StatusOK, "rendered") }
	guarded := Guard(guard, "admin-dashboard", rule, metrics)
	router.GET("/dashboard/admin", guarded, handler)
	router.GET("/api/v1/users", guarded, handler)
	router.POST("/dashboard/admin", guarded, handler)
	return router
}

func TestGuard_Render(t *testing.T) {
	metrics := &recordingGuardMetrics{}
	router := guardRouter(testSession(domain.RoleAdmin), domain.RequireRoles(domain.RoleAdmin), metrics)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard/admin", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "rendered", w.Body.String())
	assert.Equal(t, []decision{{"admin-dashboard", "render", ""}}, metrics.decisions)
}

func TestGuard_BrowserRedirects(t *testing.T) {
	t.Run("anonymous goes to login with next", func(t *testing.T) {
		router := guardRouter(nil, domain.RequireRoles(domain.RoleAdmin), nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard/admin?tab=1", nil))

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/login?next=%2Fdashboard%2Fadmin%3Ftab%3D1", w.Header().Get("Location"))
		assert.NotContains(t, w.Body.String(), "rendered")
	})

	t.Run("anonymous post has no next", func(t *testing.T) {
		router := guardRouter(nil, domain.RequireRoles(domain.RoleAdmin), nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/dashboard/admin", nil))

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/login", w.Header().Get("Location"))
	})

	t.Run("wrong role goes to access denied", func(t *testing.T) {
		metrics := &recordingGuardMetrics{}
		router := guardRouter(testSession(domain.RoleCustomer), domain.RequireRoles(domain.RoleAdmin), metrics)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard/admin", nil))

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/unauthorized", w.Header().Get("Location"))
		assert.Equal(t, []decision{{"admin-dashboard", "redirect", domain.ReasonRoleNotAllowed}}, metrics.decisions)
	})
}

func TestGuard_APICallersGetJSON(t *testing.T) {
	tests := []struct {
		name       string
		session    *domain.Session
		path       string
		accept     string
		wantStatus int
		wantError  string
		wantTarget string
	}{
		{
			name:       "anonymous api path",
			path:       "/api/v1/users",
			wantStatus: http.StatusUnauthorized,
			wantError:  domain.ReasonUnauthenticated,
			wantTarget: "/login?next=%2Fapi%2Fv1%2Fusers",
		},
		{
			name:       "wrong role with json accept",
			session:    testSession(domain.RoleDealerStaff),
			path:       "/dashboard/admin",
			accept:     "application/json",
			wantStatus: http.StatusForbidden,
			wantError:  domain.ReasonRoleNotAllowed,
			wantTarget: "/unauthorized",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := guardRouter(tt.session, domain.RequireRoles(domain.RoleAdmin), nil)

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantError, body["error"])
			assert.Equal(t, tt.wantTarget, body["redirect"])
		})
	}
}

func TestIsAPIRequest(t *testing.T) {
	browser := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	browser.Header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9")
	assert.False(t, IsAPIRequest(browser))

	fetch := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	fetch.Header.Set("Accept", "application/json")
	assert.True(t, IsAPIRequest(fetch))

	assert.True(t, IsAPIRequest(httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)))
}
