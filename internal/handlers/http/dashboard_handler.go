package http

import (
	"net/http"

	"dealerhub/internal/core/domain"
	"dealerhub/internal/core/ports"
	"dealerhub/internal/core/services"
	"dealerhub/internal/infrastructure/middleware"
	"dealerhub/pkg/validation"

	"github.com/gin-gonic/gin"
)

// DashboardHandler serves the portal pages. Each registered view sits
// behind the route guard; the login and access-denied pages are public.
type DashboardHandler struct {
	guard      *services.RouteGuard
	navigation *services.NavigationService
	metrics    ports.GuardMetrics
}

func NewDashboardHandler(guard *services.RouteGuard, navigation *services.NavigationService, metrics ports.GuardMetrics) *DashboardHandler {
	return &DashboardHandler{
		guard:      guard,
		navigation: navigation,
		metrics:    metrics,
	}
}

func (h *DashboardHandler) SetupRoutes(router gin.IRouter) {
	router.GET(h.guard.LoginPath(), h.LoginPage)
	router.GET(h.guard.AccessDeniedPath(), h.AccessDenied)
	router.GET("/navigation", h.Navigation)

	for _, view := range services.Views() {
		router.GET(view.Path, middleware.GuardView(h.guard, view, h.metrics), h.renderView(view))
	}
}

// LoginPage sends clients that already have a session on to where they
// were going.
func (h *DashboardHandler) LoginPage(c *gin.Context) {
	next := c.Query("next")
	if validation.ValidateReturnPath(next) != nil {
		next = ""
	}

	if session, ok := middleware.SessionFromContext(c); ok {
		target := next
		if target == "" {
			target = h.navigation.HomePath(session)
		}
		c.Redirect(http.StatusFound, target)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"view": "login",
		"next": next,
	})
}

func (h *DashboardHandler) AccessDenied(c *gin.Context) {
	session, _ := middleware.SessionFromContext(c)
	c.JSON(http.StatusOK, gin.H{
		"view":       "unauthorized",
		"message":    "You do not have access to this page.",
		"home":       h.navigation.HomePath(session),
		"navigation": h.navigation.Navigation(session),
	})
}

func (h *DashboardHandler) Navigation(c *gin.Context) {
	session, _ := middleware.SessionFromContext(c)
	c.JSON(http.StatusOK, gin.H{
		"navigation": h.navigation.Navigation(session),
	})
}

func (h *DashboardHandler) renderView(view services.View) gin.HandlerFunc {
	role, isDashboard := dashboardRole(view.ID)

	return func(c *gin.Context) {
		session, _ := middleware.SessionFromContext(c)

		body := gin.H{
			"view":       view,
			"navigation": h.navigation.Navigation(session),
		}
		if session != nil {
			body["session"] = session
		}
		if isDashboard {
			body["role"] = role.DisplayName()
			body["panels"] = services.Panels(role)
		}
		c.JSON(http.StatusOK, body)
	}
}

// dashboardRole finds the role whose landing dashboard is id. A dashboard
// shows that role's panels whoever views it.
func dashboardRole(id services.ViewID) (domain.Role, bool) {
	for _, role := range domain.AllRoles() {
		if services.DashboardFor(role) == id {
			return role, true
		}
	}
	return domain.RoleUnknown, false
}
