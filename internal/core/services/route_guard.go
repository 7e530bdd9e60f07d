package services

import (
	"dealerhub/internal/core/domain"
)

// RouteGuard decides whether a protected view renders for a session.
// It holds no state besides the two redirect targets.
type RouteGuard struct {
	loginPath        string
	accessDeniedPath string
}

func NewRouteGuard(loginPath, accessDeniedPath string) *RouteGuard {
	return &RouteGuard{
		loginPath:        loginPath,
		accessDeniedPath: accessDeniedPath,
	}
}

func (g *RouteGuard) LoginPath() string {
	return g.loginPath
}

func (g *RouteGuard) AccessDeniedPath() string {
	return g.accessDeniedPath
}

// Evaluate returns Render or a Redirect. A nil session means the client
// is not authenticated.
func (g *RouteGuard) Evaluate(rule domain.AccessRule, session *domain.Session) domain.Decision {
	if session == nil {
		if rule.NeedsSession() {
			return domain.Redirect(g.loginPath, domain.ReasonUnauthenticated)
		}
		return domain.Render()
	}

	if !rule.Roles.Empty() && !rule.Roles.Contains(session.Role) {
		return domain.Redirect(g.accessDeniedPath, domain.ReasonRoleNotAllowed)
	}
	if !session.Permissions.ContainsAll(rule.Permissions) {
		return domain.Redirect(g.accessDeniedPath, domain.ReasonPermissionMissing)
	}
	return domain.Render()
}
