package services

import (
	"testing"
	"time"

	"dealerhub/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

func sessionFor(role domain.Role) *domain.Session {
	return domain.NewSession("s-1", domain.Identity{
		UserID:   "u-1",
		Username: "tester",
		Role:     role,
	}, time.Now(), time.Hour)
}

func TestRouteGuard_Scenarios(t *testing.T) {
	guard := NewRouteGuard("/login", "/unauthorized")

	tests := []struct {
		name    string
		rule    domain.AccessRule
		session *domain.Session
		want    domain.Decision
	}{
		{
			name:    "admin on admin view renders",
			rule:    domain.RequireRoles(domain.RoleAdmin),
			session: sessionFor(domain.RoleAdmin),
			want:    domain.Render(),
		},
		{
			name:    "customer on admin view is denied",
			rule:    domain.RequireRoles(domain.RoleAdmin),
			session: sessionFor(domain.RoleCustomer),
			want:    domain.Redirect("/unauthorized", domain.ReasonRoleNotAllowed),
		},
		{
			name:    "anonymous on authenticated view goes to login",
			rule:    domain.Authenticated(),
			session: nil,
			want:    domain.Redirect("/login", domain.ReasonUnauthenticated),
		},
		{
			name:    "anonymous on role view goes to login",
			rule:    domain.AccessRule{Roles: domain.NewRoleSet(domain.RoleAdmin)},
			session: nil,
			want:    domain.Redirect("/login", domain.ReasonUnauthenticated),
		},
		{
			name:    "anonymous on public view renders",
			rule:    domain.Public(),
			session: nil,
			want:    domain.Render(),
		},
		{
			name:    "any session on authenticated view renders",
			rule:    domain.Authenticated(),
			session: sessionFor(domain.RoleCustomer),
			want:    domain.Render(),
		},
		{
			name:    "missing permission is denied",
			rule:    domain.RequirePermissions(domain.PermUsersManage),
			session: sessionFor(domain.RoleDealerManager),
			want:    domain.Redirect("/unauthorized", domain.ReasonPermissionMissing),
		},
		{
			name:    "all permissions held renders",
			rule:    domain.RequirePermissions(domain.PermOrdersRead, domain.PermOrdersWrite),
			session: sessionFor(domain.RoleDealerStaff),
			want:    domain.Render(),
		},
		{
			name: "role check runs before permission check",
			rule: domain.AccessRule{
				RequireAuth: true,
				Roles:       domain.NewRoleSet(domain.RoleAdmin),
				Permissions: domain.NewPermissionSet(domain.PermUsersManage),
			},
			session: sessionFor(domain.RoleCustomer),
			want:    domain.Redirect("/unauthorized", domain.ReasonRoleNotAllowed),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, guard.Evaluate(tt.rule, tt.session))
		})
	}
}

// Every combination of session role and required role set: render iff the
// role is in the set or the set is empty.
func TestRouteGuard_RoleMembershipDecidesRender(t *testing.T) {
	guard := NewRouteGuard("/login", "/unauthorized")
	roles := domain.AllRoles()

	for mask := 0; mask < 1<<len(roles); mask++ {
		var required []domain.Role
		for i, r := range roles {
			if mask&(1<<i) != 0 {
				required = append(required, r)
			}
		}
		rule := domain.RequireRoles(required...)

		for _, role := range roles {
			decision := guard.Evaluate(rule, sessionFor(role))
			want := len(required) == 0 || rule.Roles.Contains(role)
			assert.Equal(t, want, decision.Rendered(), "role=%s required=%v", role, required)
			if !want {
				assert.Equal(t, "/unauthorized", decision.Path)
			}
		}
	}
}

func TestRouteGuard_AnonymousNeverRendersProtectedViews(t *testing.T) {
	guard := NewRouteGuard("/login", "/unauthorized")

	for _, v := range Views() {
		decision := guard.Evaluate(v.Rule, nil)
		if v.Rule.NeedsSession() {
			assert.Equal(t, domain.Redirect("/login", domain.ReasonUnauthenticated), decision, v.ID)
		} else {
			assert.True(t, decision.Rendered(), v.ID)
		}
	}
}
