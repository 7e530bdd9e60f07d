package services

import (
	"strings"
	"testing"

	"dealerhub/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func viewIDs(views []View) []ViewID {
	ids := make([]ViewID, 0, len(views))
	for _, v := range views {
		ids = append(ids, v.ID)
	}
	return ids
}

func TestNavigationService_Navigation(t *testing.T) {
	nav := NewNavigationService(NewRouteGuard("/login", "/unauthorized"))

	t.Run("anonymous sees only public views", func(t *testing.T) {
		assert.Equal(t, []ViewID{ViewHome}, viewIDs(nav.Navigation(nil)))
	})

	t.Run("admin sees every view except other roles' dashboards", func(t *testing.T) {
		ownedElsewhere := map[ViewID]bool{
			ViewDealerManagerDashboard: true,
			ViewDealerStaffDashboard:   true,
			ViewCustomerDashboard:      true,
		}
		var want []ViewID
		for _, v := range Views() {
			if !ownedElsewhere[v.ID] {
				want = append(want, v.ID)
			}
		}
		assert.Equal(t, want, viewIDs(nav.Navigation(sessionFor(domain.RoleAdmin))))
	})

	t.Run("customer", func(t *testing.T) {
		ids := viewIDs(nav.Navigation(sessionFor(domain.RoleCustomer)))
		assert.Contains(t, ids, ViewCustomerDashboard)
		assert.Contains(t, ids, ViewTestDrives)
		assert.Contains(t, ids, ViewProfile)
		assert.NotContains(t, ids, ViewAdminDashboard)
		assert.NotContains(t, ids, ViewDealerStaffDashboard)
		assert.NotContains(t, ids, ViewUsers)
		assert.NotContains(t, ids, ViewReports)
	})

	t.Run("dealer manager reaches the staff dashboard", func(t *testing.T) {
		ids := viewIDs(nav.Navigation(sessionFor(domain.RoleDealerManager)))
		assert.Contains(t, ids, ViewDealerManagerDashboard)
		assert.Contains(t, ids, ViewDealerStaffDashboard)
		assert.NotContains(t, ids, ViewDealers)
	})
}

func TestNavigationService_HomePath(t *testing.T) {
	nav := NewNavigationService(NewRouteGuard("/login", "/unauthorized"))

	assert.Equal(t, "/login", nav.HomePath(nil))
	assert.Equal(t, "/dashboard/admin", nav.HomePath(sessionFor(domain.RoleAdmin)))
	assert.Equal(t, "/dashboard/evm", nav.HomePath(sessionFor(domain.RoleEVMStaff)))
	assert.Equal(t, "/dashboard/dealer-manager", nav.HomePath(sessionFor(domain.RoleDealerManager)))
	assert.Equal(t, "/dashboard/dealer-staff", nav.HomePath(sessionFor(domain.RoleDealerStaff)))
	assert.Equal(t, "/dashboard/customer", nav.HomePath(sessionFor(domain.RoleCustomer)))
}

// Each role's home dashboard must render for that role.
func TestNavigationService_DashboardRendersForItsRole(t *testing.T) {
	guard := NewRouteGuard("/login", "/unauthorized")

	for _, role := range domain.AllRoles() {
		v, ok := LookupView(DashboardFor(role))
		require.True(t, ok, role.String())
		assert.True(t, guard.Evaluate(v.Rule, sessionFor(role)).Rendered(), role.String())
	}
}

func TestPanels(t *testing.T) {
	for _, role := range domain.AllRoles() {
		panels := Panels(role)
		assert.NotEmpty(t, panels, role.String())
		for _, p := range panels {
			assert.True(t, strings.HasPrefix(p.Resource, "/api/v1/"), p.Resource)
		}
	}
	assert.Nil(t, Panels(domain.RoleUnknown))
}

func TestViews_ReturnsCopy(t *testing.T) {
	v := Views()
	v[0].Path = "/changed"

	home, ok := LookupView(ViewHome)
	require.True(t, ok)
	assert.Equal(t, "/", home.Path)

	_, ok = LookupView("missing")
	assert.False(t, ok)
}

func TestViews_ReturnsIndependentRules(t *testing.T) {
	views := Views()
	for _, v := range views {
		if v.ID == ViewAdminDashboard {
			v.Rule.Roles[domain.RoleCustomer] = struct{}{}
		}
		if v.ID == ViewReports {
			v.Rule.Permissions[domain.PermVehiclesRead] = struct{}{}
		}
	}

	admin, ok := LookupView(ViewAdminDashboard)
	require.True(t, ok)
	assert.False(t, admin.Rule.Roles.Contains(domain.RoleCustomer))
	admin.Rule.Roles[domain.RoleCustomer] = struct{}{}

	reports, ok := LookupView(ViewReports)
	require.True(t, ok)
	assert.False(t, reports.Rule.Permissions.Contains(domain.PermVehiclesRead))

	guard := NewRouteGuard("/login", "/unauthorized")
	again, _ := LookupView(ViewAdminDashboard)
	assert.False(t, guard.Evaluate(again.Rule, sessionFor(domain.RoleCustomer)).Rendered())
}
