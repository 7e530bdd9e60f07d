package services

import "dealerhub/internal/core/domain"

// Panel is one tile of a role dashboard. Resource is the pass-through
// endpoint the tile loads its data from.
type Panel struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Resource string `json:"resource"`
}

type NavigationService struct {
	guard *RouteGuard
	views []View
}

func NewNavigationService(guard *RouteGuard) *NavigationService {
	return &NavigationService{
		guard: guard,
		views: Views(),
	}
}

// Navigation lists the views the guard would render for session.
func (n *NavigationService) Navigation(session *domain.Session) []View {
	out := make([]View, 0, len(n.views))
	for _, v := range n.views {
		if n.guard.Evaluate(v.Rule, session).Rendered() {
			out = append(out, v)
		}
	}
	return out
}

// HomePath is where a session lands after login.
func (n *NavigationService) HomePath(session *domain.Session) string {
	if session == nil {
		return n.guard.LoginPath()
	}
	v, ok := LookupView(DashboardFor(session.Role))
	if !ok {
		return "/"
	}
	return v.Path
}

// DashboardFor maps each role to its landing dashboard.
func DashboardFor(role domain.Role) ViewID {
	switch role {
	case domain.RoleAdmin:
		return ViewAdminDashboard
	case domain.RoleEVMStaff:
		return ViewEVMDashboard
	case domain.RoleDealerManager:
		return ViewDealerManagerDashboard
	case domain.RoleDealerStaff:
		return ViewDealerStaffDashboard
	case domain.RoleCustomer:
		return ViewCustomerDashboard
	default:
		return ViewHome
	}
}

// Panels returns the dashboard tiles for role.
func Panels(role domain.Role) []Panel {
	switch role {
	case domain.RoleAdmin:
		return []Panel{
			{ID: "users", Title: "User Management", Resource: "/api/v1/users"},
			{ID: "dealers", Title: "Dealer Network", Resource: "/api/v1/dealers"},
			{ID: "sales-report", Title: "Sales Report", Resource: "/api/v1/reports/sales"},
			{ID: "distributions", Title: "Distributions", Resource: "/api/v1/distributions"},
		}
	case domain.RoleEVMStaff:
		return []Panel{
			{ID: "vehicle-catalog", Title: "Vehicle Catalog", Resource: "/api/v1/vehicles"},
			{ID: "distributions", Title: "Distribution Plans", Resource: "/api/v1/distributions"},
			{ID: "dealer-orders", Title: "Dealer Orders", Resource: "/api/v1/orders"},
			{ID: "dealers", Title: "Dealers", Resource: "/api/v1/dealers"},
		}
	case domain.RoleDealerManager:
		return []Panel{
			{ID: "inventory", Title: "Inventory", Resource: "/api/v1/vehicles"},
			{ID: "orders", Title: "Orders", Resource: "/api/v1/orders"},
			{ID: "payments", Title: "Payments", Resource: "/api/v1/payments"},
			{ID: "dealer-report", Title: "Dealer Performance", Resource: "/api/v1/reports/dealer"},
		}
	case domain.RoleDealerStaff:
		return []Panel{
			{ID: "inventory", Title: "Inventory", Resource: "/api/v1/vehicles"},
			{ID: "orders", Title: "Orders", Resource: "/api/v1/orders"},
			{ID: "test-drives", Title: "Test Drive Schedule", Resource: "/api/v1/test-drives"},
		}
	case domain.RoleCustomer:
		return []Panel{
			{ID: "my-orders", Title: "My Orders", Resource: "/api/v1/orders"},
			{ID: "my-test-drives", Title: "My Test Drives", Resource: "/api/v1/test-drives"},
			{ID: "my-payments", Title: "My Payments", Resource: "/api/v1/payments"},
		}
	default:
		return nil
	}
}
