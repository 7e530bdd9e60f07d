package services

import "dealerhub/internal/core/domain"

type ViewID string

const (
	ViewHome                   ViewID = "home"
	ViewProfile                ViewID = "profile"
	ViewAdminDashboard         ViewID = "admin-dashboard"
	ViewEVMDashboard           ViewID = "evm-dashboard"
	ViewDealerManagerDashboard ViewID = "dealer-manager-dashboard"
	ViewDealerStaffDashboard   ViewID = "dealer-staff-dashboard"
	ViewCustomerDashboard      ViewID = "customer-dashboard"
	ViewVehicles               ViewID = "vehicles"
	ViewOrders                 ViewID = "orders"
	ViewPayments               ViewID = "payments"
	ViewTestDrives             ViewID = "test-drives"
	ViewDistributions          ViewID = "distributions"
	ViewDealers                ViewID = "dealers"
	ViewUsers                  ViewID = "users"
	ViewReports                ViewID = "reports"
)

// View is a protected page of the portal together with its access rule.
type View struct {
	ID    ViewID            `json:"id"`
	Title string            `json:"title"`
	Path  string            `json:"path"`
	Rule  domain.AccessRule `json:"-"`
}

// views is the static registry, in navigation order.
var views = []View{
	{ID: ViewHome, Title: "Home", Path: "/", Rule: domain.Public()},
	{ID: ViewAdminDashboard, Title: "Admin Dashboard", Path: "/dashboard/admin",
		Rule: domain.RequireRoles(domain.RoleAdmin)},
	{ID: ViewEVMDashboard, Title: "EVM Dashboard", Path: "/dashboard/evm",
		Rule: domain.RequireRoles(domain.RoleAdmin, domain.RoleEVMStaff)},
	{ID: ViewDealerManagerDashboard, Title: "Dealer Manager Dashboard", Path: "/dashboard/dealer-manager",
		Rule: domain.RequireRoles(domain.RoleDealerManager)},
	{ID: ViewDealerStaffDashboard, Title: "Dealer Staff Dashboard", Path: "/dashboard/dealer-staff",
		Rule: domain.RequireRoles(domain.RoleDealerManager, domain.RoleDealerStaff)},
	{ID: ViewCustomerDashboard, Title: "My Dashboard", Path: "/dashboard/customer",
		Rule: domain.RequireRoles(domain.RoleCustomer)},
	{ID: ViewVehicles, Title: "Vehicles", Path: "/vehicles",
		Rule: domain.RequirePermissions(domain.PermVehiclesRead)},
	{ID: ViewOrders, Title: "Orders", Path: "/orders",
		Rule: domain.RequirePermissions(domain.PermOrdersRead)},
	{ID: ViewPayments, Title: "Payments", Path: "/payments",
		Rule: domain.RequirePermissions(domain.PermPaymentsRead)},
	{ID: ViewTestDrives, Title: "Test Drives", Path: "/test-drives",
		Rule: domain.RequirePermissions(domain.PermTestDrivesRead)},
	{ID: ViewDistributions, Title: "Distributions", Path: "/distributions",
		Rule: domain.RequirePermissions(domain.PermDistributionsRead)},
	{ID: ViewDealers, Title: "Dealers", Path: "/dealers",
		Rule: domain.RequirePermissions(domain.PermDealersManage)},
	{ID: ViewUsers, Title: "Users", Path: "/users",
		Rule: domain.RequirePermissions(domain.PermUsersManage)},
	{ID: ViewReports, Title: "Reports", Path: "/reports",
		Rule: domain.RequirePermissions(domain.PermReportsRead)},
	{ID: ViewProfile, Title: "Profile", Path: "/profile", Rule: domain.Authenticated()},
}

// Views returns a deep copy of the registry.
func Views() []View {
	out := make([]View, len(views))
	for i, v := range views {
		out[i] = v.clone()
	}
	return out
}

func LookupView(id ViewID) (View, bool) {
	for _, v := range views {
		if v.ID == id {
			return v.clone(), true
		}
	}
	return View{}, false
}

func (v View) clone() View {
	v.Rule = v.Rule.Clone()
	return v
}
