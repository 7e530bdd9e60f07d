package http

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboard_GuardedByRole(t *testing.T) {
	router := newTestRouter(t, newSessions(), nil)

	tests := []struct {
		name         string
		path         string
		token        string
		wantStatus   int
		wantLocation string
	}{
		{"admin renders", "/dashboard/admin", "admin-token", http.StatusOK, ""},
		{"customer denied", "/dashboard/admin", "customer-token", http.StatusFound, "/unauthorized"},
		{"anonymous to login", "/dashboard/admin", "", http.StatusFound, "/login?next=%2Fdashboard%2Fadmin"},
		{"admin on evm dashboard", "/dashboard/evm", "admin-token", http.StatusOK, ""},
		{"dealer staff on manager dashboard", "/dashboard/dealer-manager", "dealer_staff-token", http.StatusFound, "/unauthorized"},
		{"manager on staff dashboard", "/dashboard/dealer-staff", "dealer_manager-token", http.StatusOK, ""},
		{"profile needs a session", "/profile", "", http.StatusFound, "/login?next=%2Fprofile"},
		{"profile for any role", "/profile", "customer-token", http.StatusOK, ""},
		{"home is public", "/", "", http.StatusOK, ""},
		{"reports need permission", "/reports", "dealer_staff-token", http.StatusFound, "/unauthorized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, request{path: tt.path, token: tt.token})
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantLocation, w.Header().Get("Location"))
		})
	}
}

func TestDashboard_PanelsFollowTheDashboard(t *testing.T) {
	router := newTestRouter(t, newSessions(), nil)

	w := do(t, router, request{path: "/dashboard/evm", token: "admin-token"})
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "EVM Staff", body["role"])
	panels := body["panels"].([]interface{})
	require.NotEmpty(t, panels)
	assert.Equal(t, "vehicle-catalog", panels[0].(map[string]interface{})["id"])
}

func TestDashboard_NonDashboardViewHasNoPanels(t *testing.T) {
	router := newTestRouter(t, newSessions(), nil)

	w := do(t, router, request{path: "/orders", token: "customer-token"})
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.NotContains(t, body, "panels")
	assert.Equal(t, "orders", body["view"].(map[string]interface{})["id"])
}

func TestLoginPage(t *testing.T) {
	router := newTestRouter(t, newSessions(), nil)

	w := do(t, router, request{path: "/login?next=%2Forders"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/orders", decode(t, w)["next"])

	w = do(t, router, request{path: "/login?next=https%3A%2F%2Fevil.example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "", decode(t, w)["next"])

	w = do(t, router, request{path: "/login", token: "dealer_manager-token"})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/dashboard/dealer-manager", w.Header().Get("Location"))

	w = do(t, router, request{path: "/login?next=%2Forders", token: "dealer_manager-token"})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/orders", w.Header().Get("Location"))
}

func TestAccessDeniedPage(t *testing.T) {
	router := newTestRouter(t, newSessions(), nil)

	w := do(t, router, request{path: "/unauthorized", token: "customer-token"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/dashboard/customer", decode(t, w)["home"])
}

func navigationIDs(t *testing.T, body map[string]interface{}) []string {
	t.Helper()
	var ids []string
	for _, v := range body["navigation"].([]interface{}) {
		ids = append(ids, v.(map[string]interface{})["id"].(string))
	}
	return ids
}

func TestNavigationEndpoint(t *testing.T) {
	router := newTestRouter(t, newSessions(), nil)

	w := do(t, router, request{path: "/navigation"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"home"}, navigationIDs(t, decode(t, w)))

	w = do(t, router, request{path: "/navigation", token: "customer-token"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t,
		[]string{"home", "customer-dashboard", "vehicles", "orders", "payments", "test-drives", "profile"},
		navigationIDs(t, decode(t, w)))
}
