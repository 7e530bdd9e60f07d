package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"dealerhub/internal/core/domain"
	"dealerhub/internal/core/ports"
	"dealerhub/internal/core/services"
	"dealerhub/internal/infrastructure/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type MockSessionService struct {
	mock.Mock
}

func (m *MockSessionService) Login(ctx context.Context, creds domain.Credentials) (*domain.Session, string, error) {
	args := m.Called(ctx, creds)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).(*domain.Session), args.String(1), args.Error(2)
}

func (m *MockSessionService) Current(ctx context.Context, token string) (*domain.Session, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockSessionService) Logout(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

func (m *MockSessionService) Invalidate(ctx context.Context, id domain.SessionID) error {
	return m.Called(ctx, id).Error(0)
}

type fakeGateway struct {
	mu       sync.Mutex
	requests []*ports.UpstreamRequest
	resp     *ports.UpstreamResponse
	err      error
}

func (g *fakeGateway) Forward(ctx context.Context, req *ports.UpstreamRequest) (*ports.UpstreamResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	return g.resp, g.err
}

func (g *fakeGateway) last() *ports.UpstreamRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.requests) == 0 {
		return nil
	}
	return g.requests[len(g.requests)-1]
}

var testCookie = middleware.CookieConfig{Name: "dealerhub_session"}

func testSession(role domain.Role) *domain.Session {
	return domain.NewSession(domain.SessionID("s-"+role.String()), domain.Identity{
		UserID:        domain.UserID("u-" + role.String()),
		Username:      role.String() + ".user",
		Role:          role,
		UpstreamToken: "upstream-" + role.String(),
	}, time.Now(), time.Hour)
}

// newSessions answers Current for "<role>-token" with a session of that
// role.
func newSessions() *MockSessionService {
	sessions := new(MockSessionService)
	for _, role := range domain.AllRoles() {
		sessions.On("Current", mock.Anything, role.String()+"-token").Return(testSession(role), nil).Maybe()
	}
	return sessions
}

func newTestRouter(t *testing.T, sessions ports.SessionService, gateway ports.ResourceGateway) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := zaptest.NewLogger(t).Sugar()
	guard := services.NewRouteGuard("/login", "/unauthorized")
	navigation := services.NewNavigationService(guard)

	router := gin.New()
	router.Use(middleware.ErrorHandlerMiddleware(log))
	router.Use(middleware.SessionMiddleware(sessions, testCookie, log))

	NewAuthHandler(sessions, navigation, testCookie, nil, log).SetupRoutes(router)
	NewDashboardHandler(guard, navigation, nil).SetupRoutes(router)
	if gateway != nil {
		NewResourceHandler(gateway, sessions, guard, testCookie, nil, nil, log).SetupRoutes(router)
	}
	return router
}

type request struct {
	method string
	path   string
	token  string
	body   interface{}
	header map[string]string
}

func do(t *testing.T, router http.Handler, r request) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	if r.body != nil {
		switch b := r.body.(type) {
		case string:
			body.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&body).Encode(b))
		}
	}
	method := r.method
	if method == "" {
		method = http.MethodGet
	}

	req := httptest.NewRequest(method, r.path, &body)
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.AddCookie(&http.Cookie{Name: testCookie.Name, Value: r.token})
	}
	for k, v := range r.header {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == testCookie.Name {
			return c
		}
	}
	return nil
}
