package http

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"dealerhub/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestLogin_Success(t *testing.T) {
	sessions := newSessions()
	admin := testSession(domain.RoleAdmin)
	sessions.On("Login", mock.Anything, domain.Credentials{Username: "admin.user", Password: "secret"}).
		Return(admin, "admin-token", nil).Once()
	router := newTestRouter(t, sessions, nil)

	w := do(t, router, request{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   map[string]string{"username": "  admin.user ", "password": "secret"},
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "admin-token", body["token"])
	assert.Equal(t, "/dashboard/admin", body["redirect"])
	session := body["session"].(map[string]interface{})
	assert.Equal(t, "admin", session["role"])
	assert.NotContains(t, session, "UpstreamToken")

	cookie := sessionCookie(w)
	require.NotNil(t, cookie)
	assert.Equal(t, "admin-token", cookie.Value)
	assert.True(t, cookie.HttpOnly)
	sessions.AssertExpectations(t)
}

func TestLogin_NextPath(t *testing.T) {
	tests := []struct {
		next string
		want string
	}{
		{next: "/orders?status=open", want: "/orders?status=open"},
		{next: "//evil.example.com", want: "/dashboard/customer"},
		{next: "https://evil.example.com/", want: "/dashboard/customer"},
		{next: "", want: "/dashboard/customer"},
	}

	for _, tt := range tests {
		t.Run(tt.next, func(t *testing.T) {
			sessions := newSessions()
			sessions.On("Login", mock.Anything, mock.Anything).
				Return(testSession(domain.RoleCustomer), "customer-token", nil)
			router := newTestRouter(t, sessions, nil)

			w := do(t, router, request{
				method: http.MethodPost,
				path:   "/auth/login",
				body:   map[string]string{"username": "customer", "password": "pw", "next": tt.next},
			})

			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.want, decode(t, w)["redirect"])
		})
	}
}

func TestLogin_RejectsBadInput(t *testing.T) {
	sessions := newSessions()
	router := newTestRouter(t, sessions, nil)

	for _, body := range []interface{}{
		"{not json",
		map[string]string{"username": "ab", "password": "pw"},
		map[string]string{"username": "valid.user"},
		map[string]string{"username": "bad user!", "password": "pw"},
	} {
		w := do(t, router, request{method: http.MethodPost, path: "/auth/login", body: body})
		assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		assert.Equal(t, "INVALID_INPUT", decode(t, w)["error"])
	}
	sessions.AssertNotCalled(t, "Login", mock.Anything, mock.Anything)
}

func TestLogin_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid credentials", domain.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{"provider down", fmt.Errorf("%w: dial tcp: refused", domain.ErrProviderUnavailable), http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{"pending", domain.ErrLoginPending, http.StatusConflict, "CONFLICT"},
		{"unknown role", fmt.Errorf("identity u-1: %w", domain.ErrUnknownRole), http.StatusForbidden, "FORBIDDEN"},
		{"storage", errors.New("redis: connection refused"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := newSessions()
			sessions.On("Login", mock.Anything, mock.Anything).Return(nil, "", tt.err)
			router := newTestRouter(t, sessions, nil)

			w := do(t, router, request{
				method: http.MethodPost,
				path:   "/auth/login",
				body:   map[string]string{"username": "someone", "password": "pw"},
			})

			assert.Equal(t, tt.wantStatus, w.Code)
			body := decode(t, w)
			assert.Equal(t, tt.wantCode, body["error"])
			assert.Nil(t, sessionCookie(w))
		})
	}
}

func TestLogin_ProviderDownMessage(t *testing.T) {
	sessions := newSessions()
	sessions.On("Login", mock.Anything, mock.Anything).Return(nil, "", domain.ErrProviderUnavailable)
	router := newTestRouter(t, sessions, nil)

	w := do(t, router, request{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   map[string]string{"username": "someone", "password": "pw"},
	})

	assert.Equal(t, "authentication service unavailable", decode(t, w)["message"])
}

func TestLogout(t *testing.T) {
	t.Run("clears session and cookie", func(t *testing.T) {
		sessions := newSessions()
		sessions.On("Logout", mock.Anything, "dealer_staff-token").Return(nil).Once()
		router := newTestRouter(t, sessions, nil)

		w := do(t, router, request{method: http.MethodPost, path: "/auth/logout", token: "dealer_staff-token"})

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "/login", decode(t, w)["redirect"])
		cookie := sessionCookie(w)
		require.NotNil(t, cookie)
		assert.Empty(t, cookie.Value)
		assert.True(t, cookie.MaxAge < 0)
		sessions.AssertExpectations(t)
	})

	t.Run("without a token", func(t *testing.T) {
		sessions := newSessions()
		router := newTestRouter(t, sessions, nil)

		w := do(t, router, request{method: http.MethodPost, path: "/auth/logout"})

		assert.Equal(t, http.StatusOK, w.Code)
		sessions.AssertNotCalled(t, "Logout", mock.Anything, mock.Anything)
	})

	t.Run("storage failure still clears the cookie", func(t *testing.T) {
		sessions := newSessions()
		sessions.On("Logout", mock.Anything, "admin-token").Return(errors.New("redis down"))
		router := newTestRouter(t, sessions, nil)

		w := do(t, router, request{method: http.MethodPost, path: "/auth/logout", token: "admin-token"})

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		require.NotNil(t, sessionCookie(w))
		assert.Empty(t, sessionCookie(w).Value)
	})
}

func TestSessionEndpoint(t *testing.T) {
	router := newTestRouter(t, newSessions(), nil)

	w := do(t, router, request{path: "/auth/session", token: "evm_staff-token"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "/dashboard/evm", body["home"])
	assert.Equal(t, "evm_staff", body["session"].(map[string]interface{})["role"])

	w = do(t, router, request{path: "/auth/session"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", decode(t, w)["error"])
}

func TestSessionEndpoint_RevokedToken(t *testing.T) {
	sessions := newSessions()
	sessions.On("Current", mock.Anything, "revoked").Return(nil, domain.ErrTokenRevoked)
	router := newTestRouter(t, sessions, nil)

	w := do(t, router, request{path: "/auth/session", token: "revoked"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	require.NotNil(t, sessionCookie(w))
	assert.True(t, sessionCookie(w).MaxAge < 0)
}
