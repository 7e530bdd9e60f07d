package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"dealerhub/internal/core/domain"
	"dealerhub/internal/core/ports"
	"dealerhub/pkg/circuitbreaker"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userPayload struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	DealerID string `json:"dealer_id,omitempty"`
}

type loginResponse struct {
	Token       string      `json:"token"`
	AccessToken string      `json:"access_token"`
	User        userPayload `json:"user"`
}

// IdentityProvider authenticates against the backend auth endpoints.
type IdentityProvider struct {
	client *Client
}

func NewIdentityProvider(client *Client) *IdentityProvider {
	return &IdentityProvider{client: client}
}

var _ ports.IdentityProvider = (*IdentityProvider)(nil)

func (p *IdentityProvider) Authenticate(ctx context.Context, creds domain.Credentials) (*domain.Identity, error) {
	body, err := json.Marshal(loginRequest{Username: creds.Username, Password: creds.Password})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal login request: %w", err)
	}

	resp, err := p.client.Forward(ctx, &ports.UpstreamRequest{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Header: http.Header{"Content-Type": []string{"application/json"}},
		Body:   body,
	})
	if err != nil {
		return nil, unavailable(err)
	}

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusNotFound:
		return nil, domain.ErrInvalidCredentials
	default:
		return nil, fmt.Errorf("%w: login returned status %d", domain.ErrProviderUnavailable, resp.StatusCode)
	}

	var payload loginResponse
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, fmt.Errorf("%w: malformed login response: %v", domain.ErrProviderUnavailable, err)
	}
	token := payload.Token
	if token == "" {
		token = payload.AccessToken
	}
	if token == "" || payload.User.ID == "" {
		return nil, fmt.Errorf("%w: login response without token or user", domain.ErrProviderUnavailable)
	}

	role, err := domain.ParseRole(payload.User.Role)
	if err != nil {
		return nil, err
	}
	username := payload.User.Username
	if username == "" {
		username = creds.Username
	}

	return &domain.Identity{
		UserID:        domain.UserID(payload.User.ID),
		Username:      username,
		Role:          role,
		DealerID:      payload.User.DealerID,
		UpstreamToken: token,
	}, nil
}

// Validate asks the backend who owns the upstream token. A refused token
// or a changed identity invalidates the session.
func (p *IdentityProvider) Validate(ctx context.Context, session *domain.Session) error {
	if session.UpstreamToken == "" {
		return domain.ErrSessionInvalid
	}

	resp, err := p.client.Forward(ctx, &ports.UpstreamRequest{
		Method: http.MethodGet,
		Path:   "/auth/me",
		Token:  session.UpstreamToken,
	})
	if err != nil {
		return unavailable(err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: backend refused token", domain.ErrSessionInvalid)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: session check returned status %d", domain.ErrProviderUnavailable, resp.StatusCode)
	}

	var user userPayload
	if err := json.Unmarshal(resp.Body, &user); err != nil {
		return fmt.Errorf("%w: malformed session check response: %v", domain.ErrProviderUnavailable, err)
	}
	if user.ID != "" && domain.UserID(user.ID) != session.UserID {
		return fmt.Errorf("%w: token belongs to another user", domain.ErrSessionInvalid)
	}
	if user.Role != "" {
		role, err := domain.ParseRole(user.Role)
		if err != nil || role != session.Role {
			return fmt.Errorf("%w: role changed", domain.ErrSessionInvalid)
		}
	}
	return nil
}

func (p *IdentityProvider) Logout(ctx context.Context, session *domain.Session) error {
	if session.UpstreamToken == "" {
		return nil
	}

	resp, err := p.client.Forward(ctx, &ports.UpstreamRequest{
		Method: http.MethodPost,
		Path:   "/auth/logout",
		Token:  session.UpstreamToken,
	})
	if err != nil {
		return unavailable(err)
	}
	if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode != http.StatusUnauthorized {
		return fmt.Errorf("backend logout returned status %d", resp.StatusCode)
	}
	return nil
}

func unavailable(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return fmt.Errorf("%w: circuit open", domain.ErrProviderUnavailable)
	}
	return fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
}
