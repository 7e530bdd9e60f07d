package ports

import (
	"context"
	"net/http"

	"dealerhub/internal/core/domain"
)

type SessionService interface {
	Login(ctx context.Context, creds domain.Credentials) (*domain.Session, string, error)
	Current(ctx context.Context, token string) (*domain.Session, error)
	Logout(ctx context.Context, token string) error
	Invalidate(ctx context.Context, id domain.SessionID) error
}

// IdentityProvider authenticates credentials and re-validates sessions.
// Validate returns domain.ErrSessionInvalid when the provider disowns the
// session and domain.ErrProviderUnavailable when it cannot be asked.
type IdentityProvider interface {
	Authenticate(ctx context.Context, creds domain.Credentials) (*domain.Identity, error)
	Validate(ctx context.Context, session *domain.Session) error
	Logout(ctx context.Context, session *domain.Session) error
}

// SessionEventPublisher fans session lifecycle changes out to other
// portal instances.
type SessionEventPublisher interface {
	PublishSessionClosed(ctx context.Context, id domain.SessionID) error
}

type UpstreamRequest struct {
	Method   string
	Path     string
	RawQuery string
	Header   http.Header
	Body     []byte
	Token    string
}

type UpstreamResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// ResourceGateway forwards data requests to the backend API untouched.
type ResourceGateway interface {
	Forward(ctx context.Context, req *UpstreamRequest) (*UpstreamResponse, error)
}

// SessionMetrics receives session lifecycle counters.
type SessionMetrics interface {
	RecordLogin(outcome string)
	RecordSessionClosed(reason string)
	RecordSessionRestored()
}

// GuardMetrics receives one observation per guard evaluation.
type GuardMetrics interface {
	RecordDecision(view, outcome, reason string)
}

// LoginGate serialises logins for one username across portal instances.
// release is nil unless acquired is true.
type LoginGate interface {
	TryAcquire(ctx context.Context, username string) (release func(), acquired bool, err error)
}
