package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"dealerhub/internal/core/domain"
	"dealerhub/internal/core/ports"
	"dealerhub/pkg/cache"
	"dealerhub/pkg/tracing"
	"dealerhub/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	closeReasonLogout   = "logout"
	closeReasonRejected = "provider_rejected"
	closeReasonExpired  = "expired"
	closeReasonUpstream = "upstream_unauthorized"
)

type SessionStoreConfig struct {
	TTL time.Duration
	// ValidationInterval bounds how often a session is re-checked with the
	// identity provider. Zero re-checks on every restore.
	ValidationInterval time.Duration
}

// SessionStore is the single owner of sessions. Callers only ever see
// clones.
type SessionStore struct {
	sessions    ports.SessionRepository
	revocations ports.RevocationRepository
	provider    ports.IdentityProvider
	tokens      TokenService
	events      ports.SessionEventPublisher
	metrics     ports.SessionMetrics
	gate        ports.LoginGate
	logger      *zap.SugaredLogger

	cfg       SessionStoreConfig
	validated *cache.Cache[struct{}]
	closed    *cache.Cache[struct{}]
	now       func() time.Time

	pendingMu sync.Mutex
	pending   map[string]struct{}
}

func NewSessionStore(
	sessions ports.SessionRepository,
	revocations ports.RevocationRepository,
	provider ports.IdentityProvider,
	tokens TokenService,
	cfg SessionStoreConfig,
	logger *zap.SugaredLogger,
) *SessionStore {
	cleanup := cfg.ValidationInterval
	if cleanup > 0 && cleanup < time.Minute {
		cleanup = time.Minute
	}
	return &SessionStore{
		sessions:    sessions,
		revocations: revocations,
		provider:    provider,
		tokens:      tokens,
		logger:      logger,
		cfg:         cfg,
		validated:   cache.New[struct{}](cfg.ValidationInterval, cleanup),
		closed:      cache.New[struct{}](cfg.TTL, time.Minute),
		now:         time.Now,
		pending:     make(map[string]struct{}),
	}
}

// WithEvents publishes session closures to other instances. Optional.
func (s *SessionStore) WithEvents(events ports.SessionEventPublisher) *SessionStore {
	s.events = events
	return s
}

// WithMetrics records session lifecycle counters. Optional.
func (s *SessionStore) WithMetrics(metrics ports.SessionMetrics) *SessionStore {
	s.metrics = metrics
	return s
}

// WithLoginGate extends the pending-login check to other instances.
// Optional.
func (s *SessionStore) WithLoginGate(gate ports.LoginGate) *SessionStore {
	s.gate = gate
	return s
}

// Login authenticates creds with the identity provider and opens a
// session. The returned token is what the client persists.
func (s *SessionStore) Login(ctx context.Context, creds domain.Credentials) (*domain.Session, string, error) {
	ctx, span := tracing.TraceSessionOperation(ctx, "login")
	defer span.End()

	key := utils.NormalizeUsername(creds.Username)
	if !s.beginLogin(key) {
		s.recordLogin("pending")
		return nil, "", domain.ErrLoginPending
	}
	defer s.endLogin(key)

	if s.gate != nil {
		release, acquired, err := s.gate.TryAcquire(ctx, key)
		switch {
		case err != nil:
			s.logger.Warnw("login gate unavailable, continuing", "error", err)
		case !acquired:
			s.recordLogin("pending")
			return nil, "", domain.ErrLoginPending
		default:
			defer release()
		}
	}

	identity, err := s.provider.Authenticate(ctx, creds)
	if err != nil {
		tracing.RecordError(ctx, err)
		if errors.Is(err, domain.ErrInvalidCredentials) {
			s.recordLogin("rejected")
		} else {
			s.recordLogin("error")
		}
		return nil, "", err
	}
	if !identity.Role.Valid() {
		s.recordLogin("rejected")
		return nil, "", fmt.Errorf("identity %s: %w", identity.UserID, domain.ErrUnknownRole)
	}

	session := domain.NewSession(domain.SessionID(uuid.NewString()), *identity, s.now(), s.cfg.TTL)
	if err := s.sessions.Save(ctx, session); err != nil {
		s.recordLogin("error")
		return nil, "", fmt.Errorf("failed to save session: %w", err)
	}

	token, err := s.tokens.Issue(session)
	if err != nil {
		_ = s.sessions.Delete(ctx, session.ID)
		s.recordLogin("error")
		return nil, "", fmt.Errorf("failed to issue session token: %w", err)
	}

	s.validated.Set(string(session.ID), struct{}{})
	s.recordLogin("success")
	tracing.AddSpanAttributes(ctx,
		tracing.SessionIDKey.String(string(session.ID)),
		tracing.RoleKey.String(session.Role.String()),
	)
	s.logger.Infow("session opened",
		"session_id", session.ID,
		"user_id", session.UserID,
		"role", session.Role.String(),
	)

	return session.Clone(), token, nil
}

// Current restores the session behind a persisted token. Tokens whose
// session record is gone are trusted optimistically until the identity
// provider disowns them.
func (s *SessionStore) Current(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return nil, domain.ErrSessionNotFound
	}

	ctx, span := tracing.TraceSessionOperation(ctx, "restore")
	defer span.End()

	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	id := claims.SessionID()

	if _, ok := s.closed.Get(string(id)); ok {
		return nil, domain.ErrTokenRevoked
	}

	revoked, err := s.revocations.IsRevoked(ctx, string(id))
	if err != nil {
		return nil, fmt.Errorf("failed to check revocation: %w", err)
	}
	if revoked {
		return nil, domain.ErrTokenRevoked
	}

	session, err := s.sessions.GetByID(ctx, id)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		session = claims.Session()
		if err := s.sessions.Save(ctx, session); err != nil {
			return nil, fmt.Errorf("failed to save restored session: %w", err)
		}
		if s.metrics != nil {
			s.metrics.RecordSessionRestored()
		}
		s.logger.Debugw("session restored from token", "session_id", id)
	case err != nil:
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if session.Expired(s.now()) {
		s.close(ctx, session, closeReasonExpired)
		return nil, domain.ErrSessionExpired
	}

	if err := s.validate(ctx, session); err != nil {
		return nil, err
	}

	tracing.AddSpanAttributes(ctx, tracing.SessionIDKey.String(string(id)))
	return session.Clone(), nil
}

// Logout clears the session locally. The identity provider is told on a
// best-effort basis and its failure never fails the logout.
func (s *SessionStore) Logout(ctx context.Context, token string) error {
	ctx, span := tracing.TraceSessionOperation(ctx, "logout")
	defer span.End()

	claims, err := s.tokens.Parse(token)
	if err != nil {
		// Nothing to clear for a token we would never accept.
		return nil
	}

	session, err := s.sessions.GetByID(ctx, claims.SessionID())
	if err != nil {
		if !errors.Is(err, domain.ErrSessionNotFound) {
			s.logger.Warnw("failed to load session on logout", "session_id", claims.ID, "error", err)
		}
		session = claims.Session()
	}

	if err := s.provider.Logout(ctx, session); err != nil {
		s.logger.Warnw("identity provider logout failed", "session_id", session.ID, "error", err)
	}

	return s.close(ctx, session, closeReasonLogout)
}

// Invalidate closes a session the backend refused to serve.
func (s *SessionStore) Invalidate(ctx context.Context, id domain.SessionID) error {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrSessionNotFound) {
			return fmt.Errorf("failed to load session: %w", err)
		}
		session = &domain.Session{ID: id, ExpiresAt: s.now().Add(s.cfg.TTL)}
	}
	return s.close(ctx, session, closeReasonUpstream)
}

// MarkClosed refuses a session closed on another instance without
// waiting for storage or the validation interval.
func (s *SessionStore) MarkClosed(id domain.SessionID) {
	s.validated.Delete(string(id))
	s.closed.Set(string(id), struct{}{})
}

// Close releases background resources.
func (s *SessionStore) Close() {
	s.validated.Stop()
	s.closed.Stop()
}

func (s *SessionStore) validate(ctx context.Context, session *domain.Session) error {
	if _, ok := s.validated.Get(string(session.ID)); ok {
		return nil
	}

	ctx, span := tracing.TraceSessionOperation(ctx, "validate")
	defer span.End()

	err := s.provider.Validate(ctx, session)
	switch {
	case err == nil:
		s.validated.Set(string(session.ID), struct{}{})
		return nil
	case errors.Is(err, domain.ErrSessionInvalid):
		s.close(ctx, session, closeReasonRejected)
		return domain.ErrSessionInvalid
	default:
		// Only an explicit rejection disproves a session.
		tracing.RecordError(ctx, err)
		s.logger.Warnw("session validation unavailable, keeping session",
			"session_id", session.ID,
			"error", err,
		)
		return nil
	}
}

// close revokes before deleting, so a token never outlives its record
// unrevoked. The local tombstone holds even when storage fails.
func (s *SessionStore) close(ctx context.Context, session *domain.Session, reason string) error {
	until := session.ExpiresAt
	if until.IsZero() || until.Before(s.now()) {
		until = s.now().Add(s.cfg.TTL)
	}

	s.validated.Delete(string(session.ID))
	s.closed.SetWithTTL(string(session.ID), struct{}{}, until.Sub(s.now()))

	var errs []error
	if err := s.revocations.Revoke(ctx, string(session.ID), until); err != nil {
		errs = append(errs, fmt.Errorf("failed to revoke session token: %w", err))
	}
	if err := s.sessions.Delete(ctx, session.ID); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		errs = append(errs, fmt.Errorf("failed to delete session: %w", err))
	}

	if s.events != nil {
		if err := s.events.PublishSessionClosed(ctx, session.ID); err != nil {
			s.logger.Warnw("failed to publish session closed event", "session_id", session.ID, "error", err)
		}
	}
	if s.metrics != nil {
		s.metrics.RecordSessionClosed(reason)
	}

	s.logger.Infow("session closed",
		"session_id", session.ID,
		"user_id", session.UserID,
		"reason", reason,
	)
	return errors.Join(errs...)
}

func (s *SessionStore) beginLogin(key string) bool {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	if _, busy := s.pending[key]; busy {
		return false
	}
	s.pending[key] = struct{}{}
	return true
}

func (s *SessionStore) endLogin(key string) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	delete(s.pending, key)
}

func (s *SessionStore) recordLogin(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordLogin(outcome)
	}
}
