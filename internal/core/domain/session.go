package domain

import "time"

type SessionID string

type UserID string

// Identity is what an identity provider vouches for after authentication.
type Identity struct {
	UserID        UserID
	Username      string
	Role          Role
	DealerID      string
	UpstreamToken string
}

// Credentials submitted at login.
type Credentials struct {
	Username string
	Password string
}

// Session is the authenticated identity of one client. Only the session
// store creates or mutates sessions; everyone else works on copies.
type Session struct {
	ID          SessionID     `json:"id"`
	UserID      UserID        `json:"user_id"`
	Username    string        `json:"username"`
	Role        Role          `json:"role"`
	Permissions PermissionSet `json:"permissions"`
	DealerID    string        `json:"dealer_id,omitempty"`
	IssuedAt    time.Time     `json:"issued_at"`
	ExpiresAt   time.Time     `json:"expires_at"`

	// UpstreamToken authenticates pass-through calls to the backend API.
	UpstreamToken string `json:"-"`
}

// NewSession derives the permission set from the identity's role.
func NewSession(id SessionID, identity Identity, issuedAt time.Time, ttl time.Duration) *Session {
	return &Session{
		ID:            id,
		UserID:        identity.UserID,
		Username:      identity.Username,
		Role:          identity.Role,
		Permissions:   PermissionsFor(identity.Role),
		DealerID:      identity.DealerID,
		IssuedAt:      issuedAt,
		ExpiresAt:     issuedAt.Add(ttl),
		UpstreamToken: identity.UpstreamToken,
	}
}

func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Permissions = s.Permissions.Clone()
	if c.Permissions == nil {
		c.Permissions = PermissionSet{}
	}
	return &c
}
