package services

import (
	"errors"
	"time"

	"dealerhub/internal/core/domain"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the payload of the persisted session token. The token
// id doubles as the session id.
type SessionClaims struct {
	UserID   domain.UserID `json:"uid"`
	Username string        `json:"username"`
	Role     domain.Role   `json:"role"`
	DealerID string        `json:"dealer_id,omitempty"`
	Upstream string        `json:"upt,omitempty"`
	jwt.RegisteredClaims
}

func (c *SessionClaims) SessionID() domain.SessionID {
	return domain.SessionID(c.ID)
}

// Session rebuilds the session the token was issued for.
func (c *SessionClaims) Session() *domain.Session {
	identity := domain.Identity{
		UserID:        c.UserID,
		Username:      c.Username,
		Role:          c.Role,
		DealerID:      c.DealerID,
		UpstreamToken: c.Upstream,
	}
	var issued, expires time.Time
	if c.IssuedAt != nil {
		issued = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		expires = c.ExpiresAt.Time
	}
	return domain.NewSession(c.SessionID(), identity, issued, expires.Sub(issued))
}

type TokenService interface {
	Issue(session *domain.Session) (string, error)
	Parse(token string) (*SessionClaims, error)
}

type tokenService struct {
	secret []byte
	issuer string
}

func NewTokenService(secret, issuer string) TokenService {
	return &tokenService{
		secret: []byte(secret),
		issuer: issuer,
	}
}

func (s *tokenService) Issue(session *domain.Session) (string, error) {
	claims := &SessionClaims{
		UserID:   session.UserID,
		Username: session.Username,
		Role:     session.Role,
		DealerID: session.DealerID,
		Upstream: session.UpstreamToken,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        string(session.ID),
			Issuer:    s.issuer,
			Subject:   string(session.UserID),
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			NotBefore: jwt.NewNumericDate(session.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Parse verifies signature, issuer and lifetime. Expired tokens map to
// domain.ErrSessionExpired, everything else to domain.ErrSessionInvalid.
func (s *tokenService) Parse(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrSessionExpired
		}
		return nil, domain.ErrSessionInvalid
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.ID == "" || !claims.Role.Valid() {
		return nil, domain.ErrSessionInvalid
	}
	return claims, nil
}
