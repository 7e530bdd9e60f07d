package ports

import (
	"context"
	"time"

	"dealerhub/internal/core/domain"
)

type SessionRepository interface {
	Save(ctx context.Context, session *domain.Session) error
	GetByID(ctx context.Context, id domain.SessionID) (*domain.Session, error)
	Delete(ctx context.Context, id domain.SessionID) error
	CountActive(ctx context.Context) (int, error)
}

// RevocationRepository remembers logged-out token ids until the token
// would have expired on its own.
type RevocationRepository interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}
