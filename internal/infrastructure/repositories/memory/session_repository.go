package memory

import (
	"context"
	"sync"
	"time"

	"dealerhub/internal/core/domain"
	"dealerhub/internal/core/ports"
)

type MemorySessionRepository struct {
	sessions map[domain.SessionID]*domain.Session
	mu       sync.RWMutex
	now      func() time.Time
}

func NewMemorySessionRepository() ports.SessionRepository {
	return &MemorySessionRepository{
		sessions: make(map[domain.SessionID]*domain.Session),
		now:      time.Now,
	}
}

// Save stores a copy, so later changes by the caller are not visible.
func (r *MemorySessionRepository) Save(ctx context.Context, session *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[session.ID] = session.Clone()
	return nil
}

func (r *MemorySessionRepository) GetByID(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[id]
	if !exists {
		return nil, domain.ErrSessionNotFound
	}
	if session.Expired(r.now()) {
		delete(r.sessions, id)
		return nil, domain.ErrSessionNotFound
	}

	return session.Clone(), nil
}

func (r *MemorySessionRepository) Delete(ctx context.Context, id domain.SessionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[id]; !exists {
		return domain.ErrSessionNotFound
	}

	delete(r.sessions, id)
	return nil
}

func (r *MemorySessionRepository) CountActive(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.now()
	count := 0
	for _, session := range r.sessions {
		if !session.Expired(now) {
			count++
		}
	}
	return count, nil
}
