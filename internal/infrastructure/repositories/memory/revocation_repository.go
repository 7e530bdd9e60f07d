package memory

import (
	"context"
	"sync"
	"time"

	"dealerhub/internal/core/ports"
)

type MemoryRevocationRepository struct {
	revoked map[string]time.Time
	mu      sync.Mutex
	now     func() time.Time
}

func NewMemoryRevocationRepository() ports.RevocationRepository {
	return &MemoryRevocationRepository{
		revoked: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (r *MemoryRevocationRepository) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.revoked[tokenID]; ok && current.After(until) {
		return nil
	}
	r.revoked[tokenID] = until
	r.purgeLocked()
	return nil
}

func (r *MemoryRevocationRepository) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	until, ok := r.revoked[tokenID]
	if !ok {
		return false, nil
	}
	if !r.now().Before(until) {
		delete(r.revoked, tokenID)
		return false, nil
	}
	return true, nil
}

// purgeLocked drops entries whose tokens could no longer be presented.
func (r *MemoryRevocationRepository) purgeLocked() {
	now := r.now()
	for id, until := range r.revoked {
		if !now.Before(until) {
			delete(r.revoked, id)
		}
	}
}
