package identity

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryRepository struct {
	mu    sync.RWMutex
	users map[string]User
	index map[string]string
}

// NewMemoryRepository builds an in-memory user directory.
func NewMemoryRepository() Repository {
	return &memoryRepository{users: make(map[string]User), index: make(map[string]string)}
}

func (r *memoryRepository) Upsert(_ context.Context, tenantID, email string, now time.Time) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := tenantID + "\x00" + email
	if id, ok := r.index[key]; ok {
		user := r.users[id]
		user.LastLoginAt = now.UTC()
		r.users[id] = user
		return user, nil
	}
	user := User{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		Email:       email,
		CreatedAt:   now.UTC(),
		LastLoginAt: now.UTC(),
	}
	r.users[user.ID] = user
	r.index[key] = user.ID
	return user, nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}
