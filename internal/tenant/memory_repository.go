package tenant

import (
	"context"
	"sort"
	"sync"
)

type memoryRepository struct {
	mu    sync.RWMutex
	apps  map[string]App
	byKey map[string]string
}

// NewMemoryRepository builds an in-memory app repository.
func NewMemoryRepository() Repository {
	return &memoryRepository{apps: make(map[string]App), byKey: make(map[string]string)}
}

func (r *memoryRepository) Create(_ context.Context, app App) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byKey[app.PublishableKey]; exists {
		return ErrKeyExists
	}
	r.apps[app.ID] = app
	r.byKey[app.PublishableKey] = app.ID
	return nil
}

func (r *memoryRepository) FindByKey(_ context.Context, key string) (App, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byKey[key]
	if !ok {
		return App{}, ErrNotFound
	}
	return r.apps[id], nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (App, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	app, ok := r.apps[id]
	if !ok {
		return App{}, ErrNotFound
	}
	return app, nil
}

func (r *memoryRepository) ListByOwner(_ context.Context, ownerID string) ([]App, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	apps := []App{}
	for _, app := range r.apps {
		if app.OwnerID == ownerID {
			apps = append(apps, app)
		}
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].CreatedAt.After(apps[j].CreatedAt) })
	return apps, nil
}
