package tenant

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/polo-core/polo_core/internal/apperr"
)

const (
	keyEntropy    = 24
	maxNameLength = 80
	createRetries = 3
)

// Service manages apps and resolves publishable keys.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates an app service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// Create registers a new app for ownerID with a fresh publishable key.
func (s *Service) Create(ctx context.Context, ownerID, name string) (App, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLength {
		return App{}, apperr.New(apperr.CodeInputValidation, fmt.Sprintf("name must be 1-%d characters", maxNameLength))
	}
	if ownerID == "" {
		return App{}, apperr.New(apperr.CodeUnauthenticated, "owner is required")
	}

	for attempt := 0; attempt < createRetries; attempt++ {
		key, err := newPublishableKey()
		if err != nil {
			return App{}, apperr.Wrap(apperr.CodeInternal, "key generation failed", err)
		}
		app := App{
			ID:             uuid.NewString(),
			OwnerID:        ownerID,
			Name:           name,
			PublishableKey: key,
			CreatedAt:      s.now(),
		}
		err = s.repo.Create(ctx, app)
		if err == nil {
			return app, nil
		}
		if !errors.Is(err, ErrKeyExists) {
			return App{}, apperr.Wrap(apperr.CodeInternal, "app could not be stored", err)
		}
	}
	return App{}, apperr.New(apperr.CodeInternal, "app could not be stored")
}

// List returns the owner's apps.
func (s *Service) List(ctx context.Context, ownerID string) ([]App, error) {
	apps, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "apps unavailable", err)
	}
	return apps, nil
}

// FindByKey resolves a publishable key. Lookup failures other than
// ErrNotFound are returned unchanged for the caller to classify.
func (s *Service) FindByKey(ctx context.Context, key string) (App, error) {
	return s.repo.FindByKey(ctx, key)
}

// OwnedBy returns the app if ownerID owns it.
func (s *Service) OwnedBy(ctx context.Context, ownerID, appID string) (App, error) {
	app, err := s.repo.FindByID(ctx, appID)
	if errors.Is(err, ErrNotFound) || (err == nil && app.OwnerID != ownerID) {
		return App{}, apperr.New(apperr.CodeForbidden, "app not found for this account")
	}
	if err != nil {
		return App{}, apperr.Wrap(apperr.CodeInternal, "app lookup failed", err)
	}
	return app, nil
}

func newPublishableKey() (string, error) {
	buf := make([]byte, keyEntropy)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return KeyPrefix + hex.EncodeToString(buf), nil
}
