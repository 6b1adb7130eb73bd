package tenant

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/polo-core/polo_core/internal/apperr"
)

func TestCreateIssuesPrefixedUniqueKeys(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	a, err := svc.Create(ctx, "dev-1", "  Shop  ")
	require.NoError(t, err)
	require.Equal(t, "Shop", a.Name)
	require.True(t, strings.HasPrefix(a.PublishableKey, KeyPrefix))
	require.Len(t, a.PublishableKey, len(KeyPrefix)+2*keyEntropy)

	b, err := svc.Create(ctx, "dev-1", "Game")
	require.NoError(t, err)
	require.NotEqual(t, a.PublishableKey, b.PublishableKey)

	found, err := svc.FindByKey(ctx, a.PublishableKey)
	require.NoError(t, err)
	require.Equal(t, a.ID, found.ID)

	apps, err := svc.List(ctx, "dev-1")
	require.NoError(t, err)
	require.Len(t, apps, 2)

	none, err := svc.List(ctx, "dev-2")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestCreateValidatesName(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	_, err := svc.Create(context.Background(), "dev-1", "   ")
	require.True(t, apperr.Is(err, apperr.CodeInputValidation))
	_, err = svc.Create(context.Background(), "dev-1", strings.Repeat("x", maxNameLength+1))
	require.True(t, apperr.Is(err, apperr.CodeInputValidation))
}

func TestOwnedBy(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()
	app, err := svc.Create(ctx, "dev-1", "Shop")
	require.NoError(t, err)

	got, err := svc.OwnedBy(ctx, "dev-1", app.ID)
	require.NoError(t, err)
	require.Equal(t, app.ID, got.ID)

	_, err = svc.OwnedBy(ctx, "dev-2", app.ID)
	require.True(t, apperr.Is(err, apperr.CodeForbidden))

	_, err = svc.OwnedBy(ctx, "dev-1", "missing")
	require.True(t, apperr.Is(err, apperr.CodeForbidden))
}
