package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"storefront/pkg/session"
)

func TestBinderCreatesOnce(t *testing.T) {
	backend := newFakeBackend()
	binder := NewBinder(session.NewMemoryStore(), backend)
	ctx := context.Background()

	first, err := binder.Ensure(ctx)
	require.NoError(t, err)
	require.Equal(t, "cart-1", first)

	second, err := binder.Ensure(ctx)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, backend.callCount("create"), "a bound handle must never trigger a second creation")
}

func TestBinderDoesNotCacheFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.createErr = errors.New("unreachable")
	store := session.NewMemoryStore()
	binder := NewBinder(store, backend)
	ctx := context.Background()

	_, err := binder.Ensure(ctx)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, KindSessionCreationFailed, cerr.Kind)

	id, err := store.Get(ctx)
	require.NoError(t, err)
	require.Empty(t, id, "a failed creation must leave the handle absent")

	// The backend recovers; the next call succeeds.
	backend.createErr = nil
	got, err := binder.Ensure(ctx)
	require.NoError(t, err)
	require.Equal(t, "cart-1", got)
	require.Equal(t, 2, backend.callCount("create"))
}

func TestBinderCurrentNeverCreates(t *testing.T) {
	backend := newFakeBackend()
	binder := NewBinder(session.NewMemoryStore(), backend)

	id, err := binder.Current(context.Background())
	require.NoError(t, err)
	require.Empty(t, id)
	require.Equal(t, 0, backend.callCount("create"))
}
