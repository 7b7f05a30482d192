package cart

import (
	"context"
	"sync"

	"storefront/pkg/commerce"
	"storefront/pkg/session"
)

// Binder ties every mutation to exactly one server-side cart identity,
// lazily creating one on the first mutation. Ensure is idempotent: once a
// creation succeeds, no further creation calls are issued. A failed creation
// is never cached; the next call retries.
type Binder struct {
	mu      sync.Mutex
	store   session.Store
	backend commerce.Backend
}

// NewBinder builds a binder over the persisted handle store and the backend
// that issues cart identities.
func NewBinder(store session.Store, backend commerce.Backend) *Binder {
	return &Binder{store: store, backend: backend}
}

// Ensure returns the bound cart id, creating and persisting one if the
// store holds none. Concurrent callers serialize so at most one creation
// call is ever in flight.
func (b *Binder) Ensure(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id, err := b.store.Get(ctx)
	if err != nil {
		return "", &Error{Kind: KindSessionCreationFailed, Op: "session", Err: err}
	}
	if id != "" {
		return id, nil
	}

	id, err = b.backend.CreateCart(ctx)
	if err != nil {
		return "", &Error{Kind: KindSessionCreationFailed, Op: "session", Err: err}
	}
	if err := b.store.Set(ctx, id); err != nil {
		return "", &Error{Kind: KindSessionCreationFailed, Op: "session", Err: err}
	}
	return id, nil
}

// Current returns the bound cart id without creating one; "" when absent.
func (b *Binder) Current(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.Get(ctx)
}
