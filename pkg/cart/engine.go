package cart

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"storefront/pkg/commerce"
)

// Engine is the cart action dispatcher. Each mutation entry point applies
// the optimistic reducer to the last published snapshot and publishes the
// prediction synchronously, then reconciles with the backend in the
// background without blocking the caller.
//
// The published snapshot has exactly one writer path (the engine) and reads
// always see the latest published value, so no reader-side locking is
// needed. Backend confirmations may complete out of order; they are not
// reconciled individually — the next authoritative fetch replaces the whole
// predicted state.
type Engine struct {
	backend commerce.Backend
	binder  *Binder
	log     *zap.Logger

	mu      sync.Mutex
	current *commerce.Cart

	errs     chan *Error
	onError  func(*Error)
	onChange func(commerce.Cart)

	subMu sync.Mutex
	subs  map[chan commerce.Cart]struct{}

	inflight sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// OnError registers a callback invoked (from the reconciling goroutine) for
// every background failure, in addition to the Errors channel.
func OnError(fn func(*Error)) Option {
	return func(e *Engine) { e.onError = fn }
}

// OnChange registers a callback invoked after every snapshot publish, in
// publish order. It runs with the engine's write lock held and must not
// call back into the engine.
func OnChange(fn func(commerce.Cart)) Option {
	return func(e *Engine) { e.onChange = fn }
}

// NewEngine builds an engine over a backend and a session binder.
func NewEngine(backend commerce.Backend, binder *Binder, opts ...Option) *Engine {
	e := &Engine{
		backend: backend,
		binder:  binder,
		log:     zap.NewNop(),
		errs:    make(chan *Error, 16),
		subs:    make(map[chan commerce.Cart]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Current returns the latest published snapshot. ok is false only before
// the first interaction and before the first authoritative fetch.
func (e *Engine) Current() (commerce.Cart, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return commerce.Cart{}, false
	}
	return *e.current, true
}

// Errors delivers background failures: session creation and backend
// mutation errors. The channel is buffered; when nobody drains it, further
// errors are logged and dropped rather than blocking reconciliation.
func (e *Engine) Errors() <-chan *Error {
	return e.errs
}

// Subscribe registers a snapshot listener. Every published snapshot is sent
// to the returned channel; slow consumers miss intermediate snapshots but
// always receive the latest. The cancel function must be called when done.
func (e *Engine) Subscribe() (<-chan commerce.Cart, func()) {
	ch := make(chan commerce.Cart, 1)
	e.subMu.Lock()
	e.subs[ch] = struct{}{}
	e.subMu.Unlock()

	cancel := func() {
		e.subMu.Lock()
		delete(e.subs, ch)
		e.subMu.Unlock()
	}
	return ch, cancel
}

// AddItem optimistically adds quantity units of the variant and returns the
// predicted snapshot. The backend call proceeds in the background.
func (e *Engine) AddItem(ctx context.Context, merch commerce.Merchandise, quantity int) commerce.Cart {
	return e.dispatch(ctx, AddItem(merch, quantity))
}

// UpdateQuantity optimistically shifts a line's quantity by delta and
// returns the predicted snapshot. A resulting quantity <= 0 removes the
// line.
func (e *Engine) UpdateQuantity(ctx context.Context, lineID string, delta int) commerce.Cart {
	return e.dispatch(ctx, UpdateQuantity(lineID, delta))
}

// RemoveItem optimistically deletes a line and returns the predicted
// snapshot.
func (e *Engine) RemoveItem(ctx context.Context, lineID string) commerce.Cart {
	return e.dispatch(ctx, RemoveItem(lineID))
}

// dispatch runs the synchronous reducer step under the write lock so
// rapid-fire mutations compose in dispatch order, publishes the prediction,
// and kicks off background reconciliation. Publishing happens before the
// lock is released so subscribers see snapshots in dispatch order too.
func (e *Engine) dispatch(ctx context.Context, m Mutation) commerce.Cart {
	e.mu.Lock()
	next := Apply(e.current, m)
	e.current = &next

	// The backend wants absolute quantities; capture the target from the
	// prediction while the lock still guarantees it is the latest.
	target := 0
	if m.Kind == MutationUpdate {
		if line := next.Line(m.LineID); line != nil {
			target = line.Quantity
		}
	}
	e.publish(next)
	e.mu.Unlock()

	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		// The mutation outlives the request that dispatched it.
		e.reconcile(context.WithoutCancel(ctx), m, target)
	}()

	return next
}

// reconcile performs the backend mutation for an already-published
// prediction. The authoritative snapshot it returns is intentionally not
// published: confirmations can arrive out of dispatch order, so the next
// full fetch is the only point where backend truth replaces the prediction.
func (e *Engine) reconcile(ctx context.Context, m Mutation, target int) {
	cartID, err := e.binder.Ensure(ctx)
	if err != nil {
		var cerr *Error
		if errors.As(err, &cerr) {
			e.report(&Error{Kind: cerr.Kind, Op: m.Kind.String(), Err: cerr.Err})
		} else {
			e.report(&Error{Kind: KindSessionCreationFailed, Op: m.Kind.String(), Err: err})
		}
		return
	}

	switch m.Kind {
	case MutationAdd:
		_, err = e.backend.AddLine(ctx, cartID, m.Merchandise.ID, m.Quantity)
	case MutationUpdate:
		err = e.reconcileUpdate(ctx, cartID, m.LineID, target)
	case MutationRemove:
		err = e.reconcileRemove(ctx, cartID, m.LineID)
	}
	if err != nil {
		e.report(&Error{Kind: KindMutationFailed, Op: m.Kind.String(), Err: err})
		return
	}
	e.log.Debug("cart mutation confirmed",
		zap.String("op", m.Kind.String()),
		zap.String("cart_id", cartID))
}

// resolveLineID maps a placeholder line id from an optimistic add to the
// backend-assigned id by looking the variant up in the authoritative cart.
func (e *Engine) resolveLineID(ctx context.Context, cartID, lineID string) (string, error) {
	merchID := PendingMerchandiseID(lineID)
	if merchID == "" {
		return lineID, nil
	}
	snapshot, err := e.backend.FetchCart(ctx, cartID)
	if err != nil {
		return "", err
	}
	line := snapshot.LineByMerchandise(merchID)
	if line == nil {
		return "", commerce.ErrLineNotFound
	}
	return line.ID, nil
}

func (e *Engine) reconcileUpdate(ctx context.Context, cartID, lineID string, quantity int) error {
	id, err := e.resolveLineID(ctx, cartID, lineID)
	if err != nil {
		return err
	}
	_, err = e.backend.UpdateLine(ctx, cartID, id, quantity)
	return err
}

func (e *Engine) reconcileRemove(ctx context.Context, cartID, lineID string) error {
	id, err := e.resolveLineID(ctx, cartID, lineID)
	if err != nil {
		return err
	}
	_, err = e.backend.RemoveLine(ctx, cartID, id)
	return err
}

// Refresh fetches the authoritative snapshot and publishes it, replacing
// any outstanding prediction. Without a bound session there is nothing to
// fetch and the call is a no-op.
func (e *Engine) Refresh(ctx context.Context) error {
	cartID, err := e.binder.Current(ctx)
	if err != nil {
		return err
	}
	if cartID == "" {
		return nil
	}
	snapshot, err := e.backend.FetchCart(ctx, cartID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.current = &snapshot
	e.publish(snapshot)
	e.mu.Unlock()
	return nil
}

// Checkout returns the backend-issued redirect target for the bound cart.
// With no session it fails immediately with KindNoSession and performs no
// network round-trip.
func (e *Engine) Checkout(ctx context.Context) (string, error) {
	cartID, err := e.binder.Current(ctx)
	if err != nil {
		// A store read failure is not "no session yet": the handle may
		// well exist, we just cannot reach it right now.
		return "", &Error{Kind: KindCheckoutUnavailable, Op: "checkout", Err: err}
	}
	if cartID == "" {
		return "", &Error{Kind: KindNoSession, Op: "checkout"}
	}
	url, err := e.backend.CheckoutURL(ctx, cartID)
	if err != nil {
		return "", &Error{Kind: KindCheckoutUnavailable, Op: "checkout", Err: err}
	}
	return url, nil
}

// Wait blocks until all in-flight background mutations finish. Tests and
// graceful shutdown use it; the UI path never does.
func (e *Engine) Wait() {
	e.inflight.Wait()
}

func (e *Engine) publish(snapshot commerce.Cart) {
	e.subMu.Lock()
	for ch := range e.subs {
		// Slow consumers keep only the latest snapshot.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snapshot:
		default:
		}
	}
	e.subMu.Unlock()

	if e.onChange != nil {
		e.onChange(snapshot)
	}
}

func (e *Engine) report(err *Error) {
	select {
	case e.errs <- err:
	default:
		e.log.Debug("cart error channel full, dropping", zap.Error(err))
	}
	if e.onError != nil {
		e.onError(err)
	}
}
