package cart

import "fmt"

// ErrorKind classifies engine failures for the UI layer.
type ErrorKind string

const (
	// KindSessionCreationFailed: the backend could not create a cart; the
	// handle stays absent and the next mutation retries creation.
	KindSessionCreationFailed ErrorKind = "session-creation-failed"

	// KindNoSession: checkout was attempted before any cart exists. No
	// network call is made.
	KindNoSession ErrorKind = "no-session"

	// KindMutationFailed: the backend rejected or never received an
	// add/update/remove. The optimistic snapshot stays visible; the next
	// authoritative fetch is the correction path.
	KindMutationFailed ErrorKind = "mutation-failed"

	// KindCheckoutUnavailable: the backend could not produce a redirect
	// target for an existing cart.
	KindCheckoutUnavailable ErrorKind = "checkout-unavailable"
)

// Error is the typed failure surfaced to whatever initiated a cart action.
// None are fatal; all are recoverable by user retry.
type Error struct {
	Kind ErrorKind
	Op   string // the operation that failed, e.g. "add", "checkout"
	Err  error  // underlying cause, may be nil for no-session
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("cart %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("cart %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
