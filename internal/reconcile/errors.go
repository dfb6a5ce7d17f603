package reconcile

import (
	"errors"
	"fmt"
)

// Error taxonomy surfaced at the store boundary. Raw transport errors never
// cross it: they are wrapped in a TransportError after rollback.
var (
	// ErrItemNotFound: the target item is not in the local snapshot.
	ErrItemNotFound = errors.New("item not found")

	// ErrItemTerminal: the item is cancelled or marked not available and
	// rejects quantity mutations.
	ErrItemTerminal = errors.New("item is cancelled or not available")

	// ErrMutationPending: another mutation on the same item is still in
	// flight. Same-item mutations are serialized, not raced.
	ErrMutationPending = errors.New("a mutation for this item is already pending")

	// ErrNotLoaded: the store has no snapshot yet; call Refresh first.
	ErrNotLoaded = errors.New("list snapshot not loaded")
)

// TransportError wraps a network or server failure. The optimistic patch has
// already been rolled back when a caller sees one; the mutation is never
// left half-applied and is not retried automatically.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
