/*
Package checkpoint persists encoded training state between runs so an
interrupted growth can resume where it stopped. Stores move opaque
payloads keyed by name; they never interpret them.
*/
package checkpoint

import "context"

// Error is a constant error reported by checkpoint stores.
type Error string

func (e Error) Error() string {
	return string(e)
}

/*
ErrNotFound reports that nothing was ever saved under a key. Stores
wrap it with context but keep it matchable, so callers can tell a
fresh start apart from a payload that exists but cannot be restored.
*/
const ErrNotFound = Error("checkpoint not found")

/*
Store is an interface to manage a store where checkpoint payloads can
be saved, loaded and deleted.

All its methods take a context that may allow cancelling the operation
(thus forcing the return of an error) if the implementation allows it.
Implementations must support concurrent use.
*/
type Store interface {
	// Save persists data under key, replacing whatever payload the key
	// held before. It returns an error if the payload cannot be
	// persisted completely.
	Save(ctx context.Context, key string, data []byte) error
	// Load returns the payload saved under key, or an error matching
	// ErrNotFound if nothing was ever saved under it.
	Load(ctx context.Context, key string) ([]byte, error)
	// Delete removes the payload saved under key. Deleting an absent
	// key is not an error.
	Delete(ctx context.Context, key string) error
	// Close closes the store, implementations should free any
	// resources in use as well as ensure any pending changes are
	// applied before returning (unless the context expires).
	Close(ctx context.Context) error
}
