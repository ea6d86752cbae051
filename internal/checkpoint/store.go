// Package checkpoint persists opaque AgentState snapshots keyed by session
// ID. The store treats the snapshot as an opaque byte slice; encoding and
// decoding it is the orchestrator package's responsibility.
package checkpoint

import "context"

// Store is the checkpoint persistence contract: get, put, and delete a
// snapshot by session ID. Writes for a given session ID are serialized by
// the implementation so a session's state never interleaves two concurrent
// Invoke calls.
type Store interface {
	// Get returns the most recently stored snapshot for sessionID. It
	// returns ErrNotFound if no snapshot has been stored yet.
	Get(ctx context.Context, sessionID string) ([]byte, error)

	// Put stores snapshot as the current state for sessionID, replacing
	// any previous value.
	Put(ctx context.Context, sessionID string, snapshot []byte) error

	// Delete removes any stored snapshot for sessionID. Deleting a
	// session with no stored snapshot is not an error.
	Delete(ctx context.Context, sessionID string) error

	// Close releases any resources held by the store.
	Close() error
}
