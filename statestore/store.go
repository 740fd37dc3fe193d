// Package statestore holds the committed global state of a development
// node: a flat map from storage address to bytes.
package statestore

import (
	"errors"

	"github.com/blockberries/cookiejar/types"
)

// ErrClosed is returned by every call on a closed store.
var ErrClosed = errors.New("statestore: closed")

// Store is the node's committed state.
type Store interface {
	// Get returns the value stored at addr. ok is false when nothing
	// is stored there.
	Get(addr string) (data []byte, ok bool, err error)

	// Apply commits writes atomically, in order: either all of them
	// become visible or none do. An entry with empty data deletes the
	// address.
	Apply(writes []types.StateEntry) error

	// Close releases the store.
	Close() error
}
