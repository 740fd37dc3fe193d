package statestore

import (
	"errors"
	"fmt"

	"github.com/blockberries/cookiejar/types"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// Compile-time interface check.
var _ Store = (*Pebble)(nil)

// Pebble is a Store persisted in a pebble database. Addresses are used
// as keys verbatim.
type Pebble struct {
	db *pebble.DB
}

// OpenPebble opens (or creates) the database in dir. A nil fs means the
// real filesystem; tests pass vfs.NewMem().
func OpenPebble(dir string, fs vfs.FS) (*Pebble, error) {
	opts := &pebble.Options{}
	if fs != nil {
		opts.FS = fs
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("open state database %s: %w", dir, err)
	}
	return &Pebble{db: db}, nil
}

func (p *Pebble) Get(addr string) ([]byte, bool, error) {
	value, closer, err := p.db.Get([]byte(addr))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", addr, err)
	}
	defer closer.Close()
	return append([]byte(nil), value...), true, nil
}

func (p *Pebble) Apply(writes []types.StateEntry) error {
	b := p.db.NewBatch()
	defer b.Close()
	for _, w := range writes {
		var err error
		if len(w.Data) == 0 {
			err = b.Delete([]byte(w.Address), nil)
		} else {
			err = b.Set([]byte(w.Address), w.Data, nil)
		}
		if err != nil {
			return fmt.Errorf("stage write to %s: %w", w.Address, err)
		}
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("commit state: %w", err)
	}
	return nil
}

func (p *Pebble) Close() error {
	return p.db.Close()
}
