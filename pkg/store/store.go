// Package store implements the hash-addressed persistence layer beneath
// the cell model: a flat content-store (§9, "store adapter") keyed by
// cell.Hash, plus the novelty/announce machinery the peer state machine
// uses to tell transport what it needs to broadcast after persisting.
//
// The spec names a process-wide "current store" global and a captured
// novelty callback; both are redesigned here (per the accompanying
// redesign notes) into explicit values threaded by the caller — a
// cell.Resolver passed to every resolution-needing call, and a NoveltySink
// passed into PersistAnnounced — rather than ambient or singleton state.
package store

import (
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/latticenet/core/pkg/cell"
)

// Store is the raw hash -> bytes persistence contract (§9 store adapter).
type Store interface {
	Get(h cell.Hash) ([]byte, bool, error)
	Put(h cell.Hash, encoded []byte) error
	Close() error
}

// PebbleStore is a Store backed by a Pebble LSM tree, one key per cell
// hash.
type PebbleStore struct {
	db *pebble.DB
}

// Open opens (creating if necessary) a PebbleStore at path.
func Open(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Get(h cell.Hash) ([]byte, bool, error) {
	val, closer, err := s.db.Get(h[:])
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: get %s: %w", h, err)
	}
	defer closer.Close()
	out := make([]byte, len(val))
	copy(out, val)
	return out, true, nil
}

func (s *PebbleStore) Put(h cell.Hash, encoded []byte) error {
	if err := s.db.Set(h[:], encoded, pebble.Sync); err != nil {
		return fmt.Errorf("store: put %s: %w", h, err)
	}
	return nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }
