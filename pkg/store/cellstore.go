package store

import (
	"fmt"

	"github.com/latticenet/core/pkg/cell"
)

// CellStore layers the cell model onto a raw Store: encoding/decoding,
// cell.Resolver, and ref construction.
type CellStore struct {
	raw Store
}

func NewCellStore(raw Store) *CellStore { return &CellStore{raw: raw} }

// Resolve implements cell.Resolver.
func (cs *CellStore) Resolve(h cell.Hash) (cell.Cell, bool, error) {
	b, ok, err := cs.raw.Get(h)
	if err != nil || !ok {
		return nil, ok, err
	}
	c, _, err := cell.Decode(b)
	if err != nil {
		return nil, false, fmt.Errorf("store: invalid data at %s: %w", h, err)
	}
	return c, true, nil
}

// Get returns the raw encoded bytes for a hash, without decoding.
func (cs *CellStore) Get(h cell.Hash) ([]byte, bool, error) { return cs.raw.Get(h) }

// Put encodes and persists c, returning its hash. Idempotent: re-putting an
// already-stored cell is a harmless overwrite.
func (cs *CellStore) Put(c cell.Cell) (cell.Hash, error) {
	enc := cell.Encode(c)
	h := cell.HashOf(enc)
	if err := cs.raw.Put(h, enc); err != nil {
		return cell.Hash{}, err
	}
	return h, nil
}

// PutBytes persists an already-encoded cell body under hash h, for callers
// (e.g. transport) that received raw bytes rather than a decoded Cell.
func (cs *CellStore) PutBytes(h cell.Hash, encoded []byte) error {
	return cs.raw.Put(h, encoded)
}

// RefForHash returns a hashed Ref for h if present in the store, resolving
// it to a direct ref so the caller does not need to round-trip through
// Resolve again immediately.
func (cs *CellStore) RefForHash(h cell.Hash) (cell.Ref, bool, error) {
	c, ok, err := cs.Resolve(h)
	if err != nil || !ok {
		return cell.Ref{}, ok, err
	}
	return cell.NewRef(c).Persisted(), true, nil
}

func (cs *CellStore) Close() error { return cs.raw.Close() }
