package cell

// RefStatus tracks a Ref's position on the monotone Direct -> Persisted ->
// Announced lifecycle described in §4.1. A Ref never moves backwards.
type RefStatus int8

const (
	// StatusHashed means only the hash is known; Value() requires a store.
	StatusHashed RefStatus = iota
	// StatusDirect means the cell value is held in memory.
	StatusDirect
	// StatusPersisted means the cell is known to be durable in the store.
	StatusPersisted
	// StatusAnnounced means the cell was marked novel and dispatched to a
	// novelty sink (the trigger for broadcasting a newly-signed Belief).
	StatusAnnounced
)

// Resolver loads a cell given its hash. Implemented by package store;
// kept as an interface here so package cell never depends on storage.
type Resolver interface {
	Resolve(h Hash) (Cell, bool, error)
}

// Ref is a handle to a Cell: either the value itself (Direct) or only its
// hash (Hashed), resolved on demand. Refs are embedded inline in their
// parent's encoding when the child's encoded size is below embeddedMax and
// it has no hashed descendants of its own, and a SignedData cell is always
// embedded; otherwise they serialize as a bare 32-byte hash.
type Ref struct {
	value  Cell
	hash   Hash
	status RefStatus
}

// NewRef wraps a direct, in-memory cell value.
func NewRef(c Cell) Ref {
	return Ref{value: c, hash: HashCell(c), status: StatusDirect}
}

// NewHashedRef constructs a Ref that is known only by hash.
func NewHashedRef(h Hash) Ref {
	return Ref{hash: h, status: StatusHashed}
}

// Hash returns the ref's content hash, which every constructor sets up
// front (NewRef computes it from the value).
func (r Ref) Hash() Hash { return r.hash }

// Status reports the ref's lifecycle position.
func (r Ref) Status() RefStatus { return r.status }

// Direct reports whether the cell value is already in memory.
func (r Ref) Direct() bool { return r.value != nil }

// Value returns the in-memory cell if present, without touching a store.
func (r Ref) Value() (Cell, bool) {
	if r.value == nil {
		return nil, false
	}
	return r.value, true
}

// Resolve returns the ref's cell, loading it from res if it is not already
// held in memory. Resolving never mutates r; callers that want to cache the
// loaded value should call WithValue to obtain an updated Ref.
func (r Ref) Resolve(res Resolver) (Cell, error) {
	if r.value != nil {
		return r.value, nil
	}
	c, ok, err := res.Resolve(r.hash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound{Hash: r.hash}
	}
	return c, nil
}

// WithValue returns a copy of r with its in-memory value populated,
// advancing it to StatusDirect if it was only StatusHashed.
func (r Ref) WithValue(c Cell) Ref {
	r.value = c
	if r.status == StatusHashed {
		r.status = StatusDirect
	}
	return r
}

// Persisted returns a copy of r advanced to StatusPersisted. A no-op if r
// is already at or past that status.
func (r Ref) Persisted() Ref {
	if r.status < StatusPersisted {
		r.status = StatusPersisted
	}
	return r
}

// Announced returns a copy of r advanced to StatusAnnounced.
func (r Ref) Announced() Ref {
	r.status = StatusAnnounced
	return r
}

// embedded reports whether r's cell should be inlined in its parent's
// encoding rather than written out as a bare hash.
func (r Ref) embedded() bool {
	if r.value == nil {
		return false
	}
	if _, ok := r.value.(SignedData); ok {
		return true
	}
	enc := Encode(r.value)
	if len(enc) >= embeddedMax {
		return false
	}
	for _, child := range r.value.Refs() {
		if !child.embedded() {
			return false
		}
	}
	return true
}

// encodeRef writes r into dst: an embedded marker byte (0x01) followed by
// the inline cell encoding, or a plain marker byte (0x00) followed by the
// 32-byte hash.
func encodeRef(dst []byte, r Ref) []byte {
	if r.embedded() {
		dst = append(dst, 0x01)
		return r.value.Encode(dst)
	}
	dst = append(dst, 0x00)
	return append(dst, r.hash[:]...)
}

// EncodeRef exposes encodeRef for cross-package cell types (state.TxResult)
// that embed a single ref-shaped field directly rather than going through
// a collection.
func EncodeRef(dst []byte, r Ref) []byte { return encodeRef(dst, r) }

// DecodeRef exposes decodeRef for cross-package decoders.
func DecodeRef(src []byte) (Ref, int, error) { return decodeRef(src) }

// decodeRef reads one ref from src, returning the ref and bytes consumed.
func decodeRef(src []byte) (Ref, int, error) {
	if len(src) == 0 {
		return Ref{}, 0, ErrTruncated{What: "ref"}
	}
	switch src[0] {
	case 0x01:
		c, n, err := Decode(src[1:])
		if err != nil {
			return Ref{}, 0, err
		}
		return NewRef(c), n + 1, nil
	case 0x00:
		if len(src) < 33 {
			return Ref{}, 0, ErrTruncated{What: "ref hash"}
		}
		var h Hash
		copy(h[:], src[1:33])
		return NewHashedRef(h), 33, nil
	default:
		return Ref{}, 0, ErrTruncated{What: "ref marker"}
	}
}

// ErrNotFound is returned by Resolve when a hash is absent from the store.
type ErrNotFound struct{ Hash Hash }

func (e ErrNotFound) Error() string { return "cell: not found: " + e.Hash.String() }

// ErrTruncated is returned when decoding runs out of input.
type ErrTruncated struct{ What string }

func (e ErrTruncated) Error() string { return "cell: truncated " + e.What }
