package cell

// present is the value stored for every member of a Set; sets are maps
// whose values are presence markers.
var present = Long(1)

// Set is a Map used as a membership collection: get(k) -> presence. It is
// also callable as a unary predicate (§4.2).
type Set struct {
	m Map
}

// EmptySet is the canonical zero-member set.
var EmptySet = Set{m: EmptyMap}

func NewSet(members ...Cell) Set {
	s := EmptySet
	for _, c := range members {
		s = s.Conj(c)
	}
	return s
}

func (Set) Tag() Tag { return TagSet }

func (s Set) Count() int { return s.m.Count() }

// Contains reports whether c is a member of s.
func (s Set) Contains(c Cell) bool {
	_, ok := s.m.Get(c)
	return ok
}

// Conj returns a new set with c added.
func (s Set) Conj(c Cell) Set {
	return Set{m: s.m.Assoc(c, present)}
}

// Disj returns a new set with c removed.
func (s Set) Disj(c Cell) Set {
	return Set{m: s.m.Dissoc(c)}
}

// Call makes Set usable as element -> bool, per the spec's callable-set
// contract.
func (s Set) Call(c Cell) bool { return s.Contains(c) }

func (s Set) Encode(dst []byte) []byte {
	dst = append(dst, byte(TagSet))
	dst = putVLC(dst, uint64(s.m.Count()))
	s.m.each(func(e mapEntry) { dst = encodeRef(dst, e.key) })
	return dst
}

func (s Set) Refs() []Ref {
	out := make([]Ref, 0, s.m.Count())
	s.m.each(func(e mapEntry) { out = append(out, e.key) })
	return out
}

func decodeSet(body []byte) (Set, int, error) {
	n, used, err := getVLC(body)
	if err != nil {
		return Set{}, 0, err
	}
	out := EmptySet
	off := used
	for i := uint64(0); i < n; i++ {
		r, consumed, err := decodeRef(body[off:])
		if err != nil {
			return Set{}, 0, err
		}
		off += consumed
		c, ok := r.Value()
		if !ok {
			return Set{}, 0, ErrTruncated{What: "set member must be embedded or resolvable"}
		}
		out = out.Conj(c)
	}
	return out, off, nil
}
