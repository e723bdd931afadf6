package cell

import "bytes"

// mapEntry is one key/value pair, keyed by the hash of the key cell so
// iteration order never depends on insertion order or pointer identity.
type mapEntry struct {
	keyHash Hash
	key     Ref
	val     Ref
}

// Map is an unordered key -> value association, represented as a small
// sorted flat array for up to 8 entries and as a hash-array-mapped trie
// (branching factor 16, keyed by the hash of the key cell) above that, per
// §4.2. Iteration is always in the stable canonical order determined by
// key hash, regardless of which representation backs the map.
type Map struct {
	flat []mapEntry // sorted by keyHash; used when hamt == nil
	hamt *hnode
	cnt  int
}

// EmptyMap is the canonical zero-entry map.
var EmptyMap = Map{}

const flatMapMax = 8

func (Map) Tag() Tag { return TagMap }

func (m Map) Count() int { return m.cnt }

// Get returns the value bound to k, or (Ref{}, false) if absent.
func (m Map) Get(k Cell) (Ref, bool) {
	kh := HashCell(k)
	if m.hamt == nil {
		if i, ok := m.findFlat(kh); ok {
			return m.flat[i].val, true
		}
		return Ref{}, false
	}
	e, ok := hamtGet(m.hamt, 0, kh)
	if !ok {
		return Ref{}, false
	}
	return e.val, true
}

// GetOr returns the value bound to k, or notFound if absent.
func (m Map) GetOr(k Cell, notFound Ref) Ref {
	if v, ok := m.Get(k); ok {
		return v
	}
	return notFound
}

// Assoc returns a new map with k bound to v.
func (m Map) Assoc(k, v Cell) Map {
	kh := HashCell(k)
	e := mapEntry{keyHash: kh, key: NewRef(k), val: NewRef(v)}

	if m.hamt == nil {
		newFlat, isNew := m.assocFlat(e)
		if len(newFlat) <= flatMapMax {
			cnt := m.cnt
			if isNew {
				cnt++
			}
			return Map{flat: newFlat, cnt: cnt}
		}
		// promote to HAMT
		var root *hnode
		for _, fe := range newFlat {
			root, _ = hamtInsert(root, 0, fe.keyHash, fe)
		}
		return Map{hamt: root, cnt: len(newFlat)}
	}

	newRoot, isNew := hamtInsert(m.hamt, 0, kh, e)
	cnt := m.cnt
	if isNew {
		cnt++
	}
	return Map{hamt: newRoot, cnt: cnt}
}

// Dissoc returns a new map with k removed (a no-op if k is absent).
func (m Map) Dissoc(k Cell) Map {
	kh := HashCell(k)
	if m.hamt == nil {
		i, ok := m.findFlat(kh)
		if !ok {
			return m
		}
		newFlat := make([]mapEntry, 0, len(m.flat)-1)
		newFlat = append(newFlat, m.flat[:i]...)
		newFlat = append(newFlat, m.flat[i+1:]...)
		return Map{flat: newFlat, cnt: m.cnt - 1}
	}
	newRoot, removed := hamtDissoc(m.hamt, 0, kh)
	if !removed {
		return m
	}
	newCnt := m.cnt - 1
	if newCnt <= flatMapMax {
		flat := make([]mapEntry, 0, newCnt)
		walkHamt(newRoot, func(e mapEntry) { flat = append(flat, e) })
		return Map{flat: flat, cnt: newCnt}
	}
	return Map{hamt: newRoot, cnt: newCnt}
}

// Keys returns a vector of this map's keys in canonical order.
func (m Map) Keys() Vector {
	out := EmptyVector
	m.each(func(e mapEntry) { out = out.Append(e.key) })
	return out
}

// Values returns a vector of this map's values in canonical order.
func (m Map) Values() Vector {
	out := EmptyVector
	m.each(func(e mapEntry) { out = out.Append(e.val) })
	return out
}

// Merge returns a new map containing all entries of m, overlaid by all
// entries of other (other wins on key collision).
func (m Map) Merge(other Map) Map {
	out := m
	other.each(func(e mapEntry) {
		if k, ok := e.key.Value(); ok {
			if v, ok := e.val.Value(); ok {
				out = out.Assoc(k, v)
			}
		}
	})
	return out
}

// Call makes Map usable as key -> value-or-absent, the spec's "callable
// as unary function" contract for collections.
func (m Map) Call(k Cell) (Ref, bool) { return m.Get(k) }

func (m Map) each(fn func(mapEntry)) {
	if m.hamt == nil {
		for _, e := range m.flat {
			fn(e)
		}
		return
	}
	walkHamt(m.hamt, fn)
}

func (m Map) findFlat(kh Hash) (int, bool) {
	for i, e := range m.flat {
		if e.keyHash == kh {
			return i, true
		}
	}
	return -1, false
}

// assocFlat returns a new sorted flat slice with e inserted or replacing an
// existing entry of the same key hash.
func (m Map) assocFlat(e mapEntry) ([]mapEntry, bool) {
	out := make([]mapEntry, 0, len(m.flat)+1)
	inserted := false
	isNew := true
	for _, cur := range m.flat {
		if !inserted && bytes.Compare(e.keyHash[:], cur.keyHash[:]) < 0 {
			out = append(out, e)
			inserted = true
		}
		if cur.keyHash == e.keyHash {
			isNew = false
			continue
		}
		out = append(out, cur)
	}
	if !inserted {
		out = append(out, e)
	}
	return out, isNew
}

func (m Map) Encode(dst []byte) []byte {
	dst = append(dst, byte(TagMap))
	dst = putVLC(dst, uint64(m.cnt))
	m.each(func(e mapEntry) {
		dst = encodeRef(dst, e.key)
		dst = encodeRef(dst, e.val)
	})
	return dst
}

func (m Map) Refs() []Ref {
	out := make([]Ref, 0, m.cnt*2)
	m.each(func(e mapEntry) { out = append(out, e.key, e.val) })
	return out
}

func decodeMap(body []byte) (Map, int, error) {
	n, used, err := getVLC(body)
	if err != nil {
		return Map{}, 0, err
	}
	out := EmptyMap
	off := used
	for i := uint64(0); i < n; i++ {
		kr, kn, err := decodeRef(body[off:])
		if err != nil {
			return Map{}, 0, err
		}
		off += kn
		vr, vn, err := decodeRef(body[off:])
		if err != nil {
			return Map{}, 0, err
		}
		off += vn
		kc, ok := kr.Value()
		if !ok {
			return Map{}, 0, ErrTruncated{What: "map key must be embedded or resolvable"}
		}
		vc, ok := vr.Value()
		if !ok {
			return Map{}, 0, ErrTruncated{What: "map value must be embedded or resolvable"}
		}
		out = out.Assoc(kc, vc)
	}
	return out, off, nil
}

// hnode is a HAMT branch: 16 slots, each nil, a mapEntry (leaf), or a
// further *hnode.
type hnode struct {
	arr [chunkSize]interface{}
}

func nibble(h Hash, level uint) int {
	bitIndex := level * 4
	byteIndex := int(bitIndex / 8)
	if byteIndex >= len(h) {
		return 0
	}
	if bitIndex%8 == 0 {
		return int(h[byteIndex] >> 4)
	}
	return int(h[byteIndex] & 0x0f)
}

func hamtGet(node *hnode, level uint, kh Hash) (mapEntry, bool) {
	if node == nil {
		return mapEntry{}, false
	}
	idx := nibble(kh, level)
	switch child := node.arr[idx].(type) {
	case nil:
		return mapEntry{}, false
	case mapEntry:
		if child.keyHash == kh {
			return child, true
		}
		return mapEntry{}, false
	case *hnode:
		return hamtGet(child, level+1, kh)
	default:
		return mapEntry{}, false
	}
}

func hamtInsert(node *hnode, level uint, kh Hash, e mapEntry) (*hnode, bool) {
	idx := nibble(kh, level)
	var newNode hnode
	if node != nil {
		newNode.arr = node.arr
	}
	switch child := newNode.arr[idx].(type) {
	case nil:
		newNode.arr[idx] = e
		return &newNode, true
	case mapEntry:
		if child.keyHash == kh {
			newNode.arr[idx] = e
			return &newNode, false
		}
		sub, _ := hamtInsert(nil, level+1, child.keyHash, child)
		sub, _ = hamtInsert(sub, level+1, kh, e)
		newNode.arr[idx] = sub
		return &newNode, true
	case *hnode:
		sub, isNew := hamtInsert(child, level+1, kh, e)
		newNode.arr[idx] = sub
		return &newNode, isNew
	default:
		newNode.arr[idx] = e
		return &newNode, true
	}
}

func hamtDissoc(node *hnode, level uint, kh Hash) (*hnode, bool) {
	if node == nil {
		return nil, false
	}
	idx := nibble(kh, level)
	var newNode hnode
	newNode.arr = node.arr
	switch child := newNode.arr[idx].(type) {
	case nil:
		return node, false
	case mapEntry:
		if child.keyHash != kh {
			return node, false
		}
		newNode.arr[idx] = nil
		return &newNode, true
	case *hnode:
		sub, removed := hamtDissoc(child, level+1, kh)
		if !removed {
			return node, false
		}
		newNode.arr[idx] = sub
		return &newNode, true
	default:
		return node, false
	}
}

func walkHamt(node *hnode, fn func(mapEntry)) {
	if node == nil {
		return
	}
	for _, child := range node.arr {
		switch v := child.(type) {
		case nil:
		case mapEntry:
			fn(v)
		case *hnode:
			walkHamt(v, fn)
		}
	}
}
