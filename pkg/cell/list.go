package cell

// List is a cons-list used as syntax: structurally a Vector, distinguished
// only at the syntactic/evaluation layer (§3) and by its own tag so a
// reader round-trips List vs Vector faithfully.
type List struct {
	v Vector
}

var EmptyList = List{v: EmptyVector}

func NewList(cells ...Cell) List {
	return List{v: NewVector(cells...)}
}

func (List) Tag() Tag { return TagList }

func (l List) Count() int         { return l.v.Count() }
func (l List) Get(i int) Ref      { return l.v.Get(i) }
func (l List) Vector() Vector     { return l.v }
func (l List) Cons(x Ref) List    { return List{v: NewVector().Append(x).Concat(l.v)} }
func (l List) Rest() List         { return List{v: l.v.Next()} }
func (l List) Refs() []Ref        { return l.v.Refs() }
func (l List) Encode(dst []byte) []byte {
	dst = append(dst, byte(TagList))
	dst = putVLC(dst, uint64(l.v.Count()))
	for i := 0; i < l.v.Count(); i++ {
		dst = encodeRef(dst, l.v.Get(i))
	}
	return dst
}

func decodeList(body []byte) (List, int, error) {
	v, n, err := decodeVector(body)
	if err != nil {
		return List{}, 0, err
	}
	return List{v: v}, n, nil
}
