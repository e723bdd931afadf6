package vm

import "github.com/latticenet/core/pkg/cell"

// Op is one compiled instruction: Constant, Do, Lookup, Def, Let, Local,
// Set, Invoke, Cond, Lambda, Query, or Special (§4.4). Every Op value is
// itself a cell.Cell — compiled code is content-addressed and persists
// the same way any other value does.
type Op interface {
	cell.Cell
	opTag() byte
}

const (
	opConstant byte = 0x40
	opDo       byte = 0x41
	opLookup   byte = 0x42
	opDef      byte = 0x43
	opLet      byte = 0x44
	opLocal    byte = 0x45
	opSet      byte = 0x46
	opInvoke   byte = 0x47
	opCond     byte = 0x48
	opLambda   byte = 0x49
	opQuery    byte = 0x4a
	opSpecial  byte = 0x4b
)

// Constant evaluates to a fixed value.
type Constant struct{ Value cell.Ref }

func Const(c cell.Cell) Constant       { return Constant{Value: cell.NewRef(c)} }
func (Constant) Tag() cell.Tag         { return cell.Tag(opConstant) }
func (Constant) opTag() byte           { return opConstant }
func (c Constant) Refs() []cell.Ref    { return []cell.Ref{c.Value} }
func (c Constant) Encode(dst []byte) []byte {
	dst = append(dst, opConstant)
	return encodeOpRef(dst, c.Value)
}

// Do evaluates each op in sequence, yielding the last value.
type Do struct{ Ops []Op }

func Seq(ops ...Op) Do     { return Do{Ops: ops} }
func (Do) Tag() cell.Tag   { return cell.Tag(opDo) }
func (Do) opTag() byte     { return opDo }
func (d Do) Refs() []cell.Ref {
	out := make([]cell.Ref, len(d.Ops))
	for i, o := range d.Ops {
		out[i] = cell.NewRef(o)
	}
	return out
}
func (d Do) Encode(dst []byte) []byte {
	dst = append(dst, opDo)
	dst = cell.AppendVLC(dst, uint64(len(d.Ops)))
	for _, o := range d.Ops {
		dst = encodeOpRef(dst, cell.NewRef(o))
	}
	return dst
}

// Lookup resolves a symbol: first the current account's environment, then
// the core environment (§4.4).
type Lookup struct{ Symbol cell.Symbol }

func Sym(name string) Lookup   { return Lookup{Symbol: cell.Symbol(name)} }
func (Lookup) Tag() cell.Tag   { return cell.Tag(opLookup) }
func (Lookup) opTag() byte     { return opLookup }
func (Lookup) Refs() []cell.Ref { return nil }
func (l Lookup) Encode(dst []byte) []byte {
	dst = append(dst, opLookup)
	return l.Symbol.Encode(dst)
}

// Def installs a binding into the executing account's environment.
type Def struct {
	Symbol cell.Symbol
	Value  Op
}

func (Def) Tag() cell.Tag      { return cell.Tag(opDef) }
func (Def) opTag() byte        { return opDef }
func (d Def) Refs() []cell.Ref { return []cell.Ref{cell.NewRef(d.Value)} }
func (d Def) Encode(dst []byte) []byte {
	dst = append(dst, opDef)
	dst = d.Symbol.Encode(dst)
	return encodeOpRef(dst, cell.NewRef(d.Value))
}

// Let pushes a new lexical frame whose slots are initialised from the
// Bindings init ops (addressed by slot index; no symbol names are kept),
// evaluates Body against it, then pops the frame.
type Let struct {
	Bindings []Op
	Body     Op
}

func (Let) Tag() cell.Tag { return cell.Tag(opLet) }
func (Let) opTag() byte   { return opLet }
func (l Let) Refs() []cell.Ref {
	out := make([]cell.Ref, 0, len(l.Bindings)+1)
	for _, b := range l.Bindings {
		out = append(out, cell.NewRef(b))
	}
	return append(out, cell.NewRef(l.Body))
}
func (l Let) Encode(dst []byte) []byte {
	dst = append(dst, opLet)
	dst = cell.AppendVLC(dst, uint64(len(l.Bindings)))
	for _, b := range l.Bindings {
		dst = encodeOpRef(dst, cell.NewRef(b))
	}
	return encodeOpRef(dst, cell.NewRef(l.Body))
}

// Local reads lexical slot n from the top frame.
type Local struct{ Index int }

func (Local) Tag() cell.Tag    { return cell.Tag(opLocal) }
func (Local) opTag() byte      { return opLocal }
func (Local) Refs() []cell.Ref { return nil }
func (l Local) Encode(dst []byte) []byte {
	dst = append(dst, opLocal)
	return cell.AppendVLC(dst, uint64(l.Index))
}

// Set writes lexical slot n in the top frame.
type Set struct {
	Index int
	Value Op
}

func (Set) Tag() cell.Tag      { return cell.Tag(opSet) }
func (Set) opTag() byte        { return opSet }
func (s Set) Refs() []cell.Ref { return []cell.Ref{cell.NewRef(s.Value)} }
func (s Set) Encode(dst []byte) []byte {
	dst = append(dst, opSet)
	dst = cell.AppendVLC(dst, uint64(s.Index))
	return encodeOpRef(dst, cell.NewRef(s.Value))
}

// Invoke applies Fn to Args.
type Invoke struct {
	Fn   Op
	Args []Op
}

func Call(fn Op, args ...Op) Invoke { return Invoke{Fn: fn, Args: args} }
func (Invoke) Tag() cell.Tag        { return cell.Tag(opInvoke) }
func (Invoke) opTag() byte          { return opInvoke }
func (i Invoke) Refs() []cell.Ref {
	out := []cell.Ref{cell.NewRef(i.Fn)}
	for _, a := range i.Args {
		out = append(out, cell.NewRef(a))
	}
	return out
}
func (i Invoke) Encode(dst []byte) []byte {
	dst = append(dst, opInvoke)
	dst = encodeOpRef(dst, cell.NewRef(i.Fn))
	dst = cell.AppendVLC(dst, uint64(len(i.Args)))
	for _, a := range i.Args {
		dst = encodeOpRef(dst, cell.NewRef(a))
	}
	return dst
}

// CondClause is one (test, then) pair of a Cond.
type CondClause struct {
	Test Op
	Then Op
}

// Cond evaluates clauses in order, taking the first whose test is not nil
// (Conventionally the zero Long or an explicit nil sentinel; here "false"
// is any Long == 0, matching the teacher's terse truthiness conventions
// elsewhere absent an explicit boolean cell).
type Cond struct {
	Clauses []CondClause
	Else    Op
}

func (Cond) Tag() cell.Tag { return cell.Tag(opCond) }
func (Cond) opTag() byte   { return opCond }
func (c Cond) Refs() []cell.Ref {
	out := make([]cell.Ref, 0, len(c.Clauses)*2+1)
	for _, cl := range c.Clauses {
		out = append(out, cell.NewRef(cl.Test), cell.NewRef(cl.Then))
	}
	if c.Else != nil {
		out = append(out, cell.NewRef(c.Else))
	}
	return out
}
func (c Cond) Encode(dst []byte) []byte {
	dst = append(dst, opCond)
	dst = cell.AppendVLC(dst, uint64(len(c.Clauses)))
	for _, cl := range c.Clauses {
		dst = encodeOpRef(dst, cell.NewRef(cl.Test))
		dst = encodeOpRef(dst, cell.NewRef(cl.Then))
	}
	hasElse := byte(0)
	if c.Else != nil {
		hasElse = 1
	}
	dst = append(dst, hasElse)
	if c.Else != nil {
		dst = encodeOpRef(dst, cell.NewRef(c.Else))
	}
	return dst
}

// Lambda captures the current lexical stack alongside its parameter list
// and body, producing a closure value at evaluation time (see Closure in
// values.go).
type Lambda struct {
	Params []cell.Symbol
	Body   Op
}

func (Lambda) Tag() cell.Tag      { return cell.Tag(opLambda) }
func (Lambda) opTag() byte        { return opLambda }
func (l Lambda) Refs() []cell.Ref { return []cell.Ref{cell.NewRef(l.Body)} }
func (l Lambda) Encode(dst []byte) []byte {
	dst = append(dst, opLambda)
	dst = cell.AppendVLC(dst, uint64(len(l.Params)))
	for _, p := range l.Params {
		dst = p.Encode(dst)
	}
	return encodeOpRef(dst, cell.NewRef(l.Body))
}

// Query marks Body as read-only: any attempt to mutate World while
// evaluating it is rejected with a STATE error.
type Query struct{ Body Op }

func (Query) Tag() cell.Tag      { return cell.Tag(opQuery) }
func (Query) opTag() byte        { return opQuery }
func (q Query) Refs() []cell.Ref { return []cell.Ref{cell.NewRef(q.Body)} }
func (q Query) Encode(dst []byte) []byte {
	dst = append(dst, opQuery)
	return encodeOpRef(dst, cell.NewRef(q.Body))
}

// Special reads one of the read-only VM context symbols: *address*,
// *caller*, *origin*, *balance*, *timestamp*, *juice*, *state*,
// *sequence*.
type Special struct{ Name string }

func (Special) Tag() cell.Tag      { return cell.Tag(opSpecial) }
func (Special) opTag() byte        { return opSpecial }
func (Special) Refs() []cell.Ref   { return nil }
func (s Special) Encode(dst []byte) []byte {
	dst = append(dst, opSpecial)
	return cell.String(s.Name).Encode(dst)
}

// encodeOpRef writes an Op as an embedded ref: the 0x01 embedded marker
// followed by the op's encoding. No size threshold is applied; an op is
// inlined whatever its encoded size.
func encodeOpRef(dst []byte, r cell.Ref) []byte {
	dst = append(dst, 0x01)
	v, _ := r.Value()
	return v.Encode(dst)
}
