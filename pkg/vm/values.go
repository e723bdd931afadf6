package vm

import "github.com/latticenet/core/pkg/cell"

// Frame is one lexical scope: an ordered slot vector, read by Local(n) and
// written by Set(n).
type Frame struct {
	Slots []cell.Cell
}

// Closure is the runtime value a Lambda op produces: its parameter list,
// body, and the lexical stack captured at creation time (§4.4).
type Closure struct {
	Params   []cell.Symbol
	Body     Op
	Captured []Frame
}

func (Closure) Tag() cell.Tag       { return cell.Tag(0x4c) }
func (Closure) Refs() []cell.Ref    { return nil }
func (c Closure) Encode(dst []byte) []byte {
	panic("vm: closures are not content-addressed; they exist only within one evaluation")
}

// truthy implements the VM's truthiness convention: everything is truthy
// except the Long zero value, matching the teacher's terse "no separate
// boolean type" style seen elsewhere in the cell model.
func truthy(c cell.Cell) bool {
	if l, ok := c.(cell.Long); ok {
		return l != 0
	}
	return c != nil
}
