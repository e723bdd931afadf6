package vm

import (
	"github.com/latticenet/core/pkg/cell"
	"github.com/latticenet/core/pkg/state"
)

// Context is the result of one VM evaluation: the (possibly mutated)
// World, either a value or a typed error, and remaining juice. The Trace
// field is never filled in by the evaluator: it is empty after success and
// after failure alike.
type Context struct {
	World     state.World
	Value     cell.Cell
	Err       *VMError
	Juice     int64
	JuiceUsed int64
	Trace     []string

	// caller identity context, read by Special ops.
	address   cell.Address
	caller    cell.Address
	origin    cell.Address
	timestamp int64
	sequence  int64
	readOnly  bool

	stack        []Frame
	exit         *exitSignal
	closureStack []Closure
}

// Failed reports whether evaluation ended in a user-visible error (as
// opposed to success or an internal control-flow exit already resolved by
// the evaluator).
func (c *Context) Failed() bool { return c.Err != nil }

func (c *Context) pushFrame(f Frame) { c.stack = append(c.stack, f) }
func (c *Context) popFrame()         { c.stack = c.stack[:len(c.stack)-1] }
func (c *Context) top() *Frame       { return &c.stack[len(c.stack)-1] }

// spend deducts n juice, returning a JUICE error if n is equal to or
// greater than the remaining budget, i.e. whenever the deduction would
// leave juice at zero or below (§4.4: "on juice <= 0 the transaction
// aborts"). Juice
// never goes negative and JuiceUsed never exceeds the budget it started
// from: an op that can't be fully afforded consumes only what remains,
// not its full cost.
func (c *Context) spend(n int64) *VMError {
	if n >= c.Juice {
		c.JuiceUsed += c.Juice
		c.Juice = 0
		return errf(KindJuice, "juice exhausted")
	}
	c.Juice -= n
	c.JuiceUsed += n
	return nil
}

func (c *Context) trace(desc string) {
	c.Trace = append(c.Trace, desc)
}
