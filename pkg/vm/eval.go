package vm

import "github.com/latticenet/core/pkg/cell"

// exitSignal carries a non-local exit (HALT, RECUR, RETURN, TAILCALL)
// through the evaluator (§4.4, §9 design notes: modeled as a tagged
// variant inspected after every Op rather than a language-level panic).
type exitSignal struct {
	Kind      ErrorKind
	Value     cell.Cell
	recurArgs []cell.Cell
}

// Eval executes op against ctx, returning the resulting value. On a typed
// error ctx.Err records the outcome; on a HALT exit the halt value is held
// in the context's pending exit signal (Eval does not set ctx.Value). In
// both cases the caller should stop walking the enclosing Do/transaction.
func Eval(op Op, ctx *Context) cell.Cell {
	if ctx.Err != nil {
		return nil
	}
	if err := ctx.spend(opCost); err != nil {
		ctx.Err = err
		return nil
	}

	switch o := op.(type) {
	case Constant:
		v, _ := o.Value.Value()
		return v

	case Do:
		var last cell.Cell
		for _, sub := range o.Ops {
			last = Eval(sub, ctx)
			if ctx.Err != nil || ctx.exit != nil {
				return last
			}
		}
		return last

	case Lookup:
		return evalLookup(o, ctx)

	case Def:
		v := Eval(o.Value, ctx)
		if ctx.Err != nil {
			return nil
		}
		if ctx.readOnly {
			ctx.Err = errf(KindState, "def not permitted in a read-only query")
			return nil
		}
		acct, ok := ctx.World.GetAccount(ctx.address)
		if !ok {
			ctx.Err = errf(KindNobody, "account %s not found", ctx.address)
			return nil
		}
		ctx.World = ctx.World.PutAccount(acct.Def(o.Symbol, v))
		return v

	case Let:
		frame := Frame{Slots: make([]cell.Cell, len(o.Bindings))}
		ctx.pushFrame(frame)
		for i, b := range o.Bindings {
			v := Eval(b, ctx)
			if ctx.Err != nil || ctx.exit != nil {
				ctx.popFrame()
				return v
			}
			ctx.top().Slots[i] = v
		}
		v := Eval(o.Body, ctx)
		ctx.popFrame()
		return v

	case Local:
		f := ctx.top()
		if o.Index < 0 || o.Index >= len(f.Slots) {
			ctx.Err = errf(KindArgument, "local slot %d out of range", o.Index)
			return nil
		}
		return f.Slots[o.Index]

	case Set:
		v := Eval(o.Value, ctx)
		if ctx.Err != nil || ctx.exit != nil {
			return v
		}
		f := ctx.top()
		if o.Index < 0 || o.Index >= len(f.Slots) {
			ctx.Err = errf(KindArgument, "local slot %d out of range", o.Index)
			return nil
		}
		f.Slots[o.Index] = v
		return v

	case Invoke:
		return evalInvoke(o, ctx)

	case Cond:
		for _, cl := range o.Clauses {
			test := Eval(cl.Test, ctx)
			if ctx.Err != nil || ctx.exit != nil {
				return test
			}
			if truthy(test) {
				return Eval(cl.Then, ctx)
			}
		}
		if o.Else != nil {
			return Eval(o.Else, ctx)
		}
		return nil

	case Lambda:
		captured := make([]Frame, len(ctx.stack))
		copy(captured, ctx.stack)
		return Closure{Params: o.Params, Body: o.Body, Captured: captured}

	case Query:
		prev := ctx.readOnly
		ctx.readOnly = true
		v := Eval(o.Body, ctx)
		ctx.readOnly = prev
		return v

	case Special:
		return evalSpecial(o, ctx)

	default:
		ctx.Err = errf(KindArgument, "unknown op %T", op)
		return nil
	}
}

func evalLookup(o Lookup, ctx *Context) cell.Cell {
	if acct, ok := ctx.World.GetAccount(ctx.address); ok {
		if v, ok := acct.Lookup(o.Symbol); ok {
			return v
		}
	}
	if ref, ok := ctx.World.Globals.Get(o.Symbol); ok {
		v, _ := ref.Value()
		return v
	}
	if _, ok := primitiveCost[string(o.Symbol)]; ok {
		return o.Symbol
	}
	ctx.Err = errf(KindUndeclared, "undeclared symbol: %s", o.Symbol)
	return nil
}

func evalSpecial(o Special, ctx *Context) cell.Cell {
	switch o.Name {
	case "*address*":
		return ctx.address
	case "*caller*":
		return ctx.caller
	case "*origin*":
		return ctx.origin
	case "*balance*":
		acct, ok := ctx.World.GetAccount(ctx.address)
		if !ok {
			ctx.Err = errf(KindNobody, "account %s not found", ctx.address)
			return nil
		}
		return cell.Long(acct.Balance)
	case "*timestamp*":
		return cell.Long(ctx.timestamp)
	case "*juice*":
		return cell.Long(ctx.Juice)
	case "*state*":
		return ctx.World
	case "*sequence*":
		return cell.Long(ctx.sequence)
	default:
		ctx.Err = errf(KindUndeclared, "unknown special symbol: %s", o.Name)
		return nil
	}
}

func evalInvoke(o Invoke, ctx *Context) cell.Cell {
	fn := Eval(o.Fn, ctx)
	if ctx.Err != nil || ctx.exit != nil {
		return fn
	}
	args := make([]cell.Cell, len(o.Args))
	for i, a := range o.Args {
		args[i] = Eval(a, ctx)
		if ctx.Err != nil || ctx.exit != nil {
			return nil
		}
	}

	switch f := fn.(type) {
	case cell.Symbol:
		return invokePrimitive(string(f), args, ctx)
	case Closure:
		return invokeClosure(f, args, ctx)
	default:
		ctx.Err = errf(KindCast, "value is not callable: %T", fn)
		return nil
	}
}

func invokeClosure(f Closure, args []cell.Cell, ctx *Context) cell.Cell {
	if len(args) != len(f.Params) {
		ctx.Err = errf(KindArgument, "closure expects %d args, got %d", len(f.Params), len(args))
		return nil
	}
	savedStack := ctx.stack
	ctx.stack = append(append([]Frame{}, f.Captured...), Frame{Slots: args})
	ctx.closureStack = append(ctx.closureStack, f)

restart:
	v := Eval(f.Body, ctx)

	if ctx.exit != nil {
		switch ctx.exit.Kind {
		case "RETURN":
			v = ctx.exit.Value
			ctx.exit = nil
		case "RECUR", "TAILCALL":
			newArgs := ctx.exit.recurArgs
			ctx.exit = nil
			if len(newArgs) != len(f.Params) {
				ctx.Err = errf(KindArgument, "recur expects %d args, got %d", len(f.Params), len(newArgs))
				break
			}
			ctx.stack = append(append([]Frame{}, f.Captured...), Frame{Slots: newArgs})
			goto restart
		}
	}
	ctx.closureStack = ctx.closureStack[:len(ctx.closureStack)-1]
	ctx.stack = savedStack
	return v
}
