package vm

import (
	"github.com/latticenet/core/pkg/cell"
	"github.com/latticenet/core/pkg/state"
)

// invokePrimitive dispatches a core-environment symbol against args, or
// installs a control-flow exit on ctx (halt, return, recur, tailcall)
// rather than returning a value directly (§4.4).
func invokePrimitive(name string, args []cell.Cell, ctx *Context) cell.Cell {
	if cost, ok := primitiveCost[name]; ok && name != "halt" && name != "return" && name != "recur" && name != "tailcall" {
		if err := ctx.spend(cost); err != nil {
			ctx.Err = err
			return nil
		}
	}

	switch name {
	case "+":
		return foldLong(name, args, ctx, 0, func(a, b int64) int64 { return a + b })
	case "*":
		return foldLong(name, args, ctx, 1, func(a, b int64) int64 { return a * b })
	case "-":
		ns, ok := longs(name, args, ctx)
		if !ok {
			return nil
		}
		if len(ns) == 0 {
			ctx.Err = errf(KindArgument, "%s requires at least one argument", name)
			return nil
		}
		if len(ns) == 1 {
			return cell.Long(-ns[0])
		}
		out := ns[0]
		for _, n := range ns[1:] {
			out -= n
		}
		return cell.Long(out)
	case "/":
		ns, ok := longs(name, args, ctx)
		if !ok {
			return nil
		}
		if len(ns) < 2 {
			ctx.Err = errf(KindArgument, "%s requires at least two arguments", name)
			return nil
		}
		out := ns[0]
		for _, n := range ns[1:] {
			if n == 0 {
				ctx.Err = errf(KindArgument, "division by zero")
				return nil
			}
			out /= n
		}
		return cell.Long(out)
	case "mod":
		ns, ok := longs(name, args, ctx)
		if !ok {
			return nil
		}
		if len(ns) != 2 {
			ctx.Err = errf(KindArgument, "mod requires exactly two arguments")
			return nil
		}
		if ns[1] == 0 {
			ctx.Err = errf(KindArgument, "modulo by zero")
			return nil
		}
		return cell.Long(ns[0] % ns[1])

	case "=":
		if len(args) < 2 {
			ctx.Err = errf(KindArgument, "= requires at least two arguments")
			return nil
		}
		for i := 1; i < len(args); i++ {
			if !cell.Equal(args[0], args[i]) {
				return cell.Long(0)
			}
		}
		return cell.Long(1)
	case "<", ">", "<=", ">=":
		ns, ok := longs(name, args, ctx)
		if !ok {
			return nil
		}
		if len(ns) < 2 {
			ctx.Err = errf(KindArgument, "%s requires at least two arguments", name)
			return nil
		}
		for i := 1; i < len(ns); i++ {
			cmp := false
			switch name {
			case "<":
				cmp = ns[i-1] < ns[i]
			case ">":
				cmp = ns[i-1] > ns[i]
			case "<=":
				cmp = ns[i-1] <= ns[i]
			case ">=":
				cmp = ns[i-1] >= ns[i]
			}
			if !cmp {
				return cell.Long(0)
			}
		}
		return cell.Long(1)

	case "not":
		if len(args) != 1 {
			ctx.Err = errf(KindArgument, "not requires exactly one argument")
			return nil
		}
		if truthy(args[0]) {
			return cell.Long(0)
		}
		return cell.Long(1)
	case "and":
		var last cell.Cell = cell.Long(1)
		for _, a := range args {
			if !truthy(a) {
				return cell.Long(0)
			}
			last = a
		}
		return last
	case "or":
		for _, a := range args {
			if truthy(a) {
				return a
			}
		}
		return cell.Long(0)

	case "balance":
		addr := ctx.address
		if len(args) == 1 {
			a, ok := args[0].(cell.Address)
			if !ok {
				ctx.Err = errf(KindCast, "balance expects an address argument")
				return nil
			}
			addr = a
		}
		acct, ok := ctx.World.GetAccount(addr)
		if !ok {
			return cell.Long(0)
		}
		return cell.Long(acct.Balance)
	case "account?":
		if len(args) != 1 {
			ctx.Err = errf(KindArgument, "account? requires exactly one argument")
			return nil
		}
		addr, ok := args[0].(cell.Address)
		if !ok {
			return cell.Long(0)
		}
		if _, ok := ctx.World.GetAccount(addr); ok {
			return cell.Long(1)
		}
		return cell.Long(0)

	case "transfer":
		return primitiveTransfer(args, ctx)

	case "halt":
		var v cell.Cell
		if len(args) > 0 {
			v = args[0]
		}
		ctx.exit = &exitSignal{Kind: "HALT", Value: v}
		return nil
	case "return":
		var v cell.Cell
		if len(args) > 0 {
			v = args[0]
		}
		ctx.exit = &exitSignal{Kind: "RETURN", Value: v}
		return nil
	case "recur", "tailcall":
		if len(ctx.closureStack) == 0 {
			ctx.Err = errf(KindArgument, "%s used outside of a closure", name)
			return nil
		}
		ctx.exit = &exitSignal{Kind: ErrorKind(upper(name)), recurArgs: args}
		return nil

	default:
		ctx.Err = errf(KindUndeclared, "unknown primitive: %s", name)
		return nil
	}
}

func upper(s string) string {
	if s == "recur" {
		return "RECUR"
	}
	return "TAILCALL"
}

// primitiveTransfer moves amount Copper from the executing account to dest,
// atomically: either both balances update or neither does (§4.4).
func primitiveTransfer(args []cell.Cell, ctx *Context) cell.Cell {
	if ctx.readOnly {
		ctx.Err = errf(KindState, "transfer not permitted in a read-only query")
		return nil
	}
	if len(args) != 2 {
		ctx.Err = errf(KindArgument, "transfer requires exactly two arguments: dest, amount")
		return nil
	}
	dest, ok := args[0].(cell.Address)
	if !ok {
		ctx.Err = errf(KindCast, "transfer: first argument must be an address")
		return nil
	}
	amount, ok := args[1].(cell.Long)
	if !ok {
		ctx.Err = errf(KindCast, "transfer: second argument must be a number")
		return nil
	}
	if amount < 0 {
		ctx.Err = errf(KindArgument, "transfer: amount must be non-negative")
		return nil
	}

	source, ok := ctx.World.GetAccount(ctx.address)
	if !ok {
		ctx.Err = errf(KindNobody, "account %s not found", ctx.address)
		return nil
	}
	if source.Balance < int64(amount) {
		ctx.Err = errf(KindFunds, "insufficient balance: have %d, need %d", source.Balance, int64(amount))
		return nil
	}
	destAcct, ok := ctx.World.GetAccount(dest)
	if !ok {
		destAcct = state.NewAccount(dest)
	}

	source = source.WithBalance(source.Balance - int64(amount))
	destAcct = destAcct.WithBalance(destAcct.Balance + int64(amount))

	ctx.World = ctx.World.PutAccount(source).PutAccount(destAcct)
	return cell.Long(1)
}

func longs(name string, args []cell.Cell, ctx *Context) ([]int64, bool) {
	out := make([]int64, len(args))
	for i, a := range args {
		l, ok := a.(cell.Long)
		if !ok {
			ctx.Err = errf(KindCast, "%s: argument %d is not a number", name, i)
			return nil, false
		}
		out[i] = int64(l)
	}
	return out, true
}

func foldLong(name string, args []cell.Cell, ctx *Context, identity int64, f func(a, b int64) int64) cell.Cell {
	ns, ok := longs(name, args, ctx)
	if !ok {
		return nil
	}
	out := identity
	for _, n := range ns {
		out = f(out, n)
	}
	return cell.Long(out)
}
