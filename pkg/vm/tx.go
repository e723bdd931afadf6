package vm

import (
	"fmt"

	"github.com/latticenet/core/pkg/cell"
	"github.com/latticenet/core/pkg/consensus"
	"github.com/latticenet/core/pkg/crypto"
	"github.com/latticenet/core/pkg/state"
)

func init() {
	cell.RegisterTag(cell.TagTransaction, func(body []byte) (cell.Cell, int, error) {
		return decodeTransaction(body)
	})
}

// TxKind distinguishes the three transaction shapes named by the
// application layer: a raw bytecode invocation, an atomic balance
// transfer, and a named actor-function call (§4.4).
type TxKind byte

const (
	TxInvoke TxKind = iota
	TxTransfer
	TxCall
)

// Transaction is one signed unit of work against an Address's account,
// carrying a strictly-increasing sequence number (§4.4). Exactly one of
// the kind-specific fields is meaningful, selected by Kind.
type Transaction struct {
	Address  cell.Address
	Sequence int64
	Kind     TxKind

	// TxInvoke
	Op Op

	// TxTransfer
	Target cell.Address
	Amount int64

	// TxCall
	CallTarget cell.Address
	CallFn     cell.Symbol
	CallArgs   cell.Vector
}

func (Transaction) Tag() cell.Tag { return cell.TagTransaction }

func (t Transaction) Encode(dst []byte) []byte {
	dst = append(dst, byte(cell.TagTransaction))
	dst = append(dst, t.Address[:]...)
	dst = cell.AppendVLCSigned(dst, t.Sequence)
	dst = append(dst, byte(t.Kind))
	switch t.Kind {
	case TxInvoke:
		dst = encodeOpRef(dst, cell.NewRef(t.Op))
	case TxTransfer:
		dst = append(dst, t.Target[:]...)
		dst = cell.AppendVLCSigned(dst, t.Amount)
	case TxCall:
		dst = append(dst, t.CallTarget[:]...)
		dst = t.CallFn.Encode(dst)
		dst = t.CallArgs.Encode(dst)
	}
	return dst
}

func (t Transaction) Refs() []cell.Ref {
	switch t.Kind {
	case TxInvoke:
		return []cell.Ref{cell.NewRef(t.Op)}
	case TxCall:
		return []cell.Ref{cell.NewRef(t.CallArgs)}
	default:
		return nil
	}
}

// decodeTransaction decodes every shape except TxInvoke's embedded Op:
// compiled bytecode is constructed in-process via the Const/Seq/Sym/Call
// helpers and is never wire-decoded (no Op tag is registered in the
// 0x40-0x4b range), so a TxInvoke transaction only round-trips within the
// process that built it.
func decodeTransaction(body []byte) (Transaction, int, error) {
	if len(body) < 32 {
		return Transaction{}, 0, cell.ErrTruncated{What: "transaction address"}
	}
	var addr cell.Address
	copy(addr[:], body[:32])
	off := 32

	seq, n, err := cell.ReadVLCSigned(body[off:])
	if err != nil {
		return Transaction{}, 0, err
	}
	off += n

	if len(body) < off+1 {
		return Transaction{}, 0, cell.ErrTruncated{What: "transaction kind"}
	}
	kind := TxKind(body[off])
	off++

	t := Transaction{Address: addr, Sequence: seq, Kind: kind}
	switch kind {
	case TxInvoke:
		return Transaction{}, 0, fmt.Errorf("vm: invoke transactions do not support wire decode")
	case TxTransfer:
		if len(body) < off+32 {
			return Transaction{}, 0, cell.ErrTruncated{What: "transfer target"}
		}
		copy(t.Target[:], body[off:off+32])
		off += 32
		amount, n, err := cell.ReadVLCSigned(body[off:])
		if err != nil {
			return Transaction{}, 0, err
		}
		off += n
		t.Amount = amount
	case TxCall:
		if len(body) < off+32 {
			return Transaction{}, 0, cell.ErrTruncated{What: "call target"}
		}
		copy(t.CallTarget[:], body[off:off+32])
		off += 32
		fnC, n, err := cell.Decode(body[off:])
		if err != nil {
			return Transaction{}, 0, err
		}
		off += n
		fn, ok := fnC.(cell.Symbol)
		if !ok {
			return Transaction{}, 0, fmt.Errorf("vm: call transaction function is not a symbol")
		}
		t.CallFn = fn
		args, n, err := cell.DecodeVector(body[off:])
		if err != nil {
			return Transaction{}, 0, err
		}
		off += n
		t.CallArgs = args
	default:
		return Transaction{}, 0, fmt.Errorf("vm: unknown transaction kind %d", kind)
	}
	return t, off, nil
}

// asOp compiles a transaction into the Op tree Eval actually runs:
// TxInvoke's op as-is, TxTransfer as a call to the transfer primitive,
// TxCall as a lookup-and-invoke against the target's environment.
func (t Transaction) asOp() Op {
	switch t.Kind {
	case TxInvoke:
		return t.Op
	case TxTransfer:
		return Call(Sym("transfer"), Const(t.Target), Const(cell.Long(t.Amount)))
	case TxCall:
		args := make([]Op, t.CallArgs.Count())
		for i := range args {
			v, _ := t.CallArgs.Get(i).Value()
			args[i] = Const(v)
		}
		return Call(Sym(string(t.CallFn)), args...)
	default:
		return Const(cell.Long(0))
	}
}

// ApplyTransaction runs one signed transaction against world, returning the
// (possibly unchanged) post-state and its TxResult. A bad signature, a
// missing signer account, or a sequence mismatch are rejected before the VM
// runs at all and do not charge juice (§4.4); everything past that point is
// charged and recorded even on failure.
func ApplyTransaction(world state.World, signed cell.SignedData, timestamp int64, res cell.Resolver) (state.World, state.TxResult) {
	unverified := crypto.WrapUnverified[Transaction](signed)
	verified, err := crypto.VerifySigned[Transaction](unverified, res)
	if err != nil {
		return world, state.TxResult{ErrorKind: string(KindTrust), ErrorMessage: err.Error()}
	}
	tx := verified.Value()
	signer := verified.Signer()
	addr := cell.AddressFromAccountKey(signer)
	if addr != tx.Address {
		return world, state.TxResult{ErrorKind: string(KindTrust), ErrorMessage: "transaction signer does not match its address"}
	}

	acct, ok := world.GetAccount(addr)
	if !ok {
		return world, state.TxResult{ErrorKind: string(KindNobody), ErrorMessage: fmt.Sprintf("account %s not found", addr)}
	}
	if tx.Sequence != acct.Sequence+1 {
		return world, state.TxResult{ErrorKind: string(KindSequence), ErrorMessage: fmt.Sprintf("expected sequence %d, got %d", acct.Sequence+1, tx.Sequence)}
	}

	budget := InitialBudget(acct.Balance)
	acct = acct.WithSequence(tx.Sequence)
	preBalance := acct.Balance
	world = world.PutAccount(acct)

	ctx := &Context{
		World:     world,
		Juice:     budget,
		address:   addr,
		caller:    addr,
		origin:    addr,
		timestamp: timestamp,
		sequence:  tx.Sequence,
	}
	v := Eval(tx.asOp(), ctx)

	juiceUsed := budget - ctx.Juice
	if ctx.Juice <= 0 && ctx.Err == nil {
		ctx.Err = errf(KindJuice, "juice exhausted")
	}

	if ctx.exit != nil && ctx.exit.Kind == "HALT" {
		ctx.Err = nil
	}

	// A Closure isn't content-addressable (Encode panics: §4.4 closures
	// exist only within one evaluation) and can't be stored as a result,
	// so surface it as a typed failure instead of letting it reach
	// cell.NewRef below.
	if ctx.Err == nil {
		if _, isClosure := v.(Closure); isClosure {
			ctx.Err = errf(KindCast, "transaction result is a closure and cannot be stored")
		}
	}

	if ctx.Err != nil {
		// Revert every state mutation except the sequence bump and juice
		// charge already applied to the pre-evaluation account (§4.4).
		reverted, _ := world.GetAccount(addr)
		reverted = reverted.WithBalance(preBalance - juiceUsed*JuicePrice)
		postState := world.PutAccount(reverted)
		return postState, state.TxResult{ErrorKind: string(ctx.Err.Kind), ErrorMessage: ctx.Err.Message, JuiceUsed: juiceUsed}
	}

	// Success: the signer is refunded unspent juice at the same price it
	// was charged, so only consumed juice leaves the balance net of any
	// transfers the op itself performed.
	finalAcct, _ := ctx.World.GetAccount(addr)
	finalAcct = finalAcct.WithBalance(finalAcct.Balance - juiceUsed*JuicePrice)
	postState := ctx.World.PutAccount(finalAcct)

	result := state.TxResult{JuiceUsed: juiceUsed}
	if v != nil {
		result.Value = cell.NewRef(v)
	} else {
		result.Value = cell.NewRef(cell.Long(0))
	}
	return postState, result
}

// ApplyBlock executes every transaction in a block in order, then the
// scheduled calls due at or before the block's timestamp, yielding the
// full BlockResult (§4.4, §8 scheduling).
func ApplyBlock(world state.World, block consensus.Block, res cell.Resolver) state.BlockResult {
	results := make([]state.TxResult, 0, block.Transactions.Count())
	for i := 0; i < block.Transactions.Count(); i++ {
		v, _ := block.Transactions.Get(i).Value()
		signed := v.(cell.SignedData)
		var tr state.TxResult
		world, tr = ApplyTransaction(world, signed, block.Timestamp, res)
		results = append(results, tr)
	}
	world = runSchedule(world, block.Timestamp, res)
	world.Timestamp = block.Timestamp
	return state.BlockResult{PostState: world, TxResults: results}
}

// runSchedule executes every scheduled-call entry whose timestamp is at or
// before `now`, in timestamp order, removing them from World.Schedule as it
// goes (§8).
func runSchedule(world state.World, now int64, res cell.Resolver) state.World {
	keys := world.Schedule.Keys()
	var due []int64
	for i := 0; i < keys.Count(); i++ {
		v, _ := keys.Get(i).Value()
		ts := int64(v.(cell.Long))
		if ts <= now {
			due = append(due, ts)
		}
	}
	sortInt64s(due)
	for _, ts := range due {
		ref, ok := world.Schedule.Get(cell.Long(ts))
		if !ok {
			continue
		}
		v, _ := ref.Value()
		entries := v.(cell.Vector)
		for i := 0; i < entries.Count(); i++ {
			ev, _ := entries.Get(i).Value()
			signed := ev.(cell.SignedData)
			world, _ = ApplyTransaction(world, signed, now, res)
		}
		world.Schedule = world.Schedule.Dissoc(cell.Long(ts))
	}
	return world
}

func sortInt64s(s []int64) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
