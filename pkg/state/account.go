package state

import "github.com/latticenet/core/pkg/cell"

// Account is the per-address record the VM reads and mutates. Balance is
// denominated in Copper (§6). Environment holds the account's installed
// symbol bindings (def'd values, including deployed actor code); Sequence
// is the sequence number of the last transaction applied from this
// account, and the next one must carry Sequence+1, enforced strictly
// (§4.4) to prevent replay.
type Account struct {
	Address     cell.Address
	Balance     int64
	Sequence    int64
	Environment cell.Map // Symbol -> value
	Metadata    cell.Map // arbitrary account-level key/value data
	Controller  cell.Address
	Holdings    cell.Map // Address -> Long, for actor-held balances of other assets
}

// NewAccount returns a fresh, zero-balance account controlled by itself.
func NewAccount(addr cell.Address) Account {
	return Account{
		Address:     addr,
		Environment: cell.EmptyMap,
		Metadata:    cell.EmptyMap,
		Controller:  addr,
		Holdings:    cell.EmptyMap,
	}
}

// Lookup resolves a symbol against this account's environment. ok is false
// if the symbol has no binding here (the caller falls through to the core
// environment).
func (a Account) Lookup(sym cell.Symbol) (cell.Cell, bool) {
	ref, ok := a.Environment.Get(sym)
	if !ok {
		return nil, false
	}
	v, _ := ref.Value()
	return v, true
}

// Def returns a copy of the account with sym bound to value.
func (a Account) Def(sym cell.Symbol, value cell.Cell) Account {
	a.Environment = a.Environment.Assoc(sym, value)
	return a
}

// WithBalance returns a copy of the account with its balance replaced.
func (a Account) WithBalance(balance int64) Account {
	a.Balance = balance
	return a
}

// WithSequence returns a copy of the account with its sequence replaced.
func (a Account) WithSequence(seq int64) Account {
	a.Sequence = seq
	return a
}

func (Account) Tag() cell.Tag { return cell.TagAccount }

func (a Account) Encode(dst []byte) []byte {
	dst = append(dst, byte(cell.TagAccount))
	dst = append(dst, a.Address[:]...)
	dst = cell.AppendVLCSigned(dst, a.Balance)
	dst = cell.AppendVLCSigned(dst, a.Sequence)
	dst = a.Environment.Encode(dst)
	dst = a.Metadata.Encode(dst)
	dst = append(dst, a.Controller[:]...)
	return a.Holdings.Encode(dst)
}

func (a Account) Refs() []cell.Ref {
	return []cell.Ref{cell.NewRef(a.Environment), cell.NewRef(a.Metadata), cell.NewRef(a.Holdings)}
}

func decodeAccount(body []byte) (Account, int, error) {
	if len(body) < 32 {
		return Account{}, 0, cell.ErrTruncated{What: "account address"}
	}
	var addr cell.Address
	copy(addr[:], body[:32])
	off := 32

	balance, n, err := cell.ReadVLCSigned(body[off:])
	if err != nil {
		return Account{}, 0, err
	}
	off += n

	seq, n, err := cell.ReadVLCSigned(body[off:])
	if err != nil {
		return Account{}, 0, err
	}
	off += n

	env, n, err := decodeEmbeddedMap(body[off:])
	if err != nil {
		return Account{}, 0, err
	}
	off += n

	meta, n, err := decodeEmbeddedMap(body[off:])
	if err != nil {
		return Account{}, 0, err
	}
	off += n

	if len(body) < off+32 {
		return Account{}, 0, cell.ErrTruncated{What: "account controller"}
	}
	var controller cell.Address
	copy(controller[:], body[off:off+32])
	off += 32

	holdings, n, err := decodeEmbeddedMap(body[off:])
	if err != nil {
		return Account{}, 0, err
	}
	off += n

	return Account{
		Address: addr, Balance: balance, Sequence: seq,
		Environment: env, Metadata: meta, Controller: controller, Holdings: holdings,
	}, off, nil
}

// decodeEmbeddedMap decodes a Map cell written directly (tag included) as
// an account sub-field, rather than through a Ref wrapper.
func decodeEmbeddedMap(body []byte) (cell.Map, int, error) {
	c, n, err := cell.Decode(body)
	if err != nil {
		return cell.Map{}, 0, err
	}
	m, ok := c.(cell.Map)
	if !ok {
		return cell.Map{}, 0, cell.ErrTruncated{What: "expected map"}
	}
	return m, n, nil
}
