package state

import "github.com/latticenet/core/pkg/cell"

// World is the complete state the VM executes transactions and scheduled
// calls against. Every field is an immutable cell.Map, so World is itself
// structurally a Cell: two peers that applied identical blocks from
// identical genesis states produce byte-identical World encodings (§8
// property 7, determinism).
type World struct {
	Accounts cell.Map // cell.Address -> Account
	Peers    cell.Map // cell.Address -> PeerStatus
	Globals  cell.Map // Symbol -> value, the core environment's overrides
	Schedule cell.Map // Long (timestamp) -> Vector of SignedData<Transaction>

	// Timestamp is the timestamp of the block that produced this state
	// (or the genesis timestamp for the initial state).
	Timestamp int64
}

func (World) Tag() cell.Tag { return cell.TagWorldState }

func (w World) Encode(dst []byte) []byte {
	dst = append(dst, byte(cell.TagWorldState))
	dst = cell.AppendVLCSigned(dst, w.Timestamp)
	dst = w.Accounts.Encode(dst)
	dst = w.Peers.Encode(dst)
	dst = w.Globals.Encode(dst)
	return w.Schedule.Encode(dst)
}

func (w World) Refs() []cell.Ref {
	return []cell.Ref{cell.NewRef(w.Accounts), cell.NewRef(w.Peers), cell.NewRef(w.Globals), cell.NewRef(w.Schedule)}
}

func decodeWorld(body []byte) (World, int, error) {
	ts, off, err := cell.ReadVLCSigned(body)
	if err != nil {
		return World{}, 0, err
	}
	accounts, n, err := decodeEmbeddedMap(body[off:])
	if err != nil {
		return World{}, 0, err
	}
	off += n
	peers, n, err := decodeEmbeddedMap(body[off:])
	if err != nil {
		return World{}, 0, err
	}
	off += n
	globals, n, err := decodeEmbeddedMap(body[off:])
	if err != nil {
		return World{}, 0, err
	}
	off += n
	schedule, n, err := decodeEmbeddedMap(body[off:])
	if err != nil {
		return World{}, 0, err
	}
	off += n
	return World{Accounts: accounts, Peers: peers, Globals: globals, Schedule: schedule, Timestamp: ts}, off, nil
}

// GetAccount returns the account at addr, or (zero-value, false).
func (w World) GetAccount(addr cell.Address) (Account, bool) {
	ref, ok := w.Accounts.Get(addr)
	if !ok {
		return Account{}, false
	}
	v, _ := ref.Value()
	return v.(Account), true
}

// PutAccount returns a copy of w with acct stored under its address.
func (w World) PutAccount(acct Account) World {
	w.Accounts = w.Accounts.Assoc(acct.Address, acct)
	return w
}

// GetPeer returns the peer registration at addr, or (zero-value, false).
func (w World) GetPeer(addr cell.Address) (PeerStatus, bool) {
	ref, ok := w.Peers.Get(addr)
	if !ok {
		return PeerStatus{}, false
	}
	v, _ := ref.Value()
	return v.(PeerStatus), true
}

// PutPeer returns a copy of w with p stored under its owner address.
func (w World) PutPeer(p PeerStatus) World {
	w.Peers = w.Peers.Assoc(p.Owner, p)
	return w
}

// totalStakeInt64 sums OwnStake + delegated stake across every registered
// peer, in the signed accounting-native unit.
func (w World) totalStakeInt64() int64 {
	var total int64
	vals := w.Peers.Values()
	for i := 0; i < vals.Count(); i++ {
		v, _ := vals.Get(i).Value()
		total += v.(PeerStatus).TotalStake()
	}
	return total
}

// Stake implements consensus.StakeTable: it reports the stake registered
// for an AccountKey, resolving it to an Address the same way peer keys are
// derived (§4.3, AddressFromAccountKey).
func (w World) Stake(peerKey cell.AccountKey) (uint64, bool) {
	p, ok := w.GetPeer(cell.AddressFromAccountKey(peerKey))
	if !ok {
		return 0, false
	}
	return uint64(p.TotalStake()), true
}

// TotalStake implements consensus.StakeTable.
func (w World) TotalStake() uint64 { return uint64(w.totalStakeInt64()) }
