// Package peer implements the peer-local state machine (§4.7): it drives
// belief merges, advances consensus, replays newly-finalized blocks through
// the VM, and answers read-only queries against the latest state.
package peer

import (
	"fmt"

	"github.com/latticenet/core/pkg/cell"
	"github.com/latticenet/core/pkg/consensus"
	"github.com/latticenet/core/pkg/crypto"
	"github.com/latticenet/core/pkg/state"
	"github.com/latticenet/core/pkg/store"
	"github.com/latticenet/core/pkg/vm"
)

// Peer is the immutable per-node state machine value: every operation
// below returns a new Peer rather than mutating in place (§4.7, §5).
type Peer struct {
	KeyPair *crypto.KeyPair
	Belief  consensus.Belief

	// States holds every consensus-applied world state from genesis
	// through the latest, aligned index-for-index with Results.
	States  []state.World
	Results []state.BlockResult

	LastTimestamp int64
}

// Create builds the Peer a fresh node starts as: a Belief holding a single,
// self-signed empty Order, and a single genesis State (§4.7 "create").
func Create(kp *crypto.KeyPair, genesis state.World) Peer {
	ourKey := kp.AccountKey()
	signed := kp.SignCell(consensus.EmptyOrder)
	return Peer{
		KeyPair:       kp,
		Belief:        consensus.NewBelief(ourKey, signed),
		States:        []state.World{genesis},
		Results:       []state.BlockResult{},
		LastTimestamp: genesis.Timestamp,
	}
}

// latestState returns the tail of the consensus-applied state vector — the
// State every read-only operation runs against.
func (p Peer) latestState() state.World {
	return p.States[len(p.States)-1]
}

// LatestState exposes the tail state, e.g. so a caller can read its Peers
// map as the consensus.StakeTable to merge against.
func (p Peer) LatestState() state.World {
	return p.latestState()
}

// ourOrder resolves our own current Order out of the Belief. The payload
// is always held in memory locally (we produced and signed it ourselves),
// so resolution never needs a store.
func (p Peer) ourOrder() consensus.Order {
	signed, ok := p.Belief.Get(p.KeyPair.AccountKey())
	if !ok {
		panic("peer: local belief has no entry for our own key")
	}
	v, err := signed.Payload.Resolve(nil)
	if err != nil {
		panic(fmt.Sprintf("peer: our own order is not held in memory: %v", err))
	}
	return v.(consensus.Order)
}

// ProposeBlock appends block to our own Order and re-signs it (§4.7
// "propose-block").
func (p Peer) ProposeBlock(block consensus.Block) Peer {
	order := p.ourOrder().Propose(block)
	signed := p.KeyPair.SignCell(order)
	p.Belief = p.Belief.With(p.KeyPair.AccountKey(), signed)
	return p
}

// MergeBeliefs runs the §4.6 merge algorithm against zero or more remote
// Beliefs, then applies every newly-agreed block (from the number of
// states already applied up to the new consensus point) to the tail State
// via the VM, appending a (State, BlockResult) pair per block (§4.7
// "merge-beliefs").
func (p Peer) MergeBeliefs(now int64, stakes consensus.StakeTable, res cell.Resolver, log func(string), remote ...consensus.Belief) (Peer, error) {
	mc := consensus.MergeContext{
		OurKey:    p.KeyPair.AccountKey(),
		Timestamp: now,
		Stakes:    stakes,
		KeyPair:   p.KeyPair,
		Resolver:  res,
		Log:       log,
	}
	result, err := consensus.Merge(mc, p.Belief, remote...)
	if err != nil {
		return p, fmt.Errorf("peer: merge: %w", err)
	}
	p.Belief = result.Belief

	applied := len(p.Results)
	target := result.OurOrder.GetConsensusPoint()
	for i := applied; i < target; i++ {
		block := result.OurOrder.GetBlock(i)
		br := vm.ApplyBlock(p.latestState(), block, res)
		p.States = append(p.States, br.PostState)
		p.Results = append(p.Results, br)
	}
	return p, nil
}

// ExecuteQuery evaluates form read-only against the latest consensus State
// for address, with no effect on the Peer (§4.7 "execute-query").
func (p Peer) ExecuteQuery(form vm.Op, address cell.Address) *vm.Context {
	return vm.ExecuteQuery(form, p.latestState(), address, p.LastTimestamp)
}

// EstimateCost dry-runs a transaction against the latest consensus State
// and returns balance-before minus balance-after, without mutating the
// Peer (§4.7 "estimate-cost").
func (p Peer) EstimateCost(tx cell.SignedData, res cell.Resolver) (int64, state.TxResult) {
	world := p.latestState()
	addr, err := transactionAddress(tx, res)
	if err != nil {
		return 0, state.TxResult{ErrorKind: "TRUST", ErrorMessage: err.Error()}
	}
	before, _ := world.GetAccount(addr)
	postWorld, result := vm.ApplyTransaction(world, tx, p.LastTimestamp, res)
	after, _ := postWorld.GetAccount(addr)
	return before.Balance - after.Balance, result
}

func transactionAddress(tx cell.SignedData, res cell.Resolver) (cell.Address, error) {
	v, err := tx.Payload.Resolve(res)
	if err != nil {
		return cell.Address{}, err
	}
	t, ok := v.(vm.Transaction)
	if !ok {
		return cell.Address{}, fmt.Errorf("peer: signed payload is not a transaction")
	}
	return t.Address, nil
}

// UpdateTimestamp advances the peer's observed wall-clock time. Monotone:
// a timestamp older than the current one is silently ignored, matching
// the behavior named (without further elaboration) in the source this
// specification was distilled from (§9 design notes, open question).
func (p Peer) UpdateTimestamp(t int64) Peer {
	if t < p.LastTimestamp {
		return p
	}
	p.LastTimestamp = t
	return p
}

// PersistState materializes the Belief, every State, and every BlockResult
// into cs as a single PeerRoot cell, announcing anything newly written to
// sink so transport knows what to broadcast (§4.7 "persist-state", §4.8
// novelty). Returns the root's hash, the value restore() later takes.
func (p Peer) PersistState(cs *store.CellStore, sink store.NoveltySink) (cell.Hash, error) {
	statesCells := make([]cell.Cell, len(p.States))
	for i, s := range p.States {
		statesCells[i] = s
	}
	resultsCells := make([]cell.Cell, len(p.Results))
	for i, r := range p.Results {
		resultsCells[i] = r
	}
	root := PeerRoot{
		Belief:  p.Belief,
		States:  cell.NewVector(statesCells...),
		Results: cell.NewVector(resultsCells...),
	}
	return store.PersistAnnounced(cs, root, sink)
}

// AsOf returns the State with the greatest timestamp ≤ requested, or false
// if even the earliest (genesis) State is newer than requested (§4.7,
// property 9).
func (p Peer) AsOf(timestamp int64) (state.World, bool) {
	var best state.World
	found := false
	for _, s := range p.States {
		if s.Timestamp <= timestamp && (!found || s.Timestamp > best.Timestamp) {
			best = s
			found = true
		}
	}
	return best, found
}

// AsOfRange returns up to count states, one each for start, start+interval,
// start+2*interval, ... (duplicates allowed when interval is smaller than
// the spacing between actual states) (§4.7 "as-of-range"). Times earlier
// than the first state are skipped, so fewer than count can come back.
func (p Peer) AsOfRange(start, interval int64, count int) []state.World {
	out := make([]state.World, 0, count)
	for i := 0; i < count; i++ {
		t := start + int64(i)*interval
		if s, ok := p.AsOf(t); ok {
			out = append(out, s)
		}
	}
	return out
}

// Restore reconstructs a Peer from a persisted root hash, or false if the
// hash is absent from the store (§4.7 "restore").
func Restore(cs *store.CellStore, rootHash cell.Hash, kp *crypto.KeyPair) (Peer, bool, error) {
	c, ok, err := cs.Resolve(rootHash)
	if err != nil || !ok {
		return Peer{}, ok, err
	}
	root, ok := c.(PeerRoot)
	if !ok {
		return Peer{}, false, fmt.Errorf("peer: root hash does not resolve to a peer root")
	}

	states := make([]state.World, root.States.Count())
	for i := range states {
		v, err := root.States.Get(i).Resolve(cs)
		if err != nil {
			return Peer{}, false, err
		}
		states[i] = v.(state.World)
	}
	results := make([]state.BlockResult, root.Results.Count())
	for i := range results {
		v, err := root.Results.Get(i).Resolve(cs)
		if err != nil {
			return Peer{}, false, err
		}
		results[i] = v.(state.BlockResult)
	}
	last := int64(0)
	if len(states) > 0 {
		last = states[len(states)-1].Timestamp
	}
	belief := root.Belief
	if sd, ok := belief.Get(kp.AccountKey()); ok {
		v, err := sd.Payload.Resolve(cs)
		if err != nil {
			return Peer{}, false, err
		}
		sd.Payload = sd.Payload.WithValue(v)
		belief = belief.With(kp.AccountKey(), sd)
	}
	return Peer{
		KeyPair:       kp,
		Belief:        belief,
		States:        states,
		Results:       results,
		LastTimestamp: last,
	}, true, nil
}
