package peer

import (
	"testing"

	"github.com/latticenet/core/pkg/cell"
	"github.com/latticenet/core/pkg/consensus"
	"github.com/latticenet/core/pkg/crypto"
	"github.com/latticenet/core/pkg/state"
	"github.com/latticenet/core/pkg/store"
	"github.com/latticenet/core/pkg/vm"
)

type fixedStakes struct {
	byPeer map[cell.AccountKey]uint64
	total  uint64
}

func (f fixedStakes) Stake(key cell.AccountKey) (uint64, bool) {
	s, ok := f.byPeer[key]
	return s, ok
}
func (f fixedStakes) TotalStake() uint64 { return f.total }

func newTestPeer(t *testing.T, kp *crypto.KeyPair, balance int64) Peer {
	t.Helper()
	addr := cell.AddressFromAccountKey(kp.AccountKey())
	genesis := state.Genesis([]state.StakeEntry{{Owner: addr, Balance: balance, Stake: 50}}, 0)
	return Create(kp, genesis)
}

// TestExecuteQueryBasic mirrors scenario S1 at the Peer level.
func TestExecuteQueryBasic(t *testing.T) {
	kp, err := crypto.Generate()
	if err != nil {
		t.Fatal(err)
	}
	p := newTestPeer(t, kp, 1000)
	addr := cell.AddressFromAccountKey(kp.AccountKey())

	form := vm.Call(vm.Sym("+"), vm.Const(cell.Long(1)), vm.Const(cell.Long(2)))
	ctx := p.ExecuteQuery(form, addr)
	if ctx.Failed() {
		t.Fatalf("unexpected error: %v", ctx.Err)
	}
	if got := ctx.Value.(cell.Long); got != 3 {
		t.Fatalf("value = %v, want 3", got)
	}
}

// TestExecuteQueryUndeclaredSymbol mirrors scenario S2.
func TestExecuteQueryUndeclaredSymbol(t *testing.T) {
	kp, err := crypto.Generate()
	if err != nil {
		t.Fatal(err)
	}
	p := newTestPeer(t, kp, 1000)
	addr := cell.AddressFromAccountKey(kp.AccountKey())

	ctx := p.ExecuteQuery(vm.Sym("bad"), addr)
	if !ctx.Failed() || ctx.Err.Kind != vm.KindUndeclared {
		t.Fatalf("expected UNDECLARED error, got %+v", ctx.Err)
	}
}

// TestProposeBlockThenMergeAdvancesAlone mirrors scenario S3: a single
// peer holding 100% of stake proposes a block and immediately reaches
// consensus on it in one merge round (no remote beliefs needed).
func TestProposeBlockThenMergeAdvancesAlone(t *testing.T) {
	kp, err := crypto.Generate()
	if err != nil {
		t.Fatal(err)
	}
	p := newTestPeer(t, kp, 1000)
	stakes := fixedStakes{byPeer: map[cell.AccountKey]uint64{kp.AccountKey(): 50}, total: 50}

	block := consensus.Block{Timestamp: 1, PeerKey: kp.AccountKey(), Transactions: cell.EmptyVector}
	p = p.ProposeBlock(block)

	p, err = p.MergeBeliefs(1, stakes, memResolver{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Results) != 1 {
		t.Fatalf("expected one applied block, got %d results", len(p.Results))
	}
	if len(p.States) != 2 {
		t.Fatalf("expected genesis + one applied state, got %d", len(p.States))
	}
}

// TestMergeBeliefsTwoPeerConvergence mirrors scenario S4 at the Peer
// level: two equal-stake peers each propose their own block, and two
// merge rounds bring both to the same agreed block.
func TestMergeBeliefsTwoPeerConvergence(t *testing.T) {
	a, err := crypto.Generate()
	if err != nil {
		t.Fatal(err)
	}
	b, err := crypto.Generate()
	if err != nil {
		t.Fatal(err)
	}
	stakes := fixedStakes{byPeer: map[cell.AccountKey]uint64{
		a.AccountKey(): 50,
		b.AccountKey(): 50,
	}, total: 100}

	genesis := state.Genesis(nil, 0)
	peerA := Create(a, genesis)
	peerB := Create(b, genesis)

	peerA = peerA.ProposeBlock(consensus.Block{Timestamp: 1, PeerKey: a.AccountKey(), Transactions: cell.EmptyVector})
	peerB = peerB.ProposeBlock(consensus.Block{Timestamp: 1, PeerKey: b.AccountKey(), Transactions: cell.EmptyVector})

	res := memResolver{}
	res[cell.HashCell(peerA.ourOrder())] = peerA.ourOrder()
	res[cell.HashCell(peerB.ourOrder())] = peerB.ourOrder()

	// Round 1 is a simultaneous exchange: each peer merges the other's
	// belief as it stood before the round.
	beliefA0, beliefB0 := peerA.Belief, peerB.Belief
	peerA, err = peerA.MergeBeliefs(1, stakes, res, nil, beliefB0)
	if err != nil {
		t.Fatal(err)
	}
	peerB, err = peerB.MergeBeliefs(1, stakes, res, nil, beliefA0)
	if err != nil {
		t.Fatal(err)
	}
	res[cell.HashCell(peerA.ourOrder())] = peerA.ourOrder()
	res[cell.HashCell(peerB.ourOrder())] = peerB.ourOrder()

	if len(peerA.Results) != 0 || len(peerB.Results) != 0 {
		t.Fatal("round 1 must not yet reach supermajority")
	}

	peerA, err = peerA.MergeBeliefs(2, stakes, res, nil, peerB.Belief)
	if err != nil {
		t.Fatal(err)
	}
	peerB, err = peerB.MergeBeliefs(2, stakes, res, nil, peerA.Belief)
	if err != nil {
		t.Fatal(err)
	}

	if len(peerA.Results) != 1 || len(peerB.Results) != 1 {
		t.Fatalf("round 2 should advance both peers to one applied block: A=%d B=%d",
			len(peerA.Results), len(peerB.Results))
	}
}

// TestMergeBeliefsDropsBadSignature mirrors scenario S5: a remote belief
// carrying a tampered signature is dropped rather than merged in.
func TestMergeBeliefsDropsBadSignature(t *testing.T) {
	a, err := crypto.Generate()
	if err != nil {
		t.Fatal(err)
	}
	b, err := crypto.Generate()
	if err != nil {
		t.Fatal(err)
	}
	stakes := fixedStakes{byPeer: map[cell.AccountKey]uint64{
		a.AccountKey(): 50,
		b.AccountKey(): 50,
	}, total: 100}

	genesis := state.Genesis(nil, 0)
	peerA := Create(a, genesis)
	peerB := Create(b, genesis)
	peerB = peerB.ProposeBlock(consensus.Block{Timestamp: 1, PeerKey: b.AccountKey(), Transactions: cell.EmptyVector})

	tampered := peerB.Belief
	signed, _ := tampered.Get(b.AccountKey())
	signed.Signature[0] ^= 0xFF
	tampered = tampered.With(b.AccountKey(), signed)

	res := memResolver{}
	res[cell.HashCell(peerB.ourOrder())] = peerB.ourOrder()

	peerA, err = peerA.MergeBeliefs(1, stakes, res, nil, tampered)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := peerA.Belief.Get(b.AccountKey()); ok {
		t.Fatal("expected the tampered entry to be dropped, not merged")
	}
}

// TestAsOfFutureReturnsLatestState mirrors scenario S6: a request for a
// timestamp past the latest applied state returns that latest state.
func TestAsOfFutureReturnsLatestState(t *testing.T) {
	kp, err := crypto.Generate()
	if err != nil {
		t.Fatal(err)
	}
	p := newTestPeer(t, kp, 1000)

	s, ok := p.AsOf(1_000_000)
	if !ok {
		t.Fatal("expected genesis state to satisfy a far-future as-of request")
	}
	if s.Timestamp != p.States[len(p.States)-1].Timestamp {
		t.Fatalf("as-of(future) = %d, want latest state's timestamp", s.Timestamp)
	}
}

func TestAsOfBeforeGenesisNotFound(t *testing.T) {
	kp, err := crypto.Generate()
	if err != nil {
		t.Fatal(err)
	}
	genesis := state.Genesis(nil, 100)
	p := Create(kp, genesis)

	if _, ok := p.AsOf(0); ok {
		t.Fatal("a timestamp before genesis must not resolve to any state")
	}
}

// TestPersistStateRestoreRoundTrip mirrors scenario S7: persisting then
// restoring a Peer reproduces its belief and full state/result history.
func TestPersistStateRestoreRoundTrip(t *testing.T) {
	kp, err := crypto.Generate()
	if err != nil {
		t.Fatal(err)
	}
	p := newTestPeer(t, kp, 1000)
	stakes := fixedStakes{byPeer: map[cell.AccountKey]uint64{kp.AccountKey(): 50}, total: 50}

	block := consensus.Block{Timestamp: 1, PeerKey: kp.AccountKey(), Transactions: cell.EmptyVector}
	p = p.ProposeBlock(block)
	p, err = p.MergeBeliefs(1, stakes, memResolver{}, nil)
	if err != nil {
		t.Fatal(err)
	}

	cs := store.NewCellStore(store.NewMemStore())
	sink := store.NewChannelSink(64)
	rootHash, err := p.PersistState(cs, sink)
	if err != nil {
		t.Fatal(err)
	}

	restored, ok, err := Restore(cs, rootHash, kp)
	if err != nil || !ok {
		t.Fatalf("restore failed: ok=%v err=%v", ok, err)
	}
	if len(restored.States) != len(p.States) || len(restored.Results) != len(p.Results) {
		t.Fatalf("restored history length mismatch: states %d/%d results %d/%d",
			len(restored.States), len(p.States), len(restored.Results), len(p.Results))
	}
	if restored.LastTimestamp != p.States[len(p.States)-1].Timestamp {
		t.Fatalf("restored timestamp = %d, want %d", restored.LastTimestamp, p.States[len(p.States)-1].Timestamp)
	}
	if cell.HashCell(restored.Belief) != cell.HashCell(p.Belief) {
		t.Fatal("restored belief does not hash-match the original")
	}
}

type memResolver map[cell.Hash]cell.Cell

func (m memResolver) Resolve(h cell.Hash) (cell.Cell, bool, error) {
	c, ok := m[h]
	return c, ok, nil
}
