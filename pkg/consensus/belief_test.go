package consensus

import (
	"testing"

	"github.com/latticenet/core/pkg/cell"
	"github.com/latticenet/core/pkg/crypto"
)

type fixedStakes struct {
	byPeer map[cell.AccountKey]uint64
	total  uint64
}

func (f fixedStakes) Stake(peer cell.AccountKey) (uint64, bool) {
	s, ok := f.byPeer[peer]
	return s, ok
}
func (f fixedStakes) TotalStake() uint64 { return f.total }

type memResolver map[cell.Hash]cell.Cell

func (m memResolver) Resolve(h cell.Hash) (cell.Cell, bool, error) {
	c, ok := m[h]
	return c, ok, nil
}

func newPeerBelief(t *testing.T, kp *crypto.KeyPair) Belief {
	t.Helper()
	signed := kp.SignCell(EmptyOrder)
	return NewBelief(kp.AccountKey(), signed)
}

// TestMergeTwoPeerConvergence mirrors scenario S4: two equal-stake peers
// each independently propose their own block at index 0 for "the same"
// logical transaction. Because a Block embeds its producing peer's key,
// the two proposals hash differently, so the first merge round cannot
// reach a 2/3 supermajority — only a 1/2 plurality, which step 4 uses to
// align both peers on the same block. A second round then sees identical
// blocks at index 0 on both sides and advances consensus.
func TestMergeTwoPeerConvergence(t *testing.T) {
	a, _ := crypto.Generate()
	b, _ := crypto.Generate()

	stakes := fixedStakes{byPeer: map[cell.AccountKey]uint64{
		a.AccountKey(): 50,
		b.AccountKey(): 50,
	}, total: 100}

	resolver := memResolver{}
	mcFor := func(self *crypto.KeyPair) MergeContext {
		return MergeContext{OurKey: self.AccountKey(), Stakes: stakes, KeyPair: self, Resolver: resolver}
	}

	beliefA := newPeerBelief(t, a)
	beliefB := newPeerBelief(t, b)

	orderA := EmptyOrder.Propose(Block{Timestamp: 1, PeerKey: a.AccountKey(), Transactions: cell.EmptyVector})
	signedA := a.SignCell(orderA)
	beliefA = beliefA.With(a.AccountKey(), signedA)
	resolver[cell.HashCell(orderA)] = orderA

	orderB := EmptyOrder.Propose(Block{Timestamp: 1, PeerKey: b.AccountKey(), Transactions: cell.EmptyVector})
	signedB := b.SignCell(orderB)
	beliefB = beliefB.With(b.AccountKey(), signedB)
	resolver[cell.HashCell(orderB)] = orderB

	resA1, err := Merge(mcFor(a), beliefA, beliefB)
	if err != nil {
		t.Fatal(err)
	}
	resolver[cell.HashCell(resA1.OurOrder)] = resA1.OurOrder

	resB1, err := Merge(mcFor(b), beliefB, beliefA)
	if err != nil {
		t.Fatal(err)
	}
	resolver[cell.HashCell(resB1.OurOrder)] = resB1.OurOrder

	if resA1.OurOrder.GetConsensusPoint() != 0 || resB1.OurOrder.GetConsensusPoint() != 0 {
		t.Fatalf("round 1 must not reach supermajority yet: A=%d B=%d",
			resA1.OurOrder.GetConsensusPoint(), resB1.OurOrder.GetConsensusPoint())
	}
	if resA1.OurOrder.GetBlock(0).Hash() != resB1.OurOrder.GetBlock(0).Hash() {
		t.Fatal("round 1 plurality must align both peers on the same block at index 0")
	}

	resA2, err := Merge(mcFor(a), resA1.Belief, resB1.Belief)
	if err != nil {
		t.Fatal(err)
	}
	resB2, err := Merge(mcFor(b), resB1.Belief, resA1.Belief)
	if err != nil {
		t.Fatal(err)
	}

	if resA2.OurOrder.GetConsensusPoint() != 1 || resB2.OurOrder.GetConsensusPoint() != 1 {
		t.Fatalf("round 2 should advance consensus past index 0 on both peers: A=%d B=%d",
			resA2.OurOrder.GetConsensusPoint(), resB2.OurOrder.GetConsensusPoint())
	}
}

func TestMergeDropsBadSignature(t *testing.T) {
	a, _ := crypto.Generate()
	b, _ := crypto.Generate()

	stakes := fixedStakes{byPeer: map[cell.AccountKey]uint64{
		a.AccountKey(): 50,
		b.AccountKey(): 50,
	}, total: 100}

	resolver := memResolver{}
	beliefA := newPeerBelief(t, a)
	beliefB := newPeerBelief(t, b)

	orderB := EmptyOrder.Propose(Block{Timestamp: 1, PeerKey: b.AccountKey(), Transactions: cell.EmptyVector})
	signedB := b.SignCell(orderB)
	signedB.Signature[0] ^= 0xFF // tamper
	beliefB = beliefB.With(b.AccountKey(), signedB)
	resolver[cell.HashCell(orderB)] = orderB

	mc := MergeContext{OurKey: a.AccountKey(), Stakes: stakes, KeyPair: a, Resolver: resolver}
	res, err := Merge(mc, beliefA, beliefB)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := res.Belief.Get(b.AccountKey()); ok {
		t.Fatal("expected bad-signature peer's entry to be dropped")
	}
	if res.OurOrder.GetBlockCount() != 0 {
		t.Fatalf("our order should be unchanged, got %d blocks", res.OurOrder.GetBlockCount())
	}
}
