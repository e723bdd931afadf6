package consensus

import (
	"fmt"

	"github.com/latticenet/core/pkg/cell"
	"github.com/latticenet/core/pkg/crypto"
)

func init() {
	cell.RegisterTag(cell.TagBelief, func(body []byte) (cell.Cell, int, error) {
		return decodeBelief(body)
	})
}

// Belief is each peer's view of the network: a map from peer key to that
// peer's most recently seen signed Order (§4.6).
type Belief struct {
	Orders cell.Map // AccountKey -> cell.SignedData
}

func (Belief) Tag() cell.Tag { return cell.TagBelief }

func (b Belief) Encode(dst []byte) []byte {
	dst = append(dst, byte(cell.TagBelief))
	return b.Orders.Encode(dst)
}

func (b Belief) Refs() []cell.Ref { return []cell.Ref{cell.NewRef(b.Orders)} }

func decodeBelief(body []byte) (Belief, int, error) {
	c, n, err := cell.Decode(body)
	if err != nil {
		return Belief{}, 0, err
	}
	m, ok := c.(cell.Map)
	if !ok {
		return Belief{}, 0, fmt.Errorf("consensus: belief body is a %T, not a map", c)
	}
	return Belief{Orders: m}, n, nil
}

// NewBelief builds the Belief a freshly created peer starts with: a single
// entry for ourKey holding the given signed Order (Create passes a signed
// empty Order).
func NewBelief(ourKey cell.AccountKey, signed cell.SignedData) Belief {
	return Belief{Orders: cell.EmptyMap.Assoc(ourKey, signed)}
}

// Get returns the raw signed order a peer has on file for key, if any.
func (b Belief) Get(key cell.AccountKey) (cell.SignedData, bool) {
	ref, ok := b.Orders.Get(key)
	if !ok {
		return cell.SignedData{}, false
	}
	v, _ := ref.Value()
	sd, ok := v.(cell.SignedData)
	return sd, ok
}

// With returns a copy of b with key's entry replaced.
func (b Belief) With(key cell.AccountKey, signed cell.SignedData) Belief {
	return Belief{Orders: b.Orders.Assoc(key, signed)}
}

// StakeTable reports the registered, staked peer set a merge must validate
// incoming signed orders against. Implemented by package state.
type StakeTable interface {
	Stake(peer cell.AccountKey) (uint64, bool)
	TotalStake() uint64
}

// MergeContext is the environment a merge round runs against: which peer we
// are, a wall-clock Timestamp (carried for callers; Merge does not read it
// and Order has no timestamp field), and the current registered stake set.
type MergeContext struct {
	OurKey    cell.AccountKey
	Timestamp int64
	Stakes    StakeTable
	KeyPair   *crypto.KeyPair
	Resolver  cell.Resolver

	// Log receives a one-line message whenever the merge detects a protocol
	// anomaly: a dropped bad signature, a rejected unstaked peer, or a
	// computed consensus point that would have receded. Optional.
	Log func(string)
}

func (mc MergeContext) logf(format string, args ...interface{}) {
	if mc.Log != nil {
		mc.Log(fmt.Sprintf(format, args...))
	}
}

// MergeResult is the outcome of one merge round: the updated local Belief
// and, separately, the new value of our own Order (also reachable through
// the Belief, returned again here so callers don't need to re-extract it).
type MergeResult struct {
	Belief   Belief
	OurOrder Order
}

// Merge runs the belief-merge algorithm of §4.6 against the local Belief
// and zero or more remote Beliefs, producing an updated local Belief and
// our own possibly-advanced Order.
func Merge(mc MergeContext, local Belief, remote ...Belief) (MergeResult, error) {
	candidates, err := incorporate(mc, local, remote)
	if err != nil {
		return MergeResult{}, err
	}

	// Self-preservation: our own entry always comes from the local belief,
	// never from a peer's (possibly stale) copy of us.
	ourSigned, ok := local.Get(mc.OurKey)
	if !ok {
		return MergeResult{}, fmt.Errorf("consensus: local belief has no entry for our own key")
	}
	ourOrder, err := resolveOrder(mc, ourSigned)
	if err != nil {
		return MergeResult{}, fmt.Errorf("consensus: resolving our own order: %w", err)
	}
	candidates.m[mc.OurKey] = candidateEntry{order: ourOrder, signed: ourSigned}

	agreed := convergentProposal(mc, candidates, ourOrder.ConsensusPoint)
	ourOrder = proposeWhatOthersPropose(mc, candidates, ourOrder, agreed)
	ourOrder = advanceConsensusPoint(mc, candidates, ourOrder, agreed)

	signed := mc.KeyPair.SignCell(ourOrder)
	newBelief := Belief{Orders: cell.EmptyMap}
	for _, k := range candidates.keys() {
		if k == mc.OurKey {
			newBelief = newBelief.With(k, signed)
			continue
		}
		newBelief = newBelief.With(k, candidates.m[k].signed)
	}
	return MergeResult{Belief: newBelief, OurOrder: ourOrder}, nil
}

// candidateEntry pairs a candidate's resolved Order with the exact
// SignedData it was resolved from, so the winning entry from incorporate
// (which may be a remote's fresher copy of a peer, not our local one) is
// what gets persisted back into the rebuilt Belief.
type candidateEntry struct {
	order  Order
	signed cell.SignedData
}

// candidateSet preserves deterministic iteration order (sorted by key
// bytes) so merge output never depends on map iteration order.
type candidateSet struct {
	m map[cell.AccountKey]candidateEntry
}

func newCandidateSet() candidateSet { return candidateSet{m: map[cell.AccountKey]candidateEntry{}} }

func (c candidateSet) keys() []cell.AccountKey {
	out := make([]cell.AccountKey, 0, len(c.m))
	for k := range c.m {
		out = append(out, k)
	}
	sortAccountKeys(out)
	return out
}

func sortAccountKeys(ks []cell.AccountKey) {
	for i := 1; i < len(ks); i++ {
		for j := i; j > 0; j-- {
			if string(ks[j-1][:]) > string(ks[j][:]) {
				ks[j-1], ks[j] = ks[j], ks[j-1]
			} else {
				break
			}
		}
	}
}

// step 1: incorporation.
func incorporate(mc MergeContext, local Belief, remote []Belief) (candidateSet, error) {
	out := newCandidateSet()
	consider := func(key cell.AccountKey, signed cell.SignedData) {
		if key == mc.OurKey {
			return // self-preservation happens in Merge, not here.
		}
		stake, ok := mc.Stakes.Stake(key)
		if !ok || stake == 0 {
			mc.logf("consensus: dropping entry for unregistered/unstaked peer %s", key)
			return
		}
		h, err := payloadHash(mc, signed)
		if err != nil {
			mc.logf("consensus: dropping unresolvable entry for peer %s: %v", key, err)
			return
		}
		if !crypto.Verify(signed.Signer, h, signed.Signature) {
			mc.logf("consensus: dropping bad signature for peer %s", key)
			return
		}
		order, err := resolveOrder(mc, signed)
		if err != nil {
			mc.logf("consensus: dropping unresolvable order for peer %s: %v", key, err)
			return
		}
		// On a tied proposal-point, prefer whichever candidate is being
		// considered later: local is examined first, then each remote
		// Belief in turn, so a just-arrived remote update wins over
		// possibly-stale local knowledge of the same peer.
		if existing, ok := out.m[key]; ok && existing.order.ProposalPoint > order.ProposalPoint {
			return
		}
		out.m[key] = candidateEntry{order: order, signed: signed}
	}
	each := func(b Belief) {
		for _, i := range iterMapPairs(b.Orders) {
			consider(i.key, i.signed)
		}
	}
	each(local)
	for _, b := range remote {
		each(b)
	}
	return out, nil
}

type pair struct {
	key    cell.AccountKey
	signed cell.SignedData
}

func iterMapPairs(m cell.Map) []pair {
	keys := m.Keys()
	out := make([]pair, 0, keys.Count())
	for i := 0; i < keys.Count(); i++ {
		kv, _ := keys.Get(i).Value()
		key := kv.(cell.AccountKey)
		ref, _ := m.Get(key)
		v, _ := ref.Value()
		out = append(out, pair{key: key, signed: v.(cell.SignedData)})
	}
	return out
}

func payloadHash(mc MergeContext, sd cell.SignedData) (cell.Hash, error) {
	v, err := sd.Payload.Resolve(mc.Resolver)
	if err != nil {
		return cell.Hash{}, err
	}
	return cell.HashCell(v), nil
}

func resolveOrder(mc MergeContext, sd cell.SignedData) (Order, error) {
	v, err := sd.Payload.Resolve(mc.Resolver)
	if err != nil {
		return Order{}, err
	}
	o, ok := v.(Order)
	if !ok {
		return Order{}, fmt.Errorf("signed payload is a %T, not an Order", v)
	}
	return o, nil
}

// step 3: convergent proposal. Returns, for each index from startAt up to
// the longest candidate order, the agreed block hash if one exists at
// strictly more than 2/3 of total stake, else a zero hash.
func convergentProposal(mc MergeContext, candidates candidateSet, startAt int) []cell.Hash {
	total := mc.Stakes.TotalStake()
	threshold := (2 * total) / 3

	maxLen := 0
	for _, c := range candidates.m {
		if c.order.GetBlockCount() > maxLen {
			maxLen = c.order.GetBlockCount()
		}
	}

	var agreed []cell.Hash
	for i := startAt; i < maxLen; i++ {
		tally := map[cell.Hash]uint64{}
		for key, c := range candidates.m {
			if i >= c.order.GetBlockCount() {
				continue
			}
			stake, _ := mc.Stakes.Stake(key)
			tally[c.order.GetBlock(i).Hash()] += stake
		}
		winner, ok := strictSupermajority(tally, threshold)
		if !ok {
			break // no agreement at this index means none further can be trusted yet.
		}
		agreed = append(agreed, winner)
	}
	return agreed
}

func strictSupermajority(tally map[cell.Hash]uint64, threshold uint64) (cell.Hash, bool) {
	for h, stake := range tally {
		if stake > threshold {
			return h, true
		}
	}
	return cell.Hash{}, false
}

// step 4: propose-what-others-propose. Rewrites our order, up to the
// highest index with >=1/2 stake plurality agreement, to match that
// plurality, so that the network converges within one further round.
func proposeWhatOthersPropose(mc MergeContext, candidates candidateSet, our Order, agreed []cell.Hash) Order {
	total := mc.Stakes.TotalStake()
	proposalThreshold := total / 2

	maxLen := 0
	for _, c := range candidates.m {
		if c.order.GetBlockCount() > maxLen {
			maxLen = c.order.GetBlockCount()
		}
	}

	blocksByHash := map[cell.Hash]Block{}
	for _, c := range candidates.m {
		for i := 0; i < c.order.GetBlockCount(); i++ {
			b := c.order.GetBlock(i)
			blocksByHash[b.Hash()] = b
		}
	}

	newBlocks := our.Blocks
	for i := our.ConsensusPoint; i < maxLen; i++ {
		tally := map[cell.Hash]uint64{}
		for key, c := range candidates.m {
			if i >= c.order.GetBlockCount() {
				continue
			}
			stake, _ := mc.Stakes.Stake(key)
			tally[c.order.GetBlock(i).Hash()] += stake
		}
		winner, winnerStake := plurality(tally)
		if winnerStake == 0 || uint64(winnerStake) < proposalThreshold {
			break
		}
		block := blocksByHash[winner]
		if i < newBlocks.Count() {
			if newBlocks.Get(i).Hash() == winner {
				continue
			}
			newBlocks = newBlocks.Assoc(i, cell.NewRef(block))
		} else {
			newBlocks = newBlocks.Append(cell.NewRef(block))
		}
	}
	return Order{Blocks: newBlocks, ProposalPoint: newBlocks.Count(), ConsensusPoint: our.ConsensusPoint}
}

// plurality picks the highest-stake hash in tally. Ties are broken by
// lexicographically smallest hash so that every peer computing plurality
// over the same candidate set picks the identical winner — required for
// step 4 to actually converge the network rather than depend on
// iteration order.
func plurality(tally map[cell.Hash]uint64) (cell.Hash, uint64) {
	hashes := make([]cell.Hash, 0, len(tally))
	for h := range tally {
		hashes = append(hashes, h)
	}
	sortHashes(hashes)

	var best cell.Hash
	var bestStake uint64
	haveBest := false
	for _, h := range hashes {
		s := tally[h]
		if !haveBest || s > bestStake {
			best, bestStake, haveBest = h, s, true
		}
	}
	return best, bestStake
}

func sortHashes(hs []cell.Hash) {
	for i := 1; i < len(hs); i++ {
		for j := i; j > 0; j-- {
			if string(hs[j-1][:]) > string(hs[j][:]) {
				hs[j-1], hs[j] = hs[j], hs[j-1]
			} else {
				break
			}
		}
	}
}

// step 5: consensus-point advance, with monotonicity enforced.
func advanceConsensusPoint(mc MergeContext, candidates candidateSet, our Order, agreed []cell.Hash) Order {
	newPoint := our.ConsensusPoint + len(agreed)
	if newPoint < our.ConsensusPoint {
		mc.logf("consensus: computed consensus point %d would recede below %d; retaining current value", newPoint, our.ConsensusPoint)
		return our
	}
	updated, err := our.UpdateConsensusPoint(newPoint)
	if err != nil {
		mc.logf("consensus: %v; retaining current consensus point", err)
		return our
	}
	return updated
}
