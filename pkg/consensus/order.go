package consensus

import (
	"fmt"

	"github.com/latticenet/core/pkg/cell"
)

// Order is a single peer's ordered proposal of blocks, plus two watermarks:
// proposalPoint (how many blocks this peer has proposed) and
// consensusPoint (how many blocks this peer believes are final). Both are
// monotonically non-decreasing for a peer's own Order (§4.5, tested
// property 5).
type Order struct {
	Blocks         cell.Vector // of Block, via cell.Ref
	ProposalPoint  int
	ConsensusPoint int
}

// EmptyOrder is the Order a freshly created peer starts with: no blocks,
// nothing proposed, nothing agreed.
var EmptyOrder = Order{Blocks: cell.EmptyVector}

func (Order) Tag() cell.Tag { return cell.TagOrder }

func (o Order) Encode(dst []byte) []byte {
	dst = append(dst, byte(cell.TagOrder))
	dst = cell.AppendVLC(dst, uint64(o.ProposalPoint))
	dst = cell.AppendVLC(dst, uint64(o.ConsensusPoint))
	return o.Blocks.Encode(dst)
}

func (o Order) Refs() []cell.Ref { return o.Blocks.Refs() }

func decodeOrder(body []byte) (Order, int, error) {
	pp, n1, err := cell.ReadVLC(body)
	if err != nil {
		return Order{}, 0, err
	}
	off := n1
	cp, n2, err := cell.ReadVLC(body[off:])
	if err != nil {
		return Order{}, 0, err
	}
	off += n2
	blocks, n3, err := cell.DecodeVector(body[off:])
	if err != nil {
		return Order{}, 0, err
	}
	return Order{Blocks: blocks, ProposalPoint: int(pp), ConsensusPoint: int(cp)}, off + n3, nil
}

// GetBlockCount returns the number of blocks this Order holds.
func (o Order) GetBlockCount() int { return o.Blocks.Count() }

// GetProposalPoint returns the proposal watermark.
func (o Order) GetProposalPoint() int { return o.ProposalPoint }

// GetConsensusPoint returns the consensus watermark.
func (o Order) GetConsensusPoint() int { return o.ConsensusPoint }

// GetBlock returns the block at index i.
func (o Order) GetBlock(i int) Block {
	c, ok := o.Blocks.Get(i).Value()
	if !ok {
		panic("consensus: block ref not resolved in-memory")
	}
	return c.(Block)
}

// GetBlocksUpto returns the sub-vector of blocks [0, n).
func (o Order) GetBlocksUpto(n int) cell.Vector {
	return o.Blocks.SubVector(0, n)
}

// Propose appends block to the Order and advances the proposal point to
// the new block count. The proposal point of a peer's own Order never
// decreases, since Propose only ever appends.
func (o Order) Propose(b Block) Order {
	blocks := o.Blocks.Append(cell.NewRef(b))
	return Order{Blocks: blocks, ProposalPoint: blocks.Count(), ConsensusPoint: o.ConsensusPoint}
}

// UpdateConsensusPoint sets the consensus point to n. n must not exceed the
// proposal point; monotonicity (n must not be lower than the current
// consensus point) is the caller's responsibility — the merge algorithm
// enforces it explicitly so it can log the anomaly rather than silently
// clamp it.
func (o Order) UpdateConsensusPoint(n int) (Order, error) {
	if n > o.ProposalPoint {
		return o, fmt.Errorf("consensus: consensus point %d exceeds proposal point %d", n, o.ProposalPoint)
	}
	return Order{Blocks: o.Blocks, ProposalPoint: o.ProposalPoint, ConsensusPoint: n}, nil
}
