package peer

import (
	"fmt"

	"github.com/latticenet/core/pkg/cell"
	"github.com/latticenet/core/pkg/consensus"
)

func init() {
	cell.RegisterTag(cell.TagPeerRoot, func(body []byte) (cell.Cell, int, error) {
		return decodePeerRoot(body)
	})
}

// PeerRoot is the single cell a Peer's durable state is persisted under:
// its Belief plus the full aligned (States, Results) history (§4.7
// "persist-state" / "restore").
type PeerRoot struct {
	Belief  consensus.Belief
	States  cell.Vector // of state.World
	Results cell.Vector // of state.BlockResult
}

func (PeerRoot) Tag() cell.Tag { return cell.TagPeerRoot }

func (r PeerRoot) Encode(dst []byte) []byte {
	dst = append(dst, byte(cell.TagPeerRoot))
	dst = r.Belief.Encode(dst)
	dst = r.States.Encode(dst)
	return r.Results.Encode(dst)
}

func (r PeerRoot) Refs() []cell.Ref {
	return []cell.Ref{cell.NewRef(r.Belief), cell.NewRef(r.States), cell.NewRef(r.Results)}
}

func decodePeerRoot(body []byte) (PeerRoot, int, error) {
	c, n, err := cell.Decode(body)
	if err != nil {
		return PeerRoot{}, 0, err
	}
	belief, ok := c.(consensus.Belief)
	if !ok {
		return PeerRoot{}, 0, fmt.Errorf("peer: root belief field is a %T, not a belief", c)
	}
	off := n

	states, n, err := cell.DecodeVector(body[off:])
	if err != nil {
		return PeerRoot{}, 0, err
	}
	off += n

	results, n, err := cell.DecodeVector(body[off:])
	if err != nil {
		return PeerRoot{}, 0, err
	}
	off += n

	return PeerRoot{Belief: belief, States: states, Results: results}, off, nil
}
