package state

import "github.com/latticenet/core/pkg/cell"

// PeerStatus is the registered, staked identity of one consensus
// participant: which account receives its juice-refund and reward income,
// how much it has staked on its own behalf, how much other accounts have
// delegated to it, and a free-form host-info blob transport may use for
// discovery.
type PeerStatus struct {
	Owner           cell.Address
	OwnStake        int64
	DelegatedStakes cell.Map // delegator Address -> Long stake
	HostInfo        cell.Map
}

// NewPeerStatus returns a fresh peer entry with no delegations.
func NewPeerStatus(owner cell.Address, ownStake int64) PeerStatus {
	return PeerStatus{Owner: owner, OwnStake: ownStake, DelegatedStakes: cell.EmptyMap, HostInfo: cell.EmptyMap}
}

// TotalStake is this peer's own stake plus all stake delegated to it —
// the weight it carries in the belief-merge supermajority/plurality
// calculations (§4.6).
func (p PeerStatus) TotalStake() int64 {
	total := p.OwnStake
	vals := p.DelegatedStakes.Values()
	for i := 0; i < vals.Count(); i++ {
		v, _ := vals.Get(i).Value()
		total += int64(v.(cell.Long))
	}
	return total
}

func (PeerStatus) Tag() cell.Tag { return cell.TagPeerStatus }

func (p PeerStatus) Encode(dst []byte) []byte {
	dst = append(dst, byte(cell.TagPeerStatus))
	dst = append(dst, p.Owner[:]...)
	dst = cell.AppendVLCSigned(dst, p.OwnStake)
	dst = p.DelegatedStakes.Encode(dst)
	return p.HostInfo.Encode(dst)
}

func (p PeerStatus) Refs() []cell.Ref {
	return []cell.Ref{cell.NewRef(p.DelegatedStakes), cell.NewRef(p.HostInfo)}
}

func decodePeerStatus(body []byte) (PeerStatus, int, error) {
	if len(body) < 32 {
		return PeerStatus{}, 0, cell.ErrTruncated{What: "peer status owner"}
	}
	var owner cell.Address
	copy(owner[:], body[:32])
	off := 32

	stake, n, err := cell.ReadVLCSigned(body[off:])
	if err != nil {
		return PeerStatus{}, 0, err
	}
	off += n

	delegated, n, err := decodeEmbeddedMap(body[off:])
	if err != nil {
		return PeerStatus{}, 0, err
	}
	off += n

	host, n, err := decodeEmbeddedMap(body[off:])
	if err != nil {
		return PeerStatus{}, 0, err
	}
	off += n

	return PeerStatus{Owner: owner, OwnStake: stake, DelegatedStakes: delegated, HostInfo: host}, off, nil
}
