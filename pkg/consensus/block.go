// Package consensus implements the belief-merge CRDT protocol: the Block
// and Order types a single peer proposes, and the merge algorithm that
// reconciles many peers' Orders into shared consensus (§4.5, §4.6).
package consensus

import "github.com/latticenet/core/pkg/cell"

func init() {
	cell.RegisterTag(cell.TagBlock, func(body []byte) (cell.Cell, int, error) {
		return decodeBlock(body)
	})
	cell.RegisterTag(cell.TagOrder, func(body []byte) (cell.Cell, int, error) {
		return decodeOrder(body)
	})
}

// Block is produced by exactly one peer and carries its ordered,
// individually signed transactions plus the peer's own key.
type Block struct {
	Timestamp    int64
	PeerKey      cell.AccountKey
	Transactions cell.Vector // of cell.SignedData
}

func (Block) Tag() cell.Tag { return cell.TagBlock }

func (b Block) Encode(dst []byte) []byte {
	dst = append(dst, byte(cell.TagBlock))
	dst = cell.AppendVLCSigned(dst, b.Timestamp)
	dst = append(dst, b.PeerKey[:]...)
	return b.Transactions.Encode(dst)
}

func (b Block) Refs() []cell.Ref { return b.Transactions.Refs() }

// Hash returns the content hash of the block, used to identify it by
// position when peers compare Orders during merge.
func (b Block) Hash() cell.Hash { return cell.HashCell(b) }

func decodeBlock(body []byte) (Block, int, error) {
	ts, n, err := cell.ReadVLCSigned(body)
	if err != nil {
		return Block{}, 0, err
	}
	off := n
	if len(body) < off+32 {
		return Block{}, 0, cell.ErrTruncated{What: "block peer key"}
	}
	var key cell.AccountKey
	copy(key[:], body[off:off+32])
	off += 32
	txs, m, err := cell.DecodeVector(body[off:])
	if err != nil {
		return Block{}, 0, err
	}
	return Block{Timestamp: ts, PeerKey: key, Transactions: txs}, off + m, nil
}
