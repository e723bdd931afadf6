package state

import "github.com/latticenet/core/pkg/cell"

// TxResult records one transaction's outcome within a block: on success,
// the value the op evaluated to; on failure, the error kind and a
// human-readable message. JuiceUsed is recorded either way. Kept alongside
// the post-state so a failed transaction's effect on the chain (sequence
// bump, juice charge) is auditable without re-running the VM (§7
// stratum 3).
type TxResult struct {
	Value        cell.Ref
	ErrorKind    string
	ErrorMessage string
	JuiceUsed    int64
}

func (r TxResult) Failed() bool { return r.ErrorKind != "" }

// BlockResult pairs the World produced by applying a block with the
// per-transaction outcomes, in transaction order.
type BlockResult struct {
	PostState World
	TxResults []TxResult
}

func (BlockResult) Tag() cell.Tag { return cell.TagBlockResult }

func (r BlockResult) Encode(dst []byte) []byte {
	dst = append(dst, byte(cell.TagBlockResult))
	dst = cell.AppendVLC(dst, uint64(len(r.TxResults)))
	for _, tr := range r.TxResults {
		dst = cell.String(tr.ErrorKind).Encode(dst)
		dst = cell.String(tr.ErrorMessage).Encode(dst)
		dst = cell.AppendVLCSigned(dst, tr.JuiceUsed)
		if tr.Failed() {
			dst = append(dst, 0x00)
		} else {
			dst = append(dst, 0x01)
			dst = cell.EncodeRef(dst, tr.Value)
		}
	}
	return r.PostState.Encode(dst)
}

func (r BlockResult) Refs() []cell.Ref {
	refs := make([]cell.Ref, 0, len(r.TxResults)+1)
	for _, tr := range r.TxResults {
		if !tr.Failed() {
			refs = append(refs, tr.Value)
		}
	}
	return append(refs, cell.NewRef(r.PostState))
}

func decodeBlockResult(body []byte) (BlockResult, int, error) {
	n, off, err := cell.ReadVLC(body)
	if err != nil {
		return BlockResult{}, 0, err
	}
	results := make([]TxResult, 0, n)
	for i := uint64(0); i < n; i++ {
		kindC, used, err := cell.Decode(body[off:])
		if err != nil {
			return BlockResult{}, 0, err
		}
		off += used
		msgC, used, err := cell.Decode(body[off:])
		if err != nil {
			return BlockResult{}, 0, err
		}
		off += used
		juice, used, err := cell.ReadVLCSigned(body[off:])
		if err != nil {
			return BlockResult{}, 0, err
		}
		off += used

		if off >= len(body) {
			return BlockResult{}, 0, cell.ErrTruncated{What: "tx result value flag"}
		}
		hasValue := body[off]
		off++
		var value cell.Ref
		if hasValue == 0x01 {
			value, used, err = cell.DecodeRef(body[off:])
			if err != nil {
				return BlockResult{}, 0, err
			}
			off += used
		}

		results = append(results, TxResult{
			Value:        value,
			ErrorKind:    string(kindC.(cell.String)),
			ErrorMessage: string(msgC.(cell.String)),
			JuiceUsed:    juice,
		})
	}
	post, used, err := decodeEmbeddedWorld(body[off:])
	if err != nil {
		return BlockResult{}, 0, err
	}
	off += used
	return BlockResult{PostState: post, TxResults: results}, off, nil
}

func decodeEmbeddedWorld(body []byte) (World, int, error) {
	c, n, err := cell.Decode(body)
	if err != nil {
		return World{}, 0, err
	}
	w, ok := c.(World)
	if !ok {
		return World{}, 0, cell.ErrTruncated{What: "expected world state"}
	}
	return w, n, nil
}
