package store

import "github.com/latticenet/core/pkg/cell"

// NoveltySink receives cells as they are newly persisted, so transport can
// broadcast them (§9: "novelty handler... a sink/channel abstraction
// passed into persist, rather than a callback captured by a singleton").
type NoveltySink interface {
	Announce(h cell.Hash, c cell.Cell)
}

// ChannelSink is a NoveltySink backed by a buffered channel, the shape
// transport actually consumes from.
type ChannelSink struct {
	ch chan Novelty
}

// Novelty is one announced cell.
type Novelty struct {
	Hash cell.Hash
	Cell cell.Cell
}

func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{ch: make(chan Novelty, buffer)}
}

func (s *ChannelSink) Announce(h cell.Hash, c cell.Cell) {
	s.ch <- Novelty{Hash: h, Cell: c}
}

func (s *ChannelSink) C() <-chan Novelty { return s.ch }

// PersistAnnounced persists c and every descendant ref reachable from it,
// post-order (children before parents), invoking sink.Announce exactly
// once for each cell newly written during this call — cells the store
// already held are not re-announced (§9 novelty semantics).
func PersistAnnounced(cs *CellStore, c cell.Cell, sink NoveltySink) (cell.Hash, error) {
	for _, ref := range c.Refs() {
		child, ok := ref.Value()
		if !ok {
			// Already hash-only: either previously persisted or not ours to
			// walk further; nothing new to announce beneath it.
			continue
		}
		if _, err := PersistAnnounced(cs, child, sink); err != nil {
			return cell.Hash{}, err
		}
	}

	enc := cell.Encode(c)
	h := cell.HashOf(enc)
	if _, alreadyHave, err := cs.raw.Get(h); err != nil {
		return cell.Hash{}, err
	} else if alreadyHave {
		return h, nil
	}
	if err := cs.raw.Put(h, enc); err != nil {
		return cell.Hash{}, err
	}
	if sink != nil {
		sink.Announce(h, c)
	}
	return h, nil
}
