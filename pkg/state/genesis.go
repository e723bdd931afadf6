package state

import "github.com/latticenet/core/pkg/cell"

// StakeEntry describes one genesis peer: its owning account, starting
// coin balance, and starting stake.
type StakeEntry struct {
	Owner   cell.Address
	Balance int64
	Stake   int64
}

// Genesis builds the initial World for a network: one account and one
// peer registration per entry in table, a zero-balance actor-free
// globals/schedule, stamped with timestamp. Supplements the distilled
// spec's silence on bootstrapping (§9 design notes second open question)
// with a straightforward, auditable construction: total coin supply and
// total stake are both exactly the sums declared in table.
func Genesis(table []StakeEntry, timestamp int64) World {
	w := World{
		Accounts:  cell.EmptyMap,
		Peers:     cell.EmptyMap,
		Globals:   cell.EmptyMap,
		Schedule:  cell.EmptyMap,
		Timestamp: timestamp,
	}
	for _, e := range table {
		acct := NewAccount(e.Owner).WithBalance(e.Balance)
		w = w.PutAccount(acct)
		w = w.PutPeer(NewPeerStatus(e.Owner, e.Stake))
	}
	return w
}
