// Package state implements the world state the virtual machine reads and
// writes: accounts, registered peers, global bindings, the scheduled-call
// queue, and the per-block results that record VM outcomes (§4.4, §4.7).
package state

// Denominations of the coin unit of account (§6). VM arithmetic and
// transfers always operate in the base unit, Copper; the larger units
// exist only as named constants for transaction authors.
const (
	Copper  = 1
	Bronze  = 1_000 * Copper
	Silver  = 1_000 * Bronze
	Gold    = 1_000 * Silver
	Diamond = 1_000 * Gold
	Emerald = 1_000 * Diamond
	Supply  = 1_000 * Emerald
)
