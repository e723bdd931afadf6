package state

import "github.com/latticenet/core/pkg/cell"

func init() {
	cell.RegisterTag(cell.TagAccount, func(b []byte) (cell.Cell, int, error) { return decodeAccount(b) })
	cell.RegisterTag(cell.TagPeerStatus, func(b []byte) (cell.Cell, int, error) { return decodePeerStatus(b) })
	cell.RegisterTag(cell.TagWorldState, func(b []byte) (cell.Cell, int, error) { return decodeWorld(b) })
	cell.RegisterTag(cell.TagBlockResult, func(b []byte) (cell.Cell, int, error) { return decodeBlockResult(b) })
}
