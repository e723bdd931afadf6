package vm

import (
	"github.com/latticenet/core/pkg/cell"
	"github.com/latticenet/core/pkg/state"
)

// ExecuteQuery runs form read-only against world for address, returning the
// resulting Context. No mutation of world escapes the call: the Op is
// wrapped in a Query, which rejects any attempt to def or transfer (§4.7
// "execute-query").
func ExecuteQuery(form Op, world state.World, address cell.Address, timestamp int64) *Context {
	acct, ok := world.GetAccount(address)
	budget := InitialBudget(0)
	if ok {
		budget = InitialBudget(acct.Balance)
	}
	ctx := &Context{
		World:     world,
		Juice:     budget,
		address:   address,
		caller:    address,
		origin:    address,
		timestamp: timestamp,
	}
	ctx.Value = Eval(Query{Body: form}, ctx)
	return ctx
}
