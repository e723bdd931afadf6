package vm

// JuicePrice is the Copper cost of one unit of juice. Configurable in
// principle; fixed here as the network-wide constant every peer must
// agree on for determinism.
const JuicePrice = 1

// MaxJuice caps any single transaction's budget regardless of balance
// (§6).
const MaxJuice int64 = 1_000_000_000

// opCost is the fixed juice price of evaluating one Op, independent of
// its operands. Primitive invocation additionally charges primitiveCost
// for the callee.
const opCost = 1

var primitiveCost = map[string]int64{
	"+": 1, "-": 1, "*": 2, "/": 2, "mod": 2,
	"=": 1, "<": 1, ">": 1, "<=": 1, ">=": 1,
	"transfer": 10, "balance": 1, "account?": 1, "not": 1, "and": 1, "or": 1,
}

// InitialBudget returns the juice budget a transaction starts with:
// min(balance/price, MaxJuice) (§4.4).
func InitialBudget(balance int64) int64 {
	budget := balance / JuicePrice
	if budget > MaxJuice {
		budget = MaxJuice
	}
	if budget < 0 {
		budget = 0
	}
	return budget
}
