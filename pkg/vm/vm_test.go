package vm

import (
	"testing"

	"github.com/latticenet/core/pkg/cell"
	"github.com/latticenet/core/pkg/consensus"
	"github.com/latticenet/core/pkg/crypto"
	"github.com/latticenet/core/pkg/state"
)

func genesisWorld(t *testing.T, addr cell.Address, balance int64) state.World {
	t.Helper()
	return state.Genesis([]state.StakeEntry{{Owner: addr, Balance: balance, Stake: 1}}, 0)
}

// TestExecuteQueryArithmetic mirrors scenario S1: a read-only query
// evaluating (+ 1 2) returns 3 without touching account sequence or state.
func TestExecuteQueryArithmetic(t *testing.T) {
	var addr cell.Address
	addr[0] = 1
	world := genesisWorld(t, addr, 1000)

	form := Call(Sym("+"), Const(cell.Long(1)), Const(cell.Long(2)))
	ctx := ExecuteQuery(form, world, addr, 0)
	if ctx.Failed() {
		t.Fatalf("unexpected error: %v", ctx.Err)
	}
	got, ok := ctx.Value.(cell.Long)
	if !ok || got != 3 {
		t.Fatalf("value = %v, want Long 3", ctx.Value)
	}
}

// TestExecuteQueryUndeclaredSymbol mirrors scenario S2: looking up a
// symbol bound nowhere surfaces an UNDECLARED error naming it.
func TestExecuteQueryUndeclaredSymbol(t *testing.T) {
	var addr cell.Address
	addr[0] = 1
	world := genesisWorld(t, addr, 1000)

	ctx := ExecuteQuery(Sym("bad"), world, addr, 0)
	if !ctx.Failed() {
		t.Fatal("expected an error for an undeclared symbol")
	}
	if ctx.Err.Kind != KindUndeclared {
		t.Fatalf("kind = %s, want UNDECLARED", ctx.Err.Kind)
	}
	if !contains(ctx.Err.Message, "bad") {
		t.Fatalf("message %q does not name the bad symbol", ctx.Err.Message)
	}
}

// TestExecuteQueryRejectsMutation: def inside a query is rejected (§4.4
// read-only enforcement).
func TestExecuteQueryRejectsMutation(t *testing.T) {
	var addr cell.Address
	addr[0] = 1
	world := genesisWorld(t, addr, 1000)

	form := Def{Symbol: cell.Symbol("x"), Value: Const(cell.Long(1))}
	ctx := ExecuteQuery(form, world, addr, 0)
	if !ctx.Failed() || ctx.Err.Kind != KindState {
		t.Fatalf("expected STATE error, got %+v", ctx.Err)
	}
}

func signedTx(kp *crypto.KeyPair, tx Transaction) cell.SignedData {
	return kp.SignCell(tx)
}

// TestApplyTransactionTransferSuccessConservesJuice checks property 8:
// pre-balance = post-balance + consumed-juice * JuicePrice, net of the
// amount actually transferred out.
func TestApplyTransactionTransferSuccessConservesJuice(t *testing.T) {
	kp, err := crypto.Generate()
	if err != nil {
		t.Fatal(err)
	}
	addr := cell.AddressFromAccountKey(kp.AccountKey())
	var dest cell.Address
	dest[0] = 0xFF

	world := genesisWorld(t, addr, 1_000_000)
	before, _ := world.GetAccount(addr)

	tx := Transaction{Address: addr, Sequence: 1, Kind: TxTransfer, Target: dest, Amount: 500}
	signed := signedTx(kp, tx)

	post, result := ApplyTransaction(world, signed, 10, memResolver{})
	if result.Failed() {
		t.Fatalf("unexpected failure: %s: %s", result.ErrorKind, result.ErrorMessage)
	}
	after, ok := post.GetAccount(addr)
	if !ok {
		t.Fatal("signer account missing after apply")
	}
	if after.Sequence != 1 {
		t.Fatalf("sequence = %d, want 1", after.Sequence)
	}
	wantBalance := before.Balance - 500 - result.JuiceUsed*JuicePrice
	if after.Balance != wantBalance {
		t.Fatalf("balance = %d, want %d (juice used %d)", after.Balance, wantBalance, result.JuiceUsed)
	}
	destAcct, ok := post.GetAccount(dest)
	if !ok || destAcct.Balance != 500 {
		t.Fatalf("dest account = %+v, want balance 500", destAcct)
	}
}

// TestApplyTransactionInsufficientFundsReverts checks that a transfer
// beyond the signer's balance leaves balance charged only juice, and the
// sequence still advances (§4.4 revert-on-error).
func TestApplyTransactionInsufficientFundsReverts(t *testing.T) {
	kp, err := crypto.Generate()
	if err != nil {
		t.Fatal(err)
	}
	addr := cell.AddressFromAccountKey(kp.AccountKey())
	var dest cell.Address
	dest[0] = 0xFF

	world := genesisWorld(t, addr, 100)
	before, _ := world.GetAccount(addr)

	tx := Transaction{Address: addr, Sequence: 1, Kind: TxTransfer, Target: dest, Amount: 10_000}
	signed := signedTx(kp, tx)

	post, result := ApplyTransaction(world, signed, 10, memResolver{})
	if !result.Failed() || result.ErrorKind != string(KindFunds) {
		t.Fatalf("expected FUNDS error, got %+v", result)
	}
	after, ok := post.GetAccount(addr)
	if !ok {
		t.Fatal("signer account missing after apply")
	}
	if after.Sequence != 1 {
		t.Fatalf("sequence = %d, want 1 even on failure", after.Sequence)
	}
	wantBalance := before.Balance - result.JuiceUsed*JuicePrice
	if after.Balance != wantBalance {
		t.Fatalf("balance = %d, want %d", after.Balance, wantBalance)
	}
	if _, ok := post.GetAccount(dest); ok {
		t.Fatal("dest account must not exist: the transfer never happened")
	}
}

// TestApplyTransactionSequenceMismatchRejected checks that a bad sequence
// number is rejected before the VM runs at all, and charges no juice.
func TestApplyTransactionSequenceMismatchRejected(t *testing.T) {
	kp, err := crypto.Generate()
	if err != nil {
		t.Fatal(err)
	}
	addr := cell.AddressFromAccountKey(kp.AccountKey())
	world := genesisWorld(t, addr, 1000)
	before, _ := world.GetAccount(addr)

	tx := Transaction{Address: addr, Sequence: 5, Kind: TxTransfer, Target: addr, Amount: 1}
	signed := signedTx(kp, tx)

	post, result := ApplyTransaction(world, signed, 10, memResolver{})
	if !result.Failed() || result.ErrorKind != string(KindSequence) {
		t.Fatalf("expected SEQUENCE error, got %+v", result)
	}
	after, _ := post.GetAccount(addr)
	if after.Balance != before.Balance || after.Sequence != before.Sequence {
		t.Fatal("a rejected sequence must not touch the account at all")
	}
}

// TestApplyTransactionBadSignatureRejected checks that signature
// verification failure is reported as TRUST and never reaches the VM.
func TestApplyTransactionBadSignatureRejected(t *testing.T) {
	kp, err := crypto.Generate()
	if err != nil {
		t.Fatal(err)
	}
	addr := cell.AddressFromAccountKey(kp.AccountKey())
	world := genesisWorld(t, addr, 1000)

	tx := Transaction{Address: addr, Sequence: 1, Kind: TxTransfer, Target: addr, Amount: 1}
	signed := signedTx(kp, tx)
	signed.Signature[0] ^= 0xFF

	_, result := ApplyTransaction(world, signed, 10, memResolver{})
	if !result.Failed() || result.ErrorKind != string(KindTrust) {
		t.Fatalf("expected TRUST error, got %+v", result)
	}
}

// TestApplyBlockRunsScheduledCalls checks that a call scheduled at or
// before a block's timestamp runs and is removed from the schedule (§8).
func TestApplyBlockRunsScheduledCalls(t *testing.T) {
	kp, err := crypto.Generate()
	if err != nil {
		t.Fatal(err)
	}
	addr := cell.AddressFromAccountKey(kp.AccountKey())
	var dest cell.Address
	dest[0] = 0xAB

	world := genesisWorld(t, addr, 1000)

	tx := Transaction{Address: addr, Sequence: 1, Kind: TxTransfer, Target: dest, Amount: 20}
	signed := signedTx(kp, tx)
	scheduled := cell.NewVector(signed)
	world.Schedule = world.Schedule.Assoc(cell.Long(5), scheduled)

	block := consensus.Block{Timestamp: 10, PeerKey: kp.AccountKey(), Transactions: cell.EmptyVector}
	br := ApplyBlock(world, block, memResolver{})

	if _, ok := br.PostState.Schedule.Get(cell.Long(5)); ok {
		t.Fatal("a scheduled call due in the past must be removed once run")
	}
	destAcct, ok := br.PostState.GetAccount(dest)
	if !ok || destAcct.Balance != 20 {
		t.Fatalf("scheduled transfer did not run: dest = %+v", destAcct)
	}
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

type memResolver map[cell.Hash]cell.Cell

func (m memResolver) Resolve(h cell.Hash) (cell.Cell, bool, error) {
	c, ok := m[h]
	return c, ok, nil
}
