package crypto

import (
	"testing"

	"github.com/latticenet/core/pkg/cell"
)

type memResolver map[cell.Hash]cell.Cell

func (m memResolver) Resolve(h cell.Hash) (cell.Cell, bool, error) {
	c, ok := m[h]
	return c, ok, nil
}

func TestSignVerifyRoundTrip(t *testing.T) {
	kp, err := Generate()
	if err != nil {
		t.Fatal(err)
	}
	payload := cell.String("transfer 10 to bob")
	sd := kp.SignCell(payload)

	h := cell.HashCell(payload)
	if !Verify(sd.Signer, h, sd.Signature) {
		t.Fatal("expected signature to verify")
	}
}

func TestVerifyDetectsTamperedSignature(t *testing.T) {
	kp, err := Generate()
	if err != nil {
		t.Fatal(err)
	}
	payload := cell.Long(42)
	sd := kp.SignCell(payload)
	h := cell.HashCell(payload)

	sd.Signature[0] ^= 0xFF
	if Verify(sd.Signer, h, sd.Signature) {
		t.Fatal("flipping a signature bit must invalidate it")
	}
}

func TestVerifyDetectsTamperedPayload(t *testing.T) {
	kp, err := Generate()
	if err != nil {
		t.Fatal(err)
	}
	payload := cell.Long(42)
	sd := kp.SignCell(payload)

	other := cell.HashCell(cell.Long(43))
	if Verify(sd.Signer, other, sd.Signature) {
		t.Fatal("signature must not verify against a different payload hash")
	}
}

func TestFromSeedIsDeterministic(t *testing.T) {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}
	a, err := FromSeed(seed)
	if err != nil {
		t.Fatal(err)
	}
	b, err := FromSeed(seed)
	if err != nil {
		t.Fatal(err)
	}
	if a.AccountKey() != b.AccountKey() {
		t.Fatal("same seed must derive the same account key")
	}
}

func TestVerifySignedRequiresValidSignature(t *testing.T) {
	kp, err := Generate()
	if err != nil {
		t.Fatal(err)
	}
	payload := cell.String("hello")
	sd := kp.SignCell(payload)

	store := memResolver{cell.HashCell(payload): payload}
	u := WrapUnverified[cell.String](sd)
	v, err := VerifySigned[cell.String](u, store)
	if err != nil {
		t.Fatalf("expected verification to succeed: %v", err)
	}
	if v.Value() != payload {
		t.Fatalf("verified value = %v, want %v", v.Value(), payload)
	}
	if v.Signer() != kp.AccountKey() {
		t.Fatal("verified signer mismatch")
	}

	sd.Signature[0] ^= 0xFF
	u2 := WrapUnverified[cell.String](sd)
	if _, err := VerifySigned[cell.String](u2, store); err == nil {
		t.Fatal("expected tampered signature to fail verification")
	}
}
