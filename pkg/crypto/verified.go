package crypto

import (
	"fmt"

	"github.com/latticenet/core/pkg/cell"
)

// Unverified wraps a cell.SignedData whose signature has not yet been
// checked against its payload. T is the concrete payload type the caller
// expects to find once verification succeeds.
type Unverified[T cell.Cell] struct {
	sd cell.SignedData
}

// WrapUnverified records a SignedData as not-yet-checked.
func WrapUnverified[T cell.Cell](sd cell.SignedData) Unverified[T] {
	return Unverified[T]{sd: sd}
}

// Signer returns the claimed signer of the unverified data. Reading the
// claimed signer does not require verification, since it carries no trust
// implication on its own.
func (u Unverified[T]) Signer() cell.AccountKey { return u.sd.Signer }

// Raw returns the underlying SignedData cell, e.g. for re-transmission
// without having verified it locally.
func (u Unverified[T]) Raw() cell.SignedData { return u.sd }

// VerifySigned checks the Ed25519 signature against the resolved payload's hash
// and, on success, returns a Verified[T] whose payload has been type-
// asserted to T. This is the only path from Unverified to Verified: there
// is no constructor that lets a caller skip the check.
func VerifySigned[T cell.Cell](u Unverified[T], res cell.Resolver) (Verified[T], error) {
	payload, err := u.sd.Payload.Resolve(res)
	if err != nil {
		return Verified[T]{}, fmt.Errorf("resolve signed payload: %w", err)
	}
	h := cell.HashCell(payload)
	if !Verify(u.sd.Signer, h, u.sd.Signature) {
		return Verified[T]{}, fmt.Errorf("signature by %s does not verify", u.sd.Signer)
	}
	typed, ok := payload.(T)
	if !ok {
		return Verified[T]{}, fmt.Errorf("signed payload has type %T, want %T", payload, typed)
	}
	return Verified[T]{signer: u.sd.Signer, value: typed, sd: u.sd}, nil
}

// Verified wraps a payload of type T together with the identity that
// produced a signature checked to cover it. There is no way to construct a
// Verified value except through VerifySigned: "verified" is a fact about how the
// value came to exist, not a flag that could be set incorrectly.
type Verified[T cell.Cell] struct {
	signer cell.AccountKey
	value  T
	sd     cell.SignedData
}

// Signer returns the checked signer identity.
func (v Verified[T]) Signer() cell.AccountKey { return v.signer }

// Value returns the verified payload.
func (v Verified[T]) Value() T { return v.value }

// Raw returns the underlying SignedData cell, e.g. for re-announcing a
// value this peer has already verified.
func (v Verified[T]) Raw() cell.SignedData { return v.sd }
