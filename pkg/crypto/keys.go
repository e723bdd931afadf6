// Package crypto manages peer identity key pairs and the signature
// verification boundary over content-addressed cells.
//
// Every cell that travels the network wrapped in a cell.SignedData carries a
// signature that may or may not have actually been checked. Representing
// "checked" as a bool field a caller could forget to test is how signature
// checks get skipped under refactors. Instead, verification is the only way
// to get from Unverified[T] to Verified[T] (see verified.go): the type
// system, not caller discipline, enforces the check.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/latticenet/core/pkg/cell"
)

// KeyPair holds an Ed25519 private/public key pair for a single peer or
// account identity.
type KeyPair struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// Generate creates a new random Ed25519 key pair.
func Generate() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key pair: %w", err)
	}
	return &KeyPair{priv: priv, pub: pub}, nil
}

// FromSeed deterministically derives a key pair from a 32-byte seed. Used to
// load a peer's persistent identity from configuration.
func FromSeed(seed []byte) (*KeyPair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &KeyPair{priv: priv, pub: pub}, nil
}

// AccountKey returns the public key as the 32-byte cell.AccountKey used to
// address accounts and peers throughout the cell model.
func (kp *KeyPair) AccountKey() cell.AccountKey {
	var k cell.AccountKey
	copy(k[:], kp.pub)
	return k
}

// PublicKey returns the raw Ed25519 public key.
func (kp *KeyPair) PublicKey() ed25519.PublicKey { return kp.pub }

// Seed returns the 32-byte seed this key pair was derived from, suitable for
// persisting and reloading via FromSeed.
func (kp *KeyPair) Seed() []byte { return kp.priv.Seed() }

// Sign signs the hash of a cell and returns the 64-byte signature.
func (kp *KeyPair) Sign(h cell.Hash) [64]byte {
	var sig [64]byte
	copy(sig[:], ed25519.Sign(kp.priv, h[:]))
	return sig
}

// SignCell wraps a payload cell in a cell.SignedData signed by this key
// pair. The signature covers the payload's 32-byte hash regardless of
// payload size; the payload ref itself follows the normal embedding rule
// when the SignedData is encoded.
func (kp *KeyPair) SignCell(payload cell.Cell) cell.SignedData {
	h := cell.HashCell(payload)
	return cell.SignedData{
		Signer:    kp.AccountKey(),
		Signature: kp.Sign(h),
		Payload:   cell.NewHashedRef(h).WithValue(payload),
	}
}

// Verify reports whether sig is a valid Ed25519 signature by signer over
// the hash h.
func Verify(signer cell.AccountKey, h cell.Hash, sig [64]byte) bool {
	return ed25519.Verify(ed25519.PublicKey(signer[:]), h[:], sig[:])
}
