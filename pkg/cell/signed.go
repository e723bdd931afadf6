package cell

// SignedData is the canonical on-wire representation of a signature over a
// payload cell: signer public key, 64-byte Ed25519 signature, and a
// reference to the signed payload (§3). SignedData carries no notion of
// whether the signature has actually been checked — package crypto layers
// Unverified/Verified wrapper types over this cell so that "verified" is a
// type-level fact, never a convention callers can forget to check.
//
// A SignedData cell is always embedded: its signature and key are inlined,
// and its payload ref follows the normal embedding rule.
type SignedData struct {
	Signer    AccountKey
	Signature [64]byte
	Payload   Ref
}

func (SignedData) Tag() Tag { return TagSignedData }

func (s SignedData) Encode(dst []byte) []byte {
	dst = append(dst, byte(TagSignedData))
	dst = append(dst, s.Signer[:]...)
	dst = append(dst, s.Signature[:]...)
	return encodeRef(dst, s.Payload)
}

func (s SignedData) Refs() []Ref { return []Ref{s.Payload} }

func decodeSignedData(body []byte) (SignedData, int, error) {
	if len(body) < 32+64 {
		return SignedData{}, 0, ErrTruncated{What: "signed data header"}
	}
	var sd SignedData
	copy(sd.Signer[:], body[0:32])
	copy(sd.Signature[:], body[32:96])
	ref, n, err := decodeRef(body[96:])
	if err != nil {
		return SignedData{}, 0, err
	}
	sd.Payload = ref
	return sd, 96 + n, nil
}
