// Package cose implements a minimal COSE_Sign1 (RFC 9052 §4.2) codec over
// CBOR, used to build and parse the attestation document envelope
// (spec.md §4.R). It is deliberately narrow: just enough structure to
// round-trip the four-element Sign1 array and verify its signature against
// an enclosed certificate, not a general COSE implementation.
package cose

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"errors"
	"hash"
	"math/big"

	"github.com/fxamacker/cbor/v2"
)

// ErrMalformed is returned when CBOR bytes do not decode to a well-formed
// four-element COSE_Sign1 structure.
var ErrMalformed = errors.New("cose: malformed Sign1 structure")

// Sign1 is the decoded form of a COSE_Sign1 object: [protected,
// unprotected, payload, signature].
type Sign1 struct {
	Protected   []byte
	Unprotected map[interface{}]interface{}
	Payload     []byte
	Signature   []byte
}

// Encode serializes s as the four-element CBOR array RFC 9052 defines for
// COSE_Sign1 (untagged: the caller decides whether to wrap it in CBOR tag
// 18, which this package does not do since no example in this repo's
// corpus consumes the tagged form).
func (s *Sign1) Encode() ([]byte, error) {
	arr := []interface{}{s.Protected, s.Unprotected, s.Payload, s.Signature}
	return cbor.Marshal(arr)
}

// Decode parses b into a Sign1.
func Decode(b []byte) (*Sign1, error) {
	var arr []cbor.RawMessage
	if err := cbor.Unmarshal(b, &arr); err != nil {
		return nil, err
	}
	if len(arr) != 4 {
		return nil, ErrMalformed
	}

	var s Sign1
	if err := cbor.Unmarshal(arr[0], &s.Protected); err != nil {
		return nil, err
	}
	if err := cbor.Unmarshal(arr[1], &s.Unprotected); err != nil {
		// Unprotected is frequently an empty map; tolerate decode failure by
		// leaving it nil rather than rejecting the whole document.
		s.Unprotected = nil
	}
	if err := cbor.Unmarshal(arr[2], &s.Payload); err != nil {
		return nil, err
	}
	if err := cbor.Unmarshal(arr[3], &s.Signature); err != nil {
		return nil, err
	}
	return &s, nil
}

// SigStructure builds the COSE "Signature1" to-be-signed byte string that
// the signature in a Sign1 object is computed (and verified) over.
func SigStructure(protected, payload []byte) ([]byte, error) {
	arr := []interface{}{"Signature1", protected, []byte{}, payload}
	return cbor.Marshal(arr)
}

// VerifySignature checks s.Signature against the enclosed certificate's
// public key, selecting the COSE-conventional hash for the key's curve
// (P-256→SHA-256, P-384→SHA-384, P-521→SHA-512), and returns the
// verification outcome as a plain bool per spec.md §6's "signature
// validation against the enclosed certificate".
func (s *Sign1) VerifySignature(cert *x509.Certificate) (bool, error) {
	pub, ok := cert.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return false, errors.New("cose: certificate public key is not ECDSA")
	}

	tbs, err := SigStructure(s.Protected, s.Payload)
	if err != nil {
		return false, err
	}

	h := hashForCurve(pub.Curve)
	h.Write(tbs)
	digest := h.Sum(nil)

	size := (pub.Curve.Params().BitSize + 7) / 8
	if len(s.Signature) != 2*size {
		return false, nil
	}
	r := new(big.Int).SetBytes(s.Signature[:size])
	sVal := new(big.Int).SetBytes(s.Signature[size:])

	return ecdsa.Verify(pub, digest, r, sVal), nil
}

func hashForCurve(c elliptic.Curve) hash.Hash {
	switch c.Params().BitSize {
	case 256:
		return sha256.New()
	case 384:
		return sha512.New384()
	default:
		return sha512.New()
	}
}
