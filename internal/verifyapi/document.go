// Package verifyapi implements the verification API of spec.md §6: Supply
// a path's current attestation, verify a VRF proof against user data, and
// parse/validate a COSE attestation document's signature, certificate
// chain, and validity window.
package verifyapi

import (
	"crypto/x509"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/sentient-agi/enclave-trust/internal/cose"
)

// AttestationPayload mirrors the CBOR map internal/hsm's Attestation call
// embeds as the COSE_Sign1 payload.
type AttestationPayload struct {
	ModuleID    string         `cbor:"module_id"`
	Timestamp   int64          `cbor:"timestamp"`
	Digest      string         `cbor:"digest"`
	PCRs        map[int][]byte `cbor:"pcrs"`
	Certificate []byte         `cbor:"certificate"`
	CABundle    [][]byte       `cbor:"cabundle"`
	PublicKey   []byte         `cbor:"public_key"`
	UserData    []byte         `cbor:"user_data"`
	Nonce       []byte         `cbor:"nonce"`
}

// DocumentVerdict is the result of ParseAndValidate (spec.md §6's "parsed
// document, signature validation..., certificate-chain validation...,
// validity-time check").
type DocumentVerdict struct {
	Payload        AttestationPayload `json:"payload"`
	SignatureValid bool               `json:"signature_valid"`
	ChainValid     bool               `json:"chain_valid"`
	TimeValid      bool               `json:"time_valid"`
}

// Valid reports whether every component of the verdict passed.
func (v DocumentVerdict) Valid() bool {
	return v.SignatureValid && v.ChainValid && v.TimeValid
}

// ParseAndValidate decodes a COSE_Sign1 attestation document and checks its
// signature against the enclosed certificate, the certificate's chain
// against the enclosed CA bundle, and the certificate's validity window.
// A malformed document returns an error; a well-formed but untrustworthy
// one returns a DocumentVerdict with the relevant flag false, matching
// spec.md §7's "verification failures on the API side return a verdict,
// not an error".
func ParseAndValidate(docBytes []byte) (*DocumentVerdict, error) {
	doc, err := cose.Decode(docBytes)
	if err != nil {
		return nil, err
	}

	var payload AttestationPayload
	if err := cbor.Unmarshal(doc.Payload, &payload); err != nil {
		return nil, err
	}

	cert, err := x509.ParseCertificate(payload.Certificate)
	if err != nil {
		return nil, err
	}

	verdict := &DocumentVerdict{Payload: payload}

	if ok, err := doc.VerifySignature(cert); err == nil {
		verdict.SignatureValid = ok
	}

	pool := x509.NewCertPool()
	for _, raw := range payload.CABundle {
		if c, err := x509.ParseCertificate(raw); err == nil {
			pool.AddCert(c)
		}
	}
	if _, err := cert.Verify(x509.VerifyOptions{Roots: pool}); err == nil {
		verdict.ChainValid = true
	}

	now := time.Now()
	verdict.TimeValid = now.After(cert.NotBefore) && now.Before(cert.NotAfter)

	return verdict, nil
}
