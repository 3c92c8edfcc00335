// Package vrf implements EC keypair management and a Chaum-Pedersen style
// ECVRF (spec.md §4.H) over three cipher suites. No example repo or
// discoverable ecosystem library implements ECVRF over the NIST/secp curves
// this spec names, so the construction is built directly against
// crypto/ecdsa and crypto/elliptic (documented in DESIGN.md).
package vrf

import (
	"crypto/elliptic"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"hash"
)

// Suite identifies a supported VRF cipher suite.
type Suite string

const (
	SECP256K1SHA256TAI Suite = "SECP256K1_SHA256_TAI"
	P256SHA256TAI       Suite = "P256_SHA256_TAI"
	SECP521R1SHA512TAI  Suite = "SECP521R1_SHA512_TAI"
)

// ErrUnsupportedSuite is returned for any cipher suite name this package
// does not implement.
var ErrUnsupportedSuite = errors.New("vrf: unsupported cipher suite")

// curveInfo bundles everything hashToCurveTAI and the Prove/Verify math
// need for a given suite: the curve, its Weierstrass "a" coefficient
// (y^2 = x^3 + a*x + b mod p), and the suite's hash constructor.
type curveInfo struct {
	suite   Suite
	curve   elliptic.Curve
	a       int64
	newHash func() hash.Hash
}

func infoFor(s Suite) (curveInfo, error) {
	switch s {
	case SECP256K1SHA256TAI:
		return curveInfo{suite: s, curve: Secp256k1(), a: 0, newHash: sha256.New}, nil
	case P256SHA256TAI:
		return curveInfo{suite: s, curve: elliptic.P256(), a: -3, newHash: sha256.New}, nil
	case SECP521R1SHA512TAI:
		return curveInfo{suite: s, curve: elliptic.P521(), a: -3, newHash: sha512.New}, nil
	default:
		return curveInfo{}, ErrUnsupportedSuite
	}
}

// coordSize is the byte length of a curve coordinate, used to give proofs
// and encoded keys a fixed, suite-dependent size.
func (ci curveInfo) coordSize() int {
	return (ci.curve.Params().BitSize + 7) / 8
}
