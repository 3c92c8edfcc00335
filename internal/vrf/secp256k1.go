package vrf

import (
	"crypto/elliptic"
	"math/big"
	"sync"
)

var (
	secp256k1Once   sync.Once
	secp256k1Params *elliptic.CurveParams
)

// Secp256k1 returns the SECG secp256k1 curve parameters. crypto/elliptic
// carries no NIST-style optimized implementation for this curve, so
// arithmetic runs through elliptic.CurveParams' generic (non-constant-time)
// fallback; acceptable here since VRF proof generation is not a secret-free
// hot path and no pack example ships a dedicated secp256k1 implementation.
func Secp256k1() elliptic.Curve {
	secp256k1Once.Do(func() {
		p := &elliptic.CurveParams{Name: "secp256k1"}
		p.P, _ = new(big.Int).SetString("FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFEFFFFFC2F", 16)
		p.N, _ = new(big.Int).SetString("FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFEBAAEDCE6AF48A03BBFD25E8CD0364141", 16)
		p.B, _ = new(big.Int).SetString("0000000000000000000000000000000000000000000000000000000000000007", 16)
		p.Gx, _ = new(big.Int).SetString("79BE667EF9DCBBAC55A06295CE870B07029BFCDB2DCE28D959F2815B16F81798", 16)
		p.Gy, _ = new(big.Int).SetString("483ADA7726A3C4655DA4FBFC0E1108A8FD17B448A68554199C47D08FFB10D4B8", 16)
		p.BitSize = 256
		secp256k1Params = p
	})
	return secp256k1Params
}
