package vrf

import (
	"crypto/elliptic"
	"errors"
	"math/big"
)

// ErrProofGeneration covers any failure to produce a proof, including a
// hash-to-curve search exhausting its counter.
var ErrProofGeneration = errors.New("vrf: proof generation failed")

// ErrInvalidProof is returned by Verify/decode when proof bytes are
// malformed or have the wrong length for the suite.
var ErrInvalidProof = errors.New("vrf: invalid proof encoding")

const hashToCurveTries = 256

// hashToCurveTAI implements try-and-increment hash-to-curve: it hashes the
// public key and message together with an incrementing counter until the
// resulting field element is a valid curve x-coordinate with a square
// y^2 = x^3 + a*x + b (mod p). Including the public key bytes in the hash
// matches RFC 9381's domain separation between different signers' VRF
// outputs for the same message.
func hashToCurveTAI(ci curveInfo, pubBytes, alpha []byte) (x, y *big.Int, err error) {
	p := ci.curve.Params().P
	a := big.NewInt(ci.a)
	a.Mod(a, p)

	for ctr := 0; ctr < hashToCurveTries; ctr++ {
		h := ci.newHash()
		h.Write([]byte(ci.suite))
		h.Write([]byte{0x01})
		h.Write(pubBytes)
		h.Write(alpha)
		h.Write([]byte{byte(ctr)})
		sum := h.Sum(nil)

		cx := new(big.Int).SetBytes(sum)
		cx.Mod(cx, p)

		rhs := new(big.Int).Exp(cx, big.NewInt(3), p)
		ax := new(big.Int).Mul(a, cx)
		rhs.Add(rhs, ax)
		rhs.Add(rhs, ci.curve.Params().B)
		rhs.Mod(rhs, p)

		cy := new(big.Int).ModSqrt(rhs, p)
		if cy != nil {
			return cx, cy, nil
		}
	}
	return nil, nil, ErrProofGeneration
}

// deterministicScalar derives a nonzero scalar mod N from an arbitrary seed,
// used both for the VRF proof's per-message nonce k and for NonceFor.
func deterministicScalar(ci curveInfo, seed ...[]byte) *big.Int {
	h := ci.newHash()
	for _, s := range seed {
		h.Write(s)
	}
	k := new(big.Int).SetBytes(h.Sum(nil))
	n := ci.curve.Params().N
	k.Mod(k, n)
	if k.Sign() == 0 {
		k.SetInt64(1)
	}
	return k
}

func hashPoints(ci curveInfo, coords ...*big.Int) *big.Int {
	h := ci.newHash()
	for _, c := range coords {
		h.Write(c.Bytes())
	}
	c := new(big.Int).SetBytes(h.Sum(nil))
	c.Mod(c, ci.curve.Params().N)
	return c
}

func padTo(b []byte, size int) []byte {
	if len(b) >= size {
		return b
	}
	out := make([]byte, size)
	copy(out[size-len(b):], b)
	return out
}

// Prove computes a VRF proof over alpha using priv, per spec.md §4.H's
// `prove(message, cipher_suite)`. The construction is a Chaum-Pedersen
// discrete-log-equality proof that gamma = H(alpha)^sk, which is the core
// of ECVRF regardless of the exact RFC 9381 byte encoding.
func Prove(priv *PrivateKey, alpha []byte) ([]byte, error) {
	ci, err := infoFor(priv.Suite)
	if err != nil {
		return nil, err
	}
	pubBytes := elliptic.Marshal(ci.curve, priv.X, priv.Y)

	hx, hy, err := hashToCurveTAI(ci, pubBytes, alpha)
	if err != nil {
		return nil, err
	}

	gx, gy := ci.curve.ScalarMult(hx, hy, priv.D.Bytes())

	k := deterministicScalar(ci, priv.D.Bytes(), alpha, []byte("nonce"))
	ux, uy := ci.curve.ScalarBaseMult(k.Bytes())
	vx, vy := ci.curve.ScalarMult(hx, hy, k.Bytes())

	c := hashPoints(ci, hx, hy, gx, gy, ux, uy, vx, vy)

	s := new(big.Int).Mul(c, priv.D)
	s.Add(s, k)
	s.Mod(s, ci.curve.Params().N)

	size := ci.coordSize()
	proof := make([]byte, 0, 2*size+2*size)
	proof = append(proof, padTo(gx.Bytes(), size)...)
	proof = append(proof, padTo(gy.Bytes(), size)...)
	proof = append(proof, padTo(c.Bytes(), size)...)
	proof = append(proof, padTo(s.Bytes(), size)...)
	return proof, nil
}

// Verify recomputes the VRF challenge from proof and compares it to the
// embedded challenge, per spec.md §4.H's `verify(message, proof,
// public_key, cipher_suite)`.
func Verify(pub PublicKey, alpha, proof []byte) (bool, error) {
	ci, err := infoFor(pub.Suite)
	if err != nil {
		return false, err
	}
	size := ci.coordSize()
	if len(proof) != 4*size {
		return false, ErrInvalidProof
	}
	gx := new(big.Int).SetBytes(proof[0:size])
	gy := new(big.Int).SetBytes(proof[size : 2*size])
	c := new(big.Int).SetBytes(proof[2*size : 3*size])
	s := new(big.Int).SetBytes(proof[3*size : 4*size])

	if !ci.curve.IsOnCurve(gx, gy) {
		return false, ErrInvalidProof
	}

	pubBytes := elliptic.Marshal(ci.curve, pub.X, pub.Y)
	hx, hy, err := hashToCurveTAI(ci, pubBytes, alpha)
	if err != nil {
		return false, err
	}

	n := ci.curve.Params().N
	negC := new(big.Int).Sub(n, c)
	negC.Mod(negC, n)

	sgx, sgy := ci.curve.ScalarBaseMult(s.Bytes())
	cqx, cqy := ci.curve.ScalarMult(pub.X, pub.Y, negC.Bytes())
	ux, uy := ci.curve.Add(sgx, sgy, cqx, cqy)

	shx, shy := ci.curve.ScalarMult(hx, hy, s.Bytes())
	cgx, cgy := ci.curve.ScalarMult(gx, gy, negC.Bytes())
	vx, vy := ci.curve.Add(shx, shy, cgx, cgy)

	c2 := hashPoints(ci, hx, hy, gx, gy, ux, uy, vx, vy)
	return c2.Cmp(c) == 0, nil
}

// DerivePublicKey returns the uncompressed point encoding of priv's public
// key, per spec.md §4.H's `derive_public_key()`.
func DerivePublicKey(priv *PrivateKey) ([]byte, error) {
	return MarshalPublicKey(priv.Public())
}

// NonceFor derives a deterministic, message-bound nonce independent of the
// VRF proof itself, per spec.md §4.H's `nonce_for(message)`. It is used as
// the HSM attestation request nonce (spec.md §4.J step 2).
func NonceFor(priv *PrivateKey, message []byte) ([]byte, error) {
	ci, err := infoFor(priv.Suite)
	if err != nil {
		return nil, err
	}
	n := deterministicScalar(ci, priv.D.Bytes(), message, []byte("hsm-nonce"))
	return padTo(n.Bytes(), ci.coordSize()), nil
}
