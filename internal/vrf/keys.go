package vrf

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"math/big"

	"github.com/sigstore/sigstore/pkg/cryptoutils"
)

// PrivateKey is an EC private key bound to a VRF cipher suite. The suite
// determines the curve and hash used by Prove/Verify.
type PrivateKey struct {
	Suite Suite
	D     *big.Int
	X, Y  *big.Int
}

// PublicKey is the public half of a PrivateKey.
type PublicKey struct {
	Suite Suite
	X, Y  *big.Int
}

// Public returns the PublicKey matching priv.
func (priv *PrivateKey) Public() PublicKey {
	return PublicKey{Suite: priv.Suite, X: priv.X, Y: priv.Y}
}

// GenerateKey creates a fresh EC keypair on the curve named by suite,
// matching the spec's "key generation at first start picks the EC group
// matching the configured suite" (spec.md §4.H).
func GenerateKey(suite Suite) (*PrivateKey, error) {
	ci, err := infoFor(suite)
	if err != nil {
		return nil, err
	}
	sk, err := ecdsa.GenerateKey(ci.curve, rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{Suite: suite, D: sk.D, X: sk.X, Y: sk.Y}, nil
}

// MarshalPKCS8PEM encodes priv as hex-free PKCS#8 PEM bytes, the on-disk and
// on-config-file representation named in spec.md §3.
func (priv *PrivateKey) MarshalPKCS8PEM() ([]byte, error) {
	ci, err := infoFor(priv.Suite)
	if err != nil {
		return nil, err
	}
	sk := &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{Curve: ci.curve, X: priv.X, Y: priv.Y},
		D:         priv.D,
	}
	return cryptoutils.MarshalPrivateKeyToPEM(sk)
}

// UnmarshalPKCS8PEM reconstructs a PrivateKey of the given suite from PEM
// bytes produced by MarshalPKCS8PEM.
func UnmarshalPKCS8PEM(suite Suite, pemBytes []byte) (*PrivateKey, error) {
	key, err := cryptoutils.UnmarshalPEMToPrivateKey(pemBytes, cryptoutils.SkipPassword)
	if err != nil {
		return nil, err
	}
	sk, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, errors.New("vrf: PEM block is not an EC private key")
	}
	return &PrivateKey{Suite: suite, D: sk.D, X: sk.X, Y: sk.Y}, nil
}

// MarshalPublicKey returns the uncompressed point encoding (0x04 || X || Y)
// of pub, padded to the curve's coordinate size.
func MarshalPublicKey(pub PublicKey) ([]byte, error) {
	ci, err := infoFor(pub.Suite)
	if err != nil {
		return nil, err
	}
	return elliptic.Marshal(ci.curve, pub.X, pub.Y), nil
}

// UnmarshalPublicKey parses the encoding produced by MarshalPublicKey.
func UnmarshalPublicKey(suite Suite, b []byte) (PublicKey, error) {
	ci, err := infoFor(suite)
	if err != nil {
		return PublicKey{}, err
	}
	x, y := elliptic.Unmarshal(ci.curve, b)
	if x == nil {
		return PublicKey{}, errors.New("vrf: invalid public key encoding")
	}
	return PublicKey{Suite: suite, X: x, Y: y}, nil
}
