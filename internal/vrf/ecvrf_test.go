package vrf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProveVerifyRoundTrip(t *testing.T) {
	for _, suite := range []Suite{SECP256K1SHA256TAI, P256SHA256TAI, SECP521R1SHA512TAI} {
		suite := suite
		t.Run(string(suite), func(t *testing.T) {
			priv, err := GenerateKey(suite)
			require.NoError(t, err)

			msg := []byte(`{"path":"a.txt","digest_hex":"deadbeef"}`)
			proof, err := Prove(priv, msg)
			require.NoError(t, err)

			ok, err := Verify(priv.Public(), msg, proof)
			require.NoError(t, err)
			require.True(t, ok)

			ok, err = Verify(priv.Public(), []byte("different message"), proof)
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestMarshalPKCS8PEMRoundTrip(t *testing.T) {
	priv, err := GenerateKey(P256SHA256TAI)
	require.NoError(t, err)

	pemBytes, err := priv.MarshalPKCS8PEM()
	require.NoError(t, err)

	restored, err := UnmarshalPKCS8PEM(P256SHA256TAI, pemBytes)
	require.NoError(t, err)
	require.Equal(t, priv.D, restored.D)
	require.Equal(t, 0, priv.X.Cmp(restored.X))
	require.Equal(t, 0, priv.Y.Cmp(restored.Y))
}

func TestNonceForIsDeterministicAndMessageBound(t *testing.T) {
	priv, err := GenerateKey(SECP521R1SHA512TAI)
	require.NoError(t, err)

	n1, err := NonceFor(priv, []byte("a"))
	require.NoError(t, err)
	n2, err := NonceFor(priv, []byte("a"))
	require.NoError(t, err)
	require.Equal(t, n1, n2)

	n3, err := NonceFor(priv, []byte("b"))
	require.NoError(t, err)
	require.NotEqual(t, n1, n3)
}
