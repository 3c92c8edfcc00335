package verifyapi

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sentient-agi/enclave-trust/internal/hsm"
	"github.com/sentient-agi/enclave-trust/internal/vrf"
)

func TestVerifyProofRoundTrip(t *testing.T) {
	key, err := vrf.GenerateKey(vrf.P256SHA256TAI)
	require.NoError(t, err)

	msg := []byte("hello world")
	proof, err := vrf.Prove(key, msg)
	require.NoError(t, err)
	pubBytes, err := vrf.MarshalPublicKey(key.Public())
	require.NoError(t, err)

	valid, err := VerifyProof(vrf.P256SHA256TAI, msg, pubBytes, proof)
	require.NoError(t, err)
	require.True(t, valid)

	valid, err = VerifyProof(vrf.P256SHA256TAI, []byte("different"), pubBytes, proof)
	require.NoError(t, err)
	require.False(t, valid)
}

func TestParseAndValidateDebugDocument(t *testing.T) {
	dev, err := hsm.NewDebugDevice("debug")
	require.NoError(t, err)

	doc, err := dev.Attestation([]byte("user-data"), []byte("nonce"), []byte("pubkey"))
	require.NoError(t, err)

	verdict, err := ParseAndValidate(doc)
	require.NoError(t, err)
	require.True(t, verdict.SignatureValid)
	require.True(t, verdict.ChainValid)
	require.True(t, verdict.TimeValid)
	require.True(t, verdict.Valid())
	require.Equal(t, "debug", verdict.Payload.ModuleID)
}

func TestParseAndValidateRejectsGarbage(t *testing.T) {
	_, err := ParseAndValidate([]byte{0x01, 0x02, 0x03})
	require.Error(t, err)
}
