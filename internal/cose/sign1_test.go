package cose

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	s := &Sign1{
		Protected:   []byte{0xa1, 0x01, 0x26},
		Unprotected: map[interface{}]interface{}{},
		Payload:     []byte("payload bytes"),
		Signature:   []byte("signature bytes"),
	}

	b, err := s.Encode()
	require.NoError(t, err)

	got, err := Decode(b)
	require.NoError(t, err)
	require.Equal(t, s.Protected, got.Protected)
	require.Equal(t, s.Payload, got.Payload)
	require.Equal(t, s.Signature, got.Signature)
}

func TestDecodeRejectsShortArray(t *testing.T) {
	_, err := Decode([]byte{0x80})
	require.Error(t, err)
}
