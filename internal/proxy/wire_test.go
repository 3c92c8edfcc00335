package proxy

import (
	"bytes"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTripIPv4(t *testing.T) {
	addr := &net.TCPAddr{IP: net.ParseIP("192.0.2.7").To4(), Port: 443}

	var buf bytes.Buffer
	require.NoError(t, WriteHeader(&buf, addr))
	require.Equal(t, []byte{0x04, 0x07, 0x02, 0x00, 0xc0, 0xbb, 0x01}, buf.Bytes())

	got, err := ReadHeader(&buf)
	require.NoError(t, err)
	require.True(t, got.IP.Equal(addr.IP))
	require.Equal(t, addr.Port, got.Port)
}

func TestHeaderRoundTripIPv6(t *testing.T) {
	addr := &net.TCPAddr{IP: net.ParseIP("2001:db8::1"), Port: 8080}

	var buf bytes.Buffer
	require.NoError(t, WriteHeader(&buf, addr))
	require.Equal(t, byte(6), buf.Bytes()[0])

	got, err := ReadHeader(&buf)
	require.NoError(t, err)
	require.True(t, got.IP.Equal(addr.IP))
	require.Equal(t, addr.Port, got.Port)
}

func TestReadHeaderRejectsBadFamily(t *testing.T) {
	_, err := ReadHeader(bytes.NewReader([]byte{9, 0, 0, 0, 0}))
	require.ErrorIs(t, err, ErrProtocolViolation)
}
