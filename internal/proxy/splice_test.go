package proxy

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSpliceCopiesBothDirections(t *testing.T) {
	aSide, aRemote := net.Pipe()
	bSide, bRemote := net.Pipe()

	done := make(chan struct{})
	go func() {
		Splice(nil, aRemote, bRemote)
		close(done)
	}()

	go func() {
		_, _ = aSide.Write([]byte("hello from a"))
	}()

	buf := make([]byte, 64)
	n, err := io.ReadFull(bSide, buf[:len("hello from a")])
	require.NoError(t, err)
	require.Equal(t, "hello from a", string(buf[:n]))

	go func() {
		_, _ = bSide.Write([]byte("hello from b"))
	}()

	n, err = io.ReadFull(aSide, buf[:len("hello from b")])
	require.NoError(t, err)
	require.Equal(t, "hello from b", string(buf[:n]))

	// net.Pipe has no half-close, so both ends are closed only after both
	// directions have been checked.
	_ = aSide.Close()
	_ = bSide.Close()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("splice did not complete")
	}
}
