package proxy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestDialVsockWithBackoffHonorsCancellation exercises the retry loop's
// ctx-aware sleep: dialing vsock fails immediately in this environment (no
// AF_VSOCK support), so the loop falls into its first backoff wait, and a
// short-lived ctx should win that race.
func TestDialVsockWithBackoffHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := DialVsockWithBackoff(ctx, VsockAddr{CID: 3, Port: 9999}, nil)
	require.Error(t, err)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestVsockAddrString(t *testing.T) {
	require.Equal(t, "3:1200", VsockAddr{CID: 3, Port: 1200}.String())
}
