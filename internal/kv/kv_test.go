package kv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sentient-agi/enclave-trust/internal/attestation"
)

// TestHashMirrorRoundTrip and TestIngestWalksThenWatches require a live
// nats-server with JetStream enabled; they are skipped outside of an
// environment that has one (spec.md's core invariants for this package are
// otherwise covered by internal/hashstore's mirror-fake tests).
func requireLiveNATS(t *testing.T) *Bus {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping NATS-backed test in short mode")
	}
	bus, err := Connect("nats://127.0.0.1:4222")
	if err != nil {
		t.Skip("no local nats-server with JetStream reachable: " + err.Error())
	}
	return bus
}

func TestHashMirrorRoundTrip(t *testing.T) {
	bus := requireLiveNATS(t)
	defer bus.Close()

	mirror, err := NewHashMirror(bus, "fs_hashes_test")
	require.NoError(t, err)

	ctx := context.Background()
	digest := []byte("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcd")
	require.NoError(t, mirror.Put(ctx, "a.txt", digest))

	got, err := mirror.Get(ctx, "a.txt")
	require.NoError(t, err)
	require.Equal(t, digest, got)

	require.NoError(t, mirror.Delete(ctx, "a.txt"))
	_, err = mirror.Get(ctx, "a.txt")
	require.Error(t, err)
}

func TestIngestWalksThenWatches(t *testing.T) {
	bus := requireLiveNATS(t)
	defer bus.Close()

	mirror, err := NewHashMirror(bus, "fs_hashes_ingest_test")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, mirror.Put(ctx, "pre-existing.txt", []byte("digest-1")))

	ingestCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	entries, err := Ingest(ingestCtx, bus, "fs_hashes_ingest_test", nil)
	require.NoError(t, err)

	select {
	case e := <-entries:
		require.Equal(t, "pre-existing.txt", e.Path)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for walked entry")
	}

	// The watcher first re-delivers the current value of every key.
	select {
	case e := <-entries:
		require.Equal(t, "pre-existing.txt", e.Path)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for replayed entry")
	}

	require.NoError(t, mirror.Put(ctx, "live.txt", []byte("digest-2")))

	select {
	case e := <-entries:
		require.Equal(t, "live.txt", e.Path)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watched entry")
	}
}

func TestAttestationPublisherPublishesJSON(t *testing.T) {
	bus := requireLiveNATS(t)
	defer bus.Close()

	pub, err := NewAttestationPublisher(bus, "fs_att_docs_test")
	require.NoError(t, err)

	rec := attestation.Record{Path: "a.txt", DigestHex: "ab", VRFProofHex: "cd", VRFCipherSuite: "P256_SHA256_TAI"}
	require.NoError(t, pub.Publish(context.Background(), rec))
}
