package hashpool

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/sha3"
)

func TestHashFileMatchesSHA3512(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.txt")
	content := []byte("SOME DATA MORE DATA")
	require.NoError(t, os.WriteFile(p, content, 0o644))

	want := sha3.Sum512(content)

	var wg sync.WaitGroup
	wg.Add(1)
	var got Result
	pool := New(2)

	pool.Submit(context.Background(), p, func(r Result) {
		got = r
		wg.Done()
	})
	waitOrTimeout(t, &wg)

	require.NoError(t, got.Err)
	require.Equal(t, want[:], got.Digest[:])
}

func TestHashFileMissingDropsJobSilently(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	var got Result
	pool := New(1)

	pool.Submit(context.Background(), "/no/such/file", func(r Result) {
		got = r
		wg.Done()
	})
	waitOrTimeout(t, &wg)
	require.Error(t, got.Err)
}

func TestPoolBoundsConcurrency(t *testing.T) {
	dir := t.TempDir()
	const n = 10
	paths := make([]string, n)
	for i := range paths {
		p := filepath.Join(dir, string(rune('a'+i))+".txt")
		require.NoError(t, os.WriteFile(p, []byte("data"), 0o644))
		paths[i] = p
	}

	var wg sync.WaitGroup
	wg.Add(n)
	pool := New(2)
	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0
	for _, p := range paths {
		// onDone runs while the job still holds its worker slot.
		pool.Submit(context.Background(), p, func(r Result) {
			mu.Lock()
			inFlight++
			if inFlight > maxInFlight {
				maxInFlight = inFlight
			}
			mu.Unlock()
			time.Sleep(10 * time.Millisecond)
			mu.Lock()
			inFlight--
			mu.Unlock()
			wg.Done()
		})
	}
	waitOrTimeout(t, &wg)

	mu.Lock()
	defer mu.Unlock()
	require.LessOrEqual(t, maxInFlight, 2)
}

func waitOrTimeout(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for hash jobs")
	}
}
