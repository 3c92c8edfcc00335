// Package hashpool runs content hashing on a bounded pool of goroutines, so
// that an unbounded burst of write-close events never spawns unbounded
// concurrent file I/O (spec §4.C, §5).
package hashpool

import (
	"context"
	"io"
	"os"

	"golang.org/x/crypto/sha3"
)

const chunkSize = 8 * 1024

// Digest is a raw SHA3-512 digest (64 bytes).
type Digest [64]byte

// Result is passed to the onDone callback given to Pool.Submit for every
// finished (or failed) job.
type Result struct {
	Path   string
	Digest Digest
	Err    error
}

// Pool bounds concurrent hash jobs to the size given to New, mirroring the
// teacher's pattern of offloading blocking work onto a fixed worker count
// rather than letting goroutines run unbounded.
type Pool struct {
	sem chan struct{}
}

// New creates a Pool with the given maximum concurrency.
func New(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{sem: make(chan struct{}, size)}
}

// Submit enqueues a hash job for path. It is non-blocking for the caller:
// acquiring a worker slot and reading the file both happen on a spawned
// goroutine. onDone is invoked exactly once from a pool goroutine when the
// job finishes (or fails) and must not block; if ctx is canceled before a
// worker slot frees, the job is abandoned and onDone is not called. I/O
// errors are reported via Result.Err and the job is dropped silently — per
// spec §4.C there is no
// automatic retry; a future write-close generates a fresh job.
func (p *Pool) Submit(ctx context.Context, path string, onDone func(Result)) {
	go func() {
		select {
		case p.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		defer func() { <-p.sem }()

		d, err := hashFile(path)
		if onDone != nil {
			onDone(Result{Path: path, Digest: d, Err: err})
		}
	}()
}

// hashFile streams path through SHA3-512 in fixed chunkSize reads, never
// buffering the whole file in memory.
func hashFile(path string) (Digest, error) {
	var d Digest

	f, err := os.Open(path)
	if err != nil {
		return d, err
	}
	defer f.Close()

	h := sha3.New512()
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return d, err
	}

	copy(d[:], h.Sum(nil))
	return d, nil
}
