// Package hashstore implements the durable hash store of spec §4.D: an
// in-memory index backed by an external KV mirror, with a pending-jobs set
// that guards Get against stale reads while a hash job is in flight.
package hashstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/sentient-agi/enclave-trust/internal/syncmap"
)

// ErrInProgress is returned by Get when the path has a hash job in flight.
var ErrInProgress = errors.New("hashstore: hashing in progress")

// ErrNotFound is returned by Get when no digest is recorded for the path.
var ErrNotFound = errors.New("hashstore: not found")

// Mirror is the external replicated KV bucket backing the store (spec §6's
// fs_hashes bucket). Implementations must tolerate concurrent callers.
type Mirror interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

type entry struct {
	history [][]byte
}

// Store is the concurrent Path -> history map plus its KV mirror.
type Store struct {
	mirror  Mirror
	entries *syncmap.Map[entry]
	pending *syncmap.Map[struct{}]
	onError func(op, path string, err error)
}

// New creates a Store backed by mirror. onError, if non-nil, receives
// mirror failures for logging; mirror failures never roll back the
// in-memory update (I4 is eventual, not synchronous).
func New(mirror Mirror, onError func(op, path string, err error)) *Store {
	return &Store{
		mirror:  mirror,
		entries: syncmap.New[entry](),
		pending: syncmap.New[struct{}](),
		onError: onError,
	}
}

// MarkPending records that a hash job for path is in flight. Must be called
// before the hash worker is spawned (spec §4.D ordering).
func (s *Store) MarkPending(path string) {
	s.pending.Set(path, struct{}{})
}

// ClearPending clears the pending flag for path. Must be called after the
// in-memory append following a successful worker completes.
func (s *Store) ClearPending(path string) {
	s.pending.Delete(path)
}

// Put appends digest to path's history and writes it to the KV mirror. A
// mirror failure is reported via onError but the in-memory state still
// reflects the new digest.
func (s *Store) Put(ctx context.Context, path string, digest []byte) {
	cp := append([]byte(nil), digest...)
	s.entries.Update(path, func(e entry, ok bool) (entry, bool) {
		e.history = append(e.history, cp)
		return e, true
	})

	if err := s.mirror.Put(ctx, path, cp); err != nil && s.onError != nil {
		s.onError("put", path, err)
	}
}

// Get returns the latest digest for path. While a hash job is in flight
// (pending flag set) it returns ErrInProgress. Otherwise the KV mirror is
// authoritative, per the spec's resolved Open Question; the in-memory
// history is used only when the mirror read fails.
func (s *Store) Get(ctx context.Context, path string) ([]byte, error) {
	if _, pending := s.pending.Get(path); pending {
		return nil, ErrInProgress
	}

	v, err := s.mirror.Get(ctx, path)
	if err == nil {
		return v, nil
	}

	if e, ok := s.entries.Get(path); ok && len(e.history) > 0 {
		return e.history[len(e.history)-1], nil
	}

	return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
}

// Remove deletes path from both mirrors.
func (s *Store) Remove(ctx context.Context, path string) {
	s.entries.Delete(path)
	if err := s.mirror.Delete(ctx, path); err != nil && s.onError != nil {
		s.onError("delete", path, err)
	}
}

// Rename moves path's history from oldPath to newPath without re-hashing:
// per the spec's resolved Open Question, a rename does not alter contents,
// so the prior history is transferred rather than recomputed.
func (s *Store) Rename(ctx context.Context, oldPath, newPath string) {
	e, ok := s.entries.Delete(oldPath)
	if !ok {
		return
	}
	s.entries.Set(newPath, e)

	if err := s.mirror.Delete(ctx, oldPath); err != nil && s.onError != nil {
		s.onError("delete", oldPath, err)
	}
	if len(e.history) == 0 {
		return
	}
	latest := e.history[len(e.history)-1]
	if err := s.mirror.Put(ctx, newPath, latest); err != nil && s.onError != nil {
		s.onError("put", newPath, err)
	}
}
