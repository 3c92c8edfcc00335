package hashstore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type memMirror struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemMirror() *memMirror { return &memMirror{data: map[string][]byte{}} }

func (m *memMirror) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memMirror) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return v, nil
}

func (m *memMirror) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func TestPutThenGet(t *testing.T) {
	ctx := context.Background()
	s := New(newMemMirror(), nil)

	s.Put(ctx, "a.txt", []byte("digest-1"))
	got, err := s.Get(ctx, "a.txt")
	require.NoError(t, err)
	require.Equal(t, []byte("digest-1"), got)
}

func TestGetWhilePendingReturnsInProgress(t *testing.T) {
	ctx := context.Background()
	s := New(newMemMirror(), nil)

	s.MarkPending("a.txt")
	_, err := s.Get(ctx, "a.txt")
	require.ErrorIs(t, err, ErrInProgress)

	s.ClearPending("a.txt")
	_, err = s.Get(ctx, "a.txt")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRenameTransfersHistoryWithoutRehash(t *testing.T) {
	ctx := context.Background()
	s := New(newMemMirror(), nil)

	s.Put(ctx, "a.txt", []byte("digest-1"))
	s.Rename(ctx, "a.txt", "b.txt")

	_, err := s.Get(ctx, "a.txt")
	require.ErrorIs(t, err, ErrNotFound)

	got, err := s.Get(ctx, "b.txt")
	require.NoError(t, err)
	require.Equal(t, []byte("digest-1"), got)
}

func TestRemoveClearsBothMirrors(t *testing.T) {
	ctx := context.Background()
	s := New(newMemMirror(), nil)

	s.Put(ctx, "a.txt", []byte("digest-1"))
	s.Remove(ctx, "a.txt")

	_, err := s.Get(ctx, "a.txt")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPutMirrorFailureStillUpdatesInMemory(t *testing.T) {
	ctx := context.Background()
	fails := &failingMirror{}
	var reported string
	s := New(fails, func(op, path string, err error) { reported = op + ":" + path })

	s.Put(ctx, "a.txt", []byte("digest-1"))
	require.Equal(t, "put:a.txt", reported)

	// KV read fails too, but in-memory history still has the digest.
	got, err := s.Get(ctx, "a.txt")
	require.NoError(t, err)
	require.Equal(t, []byte("digest-1"), got)
}

type failingMirror struct{}

func (failingMirror) Put(context.Context, string, []byte) error    { return errors.New("kv down") }
func (failingMirror) Get(context.Context, string) ([]byte, error)  { return nil, errors.New("kv down") }
func (failingMirror) Delete(context.Context, string) error         { return errors.New("kv down") }
