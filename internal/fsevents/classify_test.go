package fsevents

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sentient-agi/enclave-trust/internal/filetable"
	"github.com/sentient-agi/enclave-trust/internal/hashpool"
	"github.com/sentient-agi/enclave-trust/internal/hashstore"
	"github.com/sentient-agi/enclave-trust/internal/ignore"
)

type fakeMirror struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeMirror() *fakeMirror { return &fakeMirror{data: map[string][]byte{}} }

func (m *fakeMirror) Put(_ context.Context, k string, v []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[k] = append([]byte(nil), v...)
	return nil
}
func (m *fakeMirror) Get(_ context.Context, k string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[k]
	if !ok {
		return nil, hashstore.ErrNotFound
	}
	return v, nil
}
func (m *fakeMirror) Delete(_ context.Context, k string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, k)
	return nil
}

func newTestClassifier(t *testing.T, hashedWG *sync.WaitGroup) (*Classifier, string) {
	t.Helper()
	dir := t.TempDir()

	c := &Classifier{
		Table:  filetable.New(),
		Store:  hashstore.New(newFakeMirror(), nil),
		Pool:   hashpool.New(4),
		Ignore: ignore.New([]string{"tmp_*"}),
		IsDir: func(p string) bool {
			info, err := os.Stat(filepath.Join(dir, p))
			return err == nil && info.IsDir()
		},
		Walk: func(p string) ([]string, error) {
			var out []string
			base := filepath.Join(dir, p)
			err := filepath.WalkDir(base, func(path string, d os.DirEntry, err error) error {
				if err != nil || d.IsDir() {
					return err
				}
				rel, _ := filepath.Rel(dir, path)
				out = append(out, filepath.ToSlash(rel))
				return nil
			})
			return out, err
		},
		Resolve: func(p string) string {
			return filepath.Join(dir, p)
		},
	}
	if hashedWG != nil {
		c.OnHashed = func(path string, digest []byte) { hashedWG.Done() }
	}
	return c, dir
}

func waitWG(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for hash completion")
	}
}

func TestSingleFileWriteLifecycle(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	c, dir := newTestClassifier(t, &wg)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("SOME DATA MORE DATA"), 0o644))

	c.Handle(ctx, Event{Kind: CreateFile, Paths: []string{"a.txt"}})
	rec, ok := c.Table.Get("a.txt")
	require.True(t, ok)
	require.Equal(t, filetable.Created, rec.State)

	c.Handle(ctx, Event{Kind: ModifyData, Paths: []string{"a.txt"}})
	rec, _ = c.Table.Get("a.txt")
	require.Equal(t, filetable.Modified, rec.State)

	c.Handle(ctx, Event{Kind: CloseWrite, Paths: []string{"a.txt"}})
	waitWG(t, &wg)

	rec, _ = c.Table.Get("a.txt")
	require.Equal(t, filetable.Closed, rec.State)
	require.EqualValues(t, 1, rec.Version)

	digest, err := c.Store.Get(ctx, "a.txt")
	require.NoError(t, err)
	require.Len(t, digest, 64)
}

func TestRenamePreservesHashWithoutRehash(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	c, dir := newTestClassifier(t, &wg)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644))
	c.Handle(ctx, Event{Kind: CreateFile, Paths: []string{"a.txt"}})
	c.Handle(ctx, Event{Kind: CloseWrite, Paths: []string{"a.txt"}})
	waitWG(t, &wg)

	before, err := c.Store.Get(ctx, "a.txt")
	require.NoError(t, err)

	require.NoError(t, os.Rename(filepath.Join(dir, "a.txt"), filepath.Join(dir, "b.txt")))
	c.Handle(ctx, Event{Kind: RenameBoth, Paths: []string{"a.txt", "b.txt"}})

	_, err = c.Store.Get(ctx, "a.txt")
	require.ErrorIs(t, err, hashstore.ErrNotFound)

	after, err := c.Store.Get(ctx, "b.txt")
	require.NoError(t, err)
	require.Equal(t, before, after)

	rec, ok := c.Table.Get("b.txt")
	require.True(t, ok)
	require.EqualValues(t, 1, rec.Version)
}

func TestRenameIntoIgnoredDropsTracking(t *testing.T) {
	c, dir := newTestClassifier(t, nil)
	ctx := context.Background()

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "dir"), 0o755))
	c.Table.Create("dir/a.txt")
	c.Table.Create("dir/b.txt")

	require.NoError(t, os.Rename(filepath.Join(dir, "dir"), filepath.Join(dir, "tmp_dir")))
	c.Handle(ctx, Event{Kind: RenameBoth, Paths: []string{"dir", "tmp_dir"}})

	require.Empty(t, c.Table.DescendantsOf("dir"))
}

func TestRenameOutOfIgnoredHashesEachFileOnce(t *testing.T) {
	var wg sync.WaitGroup
	c, dir := newTestClassifier(t, &wg)
	ctx := context.Background()

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "tmp_dir"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tmp_dir", "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tmp_dir", "b.txt"), []byte("b"), 0o644))
	require.NoError(t, os.Rename(filepath.Join(dir, "tmp_dir"), filepath.Join(dir, "dir")))

	wg.Add(2)
	c.Handle(ctx, Event{Kind: RenameBoth, Paths: []string{"tmp_dir", "dir"}})
	waitWG(t, &wg)

	require.Len(t, c.Table.DescendantsOf("dir"), 2)
}

func TestCloseWithNoPriorRecordIsTolerated(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	c, dir := newTestClassifier(t, &wg)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))
	c.Handle(ctx, Event{Kind: CloseWrite, Paths: []string{"a.txt"}})
	waitWG(t, &wg)

	rec, ok := c.Table.Get("a.txt")
	require.True(t, ok)
	require.Equal(t, filetable.Closed, rec.State)
}
