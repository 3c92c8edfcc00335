package pathutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeRejectsInvalidUTF8(t *testing.T) {
	resetForTest()
	_, err := Normalize(string([]byte{0xff, 0xfe}))
	require.ErrorIs(t, err, ErrRejected)
}

func TestNormalizeStripsDotSlash(t *testing.T) {
	resetForTest()
	got, err := Normalize("./a.txt")
	require.NoError(t, err)
	require.Equal(t, "a.txt", got)
}

func TestNormalizeAgainstRoot(t *testing.T) {
	resetForTest()
	dir := t.TempDir()
	require.NoError(t, SetRoot(dir))

	f := filepath.Join(dir, "sub", "a.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(f), 0o755))
	require.NoError(t, os.WriteFile(f, []byte("x"), 0o644))

	got, err := Normalize(f)
	require.NoError(t, err)
	require.Equal(t, "sub/a.txt", got)
}

func TestNormalizeRejectsOutsideRoot(t *testing.T) {
	resetForTest()
	dir := t.TempDir()
	require.NoError(t, SetRoot(dir))

	_, err := Normalize(filepath.Join(filepath.Dir(dir), "elsewhere.txt"))
	require.ErrorIs(t, err, ErrRejected)
}

func TestNormalizeLexicalFallbackForDeletedPath(t *testing.T) {
	resetForTest()
	dir := t.TempDir()
	require.NoError(t, SetRoot(dir))

	got, err := Normalize(filepath.Join(dir, "gone", "..", "still-gone.txt"))
	require.NoError(t, err)
	require.Equal(t, "still-gone.txt", got)
}

func TestSetRootOnlyOnce(t *testing.T) {
	resetForTest()
	dir := t.TempDir()
	require.NoError(t, SetRoot(dir))
	err := SetRoot(t.TempDir())
	require.ErrorIs(t, err, ErrRootAlreadySet)
}
