package ignore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsIgnoredMatchesPathComponent(t *testing.T) {
	m := New([]string{"tmp_*", "*.log"})

	require.True(t, m.IsIgnored("tmp_dir"))
	require.True(t, m.IsIgnored("tmp_dir/a.txt"))
	require.True(t, m.IsIgnored("sub/debug.log"))
	require.False(t, m.IsIgnored("sub/a.txt"))
}

func TestIsIgnoredEmptyMatcher(t *testing.T) {
	m := New(nil)
	require.False(t, m.IsIgnored("anything"))
}
