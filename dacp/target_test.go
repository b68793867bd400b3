package dacp

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTarget(t *testing.T) {
	target, err := ParseTarget("  A1B2C3D4E5F60708 \r\n2694719034\n")
	require.NoError(t, err)
	require.Equal(t, Target{DACPID: "A1B2C3D4E5F60708", ActiveRemote: "2694719034"}, target)

	target, err = ParseTarget("ABC\n123")
	require.NoError(t, err)
	require.Equal(t, "123", target.ActiveRemote)

	for _, bad := range []string{"", "ABC\n", "ABC\n123\nextra\n", "ABC\n123\n\n", "\n123\n"} {
		_, err := ParseTarget(bad)
		require.ErrorIs(t, err, ErrMalformedTarget, "%q", bad)
	}
}

func TestLoadTargetMissingFile(t *testing.T) {
	_, err := LoadTarget(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}
