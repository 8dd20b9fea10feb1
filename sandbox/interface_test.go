package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealCommandRunner(t *testing.T) {
	runner := RealCommandRunner{}
	ctx := context.Background()

	t.Run("NoCommand", func(t *testing.T) {
		_, _, _, err := runner.RunCommand(ctx, nil)
		require.Error(t, err)
	})

	t.Run("Stdout", func(t *testing.T) {
		stdout, _, exitCode, err := runner.RunCommand(ctx, []string{"sh", "-c", "echo hello"})
		require.NoError(t, err)
		assert.Equal(t, "hello\n", stdout)
		assert.Equal(t, 0, exitCode)
	})

	t.Run("NonZeroExit", func(t *testing.T) {
		_, stderr, exitCode, err := runner.RunCommand(ctx, []string{"sh", "-c", "echo oops >&2; exit 3"})
		require.NoError(t, err)
		assert.Equal(t, "oops\n", stderr)
		assert.Equal(t, 3, exitCode)
	})

	t.Run("MissingBinary", func(t *testing.T) {
		_, _, _, err := runner.RunCommand(ctx, []string{"dataagent-no-such-binary"})
		require.Error(t, err)
	})
}

func TestRealFileSystem(t *testing.T) {
	fs := RealFileSystem{}

	dir, err := fs.MkdirTemp(t.TempDir(), "job-*")
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())

	require.NoError(t, fs.Chmod(dir, DirPermission))
	info, err = os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(DirPermission), info.Mode().Perm())

	path := filepath.Join(dir, FilenameSnippet)
	require.NoError(t, fs.WriteFile(path, []byte("print(1)"), FilePermission))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "print(1)", string(data))

	require.NoError(t, fs.RemoveAll(dir))
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}
