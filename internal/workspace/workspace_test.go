package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateAndCleanup(t *testing.T) {
	m := NewManager(t.TempDir())
	require.NoError(t, m.Create())

	path := m.GetPath()
	require.True(t, strings.Contains(filepath.Base(path), "docpublish-"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.True(t, info.IsDir())

	require.NoError(t, m.Cleanup())
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
	require.Empty(t, m.GetPath())
}

func TestCreateSubdir(t *testing.T) {
	m := NewManager(t.TempDir())
	require.NoError(t, m.Create())
	t.Cleanup(func() { _ = m.Cleanup() })

	sub, err := m.CreateSubdir("staging")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(m.GetPath(), "staging"), sub)

	info, err := os.Stat(sub)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestCreateSubdir_RequiresCreate(t *testing.T) {
	m := NewManager(t.TempDir())
	_, err := m.CreateSubdir("staging")
	require.Error(t, err)
}

func TestCleanupWithoutCreateIsNoop(t *testing.T) {
	m := NewManager(t.TempDir())
	require.NoError(t, m.Cleanup())
}
