package vhd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeChain creates base.vhd and child.vhd in a temporary directory. The
// child locates its parent with a relative path only.
func writeChain(t *testing.T) (dir string, data []byte) {
	t.Helper()

	dir = t.TempDir()
	data = bytes.Repeat([]byte("parent!"), 1000)

	f, err := os.Create(filepath.Join(dir, "base.vhd"))
	require.NoError(t, err)
	base, err := CreateDynamic(f, mib, 64*kib)
	require.NoError(t, err)
	_, err = base.WriteAt(data, 4096)
	require.NoError(t, err)

	g, err := os.Create(filepath.Join(dir, "child.vhd"))
	require.NoError(t, err)
	child, err := CreateDifferencing(g, base, "", `.\base.vhd`)
	require.NoError(t, err)

	require.NoError(t, child.Close())
	require.NoError(t, g.Close())
	require.NoError(t, base.Close())
	require.NoError(t, f.Close())

	return dir, data
}

func TestOpenFileResolvesParent(t *testing.T) {

	dir, data := writeChain(t)

	img, err := OpenFile(filepath.Join(dir, "child.vhd"), nil)
	require.NoError(t, err)
	defer img.Close()

	require.NotNil(t, img.Parent())
	assert.Empty(t, img.Findings())

	got := make([]byte, len(data))
	_, err = img.ReadAt(got, 4096)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// writes land in the child only
	_, err = img.WriteAt([]byte("child"), 4096)
	require.NoError(t, err)
	require.NoError(t, img.Close())

	base, err := OpenFile(filepath.Join(dir, "base.vhd"), &OpenFileArgs{ReadOnly: true})
	require.NoError(t, err)
	defer base.Close()

	_, err = base.ReadAt(got[:5], 4096)
	require.NoError(t, err)
	assert.Equal(t, []byte("paren"), got[:5])
}

func TestOpenFileMissingParent(t *testing.T) {

	dir, _ := writeChain(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "base.vhd")))

	_, err := OpenFile(filepath.Join(dir, "child.vhd"), nil)
	assert.True(t, errors.Is(err, ErrNoParent), "%v", err)
}

func TestOpenFileSuppliedParent(t *testing.T) {

	dir, data := writeChain(t)
	require.NoError(t, os.Rename(filepath.Join(dir, "base.vhd"), filepath.Join(dir, "moved.vhd")))

	base, err := OpenFile(filepath.Join(dir, "moved.vhd"), &OpenFileArgs{ReadOnly: true})
	require.NoError(t, err)
	defer base.Close()

	img, err := OpenFile(filepath.Join(dir, "child.vhd"), &OpenFileArgs{Parent: base})
	require.NoError(t, err)

	got := make([]byte, 7)
	_, err = img.ReadAt(got, 4096)
	require.NoError(t, err)
	assert.Equal(t, data[:7], got)

	// the supplied parent stays usable
	require.NoError(t, img.Close())
	_, err = base.ReadAt(got, 4096)
	assert.NoError(t, err)
}

func TestOpenFileReadOnly(t *testing.T) {

	dir, _ := writeChain(t)

	img, err := OpenFile(filepath.Join(dir, "base.vhd"), &OpenFileArgs{ReadOnly: true})
	require.NoError(t, err)
	defer img.Close()

	_, err = img.WriteAt([]byte{1}, 0)
	assert.True(t, errors.Is(err, ErrReadOnly))
}

func TestLocalPath(t *testing.T) {
	assert.Equal(t, filepath.Join(".", "a", "b.vhd"), filepath.Clean(localPath(`.\a\b.vhd`)))
}
