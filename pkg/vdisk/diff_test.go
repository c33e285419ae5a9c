package vdisk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vorteil/vsparse/pkg/vhd"
	"github.com/vorteil/vsparse/pkg/vio"
)

func TestLocatorPaths(t *testing.T) {

	dir := t.TempDir()

	abs, rel, err := LocatorPaths(filepath.Join(dir, "base.vhd"), filepath.Join(dir, "snap", "child.vhd"))
	require.NoError(t, err)
	assert.Equal(t, `..\base.vhd`, rel)
	assert.Contains(t, abs, `\base.vhd`)

	_, rel, err = LocatorPaths(filepath.Join(dir, "base.vhd"), filepath.Join(dir, "child.vhd"))
	require.NoError(t, err)
	assert.Equal(t, `.\base.vhd`, rel)
}

func TestWriteDifferencing(t *testing.T) {

	dir := t.TempDir()
	basePath := filepath.Join(dir, "base.vhd")
	childPath := filepath.Join(dir, "child.vhd")

	bf, err := os.Create(basePath)
	require.NoError(t, err)
	base, err := vhd.CreateDynamic(bf, 4*mib, 0)
	require.NoError(t, err)
	_, err = base.WriteAt([]byte("from the parent"), 3*mib)
	require.NoError(t, err)
	require.NoError(t, base.Flush())

	cf, err := os.Create(childPath)
	require.NoError(t, err)
	err = WriteDifferencing(cf, &DifferencingArgs{
		Parent:     base,
		ParentPath: basePath,
		ChildPath:  childPath,
		CreatorApp: "test",
	})
	require.NoError(t, err)
	require.NoError(t, cf.Close())
	require.NoError(t, base.Close())
	require.NoError(t, bf.Close())

	child, err := vhd.OpenFile(childPath, &vhd.OpenFileArgs{ReadOnly: true})
	require.NoError(t, err)
	defer child.Close()

	assert.Equal(t, vhd.DiskTypeDifferencing, child.DiskType())
	assert.Equal(t, int64(4*mib), child.Size())
	assert.Equal(t, "test", string(child.Footer().CreatorApp[:]))
	assert.Equal(t, "base.vhd", child.Header().ParentName())
	assert.Zero(t, child.BAT().Allocated())

	got := make([]byte, 15)
	_, err = child.ReadAt(got, 3*mib)
	require.NoError(t, err)
	assert.Equal(t, "from the parent", string(got))

	err = WriteDifferencing(vio.NewBuffer(nil), &DifferencingArgs{})
	assert.True(t, errors.Is(err, vhd.ErrNoParent))
}
