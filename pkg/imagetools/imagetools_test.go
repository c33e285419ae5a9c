package imagetools

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vorteil/vsparse/pkg/vhd"
	"github.com/vorteil/vsparse/pkg/vio"
)

const (
	kib = 0x400
	mib = 0x100000
)

func chain(t *testing.T) (parent, child *vhd.Image) {
	t.Helper()

	parent, err := vhd.CreateDynamic(vio.NewBuffer(nil), mib, 64*kib)
	require.NoError(t, err)
	_, err = parent.WriteAt([]byte("base layer"), 1000)
	require.NoError(t, err)

	child, err = vhd.CreateDifferencing(vio.NewBuffer(nil), parent, `C:\disks\base.vhd`, `.\base.vhd`)
	require.NoError(t, err)
	_, err = child.WriteAt([]byte("child"), 200*kib)
	require.NoError(t, err)

	return parent, child
}

func TestCatImage(t *testing.T) {

	_, child := chain(t)

	rdr, err := CatImage(child, 1000, 10)
	require.NoError(t, err)
	got, err := ioutil.ReadAll(rdr)
	require.NoError(t, err)
	assert.Equal(t, "base layer", string(got))

	rdr, err = CatImage(child, mib-4, -1)
	require.NoError(t, err)
	got, err = ioutil.ReadAll(rdr)
	require.NoError(t, err)
	assert.Len(t, got, 4)

	_, err = CatImage(child, mib+1, 1)
	assert.Error(t, err)
}

func TestCatImageCompressed(t *testing.T) {

	_, child := chain(t)

	var out bytes.Buffer
	n, err := CatImageTo(&out, child, 0, -1, true)
	require.NoError(t, err)
	assert.Equal(t, int64(mib), n)

	dec, err := zstd.NewReader(&out)
	require.NoError(t, err)
	defer dec.Close()

	got, err := ioutil.ReadAll(dec)
	require.NoError(t, err)
	require.Len(t, got, mib)
	assert.Equal(t, "child", string(got[200*kib:200*kib+5]))
}

func TestMDSumImage(t *testing.T) {

	_, child := chain(t)

	want := make([]byte, mib)
	copy(want[1000:], "base layer")
	copy(want[200*kib:], "child")
	sum := md5.Sum(want)

	got, err := MDSumImage(child)
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(sum[:]), got)

	// a raw file with the same contents hashes the same
	path := filepath.Join(t.TempDir(), "disk.raw")
	require.NoError(t, ioutil.WriteFile(path, want, 0644))
	got, err = MDSumImageFile(path)
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(sum[:]), got)
}

func TestStatImage(t *testing.T) {

	parent, child := chain(t)

	s := StatImage(child)
	assert.Equal(t, "differencing", s.DiskType)
	assert.Equal(t, int64(mib), s.Capacity)
	assert.Equal(t, int64(64*kib), s.BlockSize)
	assert.Equal(t, 16, s.Blocks)
	assert.Equal(t, 1, s.AllocatedBlocks)
	assert.Equal(t, "base.vhd", s.ParentName)
	assert.Equal(t, parent.Footer().UniqueID.String(), s.ParentID)
	assert.Len(t, s.ParentPaths, 2)

	fixed, err := vhd.CreateFixed(vio.NewBuffer(nil), 64*kib)
	require.NoError(t, err)
	s = StatImage(fixed)
	assert.Equal(t, "fixed", s.DiskType)
	assert.Zero(t, s.BlockSize)
}

func TestDUImage(t *testing.T) {

	_, child := chain(t)

	du, err := DUImage(child, "child.vhd")
	require.NoError(t, err)
	require.Len(t, du.Layers, 2)

	assert.Equal(t, "child.vhd", du.Layers[0].Name)
	assert.Equal(t, int64(64*kib), du.Layers[0].Allocated)
	assert.Equal(t, int64(512), du.Layers[0].Present)

	assert.Equal(t, "base.vhd", du.Layers[1].Name)
	assert.Equal(t, "dynamic", du.Layers[1].DiskType)
	assert.Equal(t, int64(512), du.Layers[1].Present)
}

func TestTreeImage(t *testing.T) {

	_, child := chain(t)

	tree := TreeImage(child, "child.vhd")
	lines := strings.Split(tree.String(), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "child.vhd (differencing"))
	assert.Equal(t, `├── locator W2ku: C:\disks\base.vhd`, lines[1])
	assert.Equal(t, `├── locator W2ru: .\base.vhd`, lines[2])
	assert.True(t, strings.HasPrefix(lines[3], "└── base.vhd (dynamic"))
}

func TestMapImage(t *testing.T) {

	_, child := chain(t)

	entries, err := MapImage(child, 0, 256*kib)
	require.NoError(t, err)

	require.Len(t, entries, 3)
	assert.Equal(t, MapEntry{Logical: 0, Length: 200 * kib, Physical: -1, Source: "parent"}, entries[0])
	assert.Equal(t, "image", entries[1].Source)
	assert.Equal(t, int64(200*kib), entries[1].Logical)
	assert.Equal(t, int64(512), entries[1].Length)
	assert.Equal(t, "parent", entries[2].Source)
	assert.Equal(t, int64(256*kib), entries[2].Logical+entries[2].Length)
}
