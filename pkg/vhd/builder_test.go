package vhd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vorteil/vsparse/pkg/vio"
)

// sparseFixture returns random data with everything outside extents zeroed,
// wrapped as a sparse source.
func sparseFixture(t *testing.T, size int64, extents []vio.Extent) ([]byte, vio.SparseSource) {
	t.Helper()

	noise := randomBytes(42, int(size))
	data := make([]byte, size)
	for _, e := range extents {
		copy(data[e.Start:e.End()], noise[e.Start:e.End()])
	}

	// the source holds noise everywhere; only the extents are meant to count
	src, err := vio.ExtentSource(bytes.NewReader(noise), size, extents)
	require.NoError(t, err)

	return data, src
}

func buildImage(t *testing.T, args *BuilderArgs) (*Builder, *vio.Buffer) {
	t.Helper()

	b, err := NewBuilder(args)
	require.NoError(t, err)

	buf := vio.NewBuffer(nil)
	n, err := b.WriteTo(buf)
	require.NoError(t, err)
	require.Equal(t, b.Size(), n)

	return b, buf
}

func TestBuilderRoundTrip(t *testing.T) {

	const bs = 64 * kib
	size := int64(mib + 3000)
	extents := []vio.Extent{
		{Start: 10, Length: 100},
		{Start: 5000, Length: 70000},
		{Start: 600 * kib, Length: 1},
		{Start: mib, Length: 3000},
	}

	want, src := sparseFixture(t, size, extents)
	b, buf := buildImage(t, &BuilderArgs{Source: src, BlockSize: bs})

	img, err := Open(buf, nil)
	require.NoError(t, err)
	defer img.Close()

	assert.Equal(t, roundUp(size, SectorSize), img.Size())

	got := make([]byte, size)
	_, err = img.ReadAt(got, 0)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// blocks 0, 1, 9 and 16 hold data
	bat := img.BAT()
	assert.Equal(t, b.BAT().Entries, bat.Entries)
	assert.Equal(t, 4, bat.Allocated())
	step := uint32((BitmapSize(bs) + bs) / SectorSize)
	assert.Equal(t, bat.Entries[0]+step, bat.Entries[1])
	assert.Equal(t, bat.Entries[1]+step, bat.Entries[9])
	assert.Equal(t, bat.Entries[9]+step, bat.Entries[16])
	assert.Equal(t, uint32(Unallocated), bat.Entries[2])

	report := Check(vio.NewBuffer(buf.Bytes()), ReportWarnings|ReportErrors)
	assert.True(t, report.Passed())
	assert.Empty(t, report.Findings)
}

func TestBuilderExtentsAreContiguous(t *testing.T) {

	_, src := sparseFixture(t, 4*mib, []vio.Extent{{Start: 3 * mib, Length: 4096}})
	b, err := NewBuilder(&BuilderArgs{Source: src})
	require.NoError(t, err)

	extents, err := b.Extents()
	require.NoError(t, err)
	require.NotEmpty(t, extents)

	var cursor int64
	for _, x := range extents {
		assert.Equal(t, cursor, x.Offset)
		assert.True(t, x.Length > 0)
		cursor += x.Length
	}
	assert.Equal(t, b.Size(), cursor)

	// footer, header, BAT, bitmap, zeroes, data, zeroes, footer
	assert.Equal(t, int64(FooterSize), extents[0].Length)
	assert.Equal(t, int64(HeaderSize), extents[1].Length)
	assert.True(t, extents[len(extents)-2].IsZero())
	assert.Equal(t, int64(FooterSize), extents[len(extents)-1].Length)

	// written without seeking
	var out bytes.Buffer
	n, err := b.WriteTo(&out)
	require.NoError(t, err)
	assert.Equal(t, b.Size(), n)
	assert.Equal(t, out.Bytes()[:FooterSize], out.Bytes()[out.Len()-FooterSize:])
}

func TestBuilderSectorBitmap(t *testing.T) {

	_, src := sparseFixture(t, mib, []vio.Extent{{Start: 511, Length: 2}, {Start: 4096, Length: 512}})
	b, buf := buildImage(t, &BuilderArgs{Source: src, BlockSize: 2 * mib})

	img, err := Open(buf, nil)
	require.NoError(t, err)

	bm, err := img.bitmap(0)
	require.NoError(t, err)

	assert.True(t, bm.Test(0))
	assert.True(t, bm.Test(1))
	assert.False(t, bm.Test(2))
	assert.True(t, bm.Test(8))
	assert.False(t, bm.Test(9))
	assert.Equal(t, uint32((FooterSize+HeaderSize+SectorSize)/SectorSize), b.BAT().Entries[0])
}

func TestBuilderDifferencing(t *testing.T) {

	parent, _ := newDynamic(t, 4*mib, 0)

	b, buf := buildImage(t, &BuilderArgs{
		Source: vio.ZeroStream(parent.Size()),
		Parent: ParentInfoFromImage(parent, `C:\vms\base.vhd`, `.\base.vhd`),
	})

	h := b.Header()
	assert.Equal(t, parent.Footer().UniqueID, h.ParentUniqueID)
	assert.Equal(t, parent.Footer().Timestamp, h.ParentTimestamp)
	assert.Equal(t, "base.vhd", h.ParentName())
	assert.Equal(t, DiskTypeDifferencing, b.Footer().DiskType)

	// locators sit right after the BAT
	batEnd := uint64(FooterSize + HeaderSize + SectorSize)
	assert.Equal(t, PlatformWindowsAbsolute, h.ParentLocators[0].PlatformCode)
	assert.Equal(t, batEnd, h.ParentLocators[0].PlatformDataOffset)
	assert.Equal(t, uint32(2*len(`C:\vms\base.vhd`)), h.ParentLocators[0].PlatformDataLength)
	assert.Equal(t, PlatformWindowsRelative, h.ParentLocators[1].PlatformCode)
	assert.Equal(t, batEnd+SectorSize, h.ParentLocators[1].PlatformDataOffset)
	assert.Equal(t, PlatformNone, h.ParentLocators[2].PlatformCode)

	img, err := Open(buf, &OpenArgs{Parent: parent})
	require.NoError(t, err)
	assert.Empty(t, img.Findings())

	paths, err := img.ParentPaths()
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, `C:\vms\base.vhd`, paths[0].Path)
	assert.Equal(t, `.\base.vhd`, paths[1].Path)

	report := Check(vio.NewBuffer(buf.Bytes()), ReportWarnings|ReportErrors)
	assert.True(t, report.Passed())
	assert.Empty(t, report.Findings)
}

func TestBuilderFixed(t *testing.T) {

	want, src := sparseFixture(t, 100*kib, []vio.Extent{{Start: 1000, Length: 5000}})
	_, buf := buildImage(t, &BuilderArgs{Source: src, Footer: NewFooter(0, DiskTypeFixed)})

	assert.Equal(t, int64(100*kib+FooterSize), buf.Size())
	assert.Equal(t, want, buf.Bytes()[:100*kib])

	img, err := Open(buf, nil)
	require.NoError(t, err)
	assert.Equal(t, DiskTypeFixed, img.DiskType())
	assert.Equal(t, uint64(NoDataOffset), img.Footer().DataOffset)
	assert.Equal(t, int64(100*kib), img.Size())
}

func TestBuilderFlattensChain(t *testing.T) {

	parent, _ := newDynamic(t, 2*mib, 64*kib)
	_, err := parent.WriteAt(bytes.Repeat([]byte{0xAA}, 10000), 50000)
	require.NoError(t, err)

	child, err := CreateDifferencing(vio.NewBuffer(nil), parent, "", "parent.vhd")
	require.NoError(t, err)
	_, err = child.WriteAt(bytes.Repeat([]byte{0xBB}, 100), 55000)
	require.NoError(t, err)

	want := make([]byte, child.Size())
	_, err = child.ReadAt(want, 0)
	require.NoError(t, err)

	_, buf := buildImage(t, &BuilderArgs{Source: child, BlockSize: 64 * kib})
	flat, err := Open(buf, nil)
	require.NoError(t, err)
	assert.Equal(t, DiskTypeDynamic, flat.DiskType())

	got := make([]byte, flat.Size())
	_, err = flat.ReadAt(got, 0)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestBuilderRejectsBadBlockSize(t *testing.T) {
	_, err := NewBuilder(&BuilderArgs{Source: vio.ZeroStream(mib), BlockSize: 1000})
	assert.Error(t, err)

	_, err = NewBuilder(&BuilderArgs{})
	assert.Error(t, err)
}
