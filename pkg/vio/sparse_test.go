package vio

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoalesce(t *testing.T) {
	got := Coalesce([]Extent{
		{Start: 0, Length: 10},
		{Start: 10, Length: 5},
		{Start: 12, Length: 1},
		{Start: 20, Length: 0},
		{Start: 30, Length: 4},
	})
	assert.Equal(t, []Extent{{Start: 0, Length: 15}, {Start: 30, Length: 4}}, got)
	assert.Nil(t, Coalesce(nil))
}

func TestExtentOverlaps(t *testing.T) {
	a := Extent{Start: 10, Length: 10}
	assert.True(t, a.Overlaps(Extent{Start: 19, Length: 1}))
	assert.False(t, a.Overlaps(Extent{Start: 20, Length: 5}))
	assert.False(t, a.Overlaps(Extent{Start: 0, Length: 10}))
	assert.Equal(t, int64(20), a.End())
}

func TestZeroStream(t *testing.T) {

	z := ZeroStream(1000)
	assert.Equal(t, int64(1000), z.Size())

	extents, err := z.Extents()
	require.NoError(t, err)
	assert.Empty(t, extents)

	p := bytes.Repeat([]byte{0xFF}, 100)
	n, err := z.ReadAt(p, 950)
	assert.Equal(t, 50, n)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, make([]byte, 50), p[:50])

	_, err = z.ReadAt(p, 1000)
	assert.Equal(t, io.EOF, err)
}

func TestExtentSource(t *testing.T) {

	src, err := ExtentSource(bytes.NewReader(make([]byte, 100)), 100, []Extent{
		{Start: 50, Length: 10},
		{Start: 0, Length: 5},
		{Start: 55, Length: 10},
	})
	require.NoError(t, err)

	extents, err := src.Extents()
	require.NoError(t, err)
	assert.Equal(t, []Extent{{Start: 0, Length: 5}, {Start: 50, Length: 15}}, extents)

	_, err = ExtentSource(bytes.NewReader(nil), 10, []Extent{{Start: 5, Length: 10}})
	assert.Error(t, err)
}

func TestScanSource(t *testing.T) {

	data := make([]byte, scanChunk+1300)
	data[3] = 1
	data[600] = 1
	data[scanChunk-1] = 1
	data[scanChunk] = 1
	data[scanChunk+1299] = 1

	src, err := ScanSource(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), src.Size())

	extents, err := src.Extents()
	require.NoError(t, err)
	assert.Equal(t, []Extent{
		{Start: 0, Length: 1024},
		{Start: scanChunk - 512, Length: 1024},
		{Start: scanChunk + 1024, Length: 276},
	}, extents)

	_, err = ScanSource(bytes.NewReader(data[:10]), 100)
	assert.Error(t, err)
}

type stripes struct {
	size int64
}

func (s stripes) Size() int64 {
	return s.size
}

// every other kilobyte is a hole
func (s stripes) RegionIsHole(begin, size int64) bool {
	return (begin/1024)%2 == 1
}

func TestHoleSource(t *testing.T) {

	src := HoleSource(stripes{size: 4000}, bytes.NewReader(make([]byte, 4000)), 0)

	extents, err := src.Extents()
	require.NoError(t, err)
	assert.Equal(t, []Extent{
		{Start: 0, Length: 1024},
		{Start: 2048, Length: 1024},
	}, extents)
	assert.Equal(t, int64(4000), src.Size())
}
