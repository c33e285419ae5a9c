package vhd

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBATIsUnallocated(t *testing.T) {

	bat := NewBAT(5)
	for i := range bat.Entries {
		assert.False(t, bat.IsAllocated(int64(i)))
	}
	assert.Equal(t, 0, bat.Allocated())

	data, err := bat.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0xFF}, 512), data)
}

func TestBATRoundTrip(t *testing.T) {

	bat := NewBAT(130)
	bat.Entries[0] = 4
	bat.Entries[129] = 4101

	data, err := bat.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, data, 1024)
	assert.Equal(t, []byte{0, 0, 0, 4}, data[:4])

	got, err := ReadBAT(bytes.NewReader(data), 0, 130)
	require.NoError(t, err)
	assert.Equal(t, bat, got)
	assert.Equal(t, 2, got.Allocated())
	assert.Equal(t, int64(4101*512), got.BlockOffset(129))

	_, err = ReadBAT(bytes.NewReader(data[:100]), 0, 130)
	assert.True(t, errors.Is(err, ErrTruncatedRecord))
}

func TestBitmapBitOrder(t *testing.T) {

	bm := make(Bitmap, 512)

	assert.True(t, bm.Set(0))
	assert.Equal(t, byte(0x80), bm[0])

	assert.True(t, bm.Set(9))
	assert.Equal(t, byte(0x40), bm[1])

	assert.True(t, bm.Set(7))
	assert.Equal(t, byte(0x81), bm[0])

	assert.False(t, bm.Set(9))
	assert.True(t, bm.Test(9))
	assert.False(t, bm.Test(8))
}

func TestBitmapRuns(t *testing.T) {

	bm := make(Bitmap, 512)
	assert.True(t, bm.SetRange(3, 4))
	assert.False(t, bm.SetRange(4, 2))

	runs := bm.Runs(0, 10)
	assert.Equal(t, []Run{
		{First: 0, Count: 3, Present: false},
		{First: 3, Count: 4, Present: true},
		{First: 7, Count: 3, Present: false},
	}, runs)

	assert.Equal(t, []Run{{First: 4, Count: 2, Present: true}}, bm.Runs(4, 2))
}
