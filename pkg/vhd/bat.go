package vhd

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// BAT is the in-memory block allocation table. Each entry is the sector at
// which the block's bitmap begins, or Unallocated.
type BAT struct {
	Entries []uint32
}

// NewBAT returns a table of n unallocated entries.
func NewBAT(n int) *BAT {
	bat := &BAT{Entries: make([]uint32, n)}
	for i := range bat.Entries {
		bat.Entries[i] = Unallocated
	}
	return bat
}

// ParseBAT decodes n big-endian entries from b.
func ParseBAT(b []byte, n int) (*BAT, error) {
	if len(b) < 4*n {
		return nil, errors.Wrapf(ErrTruncatedRecord, "block allocation table needs %d bytes, got %d", 4*n, len(b))
	}
	bat := &BAT{Entries: make([]uint32, n)}
	for i := range bat.Entries {
		bat.Entries[i] = binary.BigEndian.Uint32(b[4*i:])
	}
	return bat, nil
}

// ReadBAT loads a table of n entries stored at offset.
func ReadBAT(r io.ReaderAt, offset int64, n int) (*BAT, error) {
	buf := make([]byte, 4*n)
	k, err := r.ReadAt(buf, offset)
	if k < len(buf) {
		if err == nil || err == io.EOF {
			err = ErrTruncatedRecord
		}
		return nil, errors.Wrapf(err, "reading block allocation table at %#x", offset)
	}
	return ParseBAT(buf, n)
}

// MarshalBinary encodes the table padded to a whole number of sectors. The
// padding is filled with 0xFF like unallocated entries.
func (bat *BAT) MarshalBinary() ([]byte, error) {
	data := bytes.Repeat([]byte{0xFF}, int(batSize(len(bat.Entries))))
	for i, e := range bat.Entries {
		binary.BigEndian.PutUint32(data[4*i:], e)
	}
	return data, nil
}

// IsAllocated reports whether block i has storage.
func (bat *BAT) IsAllocated(i int64) bool {
	return bat.Entries[i] != Unallocated
}

// Allocated counts the allocated entries.
func (bat *BAT) Allocated() int {
	var n int
	for _, e := range bat.Entries {
		if e != Unallocated {
			n++
		}
	}
	return n
}

// BlockOffset returns the byte offset of block i's bitmap.
func (bat *BAT) BlockOffset(i int64) int64 {
	return int64(bat.Entries[i]) * SectorSize
}

func batSize(entries int) int64 {
	return roundUp(4*int64(entries), SectorSize)
}
