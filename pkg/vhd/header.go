package vhd

import (
	"bytes"
	"encoding/binary"
	"unicode/utf16"

	"github.com/pkg/errors"
)

// NewDynamicHeader returns a header for an image of capacity bytes whose BAT
// starts at tableOffset.
func NewDynamicHeader(capacity, blockSize, tableOffset int64) *DynamicHeader {
	h := &DynamicHeader{
		DataOffset:      NoDataOffset,
		TableOffset:     uint64(tableOffset),
		HeaderVersion:   headerVersion,
		MaxTableEntries: uint32(blockCount(capacity, blockSize)),
		BlockSize:       uint32(blockSize),
	}
	copy(h.Cookie[:], headerCookie)
	return h
}

// MarshalBinary encodes the header, storing a freshly computed checksum in
// h.Checksum as a side effect.
func (h *DynamicHeader) MarshalBinary() ([]byte, error) {

	h.Checksum = 0

	buf := new(bytes.Buffer)
	buf.Grow(HeaderSize)
	err := binary.Write(buf, binary.BigEndian, h)
	if err != nil {
		return nil, err
	}

	data := buf.Bytes()
	h.Checksum = checksum(data, headerChecksumOffset)
	binary.BigEndian.PutUint32(data[headerChecksumOffset:], h.Checksum)

	return data, nil
}

// ParseDynamicHeader decodes and validates a dynamic disk header.
func ParseDynamicHeader(b []byte) (*DynamicHeader, error) {

	if len(b) < HeaderSize {
		return nil, errors.Wrapf(ErrTruncatedRecord, "dynamic header needs %d bytes, got %d", HeaderSize, len(b))
	}
	b = b[:HeaderSize]

	h := new(DynamicHeader)
	err := binary.Read(bytes.NewReader(b), binary.BigEndian, h)
	if err != nil {
		return nil, err
	}

	if string(h.Cookie[:]) != headerCookie {
		return nil, errors.Wrapf(ErrMagic, "dynamic header cookie %q", h.Cookie[:])
	}

	if sum := checksum(b, headerChecksumOffset); sum != h.Checksum {
		return nil, errors.Wrapf(ErrChecksum, "dynamic header stores %#08x, computed %#08x", h.Checksum, sum)
	}

	if h.HeaderVersion>>16 != headerVersion>>16 {
		return nil, errors.Wrapf(ErrVersion, "dynamic header version %#08x", h.HeaderVersion)
	}

	return h, nil
}

// validate checks the header against the footer it belongs to.
func (h *DynamicHeader) validate(f *Footer) error {

	bs := int64(h.BlockSize)
	if bs < SectorSize || bs&(bs-1) != 0 {
		return errors.Wrapf(ErrFormat, "block size %d is not a power of two of at least %d", bs, SectorSize)
	}

	expect := blockCount(f.Capacity(), bs)
	if int64(h.MaxTableEntries) != expect {
		return errors.Wrapf(ErrFormat, "header claims %d table entries, capacity %d needs %d", h.MaxTableEntries, f.Capacity(), expect)
	}

	return nil
}

// ParentName decodes the UTF-16BE parent file name.
func (h *DynamicHeader) ParentName() string {
	return decodeUTF16(h.ParentUnicodeName[:], binary.BigEndian)
}

// SetParentName stores name as UTF-16BE, failing if it does not fit.
func (h *DynamicHeader) SetParentName(name string) error {
	data := encodeUTF16(name, binary.BigEndian)
	if len(data) > len(h.ParentUnicodeName) {
		return errors.Errorf("parent name %q too long for header", name)
	}
	h.ParentUnicodeName = [512]byte{}
	copy(h.ParentUnicodeName[:], data)
	return nil
}

// HasParent reports whether the header claims a parent image.
func (h *DynamicHeader) HasParent() bool {
	for _, x := range h.ParentUniqueID {
		if x != 0 {
			return true
		}
	}
	return false
}

// BitmapSize returns the sector-padded size of the bitmap that precedes every
// allocated block.
func BitmapSize(blockSize int64) int64 {
	sectors := blockSize / SectorSize
	return roundUp((sectors+7)/8, SectorSize)
}

func blockCount(capacity, blockSize int64) int64 {
	return (capacity + blockSize - 1) / blockSize
}

func roundUp(x, unit int64) int64 {
	return ((x + unit - 1) / unit) * unit
}

func decodeUTF16(b []byte, order binary.ByteOrder) string {
	units := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		u := order.Uint16(b[i:])
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units))
}

func encodeUTF16(s string, order binary.ByteOrder) []byte {
	units := utf16.Encode([]rune(s))
	b := make([]byte, 2*len(units))
	for i, u := range units {
		order.PutUint16(b[2*i:], u)
	}
	return b
}
