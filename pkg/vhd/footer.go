package vhd

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	creatorApp    = [4]byte{'v', 's', 'p', 'r'}
	creatorHostOS = [4]byte{'W', 'i', '2', 'k'}
)

// NewFooter returns a footer template for a new image of the given capacity.
// The caller may adjust any field before the footer is marshalled.
func NewFooter(capacity int64, t DiskType) *Footer {

	f := &Footer{
		Features:          featuresReserved,
		FileFormatVersion: fileFormatVersion,
		DataOffset:        FooterSize,
		Timestamp:         TimestampOf(time.Now()),
		CreatorApp:        creatorApp,
		CreatorVersion:    0x00010000,
		CreatorHostOS:     creatorHostOS,
		OriginalSize:      uint64(capacity),
		CurrentSize:       uint64(capacity),
		Geometry:          CalculateGeometry(capacity),
		DiskType:          t,
		UniqueID:          uuid.New(),
	}
	copy(f.Cookie[:], footerCookie)

	if t == DiskTypeFixed {
		f.DataOffset = NoDataOffset
	}

	return f
}

// SetCreatorApp stores the first four bytes of name as the creator
// application, padded with spaces.
func (f *Footer) SetCreatorApp(name string) {
	copy(f.CreatorApp[:], "    ")
	copy(f.CreatorApp[:], name)
}

// CalculateGeometry derives the advisory CHS values for a capacity in bytes,
// using the algorithm from the VHD specification appendix.
func CalculateGeometry(capacity int64) Geometry {

	var cylinders, heads, sectorsPerTrack int64
	var cylinderTimesHeads int64

	totalSectors := (capacity + SectorSize - 1) / SectorSize
	if totalSectors > 65535*16*255 {
		totalSectors = 65535 * 16 * 255
	}

	if totalSectors >= 65535*16*63 {
		sectorsPerTrack = 255
		heads = 16
		cylinderTimesHeads = totalSectors / sectorsPerTrack
	} else {
		sectorsPerTrack = 17
		cylinderTimesHeads = totalSectors / sectorsPerTrack
		heads = (cylinderTimesHeads + 1023) / 1024
		if heads < 4 {
			heads = 4
		}
		if cylinderTimesHeads >= (heads*1024) || heads > 16 {
			sectorsPerTrack = 31
			heads = 16
			cylinderTimesHeads = totalSectors / sectorsPerTrack
		}
		if cylinderTimesHeads >= heads*1024 {
			sectorsPerTrack = 63
			heads = 16
			cylinderTimesHeads = totalSectors / sectorsPerTrack
		}
	}
	cylinders = cylinderTimesHeads / heads
	if cylinders > 65535 {
		cylinders = 65535
	}

	return Geometry{
		Cylinders:       uint16(cylinders),
		Heads:           uint8(heads),
		SectorsPerTrack: uint8(sectorsPerTrack),
	}
}

// TimestampOf converts t into the footer's seconds-since-2000 representation.
func TimestampOf(t time.Time) uint32 {
	return uint32(t.Unix() - epochOffset)
}

// Time returns the footer timestamp as a time.Time.
func (f *Footer) Time() time.Time {
	return time.Unix(int64(f.Timestamp)+epochOffset, 0).UTC()
}

// Capacity returns the logical size of the disk in bytes.
func (f *Footer) Capacity() int64 {
	return int64(f.CurrentSize)
}

// MarshalBinary encodes the footer, storing a freshly computed checksum in
// f.Checksum as a side effect.
func (f *Footer) MarshalBinary() ([]byte, error) {

	f.Checksum = 0

	buf := new(bytes.Buffer)
	buf.Grow(FooterSize)
	err := binary.Write(buf, binary.BigEndian, f)
	if err != nil {
		return nil, err
	}

	data := buf.Bytes()
	f.Checksum = checksum(data, footerChecksumOffset)
	binary.BigEndian.PutUint32(data[footerChecksumOffset:], f.Checksum)

	return data, nil
}

// ComputeChecksum returns the checksum the footer would be stored with,
// without modifying it.
func (f *Footer) ComputeChecksum() (uint32, error) {
	x := *f
	_, err := x.MarshalBinary()
	if err != nil {
		return 0, err
	}
	return x.Checksum, nil
}

// ParseFooter decodes and validates a footer. Cookie, checksum and version
// problems are reported as ErrMagic, ErrChecksum and ErrVersion respectively.
func ParseFooter(b []byte) (*Footer, error) {

	if len(b) < FooterSize {
		return nil, errors.Wrapf(ErrTruncatedRecord, "footer needs %d bytes, got %d", FooterSize, len(b))
	}
	b = b[:FooterSize]

	f := new(Footer)
	err := binary.Read(bytes.NewReader(b), binary.BigEndian, f)
	if err != nil {
		return nil, err
	}

	if string(f.Cookie[:]) != footerCookie {
		return nil, errors.Wrapf(ErrMagic, "footer cookie %q", f.Cookie[:])
	}

	if sum := checksum(b, footerChecksumOffset); sum != f.Checksum {
		return nil, errors.Wrapf(ErrChecksum, "footer stores %#08x, computed %#08x", f.Checksum, sum)
	}

	if f.FileFormatVersion>>16 != fileFormatVersion>>16 {
		return nil, errors.Wrapf(ErrVersion, "footer version %#08x", f.FileFormatVersion)
	}

	return f, nil
}

// checksum is the ones' complement of the byte sum of data, skipping the four
// byte checksum field at skip.
func checksum(data []byte, skip int) uint32 {
	var sum uint32
	for i, x := range data {
		if i >= skip && i < skip+4 {
			continue
		}
		sum += uint32(x)
	}
	return ^sum
}
