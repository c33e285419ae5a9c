package vio

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"io"
	"sort"

	"github.com/pkg/errors"
)

// SectorSize is the granularity at which sparse sources track presence.
const SectorSize = 512

// Extent is a half-open byte range [Start, Start+Length).
type Extent struct {
	Start  int64
	Length int64
}

// End returns the first byte after the extent.
func (e Extent) End() int64 {
	return e.Start + e.Length
}

// Overlaps reports whether e and x share at least one byte.
func (e Extent) Overlaps(x Extent) bool {
	return e.Start < x.End() && x.Start < e.End()
}

// SparseSource is a fixed-size byte range that knows which parts of itself
// hold data. Anything outside the returned extents reads as zero.
type SparseSource interface {
	io.ReaderAt
	Size() int64

	// Extents returns the present ranges in increasing order, without
	// overlaps, all within [0, Size()).
	Extents() ([]Extent, error)
}

// HolePredictor gives advance notice of regions that will be completely
// empty. RegionIsHole returns true if every byte starting at begin and
// continuing for size bytes is zeroed.
type HolePredictor interface {
	Size() int64
	RegionIsHole(begin, size int64) bool
}

// ZeroStream returns a SparseSource of size bytes that are all zero. It is
// the parent of a differencing disk that has no real parent.
func ZeroStream(size int64) SparseSource {
	return &zeroStream{size: size}
}

type zeroStream struct {
	size int64
}

func (z *zeroStream) ReadAt(p []byte, off int64) (int, error) {
	if off >= z.size {
		return 0, io.EOF
	}
	n := len(p)
	if rem := z.size - off; int64(n) > rem {
		n = int(rem)
	}
	zero(p[:n])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (z *zeroStream) Size() int64 {
	return z.size
}

func (z *zeroStream) Extents() ([]Extent, error) {
	return nil, nil
}

// ExtentSource wraps r with a known list of present extents.
func ExtentSource(r io.ReaderAt, size int64, extents []Extent) (SparseSource, error) {

	x := make([]Extent, len(extents))
	copy(x, extents)
	sort.Slice(x, func(i, j int) bool {
		return x[i].Start < x[j].Start
	})

	x = Coalesce(x)
	for _, e := range x {
		if e.Start < 0 || e.End() > size {
			return nil, errors.Errorf("extent [%d, %d) outside source of %d bytes", e.Start, e.End(), size)
		}
	}

	return &extentSource{ReaderAt: r, size: size, extents: x}, nil
}

type extentSource struct {
	io.ReaderAt
	size    int64
	extents []Extent
}

func (s *extentSource) Size() int64 {
	return s.size
}

func (s *extentSource) Extents() ([]Extent, error) {
	return s.extents, nil
}

// Coalesce merges touching or overlapping extents of a sorted list and drops
// empty ones.
func Coalesce(extents []Extent) []Extent {
	var out []Extent
	for _, e := range extents {
		if e.Length <= 0 {
			continue
		}
		if n := len(out); n > 0 && e.Start <= out[n-1].End() {
			if e.End() > out[n-1].End() {
				out[n-1].Length = e.End() - out[n-1].Start
			}
			continue
		}
		out = append(out, e)
	}
	return out
}

// HoleSource turns a HolePredictor into a SparseSource by asking it about
// every chunk of granularity bytes. Data is read from r.
func HoleSource(h HolePredictor, r io.ReaderAt, granularity int64) SparseSource {
	if granularity <= 0 {
		granularity = SectorSize
	}
	return &holeSource{ReaderAt: r, h: h, granularity: granularity}
}

type holeSource struct {
	io.ReaderAt
	h           HolePredictor
	granularity int64
}

func (s *holeSource) Size() int64 {
	return s.h.Size()
}

func (s *holeSource) Extents() ([]Extent, error) {

	var extents []Extent
	size := s.h.Size()

	for begin := int64(0); begin < size; begin += s.granularity {
		n := s.granularity
		if begin+n > size {
			n = size - begin
		}
		if s.h.RegionIsHole(begin, n) {
			continue
		}
		extents = append(extents, Extent{Start: begin, Length: n})
	}

	return Coalesce(extents), nil
}

const scanChunk = 0x100000

// ScanSource reads size bytes of r and records every sector that contains a
// non-zero byte, producing a SparseSource for raw images.
func ScanSource(r io.ReaderAt, size int64) (SparseSource, error) {

	var extents []Extent
	buf := make([]byte, scanChunk)

	for off := int64(0); off < size; off += scanChunk {
		n := int64(scanChunk)
		if off+n > size {
			n = size - off
		}

		k, err := r.ReadAt(buf[:n], off)
		if int64(k) < n {
			if err == nil || err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, errors.Wrapf(err, "scanning source at offset %d", off)
		}

		for s := int64(0); s < n; s += SectorSize {
			e := s + SectorSize
			if e > n {
				e = n
			}
			if isZero(buf[s:e]) {
				continue
			}
			extents = append(extents, Extent{Start: off + s, Length: e - s})
		}
	}

	return &extentSource{ReaderAt: r, size: size, extents: Coalesce(extents)}, nil
}

func isZero(p []byte) bool {
	for _, x := range p {
		if x != 0 {
			return false
		}
	}
	return true
}

func zero(p []byte) {
	if len(p) == 0 {
		return
	}
	p[0] = 0
	for bp := 1; bp < len(p); bp *= 2 {
		copy(p[bp:], p[:bp])
	}
}
