package vhd

import (
	"io"
	"sort"

	"github.com/pkg/errors"
	"github.com/vorteil/vsparse/pkg/vio"
)

// Mapping is a piece of the logical disk. Present mappings live in this
// image at Physical; the rest come from the parent, or are zero.
type Mapping struct {
	Logical  int64
	Length   int64
	Physical int64
	Present  bool
}

func (img *Image) checkRange(off, length int64) error {
	size := img.Size()
	if off < 0 || length < 0 || off > size || length > size-off {
		return errors.Wrapf(ErrOutOfRange, "%d bytes at %d outside disk of %d bytes", length, off, size)
	}
	return nil
}

// MapRange resolves length bytes of the logical disk starting at off. The
// result is split at block boundaries, and within a block adjacent sectors
// of equal presence are merged.
func (img *Image) MapRange(off, length int64) ([]Mapping, error) {

	err := img.checkRange(off, length)
	if err != nil {
		return nil, err
	}

	if length == 0 {
		return nil, nil
	}

	if img.footer.DiskType == DiskTypeFixed {
		return []Mapping{{Logical: off, Length: length, Physical: off, Present: true}}, nil
	}

	var maps []Mapping

	for length > 0 {

		block := off / img.blockSize
		within := off % img.blockSize
		n := img.blockSize - within
		if n > length {
			n = length
		}

		if !img.bat.IsAllocated(block) {
			maps = append(maps, Mapping{Logical: off, Length: n, Physical: -1})
			off += n
			length -= n
			continue
		}

		bm, err := img.bitmap(block)
		if err != nil {
			return nil, err
		}

		base := block * img.blockSize
		data := img.bat.BlockOffset(block) + img.bmSize
		first := within / SectorSize
		last := (within + n - 1) / SectorSize

		for _, run := range bm.Runs(first, last-first+1) {

			start := run.First * SectorSize
			if start < within {
				start = within
			}
			end := (run.First + run.Count) * SectorSize
			if end > within+n {
				end = within + n
			}

			m := Mapping{Logical: base + start, Length: end - start, Physical: -1}
			if run.Present {
				m.Present = true
				m.Physical = data + start
			}
			maps = append(maps, m)
		}

		off += n
		length -= n
	}

	return maps, nil
}

// ReadAt reads logical disk content. Unlike most io.ReaderAt
// implementations it refuses any range that is not entirely within the disk.
func (img *Image) ReadAt(p []byte, off int64) (int, error) {

	maps, err := img.MapRange(off, int64(len(p)))
	if err != nil {
		return 0, err
	}

	for _, m := range maps {
		dst := p[m.Logical-off : m.Logical-off+m.Length]
		if m.Present {
			err = img.s.readAt(dst, m.Physical)
		} else {
			err = img.readParent(dst, m.Logical)
		}
		if err != nil {
			return int(m.Logical - off), err
		}
	}

	return len(p), nil
}

// Read implements io.Reader over the logical disk.
func (img *Image) Read(p []byte) (int, error) {

	size := img.Size()
	if img.pos >= size {
		return 0, io.EOF
	}

	if rem := size - img.pos; int64(len(p)) > rem {
		p = p[:rem]
	}

	n, err := img.ReadAt(p, img.pos)
	img.pos += int64(n)
	return n, err
}

// Seek implements io.Seeker over the logical disk.
func (img *Image) Seek(offset int64, whence int) (int64, error) {

	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = img.pos + offset
	case io.SeekEnd:
		abs = img.Size() + offset
	default:
		return img.pos, errors.New("invalid whence")
	}

	if abs < 0 {
		return img.pos, errors.Wrapf(ErrOutOfRange, "seek to %d", abs)
	}

	img.pos = abs
	return abs, nil
}

func sortExtents(x []vio.Extent) {
	sort.Slice(x, func(i, j int) bool {
		return x[i].Start < x[j].Start
	})
}
