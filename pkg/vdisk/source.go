package vdisk

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/vorteil/vsparse/pkg/elog"
	"github.com/vorteil/vsparse/pkg/vhd"
	"github.com/vorteil/vsparse/pkg/vio"
)

// Source is an opened input for Convert.
type Source struct {
	vio.SparseSource

	// Image is set when the input was a VHD.
	Image *vhd.Image

	closer io.Closer
}

// Close releases the underlying files, including any parent images.
func (s *Source) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// SourceFrom adapts r to a SparseSource. Readers that already know their
// extents are used as they are, HolePredictors are asked about each sector,
// and anything else is scanned for non-zero sectors.
func SourceFrom(r io.ReaderAt, size int64) (vio.SparseSource, error) {

	if s, ok := r.(vio.SparseSource); ok && s.Size() == size {
		return s, nil
	}

	if h, ok := r.(vio.HolePredictor); ok && h.Size() == size {
		return vio.HoleSource(h, r, vio.SectorSize), nil
	}

	return vio.ScanSource(r, size)
}

// OpenSource opens the file at path for reading. VHD images are opened
// together with their parent chain and present their logical disk; any
// other file is treated as a raw disk.
func OpenSource(path string, log elog.Logger) (*Source, error) {

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	isVHD, err := vhd.Sniff(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	if isVHD {
		_ = f.Close()
		img, err := vhd.OpenFile(path, &vhd.OpenFileArgs{ReadOnly: true, Logger: log})
		if err != nil {
			return nil, errors.Wrapf(err, "opening %s", path)
		}
		return &Source{SparseSource: img, Image: img, closer: img}, nil
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	elog.Or(log).Debugf("scanning raw source %s (%d bytes)", path, fi.Size())

	src, err := SourceFrom(f, fi.Size())
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	return &Source{SparseSource: src, closer: f}, nil
}
