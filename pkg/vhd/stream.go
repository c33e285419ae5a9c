package vhd

import (
	"io"

	"github.com/pkg/errors"
)

// stream does positional IO against the backing resource, preferring
// ReaderAt/WriterAt and falling back to seek-then-operate.
type stream struct {
	rs io.ReadSeeker
}

func (s stream) size() (int64, error) {
	return s.rs.Seek(0, io.SeekEnd)
}

func (s stream) readAt(p []byte, off int64) error {

	if ra, ok := s.rs.(io.ReaderAt); ok {
		n, err := ra.ReadAt(p, off)
		if n == len(p) {
			return nil
		}
		if err == nil || err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return errors.Wrapf(err, "reading %d bytes at %#x", len(p), off)
	}

	_, err := s.rs.Seek(off, io.SeekStart)
	if err != nil {
		return err
	}

	_, err = io.ReadFull(s.rs, p)
	if err != nil {
		return errors.Wrapf(err, "reading %d bytes at %#x", len(p), off)
	}

	return nil
}

// ReadAt implements io.ReaderAt with the all-or-nothing semantics of readAt.
func (s stream) ReadAt(p []byte, off int64) (int, error) {
	err := s.readAt(p, off)
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s stream) writable() bool {
	_, ok := s.rs.(io.Writer)
	return ok
}

func (s stream) writeAt(p []byte, off int64) error {

	if wa, ok := s.rs.(io.WriterAt); ok {
		_, err := wa.WriteAt(p, off)
		if err != nil {
			return errors.Wrapf(err, "writing %d bytes at %#x", len(p), off)
		}
		return nil
	}

	w, ok := s.rs.(io.Writer)
	if !ok {
		return ErrReadOnly
	}

	_, err := s.rs.Seek(off, io.SeekStart)
	if err != nil {
		return err
	}

	_, err = w.Write(p)
	if err != nil {
		return errors.Wrapf(err, "writing %d bytes at %#x", len(p), off)
	}

	return nil
}

func (s stream) close() error {
	if c, ok := s.rs.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func zeroFill(p []byte) {
	for i := range p {
		p[i] = 0
	}
}
