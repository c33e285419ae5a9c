package vio

import (
	"io"

	"github.com/pkg/errors"
)

// Buffer is an in-memory, growable byte store supporting positional and
// seek-based IO. Writing past the end zero-fills the gap, like a sparse file.
type Buffer struct {
	data []byte
	pos  int64
}

// NewBuffer returns a Buffer holding a copy of data.
func NewBuffer(data []byte) *Buffer {
	b := &Buffer{data: make([]byte, len(data))}
	copy(b.data, data)
	return b
}

// Bytes returns the underlying contents. The slice aliases the buffer.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Size returns the current length of the buffer.
func (b *Buffer) Size() int64 {
	return int64(len(b.data))
}

// Truncate resizes the buffer to n bytes.
func (b *Buffer) Truncate(n int64) error {
	if n < 0 {
		return errors.New("negative size")
	}
	if n <= int64(len(b.data)) {
		b.data = b.data[:n]
		return nil
	}
	b.grow(n)
	return nil
}

func (b *Buffer) grow(n int64) {
	if n <= int64(len(b.data)) {
		return
	}
	if n <= int64(cap(b.data)) {
		old := len(b.data)
		b.data = b.data[:n]
		zero(b.data[old:])
		return
	}
	x := make([]byte, n, 2*n)
	copy(x, b.data)
	b.data = x
}

// ReadAt implements io.ReaderAt.
func (b *Buffer) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New("negative offset")
	}
	if off >= int64(len(b.data)) {
		return 0, io.EOF
	}
	n := copy(p, b.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements io.WriterAt.
func (b *Buffer) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New("negative offset")
	}
	b.grow(off + int64(len(p)))
	return copy(b.data[off:], p), nil
}

// Read implements io.Reader.
func (b *Buffer) Read(p []byte) (int, error) {
	n, err := b.ReadAt(p, b.pos)
	b.pos += int64(n)
	if err == io.EOF && n > 0 {
		err = nil
	}
	return n, err
}

// Write implements io.Writer.
func (b *Buffer) Write(p []byte) (int, error) {
	n, err := b.WriteAt(p, b.pos)
	b.pos += int64(n)
	return n, err
}

// Seek implements io.Seeker.
func (b *Buffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = b.pos + offset
	case io.SeekEnd:
		abs = int64(len(b.data)) + offset
	default:
		return b.pos, errors.New("invalid whence")
	}
	if abs < 0 {
		return b.pos, errors.New("negative position")
	}
	b.pos = abs
	return abs, nil
}

// Close implements io.Closer. The contents remain readable.
func (b *Buffer) Close() error {
	return nil
}
