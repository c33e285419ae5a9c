package vio

import (
	"io"

	"github.com/pkg/errors"
)

type zeroesReader struct {
}

func (rdr *zeroesReader) Read(p []byte) (n int, err error) {
	zero(p)
	return len(p), nil
}

// Zeroes is an endless stream of zero bytes.
var Zeroes = io.Reader(&zeroesReader{})

// ErrBackwardSeek is returned when a stream that can only move forward is
// asked to rewind.
var ErrBackwardSeek = errors.New("stream cannot seek backwards")

type writeSeeker struct {
	w   io.Writer
	s   io.Seeker
	pos int64
	k   int64 // base offset of s when wrapped
}

func (ws *writeSeeker) Write(p []byte) (n int, err error) {
	n, err = ws.w.Write(p)
	ws.pos += int64(n)
	return
}

func (ws *writeSeeker) Seek(offset int64, whence int) (int64, error) {

	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = ws.pos + offset
	case io.SeekEnd:
		if ws.s == nil {
			return ws.pos, errors.New("stream does not support io.SeekEnd")
		}
		k, err := ws.s.Seek(offset, whence)
		ws.pos = k - ws.k
		return ws.pos, err
	default:
		return ws.pos, errors.New("invalid whence")
	}

	if ws.s != nil {
		k, err := ws.s.Seek(abs+ws.k, io.SeekStart)
		ws.pos = k - ws.k
		return ws.pos, err
	}

	if abs < ws.pos {
		return ws.pos, ErrBackwardSeek
	}

	// pad forward with zeroes
	k, err := io.CopyN(ws.w, Zeroes, abs-ws.pos)
	ws.pos += k
	return ws.pos, err
}

// WriteSeeker wraps w so that it can be used where an io.WriteSeeker is
// expected. Seekable writers are used directly, relative to their current
// position; anything else may only seek forward, which writes zeroes.
func WriteSeeker(w io.Writer) (io.WriteSeeker, error) {

	ws := &writeSeeker{w: w}

	if s, ok := w.(io.Seeker); ok {
		k, err := s.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, err
		}
		ws.s = s
		ws.k = k
	}

	return ws, nil
}
