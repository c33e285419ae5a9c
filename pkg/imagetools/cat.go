package imagetools

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/vorteil/vsparse/pkg/vio"
)

// CatImage returns a reader over length logical bytes of disk starting at
// off. A negative length reads to the end of the disk.
func CatImage(disk vio.SparseSource, off, length int64) (io.Reader, error) {

	size := disk.Size()
	if off < 0 || off > size {
		return nil, fmt.Errorf("offset %d outside disk of %d bytes", off, size)
	}

	if length < 0 || off+length > size {
		length = size - off
	}

	return io.NewSectionReader(disk, off, length), nil
}

// CatImageTo copies the bytes CatImage would return to w, optionally as a
// zstd stream, and returns the number of uncompressed bytes copied.
func CatImageTo(w io.Writer, disk vio.SparseSource, off, length int64, compress bool) (int64, error) {

	rdr, err := CatImage(disk, off, length)
	if err != nil {
		return 0, err
	}

	if !compress {
		return io.Copy(w, rdr)
	}

	enc, err := zstd.NewWriter(w)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(enc, rdr)
	if err != nil {
		_ = enc.Close()
		return n, err
	}

	return n, enc.Close()
}
