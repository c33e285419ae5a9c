package vdisk

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"context"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/vorteil/vsparse/pkg/elog"
	"github.com/vorteil/vsparse/pkg/vhd"
	"github.com/vorteil/vsparse/pkg/vio"
)

// ConvertArgs contains all arguments a caller can use to customize the
// behaviour of the Convert function.
type ConvertArgs struct {
	Format Format

	// BlockSize of dynamic output. Zero selects vhd.DefaultBlockSize.
	BlockSize int64

	// Compress wraps raw output in a zstd stream.
	Compress bool

	// CreatorApp is stamped into VHD footers when set.
	CreatorApp string

	Logger elog.View
}

// Convert writes the logical contents of src to w in the requested format.
// Only the present extents of src are read; everything else is written as
// zeroes or left unallocated.
func Convert(ctx context.Context, w io.Writer, src vio.SparseSource, args *ConvertArgs) error {

	if args == nil {
		args = &ConvertArgs{}
	}
	if args.Logger == nil {
		args.Logger = elog.Discard
	}

	format := args.Format
	if format == "" {
		format = VHDDynamicFormat
	}

	if args.Compress && format != RAWFormat {
		return errors.Errorf("compression is only supported for %s output", RAWFormat)
	}

	args.Logger.Debugf("converting %d byte source to %s", src.Size(), format)

	cw := &ctxWriter{ctx: ctx, w: w}
	if s, ok := w.(io.Seeker); ok {
		return format.convert(ctx, &ctxWriteSeeker{ctxWriter: cw, s: s}, src, args)
	}

	return format.convert(ctx, cw, src, args)
}

// ctxWriter fails writes once its context is done.
type ctxWriter struct {
	ctx context.Context
	w   io.Writer
}

func (cw *ctxWriter) Write(p []byte) (int, error) {
	if err := cw.ctx.Err(); err != nil {
		return 0, err
	}
	return cw.w.Write(p)
}

type ctxWriteSeeker struct {
	*ctxWriter
	s io.Seeker
}

func (cw *ctxWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	return cw.s.Seek(offset, whence)
}

func convertRAW(ctx context.Context, w io.Writer, src vio.SparseSource, args *ConvertArgs) error {

	var enc *zstd.Encoder
	if args.Compress {
		var err error
		enc, err = zstd.NewWriter(w)
		if err != nil {
			return err
		}
		w = enc
	}

	err := writeRAW(w, src, args.Logger)
	if err != nil {
		if enc != nil {
			_ = enc.Close()
		}
		return err
	}

	if enc != nil {
		return enc.Close()
	}

	return nil
}

func writeRAW(w io.Writer, src vio.SparseSource, log elog.View) error {

	ws, err := vio.WriteSeeker(w)
	if err != nil {
		return err
	}

	extents, err := src.Extents()
	if err != nil {
		return err
	}

	var total int64
	for _, e := range extents {
		total += e.Length
	}

	p := log.NewProgress("Copying", "KiB", total)
	defer p.Finish(false)

	size := src.Size()
	var end int64

	for _, e := range extents {

		_, err = ws.Seek(e.Start, io.SeekStart)
		if err != nil {
			return err
		}

		_, err = io.Copy(io.MultiWriter(ws, p), io.NewSectionReader(src, e.Start, e.Length))
		if err != nil {
			return errors.Wrapf(err, "copying extent at %#x", e.Start)
		}

		end = e.End()
	}

	// leave the output exactly size bytes long
	if end < size {
		_, err = ws.Seek(size-1, io.SeekStart)
		if err != nil {
			return err
		}
		_, err = ws.Write([]byte{0})
		if err != nil {
			return err
		}
	}

	p.Finish(true)

	return nil
}

func convertDynamicVHD(ctx context.Context, w io.Writer, src vio.SparseSource, args *ConvertArgs) error {
	return writeVHD(w, src, vhd.DiskTypeDynamic, nil, args)
}

func convertFixedVHD(ctx context.Context, w io.Writer, src vio.SparseSource, args *ConvertArgs) error {
	return writeVHD(w, src, vhd.DiskTypeFixed, nil, args)
}

func writeVHD(w io.Writer, src vio.SparseSource, t vhd.DiskType, parent *vhd.ParentInfo, args *ConvertArgs) error {
	footer := vhd.NewFooter(0, t)
	if args.CreatorApp != "" {
		footer.SetCreatorApp(args.CreatorApp)
	}
	return build(w, &vhd.BuilderArgs{
		Source:    src,
		Footer:    footer,
		BlockSize: args.BlockSize,
		Parent:    parent,
		Logger:    args.Logger,
	}, args.Logger)
}

func build(w io.Writer, bargs *vhd.BuilderArgs, log elog.View) error {

	b, err := vhd.NewBuilder(bargs)
	if err != nil {
		return err
	}

	p := log.NewProgress("Writing", "KiB", b.Size())
	defer p.Finish(false)

	_, err = b.WriteTo(io.MultiWriter(w, p))
	if err != nil {
		return err
	}

	p.Finish(true)

	return nil
}
