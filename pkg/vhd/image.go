package vhd

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"io"

	"github.com/pkg/errors"
	"github.com/vorteil/vsparse/pkg/elog"
	"github.com/vorteil/vsparse/pkg/vio"
)

// Parent is the backing image of a differencing disk.
type Parent interface {
	io.ReaderAt
	Size() int64
}

// OpenArgs controls how Open treats the stream and parent it is given.
type OpenArgs struct {
	// Parent backs a differencing image. Use vio.ZeroStream for an image
	// whose parent is conceptually empty.
	Parent Parent

	// OwnsParent makes Close (and failed construction) close Parent if it
	// is an io.Closer.
	OwnsParent bool

	// OwnsStream makes Close (and failed construction) close the stream if
	// it is an io.Closer.
	OwnsStream bool

	// DeferFooterCommit stops block allocation from rewriting the trailing
	// footer. Flush or Close must then be called to leave a valid image.
	DeferFooterCommit bool

	Logger elog.Logger

	// resolve finds a parent when none was supplied. Used by OpenFile.
	resolve func(img *Image) (Parent, error)
}

// Image is an open VHD. It presents the logical disk as a byte stream and
// implements io.ReaderAt, io.WriterAt, io.ReadWriteSeeker and
// vio.SparseSource. It is not safe for concurrent use.
type Image struct {
	s   stream
	log elog.Logger

	footer    *Footer
	header    *DynamicHeader
	headerAt  int64
	bat       *BAT
	bitmaps   map[int64]Bitmap
	findings  []Finding
	blockSize int64
	bmSize    int64

	parent     Parent
	ownsParent bool
	ownsStream bool

	// nextBlock is the allocation cursor: where the next block goes and
	// where the trailing footer lives.
	nextBlock   int64
	autoCommit  bool
	footerDirty bool

	pos    int64
	closed bool
}

// Open reads the footer, header and block allocation table of the image in
// s. If the stream also implements io.Writer the image is writable.
func Open(s io.ReadSeeker, args *OpenArgs) (*Image, error) {

	if args == nil {
		args = &OpenArgs{}
	}

	img := &Image{
		s:          stream{rs: s},
		log:        elog.Or(args.Logger),
		bitmaps:    make(map[int64]Bitmap),
		parent:     args.Parent,
		ownsParent: args.OwnsParent,
		ownsStream: args.OwnsStream,
		autoCommit: !args.DeferFooterCommit,
	}

	err := img.load(args)
	if err != nil {
		_ = img.release()
		return nil, err
	}

	return img, nil
}

func (img *Image) load(args *OpenArgs) error {

	size, err := img.s.size()
	if err != nil {
		return err
	}

	footer, recovered, err := loadFooter(img.s, size)
	if err != nil {
		return err
	}
	img.footer = footer

	if recovered != nil {
		img.log.Warnf("%s", recovered.Message)
		img.findings = append(img.findings, *recovered)
	}

	switch footer.DiskType {
	case DiskTypeFixed:
		return img.loadFixed(size)
	case DiskTypeDynamic, DiskTypeDifferencing:
	default:
		return errors.Wrapf(ErrUnsupportedFeature, "disk type %d", footer.DiskType)
	}

	if footer.DataOffset == NoDataOffset {
		return errors.Wrapf(ErrFormat, "%s disk has no header offset", footer.DiskType)
	}

	h, at, findings, err := walkHeaders(img.s, size, footer.DataOffset)
	for _, f := range findings {
		img.log.Warnf("%s", f.Message)
	}
	img.findings = append(img.findings, findings...)
	if err != nil {
		return err
	}

	err = h.validate(footer)
	if err != nil {
		return err
	}

	img.header = h
	img.headerAt = at
	img.blockSize = int64(h.BlockSize)
	img.bmSize = BitmapSize(img.blockSize)

	if int64(h.TableOffset)+batSize(int(h.MaxTableEntries)) > size {
		return errors.Wrapf(ErrTruncatedRecord, "block allocation table at %#x runs past the end of the file", h.TableOffset)
	}

	img.bat, err = ReadBAT(img.s, int64(h.TableOffset), int(h.MaxTableEntries))
	if err != nil {
		return err
	}

	img.nextBlock = img.metadataEnd(size)
	if end := size - FooterSize; end > img.nextBlock {
		img.nextBlock = roundUp(end, SectorSize)
	}

	if footer.DiskType == DiskTypeDifferencing {
		err = img.attachParent(args)
		if err != nil {
			return err
		}
	}

	img.log.Debugf("opened %s image: %d bytes, %d of %d blocks allocated",
		footer.DiskType, footer.Capacity(), img.bat.Allocated(), len(img.bat.Entries))

	return nil
}

func (img *Image) loadFixed(size int64) error {
	if size < img.footer.Capacity()+FooterSize {
		return errors.Wrapf(ErrTruncatedRecord, "fixed image of %d bytes needs %d", size, img.footer.Capacity()+FooterSize)
	}
	if img.footer.DataOffset != NoDataOffset {
		img.findings = append(img.findings, Finding{
			Severity: SeverityWarning,
			Message:  "fixed disk footer has a header offset",
		})
	}
	return nil
}

// metadataEnd returns the first sector past every structure the header and
// BAT describe. Locators that do not fit in the file are ignored.
func (img *Image) metadataEnd(size int64) int64 {

	end := img.headerAt + HeaderSize
	grow := func(x int64) {
		if x > end {
			end = x
		}
	}

	grow(int64(img.header.TableOffset) + batSize(len(img.bat.Entries)))

	for _, l := range img.header.ParentLocators {
		if l.PlatformCode == PlatformNone || locatorBounds(l, size) != nil {
			continue
		}
		last := int64(l.PlatformDataOffset) + int64(l.PlatformDataSpace)
		if last > size {
			last = int64(l.PlatformDataOffset) + int64(l.PlatformDataLength)
		}
		grow(last)
	}

	for i := range img.bat.Entries {
		if img.bat.IsAllocated(int64(i)) {
			grow(img.bat.BlockOffset(int64(i)) + img.bmSize + img.blockSize)
		}
	}

	return roundUp(end, SectorSize)
}

// Size returns the capacity of the logical disk.
func (img *Image) Size() int64 {
	return img.footer.Capacity()
}

// Footer returns the footer in use. It must not be modified.
func (img *Image) Footer() *Footer {
	return img.footer
}

// Header returns the dynamic header, or nil for fixed images.
func (img *Image) Header() *DynamicHeader {
	return img.header
}

// BAT returns the block allocation table, or nil for fixed images.
func (img *Image) BAT() *BAT {
	return img.bat
}

// DiskType reports whether the image is fixed, dynamic or differencing.
func (img *Image) DiskType() DiskType {
	return img.footer.DiskType
}

// Findings returns the non-fatal problems noticed while opening the image.
func (img *Image) Findings() []Finding {
	return img.findings
}

// Parent returns the attached parent, or nil unless the image is differencing.
func (img *Image) Parent() Parent {
	return img.parent
}

// BlockSize returns the allocation unit, or zero for fixed images.
func (img *Image) BlockSize() int64 {
	return img.blockSize
}

// Extents returns the logical ranges that may hold data. For differencing
// images this includes whatever the parent reports.
func (img *Image) Extents() ([]vio.Extent, error) {

	size := img.Size()

	if img.footer.DiskType == DiskTypeFixed {
		return []vio.Extent{{Start: 0, Length: size}}, nil
	}

	var extents []vio.Extent

	if img.footer.DiskType == DiskTypeDifferencing && img.parent != nil {
		px, err := parentExtents(img.parent)
		if err != nil {
			return nil, err
		}
		for _, e := range px {
			if e.Start >= size {
				continue
			}
			if e.End() > size {
				e.Length = size - e.Start
			}
			extents = append(extents, e)
		}
	}

	for i := range img.bat.Entries {
		block := int64(i)
		if !img.bat.IsAllocated(block) {
			continue
		}

		bm, err := img.bitmap(block)
		if err != nil {
			return nil, err
		}

		base := block * img.blockSize
		sectors := img.sectorsIn(block)
		for _, run := range bm.Runs(0, sectors) {
			if !run.Present {
				continue
			}
			e := vio.Extent{
				Start:  base + run.First*SectorSize,
				Length: run.Count * SectorSize,
			}
			if e.End() > size {
				e.Length = size - e.Start
			}
			extents = append(extents, e)
		}
	}

	sortExtents(extents)
	return vio.Coalesce(extents), nil
}

func parentExtents(p Parent) ([]vio.Extent, error) {
	if ss, ok := p.(vio.SparseSource); ok {
		return ss.Extents()
	}
	if p.Size() == 0 {
		return nil, nil
	}
	return []vio.Extent{{Start: 0, Length: p.Size()}}, nil
}

// sectorsIn returns how many sectors of block lie within the logical disk.
func (img *Image) sectorsIn(block int64) int64 {
	n := img.Size() - block*img.blockSize
	if n > img.blockSize {
		n = img.blockSize
	}
	return (n + SectorSize - 1) / SectorSize
}

// bitmap returns the cached bitmap of an allocated block, loading it on
// first use.
func (img *Image) bitmap(block int64) (Bitmap, error) {

	if bm, ok := img.bitmaps[block]; ok {
		return bm, nil
	}

	bm := make(Bitmap, img.bmSize)
	err := img.s.readAt(bm, img.bat.BlockOffset(block))
	if err != nil {
		return nil, errors.Wrapf(err, "loading bitmap of block %d", block)
	}

	img.bitmaps[block] = bm
	return bm, nil
}

// Close flushes a pending footer and releases whatever the image owns.
func (img *Image) Close() error {

	if img.closed {
		return nil
	}

	var err error
	if img.footerDirty {
		err = img.Flush()
	}

	rerr := img.release()
	if err == nil {
		err = rerr
	}

	return err
}

func (img *Image) release() error {

	img.closed = true
	img.bitmaps = nil

	var err error

	if img.ownsParent && img.parent != nil {
		if c, ok := img.parent.(io.Closer); ok {
			err = c.Close()
		}
	}

	if img.ownsStream {
		serr := img.s.close()
		if err == nil {
			err = serr
		}
	}

	return err
}
