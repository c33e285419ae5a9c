package vhd

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"encoding/binary"
	"io"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vorteil/vsparse/pkg/elog"
	"github.com/vorteil/vsparse/pkg/vio"
)

type extentKind int

const (
	kindLiteral extentKind = iota
	kindZero
	kindSource
)

// BuilderExtent is one contiguous piece of a Builder's output.
type BuilderExtent struct {
	Offset int64
	Length int64

	kind   extentKind
	data   []byte
	src    io.ReaderAt
	srcOff int64
	srcLen int64 // bytes of src available; the rest of the extent is zero
}

// IsZero reports whether the extent is all zero bytes and could be skipped
// by a writer that produces sparse files.
func (x BuilderExtent) IsZero() bool {
	return x.kind == kindZero
}

// WriteTo writes the extent's content to w.
func (x BuilderExtent) WriteTo(w io.Writer) (int64, error) {

	switch x.kind {
	case kindLiteral:
		n, err := w.Write(x.data)
		return int64(n), err
	case kindZero:
		return io.CopyN(w, vio.Zeroes, x.Length)
	}

	n, err := io.Copy(w, io.NewSectionReader(x.src, x.srcOff, x.srcLen))
	if err != nil {
		return n, err
	}
	if n < x.srcLen {
		return n, errors.Wrapf(io.ErrUnexpectedEOF, "source ended at %#x", x.srcOff+n)
	}

	k, err := io.CopyN(w, vio.Zeroes, x.Length-x.srcLen)
	return n + k, err
}

// ParentInfo identifies the parent of a differencing image being built.
type ParentInfo struct {
	UniqueID     uuid.UUID
	Timestamp    uint32
	AbsolutePath string
	RelativePath string
}

// ParentInfoFromImage describes img as a parent reachable at the given
// paths. Either path may be empty.
func ParentInfoFromImage(img *Image, absPath, relPath string) *ParentInfo {
	return &ParentInfo{
		UniqueID:     img.Footer().UniqueID,
		Timestamp:    img.Footer().Timestamp,
		AbsolutePath: absPath,
		RelativePath: relPath,
	}
}

// BuilderArgs configures NewBuilder.
type BuilderArgs struct {
	// Source supplies the logical disk. Its size, rounded up to a whole
	// sector, becomes the capacity.
	Source vio.SparseSource

	// Footer is a template for the new footer. Size, geometry and layout
	// fields are filled in by the builder. If nil, NewFooter is used.
	Footer *Footer

	// BlockSize defaults to DefaultBlockSize. Ignored for fixed images.
	BlockSize int64

	// Parent makes the output a differencing image.
	Parent *ParentInfo

	Logger elog.Logger
}

// Builder lays out a complete image in one pass. Every offset is decided
// up front so the output can be written sequentially without seeking.
type Builder struct {
	log     elog.Logger
	src     vio.SparseSource
	footer  *Footer
	header  *DynamicHeader
	bat     *BAT
	extents []BuilderExtent
	size    int64
}

// NewBuilder plans the layout of a new image.
func NewBuilder(args *BuilderArgs) (*Builder, error) {

	if args == nil || args.Source == nil {
		return nil, errors.New("builder needs a source")
	}

	b := &Builder{
		log: elog.Or(args.Logger),
		src: args.Source,
	}

	capacity := roundUp(b.src.Size(), SectorSize)

	if args.Footer != nil {
		f := *args.Footer
		b.footer = &f
	} else {
		b.footer = NewFooter(capacity, DiskTypeDynamic)
	}

	err := b.prepareFooter(capacity, args.Parent != nil)
	if err != nil {
		return nil, err
	}

	present, err := b.presentExtents()
	if err != nil {
		return nil, err
	}

	if b.footer.DiskType == DiskTypeFixed {
		err = b.planFixed(present)
		if err != nil {
			return nil, err
		}
	} else {
		err = b.planDynamic(present, args)
		if err != nil {
			return nil, err
		}
	}

	b.log.Debugf("planned %s image of %d bytes holding %d bytes of disk", b.footer.DiskType, b.size, capacity)

	return b, nil
}

func (b *Builder) prepareFooter(capacity int64, differencing bool) error {

	f := b.footer
	copy(f.Cookie[:], footerCookie)
	f.Features |= featuresReserved
	if f.FileFormatVersion == 0 {
		f.FileFormatVersion = fileFormatVersion
	}

	if differencing {
		if f.DiskType == DiskTypeFixed {
			return errors.New("a fixed image cannot have a parent")
		}
		f.DiskType = DiskTypeDifferencing
	}

	switch f.DiskType {
	case DiskTypeNone:
		f.DiskType = DiskTypeDynamic
	case DiskTypeFixed, DiskTypeDynamic, DiskTypeDifferencing:
	default:
		return errors.Wrapf(ErrUnsupportedFeature, "disk type %d", f.DiskType)
	}

	if f.Geometry == (Geometry{}) || f.CurrentSize != uint64(capacity) {
		f.Geometry = CalculateGeometry(capacity)
	}

	if f.OriginalSize == 0 || f.OriginalSize > uint64(capacity) {
		f.OriginalSize = uint64(capacity)
	}
	f.CurrentSize = uint64(capacity)

	if f.UniqueID == (uuid.UUID{}) {
		f.UniqueID = uuid.New()
	}

	return nil
}

// presentExtents returns the source's extents sorted, merged and clipped to
// the source.
func (b *Builder) presentExtents() ([]vio.Extent, error) {

	x, err := b.src.Extents()
	if err != nil {
		return nil, err
	}

	size := b.src.Size()
	extents := make([]vio.Extent, 0, len(x))
	for _, e := range x {
		if e.Start < 0 || e.Start >= size {
			continue
		}
		if e.End() > size {
			e.Length = size - e.Start
		}
		extents = append(extents, e)
	}

	sortExtents(extents)
	return vio.Coalesce(extents), nil
}

func (b *Builder) emit(x BuilderExtent) {

	x.Offset = b.size
	b.size += x.Length

	if x.Length == 0 {
		return
	}

	if n := len(b.extents); n > 0 && x.kind == kindZero && b.extents[n-1].kind == kindZero {
		b.extents[n-1].Length += x.Length
		return
	}

	b.extents = append(b.extents, x)
}

func (b *Builder) emitLiteral(data []byte) {
	b.emit(BuilderExtent{Length: int64(len(data)), kind: kindLiteral, data: data})
}

func (b *Builder) emitZero(n int64) {
	b.emit(BuilderExtent{Length: n, kind: kindZero})
}

// emitSource emits n bytes of the logical disk starting at off, zero padded
// past the end of the source.
func (b *Builder) emitSource(off, n int64) {
	valid := b.src.Size() - off
	if valid > n {
		valid = n
	}
	if valid <= 0 {
		b.emitZero(n)
		return
	}
	b.emit(BuilderExtent{Length: n, kind: kindSource, src: b.src, srcOff: off, srcLen: valid})
}

func (b *Builder) planFixed(present []vio.Extent) error {

	b.footer.DataOffset = NoDataOffset

	var cursor int64
	for _, e := range present {
		b.emitZero(e.Start - cursor)
		b.emitSource(e.Start, e.Length)
		cursor = e.End()
	}
	b.emitZero(int64(b.footer.CurrentSize) - cursor)

	return b.emitFooter()
}

func (b *Builder) emitFooter() error {
	data, err := b.footer.MarshalBinary()
	if err != nil {
		return err
	}
	b.emitLiteral(data)
	return nil
}

type plannedBlock struct {
	index   int64
	bitmap  Bitmap
	extents []vio.Extent // present logical ranges, clipped to the block
}

func (b *Builder) planDynamic(present []vio.Extent, args *BuilderArgs) error {

	bs := args.BlockSize
	if bs == 0 {
		bs = DefaultBlockSize
	}
	if bs < SectorSize || bs&(bs-1) != 0 || bs > MaxBlockSize {
		return errors.Errorf("block size %d is not a power of two between %d and 2GiB", bs, SectorSize)
	}

	capacity := int64(b.footer.CurrentSize)
	entries := blockCount(capacity, bs)
	tableOffset := int64(FooterSize + HeaderSize)

	b.footer.DataOffset = FooterSize
	b.header = NewDynamicHeader(capacity, bs, tableOffset)
	b.bat = NewBAT(int(entries))

	cursor := tableOffset + batSize(int(entries))

	var locators [][]byte
	if p := args.Parent; p != nil {
		var err error
		locators, cursor, err = b.planParent(p, cursor)
		if err != nil {
			return err
		}
	}

	bmSize := BitmapSize(bs)
	blocks := planBlocks(present, bs, bmSize)
	for _, blk := range blocks {
		if cursor/SectorSize >= Unallocated {
			return errors.Wrapf(ErrOutOfRange, "image too large to address block %d", blk.index)
		}
		b.bat.Entries[blk.index] = uint32(cursor / SectorSize)
		cursor += bmSize + bs
	}

	// layout is fixed; emit in physical order
	err := b.emitFooter()
	if err != nil {
		return err
	}

	hdr, err := b.header.MarshalBinary()
	if err != nil {
		return err
	}
	b.emitLiteral(hdr)

	tbl, err := b.bat.MarshalBinary()
	if err != nil {
		return err
	}
	b.emitLiteral(tbl)

	for _, l := range locators {
		b.emitLiteral(l)
	}

	for _, blk := range blocks {
		b.emitLiteral(blk.bitmap)
		cursor := blk.index * bs
		for _, e := range blk.extents {
			b.emitZero(e.Start - cursor)
			b.emitSource(e.Start, e.Length)
			cursor = e.End()
		}
		b.emitZero((blk.index+1)*bs - cursor)
	}

	return b.emitFooter()
}

// planParent fills the parent fields of the header and lays out locator
// payloads starting at cursor.
func (b *Builder) planParent(p *ParentInfo, cursor int64) ([][]byte, int64, error) {

	h := b.header
	h.ParentUniqueID = p.UniqueID
	h.ParentTimestamp = p.Timestamp

	name := p.RelativePath
	if p.AbsolutePath != "" {
		name = p.AbsolutePath
	}
	err := h.SetParentName(filepath.Base(localPath(name)))
	if err != nil {
		return nil, 0, err
	}

	var payloads [][]byte
	var slot int

	add := func(code PlatformCode, path string) {
		if path == "" {
			return
		}
		data := encodeUTF16(path, binary.LittleEndian)
		space := roundUp(int64(len(data)), SectorSize)
		if space == 0 {
			space = SectorSize
		}
		h.ParentLocators[slot] = ParentLocator{
			PlatformCode:       code,
			PlatformDataSpace:  uint32(space),
			PlatformDataLength: uint32(len(data)),
			PlatformDataOffset: uint64(cursor),
		}
		buf := make([]byte, space)
		copy(buf, data)
		payloads = append(payloads, buf)
		cursor += space
		slot++
	}

	add(PlatformWindowsAbsolute, p.AbsolutePath)
	add(PlatformWindowsRelative, p.RelativePath)

	return payloads, cursor, nil
}

// planBlocks groups sorted extents into blocks, marking every sector that
// any extent touches. Bytes of a marked sector outside every extent are
// written as zero.
func planBlocks(present []vio.Extent, bs, bmSize int64) []plannedBlock {

	var blocks []plannedBlock

	for _, e := range present {
		for idx := e.Start / bs; idx*bs < e.End(); idx++ {

			if n := len(blocks); n == 0 || blocks[n-1].index != idx {
				blocks = append(blocks, plannedBlock{index: idx, bitmap: make(Bitmap, bmSize)})
			}
			blk := &blocks[len(blocks)-1]

			start := e.Start - idx*bs
			if start < 0 {
				start = 0
			}
			end := e.End() - idx*bs
			if end > bs {
				end = bs
			}

			first := start / SectorSize
			last := (end - 1) / SectorSize
			blk.bitmap.SetRange(first, last-first+1)
			blk.extents = append(blk.extents, vio.Extent{Start: idx*bs + start, Length: end - start})
		}
	}

	return blocks
}

// Footer returns the footer the image will be written with.
func (b *Builder) Footer() *Footer {
	return b.footer
}

// Header returns the planned dynamic header, or nil for fixed images.
func (b *Builder) Header() *DynamicHeader {
	return b.header
}

// BAT returns the planned block allocation table, or nil for fixed images.
func (b *Builder) BAT() *BAT {
	return b.bat
}

// Size returns the number of bytes WriteTo produces.
func (b *Builder) Size() int64 {
	return b.size
}

// Extents returns the output in increasing offset order. Together the
// extents cover [0, Size()) without gaps.
func (b *Builder) Extents() ([]BuilderExtent, error) {
	x := make([]BuilderExtent, len(b.extents))
	copy(x, b.extents)
	return x, nil
}

// WriteTo writes the whole image sequentially.
func (b *Builder) WriteTo(w io.Writer) (int64, error) {

	var total int64

	for _, x := range b.extents {
		n, err := x.WriteTo(w)
		total += n
		if err != nil {
			return total, errors.Wrapf(err, "writing image at %#x", x.Offset)
		}
		if n != x.Length {
			return total, errors.Errorf("wrote %d of %d bytes at %#x", n, x.Length, x.Offset)
		}
	}

	return total, nil
}
