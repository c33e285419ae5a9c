package vhd

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// WriteAt writes logical disk content, allocating blocks as needed. The
// disk never grows: ranges beyond Size fail with ErrOutOfRange.
func (img *Image) WriteAt(p []byte, off int64) (int, error) {

	if !img.s.writable() {
		return 0, ErrReadOnly
	}

	err := img.checkRange(off, int64(len(p)))
	if err != nil {
		return 0, err
	}

	if img.footer.DiskType == DiskTypeFixed {
		err = img.s.writeAt(p, off)
		if err != nil {
			return 0, err
		}
		return len(p), nil
	}

	var written int

	for written < len(p) {

		cur := off + int64(written)
		block := cur / img.blockSize
		within := cur % img.blockSize
		n := img.blockSize - within
		if rem := int64(len(p) - written); n > rem {
			n = rem
		}

		if !img.bat.IsAllocated(block) {
			err = img.allocateBlock(block)
			if err != nil {
				return written, err
			}
		}

		err = img.writeBlock(block, within, p[written:written+int(n)])
		if err != nil {
			return written, err
		}

		written += int(n)
	}

	return written, nil
}

// Write implements io.Writer over the logical disk.
func (img *Image) Write(p []byte) (int, error) {
	n, err := img.WriteAt(p, img.pos)
	img.pos += int64(n)
	return n, err
}

func (img *Image) writeBlock(block, within int64, data []byte) error {

	bm, err := img.bitmap(block)
	if err != nil {
		return err
	}

	payload := img.bat.BlockOffset(block) + img.bmSize
	base := block * img.blockSize
	var changed bool

	for len(data) > 0 {

		sector := within / SectorSize
		skew := within % SectorSize

		if skew == 0 && len(data) >= SectorSize {
			count := int64(len(data)) / SectorSize
			err = img.s.writeAt(data[:count*SectorSize], payload+within)
			if err != nil {
				return err
			}
			if bm.SetRange(sector, count) {
				changed = true
			}
			within += count * SectorSize
			data = data[count*SectorSize:]
			continue
		}

		buf := make([]byte, SectorSize)
		if bm.Test(sector) {
			err = img.s.readAt(buf, payload+sector*SectorSize)
		} else {
			err = img.readParent(buf, base+sector*SectorSize)
		}
		if err != nil {
			return err
		}

		k := copy(buf[skew:], data)
		err = img.s.writeAt(buf, payload+sector*SectorSize)
		if err != nil {
			return err
		}
		if bm.Set(sector) {
			changed = true
		}

		within += int64(k)
		data = data[k:]
	}

	if changed {
		err = img.s.writeAt(bm, img.bat.BlockOffset(block))
		if err != nil {
			return errors.Wrapf(err, "persisting bitmap of block %d", block)
		}
	}

	return nil
}

// allocateBlock places block at the allocation cursor with an empty bitmap
// and records it in the on-disk BAT.
func (img *Image) allocateBlock(block int64) error {

	if block < 0 || block >= int64(len(img.bat.Entries)) {
		return errors.Wrapf(ErrOutOfRange, "block %d outside table of %d entries", block, len(img.bat.Entries))
	}

	if img.bat.IsAllocated(block) {
		return errors.Wrapf(ErrAllocationConflict, "block %d at sector %d", block, img.bat.Entries[block])
	}

	at := img.nextBlock
	if at/SectorSize >= Unallocated {
		return errors.Wrapf(ErrOutOfRange, "allocation cursor %#x beyond addressable sectors", at)
	}

	bm := make(Bitmap, img.bmSize)
	err := img.s.writeAt(bm, at)
	if err != nil {
		return err
	}

	entry := uint32(at / SectorSize)
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, entry)
	err = img.s.writeAt(buf, int64(img.header.TableOffset)+4*block)
	if err != nil {
		return errors.Wrapf(err, "persisting table entry %d", block)
	}

	img.bat.Entries[block] = entry
	img.bitmaps[block] = bm
	img.nextBlock = at + img.bmSize + img.blockSize
	img.footerDirty = true

	img.log.Debugf("allocated block %d at %#x", block, at)

	if img.autoCommit {
		return img.commitFooter()
	}

	return nil
}

func (img *Image) commitFooter() error {

	data, err := img.footer.MarshalBinary()
	if err != nil {
		return err
	}

	err = img.s.writeAt(data, img.nextBlock)
	if err != nil {
		return errors.Wrap(err, "writing trailing footer")
	}

	img.footerDirty = false
	return nil
}

// SetAutoCommitFooter controls whether every block allocation rewrites the
// trailing footer. Turning it back on commits any pending footer.
func (img *Image) SetAutoCommitFooter(on bool) error {
	img.autoCommit = on
	if on && img.footerDirty {
		return img.commitFooter()
	}
	return nil
}

type syncer interface {
	Sync() error
}

// Flush writes a pending trailing footer and syncs the stream if it
// supports it.
func (img *Image) Flush() error {

	if img.footerDirty {
		err := img.commitFooter()
		if err != nil {
			return err
		}
	}

	if s, ok := img.s.rs.(syncer); ok {
		return s.Sync()
	}

	return nil
}
