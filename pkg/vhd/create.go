package vhd

import (
	"io"

	"github.com/vorteil/vsparse/pkg/vio"
)

type truncater interface {
	Truncate(size int64) error
}

// CreateDynamic writes an empty dynamic image of capacity bytes to s and
// opens it. A blockSize of zero selects DefaultBlockSize.
func CreateDynamic(s io.ReadWriteSeeker, capacity, blockSize int64) (*Image, error) {

	b, err := NewBuilder(&BuilderArgs{
		Source:    vio.ZeroStream(capacity),
		Footer:    NewFooter(capacity, DiskTypeDynamic),
		BlockSize: blockSize,
	})
	if err != nil {
		return nil, err
	}

	return create(s, b, &OpenArgs{})
}

// CreateFixed writes a zeroed fixed image of capacity bytes to s and opens
// it.
func CreateFixed(s io.ReadWriteSeeker, capacity int64) (*Image, error) {

	b, err := NewBuilder(&BuilderArgs{
		Source: vio.ZeroStream(capacity),
		Footer: NewFooter(capacity, DiskTypeFixed),
	})
	if err != nil {
		return nil, err
	}

	return create(s, b, &OpenArgs{})
}

// CreateDifferencing writes an empty differencing image over parent to s
// and opens it with parent attached. The paths are stored in the parent
// locators; either may be empty. The new image does not own parent.
func CreateDifferencing(s io.ReadWriteSeeker, parent *Image, absPath, relPath string) (*Image, error) {

	footer := NewFooter(parent.Size(), DiskTypeDifferencing)
	footer.Geometry = parent.Footer().Geometry

	b, err := NewBuilder(&BuilderArgs{
		Source:    vio.ZeroStream(parent.Size()),
		Footer:    footer,
		BlockSize: parent.BlockSize(),
		Parent:    ParentInfoFromImage(parent, absPath, relPath),
	})
	if err != nil {
		return nil, err
	}

	return create(s, b, &OpenArgs{Parent: parent})
}

func create(s io.ReadWriteSeeker, b *Builder, args *OpenArgs) (*Image, error) {

	_, err := s.Seek(0, io.SeekStart)
	if err != nil {
		return nil, err
	}

	n, err := b.WriteTo(s)
	if err != nil {
		return nil, err
	}

	if t, ok := s.(truncater); ok {
		err = t.Truncate(n)
		if err != nil {
			return nil, err
		}
	}

	return Open(s, args)
}
