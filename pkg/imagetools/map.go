package imagetools

import (
	"github.com/vorteil/vsparse/pkg/vhd"
)

// MapEntry is a run of logical bytes that share a backing.
type MapEntry struct {
	Logical  int64
	Length   int64
	Physical int64  // -1 unless Source is "image"
	Source   string // "image", "parent" or "zero"
}

// MapImage resolves length bytes at off to where they are read from. Runs
// of consecutive mappings with the same source are merged when their
// physical ranges are contiguous.
func MapImage(img *vhd.Image, off, length int64) ([]MapEntry, error) {

	mappings, err := img.MapRange(off, length)
	if err != nil {
		return nil, err
	}

	fallback := "zero"
	if img.DiskType() == vhd.DiskTypeDifferencing && img.Parent() != nil {
		fallback = "parent"
	}

	var out []MapEntry

	for _, m := range mappings {

		e := MapEntry{
			Logical:  m.Logical,
			Length:   m.Length,
			Physical: -1,
			Source:   fallback,
		}
		if m.Present {
			e.Physical = m.Physical
			e.Source = "image"
		}

		if n := len(out); n > 0 {
			prev := &out[n-1]
			contiguous := prev.Physical < 0 || prev.Physical+prev.Length == e.Physical
			if prev.Source == e.Source && prev.Logical+prev.Length == e.Logical && contiguous {
				prev.Length += e.Length
				continue
			}
		}

		out = append(out, e)
	}

	return out, nil
}
