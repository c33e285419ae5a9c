package imagetools

import (
	"time"

	"github.com/vorteil/vsparse/pkg/vhd"
)

// StatReport summarizes the metadata of a VHD.
type StatReport struct {
	DiskType        string
	Capacity        int64
	OriginalSize    int64
	Created         time.Time
	Creator         string
	UniqueID        string
	Geometry        vhd.Geometry
	BlockSize       int64
	Blocks          int
	AllocatedBlocks int
	TableOffset     int64
	ParentName      string
	ParentID        string
	ParentPaths     []string
	Findings        []vhd.Finding
}

// StatImage reports on img. Fields that only apply to dynamic and
// differencing disks are left zero for fixed ones.
func StatImage(img *vhd.Image) StatReport {

	f := img.Footer()

	statOut := StatReport{
		DiskType:     f.DiskType.String(),
		Capacity:     img.Size(),
		OriginalSize: int64(f.OriginalSize),
		Created:      f.Time(),
		Creator:      string(f.CreatorApp[:]),
		UniqueID:     f.UniqueID.String(),
		Geometry:     f.Geometry,
		Findings:     img.Findings(),
	}

	if img.DiskType() == vhd.DiskTypeFixed {
		return statOut
	}

	h := img.Header()
	statOut.BlockSize = img.BlockSize()
	statOut.Blocks = len(img.BAT().Entries)
	statOut.AllocatedBlocks = img.BAT().Allocated()
	statOut.TableOffset = int64(h.TableOffset)

	if img.DiskType() == vhd.DiskTypeDifferencing {
		statOut.ParentName = h.ParentName()
		statOut.ParentID = h.ParentUniqueID.String()
		paths, _ := img.ParentPaths()
		for _, p := range paths {
			statOut.ParentPaths = append(statOut.ParentPaths, p.Code.String()+" "+p.Path)
		}
	}

	return statOut
}
