/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */
package imagetools

import (
	"github.com/vorteil/vsparse/pkg/vhd"
)

// DUImageReport describes how much storage each image of a parent chain
// holds, child first.
type DUImageReport struct {
	Capacity int64
	Layers   []duImageInfo
}

type duImageInfo struct {
	Name      string
	DiskType  string
	Allocated int64 // bytes of blocks allocated, bitmaps excluded
	Present   int64 // bytes marked present in the sector bitmaps
}

// DUImage walks img and its parents. Layers are named by the parent name
// stored in their child; the first layer is called name.
func DUImage(img *vhd.Image, name string) (DUImageReport, error) {

	duOut := DUImageReport{
		Capacity: img.Size(),
	}

	for img != nil {

		layer := duImageInfo{
			Name:     name,
			DiskType: img.DiskType().String(),
		}

		mappings, err := img.MapRange(0, img.Size())
		if err != nil {
			return duOut, err
		}

		for _, m := range mappings {
			if m.Present {
				layer.Present += m.Length
			}
		}

		if img.DiskType() == vhd.DiskTypeFixed {
			layer.Allocated = img.Size()
		} else {
			layer.Allocated = int64(img.BAT().Allocated()) * img.BlockSize()
		}

		duOut.Layers = append(duOut.Layers, layer)

		var next *vhd.Image
		if img.DiskType() == vhd.DiskTypeDifferencing {
			name = img.Header().ParentName()
			next, _ = img.Parent().(*vhd.Image)
		}
		img = next
	}

	return duOut, nil
}
