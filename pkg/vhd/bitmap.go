package vhd

// Bitmap records which sectors of a block hold data. Bit order is MSB-first:
// sector 0 of a byte is bit 7.
type Bitmap []byte

// Test reports whether sector is present.
func (b Bitmap) Test(sector int64) bool {
	return b[sector/8]&(0x80>>uint(sector%8)) != 0
}

// Set marks sector present and reports whether the bitmap changed.
func (b Bitmap) Set(sector int64) bool {
	mask := byte(0x80 >> uint(sector%8))
	if b[sector/8]&mask != 0 {
		return false
	}
	b[sector/8] |= mask
	return true
}

// SetRange marks count sectors starting at first present.
func (b Bitmap) SetRange(first, count int64) bool {
	var changed bool
	for s := first; s < first+count; s++ {
		if b.Set(s) {
			changed = true
		}
	}
	return changed
}

// Run is a maximal span of sectors sharing one presence state.
type Run struct {
	First   int64
	Count   int64
	Present bool
}

// Runs splits count sectors starting at first into runs of equal state.
func (b Bitmap) Runs(first, count int64) []Run {

	var runs []Run

	for s := first; s < first+count; s++ {
		present := b.Test(s)
		if n := len(runs); n > 0 && runs[n-1].Present == present {
			runs[n-1].Count++
			continue
		}
		runs = append(runs, Run{First: s, Count: 1, Present: present})
	}

	return runs
}
