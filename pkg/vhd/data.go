package vhd

import "github.com/google/uuid"

// On-disk sizes and constants. All multi-byte fields are big-endian.
const (
	SectorSize       = 512
	FooterSize       = 512
	HeaderSize       = 1024
	DefaultBlockSize = 0x200000
	MaxBlockSize     = 0x80000000

	// NoDataOffset terminates the header chain and marks fixed disks.
	NoDataOffset = 0xFFFFFFFFFFFFFFFF

	// Unallocated is the BAT sentinel for a block with no storage yet.
	Unallocated = 0xFFFFFFFF

	footerCookie = "conectix"
	headerCookie = "cxsparse"

	featuresReserved  = 0x00000002
	fileFormatVersion = 0x00010000
	headerVersion     = 0x00010000

	footerChecksumOffset = 64
	headerChecksumOffset = 36

	// seconds between the unix epoch and 2000-01-01 00:00:00 UTC
	epochOffset = 946684800
)

// DiskType enumerates the layouts a footer can describe.
type DiskType uint32

// Disk types.
const (
	DiskTypeNone         DiskType = 0
	DiskTypeFixed        DiskType = 2
	DiskTypeDynamic      DiskType = 3
	DiskTypeDifferencing DiskType = 4
)

func (t DiskType) String() string {
	switch t {
	case DiskTypeFixed:
		return "fixed"
	case DiskTypeDynamic:
		return "dynamic"
	case DiskTypeDifferencing:
		return "differencing"
	default:
		return "unknown"
	}
}

// Geometry is the advisory CHS triple stored in the footer.
type Geometry struct {
	Cylinders       uint16
	Heads           uint8
	SectorsPerTrack uint8
}

// Footer is the 512 byte record found at the end of every image (and at the
// start of dynamic and differencing images).
type Footer struct {
	Cookie            [8]byte
	Features          uint32
	FileFormatVersion uint32
	DataOffset        uint64
	Timestamp         uint32
	CreatorApp        [4]byte
	CreatorVersion    uint32
	CreatorHostOS     [4]byte
	OriginalSize      uint64
	CurrentSize       uint64
	Geometry          Geometry
	DiskType          DiskType
	Checksum          uint32
	UniqueID          uuid.UUID
	SavedState        uint8
	Reserved          [427]byte
}

// PlatformCode identifies how a parent locator payload is encoded.
type PlatformCode uint32

// Platform codes.
const (
	PlatformNone            PlatformCode = 0
	PlatformWindowsAbsolute PlatformCode = 0x57326B75 // W2ku
	PlatformWindowsRelative PlatformCode = 0x57327275 // W2ru
	PlatformMacAlias        PlatformCode = 0x4D616320 // Mac
	PlatformMacURL          PlatformCode = 0x4D616358 // MacX
)

func (c PlatformCode) String() string {
	if c == PlatformNone {
		return "none"
	}
	return string([]byte{byte(c >> 24), byte(c >> 16), byte(c >> 8), byte(c)})
}

// ParentLocator points at a parent path payload stored elsewhere in the file.
type ParentLocator struct {
	PlatformCode       PlatformCode
	PlatformDataSpace  uint32
	PlatformDataLength uint32
	Reserved           uint32
	PlatformDataOffset uint64
}

// DynamicHeader is the 1024 byte record describing the BAT of a dynamic or
// differencing image.
type DynamicHeader struct {
	Cookie            [8]byte
	DataOffset        uint64
	TableOffset       uint64
	HeaderVersion     uint32
	MaxTableEntries   uint32
	BlockSize         uint32
	Checksum          uint32
	ParentUniqueID    uuid.UUID
	ParentTimestamp   uint32
	Reserved          uint32
	ParentUnicodeName [512]byte
	ParentLocators    [8]ParentLocator
	Reserved2         [256]byte
}
