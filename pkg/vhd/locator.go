package vhd

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// LocatorPath is a decoded parent locator payload.
type LocatorPath struct {
	Code     PlatformCode
	Path     string
	Relative bool
}

// ParseLocatorPath decodes a locator payload according to its platform code.
// Only the Windows unicode variants are supported; the Mac variants are
// recognized and rejected with ErrUnsupportedFeature.
func ParseLocatorPath(code PlatformCode, data []byte) (LocatorPath, error) {

	lp := LocatorPath{Code: code}

	switch code {
	case PlatformWindowsAbsolute:
	case PlatformWindowsRelative:
		lp.Relative = true
	case PlatformMacAlias, PlatformMacURL:
		return lp, errors.Wrapf(ErrUnsupportedFeature, "parent locator platform %q", code.String())
	default:
		return lp, errors.Wrapf(ErrUnsupportedFeature, "unknown parent locator platform %#08x", uint32(code))
	}

	lp.Path = decodeUTF16(data, binary.LittleEndian)
	if lp.Path == "" {
		return lp, errors.Wrapf(ErrFormat, "empty %q parent locator", code.String())
	}

	return lp, nil
}

// locatorBounds checks a locator against the file it lives in.
func locatorBounds(l ParentLocator, size int64) error {
	if l.PlatformDataLength > l.PlatformDataSpace {
		return errors.Wrapf(ErrTruncatedRecord, "locator payload of %d bytes exceeds its %d byte space", l.PlatformDataLength, l.PlatformDataSpace)
	}
	if l.PlatformDataOffset > uint64(size) || int64(l.PlatformDataOffset)+int64(l.PlatformDataLength) > size {
		return errors.Wrapf(ErrTruncatedRecord, "locator payload at %#x runs past the end of the file", l.PlatformDataOffset)
	}
	return nil
}

// ParentPaths decodes every used parent locator. A locator that cannot be
// decoded is skipped; an error is returned only when nothing usable was
// found and at least one locator failed.
func (img *Image) ParentPaths() ([]LocatorPath, error) {

	if img.header == nil {
		return nil, nil
	}

	size, err := img.s.size()
	if err != nil {
		return nil, err
	}

	var paths []LocatorPath
	var first error

	for i, l := range img.header.ParentLocators {

		if l.PlatformCode == PlatformNone {
			continue
		}

		lp, err := img.readLocator(l, size)
		if err != nil {
			img.log.Debugf("parent locator %d: %v", i, err)
			if first == nil {
				first = errors.Wrapf(err, "parent locator %d", i)
			}
			continue
		}

		paths = append(paths, lp)
	}

	if len(paths) == 0 && first != nil {
		return nil, first
	}

	return paths, nil
}

func (img *Image) readLocator(l ParentLocator, size int64) (LocatorPath, error) {

	err := locatorBounds(l, size)
	if err != nil {
		return LocatorPath{Code: l.PlatformCode}, err
	}

	data := make([]byte, l.PlatformDataLength)
	err = img.s.readAt(data, int64(l.PlatformDataOffset))
	if err != nil {
		return LocatorPath{Code: l.PlatformCode}, err
	}

	return ParseLocatorPath(l.PlatformCode, data)
}
