package vhd

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

const maxHeaderHops = 16

// Sniff reports whether s carries a footer cookie in its last sector or, for
// images with a damaged trailing footer, its first. Checksums are not
// verified.
func Sniff(s io.ReadSeeker) (bool, error) {

	st := stream{rs: s}
	size, err := st.size()
	if err != nil {
		return false, err
	}
	if size < FooterSize {
		return false, nil
	}

	cookie := make([]byte, len(footerCookie))
	for _, off := range []int64{size - FooterSize, 0} {
		err = st.readAt(cookie, off)
		if err != nil {
			return false, err
		}
		if string(cookie) == footerCookie {
			return true, nil
		}
	}

	return false, nil
}

// loadFooter reads the trailing footer, falling back to the leading copy
// that dynamic and differencing images carry. A successful fallback is
// returned as a warning.
func loadFooter(s stream, size int64) (*Footer, *Finding, error) {

	if size < FooterSize {
		return nil, nil, errors.Wrapf(ErrFormat, "file of %d bytes cannot hold a footer", size)
	}

	buf := make([]byte, FooterSize)
	err := s.readAt(buf, size-FooterSize)
	if err != nil {
		return nil, nil, err
	}

	f, ferr := ParseFooter(buf)
	if ferr == nil {
		return f, nil, nil
	}

	if size >= 2*FooterSize {
		err = s.readAt(buf, 0)
		if err != nil {
			return nil, nil, err
		}
		lead, lerr := ParseFooter(buf)
		if lerr == nil && lead.DiskType != DiskTypeFixed {
			return lead, &Finding{Severity: SeverityWarning, Message: recoveredMessage(ferr)}, nil
		}
	}

	return nil, nil, errors.Wrap(ferr, "trailing footer")
}

func recoveredMessage(err error) string {
	const suffix = ", recovered from leading copy"
	switch {
	case errors.Is(err, ErrChecksum):
		return "checksum mismatch" + suffix
	case errors.Is(err, ErrMagic):
		return "cookie mismatch" + suffix
	case errors.Is(err, ErrVersion):
		return "version mismatch" + suffix
	default:
		return fmt.Sprintf("trailing footer unreadable (%v)%s", err, suffix)
	}
}

// walkHeaders follows the header chain starting at off and returns the
// first dynamic header on it along with its position. Records that are not
// dynamic headers, and dynamic headers after the first, are reported as
// warnings and skipped.
func walkHeaders(s stream, size int64, off uint64) (*DynamicHeader, int64, []Finding, error) {

	var found *DynamicHeader
	var foundAt int64
	var findings []Finding

	warn := func(format string, x ...interface{}) {
		findings = append(findings, Finding{
			Severity: SeverityWarning,
			Message:  fmt.Sprintf(format, x...),
		})
	}

	buf := make([]byte, HeaderSize)

	for hops := 0; off != NoDataOffset; hops++ {

		if hops == maxHeaderHops {
			warn("header chain longer than %d records, stopped following it", maxHeaderHops)
			break
		}

		if off > uint64(size) || int64(off)+HeaderSize > size {
			if found == nil {
				return nil, 0, findings, errors.Wrapf(ErrTruncatedRecord, "header at %#x lies beyond the end of the file", off)
			}
			warn("header chain points beyond the end of the file at %#x", off)
			break
		}

		at := int64(off)
		err := s.readAt(buf, at)
		if err != nil {
			return nil, 0, findings, err
		}

		next := binary.BigEndian.Uint64(buf[8:16])

		if string(buf[:8]) != headerCookie {
			warn("unrecognized header record %q at %#x", buf[:8], at)
			off = next
			continue
		}

		if found != nil {
			warn("duplicate dynamic header at %#x ignored", at)
			off = next
			continue
		}

		h, err := ParseDynamicHeader(buf)
		if err != nil {
			return nil, 0, findings, errors.Wrapf(err, "header at %#x", at)
		}

		found = h
		foundAt = at
		off = next
	}

	if found == nil {
		return nil, 0, findings, errors.Wrap(ErrFormat, "no dynamic header found")
	}

	return found, foundAt, findings, nil
}
