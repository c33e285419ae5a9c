package vhd

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"code.cloudfoundry.org/bytefmt"
	"github.com/pkg/errors"
)

// Severity ranks a Finding.
type Severity int

// Severities, least severe first.
const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Finding is a single observation about an image.
type Finding struct {
	Severity Severity
	Message  string
}

func (f Finding) String() string {
	return f.Severity.String() + ": " + f.Message
}

// ReportLevel selects which severities a Report keeps.
type ReportLevel uint8

// Report levels. Combine with |.
const (
	ReportInfo ReportLevel = 1 << iota
	ReportWarnings
	ReportErrors

	ReportAll = ReportInfo | ReportWarnings | ReportErrors
)

func (l ReportLevel) includes(s Severity) bool {
	switch s {
	case SeverityInfo:
		return l&ReportInfo != 0
	case SeverityWarning:
		return l&ReportWarnings != 0
	default:
		return l&ReportErrors != 0
	}
}

// ParseReportLevel accepts a comma separated list of "info", "warnings",
// "errors" and "all".
func ParseReportLevel(s string) (ReportLevel, error) {

	var l ReportLevel

	for _, word := range strings.Split(s, ",") {
		switch strings.ToLower(strings.TrimSpace(word)) {
		case "info":
			l |= ReportInfo
		case "warning", "warnings":
			l |= ReportWarnings
		case "error", "errors":
			l |= ReportErrors
		case "all":
			l |= ReportAll
		case "":
		default:
			return 0, errors.Errorf("unknown report level %q", word)
		}
	}

	if l == 0 {
		return 0, errors.Errorf("empty report level %q", s)
	}

	return l, nil
}

// Report is the outcome of Check.
type Report struct {
	Findings []Finding
	failed   bool
}

// Passed is false if any Error was found, whether or not it was kept.
func (r *Report) Passed() bool {
	return !r.failed
}

func (r *Report) filter(s Severity) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Severity == s {
			out = append(out, f)
		}
	}
	return out
}

// Errors returns the kept findings of SeverityError.
func (r *Report) Errors() []Finding {
	return r.filter(SeverityError)
}

// Warnings returns the kept findings of SeverityWarning.
func (r *Report) Warnings() []Finding {
	return r.filter(SeverityWarning)
}

type checker struct {
	s      stream
	size   int64
	level  ReportLevel
	report *Report
}

func (c *checker) add(sev Severity, format string, x ...interface{}) {
	if sev == SeverityError {
		c.report.failed = true
	}
	if c.level.includes(sev) {
		c.report.Findings = append(c.report.Findings, Finding{
			Severity: sev,
			Message:  fmt.Sprintf(format, x...),
		})
	}
}

func (c *checker) addFinding(f Finding) {
	c.add(f.Severity, "%s", f.Message)
}

// region is a named byte range of the file used for overlap checks.
type region struct {
	name       string
	start, end int64
}

// Check verifies the structure of the image in s without modifying it. It
// always returns a complete report; problems reading the stream are
// reported as errors.
func Check(s io.ReadSeeker, level ReportLevel) *Report {

	c := &checker{
		s:      stream{rs: s},
		level:  level,
		report: new(Report),
	}

	size, err := c.s.size()
	if err != nil {
		c.add(SeverityError, "cannot determine image size: %v", err)
		return c.report
	}
	c.size = size

	footer := c.checkFooter()
	if footer == nil {
		return c.report
	}

	if footer.DiskType == DiskTypeFixed {
		c.checkFixed(footer)
		return c.report
	}

	c.checkDynamic(footer)
	return c.report
}

func (c *checker) checkFooter() *Footer {

	footer, recovered, err := loadFooter(c.s, c.size)
	if err != nil {
		c.add(SeverityError, "footer: %v", err)
		return nil
	}

	if recovered != nil {
		c.addFinding(*recovered)
	}

	if footer.Features&featuresReserved == 0 {
		c.add(SeverityWarning, "footer features %#08x lack the reserved bit", footer.Features)
	}

	if footer.OriginalSize != footer.CurrentSize {
		c.add(SeverityInfo, "disk resized from %s to %s",
			bytefmt.ByteSize(footer.OriginalSize), bytefmt.ByteSize(footer.CurrentSize))
	}

	if footer.CurrentSize%SectorSize != 0 {
		c.add(SeverityWarning, "capacity %d is not a whole number of sectors", footer.CurrentSize)
	}

	switch footer.DiskType {
	case DiskTypeFixed:
		if footer.DataOffset != NoDataOffset {
			c.add(SeverityError, "fixed disk footer has header offset %#x", footer.DataOffset)
		}
	case DiskTypeDynamic, DiskTypeDifferencing:
		if footer.DataOffset == NoDataOffset {
			c.add(SeverityError, "%s disk footer has no header offset", footer.DiskType)
			return nil
		}
		if recovered == nil {
			c.compareLeadingFooter()
		}
	default:
		c.add(SeverityError, "unsupported disk type %d", footer.DiskType)
		return nil
	}

	c.add(SeverityInfo, "%s disk, capacity %s", footer.DiskType, bytefmt.ByteSize(footer.CurrentSize))

	return footer
}

func (c *checker) compareLeadingFooter() {

	if c.size < 2*FooterSize {
		c.add(SeverityError, "file of %d bytes too small for two footers", c.size)
		return
	}

	lead := make([]byte, FooterSize)
	trail := make([]byte, FooterSize)

	err := c.s.readAt(lead, 0)
	if err == nil {
		err = c.s.readAt(trail, c.size-FooterSize)
	}
	if err != nil {
		c.add(SeverityError, "reading footer copies: %v", err)
		return
	}

	_, err = ParseFooter(lead)
	if err != nil {
		c.add(SeverityWarning, "leading footer copy invalid: %v", err)
		return
	}

	if !bytes.Equal(lead, trail) {
		c.add(SeverityWarning, "leading and trailing footer copies differ")
	}
}

func (c *checker) checkFixed(footer *Footer) {
	want := footer.Capacity() + FooterSize
	switch {
	case c.size < want:
		c.add(SeverityError, "fixed image is %d bytes, needs %d", c.size, want)
	case c.size > want:
		c.add(SeverityWarning, "fixed image has %d unexpected bytes before its footer", c.size-want)
	}
}

func (c *checker) checkDynamic(footer *Footer) {

	h, at, findings, err := walkHeaders(c.s, c.size, footer.DataOffset)
	for _, f := range findings {
		c.addFinding(f)
	}
	if err != nil {
		c.add(SeverityError, "dynamic header: %v", err)
		return
	}

	regions := []region{
		{name: "leading footer", start: 0, end: FooterSize},
		{name: "dynamic header", start: at, end: at + HeaderSize},
	}

	bs := int64(h.BlockSize)
	if bs < SectorSize || bs&(bs-1) != 0 {
		c.add(SeverityError, "block size %d is not a power of two of at least %d", bs, SectorSize)
		return
	}

	if want := blockCount(footer.Capacity(), bs); int64(h.MaxTableEntries) != want {
		c.add(SeverityError, "header claims %d table entries, capacity %d with %s blocks needs %d",
			h.MaxTableEntries, footer.Capacity(), bytefmt.ByteSize(uint64(bs)), want)
	}

	c.checkParentIdentity(footer, h)

	batAt := int64(h.TableOffset)
	batLen := batSize(int(h.MaxTableEntries))
	if h.TableOffset > uint64(c.size) || batAt+batLen > c.size-FooterSize {
		c.add(SeverityError, "block allocation table at %#x (%d bytes) runs past the end of the file", h.TableOffset, batLen)
		return
	}
	regions = append(regions, region{name: "block allocation table", start: batAt, end: batAt + batLen})

	regions = append(regions, c.checkLocators(footer, h)...)

	bat, err := ReadBAT(c.s, batAt, int(h.MaxTableEntries))
	if err != nil {
		c.add(SeverityError, "block allocation table: %v", err)
		return
	}

	c.checkOverlaps(regions, "")

	blocks := c.checkBlocks(bat, bs, regions)
	c.checkOverlaps(blocks, "block ")

	c.add(SeverityInfo, "%d of %d blocks allocated", bat.Allocated(), len(bat.Entries))
}

func (c *checker) checkParentIdentity(footer *Footer, h *DynamicHeader) {
	switch footer.DiskType {
	case DiskTypeDynamic:
		if h.HasParent() {
			c.add(SeverityError, "dynamic disk claims parent %s", h.ParentUniqueID)
		}
	case DiskTypeDifferencing:
		if !h.HasParent() {
			c.add(SeverityError, "differencing disk has no parent unique id")
		} else {
			c.add(SeverityInfo, "parent %s (%q)", h.ParentUniqueID, h.ParentName())
		}
	}
}

func (c *checker) checkLocators(footer *Footer, h *DynamicHeader) []region {

	var regions []region
	var usable int

	for i, l := range h.ParentLocators {

		if l.PlatformCode == PlatformNone {
			continue
		}

		if footer.DiskType != DiskTypeDifferencing {
			c.add(SeverityWarning, "parent locator %d on a %s disk", i, footer.DiskType)
		}

		err := locatorBounds(l, c.size)
		if err != nil {
			c.add(SeverityError, "parent locator %d: %v", i, err)
			continue
		}

		start := int64(l.PlatformDataOffset)
		regions = append(regions, region{
			name:  fmt.Sprintf("parent locator %d", i),
			start: start,
			end:   start + int64(l.PlatformDataSpace),
		})

		data := make([]byte, l.PlatformDataLength)
		err = c.s.readAt(data, start)
		if err != nil {
			c.add(SeverityError, "parent locator %d: %v", i, err)
			continue
		}

		lp, err := ParseLocatorPath(l.PlatformCode, data)
		switch {
		case errors.Is(err, ErrUnsupportedFeature):
			c.add(SeverityInfo, "parent locator %d: %v", i, err)
		case err != nil:
			c.add(SeverityWarning, "parent locator %d: %v", i, err)
		default:
			usable++
			c.add(SeverityInfo, "parent locator %d (%s): %s", i, lp.Code, lp.Path)
		}
	}

	if footer.DiskType == DiskTypeDifferencing && usable == 0 {
		c.add(SeverityWarning, "differencing disk has no usable parent locator")
	}

	return regions
}

func (c *checker) checkBlocks(bat *BAT, bs int64, meta []region) []region {

	span := BitmapSize(bs) + bs
	limit := c.size - FooterSize

	var blocks []region

	for i := range bat.Entries {

		block := int64(i)
		if !bat.IsAllocated(block) {
			continue
		}

		start := bat.BlockOffset(block)
		r := region{name: fmt.Sprintf("%d", i), start: start, end: start + span}

		if r.end > limit {
			c.add(SeverityError, "block %d at %#x runs past the end of the data area", i, start)
			continue
		}

		for _, m := range meta {
			if r.start < m.end && m.start < r.end {
				c.add(SeverityError, "block %d at %#x overlaps the %s", i, start, m.name)
			}
		}

		blocks = append(blocks, r)
	}

	return blocks
}

// checkOverlaps sorts regions by offset and reports each one that starts
// before the furthest-reaching region preceding it has ended.
func (c *checker) checkOverlaps(regions []region, prefix string) {

	if len(regions) < 2 {
		return
	}

	sorted := make([]region, len(regions))
	copy(sorted, regions)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].start < sorted[j].start
	})

	reach := sorted[0]
	for _, r := range sorted[1:] {
		if r.start < reach.end {
			c.add(SeverityError, "%s%s and %s%s overlap at %#x", prefix, reach.name, prefix, r.name, r.start)
		}
		if r.end > reach.end {
			reach = r
		}
	}
}
