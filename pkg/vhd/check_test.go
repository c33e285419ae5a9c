package vhd

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vorteil/vsparse/pkg/vio"
)

// populated returns the bytes of a dynamic image with two allocated blocks.
func populated(t *testing.T) []byte {
	t.Helper()
	img, buf := newDynamic(t, 4*mib, 2*mib)
	_, err := img.WriteAt([]byte("first"), 0)
	require.NoError(t, err)
	_, err = img.WriteAt([]byte("second"), 2*mib+512)
	require.NoError(t, err)
	require.NoError(t, img.Close())
	return append([]byte(nil), buf.Bytes()...)
}

func TestCheckCleanImage(t *testing.T) {

	data := populated(t)

	report := Check(bytes.NewReader(data), ReportAll)
	assert.True(t, report.Passed())
	assert.Empty(t, report.Errors())
	assert.Empty(t, report.Warnings())
	assert.NotEmpty(t, report.Findings)
	for _, f := range report.Findings {
		assert.Equal(t, SeverityInfo, f.Severity, f.Message)
	}

	report = Check(bytes.NewReader(data), ReportErrors)
	assert.True(t, report.Passed())
	assert.Empty(t, report.Findings)
}

func TestCheckRecoversLeadingFooter(t *testing.T) {

	data := populated(t)
	data[len(data)-FooterSize+100] ^= 0x01

	img, err := Open(vio.NewBuffer(data), nil)
	require.NoError(t, err)
	assert.Equal(t, []Finding{{
		Severity: SeverityWarning,
		Message:  "checksum mismatch, recovered from leading copy",
	}}, img.Findings())

	got := make([]byte, 6)
	_, err = img.ReadAt(got, 2*mib+512)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got)

	report := Check(bytes.NewReader(data), ReportAll)
	assert.True(t, report.Passed())
	assert.Empty(t, report.Errors())
	assert.Equal(t, []Finding{{
		Severity: SeverityWarning,
		Message:  "checksum mismatch, recovered from leading copy",
	}}, report.Warnings())
}

func TestCheckDoesNotModify(t *testing.T) {

	data := populated(t)
	data[len(data)-FooterSize] = 'X'
	before := append([]byte(nil), data...)

	buf := vio.NewBuffer(data)
	Check(buf, ReportAll)
	assert.Equal(t, before, buf.Bytes())
}

func TestCheckBothFootersBroken(t *testing.T) {

	data := populated(t)
	data[0] = 'X'
	data[len(data)-FooterSize] = 'X'

	report := Check(bytes.NewReader(data), ReportAll)
	assert.False(t, report.Passed())
	assert.Len(t, report.Errors(), 1)

	_, err := Open(bytes.NewReader(data), nil)
	assert.Error(t, err)
}

func TestCheckOverlappingBlocks(t *testing.T) {

	data := populated(t)
	bat, err := ReadBAT(bytes.NewReader(data), 1536, 2)
	require.NoError(t, err)

	// point block 1 into the middle of block 0
	binary.BigEndian.PutUint32(data[1536+4:], bat.Entries[0]+8)

	report := Check(bytes.NewReader(data), ReportAll)
	assert.False(t, report.Passed())
	require.Len(t, report.Errors(), 1)
	assert.Contains(t, report.Errors()[0].Message, "overlap")
}

func TestCheckBlockIntoMetadata(t *testing.T) {

	data := populated(t)
	binary.BigEndian.PutUint32(data[1536:], 2)

	report := Check(bytes.NewReader(data), ReportErrors)
	assert.False(t, report.Passed())
	assert.NotEmpty(t, report.Errors())
}

func TestCheckBlockPastEnd(t *testing.T) {

	data := populated(t)
	binary.BigEndian.PutUint32(data[1536+4:], 0x00FFFFFF)

	report := Check(bytes.NewReader(data), ReportAll)
	assert.False(t, report.Passed())
	require.Len(t, report.Errors(), 1)
	assert.Contains(t, report.Errors()[0].Message, "past the end")
}

func rewriteHeader(t *testing.T, data []byte, fn func(h *DynamicHeader)) {
	t.Helper()
	h, err := ParseDynamicHeader(data[FooterSize : FooterSize+HeaderSize])
	require.NoError(t, err)
	fn(h)
	hdr, err := h.MarshalBinary()
	require.NoError(t, err)
	copy(data[FooterSize:], hdr)
}

func TestCheckTableEntriesArithmetic(t *testing.T) {

	data := populated(t)
	rewriteHeader(t, data, func(h *DynamicHeader) {
		h.MaxTableEntries = 3
	})

	report := Check(bytes.NewReader(data), ReportAll)
	assert.False(t, report.Passed())
	require.NotEmpty(t, report.Errors())
	assert.Contains(t, report.Errors()[0].Message, "table entries")
}

func TestCheckDynamicClaimsParent(t *testing.T) {

	data := populated(t)
	rewriteHeader(t, data, func(h *DynamicHeader) {
		h.ParentUniqueID[3] = 7
	})

	report := Check(bytes.NewReader(data), ReportAll)
	assert.False(t, report.Passed())
	require.Len(t, report.Errors(), 1)
	assert.Contains(t, report.Errors()[0].Message, "claims parent")
}

func TestCheckHeaderChecksum(t *testing.T) {

	data := populated(t)
	data[FooterSize+900] ^= 0x10

	report := Check(bytes.NewReader(data), ReportAll)
	assert.False(t, report.Passed())
	require.Len(t, report.Errors(), 1)
	assert.Contains(t, report.Errors()[0].Message, "checksum")
}

func TestCheckTruncatedLocator(t *testing.T) {

	parent, _ := newDynamic(t, mib, 0)
	buf := vio.NewBuffer(nil)
	_, err := CreateDifferencing(buf, parent, "", "parent.vhd")
	require.NoError(t, err)

	data := buf.Bytes()
	rewriteHeader(t, data, func(h *DynamicHeader) {
		h.ParentLocators[0].PlatformDataLength = 4096
	})

	report := Check(bytes.NewReader(data), ReportAll)
	assert.False(t, report.Passed())
	assert.Len(t, report.Errors(), 1)
	assert.Len(t, report.Warnings(), 1)

	img, err := Open(bytes.NewReader(data), &OpenArgs{Parent: parent})
	require.NoError(t, err)
	_, err = img.ParentPaths()
	assert.Error(t, err)
}

func TestErrorsFailEvenWhenFiltered(t *testing.T) {

	data := populated(t)
	data[FooterSize+900] ^= 0x10

	report := Check(bytes.NewReader(data), ReportWarnings)
	assert.False(t, report.Passed())
	assert.Empty(t, report.Errors())
}

func TestCheckFixed(t *testing.T) {

	buf := vio.NewBuffer(nil)
	_, err := CreateFixed(buf, 64*kib)
	require.NoError(t, err)

	report := Check(bytes.NewReader(buf.Bytes()), ReportAll)
	assert.True(t, report.Passed())
	assert.Empty(t, report.Warnings())

	extra := append(make([]byte, 512), buf.Bytes()...)
	report = Check(bytes.NewReader(extra), ReportAll)
	assert.True(t, report.Passed())
	assert.Len(t, report.Warnings(), 1)
}

func TestParseReportLevel(t *testing.T) {

	l, err := ParseReportLevel("all")
	require.NoError(t, err)
	assert.Equal(t, ReportAll, l)

	l, err = ParseReportLevel("warnings, errors")
	require.NoError(t, err)
	assert.Equal(t, ReportWarnings|ReportErrors, l)

	_, err = ParseReportLevel("loud")
	assert.Error(t, err)

	_, err = ParseReportLevel("")
	assert.Error(t, err)
}
