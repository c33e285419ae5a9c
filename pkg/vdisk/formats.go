package vdisk

import (
	"context"
	"encoding/json"
	"io"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/vorteil/vsparse/pkg/vio"
)

type Format string

const (
	RAWFormat        Format = "raw"
	VHDFormat        Format = "vhd"
	VHDFixedFormat   Format = "vhd-fixed"
	VHDDynamicFormat Format = "vhd-dynamic"
)

type convertFunc func(ctx context.Context, w io.Writer, src vio.SparseSource, args *ConvertArgs) error

func AllFormatStrings() []string {
	strs := make([]string, len(formats))
	i := 0
	for k := range formats {
		strs[i] = k.String()
		i++
	}
	sort.Strings(strs)
	return strs
}

var (
	formats = map[Format]string{
		RAWFormat:        ".raw",
		VHDFormat:        ".vhd",
		VHDFixedFormat:   ".vhd",
		VHDDynamicFormat: ".vhd",
	}

	convertFuncs = map[Format]convertFunc{
		RAWFormat:        convertRAW,
		VHDFormat:        convertDynamicVHD,
		VHDFixedFormat:   convertFixedVHD,
		VHDDynamicFormat: convertDynamicVHD,
	}
)

func (x Format) String() string {
	return string(x)
}

// MarshalText implements encoding.TextMarshaler.
func (x Format) MarshalText() (text []byte, err error) {
	return []byte(x.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (x *Format) UnmarshalText(text []byte) error {
	var err error
	*x, err = ParseFormat(string(text))
	if err != nil {
		return err
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (x Format) MarshalJSON() ([]byte, error) {
	return json.Marshal(x.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (x *Format) UnmarshalJSON(data []byte) error {
	s := string(data)
	s = strings.Trim(s, "\"")
	var err error
	*x, err = ParseFormat(s)
	if err != nil {
		return err
	}
	return nil
}

// ParseFormat resolves a string into a Format. The empty string selects
// vhd-dynamic.
func ParseFormat(s string) (Format, error) {

	if s == "" {
		return VHDDynamicFormat, nil
	}

	original := s

	s = strings.TrimSpace(s)
	s = strings.ToLower(s)

	f := Format(s)
	if _, ok := formats[f]; !ok {
		return VHDDynamicFormat, errors.Errorf("unrecognized virtual disk format '%s'", original)
	}

	return f, nil
}

func (x Format) Suffix() string {
	return formats[x]
}

// IsVHD returns true for the VHD formats.
func (x Format) IsVHD() bool {
	return x != RAWFormat
}

func (x Format) convert(ctx context.Context, w io.Writer, src vio.SparseSource, args *ConvertArgs) error {
	fn, ok := convertFuncs[x]
	if !ok {
		return errors.Errorf("unrecognized virtual disk format '%s'", x)
	}
	return fn(ctx, w, src, args)
}
