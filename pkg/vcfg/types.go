package vcfg

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"encoding/json"
	"strconv"
	"strings"

	"code.cloudfoundry.org/bytefmt"
	"github.com/pkg/errors"
)

// Bytes is a size in bytes that reads and prints with binary unit suffixes.
type Bytes uint64

// Common byte constants
const (
	Byte Bytes = 0x1        // a single byte
	KiB  Bytes = 0x400      // a kibibyte (1024 bytes)
	MiB  Bytes = 0x100000   // a mibibyte (1024 kibibytes)
	GiB  Bytes = 0x40000000 // a gibibyte (1024 mibibytes)
)

// String returns a string representation of a Bytes object, such as "2M" or
// "512B".
func (x Bytes) String() string {
	return bytefmt.ByteSize(uint64(x))
}

// MarshalText implements encoding.TextMarshaler. This interface is used by
// toml processing packages based on github.com/BurntSushi/toml.
func (x Bytes) MarshalText() (text []byte, err error) {
	return []byte(x.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. This interface is used by
// toml processing packages based on github.com/BurntSushi/toml.
func (x *Bytes) UnmarshalText(text []byte) error {
	var err error
	*x, err = ParseBytes(string(text))
	if err != nil {
		return err
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (x Bytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(x.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (x *Bytes) UnmarshalJSON(data []byte) error {
	s := string(data)
	s = strings.Trim(s, "\"")
	var err error
	*x, err = ParseBytes(s)
	if err != nil {
		return err
	}
	return nil
}

// ParseBytes resolves a string into a Bytes object. A bare number is a count
// of bytes; otherwise a unit such as K, KB, KiB, M or GiB is required.
func ParseBytes(s string) (Bytes, error) {

	s = strings.TrimSpace(s)
	if s == "" {
		return Bytes(0), nil
	}

	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return Bytes(n), nil
	}

	n, err := bytefmt.ToBytes(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		return 0, errors.Wrapf(err, "invalid size %q", s)
	}

	return Bytes(n), nil
}

// Units returns the number of units the size fills, truncated.
func (x Bytes) Units(unit Bytes) int64 {
	return int64(x / unit)
}

// IsAligned returns true if the size is a multiple of unit.
func (x Bytes) IsAligned(unit Bytes) bool {
	return x%unit == 0
}
