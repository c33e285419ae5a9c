package vhd

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import "github.com/pkg/errors"

// kindError is a sentinel that can nest under a broader sentinel, so that
// errors.Is(ErrChecksum, ErrFormat) holds while the two stay distinguishable.
type kindError struct {
	msg    string
	parent error
}

func (e *kindError) Error() string {
	return e.msg
}

func (e *kindError) Unwrap() error {
	return e.parent
}

func subKind(msg string, parent error) error {
	return &kindError{msg: msg, parent: parent}
}

// Error kinds returned by this package. Callers should discriminate with
// errors.Is; the returned errors carry extra context around these values.
var (
	ErrFormat             = errors.New("invalid vhd format")
	ErrMagic              = subKind("vhd cookie mismatch", ErrFormat)
	ErrVersion            = subKind("unsupported vhd version", ErrFormat)
	ErrChecksum           = subKind("vhd checksum mismatch", ErrFormat)
	ErrOutOfRange         = errors.New("offset out of range")
	ErrAllocationConflict = errors.New("block already allocated")
	ErrTruncatedRecord    = errors.New("record truncated")
	ErrUnsupportedFeature = errors.New("unsupported vhd feature")
	ErrReadOnly           = errors.New("vhd image is read-only")
	ErrNoParent           = errors.New("differencing image has no parent")
)
