package flag

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import "github.com/spf13/pflag"

// BoolFlag handles boolean flags
type BoolFlag struct {
	Part
	Value    bool
	Validate func(f BoolFlag) error
}

// NewBoolFlag creates a new BoolFlag object
func NewBoolFlag(key, short, usage string, hidden bool, validate func(BoolFlag) error) BoolFlag {
	return BoolFlag{
		Part:     NewPart(key, short, usage, hidden),
		Validate: validate,
	}
}

// AddTo satisfies the Flag interface requirement
func (f *BoolFlag) AddTo(flagSet *pflag.FlagSet) {
	flagSet.BoolVarP(&f.Value, f.Key, f.short, f.Value, f.usage)
	f.hide(flagSet)
}

// FlagValidate satisfies the Flag interface requirement
func (f BoolFlag) FlagValidate() error {
	if f.Validate == nil {
		return nil
	}
	return f.Validate(f)
}
