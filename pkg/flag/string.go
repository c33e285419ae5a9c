package flag

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import "github.com/spf13/pflag"

// StringFlag handles string flags
type StringFlag struct {
	Part
	Value    string
	Validate func(f StringFlag) error
}

// NewStringFlag creates a new StringFlag object
func NewStringFlag(key, short, usage string, hidden bool, validate func(StringFlag) error) StringFlag {
	return StringFlag{
		Part:     NewPart(key, short, usage, hidden),
		Validate: validate,
	}
}

// AddTo satisfies the Flag interface requirement
func (f *StringFlag) AddTo(flagSet *pflag.FlagSet) {
	flagSet.StringVarP(&f.Value, f.Key, f.short, f.Value, f.usage)
	f.hide(flagSet)
}

// FlagValidate satisfies the Flag interface requirement
func (f StringFlag) FlagValidate() error {
	if f.Validate == nil {
		return nil
	}
	return f.Validate(f)
}
