package flag

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import "github.com/spf13/pflag"

// Flag is an option that can be added to the flag sets of several commands
// and validated once they are parsed.
type Flag interface {
	FlagKey() string
	FlagValidate() error
	AddTo(flagSet *pflag.FlagSet)
}

// Part holds what every Flag has in common.
type Part struct {
	Key    string
	short  string
	usage  string
	hidden bool
}

// NewPart returns a new Part object. short may be empty.
func NewPart(key, short, usage string, hidden bool) Part {
	return Part{
		Key:    key,
		short:  short,
		usage:  usage,
		hidden: hidden,
	}
}

// FlagKey satisfies the Flag interface requirement
func (p Part) FlagKey() string {
	return p.Key
}

func (p Part) hide(flagSet *pflag.FlagSet) {
	if p.hidden {
		flagSet.Lookup(p.Key).Hidden = true
	}
}
