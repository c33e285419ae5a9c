package flag

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// FlagsList contains an array of Flag objects
type FlagsList []Flag

// AddTo adds every flag in the list to flagSet.
func (f FlagsList) AddTo(flagSet *pflag.FlagSet) {
	for _, x := range f {
		x.AddTo(flagSet)
	}
}

// Validate runs each flag's validation, stopping at the first failure.
func (f FlagsList) Validate() error {
	for _, x := range f {
		err := x.FlagValidate()
		if err != nil {
			return errors.Wrapf(err, "--%s", x.FlagKey())
		}
	}
	return nil
}
