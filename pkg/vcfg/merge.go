package vcfg

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import "github.com/imdario/mergo"

// Merge layers b over a: every field set in b replaces the one in a. Zero
// values in b leave a untouched, so a boolean can only be switched on.
func Merge(a, b *Config) (*Config, error) {

	if b == nil {
		return a, nil
	}

	err := mergo.Merge(a, b, mergo.WithOverride)
	if err != nil {
		return nil, err
	}

	return a, nil
}
