package vcfg

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"github.com/vorteil/vsparse/pkg/elog"
)

// Default settings.
const (
	DefaultBlockSize   = 2 * MiB
	DefaultFormat      = "vhd-dynamic"
	DefaultReportLevel = "warnings,errors"
	DefaultCreatorApp  = "vspr"
)

// Defaults returns a Config with every field at its default.
func Defaults() *Config {
	cfg := new(Config)
	_ = WithDefaults(cfg, elog.Discard)
	return cfg
}

// WithDefaults sets default values for certain fields
// if they are not set
func WithDefaults(cfg *Config, logger elog.Logger) error {

	if cfg.BlockSize == 0 {
		logger.Debugf("Using default block size (%s)", DefaultBlockSize)
		cfg.BlockSize = DefaultBlockSize
	}

	if cfg.Format == "" {
		logger.Debugf("Using default format (%s)", DefaultFormat)
		cfg.Format = DefaultFormat
	}

	if cfg.ReportLevel == "" {
		cfg.ReportLevel = DefaultReportLevel
	}

	if cfg.CreatorApp == "" {
		cfg.CreatorApp = DefaultCreatorApp
	}

	return nil
}
