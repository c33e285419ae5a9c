package vcfg

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"github.com/pkg/errors"
	"github.com/vorteil/vsparse/pkg/vhd"
)

// Validate checks that the config holds values the disk engine accepts. The
// output format is checked where it is used.
func (cfg *Config) Validate() error {

	bs := cfg.BlockSize
	if bs != 0 {
		if bs < vhd.SectorSize || bs&(bs-1) != 0 {
			return errors.Errorf("block-size %s must be a power of two of at least 512 bytes", bs)
		}
		if bs > vhd.MaxBlockSize {
			return errors.Errorf("block-size %s exceeds %s", bs, Bytes(vhd.MaxBlockSize))
		}
	}

	if cfg.ReportLevel != "" {
		_, err := vhd.ParseReportLevel(cfg.ReportLevel)
		if err != nil {
			return errors.Wrap(err, "report-level")
		}
	}

	if len(cfg.CreatorApp) > 4 {
		return errors.Errorf("creator-app %q is longer than four characters", cfg.CreatorApp)
	}

	return nil
}

// Level returns the parsed report level.
func (cfg *Config) Level() vhd.ReportLevel {
	l, err := vhd.ParseReportLevel(cfg.ReportLevel)
	if err != nil {
		return vhd.ReportWarnings | vhd.ReportErrors
	}
	return l
}
