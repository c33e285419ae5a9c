package cli

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/vorteil/vsparse/pkg/flag"
	"github.com/vorteil/vsparse/pkg/vcfg"
	"github.com/vorteil/vsparse/pkg/vdisk"
	"github.com/vorteil/vsparse/pkg/vhd"
)

const envPrefix = "VSPARSE"

// Setting keys shared by the config file, environment and flags.
const (
	keyBlockSize   = "block-size"
	keyFormat      = "format"
	keyDeferFooter = "defer-footer-commit"
	keyReportLevel = "report-level"
	keyCreatorApp  = "creator-app"
)

var flagConfig string

// initConfig layers settings: built-in defaults, then the config file, then
// VSPARSE_* environment variables, then flags the user set.
func initConfig() (*vcfg.Config, error) {

	var cfg *vcfg.Config
	var err error

	if flagConfig != "" {
		cfg, err = vcfg.LoadFilepath(flagConfig)
	} else {
		cfg, err = vcfg.LoadDefault()
	}
	if err != nil {
		return nil, err
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault(keyBlockSize, cfg.BlockSize.String())
	viper.SetDefault(keyFormat, cfg.Format)
	viper.SetDefault(keyDeferFooter, cfg.DeferFooterCommit)
	viper.SetDefault(keyReportLevel, cfg.ReportLevel)
	viper.SetDefault(keyCreatorApp, cfg.CreatorApp)

	return cfg, nil
}

// bindFlags ties any of the shared settings present in f to viper.
func bindFlags(f *pflag.FlagSet) error {
	for _, key := range []string{keyBlockSize, keyFormat, keyDeferFooter, keyReportLevel, keyCreatorApp} {
		if fl := f.Lookup(key); fl != nil {
			err := viper.BindPFlag(key, fl)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// settings resolves the effective configuration after flags are parsed.
func settings() (*vcfg.Config, error) {

	bs, err := vcfg.ParseBytes(viper.GetString(keyBlockSize))
	if err != nil {
		return nil, errors.Wrap(err, keyBlockSize)
	}

	cfg := &vcfg.Config{
		BlockSize:         bs,
		Format:            viper.GetString(keyFormat),
		DeferFooterCommit: viper.GetBool(keyDeferFooter),
		ReportLevel:       viper.GetString(keyReportLevel),
		CreatorApp:        viper.GetString(keyCreatorApp),
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

var (
	blockSizeFlag = flag.NewStringFlag(keyBlockSize, "", "block size of dynamic images, e.g. 2MiB", false, func(f flag.StringFlag) error {
		_, err := vcfg.ParseBytes(f.Value)
		return err
	})
	formatFlag = flag.NewStringFlag(keyFormat, "", "output format: "+strings.Join(vdisk.AllFormatStrings(), ", "), false, func(f flag.StringFlag) error {
		if f.Value == "" {
			return nil
		}
		_, err := parseImageFormat(f.Value)
		return err
	})
	deferFooterFlag = flag.NewBoolFlag(keyDeferFooter, "", "rewrite the trailing footer once on close instead of after every allocation", false, nil)
	reportLevelFlag = flag.NewStringFlag(keyReportLevel, "", "findings to report: comma separated info, warnings, errors or all", false, func(f flag.StringFlag) error {
		if f.Value == "" {
			return nil
		}
		_, err := vhd.ParseReportLevel(f.Value)
		return err
	})
	creatorAppFlag = flag.NewStringFlag(keyCreatorApp, "", "four character creator application stamped into new images", false, func(f flag.StringFlag) error {
		if len(f.Value) > 4 {
			return errors.Errorf("%q is longer than four characters", f.Value)
		}
		return nil
	})
)

// settingsFlags are checked before any command runs.
var settingsFlags = flag.FlagsList{&blockSizeFlag, &formatFlag, &deferFooterFlag, &reportLevelFlag, &creatorAppFlag}

func addBlockSizeFlag(f *pflag.FlagSet) {
	blockSizeFlag.AddTo(f)
}

func addFormatFlag(f *pflag.FlagSet) {
	formatFlag.AddTo(f)
}

func addDeferFooterFlag(f *pflag.FlagSet) {
	deferFooterFlag.AddTo(f)
}

func addReportLevelFlag(f *pflag.FlagSet) {
	reportLevelFlag.AddTo(f)
}

func addCreatorAppFlag(f *pflag.FlagSet) {
	creatorAppFlag.AddTo(f)
}
