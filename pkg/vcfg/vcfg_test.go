package vcfg

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vorteil/vsparse/pkg/vhd"
)

func TestParseBytes(t *testing.T) {

	tests := []struct {
		in   string
		want Bytes
	}{
		{"", 0},
		{"512", 512},
		{"4MiB", 4 * MiB},
		{"2M", 2 * MiB},
		{"64 KB", 64 * KiB},
		{"1g", GiB},
	}

	for _, tt := range tests {
		got, err := ParseBytes(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseBytes("lots")
	assert.Error(t, err)

	assert.Equal(t, "2M", (2 * MiB).String())
}

func TestLoadMergesDefaults(t *testing.T) {

	path := filepath.Join(t.TempDir(), "conf.toml")
	err := ioutil.WriteFile(path, []byte(`
block-size = "512KiB"
report-level = "all"
`), 0644)
	require.NoError(t, err)

	cfg, err := LoadFilepath(path)
	require.NoError(t, err)

	assert.Equal(t, 512*KiB, cfg.BlockSize)
	assert.Equal(t, DefaultFormat, cfg.Format)
	assert.Equal(t, DefaultCreatorApp, cfg.CreatorApp)
	assert.Equal(t, vhd.ReportAll, cfg.Level())
	assert.False(t, cfg.DeferFooterCommit)
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := LoadFilepath(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
	assert.Equal(t, vhd.ReportWarnings|vhd.ReportErrors, cfg.Level())
}

func TestLoadRejectsBadValues(t *testing.T) {

	dir := t.TempDir()

	for i, data := range []string{
		`block-size = "3000"`,
		`block-size = "4G"`,
		`report-level = "everything"`,
		`creator-app = "toolong"`,
		`block-size = [`,
	} {
		path := filepath.Join(dir, "conf.toml")
		require.NoError(t, ioutil.WriteFile(path, []byte(data), 0644))
		_, err := LoadFilepath(path)
		assert.Error(t, err, "case %d", i)
	}
}

func TestMerge(t *testing.T) {

	a := Defaults()
	b := &Config{Format: "raw", DeferFooterCommit: true}

	c, err := Merge(a, b)
	require.NoError(t, err)
	assert.Equal(t, "raw", c.Format)
	assert.True(t, c.DeferFooterCommit)
	assert.Equal(t, DefaultBlockSize, c.BlockSize)

	c, err = Merge(c, nil)
	require.NoError(t, err)
	assert.Equal(t, "raw", c.Format)
}

func TestMarshalRoundTrip(t *testing.T) {

	cfg := Defaults()
	cfg.BlockSize = 64 * KiB

	data, err := cfg.Marshal()
	require.NoError(t, err)

	got, err := Load(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}
