package imagetools

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"crypto/md5"
	"encoding/hex"
	"io"

	"github.com/vorteil/vsparse/pkg/vdisk"
	"github.com/vorteil/vsparse/pkg/vio"
)

// MDSumImage hashes the whole logical disk. Two images with the same
// contents hash the same regardless of their format or allocation.
func MDSumImage(disk vio.SparseSource) (string, error) {
	var md5sumOut string

	hasher := md5.New()
	_, err := io.Copy(hasher, io.NewSectionReader(disk, 0, disk.Size()))
	if err == nil {
		md5sumOut = hex.EncodeToString(hasher.Sum(nil))
	}

	return md5sumOut, err
}

// MDSumImageFile opens the raw or VHD disk at path and hashes it.
func MDSumImageFile(path string) (string, error) {

	src, err := vdisk.OpenSource(path, nil)
	if err != nil {
		return "", err
	}
	defer src.Close()

	return MDSumImage(src)
}
