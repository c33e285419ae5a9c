package cli

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"context"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/vorteil/vsparse/pkg/vcfg"
	"github.com/vorteil/vsparse/pkg/vdisk"
	"github.com/vorteil/vsparse/pkg/vhd"
	"github.com/vorteil/vsparse/pkg/vio"
)

var imagesCmd = &cobra.Command{
	Use:   "images",
	Short: "Commands for creating and interacting with virtual disk images",
	Long: `These commands create VHD images, including differencing images that record
only the sectors written over a read-only parent, and inspect, modify and
convert existing ones. Any command that reads an image also reads through its
chain of parents, which are found using the locators stored in each child.`,
	Aliases: []string{"disks"},
}

// createOutput opens path for a new image, honouring --force.
func createOutput(path string) (*os.File, error) {
	err := checkValidNewFileOutput(path, flagForce, "output", "--force")
	if err != nil {
		return nil, err
	}
	return os.Create(path)
}

var createCmd = &cobra.Command{
	Use:   "create IMAGE SIZE",
	Short: "Create an empty virtual disk image",
	Long: `Create an empty virtual disk image of SIZE bytes. SIZE accepts unit suffixes
such as 512M or 20GiB and is rounded up to a whole sector.

Supported disk formats include:

	raw, vhd, vhd-fixed, vhd-dynamic
`,
	Aliases: []string{"new"},
	Args:    cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {

		cfg, err := settings()
		if err != nil {
			SetError(err, 1)
			return
		}

		format, err := parseImageFormat(cfg.Format)
		if err != nil {
			SetError(err, 2)
			return
		}

		size, err := vcfg.ParseBytes(args[1])
		if err != nil {
			SetError(errors.Wrap(err, "SIZE"), 3)
			return
		}
		if size == 0 {
			SetError(errors.New("SIZE must be greater than zero"), 3)
			return
		}

		f, err := createOutput(args[0])
		if err != nil {
			SetError(err, 4)
			return
		}
		defer f.Close()

		err = vdisk.Convert(context.Background(), f, vio.ZeroStream(int64(size)), &vdisk.ConvertArgs{
			Format:     format,
			BlockSize:  int64(cfg.BlockSize),
			CreatorApp: cfg.CreatorApp,
			Logger:     log,
		})
		if err != nil {
			SetError(err, 5)
			return
		}

		err = f.Close()
		if err != nil {
			SetError(err, 6)
			return
		}

		log.Printf("created image: %s", args[0])
	},
}

func init() {
	f := createCmd.Flags()
	f.BoolVar(&flagForce, "force", false, "force overwrite of existing files")
	addFormatFlag(f)
	addBlockSizeFlag(f)
	addCreatorAppFlag(f)
}

var diffCmd = &cobra.Command{
	Use:   "diff PARENT IMAGE",
	Short: "Create a differencing image over a parent",
	Long: `Create an empty differencing image that reads through to PARENT. Writes to
the new image never modify PARENT. The parent's path is recorded both as an
absolute path and relative to the new image, so the pair can be moved together.`,
	Aliases: []string{"snapshot"},
	Args:    cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {

		cfg, err := settings()
		if err != nil {
			SetError(err, 1)
			return
		}

		parent, err := vhd.OpenFile(args[0], &vhd.OpenFileArgs{
			ReadOnly: true,
			Logger:   log,
		})
		if err != nil {
			SetError(err, 2)
			return
		}
		defer parent.Close()

		f, err := createOutput(args[1])
		if err != nil {
			SetError(err, 3)
			return
		}
		defer f.Close()

		err = vdisk.WriteDifferencing(f, &vdisk.DifferencingArgs{
			Parent:     parent,
			ParentPath: args[0],
			ChildPath:  args[1],
			CreatorApp: cfg.CreatorApp,
			Logger:     log,
		})
		if err != nil {
			SetError(err, 4)
			return
		}

		err = f.Close()
		if err != nil {
			SetError(err, 5)
			return
		}

		log.Printf("created differencing image: %s", args[1])
	},
}

func init() {
	f := diffCmd.Flags()
	f.BoolVar(&flagForce, "force", false, "force overwrite of existing files")
	addCreatorAppFlag(f)
}

var convertCmd = &cobra.Command{
	Use:   "convert SOURCE DESTINATION",
	Short: "Convert a disk image into another format",
	Long: `Convert a disk image into another format. SOURCE may be a VHD of any type,
in which case its whole parent chain is flattened, or a raw disk. Only the
non-zero parts of SOURCE are copied.

Supported disk formats include:

	raw, vhd, vhd-fixed, vhd-dynamic

Raw output can be compressed with zstd.
`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {

		cfg, err := settings()
		if err != nil {
			SetError(err, 1)
			return
		}

		format, err := parseImageFormat(cfg.Format)
		if err != nil {
			SetError(err, 2)
			return
		}

		if !strings.HasSuffix(args[1], format.Suffix()) && !flagZstd {
			log.Warnf("file name does not end with '%s' file extension", format.Suffix())
		}

		src, err := vdisk.OpenSource(args[0], log)
		if err != nil {
			SetError(err, 3)
			return
		}
		defer src.Close()

		f, err := createOutput(args[1])
		if err != nil {
			SetError(err, 4)
			return
		}
		defer f.Close()

		err = vdisk.Convert(context.Background(), f, src, &vdisk.ConvertArgs{
			Format:     format,
			BlockSize:  int64(cfg.BlockSize),
			Compress:   flagZstd,
			CreatorApp: cfg.CreatorApp,
			Logger:     log,
		})
		if err != nil {
			SetError(err, 5)
			return
		}

		err = f.Close()
		if err != nil {
			SetError(err, 6)
			return
		}

		log.Printf("converted %s to %s (%s)", args[0], args[1], format)
	},
}

func init() {
	f := convertCmd.Flags()
	f.BoolVar(&flagForce, "force", false, "force overwrite of existing files")
	f.BoolVarP(&flagZstd, "zstd", "z", false, "compress raw output with zstd")
	addFormatFlag(f)
	addBlockSizeFlag(f)
	addCreatorAppFlag(f)
}

var writeCmd = &cobra.Command{
	Use:   "write IMAGE OFFSET [FILE]",
	Short: "Write data into an image",
	Long: `Write the contents of FILE, or standard input if FILE is omitted, into the
logical disk of IMAGE starting at byte OFFSET. Blocks are allocated as needed.
Differencing images take the write themselves and leave their parent untouched.`,
	Args: cobra.RangeArgs(2, 3),
	Run: func(cmd *cobra.Command, args []string) {

		cfg, err := settings()
		if err != nil {
			SetError(err, 1)
			return
		}

		off, err := strconv.ParseInt(args[1], 0, 64)
		if err != nil {
			SetError(errors.Wrap(err, "OFFSET"), 2)
			return
		}

		var in io.Reader = os.Stdin
		if len(args) > 2 {
			f, err := os.Open(args[2])
			if err != nil {
				SetError(err, 3)
				return
			}
			defer f.Close()
			in = f
		}

		img, err := vhd.OpenFile(args[0], &vhd.OpenFileArgs{
			DeferFooterCommit: cfg.DeferFooterCommit,
			Logger:            log,
		})
		if err != nil {
			SetError(err, 4)
			return
		}
		defer img.Close()

		_, err = img.Seek(off, io.SeekStart)
		if err != nil {
			SetError(err, 5)
			return
		}

		n, err := io.Copy(img, in)
		if err != nil {
			SetError(err, 6)
			return
		}

		err = img.Close()
		if err != nil {
			SetError(err, 7)
			return
		}

		log.Infof("wrote %s at %s", PrintableSize(n), PrintableSize(off))
	},
}

func init() {
	f := writeCmd.Flags()
	addDeferFooterFlag(f)
}
