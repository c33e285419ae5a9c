package cli

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/vorteil/vsparse/pkg/imagetools"
	"github.com/vorteil/vsparse/pkg/vdisk"
	"github.com/vorteil/vsparse/pkg/vhd"
)

func openImage(path string) (*vhd.Image, error) {
	return vhd.OpenFile(path, &vhd.OpenFileArgs{
		ReadOnly: true,
		Logger:   log,
	})
}

var checkCmd = &cobra.Command{
	Use:   "check IMAGE",
	Short: "Check the consistency of an image",
	Long: `Check the footers, dynamic header, block allocation table and parent
locators of IMAGE without modifying it. Findings are reported by severity;
the command fails if any error is found, even when errors are not reported.`,
	Aliases: []string{"fsck", "verify"},
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {

		cfg, err := settings()
		if err != nil {
			SetError(err, 1)
			return
		}

		f, err := os.Open(args[0])
		if err != nil {
			SetError(err, 2)
			return
		}
		defer f.Close()

		report := vhd.Check(f, cfg.Level())

		if len(report.Findings) > 0 {
			table := [][]string{{"SEVERITY", "FINDING"}}
			for _, finding := range report.Findings {
				table = append(table, []string{finding.Severity.String(), finding.Message})
			}
			PlainTable(table)
		}

		if !report.Passed() {
			SetError(fmt.Errorf("%s failed consistency checks", args[0]), 3)
			return
		}

		log.Infof("%s: no errors found", args[0])
	},
}

func init() {
	f := checkCmd.Flags()
	addReportLevelFlag(f)
}

var infoCmd = &cobra.Command{
	Use:     "info IMAGE",
	Short:   "Summarize the metadata of an image",
	Aliases: []string{"stat"},
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		err := SetNumberModeFlagCMD(cmd)
		if err != nil {
			SetError(err, 1)
			return
		}

		img, err := openImage(args[0])
		if err != nil {
			SetError(err, 2)
			return
		}
		defer img.Close()

		s := imagetools.StatImage(img)

		log.Printf("Disk type:        \t%s", s.DiskType)
		log.Printf("Capacity:         \t%s", PrintableSize(s.Capacity))
		log.Printf("Original size:    \t%s", PrintableSize(s.OriginalSize))
		log.Printf("Geometry:         \t%d/%d/%d", s.Geometry.Cylinders, s.Geometry.Heads, s.Geometry.SectorsPerTrack)
		log.Printf("Created:          \t%s", s.Created)
		log.Printf("Creator:          \t%s", strings.TrimSpace(s.Creator))
		log.Printf("Unique ID:        \t%s", s.UniqueID)

		if s.BlockSize != 0 {
			log.Printf("Block size:       \t%s", PrintableSize(s.BlockSize))
			log.Printf("Blocks allocated: \t%d / %d", s.AllocatedBlocks, s.Blocks)
			log.Printf("Table offset:     \t%s", PrintableSize(s.TableOffset))
		}

		if s.ParentID != "" {
			log.Printf("Parent name:      \t%s", s.ParentName)
			log.Printf("Parent ID:        \t%s", s.ParentID)
			for _, p := range s.ParentPaths {
				log.Printf("Parent locator:   \t%s", p)
			}
		}

		for _, finding := range s.Findings {
			log.Warnf("%s", finding)
		}
	},
}

func init() {
	f := infoCmd.Flags()
	f.StringP("numbers", "n", "short", "Number printing format")
}

var treeCmd = &cobra.Command{
	Use:   "tree IMAGE",
	Short: "Show the parent chain of an image",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {

		img, err := openImage(args[0])
		if err != nil {
			SetError(err, 1)
			return
		}
		defer img.Close()

		tree := imagetools.TreeImage(img, filepath.Base(args[0]))
		log.Printf("%s", tree.String())
	},
}

var mapCmd = &cobra.Command{
	Use:   "map IMAGE",
	Short: "Show where each range of the logical disk is stored",
	Long: `Show where each range of the logical disk of IMAGE is read from: a physical
offset within IMAGE, its parent, or implicit zeroes.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		err := SetNumberModeFlagCMD(cmd)
		if err != nil {
			SetError(err, 1)
			return
		}

		img, err := openImage(args[0])
		if err != nil {
			SetError(err, 2)
			return
		}
		defer img.Close()

		length := flagLength
		if length < 0 {
			length = img.Size() - flagOffset
		}

		entries, err := imagetools.MapImage(img, flagOffset, length)
		if err != nil {
			SetError(err, 3)
			return
		}

		table := [][]string{{"OFFSET", "LENGTH", "SOURCE", "PHYSICAL"}}
		for _, e := range entries {
			physical := "-"
			if e.Physical >= 0 {
				physical = PrintableSize(e.Physical).String()
			}
			table = append(table, []string{
				PrintableSize(e.Logical).String(),
				PrintableSize(e.Length).String(),
				e.Source,
				physical,
			})
		}

		PlainTable(table)
	},
}

func init() {
	f := mapCmd.Flags()
	f.Int64VarP(&flagOffset, "offset", "o", 0, "first logical byte to map")
	f.Int64VarP(&flagLength, "length", "l", -1, "number of bytes to map (default to the end of the disk)")
	f.StringP("numbers", "n", "short", "Number printing format")
}

var catCmd = &cobra.Command{
	Use:   "cat IMAGE",
	Short: "Print the logical contents of an image on the standard output",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {

		src, err := vdisk.OpenSource(args[0], log)
		if err != nil {
			SetError(err, 1)
			return
		}
		defer src.Close()

		_, err = imagetools.CatImageTo(os.Stdout, src, flagOffset, flagLength, flagZstd)
		if err != nil {
			SetError(err, 2)
			return
		}
	},
}

func init() {
	f := catCmd.Flags()
	f.Int64VarP(&flagOffset, "offset", "o", 0, "first logical byte to print")
	f.Int64VarP(&flagLength, "length", "l", -1, "number of bytes to print (default to the end of the disk)")
	f.BoolVarP(&flagZstd, "zstd", "z", false, "compress output with zstd")
}

var md5Cmd = &cobra.Command{
	Use:   "md5 IMAGE",
	Short: "Compute the MD5 checksum of the logical contents of an image",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {

		sum, err := imagetools.MDSumImageFile(args[0])
		if err != nil {
			SetError(err, 1)
			return
		}

		log.Printf("%s", sum)
	},
}

var duCmd = &cobra.Command{
	Use:   "du IMAGE",
	Short: "Calculate the space used by each image of a parent chain",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		err := SetNumberModeFlagCMD(cmd)
		if err != nil {
			SetError(err, 1)
			return
		}

		img, err := openImage(args[0])
		if err != nil {
			SetError(err, 2)
			return
		}
		defer img.Close()

		duOut, err := imagetools.DUImage(img, filepath.Base(args[0]))
		if err != nil {
			SetError(errors.Wrap(err, "du"), 3)
			return
		}

		table := [][]string{{"IMAGE", "TYPE", "ALLOCATED", "PRESENT"}}
		for _, l := range duOut.Layers {
			table = append(table, []string{l.Name, l.DiskType, PrintableSize(l.Allocated).String(), PrintableSize(l.Present).String()})
		}

		PlainTable(table)
		log.Printf("Capacity: %s", PrintableSize(duOut.Capacity))
	},
}

func init() {
	f := duCmd.Flags()
	f.StringP("numbers", "n", "short", "Number printing format")
}
