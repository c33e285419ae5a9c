package cli

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vorteil/vsparse/pkg/elog"
)

var log elog.View

var (
	flagJSON    bool
	flagVerbose bool
	flagDebug   bool
	flagForce   bool
	flagZstd    bool
	flagOffset  int64
	flagLength  int64
)

func InitializeCommands() {

	// setup logging across all commands
	RootCommand.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable verbose output")
	RootCommand.PersistentFlags().BoolVarP(&flagDebug, "debug", "d", false, "enable debug output")
	RootCommand.PersistentFlags().BoolVarP(&flagJSON, "json", "j", false, "enable json output")
	RootCommand.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default ~/.vsparse/conf.toml)")

	RootCommand.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {

		logger := &elog.CLI{}

		if flagJSON {
			logger.DisableTTY = true
			logrus.SetFormatter(&logrus.JSONFormatter{})
		} else {
			logrus.SetFormatter(logger)
		}

		logrus.SetLevel(logrus.TraceLevel)

		if flagDebug {
			logger.IsDebug = true
			logger.IsVerbose = true
		} else if flagVerbose {
			logger.IsVerbose = true
		}

		log = logger

		err := settingsFlags.Validate()
		if err != nil {
			return err
		}

		_, err = initConfig()
		if err != nil {
			return err
		}

		return bindFlags(cmd.Flags())
	}

	// Here we define some hidden top-level shortcuts.
	RootCommand.AddCommand(commandShortcut(createCmd))
	RootCommand.AddCommand(commandShortcut(checkCmd))
	RootCommand.AddCommand(commandShortcut(convertCmd))

	// Here is the visible command structure definition.
	RootCommand.AddCommand(imagesCmd)
	RootCommand.AddCommand(versionCmd)

	addImagesCmd()
}

func addImagesCmd() {
	imagesCmd.AddCommand(createCmd)
	imagesCmd.AddCommand(diffCmd)
	imagesCmd.AddCommand(convertCmd)
	imagesCmd.AddCommand(writeCmd)
	imagesCmd.AddCommand(checkCmd)
	imagesCmd.AddCommand(infoCmd)
	imagesCmd.AddCommand(mapCmd)
	imagesCmd.AddCommand(catCmd)
	imagesCmd.AddCommand(md5Cmd)
	imagesCmd.AddCommand(duCmd)
	imagesCmd.AddCommand(treeCmd)
}

func commandShortcut(cmd *cobra.Command) *cobra.Command {
	c := *cmd
	c.Aliases = []string{}
	c.Hidden = true
	return &c
}

var RootCommand = &cobra.Command{
	Use:   "vsparse",
	Short: "Sparse virtual disk tool",
	Long: `vsparse creates, inspects, modifies and converts VHD virtual disk images,
including dynamic and differencing (copy-on-write) disks.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "View CLI version information",
	Long:  "View CLI version information",
	Args:  cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {

		format, err := cmd.Flags().GetString("format")
		if err != nil {
			panic(err)
		}

		switch format {
		case "json", "", "plain":
			return nil
		default:
			return fmt.Errorf("invalid format '%s'", format)
		}
	},
	Run: func(cmd *cobra.Command, args []string) {

		format, err := cmd.Flags().GetString("format")
		if err != nil {
			panic(err)
		}

		switch format {
		case "json":
			log.Printf("{\n\t\"version\": \"%s\",\n\t\"ref\": \"%s\",\n\t\"released\": \"%s\"\n}",
				release, commit, date)
		default:
			log.Printf("Version: %s\nRef: %s\nReleased: %s", release, commit, date)
		}

	},
}

func init() {
	f := versionCmd.Flags()
	f.String("format", "", "specify output format (json, plain)")
}
