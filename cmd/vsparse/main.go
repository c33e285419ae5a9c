package main

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"github.com/sirupsen/logrus"

	"github.com/vorteil/vsparse/pkg/cli"
	"github.com/vorteil/vsparse/pkg/elog"
)

var logger elog.View

func init() {
	log := &elog.CLI{}
	logrus.SetFormatter(log)
	logrus.SetLevel(logrus.TraceLevel)
	logger = log
}

func main() {

	defer cli.HandleErrors()

	cli.InitializeCommands()

	err := cli.RootCommand.Execute()
	if err != nil {
		logger.Errorf("%v", err)
		cli.SetError(nil, 1)
		return
	}

}
