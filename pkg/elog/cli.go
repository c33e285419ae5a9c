package elog

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

// CLI is a logrus formatter and a View for command-line tools. Debug and
// info messages are suppressed unless IsDebug or IsVerbose are set.
type CLI struct {
	DisableTTY bool
	IsDebug    bool
	IsVerbose  bool

	// Out receives Printf output. Defaults to os.Stdout.
	Out io.Writer
}

func isTTY(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (log *CLI) colorful() bool {
	return !log.DisableTTY && isTTY(os.Stderr)
}

func (log *CLI) paint(attr color.Attribute, s string) string {
	c := color.New(attr)
	if log.colorful() {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.Sprint(s)
}

// Format implements logrus.Formatter.
func (log *CLI) Format(entry *logrus.Entry) ([]byte, error) {

	msg := strings.TrimSuffix(entry.Message, "\n")

	switch entry.Level {
	case logrus.TraceLevel, logrus.DebugLevel:
		msg = log.paint(color.FgHiBlack, msg)
	case logrus.WarnLevel:
		msg = log.paint(color.FgYellow, "Warning: ") + msg
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		msg = log.paint(color.FgRed, "Error: ") + msg
	}

	return []byte(msg + "\n"), nil
}

// Debugf logs only when IsDebug is set.
func (log *CLI) Debugf(format string, x ...interface{}) {
	if log.IsDebug {
		logrus.Debugf(format, x...)
	}
}

// Infof logs only in verbose or debug mode.
func (log *CLI) Infof(format string, x ...interface{}) {
	if log.IsVerbose || log.IsDebug {
		logrus.Infof(format, x...)
	}
}

// Warnf logs a warning.
func (log *CLI) Warnf(format string, x ...interface{}) {
	logrus.Warnf(format, x...)
}

// Errorf logs an error.
func (log *CLI) Errorf(format string, x ...interface{}) {
	logrus.Errorf(format, x...)
}

// Printf writes directly to the user, ignoring verbosity.
func (log *CLI) Printf(format string, x ...interface{}) {
	w := log.Out
	if w == nil {
		w = os.Stdout
	}
	s := fmt.Sprintf(format, x...)
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	_, _ = io.WriteString(w, s)
}
