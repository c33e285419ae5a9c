package elog

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

// Logger is the logging surface library packages depend on.
type Logger interface {
	Debugf(format string, x ...interface{})
	Errorf(format string, x ...interface{})
	Infof(format string, x ...interface{})
	Warnf(format string, x ...interface{})
}

// Progress tracks a long running task of known size. It is also an
// io.Writer that counts the bytes written through it.
type Progress interface {
	Increment(n int64)
	Write(p []byte) (int, error)
	Finish(success bool)
}

// View is a Logger that can also talk to an interactive user.
type View interface {
	Logger
	Printf(format string, x ...interface{})
	NewProgress(label string, units string, total int64) Progress
}

// Discard is a View that drops everything.
var Discard View = discard{}

type discard struct{}

func (discard) Debugf(format string, x ...interface{}) {}
func (discard) Errorf(format string, x ...interface{}) {}
func (discard) Infof(format string, x ...interface{})  {}
func (discard) Warnf(format string, x ...interface{})  {}
func (discard) Printf(format string, x ...interface{}) {}

func (discard) NewProgress(label string, units string, total int64) Progress {
	return nopProgress{}
}

type nopProgress struct{}

func (nopProgress) Increment(n int64) {}

func (nopProgress) Write(p []byte) (int, error) {
	return len(p), nil
}

func (nopProgress) Finish(success bool) {}

// Or returns log, or Discard if log is nil.
func Or(log Logger) Logger {
	if log == nil {
		return Discard
	}
	return log
}
