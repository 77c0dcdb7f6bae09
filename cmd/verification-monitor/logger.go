package main

import (
	"io"

	glog "github.com/goliatone/go-logger/glog"
)

// newLogger returns the root JSON logger. It doubles as the provider: named
// children come from GetLogger.
func newLogger(level string, out io.Writer) *glog.BaseLogger {
	return glog.NewLogger(
		glog.WithName("verification-monitor"),
		glog.WithLevel(level),
		glog.WithLoggerTypeJSON(),
		glog.WithWriter(out),
	)
}
