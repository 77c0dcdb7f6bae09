package gologger

import (
	glog "github.com/goliatone/go-logger/glog"
	"github.com/robfig/cron/v3"
)

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

// Named returns the provider's logger for name, falling back to fallback
// when the provider is missing or has nothing registered under name.
func Named(provider glog.LoggerProvider, fallback glog.Logger, name string) glog.Logger {
	if provider != nil {
		if l := provider.GetLogger(name); l != nil {
			return glog.Ensure(l)
		}
	}
	return glog.Ensure(fallback)
}

// ToCronLogger maps a glog logger onto the monitoring scheduler's cron
// logger. A nil logger discards cron output.
func ToCronLogger(logger glog.Logger) cron.Logger {
	if logger == nil {
		return cron.DiscardLogger
	}
	return cronLogger{logger: logger}
}

type cronLogger struct {
	logger glog.Logger
}

// Info carries cron's scheduling chatter, which is debug noise for us.
func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	args := append([]any{"error", err}, keysAndValues...)
	l.logger.Error("cron: "+msg, args...)
}
