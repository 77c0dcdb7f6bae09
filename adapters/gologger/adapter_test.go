package gologger

import (
	"context"
	"errors"
	"testing"

	glog "github.com/goliatone/go-logger/glog"
)

func TestResolveDeterministicFallback(t *testing.T) {
	loggerOnly := &capturingLogger{id: "logger"}
	providerLogger := &capturingLogger{id: "provider"}
	provider := &capturingProvider{logger: providerLogger}

	_, resolved := Resolve("verification.monitoring", provider, loggerOnly)
	if got := resolved.(*capturingLogger); got.id != "provider" {
		t.Fatalf("expected provider logger precedence, got %q", got.id)
	}

	resolvedProvider, resolved := Resolve("verification.monitoring", nil, loggerOnly)
	if got := resolved.(*capturingLogger); got.id != "logger" {
		t.Fatalf("expected direct logger when provider is nil, got %q", got.id)
	}
	if resolvedProvider == nil {
		t.Fatalf("expected provider wrapper from logger")
	}

	if _, resolved = Resolve("verification.monitoring", nil, nil); resolved == nil {
		t.Fatalf("expected nop logger fallback")
	}
}

func TestNamedFallsBackWhenProviderHasNoLogger(t *testing.T) {
	fallback := &capturingLogger{id: "fallback"}
	providerLogger := &capturingLogger{id: "provider"}

	if got := Named(&capturingProvider{logger: providerLogger}, fallback, "verification.sync").(*capturingLogger); got.id != "provider" {
		t.Fatalf("expected provider logger, got %q", got.id)
	}
	if got := Named(nil, fallback, "verification.sync").(*capturingLogger); got.id != "fallback" {
		t.Fatalf("expected fallback logger, got %q", got.id)
	}
	if Named(nil, nil, "verification.sync") == nil {
		t.Fatalf("expected nop logger when nothing is configured")
	}
}

func TestToCronLoggerRoutesLevels(t *testing.T) {
	logger := &capturingLogger{id: "cron"}
	cronLogger := ToCronLogger(logger)

	cronLogger.Info("schedule", "entry", 1)
	if logger.debug.msg != "cron: schedule" {
		t.Fatalf("expected cron info routed to debug, got %q", logger.debug.msg)
	}

	failure := errors.New("panic in job")
	cronLogger.Error(failure, "recovered")
	if logger.err.msg != "cron: recovered" {
		t.Fatalf("expected cron error message, got %q", logger.err.msg)
	}
	if logger.err.args[0] != "error" || logger.err.args[1] != failure {
		t.Fatalf("expected error field first, got %#v", logger.err.args)
	}

	if ToCronLogger(nil) == nil {
		t.Fatalf("expected discard logger for nil input")
	}
}

var (
	_ glog.Logger         = (*capturingLogger)(nil)
	_ glog.LoggerProvider = (*capturingProvider)(nil)
)

type capturingProvider struct {
	logger *capturingLogger
}

func (p *capturingProvider) GetLogger(string) glog.Logger {
	if p == nil || p.logger == nil {
		return glog.Nop()
	}
	return p.logger
}

type logCall struct {
	msg  string
	args []any
}

type capturingLogger struct {
	id    string
	info  logCall
	debug logCall
	err   logCall
}

func (l *capturingLogger) Trace(string, ...any) {}
func (l *capturingLogger) Warn(string, ...any)  {}
func (l *capturingLogger) Fatal(string, ...any) {}

func (l *capturingLogger) Info(msg string, args ...any) {
	l.info = logCall{msg: msg, args: append([]any(nil), args...)}
}

func (l *capturingLogger) Debug(msg string, args ...any) {
	l.debug = logCall{msg: msg, args: append([]any(nil), args...)}
}

func (l *capturingLogger) Error(msg string, args ...any) {
	l.err = logCall{msg: msg, args: append([]any(nil), args...)}
}

func (l *capturingLogger) WithContext(context.Context) glog.Logger {
	return l
}
