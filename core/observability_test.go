package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type capturedLog struct {
	level   string
	message string
	args    []any
}

type captureLogger struct {
	mu      *sync.Mutex
	entries *[]capturedLog
}

func newCaptureLogger() *captureLogger {
	return &captureLogger{mu: &sync.Mutex{}, entries: &[]capturedLog{}}
}

func (l *captureLogger) record(level string, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.entries = append(*l.entries, capturedLog{level: level, message: msg, args: args})
}

func (l *captureLogger) Trace(msg string, args ...any)           { l.record("trace", msg, args...) }
func (l *captureLogger) Debug(msg string, args ...any)           { l.record("debug", msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)            { l.record("info", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)            { l.record("warn", msg, args...) }
func (l *captureLogger) Error(msg string, args ...any)           { l.record("error", msg, args...) }
func (l *captureLogger) Fatal(msg string, args ...any)           { l.record("fatal", msg, args...) }
func (l *captureLogger) WithContext(context.Context) glog.Logger { return l }

func (l *captureLogger) last() capturedLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(*l.entries) == 0 {
		return capturedLog{}
	}
	return (*l.entries)[len(*l.entries)-1]
}

type metricCall struct {
	name  string
	value float64
	tags  map[string]string
}

type captureMetrics struct {
	counters   []metricCall
	histograms []metricCall
}

func (m *captureMetrics) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.counters = append(m.counters, metricCall{name: name, value: float64(value), tags: tags})
}

func (m *captureMetrics) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	m.histograms = append(m.histograms, metricCall{name: name, value: value, tags: tags})
}

func TestObserver_ObserveOperationSuccess(t *testing.T) {
	logger := newCaptureLogger()
	metrics := &captureMetrics{}
	observer := NewObserver("verification", logger, metrics)

	observer.ObserveOperation(context.Background(), time.Now(), "Webhook Process", nil, map[string]any{
		"webhook_type": "approved",
		"user_id":      "u1",
	})

	if len(metrics.counters) != 1 || metrics.counters[0].name != "verification.webhook_process.total" {
		t.Fatalf("unexpected counters %#v", metrics.counters)
	}
	tags := metrics.counters[0].tags
	if tags[TagStatus] != "success" || tags[TagWebhookType] != "approved" || tags[TagOperation] != "webhook_process" {
		t.Fatalf("unexpected tags %#v", tags)
	}
	if _, ok := tags["user_id"]; ok {
		t.Fatalf("expected high-cardinality fields to stay out of tags")
	}
	if len(metrics.histograms) != 1 || metrics.histograms[0].name != "verification.webhook_process.duration_ms" {
		t.Fatalf("unexpected histograms %#v", metrics.histograms)
	}
	entry := logger.last()
	if entry.level != "info" || entry.message != "webhook_process succeeded" {
		t.Fatalf("unexpected log entry %#v", entry)
	}
}

func TestObserver_ObserveOperationFailureLogsKind(t *testing.T) {
	logger := newCaptureLogger()
	metrics := &captureMetrics{}
	observer := NewObserver("", logger, metrics)

	observer.ObserveOperation(context.Background(), time.Now(), "sync", NewTransientError("provider down"), nil)

	if metrics.counters[0].name != "verification.sync.total" || metrics.counters[0].tags[TagStatus] != "failure" {
		t.Fatalf("unexpected failure counter %#v", metrics.counters[0])
	}
	entry := logger.last()
	if entry.level != "error" {
		t.Fatalf("expected error level, got %q", entry.level)
	}
	if got := argValue(entry.args, "error_kind"); got != "transient" {
		t.Fatalf("expected transient error_kind, got %v", got)
	}
}

func TestObserver_ZeroValueIsSilent(t *testing.T) {
	var observer Observer
	observer.ObserveOperation(context.Background(), time.Now(), "noop", nil, nil)
	observer.LogWarn(context.Background(), "nothing", nil)
	observer.RecordCounter(context.Background(), "x", 1, nil)
}

func TestObserver_RecordCopiesTags(t *testing.T) {
	metrics := &captureMetrics{}
	observer := NewObserver("verification", nil, metrics)
	tags := map[string]string{TagAlertType: "stuck_sessions"}

	observer.RecordCounter(context.Background(), " verification.monitoring.alerts_created ", 1, tags)
	tags[TagAlertType] = "mutated"

	if metrics.counters[0].name != "verification.monitoring.alerts_created" {
		t.Fatalf("expected trimmed metric name, got %q", metrics.counters[0].name)
	}
	if metrics.counters[0].tags[TagAlertType] != "stuck_sessions" {
		t.Fatalf("expected recorder to receive a copy of tags")
	}
}

func argValue(args []any, key string) any {
	for i := 0; i+1 < len(args); i += 2 {
		if fmt.Sprint(args[i]) == key {
			return args[i+1]
		}
	}
	return nil
}
