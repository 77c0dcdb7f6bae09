package core

import "context"

// MetricsRecorder receives counters and histograms from Observer. Names are
// dotted (verification.webhook_process.total) and tags use the Tag* keys.
type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// Tag keys emitted by the verification observers.
const (
	TagOperation   = "operation"
	TagStatus      = "status"
	TagWebhookType = "webhook_type"
	TagOutcome     = "outcome"
	TagAlertType   = "type"
	TagSeverity    = "severity"
)

// MetricTagKeys lists every tag key a recorder may receive.
func MetricTagKeys() []string {
	return []string{TagOperation, TagStatus, TagWebhookType, TagOutcome, TagAlertType, TagSeverity}
}

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func cloneTags(tags map[string]string) map[string]string {
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}

var _ MetricsRecorder = NopMetricsRecorder{}
