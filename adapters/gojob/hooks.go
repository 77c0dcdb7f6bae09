package gojob

import (
	"context"

	"github.com/goliatone/go-job/queue/worker"
	"github.com/goliatone/go-verification/core"
)

// ObserverHook reports job lifecycle events through a core.Observer. It
// serves both the verification Worker and go-job's own worker runtime.
type ObserverHook struct {
	Observer core.Observer
}

func NewObserverHook(observer core.Observer) *ObserverHook {
	return &ObserverHook{Observer: observer}
}

func (h *ObserverHook) OnStart(ctx context.Context, event core.JobWorkerEvent) {
	h.record(ctx, "started", event)
}

func (h *ObserverHook) OnSuccess(ctx context.Context, event core.JobWorkerEvent) {
	h.record(ctx, "succeeded", event)
}

func (h *ObserverHook) OnFailure(ctx context.Context, event core.JobWorkerEvent) {
	h.record(ctx, "dead_lettered", event)
}

func (h *ObserverHook) OnRetry(ctx context.Context, event core.JobWorkerEvent) {
	h.record(ctx, "requeued", event)
}

func (h *ObserverHook) record(ctx context.Context, outcome string, event core.JobWorkerEvent) {
	if h == nil {
		return
	}
	jobID := ""
	if event.Message != nil {
		jobID = event.Message.JobID
	}
	h.Observer.RecordCounter(ctx, "verification.jobs.total", 1, map[string]string{
		core.TagOperation: jobName(jobID),
		core.TagOutcome:   outcome,
	})
	fields := map[string]any{
		"job_id":  jobID,
		"attempt": event.Attempt,
	}
	switch outcome {
	case "started":
		return
	case "succeeded":
		fields["duration_ms"] = event.Duration.Milliseconds()
		h.Observer.LogInfo(ctx, "verification job succeeded", fields)
	case "requeued":
		fields["delay_ms"] = event.Delay.Milliseconds()
		fields["error"] = errString(event.Err)
		h.Observer.LogWarn(ctx, "verification job requeued", fields)
	default:
		fields["error"] = errString(event.Err)
		h.Observer.LogError(ctx, "verification job dead lettered", fields)
	}
}

// GoJobHook exposes h to go-job's worker, which reports its own events.
func (h *ObserverHook) GoJobHook() worker.Hook {
	return goJobHook{hook: h}
}

type goJobHook struct {
	hook core.JobWorkerHook
}

func (g goJobHook) OnStart(ctx context.Context, event worker.Event) {
	g.hook.OnStart(ctx, mapWorkerEvent(event))
}

func (g goJobHook) OnSuccess(ctx context.Context, event worker.Event) {
	g.hook.OnSuccess(ctx, mapWorkerEvent(event))
}

func (g goJobHook) OnFailure(ctx context.Context, event worker.Event) {
	g.hook.OnFailure(ctx, mapWorkerEvent(event))
}

func (g goJobHook) OnRetry(ctx context.Context, event worker.Event) {
	g.hook.OnRetry(ctx, mapWorkerEvent(event))
}

func mapWorkerEvent(event worker.Event) core.JobWorkerEvent {
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	return core.JobWorkerEvent{
		Message:   FromExecutionMessage(message),
		Attempt:   event.Attempt,
		Delay:     event.Delay,
		Err:       event.Err,
		StartedAt: event.StartedAt,
		Duration:  event.Duration,
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

var (
	_ core.JobWorkerHook = (*ObserverHook)(nil)
	_ worker.Hook        = goJobHook{}
)
