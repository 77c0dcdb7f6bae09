package gojob

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-verification/core"
	"github.com/goliatone/go-verification/retry"
)

const (
	defaultRedriveBatch = 100
	defaultPollInterval = time.Second
)

// Redriver replays audited webhook deliveries. *webhooks.Processor
// satisfies it.
type Redriver interface {
	Redrive(ctx context.Context, eventID string) core.ProcessResult
	RedriveFailed(ctx context.Context, limit int) ([]core.ProcessResult, error)
}

type MonitoringRunner interface {
	RunMonitoringCheck(ctx context.Context) (core.MonitoringReport, error)
}

type WorkerOption func(*Worker)

func WithMonitoringRunner(runner MonitoringRunner) WorkerOption {
	return func(w *Worker) {
		w.monitor = runner
	}
}

func WithWorkerHook(hook core.JobWorkerHook) WorkerOption {
	return func(w *Worker) {
		w.hook = hook
	}
}

func WithWorkerObserver(observer core.Observer) WorkerOption {
	return func(w *Worker) {
		w.observer = observer
	}
}

func WithRetryPolicy(policy RetryPolicy, backoff retry.Config) WorkerOption {
	return func(w *Worker) {
		w.policy = policy
		w.backoff = backoff
	}
}

func WithPollInterval(interval time.Duration) WorkerOption {
	return func(w *Worker) {
		if interval > 0 {
			w.pollInterval = interval
		}
	}
}

// Worker consumes verification jobs from a queue. Retryable failures are
// requeued with backoff until the policy dead letters them.
type Worker struct {
	dequeuer     core.JobDequeuer
	redriver     Redriver
	monitor      MonitoringRunner
	hook         core.JobWorkerHook
	observer     core.Observer
	policy       RetryPolicy
	backoff      retry.Config
	pollInterval time.Duration
	now          func() time.Time

	mu       sync.Mutex
	attempts map[string]int
}

func NewWorker(dequeuer core.JobDequeuer, redriver Redriver, opts ...WorkerOption) (*Worker, error) {
	if dequeuer == nil {
		return nil, core.NewConfigurationError("gojob: dequeuer is required")
	}
	if redriver == nil {
		return nil, core.NewConfigurationError("gojob: redriver is required")
	}
	w := &Worker{
		dequeuer:     dequeuer,
		redriver:     redriver,
		policy:       DefaultRetryPolicy(),
		backoff:      retry.DispatchConfig(),
		pollInterval: defaultPollInterval,
		now: func() time.Time {
			return time.Now().UTC()
		},
		attempts: map[string]int{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w, nil
}

// Run processes jobs until ctx is cancelled. Queue errors are logged and
// retried after the poll interval.
func (w *Worker) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if err := w.ProcessNext(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.observer.LogWarn(ctx, "verification job queue error", map[string]any{"error": err.Error()})
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.pollInterval):
			}
		}
	}
}

// ProcessNext handles a single delivery. It only returns queue errors; job
// failures are settled through Ack or Nack and reported to the hook.
func (w *Worker) ProcessNext(ctx context.Context) error {
	delivery, err := w.dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	if delivery == nil {
		return nil
	}
	msg := delivery.Message()
	if msg == nil {
		return delivery.Nack(ctx, core.JobNackOptions{DeadLetter: true, Reason: "empty job message"})
	}

	key := attemptKey(msg)
	attempt := w.nextAttempt(key)
	startedAt := w.now()
	event := core.JobWorkerEvent{Message: msg, Attempt: attempt, StartedAt: startedAt}
	w.onStart(ctx, event)

	retryable, jobErr := w.execute(ctx, msg)
	event.Duration = w.now().Sub(startedAt)
	w.observer.ObserveOperation(ctx, startedAt, "job_"+jobName(msg.JobID), jobErr, map[string]any{
		"job_id":  msg.JobID,
		"attempt": attempt,
	})

	if jobErr == nil {
		w.clearAttempts(key)
		w.onSuccess(ctx, event)
		return delivery.Ack(ctx)
	}

	event.Err = jobErr
	opts := core.JobNackOptions{Reason: jobErr.Error()}
	if retryable {
		opts.Requeue = true
		opts.Delay = w.backoff.Delay(attempt)
	} else {
		opts.DeadLetter = true
	}
	opts = w.policy.NormalizeAttempt(opts, attempt)
	event.Delay = opts.Delay
	if opts.Requeue {
		w.onRetry(ctx, event)
	} else {
		w.clearAttempts(key)
		w.onFailure(ctx, event)
	}
	return delivery.Nack(ctx, opts)
}

// execute runs the job and reports whether a failure may be requeued.
func (w *Worker) execute(ctx context.Context, msg *core.JobExecutionMessage) (bool, error) {
	switch strings.TrimSpace(msg.JobID) {
	case JobIDRedriveWebhook:
		eventID := stringParam(msg.Parameters, "event_id")
		if eventID == "" {
			return false, core.NewValidationError("event_id", "event id is required")
		}
		return resultError(w.redriver.Redrive(ctx, eventID))
	case JobIDRedriveFailed:
		limit := intParam(msg.Parameters, "limit", defaultRedriveBatch)
		results, err := w.redriver.RedriveFailed(ctx, limit)
		if err != nil {
			return core.IsRetryable(err), err
		}
		failed := 0
		for _, result := range results {
			if !result.Success {
				failed++
			}
		}
		w.observer.LogInfo(ctx, "webhook re-drive batch finished", map[string]any{
			"attempted": len(results),
			"failed":    failed,
		})
		return false, nil
	case JobIDMonitoringCheck:
		if w.monitor == nil {
			return false, core.NewConfigurationError("gojob: monitoring runner is not configured")
		}
		_, err := w.monitor.RunMonitoringCheck(ctx)
		return core.IsRetryable(err), err
	default:
		return false, core.NewValidationError("job_id", fmt.Sprintf("unsupported job %q", msg.JobID))
	}
}

// resultError keeps the processor's retry verdict, which already accounts
// for the audit row's retry budget.
func resultError(result core.ProcessResult) (bool, error) {
	if result.Success {
		return false, nil
	}
	if result.Error != nil {
		return result.Retryable, result.Error
	}
	return result.Retryable, core.NewError(core.KindUnknown, result.Message)
}

func (w *Worker) nextAttempt(key string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.attempts[key]++
	return w.attempts[key]
}

func (w *Worker) clearAttempts(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.attempts, key)
}

func (w *Worker) onStart(ctx context.Context, event core.JobWorkerEvent) {
	if w.hook != nil {
		w.hook.OnStart(ctx, event)
	}
}

func (w *Worker) onSuccess(ctx context.Context, event core.JobWorkerEvent) {
	if w.hook != nil {
		w.hook.OnSuccess(ctx, event)
	}
}

func (w *Worker) onFailure(ctx context.Context, event core.JobWorkerEvent) {
	if w.hook != nil {
		w.hook.OnFailure(ctx, event)
	}
}

func (w *Worker) onRetry(ctx context.Context, event core.JobWorkerEvent) {
	if w.hook != nil {
		w.hook.OnRetry(ctx, event)
	}
}

func attemptKey(msg *core.JobExecutionMessage) string {
	if key := strings.TrimSpace(msg.IdempotencyKey); key != "" {
		return key
	}
	return msg.JobID + ":" + fmt.Sprint(msg.Parameters)
}

func stringParam(params map[string]any, key string) string {
	value, ok := params[key]
	if !ok || value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

func intParam(params map[string]any, key string, fallback int) int {
	switch value := params[key].(type) {
	case int:
		if value > 0 {
			return value
		}
	case int64:
		if value > 0 {
			return int(value)
		}
	case float64:
		if value > 0 {
			return int(value)
		}
	case string:
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}
