package monitoring

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-verification/adapters/gologger"
	"github.com/goliatone/go-verification/core"
	"github.com/robfig/cron/v3"
)

type Runner interface {
	RunMonitoringCheck(ctx context.Context) (core.MonitoringReport, error)
}

// Scheduler runs the monitoring check on a cron expression. Overlapping
// runs are skipped.
type Scheduler struct {
	runner   Runner
	schedule string
	timeout  time.Duration
	logger   core.Logger
	observer core.Observer

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	last    *core.MonitoringReport
	lastErr error
}

type SchedulerOption func(*Scheduler)

func WithSchedulerLogger(logger core.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

func WithSchedulerObserver(observer core.Observer) SchedulerOption {
	return func(s *Scheduler) {
		s.observer = observer
	}
}

// WithRunTimeout bounds a single scheduled run.
func WithRunTimeout(timeout time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.timeout = timeout
	}
}

// NewScheduler validates schedule with the standard cron parser, which
// also accepts descriptors such as "@every 15m".
func NewScheduler(runner Runner, schedule string, opts ...SchedulerOption) (*Scheduler, error) {
	if runner == nil {
		return nil, core.NewConfigurationError("monitoring: scheduler requires a runner")
	}
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		schedule = core.DefaultConfig().Monitoring.Schedule
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, core.WrapError(err, core.KindConfiguration, "monitoring: invalid schedule "+schedule)
	}
	s := &Scheduler{
		runner:   runner,
		schedule: schedule,
		timeout:  5 * time.Minute,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Start registers the job and returns; runs stop when ctx is done or Stop
// is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return core.NewError(core.KindConflict, "monitoring: scheduler already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	cronLogger := gologger.ToCronLogger(s.logger)
	c := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	if _, err := c.AddFunc(s.schedule, func() {
		_, _ = s.RunOnce(runCtx)
	}); err != nil {
		cancel()
		return core.WrapError(err, core.KindConfiguration, "monitoring: register schedule")
	}
	c.Start()
	s.cron = c
	s.cancel = cancel

	go func() {
		<-runCtx.Done()
		s.Stop()
	}()
	return nil
}

// Stop waits for a running check to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	cancel()
}

func (s *Scheduler) RunOnce(ctx context.Context) (core.MonitoringReport, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	report, err := s.runner.RunMonitoringCheck(ctx)
	if err != nil {
		s.observer.LogError(ctx, "scheduled monitoring check failed", map[string]any{
			"schedule": s.schedule,
			"error":    err.Error(),
		})
	}

	s.mu.Lock()
	s.last = &report
	s.lastErr = err
	s.mu.Unlock()
	return report, err
}

// Last returns the most recent report, if any run completed.
func (s *Scheduler) Last() (core.MonitoringReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return core.MonitoringReport{}, false
	}
	return *s.last, true
}

func (s *Scheduler) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Scheduler) Schedule() string {
	return s.schedule
}
