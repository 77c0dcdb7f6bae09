// Package monitoring computes verification metrics, health-checks pending
// sessions, and raises operational alerts on a schedule.
package monitoring

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-verification/core"
	"golang.org/x/sync/errgroup"
)

const (
	defaultResyncConcurrency = 4
	dashboardAlertLimit      = 50
	dashboardFailedLimit     = 100
	unknownBucket            = "unknown"

	IssueApprovedNotPersisted = "approved but not updated in database"
)

// Alert messages are stable so open alerts dedupe on (type, message).
const (
	MessageLowSuccessRate     = "verification success rate below threshold"
	MessageSlowProcessing     = "average verification processing time above threshold"
	MessageStuckSessions      = "verification sessions stuck without a decision"
	MessageAPISyncFailures    = "provider sync failed during health check"
	MessageTransitionConflict = "verification transition conflicts detected"
)

type Thresholds struct {
	SuccessRate    float64
	ProcessingTime time.Duration
	StuckWarning   time.Duration
	StuckError     time.Duration
	WindowHours    int
}

func DefaultThresholds() Thresholds {
	return ThresholdsFromConfig(core.DefaultConfig().Monitoring)
}

// ThresholdsFromConfig fills unset values with the defaults.
func ThresholdsFromConfig(cfg core.MonitoringConfig) Thresholds {
	defaults := core.DefaultConfig().Monitoring
	t := Thresholds{
		SuccessRate:    cfg.SuccessRateThreshold,
		ProcessingTime: cfg.ProcessingTimeThreshold,
		StuckWarning:   cfg.StuckWarningAfter,
		StuckError:     cfg.StuckErrorAfter,
		WindowHours:    cfg.WindowHours,
	}
	if t.SuccessRate <= 0 {
		t.SuccessRate = defaults.SuccessRateThreshold
	}
	if t.ProcessingTime <= 0 {
		t.ProcessingTime = defaults.ProcessingTimeThreshold
	}
	if t.StuckWarning <= 0 {
		t.StuckWarning = defaults.StuckWarningAfter
	}
	if t.StuckError <= 0 {
		t.StuckError = defaults.StuckErrorAfter
	}
	if t.WindowHours <= 0 {
		t.WindowHours = defaults.WindowHours
	}
	return t
}

// DecisionSource is the read-only slice of the provider client used to spot
// decisions the webhook path missed.
type DecisionSource interface {
	GetDecisionData(ctx context.Context, sessionID string) (*core.DecisionRecord, error)
}

// Monitor only reads sessions and the audit log; its writes are alerts.
type Monitor struct {
	Users      core.UserVerificationStore
	Events     core.WebhookEventStore
	Alerts     core.AlertStore
	Activity   core.ActivityReader
	Provider   DecisionSource
	Thresholds Thresholds
	Observer   core.Observer
	Now        func() time.Time

	ResyncConcurrency int
}

func NewMonitor(
	users core.UserVerificationStore,
	events core.WebhookEventStore,
	alerts core.AlertStore,
	provider DecisionSource,
) *Monitor {
	return &Monitor{
		Users:      users,
		Events:     events,
		Alerts:     alerts,
		Provider:   provider,
		Thresholds: DefaultThresholds(),
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (m *Monitor) GetVerificationMetrics(ctx context.Context) (core.VerificationMetrics, error) {
	if m == nil || m.Users == nil {
		return core.VerificationMetrics{}, core.NewConfigurationError("monitoring: user store is required")
	}
	sessions, err := m.Users.ListSessions(ctx, core.SessionFilter{})
	if err != nil {
		return core.VerificationMetrics{}, core.WrapError(err, core.KindPersistence, "monitoring: list sessions")
	}
	return SummarizeSessions(sessions, m.now()), nil
}

// SummarizeSessions derives the session metrics as of now.
func SummarizeSessions(users []core.UserVerification, now time.Time) core.VerificationMetrics {
	metrics := core.VerificationMetrics{
		ByDocumentType: map[string]int{},
		ByCountry:      map[string]int{},
		GeneratedAt:    now,
	}
	dayAgo := now.Add(-24 * time.Hour)

	var processingTotal time.Duration
	samples := 0
	for _, user := range users {
		session := user.Session()
		metrics.TotalSessions++

		status := core.NormalizeStatus(string(session.Status))
		switch {
		case status == core.VerificationStatusApproved:
			metrics.CompletedSessions++
		case status == core.VerificationStatusDeclined:
			metrics.FailedSessions++
		case status.IsPending():
			metrics.ActiveSessions++
		}

		if started := session.StartedAt(); started != nil && !started.Before(dayAgo) {
			metrics.Last24h.Total++
			switch {
			case status == core.VerificationStatusApproved:
				metrics.Last24h.Approved++
			case status == core.VerificationStatusDeclined:
				metrics.Last24h.Declined++
			case status.IsPending():
				metrics.Last24h.Pending++
			}
		}

		metrics.ByDocumentType[bucket(session.DocumentType)]++
		metrics.ByCountry[bucket(session.Country)]++

		if session.SubmittedAt != nil && session.ApprovedAt != nil {
			if elapsed := session.ApprovedAt.Sub(*session.SubmittedAt); elapsed >= 0 {
				processingTotal += elapsed
				samples++
			}
		}
	}
	if metrics.TotalSessions > 0 {
		metrics.SuccessRate = float64(metrics.CompletedSessions) / float64(metrics.TotalSessions) * 100
	}
	if samples > 0 {
		metrics.AverageProcessingTime = processingTotal / time.Duration(samples)
	}
	return metrics
}

// PerformHealthCheck grades every pending session by age and asks the
// provider whether it already decided.
func (m *Monitor) PerformHealthCheck(ctx context.Context) ([]core.SessionHealth, error) {
	return m.healthCheck(ctx, true)
}

func (m *Monitor) healthCheck(ctx context.Context, resync bool) ([]core.SessionHealth, error) {
	if m == nil || m.Users == nil {
		return nil, core.NewConfigurationError("monitoring: user store is required")
	}
	pending, err := m.Users.ListSessions(ctx, core.SessionFilter{
		Statuses: []core.VerificationStatus{core.VerificationStatusSubmitted, core.VerificationStatusCreated},
	})
	if err != nil {
		return nil, core.WrapError(err, core.KindPersistence, "monitoring: list pending sessions")
	}

	now := m.now()
	thresholds := m.thresholds()
	results := make([]core.SessionHealth, len(pending))
	for i, user := range pending {
		results[i] = GradeSession(user.Session(), now, thresholds)
	}
	if !resync || m.Provider == nil {
		return results, nil
	}

	limit := m.ResyncConcurrency
	if limit <= 0 {
		limit = defaultResyncConcurrency
	}
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(limit)
	for i := range results {
		if strings.TrimSpace(results[i].SessionID) == "" {
			continue
		}
		group.Go(func() error {
			m.resync(groupCtx, &results[i])
			return nil
		})
	}
	_ = group.Wait()
	return results, nil
}

// GradeSession applies the age thresholds to one pending session.
func GradeSession(session core.VerificationSession, now time.Time, thresholds Thresholds) core.SessionHealth {
	health := core.SessionHealth{
		UserID:        session.UserID,
		SessionID:     session.SessionID,
		SessionStatus: session.Status,
		Status:        core.HealthStatusHealthy,
	}
	started := session.StartedAt()
	if started == nil {
		health.Issues = append(health.Issues, "session has no submission or creation timestamp")
		health.Status = core.HealthStatusWarning
		return health
	}
	age := now.Sub(*started)
	health.HoursSinceSubmission = age.Hours()
	switch {
	case age > thresholds.StuckError:
		health.Status = core.HealthStatusError
		health.Issues = append(health.Issues, fmt.Sprintf("no decision after %.1f hours", health.HoursSinceSubmission))
	case age > thresholds.StuckWarning:
		health.Status = core.HealthStatusWarning
		health.Issues = append(health.Issues, fmt.Sprintf("pending for %.1f hours", health.HoursSinceSubmission))
	}
	return health
}

func (m *Monitor) resync(ctx context.Context, health *core.SessionHealth) {
	decision, err := m.Provider.GetDecisionData(ctx, health.SessionID)
	if err != nil {
		health.APISyncFailed = true
		health.Issues = append(health.Issues, "provider sync failed: "+err.Error())
		if health.Status == core.HealthStatusHealthy {
			health.Status = core.HealthStatusWarning
		}
		m.Observer.LogWarn(ctx, "health check provider sync failed", map[string]any{
			"user_id":    health.UserID,
			"session_id": health.SessionID,
			"error":      err.Error(),
		})
		return
	}
	if decision == nil {
		return
	}
	health.ProviderDecision = strings.TrimSpace(decision.Decision)
	if core.NormalizeStatus(health.ProviderDecision) == core.VerificationStatusApproved {
		health.Issues = append(health.Issues, IssueApprovedNotPersisted)
		if health.Status == core.HealthStatusHealthy {
			health.Status = core.HealthStatusWarning
		}
	}
}

// GenerateAlerts persists an alert for every breached threshold. Alerts
// that are already open are returned but not counted as created.
func (m *Monitor) GenerateAlerts(
	ctx context.Context,
	metrics core.VerificationMetrics,
	health []core.SessionHealth,
) ([]core.VerificationAlert, int, error) {
	if m == nil || m.Alerts == nil {
		return nil, 0, core.NewConfigurationError("monitoring: alert store is required")
	}
	candidates := EvaluateAlerts(metrics, health, m.thresholds(), m.now())

	if m.Activity != nil {
		conflicts, err := m.recentConflicts(ctx)
		if err != nil {
			return nil, 0, err
		}
		if len(conflicts) > 0 {
			users := make([]string, 0, len(conflicts))
			for _, entry := range conflicts {
				users = append(users, entry.UserID)
			}
			candidates = append(candidates, core.VerificationAlert{
				Type:     core.AlertTypeWebhookFailure,
				Severity: core.AlertSeverityMedium,
				Message:  MessageTransitionConflict,
				Details: map[string]any{
					"conflicts":    len(conflicts),
					"user_ids":     users,
					"window_hours": m.thresholds().WindowHours,
				},
				Timestamp: m.now(),
			})
		}
	}

	stored := make([]core.VerificationAlert, 0, len(candidates))
	created := 0
	for _, candidate := range candidates {
		alert, isNew, err := m.Alerts.CreateAlert(ctx, candidate)
		if err != nil {
			return stored, created, core.WrapError(err, core.KindPersistence, "monitoring: persist alert")
		}
		if isNew {
			created++
			m.Observer.RecordCounter(ctx, "verification.monitoring.alerts_created", 1, map[string]string{
				core.TagAlertType: string(alert.Type),
				core.TagSeverity:  string(alert.Severity),
			})
		}
		stored = append(stored, alert)
	}
	return stored, created, nil
}

// EvaluateAlerts applies the threshold rules without touching storage.
func EvaluateAlerts(
	metrics core.VerificationMetrics,
	health []core.SessionHealth,
	thresholds Thresholds,
	now time.Time,
) []core.VerificationAlert {
	var alerts []core.VerificationAlert
	if metrics.TotalSessions > 0 && metrics.SuccessRate < thresholds.SuccessRate {
		alerts = append(alerts, core.VerificationAlert{
			Type:     core.AlertTypeErrorRate,
			Severity: core.AlertSeverityHigh,
			Message:  MessageLowSuccessRate,
			Details: map[string]any{
				"success_rate": metrics.SuccessRate,
				"threshold":    thresholds.SuccessRate,
				"total":        metrics.TotalSessions,
			},
			Timestamp: now,
		})
	}
	if metrics.AverageProcessingTime > thresholds.ProcessingTime {
		alerts = append(alerts, core.VerificationAlert{
			Type:     core.AlertTypeProcessingTime,
			Severity: core.AlertSeverityMedium,
			Message:  MessageSlowProcessing,
			Details: map[string]any{
				"average_minutes":   metrics.AverageProcessingTime.Minutes(),
				"threshold_minutes": thresholds.ProcessingTime.Minutes(),
			},
			Timestamp: now,
		})
	}

	var stuck, syncFailed []string
	for _, entry := range health {
		if entry.HoursSinceSubmission > thresholds.StuckWarning.Hours() {
			stuck = append(stuck, entry.SessionID)
		}
		if entry.APISyncFailed {
			syncFailed = append(syncFailed, entry.SessionID)
		}
	}
	if len(stuck) > 0 {
		alerts = append(alerts, core.VerificationAlert{
			Type:     core.AlertTypeWebhookFailure,
			Severity: core.AlertSeverityHigh,
			Message:  MessageStuckSessions,
			Details: map[string]any{
				"count":       len(stuck),
				"session_ids": stuck,
			},
			Timestamp: now,
		})
	}
	if len(syncFailed) > 0 {
		alerts = append(alerts, core.VerificationAlert{
			Type:     core.AlertTypeAPIFailure,
			Severity: core.AlertSeverityMedium,
			Message:  MessageAPISyncFailures,
			Details: map[string]any{
				"count":       len(syncFailed),
				"session_ids": syncFailed,
			},
			Timestamp: now,
		})
	}
	return alerts
}

func (m *Monitor) recentConflicts(ctx context.Context) ([]core.ActivityEntry, error) {
	since := m.now().Add(-time.Duration(m.thresholds().WindowHours) * time.Hour)
	entries, err := m.Activity.ListActivity(ctx, core.ActivityFilter{
		Status: core.ActivityStatusConflict,
		Since:  &since,
	})
	if err != nil {
		return nil, core.WrapError(err, core.KindPersistence, "monitoring: list conflict activity")
	}
	return entries, nil
}

// RunMonitoringCheck is the scheduled unit of work.
func (m *Monitor) RunMonitoringCheck(ctx context.Context) (report core.MonitoringReport, err error) {
	startedAt := time.Now()
	defer func() {
		if m == nil {
			return
		}
		m.Observer.ObserveOperation(ctx, startedAt, "monitoring_check", err, map[string]any{
			"sessions":       report.Metrics.TotalSessions,
			"unhealthy":      countUnhealthy(report.Health),
			"alerts":         len(report.Alerts),
			"alerts_created": report.Created,
		})
	}()
	if m == nil {
		return core.MonitoringReport{}, core.NewConfigurationError("monitoring: monitor is nil")
	}

	report.RanAt = m.now()
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		metrics, err := m.GetVerificationMetrics(groupCtx)
		report.Metrics = metrics
		return err
	})
	group.Go(func() error {
		health, err := m.PerformHealthCheck(groupCtx)
		report.Health = health
		return err
	})
	if err := group.Wait(); err != nil {
		return report, err
	}

	alerts, created, err := m.GenerateAlerts(ctx, report.Metrics, report.Health)
	report.Alerts = alerts
	report.Created = created
	report.Duration = time.Since(startedAt)
	if err != nil {
		return report, err
	}
	return report, nil
}

// GetDashboardData is read-only: the health section skips provider calls.
func (m *Monitor) GetDashboardData(ctx context.Context) (core.DashboardData, error) {
	if m == nil || m.Users == nil || m.Events == nil || m.Alerts == nil {
		return core.DashboardData{}, core.NewConfigurationError("monitoring: dashboard requires user, event and alert stores")
	}
	data := core.DashboardData{GeneratedAt: m.now()}
	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		metrics, err := m.GetVerificationMetrics(groupCtx)
		mu.Lock()
		data.Metrics = metrics
		mu.Unlock()
		return err
	})
	group.Go(func() error {
		metrics, err := m.Events.GetWebhookMetrics(groupCtx, m.thresholds().WindowHours)
		if err != nil {
			return core.WrapError(err, core.KindPersistence, "monitoring: webhook metrics")
		}
		mu.Lock()
		data.WebhookMetrics = metrics
		mu.Unlock()
		return nil
	})
	group.Go(func() error {
		alerts, err := m.Alerts.ListAlerts(groupCtx, false, dashboardAlertLimit)
		if err != nil {
			return core.WrapError(err, core.KindPersistence, "monitoring: list alerts")
		}
		mu.Lock()
		data.ActiveAlerts = alerts
		mu.Unlock()
		return nil
	})
	group.Go(func() error {
		health, err := m.healthCheck(groupCtx, false)
		mu.Lock()
		data.Health = health
		mu.Unlock()
		return err
	})
	group.Go(func() error {
		failed, err := m.Events.GetFailedWebhooks(groupCtx, dashboardFailedLimit)
		if err != nil {
			return core.WrapError(err, core.KindPersistence, "monitoring: list failed webhooks")
		}
		mu.Lock()
		data.FailedWebhooks = len(failed)
		mu.Unlock()
		return nil
	})
	if err := group.Wait(); err != nil {
		return core.DashboardData{}, err
	}
	return data, nil
}

func (m *Monitor) ResolveAlert(ctx context.Context, id string) (core.VerificationAlert, error) {
	if m == nil || m.Alerts == nil {
		return core.VerificationAlert{}, core.NewConfigurationError("monitoring: alert store is required")
	}
	alert, err := m.Alerts.ResolveAlert(ctx, id, m.now())
	if err != nil {
		return core.VerificationAlert{}, err
	}
	m.Observer.LogInfo(ctx, "alert resolved", map[string]any{
		"alert_id": alert.ID,
		"type":     string(alert.Type),
	})
	return alert, nil
}

func (m *Monitor) thresholds() Thresholds {
	if m == nil {
		return DefaultThresholds()
	}
	return ThresholdsFromConfig(core.MonitoringConfig{
		SuccessRateThreshold:    m.Thresholds.SuccessRate,
		ProcessingTimeThreshold: m.Thresholds.ProcessingTime,
		StuckWarningAfter:       m.Thresholds.StuckWarning,
		StuckErrorAfter:         m.Thresholds.StuckError,
		WindowHours:             m.Thresholds.WindowHours,
	})
}

func (m *Monitor) now() time.Time {
	if m != nil && m.Now != nil {
		return m.Now().UTC()
	}
	return time.Now().UTC()
}

func bucket(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return unknownBucket
	}
	return value
}

func countUnhealthy(health []core.SessionHealth) int {
	count := 0
	for _, entry := range health {
		if entry.Status != core.HealthStatusHealthy {
			count++
		}
	}
	return count
}
