package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-verification/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// maxProcessingSample caps each processing-time sample so a single stuck
// row cannot dominate the average.
const maxProcessingSample = 60 * time.Second

// WebhookEventStore is the audit log: one row per authenticated delivery,
// keyed by its idempotency key.
type WebhookEventStore struct {
	db   *bun.DB
	repo repository.Repository[*webhookEventRecord]
	Now  func() time.Time
}

func NewWebhookEventStore(db *bun.DB) (*WebhookEventStore, error) {
	repo, err := newRepository(db, webhookEventHandlers(), "webhook event")
	if err != nil {
		return nil, err
	}
	return &WebhookEventStore{db: db, repo: repo}, nil
}

func (s *WebhookEventStore) LogWebhookEvent(ctx context.Context, event core.WebhookEvent) (core.WebhookEvent, bool, error) {
	if s == nil || s.db == nil {
		return core.WebhookEvent{}, false, core.NewConfigurationError("sqlstore: webhook event store is not configured")
	}
	key := strings.TrimSpace(event.IdempotencyKey)
	if key == "" {
		return core.WebhookEvent{}, false, core.NewValidationError("idempotencyKey", "sqlstore: idempotency key is required")
	}

	record := &webhookEventRecord{
		ID:              strings.TrimSpace(event.ID),
		UserID:          strings.TrimSpace(event.UserID),
		SessionID:       strings.TrimSpace(event.SessionID),
		EventType:       string(event.EventType),
		WebhookType:     string(event.WebhookType),
		Status:          string(event.Status),
		IdempotencyKey:  key,
		ProviderEventID: strings.TrimSpace(event.ProviderEventID),
		Payload:         copyAnyMap(event.Payload),
		Error:           event.Error,
		RetryCount:      event.RetryCount,
		CreatedAt:       event.CreatedAt.UTC(),
		ProcessedAt:     utcPointer(event.ProcessedAt),
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.EventType == "" {
		record.EventType = string(core.WebhookEventReceived)
	}
	if record.WebhookType == "" {
		record.WebhookType = string(core.WebhookTypeUnknown)
	}
	if record.Status == "" {
		record.Status = string(core.WebhookStatusPending)
	}
	if event.CreatedAt.IsZero() {
		record.CreatedAt = s.now()
	}

	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			existing, getErr := s.getByKey(ctx, key)
			if getErr != nil {
				return core.WebhookEvent{}, false, getErr
			}
			return existing, false, nil
		}
		return core.WebhookEvent{}, false, core.WrapError(err, core.KindPersistence, "sqlstore: log webhook event")
	}
	return webhookEventToDomain(record), true, nil
}

func (s *WebhookEventStore) MarkWebhookProcessed(ctx context.Context, id string, success bool, errMessage string) error {
	if s == nil || s.db == nil {
		return core.NewConfigurationError("sqlstore: webhook event store is not configured")
	}
	status, eventType := core.WebhookStatusSuccess, core.WebhookEventProcessed
	if !success {
		status, eventType = core.WebhookStatusError, core.WebhookEventFailed
	} else {
		errMessage = ""
	}
	res, err := s.db.NewUpdate().
		Model((*webhookEventRecord)(nil)).
		Set("status = ?", string(status)).
		Set("event_type = ?", string(eventType)).
		Set("error = ?", errMessage).
		Set("processed_at = ?", s.now()).
		Where("id = ?", strings.TrimSpace(id)).
		Exec(ctx)
	if err != nil {
		return core.WrapError(err, core.KindPersistence, "sqlstore: mark webhook event processed")
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return core.NewNotFoundError(fmt.Sprintf("sqlstore: webhook event %q not found", id))
	}
	return nil
}

// MarkWebhookRetry moves an event back to pending and consumes one unit of
// its re-drive budget.
func (s *WebhookEventStore) MarkWebhookRetry(ctx context.Context, id string) (core.WebhookEvent, error) {
	if s == nil || s.db == nil {
		return core.WebhookEvent{}, core.NewConfigurationError("sqlstore: webhook event store is not configured")
	}
	id = strings.TrimSpace(id)
	res, err := s.db.NewUpdate().
		Model((*webhookEventRecord)(nil)).
		Set("status = ?", string(core.WebhookStatusPending)).
		Set("event_type = ?", string(core.WebhookEventRetry)).
		Set("retry_count = retry_count + 1").
		Set("processed_at = NULL").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return core.WebhookEvent{}, core.WrapError(err, core.KindPersistence, "sqlstore: mark webhook event retry")
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return core.WebhookEvent{}, core.NewNotFoundError(fmt.Sprintf("sqlstore: webhook event %q not found", id))
	}
	return s.GetWebhookEvent(ctx, id)
}

func (s *WebhookEventStore) GetWebhookEvent(ctx context.Context, id string) (core.WebhookEvent, error) {
	if s == nil || s.db == nil {
		return core.WebhookEvent{}, core.NewConfigurationError("sqlstore: webhook event store is not configured")
	}
	return s.getWhere(ctx, "?TableAlias.id = ?", strings.TrimSpace(id))
}

func (s *WebhookEventStore) getByKey(ctx context.Context, key string) (core.WebhookEvent, error) {
	return s.getWhere(ctx, "?TableAlias.idempotency_key = ?", key)
}

func (s *WebhookEventStore) getWhere(ctx context.Context, where string, value string) (core.WebhookEvent, error) {
	record := &webhookEventRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where(where, value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.WebhookEvent{}, core.NewNotFoundError(fmt.Sprintf("sqlstore: webhook event %q not found", value))
		}
		return core.WebhookEvent{}, core.WrapError(err, core.KindPersistence, "sqlstore: load webhook event")
	}
	return webhookEventToDomain(record), nil
}

// GetWebhookMetrics summarizes events created in the last windowHours.
func (s *WebhookEventStore) GetWebhookMetrics(ctx context.Context, windowHours int) (core.WebhookMetrics, error) {
	if s == nil || s.repo == nil {
		return core.WebhookMetrics{}, core.NewConfigurationError("sqlstore: webhook event store is not configured")
	}
	if windowHours <= 0 {
		windowHours = 24
	}
	since := s.now().Add(-time.Duration(windowHours) * time.Hour)
	records, _, err := s.repo.List(ctx,
		repository.SelectByTimetz("created_at", ">=", since),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return core.WebhookMetrics{}, core.WrapError(err, core.KindPersistence, "sqlstore: list webhook events")
	}

	events := make([]core.WebhookEvent, 0, len(records))
	for _, record := range records {
		events = append(events, webhookEventToDomain(record))
	}
	return SummarizeWebhookEvents(events, windowHours), nil
}

// SummarizeWebhookEvents computes the audit-log metrics for a set of events.
func SummarizeWebhookEvents(events []core.WebhookEvent, windowHours int) core.WebhookMetrics {
	metrics := core.WebhookMetrics{
		WindowHours:   windowHours,
		ByWebhookType: map[core.WebhookType]int{},
	}
	var processingTotal time.Duration
	samples := 0
	for _, event := range events {
		metrics.Total++
		switch event.Status {
		case core.WebhookStatusSuccess:
			metrics.Success++
		case core.WebhookStatusError:
			metrics.Error++
		default:
			metrics.Pending++
		}
		webhookType := event.WebhookType
		if webhookType == "" {
			webhookType = core.WebhookTypeUnknown
		}
		metrics.ByWebhookType[webhookType]++

		if event.ProcessedAt == nil {
			continue
		}
		sample := event.ProcessedAt.Sub(event.CreatedAt)
		if sample < 0 {
			sample = 0
		}
		if sample > maxProcessingSample {
			sample = maxProcessingSample
		}
		processingTotal += sample
		samples++
	}
	if metrics.Total > 0 {
		metrics.SuccessRate = float64(metrics.Success) / float64(metrics.Total) * 100
	}
	if samples > 0 {
		metrics.AverageProcessingTime = processingTotal / time.Duration(samples)
	}
	return metrics
}

// GetFailedWebhooks returns the re-drive candidates: errored events with
// budget left, oldest first.
func (s *WebhookEventStore) GetFailedWebhooks(ctx context.Context, limit int) ([]core.WebhookEvent, error) {
	if s == nil || s.repo == nil {
		return nil, core.NewConfigurationError("sqlstore: webhook event store is not configured")
	}
	if limit <= 0 {
		limit = 100
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("status", "=", string(core.WebhookStatusError)),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.retry_count < ?", core.MaxWebhookRetries)
		}),
		repository.OrderBy("created_at ASC"),
		repository.SelectPaginate(limit, 0),
	)
	if err != nil {
		return nil, core.WrapError(err, core.KindPersistence, "sqlstore: list failed webhook events")
	}
	events := make([]core.WebhookEvent, 0, len(records))
	for _, record := range records {
		events = append(events, webhookEventToDomain(record))
	}
	return events, nil
}

// ReleaseStalePending errors out pending events created before cutoff. A
// pending row that old lost its worker, and only errored rows are re-driven.
func (s *WebhookEventStore) ReleaseStalePending(ctx context.Context, cutoff time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, core.NewConfigurationError("sqlstore: webhook event store is not configured")
	}
	res, err := s.db.NewUpdate().
		Model((*webhookEventRecord)(nil)).
		Set("status = ?", string(core.WebhookStatusError)).
		Set("event_type = ?", string(core.WebhookEventFailed)).
		Set("error = ?", "processing lease expired").
		Set("processed_at = ?", s.now()).
		Where("status = ?", string(core.WebhookStatusPending)).
		Where("created_at < ?", cutoff.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, core.WrapError(err, core.KindPersistence, "sqlstore: release stale pending webhook events")
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}

func (s *WebhookEventStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func webhookEventToDomain(record *webhookEventRecord) core.WebhookEvent {
	if record == nil {
		return core.WebhookEvent{}
	}
	return core.WebhookEvent{
		ID:              record.ID,
		UserID:          record.UserID,
		SessionID:       record.SessionID,
		EventType:       core.WebhookEventType(record.EventType),
		WebhookType:     core.WebhookType(record.WebhookType),
		Status:          core.WebhookEventStatus(record.Status),
		IdempotencyKey:  record.IdempotencyKey,
		ProviderEventID: record.ProviderEventID,
		Payload:         copyAnyMap(record.Payload),
		Error:           record.Error,
		RetryCount:      record.RetryCount,
		CreatedAt:       record.CreatedAt.UTC(),
		ProcessedAt:     utcPointer(record.ProcessedAt),
	}
}
