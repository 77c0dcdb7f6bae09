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

type AlertStore struct {
	db   *bun.DB
	repo repository.Repository[*verificationAlertRecord]
	Now  func() time.Time
}

func NewAlertStore(db *bun.DB) (*AlertStore, error) {
	repo, err := newRepository(db, verificationAlertHandlers(), "verification alert")
	if err != nil {
		return nil, err
	}
	return &AlertStore{db: db, repo: repo}, nil
}

// CreateAlert relies on the partial unique index over open alerts to keep
// one unresolved row per type and message.
func (s *AlertStore) CreateAlert(ctx context.Context, alert core.VerificationAlert) (core.VerificationAlert, bool, error) {
	if s == nil || s.db == nil {
		return core.VerificationAlert{}, false, core.NewConfigurationError("sqlstore: alert store is not configured")
	}
	message := strings.TrimSpace(alert.Message)
	if alert.Type == "" || message == "" {
		return core.VerificationAlert{}, false, core.NewValidationError("message", "sqlstore: alert type and message are required")
	}

	record := &verificationAlertRecord{
		ID:        strings.TrimSpace(alert.ID),
		Type:      string(alert.Type),
		Severity:  string(alert.Severity),
		Message:   message,
		Details:   core.RedactSensitiveMap(alert.Details),
		CreatedAt: alert.Timestamp.UTC(),
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Severity == "" {
		record.Severity = string(core.AlertSeverityMedium)
	}
	if alert.Timestamp.IsZero() {
		record.CreatedAt = s.now()
	}

	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			existing, refreshErr := s.refreshOpenAlert(ctx, record)
			if refreshErr != nil {
				return core.VerificationAlert{}, false, refreshErr
			}
			return existing, false, nil
		}
		return core.VerificationAlert{}, false, core.WrapError(err, core.KindPersistence, "sqlstore: create alert")
	}
	return alertRecordToDomain(record), true, nil
}

// ResolveAlert is idempotent; resolving a resolved alert returns it as is.
func (s *AlertStore) ResolveAlert(ctx context.Context, id string, resolvedAt time.Time) (core.VerificationAlert, error) {
	if s == nil || s.db == nil {
		return core.VerificationAlert{}, core.NewConfigurationError("sqlstore: alert store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.VerificationAlert{}, core.NewValidationError("id", "sqlstore: alert id is required")
	}
	if resolvedAt.IsZero() {
		resolvedAt = s.now()
	}
	if _, err := s.db.NewUpdate().
		Model((*verificationAlertRecord)(nil)).
		Set("resolved = ?", true).
		Set("resolved_at = ?", resolvedAt.UTC()).
		Where("id = ?", id).
		Where("resolved = ?", false).
		Exec(ctx); err != nil {
		return core.VerificationAlert{}, core.WrapError(err, core.KindPersistence, "sqlstore: resolve alert")
	}

	record := &verificationAlertRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.VerificationAlert{}, core.NewNotFoundError(fmt.Sprintf("sqlstore: alert %q not found", id))
		}
		return core.VerificationAlert{}, core.WrapError(err, core.KindPersistence, "sqlstore: load alert")
	}
	return alertRecordToDomain(record), nil
}

func (s *AlertStore) ListAlerts(ctx context.Context, includeResolved bool, limit int) ([]core.VerificationAlert, error) {
	if s == nil || s.repo == nil {
		return nil, core.NewConfigurationError("sqlstore: alert store is not configured")
	}
	if limit <= 0 {
		limit = 50
	}
	selectors := []repository.SelectCriteria{
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(limit, 0),
	}
	if !includeResolved {
		selectors = append(selectors, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.resolved = ?", false)
		}))
	}
	records, _, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return nil, core.WrapError(err, core.KindPersistence, "sqlstore: list alerts")
	}
	alerts := make([]core.VerificationAlert, 0, len(records))
	for _, record := range records {
		alerts = append(alerts, alertRecordToDomain(record))
	}
	return alerts, nil
}

// refreshOpenAlert moves the open alert matching record to the latest
// details and timestamp.
func (s *AlertStore) refreshOpenAlert(ctx context.Context, record *verificationAlertRecord) (core.VerificationAlert, error) {
	if _, err := s.db.NewUpdate().
		Model((*verificationAlertRecord)(nil)).
		Set("details = ?", jsonValue(record.Details)).
		Set("created_at = ?", record.CreatedAt.UTC()).
		Where("type = ?", record.Type).
		Where("message = ?", record.Message).
		Where("resolved = ?", false).
		Exec(ctx); err != nil {
		return core.VerificationAlert{}, core.WrapError(err, core.KindPersistence, "sqlstore: refresh open alert")
	}
	return s.openAlert(ctx, record.Type, record.Message)
}

func (s *AlertStore) openAlert(ctx context.Context, alertType string, message string) (core.VerificationAlert, error) {
	record := &verificationAlertRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.type = ?", alertType).
		Where("?TableAlias.message = ?", message).
		Where("?TableAlias.resolved = ?", false).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return core.VerificationAlert{}, core.WrapError(err, core.KindPersistence, "sqlstore: load open alert")
	}
	return alertRecordToDomain(record), nil
}

func (s *AlertStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func alertRecordToDomain(record *verificationAlertRecord) core.VerificationAlert {
	if record == nil {
		return core.VerificationAlert{}
	}
	return core.VerificationAlert{
		ID:         record.ID,
		Type:       core.AlertType(record.Type),
		Severity:   core.AlertSeverity(record.Severity),
		Message:    record.Message,
		Details:    copyAnyMap(record.Details),
		Timestamp:  record.CreatedAt.UTC(),
		Resolved:   record.Resolved,
		ResolvedAt: utcPointer(record.ResolvedAt),
	}
}
