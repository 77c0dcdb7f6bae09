package sqlstore

import (
	"context"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-verification/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ActivityStore appends rows to activity_log. Metadata is redacted before
// it is written.
type ActivityStore struct {
	db   *bun.DB
	repo repository.Repository[*activityLogRecord]
	Now  func() time.Time
}

func NewActivityStore(db *bun.DB) (*ActivityStore, error) {
	repo, err := newRepository(db, activityLogHandlers(), "activity")
	if err != nil {
		return nil, err
	}
	return &ActivityStore{db: db, repo: repo}, nil
}

func (s *ActivityStore) Record(ctx context.Context, entry core.ActivityEntry) error {
	if s == nil || s.repo == nil {
		return core.NewConfigurationError("sqlstore: activity store is not configured")
	}
	action := strings.TrimSpace(entry.Action)
	if action == "" {
		return core.NewValidationError("action", "sqlstore: activity action is required")
	}
	metadata := core.RedactSensitiveMap(entry.Metadata)

	record := &activityLogRecord{
		ID:        strings.TrimSpace(entry.ID),
		UserID:    strings.TrimSpace(entry.UserID),
		SessionID: strings.TrimSpace(entry.SessionID),
		Action:    action,
		Status:    strings.TrimSpace(entry.Status),
		Metadata:  metadata,
		CreatedAt: entry.CreatedAt.UTC(),
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Status == "" {
		record.Status = core.ActivityStatusOK
	}
	if record.SessionID == "" {
		record.SessionID = metadataString(metadata, "session_id")
	}
	if entry.CreatedAt.IsZero() {
		record.CreatedAt = s.now()
	}

	// A caller supplied id names one entry, so writing it again is a no-op.
	if strings.TrimSpace(entry.ID) != "" {
		if _, err := s.db.NewInsert().Model(record).On("CONFLICT (id) DO NOTHING").Exec(ctx); err != nil {
			return core.WrapError(err, core.KindPersistence, "sqlstore: record activity")
		}
		return nil
	}
	if _, err := s.repo.Create(ctx, record); err != nil {
		return core.WrapError(err, core.KindPersistence, "sqlstore: record activity")
	}
	return nil
}

// ListActivity returns the newest entries first.
func (s *ActivityStore) ListActivity(ctx context.Context, filter core.ActivityFilter) ([]core.ActivityEntry, error) {
	if s == nil || s.repo == nil {
		return nil, core.NewConfigurationError("sqlstore: activity store is not configured")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	selectors := []repository.SelectCriteria{
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(limit, 0),
	}
	if userID := strings.TrimSpace(filter.UserID); userID != "" {
		selectors = append(selectors, repository.SelectBy("user_id", "=", userID))
	}
	if action := strings.TrimSpace(filter.Action); action != "" {
		selectors = append(selectors, repository.SelectBy("action", "=", action))
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		selectors = append(selectors, repository.SelectBy("status", "=", status))
	}
	if filter.Since != nil {
		selectors = append(selectors, repository.SelectByTimetz("created_at", ">=", filter.Since.UTC()))
	}

	records, _, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return nil, core.WrapError(err, core.KindPersistence, "sqlstore: list activity")
	}
	entries := make([]core.ActivityEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, activityRecordToDomain(record))
	}
	return entries, nil
}

// Prune deletes entries older than before and reports how many went away.
func (s *ActivityStore) Prune(ctx context.Context, before time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, core.NewConfigurationError("sqlstore: activity store is not configured")
	}
	res, err := s.db.NewDelete().
		Model((*activityLogRecord)(nil)).
		Where("created_at < ?", before.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, core.WrapError(err, core.KindPersistence, "sqlstore: prune activity")
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}

func (s *ActivityStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func activityRecordToDomain(record *activityLogRecord) core.ActivityEntry {
	if record == nil {
		return core.ActivityEntry{}
	}
	return core.ActivityEntry{
		ID:        record.ID,
		UserID:    record.UserID,
		SessionID: record.SessionID,
		Action:    record.Action,
		Status:    record.Status,
		Metadata:  copyAnyMap(record.Metadata),
		CreatedAt: record.CreatedAt.UTC(),
	}
}
