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
	"github.com/uptrace/bun"
)

// UserVerificationStore owns the veriff_* columns of the host users table.
// Rows are created by the host application; this store only updates them.
type UserVerificationStore struct {
	db   *bun.DB
	repo repository.Repository[*userVerificationRecord]
	Now  func() time.Time
}

func NewUserVerificationStore(db *bun.DB) (*UserVerificationStore, error) {
	repo, err := newRepository(db, userVerificationHandlers(), "user verification")
	if err != nil {
		return nil, err
	}
	return &UserVerificationStore{db: db, repo: repo}, nil
}

func (s *UserVerificationStore) Get(ctx context.Context, userID string) (core.UserVerification, error) {
	if s == nil || s.db == nil {
		return core.UserVerification{}, core.NewConfigurationError("sqlstore: user verification store is not configured")
	}
	record, err := s.get(ctx, userID)
	if err != nil {
		return core.UserVerification{}, err
	}
	return userVerificationToDomain(record), nil
}

func (s *UserVerificationStore) get(ctx context.Context, userID string) (*userVerificationRecord, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, core.NewValidationError("userId", "sqlstore: user id is required")
	}
	record := &userVerificationRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.NewNotFoundError(fmt.Sprintf("sqlstore: user %q not found", userID))
		}
		return nil, core.WrapError(err, core.KindPersistence, "sqlstore: load user verification")
	}
	return record, nil
}

// ApplyTransition writes patch as a compare-and-swap on
// veriff_last_event_key. A patch whose key was the last one applied updates
// nothing and reports applied=false.
func (s *UserVerificationStore) ApplyTransition(ctx context.Context, patch core.TransitionPatch) (bool, error) {
	if s == nil || s.db == nil {
		return false, core.NewConfigurationError("sqlstore: user verification store is not configured")
	}
	userID := strings.TrimSpace(patch.UserID)
	if userID == "" {
		return false, core.NewValidationError("userId", "sqlstore: user id is required")
	}
	eventKey := strings.TrimSpace(patch.EventKey)

	query := s.db.NewUpdate().
		Model((*userVerificationRecord)(nil)).
		Set("updated_at = ?", s.now())
	if eventKey != "" {
		query = query.Set("veriff_last_event_key = ?", eventKey)
	}
	if sessionID := strings.TrimSpace(patch.SessionID); sessionID != "" {
		query = query.Set("veriff_session_id = ?", sessionID)
	}
	if status := strings.TrimSpace(string(patch.Status)); status != "" {
		query = query.Set("veriff_status = ?", status)
	}
	if patch.IdentityVerified != nil {
		query = query.Set("identity_verified = ?", *patch.IdentityVerified)
	}
	query = setTime(query, "identity_verified_at", patch.IdentityVerifiedAt)
	query = setTime(query, "veriff_submitted_at", patch.SubmittedAt)
	query = setTime(query, "veriff_approved_at", patch.ApprovedAt)
	query = setTime(query, "veriff_declined_at", patch.DeclinedAt)
	if reason := strings.TrimSpace(patch.DeclineReason); reason != "" {
		query = query.Set("veriff_decline_reason = ?", reason)
	}
	if feature := strings.TrimSpace(patch.SourceFeature); feature != "" {
		query = query.Set("veriff_source_feature = ?", feature)
	}
	if patch.Person != nil {
		query = setPerson(query, *patch.Person)
	}
	if patch.Document != nil {
		query = setDocument(query, *patch.Document)
	}
	if patch.DecisionScore != nil {
		query = query.Set("veriff_decision_score = ?", *patch.DecisionScore)
	}
	if len(patch.Insights) > 0 {
		query = query.Set("veriff_insights = ?", jsonValue(patch.Insights))
	}
	if patch.WebhookData != nil {
		query = query.Set("veriff_webhook_data = ?", jsonValue(patch.WebhookData))
	}

	query = query.Where("id = ?", userID)
	if eventKey != "" {
		query = query.WhereGroup(" AND ", func(q *bun.UpdateQuery) *bun.UpdateQuery {
			return q.Where("veriff_last_event_key IS NULL").
				WhereOr("veriff_last_event_key <> ?", eventKey)
		})
	}

	res, err := query.Exec(ctx)
	if err != nil {
		return false, core.WrapError(err, core.KindPersistence, "sqlstore: apply verification transition")
	}
	if affected, _ := res.RowsAffected(); affected > 0 {
		return true, nil
	}
	if _, err := s.get(ctx, userID); err != nil {
		return false, err
	}
	return false, nil
}

// SaveReconciled writes pulled provider data. Status and the verified flag
// are left alone; only the webhook path moves the state machine.
func (s *UserVerificationStore) SaveReconciled(ctx context.Context, data core.ReconciledData) error {
	if s == nil || s.db == nil {
		return core.NewConfigurationError("sqlstore: user verification store is not configured")
	}
	userID := strings.TrimSpace(data.UserID)
	if userID == "" {
		return core.NewValidationError("userId", "sqlstore: user id is required")
	}

	query := s.db.NewUpdate().
		Model((*userVerificationRecord)(nil)).
		Set("updated_at = ?", s.now())
	if data.Person != nil {
		query = setPerson(query, *data.Person)
	}
	if decision := data.Decision; decision != nil {
		query = query.Set("veriff_decision = ?", jsonValue(decision))
		if decision.DecisionScore != nil {
			query = query.Set("veriff_decision_score = ?", *decision.DecisionScore)
		}
		if len(decision.Insights) > 0 {
			query = query.Set("veriff_insights = ?", jsonValue(decision.Insights))
		}
		if document := decision.DocumentRecord(); !document.IsZero() {
			query = setDocument(query, document)
		}
	}
	query = query.Where("id = ?", userID)
	if sessionID := strings.TrimSpace(data.SessionID); sessionID != "" {
		query = query.Where("veriff_session_id = ?", sessionID)
	}

	res, err := query.Exec(ctx)
	if err != nil {
		return core.WrapError(err, core.KindPersistence, "sqlstore: save reconciled verification data")
	}
	if affected, _ := res.RowsAffected(); affected > 0 {
		return nil
	}
	if _, err := s.get(ctx, userID); err != nil {
		return err
	}
	return core.NewError(core.KindConflict, fmt.Sprintf("sqlstore: session %q is no longer current for user %q", data.SessionID, userID))
}

// SaveSession points the user at a freshly created session. Earlier session
// timestamps are cleared; an earlier approval is kept.
func (s *UserVerificationStore) SaveSession(
	ctx context.Context,
	userID string,
	session core.SessionDescriptor,
	createdAt time.Time,
) error {
	if s == nil || s.db == nil {
		return core.NewConfigurationError("sqlstore: user verification store is not configured")
	}
	userID = strings.TrimSpace(userID)
	sessionID := strings.TrimSpace(session.SessionID)
	if userID == "" || sessionID == "" {
		return core.NewValidationError("sessionId", "sqlstore: user id and session id are required")
	}
	res, err := s.db.NewUpdate().
		Model((*userVerificationRecord)(nil)).
		Set("veriff_session_id = ?", sessionID).
		Set("veriff_status = ?", core.VerificationStatusCreated).
		Set("veriff_created_at = ?", createdAt.UTC()).
		Set("veriff_submitted_at = NULL").
		Set("veriff_declined_at = NULL").
		Set("veriff_decline_reason = ''").
		Set("veriff_last_event_key = NULL").
		Set("updated_at = ?", s.now()).
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		return core.WrapError(err, core.KindPersistence, "sqlstore: save verification session")
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return core.NewNotFoundError(fmt.Sprintf("sqlstore: user %q not found", userID))
	}
	return nil
}

// ListSessions returns users that carry a session id. Since matches on the
// submission time, falling back to the creation time.
func (s *UserVerificationStore) ListSessions(ctx context.Context, filter core.SessionFilter) ([]core.UserVerification, error) {
	if s == nil || s.repo == nil {
		return nil, core.NewConfigurationError("sqlstore: user verification store is not configured")
	}
	selectors := []repository.SelectCriteria{
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.veriff_session_id <> ''")
		}),
		repository.OrderBy("updated_at DESC"),
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, status := range filter.Statuses {
			statuses = append(statuses, string(core.NormalizeStatus(string(status))))
		}
		selectors = append(selectors, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.veriff_status IN (?)", bun.In(statuses))
		}))
	}
	if filter.Since != nil {
		since := filter.Since.UTC()
		selectors = append(selectors, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.Where("?TableAlias.veriff_submitted_at >= ?", since).
					WhereGroup(" OR ", func(q *bun.SelectQuery) *bun.SelectQuery {
						return q.Where("?TableAlias.veriff_submitted_at IS NULL").
							Where("?TableAlias.veriff_created_at >= ?", since)
					})
			})
		}))
	}

	records, _, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return nil, core.WrapError(err, core.KindPersistence, "sqlstore: list verification sessions")
	}
	users := make([]core.UserVerification, 0, len(records))
	for _, record := range records {
		users = append(users, userVerificationToDomain(record))
	}
	return users, nil
}

func (s *UserVerificationStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func setTime(query *bun.UpdateQuery, column string, value *time.Time) *bun.UpdateQuery {
	if value == nil {
		return query
	}
	return query.Set(column+" = ?", value.UTC())
}

func setPerson(query *bun.UpdateQuery, person core.PersonRecord) *bun.UpdateQuery {
	query = query.
		Set("veriff_person_given_name = ?", strings.TrimSpace(person.GivenName)).
		Set("veriff_person_last_name = ?", strings.TrimSpace(person.LastName)).
		Set("veriff_person_id_number = ?", strings.TrimSpace(person.IDNumber)).
		Set("veriff_person_date_of_birth = ?", strings.TrimSpace(person.DateOfBirth)).
		Set("veriff_person_nationality = ?", strings.TrimSpace(person.Nationality)).
		Set("veriff_person_gender = ?", strings.TrimSpace(person.Gender)).
		Set("veriff_person_country = ?", strings.TrimSpace(person.Country))
	if len(person.PepSanctionMatches) > 0 {
		query = query.Set("veriff_pep_sanction_matches = ?", jsonValue(person.PepSanctionMatches))
	}
	if !person.Address.IsZero() {
		query = query.
			Set("address = ?", strings.TrimSpace(person.Address.Street)).
			Set("house_number = ?", strings.TrimSpace(person.Address.HouseNumber)).
			Set("city = ?", strings.TrimSpace(person.Address.City)).
			Set("postal_code = ?", strings.TrimSpace(person.Address.PostalCode))
	}
	return query
}

func setDocument(query *bun.UpdateQuery, document core.DocumentRecord) *bun.UpdateQuery {
	return query.
		Set("veriff_document_type = ?", strings.TrimSpace(document.Type)).
		Set("veriff_document_number = ?", strings.TrimSpace(document.Number)).
		Set("veriff_document_country = ?", strings.TrimSpace(document.Country)).
		Set("veriff_document_valid_from = ?", strings.TrimSpace(document.ValidFrom)).
		Set("veriff_document_valid_until = ?", strings.TrimSpace(document.ValidUntil)).
		Set("veriff_document_issued_by = ?", strings.TrimSpace(document.IssuedBy))
}

func userVerificationToDomain(record *userVerificationRecord) core.UserVerification {
	if record == nil {
		return core.UserVerification{}
	}
	user := core.UserVerification{
		UserID:             record.ID,
		SessionID:          record.SessionID,
		Status:             core.VerificationStatus(record.Status),
		IdentityVerified:   record.IdentityVerified,
		IdentityVerifiedAt: utcPointer(record.IdentityVerifiedAt),
		Person: core.PersonRecord{
			GivenName:   record.PersonGivenName,
			LastName:    record.PersonLastName,
			IDNumber:    record.PersonIDNumber,
			DateOfBirth: record.PersonDateOfBirth,
			Nationality: record.PersonNationality,
			Gender:      record.PersonGender,
			Country:     record.PersonCountry,
			Address: core.Address{
				Street:      record.Address,
				HouseNumber: record.HouseNumber,
				City:        record.City,
				PostalCode:  record.PostalCode,
			},
			PepSanctionMatches: record.PepSanctionMatches,
		},
		Document: core.DocumentRecord{
			Type:       record.DocumentType,
			Number:     record.DocumentNumber,
			Country:    record.DocumentCountry,
			ValidFrom:  record.DocumentValidFrom,
			ValidUntil: record.DocumentValidUntil,
			IssuedBy:   record.DocumentIssuedBy,
		},
		DecisionScore: record.DecisionScore,
		Decision:      record.Decision,
		Insights:      record.Insights,
		SourceFeature: record.SourceFeature,
		DeclineReason: record.DeclineReason,
		CreatedAt:     utcPointer(record.VerificationCreatedAt),
		SubmittedAt:   utcPointer(record.SubmittedAt),
		ApprovedAt:    utcPointer(record.ApprovedAt),
		DeclinedAt:    utcPointer(record.DeclinedAt),
		WebhookData:   copyAnyMap(record.WebhookData),
		UpdatedAt:     record.UpdatedAt.UTC(),
	}
	if record.LastEventKey != nil {
		user.LastEventKey = *record.LastEventKey
	}
	return user
}
