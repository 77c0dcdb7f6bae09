package sqlstore

import (
	"time"

	"github.com/goliatone/go-verification/core"
	"github.com/uptrace/bun"
)

// userVerificationRecord maps the verification columns of the host users
// table. Columns outside this set are never read or written.
type userVerificationRecord struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID                    string               `bun:"id,pk"`
	SessionID             string               `bun:"veriff_session_id,notnull"`
	Status                string               `bun:"veriff_status,notnull"`
	IdentityVerified      bool                 `bun:"identity_verified,notnull"`
	IdentityVerifiedAt    *time.Time           `bun:"identity_verified_at,nullzero"`
	PersonGivenName       string               `bun:"veriff_person_given_name,notnull"`
	PersonLastName        string               `bun:"veriff_person_last_name,notnull"`
	PersonIDNumber        string               `bun:"veriff_person_id_number,notnull"`
	PersonDateOfBirth     string               `bun:"veriff_person_date_of_birth,notnull"`
	PersonNationality     string               `bun:"veriff_person_nationality,notnull"`
	PersonGender          string               `bun:"veriff_person_gender,notnull"`
	PersonCountry         string               `bun:"veriff_person_country,notnull"`
	PepSanctionMatches    []map[string]any     `bun:"veriff_pep_sanction_matches,type:jsonb,notnull"`
	Address               string               `bun:"address,notnull"`
	HouseNumber           string               `bun:"house_number,notnull"`
	City                  string               `bun:"city,notnull"`
	PostalCode            string               `bun:"postal_code,notnull"`
	DocumentType          string               `bun:"veriff_document_type,notnull"`
	DocumentNumber        string               `bun:"veriff_document_number,notnull"`
	DocumentCountry       string               `bun:"veriff_document_country,notnull"`
	DocumentValidFrom     string               `bun:"veriff_document_valid_from,notnull"`
	DocumentValidUntil    string               `bun:"veriff_document_valid_until,notnull"`
	DocumentIssuedBy      string               `bun:"veriff_document_issued_by,notnull"`
	DecisionScore         *float64             `bun:"veriff_decision_score"`
	Decision              *core.DecisionRecord `bun:"veriff_decision,type:jsonb"`
	Insights              []core.Insight       `bun:"veriff_insights,type:jsonb,notnull"`
	SourceFeature         string               `bun:"veriff_source_feature,notnull"`
	DeclineReason         string               `bun:"veriff_decline_reason,notnull"`
	VerificationCreatedAt *time.Time           `bun:"veriff_created_at,nullzero"`
	SubmittedAt           *time.Time           `bun:"veriff_submitted_at,nullzero"`
	ApprovedAt            *time.Time           `bun:"veriff_approved_at,nullzero"`
	DeclinedAt            *time.Time           `bun:"veriff_declined_at,nullzero"`
	WebhookData           map[string]any       `bun:"veriff_webhook_data,type:jsonb,notnull"`
	LastEventKey          *string              `bun:"veriff_last_event_key"`
	CreatedAt             time.Time            `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt             time.Time            `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type webhookEventRecord struct {
	bun.BaseModel `bun:"table:webhook_events,alias:we"`

	ID              string         `bun:"id,pk"`
	UserID          string         `bun:"user_id,notnull"`
	SessionID       string         `bun:"session_id,notnull"`
	EventType       string         `bun:"event_type,notnull"`
	WebhookType     string         `bun:"webhook_type,notnull"`
	Status          string         `bun:"status,notnull"`
	IdempotencyKey  string         `bun:"idempotency_key,notnull"`
	ProviderEventID string         `bun:"provider_event_id,notnull"`
	Payload         map[string]any `bun:"payload,type:jsonb,notnull"`
	Error           string         `bun:"error,notnull"`
	RetryCount      int            `bun:"retry_count,notnull"`
	CreatedAt       time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	ProcessedAt     *time.Time     `bun:"processed_at,nullzero"`
}

type activityLogRecord struct {
	bun.BaseModel `bun:"table:activity_log,alias:al"`

	ID        string         `bun:"id,pk"`
	UserID    string         `bun:"user_id,notnull"`
	SessionID string         `bun:"session_id,notnull"`
	Action    string         `bun:"action,notnull"`
	Status    string         `bun:"status,notnull"`
	Metadata  map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type verificationAlertRecord struct {
	bun.BaseModel `bun:"table:verification_alerts,alias:va"`

	ID         string         `bun:"id,pk"`
	Type       string         `bun:"type,notnull"`
	Severity   string         `bun:"severity,notnull"`
	Message    string         `bun:"message,notnull"`
	Details    map[string]any `bun:"details,type:jsonb,notnull"`
	CreatedAt  time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	Resolved   bool           `bun:"resolved,notnull"`
	ResolvedAt *time.Time     `bun:"resolved_at,nullzero"`
}
