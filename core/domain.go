package core

import (
	"strings"
	"time"
)

// VerificationStatus is the raw status string stored on the user record.
// Known values drive the state machine; anything else is preserved verbatim.
type VerificationStatus string

const (
	VerificationStatusNew       VerificationStatus = ""
	VerificationStatusCreated   VerificationStatus = "created"
	VerificationStatusSubmitted VerificationStatus = "submitted"
	VerificationStatusApproved  VerificationStatus = "approved"
	VerificationStatusDeclined  VerificationStatus = "declined"
)

func NormalizeStatus(status string) VerificationStatus {
	return VerificationStatus(strings.ToLower(strings.TrimSpace(status)))
}

func (s VerificationStatus) IsTerminal() bool {
	switch NormalizeStatus(string(s)) {
	case VerificationStatusApproved, VerificationStatusDeclined:
		return true
	default:
		return false
	}
}

// IsPending reports whether the session still waits for a provider decision.
func (s VerificationStatus) IsPending() bool {
	switch NormalizeStatus(string(s)) {
	case VerificationStatusCreated, VerificationStatusSubmitted:
		return true
	default:
		return false
	}
}

type WebhookType string

const (
	WebhookTypeSubmitted WebhookType = "submitted"
	WebhookTypeApproved  WebhookType = "approved"
	WebhookTypeDeclined  WebhookType = "declined"
	WebhookTypeUnknown   WebhookType = "unknown"
)

type WebhookEventType string

const (
	WebhookEventReceived  WebhookEventType = "received"
	WebhookEventProcessed WebhookEventType = "processed"
	WebhookEventFailed    WebhookEventType = "failed"
	WebhookEventRetry     WebhookEventType = "retry"
)

type WebhookEventStatus string

const (
	WebhookStatusPending WebhookEventStatus = "pending"
	WebhookStatusSuccess WebhookEventStatus = "success"
	WebhookStatusError   WebhookEventStatus = "error"
)

// MaxWebhookRetries bounds how many times a failed event is re-driven.
const MaxWebhookRetries = 3

// PendingLease is how long a pending event may stay claimed before another
// delivery or a re-drive batch takes it over.
const PendingLease = 5 * time.Minute

type AlertType string

const (
	AlertTypeErrorRate      AlertType = "error_rate"
	AlertTypeProcessingTime AlertType = "processing_time"
	AlertTypeAPIFailure     AlertType = "api_failure"
	AlertTypeWebhookFailure AlertType = "webhook_failure"
)

type AlertSeverity string

const (
	AlertSeverityLow      AlertSeverity = "low"
	AlertSeverityMedium   AlertSeverity = "medium"
	AlertSeverityHigh     AlertSeverity = "high"
	AlertSeverityCritical AlertSeverity = "critical"
)

type PayloadShape string

const (
	PayloadShapeSelfID      PayloadShape = "selfid"
	PayloadShapeTraditional PayloadShape = "traditional"
	PayloadShapeEvent       PayloadShape = "event"
)

type Address struct {
	Street      string `json:"street,omitempty"`
	HouseNumber string `json:"houseNumber,omitempty"`
	City        string `json:"city,omitempty"`
	PostalCode  string `json:"postalCode,omitempty"`
}

func (a Address) IsZero() bool {
	return strings.TrimSpace(a.Street) == "" &&
		strings.TrimSpace(a.HouseNumber) == "" &&
		strings.TrimSpace(a.City) == "" &&
		strings.TrimSpace(a.PostalCode) == ""
}

type PersonRecord struct {
	GivenName          string           `json:"givenName,omitempty"`
	LastName           string           `json:"lastName,omitempty"`
	IDNumber           string           `json:"idNumber,omitempty"`
	DateOfBirth        string           `json:"dateOfBirth,omitempty"`
	Nationality        string           `json:"nationality,omitempty"`
	Gender             string           `json:"gender,omitempty"`
	Country            string           `json:"country,omitempty"`
	Address            Address          `json:"address"`
	PepSanctionMatches []map[string]any `json:"pepSanctionMatches,omitempty"`
}

func (p PersonRecord) IsZero() bool {
	return strings.TrimSpace(p.GivenName) == "" &&
		strings.TrimSpace(p.LastName) == "" &&
		strings.TrimSpace(p.IDNumber) == "" &&
		strings.TrimSpace(p.DateOfBirth) == "" &&
		p.Address.IsZero()
}

type DocumentRecord struct {
	Type       string `json:"type,omitempty"`
	Number     string `json:"number,omitempty"`
	Country    string `json:"country,omitempty"`
	ValidFrom  string `json:"validFrom,omitempty"`
	ValidUntil string `json:"validUntil,omitempty"`
	IssuedBy   string `json:"issuedBy,omitempty"`
}

func (d DocumentRecord) IsZero() bool {
	return strings.TrimSpace(d.Type) == "" &&
		strings.TrimSpace(d.Number) == "" &&
		strings.TrimSpace(d.Country) == ""
}

// ConfidenceField is a pulled value tagged with extraction certainty.
type ConfidenceField struct {
	Value              string   `json:"value"`
	ConfidenceCategory string   `json:"confidenceCategory,omitempty"`
	Sources            []string `json:"sources"`
}

func (f ConfidenceField) String() string {
	return strings.TrimSpace(f.Value)
}

type DecisionPerson struct {
	FirstName   ConfidenceField `json:"firstName"`
	LastName    ConfidenceField `json:"lastName"`
	IDNumber    ConfidenceField `json:"idNumber"`
	DateOfBirth ConfidenceField `json:"dateOfBirth"`
	Nationality ConfidenceField `json:"nationality"`
	Gender      ConfidenceField `json:"gender"`
}

type DecisionDocument struct {
	Type       ConfidenceField `json:"type"`
	Number     ConfidenceField `json:"number"`
	Country    ConfidenceField `json:"country"`
	ValidFrom  ConfidenceField `json:"validFrom"`
	ValidUntil ConfidenceField `json:"validUntil"`
	IssuedBy   ConfidenceField `json:"issuedBy"`
}

type Insight struct {
	Label    string `json:"label"`
	Result   string `json:"result"`
	Category string `json:"category,omitempty"`
}

type DecisionRecord struct {
	SessionID      string           `json:"sessionId"`
	Decision       string           `json:"decision"`
	Code           int              `json:"code,omitempty"`
	DecisionScore  *float64         `json:"decisionScore,omitempty"`
	Reason         string           `json:"reason,omitempty"`
	ReasonCode     *int             `json:"reasonCode,omitempty"`
	DecisionTime   *time.Time       `json:"decisionTime,omitempty"`
	AcceptanceTime *time.Time       `json:"acceptanceTime,omitempty"`
	Person         DecisionPerson   `json:"person"`
	Document       DecisionDocument `json:"document"`
	Insights       []Insight        `json:"insights,omitempty"`
}

// PersonRecord flattens the confidence-tagged person values.
func (d DecisionRecord) PersonRecord() PersonRecord {
	return PersonRecord{
		GivenName:   d.Person.FirstName.String(),
		LastName:    d.Person.LastName.String(),
		IDNumber:    d.Person.IDNumber.String(),
		DateOfBirth: d.Person.DateOfBirth.String(),
		Nationality: d.Person.Nationality.String(),
		Gender:      d.Person.Gender.String(),
	}
}

func (d DecisionRecord) DocumentRecord() DocumentRecord {
	return DocumentRecord{
		Type:       d.Document.Type.String(),
		Number:     d.Document.Number.String(),
		Country:    d.Document.Country.String(),
		ValidFrom:  d.Document.ValidFrom.String(),
		ValidUntil: d.Document.ValidUntil.String(),
		IssuedBy:   d.Document.IssuedBy.String(),
	}
}

type FaceMatch struct {
	Status     string   `json:"status,omitempty"`
	Similarity *float64 `json:"similarity,omitempty"`
}

type AdditionalVerification struct {
	FaceMatch *FaceMatch `json:"faceMatch,omitempty"`
}

// CanonicalVerification is the shape-independent view of one webhook.
type CanonicalVerification struct {
	Shape                  PayloadShape           `json:"shape"`
	SessionID              string                 `json:"sessionId"`
	UserID                 string                 `json:"userId"`
	AttemptID              string                 `json:"attemptId,omitempty"`
	Feature                string                 `json:"feature,omitempty"`
	Action                 string                 `json:"action,omitempty"`
	Status                 string                 `json:"status,omitempty"`
	WebhookType            WebhookType            `json:"webhookType"`
	Code                   int                    `json:"code,omitempty"`
	Reason                 string                 `json:"reason,omitempty"`
	ReasonCode             *int                   `json:"reasonCode,omitempty"`
	Person                 PersonRecord           `json:"person"`
	Document               DocumentRecord         `json:"document"`
	AdditionalVerification AdditionalVerification `json:"additionalVerification"`
	DecisionScore          *float64               `json:"decisionScore,omitempty"`
	Insights               []Insight              `json:"insights,omitempty"`
	SubmittedAt            *time.Time             `json:"submittedAt,omitempty"`
	DecisionTime           *time.Time             `json:"decisionTime,omitempty"`
	AcceptanceTime         *time.Time             `json:"acceptanceTime,omitempty"`
	EventKey               string                 `json:"-"` // audit-log idempotency key, set before dispatch
	Raw                    map[string]any         `json:"-"`
}

// RawEventMeaning is the action, falling back to status, as received.
func (c CanonicalVerification) RawEventMeaning() string {
	if action := strings.TrimSpace(c.Action); action != "" {
		return action
	}
	return strings.TrimSpace(c.Status)
}

// UserVerification is the verification slice of the host user record.
type UserVerification struct {
	UserID             string
	SessionID          string
	Status             VerificationStatus
	IdentityVerified   bool
	IdentityVerifiedAt *time.Time
	Person             PersonRecord
	Document           DocumentRecord
	DecisionScore      *float64
	Decision           *DecisionRecord
	Insights           []Insight
	SourceFeature      string
	DeclineReason      string
	CreatedAt          *time.Time
	SubmittedAt        *time.Time
	ApprovedAt         *time.Time
	DeclinedAt         *time.Time
	WebhookData        map[string]any
	LastEventKey       string
	UpdatedAt          time.Time
}

func (u UserVerification) Session() VerificationSession {
	return VerificationSession{
		SessionID:     u.SessionID,
		UserID:        u.UserID,
		Status:        u.Status,
		CreatedAt:     u.CreatedAt,
		SubmittedAt:   u.SubmittedAt,
		ApprovedAt:    u.ApprovedAt,
		DeclinedAt:    u.DeclinedAt,
		SourceFeature: u.SourceFeature,
		DocumentType:  u.Document.Type,
		Country:       firstNonEmpty(u.Document.Country, u.Person.Country, u.Person.Nationality),
	}
}

type VerificationSession struct {
	SessionID     string
	UserID        string
	Status        VerificationStatus
	CreatedAt     *time.Time
	SubmittedAt   *time.Time
	ApprovedAt    *time.Time
	DeclinedAt    *time.Time
	SourceFeature string
	DocumentType  string
	Country       string
}

// StartedAt is the reference time used for stuck-session detection.
func (s VerificationSession) StartedAt() *time.Time {
	if s.SubmittedAt != nil {
		return s.SubmittedAt
	}
	return s.CreatedAt
}

// TransitionPatch is the set of user-row fields a transition writes.
// Nil pointers and empty values are left untouched.
type TransitionPatch struct {
	UserID             string
	SessionID          string
	EventKey           string
	Status             VerificationStatus
	IdentityVerified   *bool
	IdentityVerifiedAt *time.Time
	SubmittedAt        *time.Time
	ApprovedAt         *time.Time
	DeclinedAt         *time.Time
	DeclineReason      string
	SourceFeature      string
	Person             *PersonRecord
	Document           *DocumentRecord
	DecisionScore      *float64
	Insights           []Insight
	WebhookData        map[string]any
}

// ReconciledData is what a successful provider pull writes back.
type ReconciledData struct {
	UserID    string
	SessionID string
	Person    *PersonRecord
	Decision  *DecisionRecord
}

type SessionPerson struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email,omitempty"`
}

type SessionDescriptor struct {
	SessionID    string `json:"sessionId"`
	URL          string `json:"url"`
	SessionToken string `json:"sessionToken,omitempty"`
	Status       string `json:"status"`
	Host         string `json:"host,omitempty"`
	VendorData   string `json:"vendorData,omitempty"`
}

type ComprehensiveData struct {
	SessionID string
	Person    *PersonRecord
	Decision  *DecisionRecord
	// Errors holds per-branch failures; a populated branch is still usable.
	PersonError   error
	DecisionError error
}

func (d ComprehensiveData) HasData() bool {
	return d.Person != nil || d.Decision != nil
}

type SyncResult struct {
	Success bool
	Data    *ComprehensiveData
	Error   error
}

type VerificationStatusView struct {
	UserID             string
	SessionID          string
	Status             VerificationStatus
	IdentityVerified   bool
	IdentityVerifiedAt *time.Time
	DecisionScore      *float64
	Person             PersonRecord
	Document           DocumentRecord
	NeedsNewSession    bool
	Synced             bool
	FromCache          bool
}

type WebhookEvent struct {
	ID              string
	UserID          string
	SessionID       string
	EventType       WebhookEventType
	WebhookType     WebhookType
	Status          WebhookEventStatus
	IdempotencyKey  string
	ProviderEventID string
	Payload         map[string]any
	Error           string
	RetryCount      int
	CreatedAt       time.Time
	ProcessedAt     *time.Time
}

type WebhookMetrics struct {
	WindowHours           int
	Total                 int
	Pending               int
	Success               int
	Error                 int
	SuccessRate           float64
	AverageProcessingTime time.Duration
	ByWebhookType         map[WebhookType]int
}

type ActivityEntry struct {
	ID        string
	UserID    string
	SessionID string
	Action    string
	Status    string
	Metadata  map[string]any
	CreatedAt time.Time
}

const (
	ActivityStatusOK       = "ok"
	ActivityStatusWarning  = "warning"
	ActivityStatusConflict = "conflict"
	ActivityStatusStale    = "stale"
)

type ActivityFilter struct {
	UserID string
	Action string
	Status string
	Since  *time.Time
	Limit  int
}

type VerificationAlert struct {
	ID         string
	Type       AlertType
	Severity   AlertSeverity
	Message    string
	Details    map[string]any
	Timestamp  time.Time
	Resolved   bool
	ResolvedAt *time.Time
}

type SessionFilter struct {
	Statuses []VerificationStatus
	Since    *time.Time
}

type Rollup struct {
	Total    int
	Approved int
	Declined int
	Pending  int
}

type VerificationMetrics struct {
	TotalSessions         int
	ActiveSessions        int
	CompletedSessions     int
	FailedSessions        int
	SuccessRate           float64
	AverageProcessingTime time.Duration
	Last24h               Rollup
	ByDocumentType        map[string]int
	ByCountry             map[string]int
	GeneratedAt           time.Time
}

type HealthStatus string

const (
	HealthStatusHealthy HealthStatus = "healthy"
	HealthStatusWarning HealthStatus = "warning"
	HealthStatusError   HealthStatus = "error"
)

type SessionHealth struct {
	UserID               string
	SessionID            string
	SessionStatus        VerificationStatus
	HoursSinceSubmission float64
	Status               HealthStatus
	Issues               []string
	ProviderDecision     string
	APISyncFailed        bool
}

type MonitoringReport struct {
	Metrics  VerificationMetrics
	Health   []SessionHealth
	Alerts   []VerificationAlert
	Created  int
	RanAt    time.Time
	Duration time.Duration
}

type DashboardData struct {
	Metrics        VerificationMetrics
	WebhookMetrics WebhookMetrics
	ActiveAlerts   []VerificationAlert
	Health         []SessionHealth
	FailedWebhooks int
	GeneratedAt    time.Time
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

const (
	ReconciliationProvider    = "provider"
	ReconciliationWebhookOnly = "webhook_only"
)

// TransitionOutcome describes what a dispatched webhook did to the user row.
type TransitionOutcome struct {
	UserID         string
	SessionID      string
	WebhookType    WebhookType
	Verdict        TransitionVerdict
	Duplicate      bool
	Reconciliation string
	Message        string
	Data           map[string]any
}

// ProcessResult is returned to the HTTP entrypoint for every delivery.
type ProcessResult struct {
	Success   bool
	Message   string
	EventID   string
	UserID    string
	SessionID string
	Action    WebhookType
	Data      map[string]any
	Error     error
	Retryable bool
	Deduped   bool
	// Annotations carry non-fatal notes such as webhook_only reconciliation.
	Annotations []string
}

func (r ProcessResult) HasAnnotation(annotation string) bool {
	for _, existing := range r.Annotations {
		if existing == annotation {
			return true
		}
	}
	return false
}
