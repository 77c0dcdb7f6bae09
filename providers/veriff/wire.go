package veriff

import (
	"strings"
	"time"

	"github.com/goliatone/go-verification/core"
)

type createSessionRequest struct {
	Verification createSessionVerification `json:"verification"`
}

type createSessionVerification struct {
	Callback   string              `json:"callback,omitempty"`
	Person     *core.SessionPerson `json:"person,omitempty"`
	VendorData string              `json:"vendorData"`
	Timestamp  string              `json:"timestamp"`
}

type createSessionResponse struct {
	Status       string `json:"status"`
	Verification struct {
		ID           string `json:"id"`
		URL          string `json:"url"`
		VendorData   string `json:"vendorData"`
		Host         string `json:"host"`
		Status       string `json:"status"`
		SessionToken string `json:"sessionToken"`
	} `json:"verification"`
}

type personResponse struct {
	Status string      `json:"status"`
	Person *wirePerson `json:"person"`
}

type wirePerson struct {
	FirstName          string           `json:"firstName"`
	LastName           string           `json:"lastName"`
	IDNumber           string           `json:"idNumber"`
	DateOfBirth        string           `json:"dateOfBirth"`
	Nationality        string           `json:"nationality"`
	Gender             string           `json:"gender"`
	Citizenship        string           `json:"citizenship"`
	PepSanctionMatches []map[string]any `json:"pepSanctionMatches"`
}

func (p *wirePerson) record() *core.PersonRecord {
	if p == nil {
		return nil
	}
	record := core.PersonRecord{
		GivenName:          strings.TrimSpace(p.FirstName),
		LastName:           strings.TrimSpace(p.LastName),
		IDNumber:           strings.TrimSpace(p.IDNumber),
		DateOfBirth:        strings.TrimSpace(p.DateOfBirth),
		Nationality:        strings.TrimSpace(p.Nationality),
		Gender:             strings.TrimSpace(p.Gender),
		Country:            strings.TrimSpace(p.Citizenship),
		PepSanctionMatches: p.PepSanctionMatches,
	}
	if record.IsZero() && len(record.PepSanctionMatches) == 0 {
		return nil
	}
	return &record
}

// fullAutoResponse is the confidence-tagged decision payload. Some API
// versions nest it under data.
type fullAutoResponse struct {
	Status       string            `json:"status"`
	Verification *fullAutoDecision `json:"verification"`
	Data         *struct {
		Verification *fullAutoDecision `json:"verification"`
	} `json:"data"`
}

func (r fullAutoResponse) decision() *fullAutoDecision {
	if r.Verification != nil {
		return r.Verification
	}
	if r.Data != nil {
		return r.Data.Verification
	}
	return nil
}

type fullAutoDecision struct {
	ID             string                `json:"id"`
	Decision       string                `json:"decision"`
	Status         string                `json:"status"`
	Code           int                   `json:"code"`
	DecisionScore  *float64              `json:"decisionScore"`
	Reason         string                `json:"reason"`
	ReasonCode     *int                  `json:"reasonCode"`
	DecisionTime   string                `json:"decisionTime"`
	AcceptanceTime string                `json:"acceptanceTime"`
	Person         core.DecisionPerson   `json:"person"`
	Document       core.DecisionDocument `json:"document"`
	Insights       []core.Insight        `json:"insights"`
}

func (d *fullAutoDecision) record(sessionID string) *core.DecisionRecord {
	if d == nil {
		return nil
	}
	decision := strings.TrimSpace(d.Decision)
	if decision == "" {
		decision = strings.TrimSpace(d.Status)
	}
	if decision == "" && d.DecisionScore == nil {
		return nil
	}
	return &core.DecisionRecord{
		SessionID:      firstNonEmpty(d.ID, sessionID),
		Decision:       decision,
		Code:           d.Code,
		DecisionScore:  d.DecisionScore,
		Reason:         strings.TrimSpace(d.Reason),
		ReasonCode:     d.ReasonCode,
		DecisionTime:   parseTime(d.DecisionTime),
		AcceptanceTime: parseTime(d.AcceptanceTime),
		Person:         d.Person,
		Document:       d.Document,
		Insights:       d.Insights,
	}
}

type decisionResponse struct {
	Status       string         `json:"status"`
	Verification *plainDecision `json:"verification"`
}

type plainDecision struct {
	ID             string   `json:"id"`
	Status         string   `json:"status"`
	Code           int      `json:"code"`
	Reason         string   `json:"reason"`
	ReasonCode     *int     `json:"reasonCode"`
	DecisionScore  *float64 `json:"decisionScore"`
	DecisionTime   string   `json:"decisionTime"`
	AcceptanceTime string   `json:"acceptanceTime"`
	Person         struct {
		FirstName   string `json:"firstName"`
		LastName    string `json:"lastName"`
		IDNumber    string `json:"idNumber"`
		DateOfBirth string `json:"dateOfBirth"`
		Nationality string `json:"nationality"`
		Gender      string `json:"gender"`
	} `json:"person"`
	Document struct {
		Type       string `json:"type"`
		Number     string `json:"number"`
		Country    string `json:"country"`
		ValidFrom  string `json:"validFrom"`
		ValidUntil string `json:"validUntil"`
		IssuedBy   string `json:"issuedBy"`
	} `json:"document"`
	RiskScore *struct {
		Score *float64 `json:"score"`
	} `json:"riskScore"`
	Insights []core.Insight `json:"insights"`
}

// record reshapes the plain decision into the confidence-tagged form. Every
// value is tagged "high" with no sources.
func (d *plainDecision) record(sessionID string) *core.DecisionRecord {
	if d == nil || strings.TrimSpace(d.Status) == "" {
		return nil
	}
	score := d.DecisionScore
	if score == nil && d.RiskScore != nil {
		score = d.RiskScore.Score
	}
	return &core.DecisionRecord{
		SessionID:      firstNonEmpty(d.ID, sessionID),
		Decision:       strings.TrimSpace(d.Status),
		Code:           d.Code,
		DecisionScore:  score,
		Reason:         strings.TrimSpace(d.Reason),
		ReasonCode:     d.ReasonCode,
		DecisionTime:   parseTime(d.DecisionTime),
		AcceptanceTime: parseTime(d.AcceptanceTime),
		Person: core.DecisionPerson{
			FirstName:   highConfidence(d.Person.FirstName),
			LastName:    highConfidence(d.Person.LastName),
			IDNumber:    highConfidence(d.Person.IDNumber),
			DateOfBirth: highConfidence(d.Person.DateOfBirth),
			Nationality: highConfidence(d.Person.Nationality),
			Gender:      highConfidence(d.Person.Gender),
		},
		Document: core.DecisionDocument{
			Type:       highConfidence(d.Document.Type),
			Number:     highConfidence(d.Document.Number),
			Country:    highConfidence(d.Document.Country),
			ValidFrom:  highConfidence(d.Document.ValidFrom),
			ValidUntil: highConfidence(d.Document.ValidUntil),
			IssuedBy:   highConfidence(d.Document.IssuedBy),
		},
		Insights: d.Insights,
	}
}

func highConfidence(value string) core.ConfidenceField {
	return core.ConfidenceField{
		Value:              strings.TrimSpace(value),
		ConfidenceCategory: "high",
		Sources:            []string{},
	}
}

func parseTime(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000Z"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			utc := parsed.UTC()
			return &utc
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
