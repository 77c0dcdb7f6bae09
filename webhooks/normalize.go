package webhooks

import (
	"strings"
	"time"

	"github.com/goliatone/go-verification/core"
)

var (
	ErrMissingSessionID    = core.NewValidationError("sessionId", "webhooks: session id is required")
	ErrMissingUserID       = core.NewValidationError("vendorData", "webhooks: user identifier is required (vendorData or verification.id)")
	ErrMissingEventMeaning = core.NewValidationError("action", "webhooks: action or status is required")
)

// Normalize maps either wire shape onto one canonical record and
// classifies it. Validation runs before classification.
func Normalize(envelope Envelope) (core.CanonicalVerification, error) {
	var (
		canonical core.CanonicalVerification
		err       error
	)
	switch {
	case envelope.Traditional != nil:
		canonical, err = normalizeTraditional(envelope.Traditional)
	case envelope.Flat != nil:
		canonical, err = normalizeFlat(envelope.Flat)
	default:
		return core.CanonicalVerification{}, core.NewValidationError("payload", "webhooks: payload shape could not be determined")
	}
	if err != nil {
		return core.CanonicalVerification{}, err
	}
	canonical.Shape = envelope.Shape
	canonical.Raw = envelope.Raw
	canonical.WebhookType = Classify(canonical.Action, canonical.Status)
	return canonical, nil
}

// ParseAndNormalize decodes body and normalizes it in one step.
func ParseAndNormalize(body []byte) (core.CanonicalVerification, error) {
	envelope, err := Parse(body)
	if err != nil {
		return core.CanonicalVerification{}, err
	}
	return Normalize(envelope)
}

func normalizeFlat(p *FlatPayload) (core.CanonicalVerification, error) {
	sessionID := firstNonEmpty(p.ID, p.SessionID)
	if sessionID == "" {
		return core.CanonicalVerification{}, ErrMissingSessionID
	}
	userID := strings.TrimSpace(p.VendorData)
	if userID == "" {
		return core.CanonicalVerification{}, ErrMissingUserID
	}
	action := strings.TrimSpace(p.Action)
	status := strings.TrimSpace(p.Status)
	if action == "" && status == "" {
		return core.CanonicalVerification{}, ErrMissingEventMeaning
	}

	canonical := core.CanonicalVerification{
		SessionID:  sessionID,
		UserID:     userID,
		AttemptID:  strings.TrimSpace(p.AttemptID),
		Feature:    strings.TrimSpace(p.Feature),
		Action:     action,
		Status:     status,
		Code:       p.Code,
		Reason:     strings.TrimSpace(p.Reason),
		ReasonCode: p.ReasonCode,
		Person: core.PersonRecord{
			GivenName:   strings.TrimSpace(p.PersonGivenName),
			LastName:    strings.TrimSpace(p.PersonLastName),
			IDNumber:    strings.TrimSpace(p.PersonIDNumber),
			DateOfBirth: strings.TrimSpace(p.PersonDateOfBirth),
			Nationality: strings.TrimSpace(p.PersonNationality),
			Gender:      strings.TrimSpace(p.PersonGender),
			Country:     strings.TrimSpace(p.PersonCountry),
			Address: core.Address{
				Street:      strings.TrimSpace(p.PersonAddressStreet),
				HouseNumber: strings.TrimSpace(p.PersonAddressHouseNumber),
				City:        strings.TrimSpace(p.PersonAddressCity),
				PostalCode:  strings.TrimSpace(p.PersonAddressPostalCode),
			},
			PepSanctionMatches: p.PersonPepSanctionMatches,
		},
		Document: core.DocumentRecord{
			Type:       strings.TrimSpace(p.DocumentType),
			Number:     strings.TrimSpace(p.DocumentNumber),
			Country:    strings.TrimSpace(p.DocumentCountry),
			ValidFrom:  strings.TrimSpace(p.DocumentValidFrom),
			ValidUntil: strings.TrimSpace(p.DocumentValidUntil),
			IssuedBy:   strings.TrimSpace(p.DocumentIssuedBy),
		},
		DecisionScore:  p.DecisionScore,
		Insights:       toInsights(p.Insights),
		SubmittedAt:    parseTimestamp(p.SubmittedAt),
		DecisionTime:   parseTimestamp(p.DecisionTime),
		AcceptanceTime: parseTimestamp(p.AcceptanceTime),
	}
	if strings.TrimSpace(p.FaceMatchStatus) != "" || p.FaceMatchSimilarity != nil {
		canonical.AdditionalVerification.FaceMatch = &core.FaceMatch{
			Status:     strings.TrimSpace(p.FaceMatchStatus),
			Similarity: p.FaceMatchSimilarity,
		}
	}
	return canonical, nil
}

func normalizeTraditional(p *TraditionalPayload) (core.CanonicalVerification, error) {
	v := p.Verification
	if v == nil {
		v = &wireVerification{}
	}
	sessionID := firstNonEmpty(v.ID, p.ID, p.SessionID)
	if sessionID == "" {
		return core.CanonicalVerification{}, ErrMissingSessionID
	}
	userID := firstNonEmpty(v.VendorData, p.VendorData, v.ID)
	if userID == "" {
		return core.CanonicalVerification{}, ErrMissingUserID
	}
	action := strings.TrimSpace(p.Action)
	status := firstNonEmpty(v.Status, p.Status)
	if action == "" && status == "" {
		return core.CanonicalVerification{}, ErrMissingEventMeaning
	}

	canonical := core.CanonicalVerification{
		SessionID:      sessionID,
		UserID:         userID,
		AttemptID:      strings.TrimSpace(v.AttemptID),
		Action:         action,
		Status:         status,
		Code:           v.Code,
		Reason:         strings.TrimSpace(v.Reason),
		ReasonCode:     v.ReasonCode,
		DecisionScore:  v.DecisionScore,
		Insights:       toInsights(v.Insights),
		SubmittedAt:    parseTimestamp(v.SubmissionTime),
		DecisionTime:   parseTimestamp(v.DecisionTime),
		AcceptanceTime: parseTimestamp(v.AcceptanceTime),
	}
	if canonical.DecisionScore == nil && v.RiskScore != nil {
		canonical.DecisionScore = v.RiskScore.Score
	}
	if person := v.Person; person != nil {
		canonical.Person = core.PersonRecord{
			GivenName:          strings.TrimSpace(person.FirstName),
			LastName:           strings.TrimSpace(person.LastName),
			IDNumber:           strings.TrimSpace(person.IDNumber),
			DateOfBirth:        strings.TrimSpace(person.DateOfBirth),
			Nationality:        strings.TrimSpace(person.Nationality),
			Gender:             strings.TrimSpace(person.Gender),
			Country:            strings.TrimSpace(person.Country),
			Address:            firstParsedAddress(person.Addresses),
			PepSanctionMatches: person.PepSanctionMatches,
		}
	}
	if document := v.Document; document != nil {
		canonical.Document = core.DocumentRecord{
			Type:       strings.TrimSpace(document.Type),
			Number:     strings.TrimSpace(document.Number),
			Country:    strings.TrimSpace(document.Country),
			ValidFrom:  strings.TrimSpace(document.ValidFrom),
			ValidUntil: strings.TrimSpace(document.ValidUntil),
			IssuedBy:   strings.TrimSpace(document.IssuedBy),
		}
	}
	additional := v.AdditionalVerification
	if additional == nil {
		additional = v.AdditionalVerifiedData
	}
	if additional != nil && additional.FaceMatch != nil {
		canonical.AdditionalVerification.FaceMatch = &core.FaceMatch{
			Status:     strings.TrimSpace(additional.FaceMatch.Status),
			Similarity: additional.FaceMatch.Similarity,
		}
	}
	return canonical, nil
}

func firstParsedAddress(addresses []wireAddress) core.Address {
	for _, address := range addresses {
		if address.ParsedAddress == nil {
			continue
		}
		parsed := core.Address{
			Street:      strings.TrimSpace(address.ParsedAddress.Street),
			HouseNumber: strings.TrimSpace(address.ParsedAddress.HouseNumber),
			City:        strings.TrimSpace(address.ParsedAddress.City),
			PostalCode:  strings.TrimSpace(address.ParsedAddress.Postcode),
		}
		if !parsed.IsZero() {
			return parsed
		}
	}
	return core.Address{}
}

func toInsights(items []wireInsight) []core.Insight {
	if len(items) == 0 {
		return nil
	}
	out := make([]core.Insight, 0, len(items))
	for _, item := range items {
		label := strings.TrimSpace(item.Label)
		if label == "" {
			continue
		}
		out = append(out, core.Insight{
			Label:    label,
			Result:   strings.TrimSpace(item.Result),
			Category: strings.TrimSpace(item.Category),
		})
	}
	return out
}

func parseTimestamp(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
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
