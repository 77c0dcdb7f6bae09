package webhooks

import (
	"encoding/json"
	"strings"

	"github.com/goliatone/go-verification/core"
)

// Envelope is a decoded webhook body. Exactly one of Flat or Traditional is
// set, selected by Shape.
type Envelope struct {
	Shape       core.PayloadShape
	Flat        *FlatPayload
	Traditional *TraditionalPayload
	Raw         map[string]any
}

// FlatPayload carries person and document fields at the top level. SelfID
// deliveries and bare event notifications share it.
type FlatPayload struct {
	ID         string `json:"id"`
	SessionID  string `json:"sessionId"`
	AttemptID  string `json:"attemptId"`
	Feature    string `json:"feature"`
	Code       int    `json:"code"`
	Action     string `json:"action"`
	Status     string `json:"status"`
	VendorData string `json:"vendorData"`
	Reason     string `json:"reason"`
	ReasonCode *int   `json:"reasonCode"`

	PersonGivenName          string           `json:"personGivenName"`
	PersonLastName           string           `json:"personLastName"`
	PersonIDNumber           string           `json:"personIdNumber"`
	PersonDateOfBirth        string           `json:"personDateOfBirth"`
	PersonNationality        string           `json:"personNationality"`
	PersonGender             string           `json:"personGender"`
	PersonCountry            string           `json:"personCountry"`
	PersonAddressStreet      string           `json:"personAddressStreet"`
	PersonAddressHouseNumber string           `json:"personAddressHouseNumber"`
	PersonAddressCity        string           `json:"personAddressCity"`
	PersonAddressPostalCode  string           `json:"personAddressPostalCode"`
	PersonPepSanctionMatches []map[string]any `json:"personPepSanctionMatches"`

	DocumentType       string `json:"documentType"`
	DocumentNumber     string `json:"documentNumber"`
	DocumentCountry    string `json:"documentCountry"`
	DocumentValidFrom  string `json:"documentValidFrom"`
	DocumentValidUntil string `json:"documentValidUntil"`
	DocumentIssuedBy   string `json:"documentIssuedBy"`

	FaceMatchStatus     string   `json:"faceMatchStatus"`
	FaceMatchSimilarity *float64 `json:"faceMatchSimilarity"`

	DecisionScore  *float64      `json:"decisionScore"`
	Insights       []wireInsight `json:"insights"`
	SubmittedAt    string        `json:"submittedAt"`
	DecisionTime   string        `json:"decisionTime"`
	AcceptanceTime string        `json:"acceptanceTime"`
}

// TraditionalPayload nests the result under a verification object.
type TraditionalPayload struct {
	ID           string            `json:"id"`
	SessionID    string            `json:"sessionId"`
	Action       string            `json:"action"`
	Status       string            `json:"status"`
	VendorData   string            `json:"vendorData"`
	Verification *wireVerification `json:"verification"`
}

type wireVerification struct {
	ID                     string          `json:"id"`
	AttemptID              string          `json:"attemptId"`
	VendorData             string          `json:"vendorData"`
	Status                 string          `json:"status"`
	Code                   int             `json:"code"`
	Reason                 string          `json:"reason"`
	ReasonCode             *int            `json:"reasonCode"`
	DecisionScore          *float64        `json:"decisionScore"`
	SubmissionTime         string          `json:"submissionTime"`
	DecisionTime           string          `json:"decisionTime"`
	AcceptanceTime         string          `json:"acceptanceTime"`
	Person                 *wirePerson     `json:"person"`
	Document               *wireDocument   `json:"document"`
	AdditionalVerification *wireAdditional `json:"additionalVerification"`
	AdditionalVerifiedData *wireAdditional `json:"additionalVerifiedData"`
	Insights               []wireInsight   `json:"insights"`
	RiskScore              *wireRiskScore  `json:"riskScore"`
}

type wirePerson struct {
	FirstName          string           `json:"firstName"`
	LastName           string           `json:"lastName"`
	IDNumber           string           `json:"idNumber"`
	DateOfBirth        string           `json:"dateOfBirth"`
	Nationality        string           `json:"nationality"`
	Gender             string           `json:"gender"`
	Country            string           `json:"country"`
	Addresses          []wireAddress    `json:"addresses"`
	PepSanctionMatches []map[string]any `json:"pepSanctionMatches"`
}

type wireAddress struct {
	FullAddress   string             `json:"fullAddress"`
	ParsedAddress *wireParsedAddress `json:"parsedAddress"`
}

type wireParsedAddress struct {
	Street      string `json:"street"`
	HouseNumber string `json:"houseNumber"`
	City        string `json:"city"`
	Postcode    string `json:"postcode"`
}

type wireDocument struct {
	Type       string `json:"type"`
	Number     string `json:"number"`
	Country    string `json:"country"`
	ValidFrom  string `json:"validFrom"`
	ValidUntil string `json:"validUntil"`
	IssuedBy   string `json:"issuedBy"`
}

type wireAdditional struct {
	FaceMatch *wireFaceMatch `json:"faceMatch"`
}

type wireFaceMatch struct {
	Status     string   `json:"status"`
	Similarity *float64 `json:"similarity"`
}

type wireInsight struct {
	Label    string `json:"label"`
	Result   string `json:"result"`
	Category string `json:"category"`
}

type wireRiskScore struct {
	Score *float64 `json:"score"`
}

// Parse decodes body and derives the shape discriminator once.
func Parse(body []byte) (Envelope, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return Envelope{}, core.NewValidationError("payload", "webhooks: payload is empty")
	}
	raw := map[string]any{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return Envelope{}, core.NewValidationError("payload", "webhooks: payload is not a JSON object")
	}

	envelope := Envelope{Shape: detectShape(raw), Raw: raw}
	switch envelope.Shape {
	case core.PayloadShapeTraditional:
		payload := &TraditionalPayload{}
		if err := json.Unmarshal(body, payload); err != nil {
			return Envelope{}, core.NewValidationError("verification", "webhooks: verification object is malformed")
		}
		envelope.Traditional = payload
	default:
		payload := &FlatPayload{}
		if err := json.Unmarshal(body, payload); err != nil {
			return Envelope{}, core.NewValidationError("payload", "webhooks: flat payload is malformed")
		}
		envelope.Flat = payload
	}
	return envelope, nil
}

func detectShape(raw map[string]any) core.PayloadShape {
	if feature, ok := raw["feature"].(string); ok && strings.EqualFold(strings.TrimSpace(feature), "selfid") {
		return core.PayloadShapeSelfID
	}
	if _, ok := raw["verification"].(map[string]any); ok {
		return core.PayloadShapeTraditional
	}
	return core.PayloadShapeEvent
}
