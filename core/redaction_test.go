package core

import "testing"

func TestRedactSensitiveMapKeepsCorrelationIDs(t *testing.T) {
	redacted := RedactSensitiveMap(map[string]any{
		"session_id":      "s1",
		"event_key":       "provider:s1:a1:approved",
		"idempotency_key": "provider:s1:a1:approved",
		"sessionToken":    "tok",
		"authorization":   "Bearer secret",
		"nested":          map[string]any{"api_secret": "x", "user_id": "u1"},
		"attempts":        []any{map[string]any{"hmac_signature": "abc"}},
	})

	if redacted["session_id"] != "s1" || redacted["event_key"] != "provider:s1:a1:approved" {
		t.Fatalf("expected correlation ids to remain visible, got %#v", redacted)
	}
	if redacted["idempotency_key"] != "provider:s1:a1:approved" {
		t.Fatalf("expected idempotency key to remain visible")
	}
	if redacted["sessionToken"] != RedactedValue || redacted["authorization"] != RedactedValue {
		t.Fatalf("expected token and authorization to be redacted, got %#v", redacted)
	}
	nested := redacted["nested"].(map[string]any)
	if nested["api_secret"] != RedactedValue || nested["user_id"] != "u1" {
		t.Fatalf("unexpected nested redaction %#v", nested)
	}
	attempt := redacted["attempts"].([]any)[0].(map[string]any)
	if attempt["hmac_signature"] != RedactedValue {
		t.Fatalf("expected signature in list to be redacted")
	}
}

func TestRedactSensitiveMapEmpty(t *testing.T) {
	if got := RedactSensitiveMap(nil); got == nil || len(got) != 0 {
		t.Fatalf("expected empty map, got %#v", got)
	}
}

func TestRedactSensitiveMapMasksDocumentNumbers(t *testing.T) {
	redacted := RedactSensitiveMap(map[string]any{
		"idNumber":         "AB1234567",
		"document_number":  "X12",
		"nationalId":       12345678,
		"X-HMAC-SIGNATURE": "abc",
		"decision":         "approved",
	})

	if redacted["idNumber"] != "*****4567" {
		t.Fatalf("expected id number to keep last four, got %v", redacted["idNumber"])
	}
	if redacted["document_number"] != RedactedValue {
		t.Fatalf("expected short document number to be fully redacted, got %v", redacted["document_number"])
	}
	if redacted["nationalId"] != RedactedValue {
		t.Fatalf("expected non-string id to be redacted, got %v", redacted["nationalId"])
	}
	if redacted["X-HMAC-SIGNATURE"] != RedactedValue {
		t.Fatalf("expected header-style signature key to be redacted")
	}
	if redacted["decision"] != "approved" {
		t.Fatalf("expected plain fields untouched")
	}
}
