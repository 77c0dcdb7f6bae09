package core

import (
	"strings"
	"unicode"
)

const RedactedValue = "[REDACTED]"

// Keys containing one of these fragments carry credentials and are replaced
// outright. Matching runs on the normalized key.
var credentialFragments = []string{
	"password",
	"secret",
	"token",
	"authorization",
	"apikey",
	"accesskey",
	"credential",
	"signature",
	"hmac",
}

// Document identifiers keep their last four characters so support staff can
// match a row against what the user reads off the document.
var documentKeys = map[string]bool{
	"idnumber":       true,
	"documentnumber": true,
	"personalnumber": true,
	"nationalid":     true,
	"ssn":            true,
}

// Correlation keys stay readable even when they contain a sensitive fragment.
var correlationKeys = map[string]bool{
	"userid":          true,
	"sessionid":       true,
	"attemptid":       true,
	"eventkey":        true,
	"idempotencykey":  true,
	"providereventid": true,
	"traceid":         true,
	"requestid":       true,
}

// RedactSensitiveMap returns a copy of metadata with credentials masked and
// document numbers truncated. Nested maps and lists are walked.
func RedactSensitiveMap(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return map[string]any{}
	}
	return redactMap(metadata)
}

func redactMap(source map[string]any) map[string]any {
	target := make(map[string]any, len(source))
	for key, value := range source {
		normalized := normalizeKey(key)
		switch {
		case correlationKeys[normalized]:
			target[key] = value
		case isCredentialKey(normalized):
			target[key] = RedactedValue
		case documentKeys[normalized]:
			target[key] = maskDocumentNumber(value)
		default:
			target[key] = redactValue(value)
		}
	}
	return target
}

func redactValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return redactMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i := range typed {
			out[i] = redactValue(typed[i])
		}
		return out
	default:
		return value
	}
}

func isCredentialKey(normalized string) bool {
	if normalized == "" {
		return false
	}
	for _, fragment := range credentialFragments {
		if strings.Contains(normalized, fragment) {
			return true
		}
	}
	return false
}

func maskDocumentNumber(value any) any {
	text, ok := value.(string)
	if !ok {
		return RedactedValue
	}
	text = strings.TrimSpace(text)
	if len(text) <= 4 {
		return RedactedValue
	}
	return strings.Repeat("*", len(text)-4) + text[len(text)-4:]
}

// normalizeKey folds "X-HMAC-SIGNATURE", "idNumber" and "id_number" onto
// the same lowercase form.
func normalizeKey(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for _, r := range strings.TrimSpace(key) {
		if r == '_' || r == '-' || r == '.' || unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
