package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

const (
	SignatureHeader       = "X-HMAC-SIGNATURE"
	LegacySignatureHeader = "X-SIGNATURE"
)

// SignatureValidator authenticates webhook bodies with HMAC-SHA256.
type SignatureValidator struct {
	Secret string
}

func NewSignatureValidator(secret string) SignatureValidator {
	return SignatureValidator{Secret: secret}
}

// Validate fails closed: a missing secret, a missing or malformed
// signature and a digest mismatch all return false.
func (v SignatureValidator) Validate(body []byte, signatureHex string) bool {
	secret := strings.TrimSpace(v.Secret)
	if secret == "" {
		return false
	}
	signature := strings.TrimSpace(signatureHex)
	if signature == "" {
		return false
	}
	decoded, err := hex.DecodeString(strings.ToLower(signature))
	if err != nil {
		return false
	}
	expected := computeHMAC(secret, body)
	if len(decoded) != len(expected) {
		return false
	}
	return subtle.ConstantTimeCompare(decoded, expected) == 1
}

// ValidateHeaders reads the signature from the provider headers.
func (v SignatureValidator) ValidateHeaders(body []byte, headers map[string]string) bool {
	return v.Validate(body, SignatureFromHeaders(headers))
}

// Sign returns the lowercase hex HMAC-SHA256 of body.
func Sign(secret string, body []byte) string {
	return hex.EncodeToString(computeHMAC(strings.TrimSpace(secret), body))
}

func SignatureFromHeaders(headers map[string]string) string {
	if signature := headerValue(headers, SignatureHeader); signature != "" {
		return signature
	}
	return headerValue(headers, LegacySignatureHeader)
}

func computeHMAC(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return mac.Sum(nil)
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
