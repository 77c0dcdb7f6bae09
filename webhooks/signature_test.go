package webhooks

import (
	"strings"
	"testing"
)

func TestSignatureValidator_AcceptsMatchingSignature(t *testing.T) {
	validator := NewSignatureValidator("shared-secret")
	body := []byte(`{"id":"s1","vendorData":"u1","action":"submitted"}`)

	if !validator.Validate(body, Sign("shared-secret", body)) {
		t.Fatalf("expected signature to validate")
	}
	if !validator.Validate(body, strings.ToUpper(Sign("shared-secret", body))) {
		t.Fatalf("expected uppercase hex signature to validate")
	}
}

func TestSignatureValidator_RejectsAnyFlippedByte(t *testing.T) {
	validator := NewSignatureValidator("shared-secret")
	body := []byte(`{"id":"s1","vendorData":"u1","action":"approved"}`)
	signature := Sign("shared-secret", body)

	for i := range body {
		tampered := append([]byte(nil), body...)
		tampered[i] ^= 0x01
		if validator.Validate(tampered, signature) {
			t.Fatalf("expected tampered body at byte %d to fail", i)
		}
	}

	raw := []byte(signature)
	for i := range raw {
		tampered := append([]byte(nil), raw...)
		if tampered[i] == '0' {
			tampered[i] = '1'
		} else {
			tampered[i] = '0'
		}
		if validator.Validate(body, string(tampered)) {
			t.Fatalf("expected tampered signature at char %d to fail", i)
		}
	}
}

func TestSignatureValidator_FailsClosed(t *testing.T) {
	body := []byte(`{"id":"s1"}`)
	signature := Sign("shared-secret", body)

	cases := map[string]struct {
		validator SignatureValidator
		signature string
	}{
		"missing secret":    {validator: NewSignatureValidator(""), signature: signature},
		"missing signature": {validator: NewSignatureValidator("shared-secret"), signature: ""},
		"not hex":           {validator: NewSignatureValidator("shared-secret"), signature: "zz-not-hex"},
		"truncated":         {validator: NewSignatureValidator("shared-secret"), signature: signature[:len(signature)-2]},
		"wrong secret":      {validator: NewSignatureValidator("other-secret"), signature: signature},
	}
	for name, tc := range cases {
		if tc.validator.Validate(body, tc.signature) {
			t.Fatalf("%s: expected validation to fail", name)
		}
	}
}

func TestSignatureValidator_ReadsProviderHeader(t *testing.T) {
	validator := NewSignatureValidator("shared-secret")
	body := []byte(`{"id":"s1"}`)

	headers := map[string]string{"x-hmac-signature": Sign("shared-secret", body)}
	if !validator.ValidateHeaders(body, headers) {
		t.Fatalf("expected header lookup to be case-insensitive")
	}
	if validator.ValidateHeaders(body, map[string]string{}) {
		t.Fatalf("expected missing header to fail")
	}
}
