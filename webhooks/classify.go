package webhooks

import (
	"strings"

	"github.com/goliatone/go-verification/core"
)

// Classify derives the webhook type from action, falling back to status.
// It never returns an empty value.
func Classify(action string, status string) core.WebhookType {
	if webhookType, ok := classifyValue(action); ok {
		return webhookType
	}
	if webhookType, ok := classifyValue(status); ok {
		return webhookType
	}
	return core.WebhookTypeUnknown
}

func classifyValue(value string) (core.WebhookType, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "submitted":
		return core.WebhookTypeSubmitted, true
	case "approved":
		return core.WebhookTypeApproved, true
	case "declined":
		return core.WebhookTypeDeclined, true
	default:
		return "", false
	}
}
