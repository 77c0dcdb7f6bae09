package sqlstore

import "github.com/goliatone/go-verification/core"

var (
	_ core.UserVerificationStore = (*UserVerificationStore)(nil)
	_ core.UserVerificationStore = (*CachedUserVerificationStore)(nil)
	_ core.WebhookEventStore     = (*WebhookEventStore)(nil)
	_ core.ActivitySink          = (*ActivityStore)(nil)
	_ core.ActivityReader        = (*ActivityStore)(nil)
	_ core.AlertStore            = (*AlertStore)(nil)
)
