// Package webhooks contains signature validation, payload normalization and
// the processing pipeline for identity-verification webhooks.
//
// Each delivery is recorded in the webhook audit log before dispatch:
// pending -> success|error. Error rows keep a retry budget so they can be
// re-driven from their payload snapshot.
package webhooks
