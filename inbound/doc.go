// Package inbound applies normalized verification webhooks to the user
// record.
//
// The dispatcher loads the current verification state, asks the state
// machine for a verdict and routes proceeding events to the transition
// handler registered for the webhook type. Stale and conflicting events
// are recorded in the activity log instead of being written.
package inbound
