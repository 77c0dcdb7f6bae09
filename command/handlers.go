package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-verification/core"
	"github.com/goliatone/go-verification/webhooks"
)

type WebhookService interface {
	ProcessDelivery(ctx context.Context, delivery webhooks.Delivery) core.ProcessResult
	Redrive(ctx context.Context, eventID string) core.ProcessResult
	RedriveFailed(ctx context.Context, limit int) ([]core.ProcessResult, error)
}

type SessionService interface {
	StartSession(ctx context.Context, userID string, person core.SessionPerson) (core.SessionDescriptor, error)
	SyncUserVerificationData(ctx context.Context, userID string, sessionID string) core.SyncResult
}

type MonitoringService interface {
	RunMonitoringCheck(ctx context.Context) (core.MonitoringReport, error)
	ResolveAlert(ctx context.Context, id string) (core.VerificationAlert, error)
}

// ProcessWebhookCommand stores the core.ProcessResult for the entrypoint and
// also returns its error so plain dispatchers see failures.
type ProcessWebhookCommand struct {
	service WebhookService
}

func NewProcessWebhookCommand(service WebhookService) *ProcessWebhookCommand {
	return &ProcessWebhookCommand{service: service}
}

func (c *ProcessWebhookCommand) Execute(ctx context.Context, msg ProcessWebhookMessage) error {
	if c == nil || c.service == nil {
		return core.NewDependencyError("command: webhook service is required")
	}
	result := c.service.ProcessDelivery(ctx, webhooks.Delivery{
		Body:      msg.Body,
		Signature: msg.Signature,
		Headers:   msg.Headers,
	})
	storeResult(ctx, result)
	return resultError(result)
}

type RedriveWebhookCommand struct {
	service WebhookService
}

func NewRedriveWebhookCommand(service WebhookService) *RedriveWebhookCommand {
	return &RedriveWebhookCommand{service: service}
}

func (c *RedriveWebhookCommand) Execute(ctx context.Context, msg RedriveWebhookMessage) error {
	if c == nil || c.service == nil {
		return core.NewDependencyError("command: webhook service is required")
	}
	result := c.service.Redrive(ctx, msg.EventID)
	storeResult(ctx, result)
	return resultError(result)
}

// RedriveFailedCommand stores every per-event result; individual failures
// do not fail the batch.
type RedriveFailedCommand struct {
	service WebhookService
}

func NewRedriveFailedCommand(service WebhookService) *RedriveFailedCommand {
	return &RedriveFailedCommand{service: service}
}

func (c *RedriveFailedCommand) Execute(ctx context.Context, msg RedriveFailedMessage) error {
	if c == nil || c.service == nil {
		return core.NewDependencyError("command: webhook service is required")
	}
	results, err := c.service.RedriveFailed(ctx, msg.limit())
	storeResult(ctx, results)
	return err
}

type StartSessionCommand struct {
	service SessionService
}

func NewStartSessionCommand(service SessionService) *StartSessionCommand {
	return &StartSessionCommand{service: service}
}

func (c *StartSessionCommand) Execute(ctx context.Context, msg StartSessionMessage) error {
	if c == nil || c.service == nil {
		return core.NewDependencyError("command: session service is required")
	}
	out, err := c.service.StartSession(ctx, msg.UserID, msg.Person)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

// SyncVerificationCommand mirrors the reconciler: a failed sync is stored
// on the result, not returned.
type SyncVerificationCommand struct {
	service SessionService
}

func NewSyncVerificationCommand(service SessionService) *SyncVerificationCommand {
	return &SyncVerificationCommand{service: service}
}

func (c *SyncVerificationCommand) Execute(ctx context.Context, msg SyncVerificationMessage) error {
	if c == nil || c.service == nil {
		return core.NewDependencyError("command: session service is required")
	}
	storeResult(ctx, c.service.SyncUserVerificationData(ctx, msg.UserID, msg.SessionID))
	return nil
}

type RunMonitoringCheckCommand struct {
	service MonitoringService
}

func NewRunMonitoringCheckCommand(service MonitoringService) *RunMonitoringCheckCommand {
	return &RunMonitoringCheckCommand{service: service}
}

func (c *RunMonitoringCheckCommand) Execute(ctx context.Context, _ RunMonitoringCheckMessage) error {
	if c == nil || c.service == nil {
		return core.NewDependencyError("command: monitoring service is required")
	}
	report, err := c.service.RunMonitoringCheck(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, report)
	return nil
}

type ResolveAlertCommand struct {
	service MonitoringService
}

func NewResolveAlertCommand(service MonitoringService) *ResolveAlertCommand {
	return &ResolveAlertCommand{service: service}
}

func (c *ResolveAlertCommand) Execute(ctx context.Context, msg ResolveAlertMessage) error {
	if c == nil || c.service == nil {
		return core.NewDependencyError("command: monitoring service is required")
	}
	alert, err := c.service.ResolveAlert(ctx, msg.AlertID)
	if err != nil {
		return err
	}
	storeResult(ctx, alert)
	return nil
}

func resultError(result core.ProcessResult) error {
	if result.Success {
		return nil
	}
	if result.Error != nil {
		return result.Error
	}
	return core.NewError(core.KindUnknown, result.Message)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
