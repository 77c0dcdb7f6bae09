package query

import (
	"context"

	"github.com/goliatone/go-verification/core"
)

type StatusReader interface {
	GetUserVerificationStatus(ctx context.Context, userID string) (core.VerificationStatusView, error)
}

type DashboardReader interface {
	GetDashboardData(ctx context.Context) (core.DashboardData, error)
}

type WebhookEventReader interface {
	GetWebhookMetrics(ctx context.Context, windowHours int) (core.WebhookMetrics, error)
	GetFailedWebhooks(ctx context.Context, limit int) ([]core.WebhookEvent, error)
}

type AlertReader interface {
	ListAlerts(ctx context.Context, includeResolved bool, limit int) ([]core.VerificationAlert, error)
}

type GetVerificationStatusQuery struct {
	reader StatusReader
}

func NewGetVerificationStatusQuery(reader StatusReader) *GetVerificationStatusQuery {
	return &GetVerificationStatusQuery{reader: reader}
}

func (q *GetVerificationStatusQuery) Query(
	ctx context.Context,
	msg GetVerificationStatusMessage,
) (core.VerificationStatusView, error) {
	if q == nil || q.reader == nil {
		return core.VerificationStatusView{}, core.NewDependencyError("query: status reader is required")
	}
	return q.reader.GetUserVerificationStatus(ctx, msg.UserID)
}

type GetDashboardQuery struct {
	reader DashboardReader
}

func NewGetDashboardQuery(reader DashboardReader) *GetDashboardQuery {
	return &GetDashboardQuery{reader: reader}
}

func (q *GetDashboardQuery) Query(ctx context.Context, _ GetDashboardMessage) (core.DashboardData, error) {
	if q == nil || q.reader == nil {
		return core.DashboardData{}, core.NewDependencyError("query: dashboard reader is required")
	}
	return q.reader.GetDashboardData(ctx)
}

type GetWebhookMetricsQuery struct {
	reader WebhookEventReader
}

func NewGetWebhookMetricsQuery(reader WebhookEventReader) *GetWebhookMetricsQuery {
	return &GetWebhookMetricsQuery{reader: reader}
}

func (q *GetWebhookMetricsQuery) Query(ctx context.Context, msg GetWebhookMetricsMessage) (core.WebhookMetrics, error) {
	if q == nil || q.reader == nil {
		return core.WebhookMetrics{}, core.NewDependencyError("query: webhook event reader is required")
	}
	return q.reader.GetWebhookMetrics(ctx, msg.WindowHours)
}

type ListFailedWebhooksQuery struct {
	reader WebhookEventReader
}

func NewListFailedWebhooksQuery(reader WebhookEventReader) *ListFailedWebhooksQuery {
	return &ListFailedWebhooksQuery{reader: reader}
}

func (q *ListFailedWebhooksQuery) Query(ctx context.Context, msg ListFailedWebhooksMessage) ([]core.WebhookEvent, error) {
	if q == nil || q.reader == nil {
		return nil, core.NewDependencyError("query: webhook event reader is required")
	}
	return q.reader.GetFailedWebhooks(ctx, msg.Limit)
}

type ListAlertsQuery struct {
	reader AlertReader
}

func NewListAlertsQuery(reader AlertReader) *ListAlertsQuery {
	return &ListAlertsQuery{reader: reader}
}

func (q *ListAlertsQuery) Query(ctx context.Context, msg ListAlertsMessage) ([]core.VerificationAlert, error) {
	if q == nil || q.reader == nil {
		return nil, core.NewDependencyError("query: alert reader is required")
	}
	return q.reader.ListAlerts(ctx, msg.IncludeResolved, msg.Limit)
}

type ListActivityQuery struct {
	reader core.ActivityReader
}

func NewListActivityQuery(reader core.ActivityReader) *ListActivityQuery {
	return &ListActivityQuery{reader: reader}
}

func (q *ListActivityQuery) Query(ctx context.Context, msg ListActivityMessage) ([]core.ActivityEntry, error) {
	if q == nil || q.reader == nil {
		return nil, core.NewDependencyError("query: activity reader is required")
	}
	return q.reader.ListActivity(ctx, msg.Filter)
}
