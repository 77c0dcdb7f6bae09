package query

import (
	"context"
	"testing"

	"github.com/goliatone/go-verification/core"
)

type stubStatusReader struct {
	getFn func(context.Context, string) (core.VerificationStatusView, error)
}

func (s stubStatusReader) GetUserVerificationStatus(ctx context.Context, userID string) (core.VerificationStatusView, error) {
	return s.getFn(ctx, userID)
}

type stubDashboardReader struct {
	data core.DashboardData
}

func (s stubDashboardReader) GetDashboardData(context.Context) (core.DashboardData, error) {
	return s.data, nil
}

type stubEventReader struct {
	metricsFn func(context.Context, int) (core.WebhookMetrics, error)
	failedFn  func(context.Context, int) ([]core.WebhookEvent, error)
}

func (s stubEventReader) GetWebhookMetrics(ctx context.Context, windowHours int) (core.WebhookMetrics, error) {
	return s.metricsFn(ctx, windowHours)
}

func (s stubEventReader) GetFailedWebhooks(ctx context.Context, limit int) ([]core.WebhookEvent, error) {
	return s.failedFn(ctx, limit)
}

type stubAlertReader struct {
	listFn func(context.Context, bool, int) ([]core.VerificationAlert, error)
}

func (s stubAlertReader) ListAlerts(ctx context.Context, includeResolved bool, limit int) ([]core.VerificationAlert, error) {
	return s.listFn(ctx, includeResolved, limit)
}

type stubActivityReader struct {
	listFn func(context.Context, core.ActivityFilter) ([]core.ActivityEntry, error)
}

func (s stubActivityReader) ListActivity(ctx context.Context, filter core.ActivityFilter) ([]core.ActivityEntry, error) {
	return s.listFn(ctx, filter)
}

func TestGetVerificationStatusQuery_QueryDelegates(t *testing.T) {
	called := false
	reader := stubStatusReader{
		getFn: func(_ context.Context, userID string) (core.VerificationStatusView, error) {
			called = true
			if userID != "u1" {
				t.Fatalf("unexpected user id %q", userID)
			}
			return core.VerificationStatusView{UserID: userID, IdentityVerified: true, FromCache: true}, nil
		},
	}

	view, err := NewGetVerificationStatusQuery(reader).Query(context.Background(), GetVerificationStatusMessage{UserID: "u1"})
	if err != nil {
		t.Fatalf("query status: %v", err)
	}
	if !called || !view.IdentityVerified || !view.FromCache {
		t.Fatalf("unexpected status view %#v", view)
	}
}

func TestGetVerificationStatusQuery_PropagatesNotFound(t *testing.T) {
	reader := stubStatusReader{
		getFn: func(context.Context, string) (core.VerificationStatusView, error) {
			return core.VerificationStatusView{}, core.NewNotFoundError("user not found")
		},
	}
	_, err := NewGetVerificationStatusQuery(reader).Query(context.Background(), GetVerificationStatusMessage{UserID: "ghost"})
	if core.KindOf(err) != core.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetDashboardQuery_QueryDelegates(t *testing.T) {
	reader := stubDashboardReader{data: core.DashboardData{FailedWebhooks: 3}}
	data, err := NewGetDashboardQuery(reader).Query(context.Background(), GetDashboardMessage{})
	if err != nil {
		t.Fatalf("query dashboard: %v", err)
	}
	if data.FailedWebhooks != 3 {
		t.Fatalf("unexpected dashboard %#v", data)
	}
}

func TestWebhookEventQueries_Delegate(t *testing.T) {
	reader := stubEventReader{
		metricsFn: func(_ context.Context, windowHours int) (core.WebhookMetrics, error) {
			if windowHours != 48 {
				t.Fatalf("unexpected window %d", windowHours)
			}
			return core.WebhookMetrics{WindowHours: windowHours, Total: 2, SuccessRate: 50}, nil
		},
		failedFn: func(_ context.Context, limit int) ([]core.WebhookEvent, error) {
			if limit != 10 {
				t.Fatalf("unexpected limit %d", limit)
			}
			return []core.WebhookEvent{{ID: "evt-1", Status: core.WebhookStatusError}}, nil
		},
	}

	metrics, err := NewGetWebhookMetricsQuery(reader).Query(context.Background(), GetWebhookMetricsMessage{WindowHours: 48})
	if err != nil {
		t.Fatalf("query metrics: %v", err)
	}
	if metrics.SuccessRate != 50 {
		t.Fatalf("unexpected metrics %#v", metrics)
	}

	failed, err := NewListFailedWebhooksQuery(reader).Query(context.Background(), ListFailedWebhooksMessage{Limit: 10})
	if err != nil {
		t.Fatalf("query failed webhooks: %v", err)
	}
	if len(failed) != 1 || failed[0].ID != "evt-1" {
		t.Fatalf("unexpected failed webhooks %#v", failed)
	}
}

func TestListAlertsAndActivityQueries_Delegate(t *testing.T) {
	alerts := stubAlertReader{
		listFn: func(_ context.Context, includeResolved bool, limit int) ([]core.VerificationAlert, error) {
			if !includeResolved || limit != 5 {
				t.Fatalf("unexpected alert filter %v %d", includeResolved, limit)
			}
			return []core.VerificationAlert{{ID: "a1"}}, nil
		},
	}
	listed, err := NewListAlertsQuery(alerts).Query(context.Background(), ListAlertsMessage{IncludeResolved: true, Limit: 5})
	if err != nil || len(listed) != 1 {
		t.Fatalf("unexpected alerts %#v (%v)", listed, err)
	}

	activity := stubActivityReader{
		listFn: func(_ context.Context, filter core.ActivityFilter) ([]core.ActivityEntry, error) {
			if filter.Status != core.ActivityStatusConflict {
				t.Fatalf("unexpected activity filter %#v", filter)
			}
			return []core.ActivityEntry{{UserID: "u1", Status: filter.Status}}, nil
		},
	}
	entries, err := NewListActivityQuery(activity).Query(context.Background(), ListActivityMessage{
		Filter: core.ActivityFilter{Status: core.ActivityStatusConflict},
	})
	if err != nil || len(entries) != 1 {
		t.Fatalf("unexpected activity %#v (%v)", entries, err)
	}
}

func TestMessages_ValidateBounds(t *testing.T) {
	cases := []struct {
		name string
		msg  interface{ Validate() error }
	}{
		{name: "status without user", msg: GetVerificationStatusMessage{}},
		{name: "negative window", msg: GetWebhookMetricsMessage{WindowHours: -1}},
		{name: "huge window", msg: GetWebhookMetricsMessage{WindowHours: 24 * 365}},
		{name: "failed limit", msg: ListFailedWebhooksMessage{Limit: 501}},
		{name: "alert limit", msg: ListAlertsMessage{Limit: -1}},
		{name: "activity limit", msg: ListActivityMessage{Filter: core.ActivityFilter{Limit: 1000}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.msg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
	if err := (ListAlertsMessage{}).Validate(); err != nil {
		t.Fatalf("expected zero limit to defer to store default, got %v", err)
	}
}
