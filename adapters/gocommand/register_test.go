package gocommand

import (
	"context"
	"testing"

	"github.com/goliatone/go-command"
	verificationcommand "github.com/goliatone/go-verification/command"
	"github.com/goliatone/go-verification/core"
	verificationquery "github.com/goliatone/go-verification/query"
	"github.com/goliatone/go-verification/webhooks"
)

type stubWebhookService struct {
	deliveries []webhooks.Delivery
}

func (s *stubWebhookService) ProcessDelivery(_ context.Context, delivery webhooks.Delivery) core.ProcessResult {
	s.deliveries = append(s.deliveries, delivery)
	return core.ProcessResult{Success: true, EventID: "evt_1", Action: core.WebhookTypeApproved}
}

func (s *stubWebhookService) Redrive(context.Context, string) core.ProcessResult {
	return core.ProcessResult{Success: true}
}

func (s *stubWebhookService) RedriveFailed(context.Context, int) ([]core.ProcessResult, error) {
	return nil, nil
}

type stubStatusReader struct{}

func (stubStatusReader) GetUserVerificationStatus(_ context.Context, userID string) (core.VerificationStatusView, error) {
	return core.VerificationStatusView{UserID: userID, Status: core.VerificationStatusApproved, IdentityVerified: true}, nil
}

func TestRegisterVerificationHandlers_DispatchesWiredHandlers(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	webhookService := &stubWebhookService{}

	registration, err := RegisterVerificationHandlers(adapter, Handlers{
		Webhooks: webhookService,
		Status:   stubStatusReader{},
	})
	if err != nil {
		t.Fatalf("register handlers: %v", err)
	}
	defer registration.Unsubscribe()

	if registration.Len() != 4 {
		t.Fatalf("expected 3 webhook commands plus 1 status query, got %d", registration.Len())
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	err = Dispatch(context.Background(), verificationcommand.ProcessWebhookMessage{
		Body:      []byte(`{"status":"approved"}`),
		Signature: "abc",
	})
	if err != nil {
		t.Fatalf("dispatch process webhook: %v", err)
	}
	if len(webhookService.deliveries) != 1 || webhookService.deliveries[0].Signature != "abc" {
		t.Fatalf("expected delivery to reach the webhook service, got %#v", webhookService.deliveries)
	}

	view, err := Query[verificationquery.GetVerificationStatusMessage, core.VerificationStatusView](
		context.Background(),
		verificationquery.GetVerificationStatusMessage{UserID: "user_1"},
	)
	if err != nil {
		t.Fatalf("query status: %v", err)
	}
	if view.UserID != "user_1" || !view.IdentityVerified {
		t.Fatalf("unexpected status view %#v", view)
	}
}

func TestRegisterVerificationHandlers_RequiresRegistry(t *testing.T) {
	if _, err := RegisterVerificationHandlers(nil, Handlers{}); err == nil {
		t.Fatalf("expected error for missing registry")
	}
	registration, err := RegisterVerificationHandlers(NewRegistryAdapter(nil), Handlers{})
	if err != nil {
		t.Fatalf("expected empty handler set to register, got %v", err)
	}
	if registration.Len() != 0 {
		t.Fatalf("expected no subscriptions, got %d", registration.Len())
	}
}
