package command

import (
	"context"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-verification/core"
)

func TestUnwiredCommands_ReturnInternalEnvelope(t *testing.T) {
	ctx := context.Background()
	cases := map[string]func() error{
		"process": func() error {
			return (*ProcessWebhookCommand)(nil).Execute(ctx, ProcessWebhookMessage{Body: []byte("{}")})
		},
		"redrive": func() error {
			return NewRedriveWebhookCommand(nil).Execute(ctx, RedriveWebhookMessage{EventID: "evt-1"})
		},
		"redrive_failed": func() error {
			return NewRedriveFailedCommand(nil).Execute(ctx, RedriveFailedMessage{})
		},
		"start_session": func() error {
			return NewStartSessionCommand(nil).Execute(ctx, StartSessionMessage{UserID: "user-1"})
		},
		"sync": func() error {
			return NewSyncVerificationCommand(nil).Execute(ctx, SyncVerificationMessage{UserID: "user-1", SessionID: "sess-1"})
		},
		"monitoring": func() error {
			return NewRunMonitoringCheckCommand(nil).Execute(ctx, RunMonitoringCheckMessage{})
		},
		"resolve_alert": func() error {
			return NewResolveAlertCommand(nil).Execute(ctx, ResolveAlertMessage{AlertID: "alert-1"})
		},
	}
	for name, run := range cases {
		err := run()
		var rich *goerrors.Error
		if !goerrors.As(err, &rich) {
			t.Fatalf("%s: expected go-errors envelope, got %T (%v)", name, err, err)
		}
		if rich.Category != goerrors.CategoryInternal || rich.TextCode != core.VerificationErrorInternal {
			t.Fatalf("%s: unexpected envelope %q/%q", name, rich.Category, rich.TextCode)
		}
	}
}

func TestStartSessionMessage_NamesMissingPerson(t *testing.T) {
	err := StartSessionMessage{UserID: "user-1", Person: core.SessionPerson{FirstName: "Ada"}}.Validate()
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Code != http.StatusBadRequest || core.KindOf(err) != core.KindValidation {
		t.Fatalf("expected 400 validation error, got %d/%s", rich.Code, core.KindOf(err))
	}
	if fields := rich.AllValidationErrors(); len(fields) != 1 || fields[0].Field != "person" {
		t.Fatalf("unexpected validation fields %+v", fields)
	}
}
