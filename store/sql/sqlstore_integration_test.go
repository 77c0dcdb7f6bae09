package sqlstore_test

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"testing"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-verification/core"
	verificationmigrations "github.com/goliatone/go-verification/migrations"
	sqlstore "github.com/goliatone/go-verification/store/sql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

type testPersistenceConfig struct {
	driver string
	server string
}

func (c testPersistenceConfig) GetDebug() bool {
	return false
}

func (c testPersistenceConfig) GetDriver() string {
	return c.driver
}

func (c testPersistenceConfig) GetServer() string {
	return c.server
}

func (c testPersistenceConfig) GetPingTimeout() time.Duration {
	return time.Second
}

func (c testPersistenceConfig) GetOtelIdentifier() string {
	return "go-verification-tests"
}

func TestMigrationSmokeApplySQLite(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	for _, table := range []string{"users", "webhook_events", "activity_log", "verification_alerts"} {
		var name string
		if err := client.DB().NewRaw(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
			table,
		).Scan(context.Background(), &name); err != nil {
			t.Fatalf("query sqlite master for %s: %v", table, err)
		}
		if name != table {
			t.Fatalf("expected %s table, got %q", table, name)
		}
	}
}

func TestUserVerificationStore_ApplyTransitionIsCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()
	insertUser(t, factory, "u1")
	users := factory.UserVerificationStore()

	submittedAt := time.Date(2026, 2, 13, 10, 0, 0, 0, time.UTC)
	applied, err := users.ApplyTransition(ctx, core.TransitionPatch{
		UserID:      "u1",
		SessionID:   "s1",
		EventKey:    "k1",
		Status:      core.VerificationStatusSubmitted,
		SubmittedAt: &submittedAt,
	})
	if err != nil || !applied {
		t.Fatalf("expected first transition applied, got %v (%v)", applied, err)
	}

	applied, err = users.ApplyTransition(ctx, core.TransitionPatch{
		UserID:   "u1",
		EventKey: "k1",
		Status:   core.VerificationStatusDeclined,
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if applied {
		t.Fatalf("expected replayed event key to be skipped")
	}

	verified := true
	score := 0.95
	approvedAt := time.Date(2026, 2, 13, 11, 0, 0, 0, time.UTC)
	applied, err = users.ApplyTransition(ctx, core.TransitionPatch{
		UserID:             "u1",
		EventKey:           "k2",
		Status:             core.VerificationStatusApproved,
		IdentityVerified:   &verified,
		IdentityVerifiedAt: &approvedAt,
		ApprovedAt:         &approvedAt,
		DecisionScore:      &score,
		Person:             &core.PersonRecord{GivenName: "Ada", Address: core.Address{City: "London", PostalCode: "N1"}},
		Document:           &core.DocumentRecord{Type: "PASSPORT", Country: "GB"},
		WebhookData:        map[string]any{"action": "approved"},
	})
	if err != nil || !applied {
		t.Fatalf("expected approval applied, got %v (%v)", applied, err)
	}

	user, err := users.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.Status != core.VerificationStatusApproved || !user.IdentityVerified || user.LastEventKey != "k2" {
		t.Fatalf("unexpected user %+v", user)
	}
	if user.SubmittedAt == nil || !user.SubmittedAt.Equal(submittedAt) {
		t.Fatalf("expected submitted timestamp kept, got %v", user.SubmittedAt)
	}
	if user.DecisionScore == nil || *user.DecisionScore != 0.95 {
		t.Fatalf("expected decision score, got %v", user.DecisionScore)
	}
	if user.Person.GivenName != "Ada" || user.Person.Address.City != "London" || user.Document.Type != "PASSPORT" {
		t.Fatalf("expected person and document columns, got %+v / %+v", user.Person, user.Document)
	}
	if user.WebhookData["action"] != "approved" {
		t.Fatalf("expected webhook data snapshot, got %+v", user.WebhookData)
	}
}

func TestUserVerificationStore_MissingUserIsNotFound(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()
	users := factory.UserVerificationStore()

	if _, err := users.Get(ctx, "ghost"); core.KindOf(err) != core.KindNotFound {
		t.Fatalf("expected not found on get, got %v", err)
	}
	if _, err := users.ApplyTransition(ctx, core.TransitionPatch{UserID: "ghost", EventKey: "k"}); core.KindOf(err) != core.KindNotFound {
		t.Fatalf("expected not found on transition, got %v", err)
	}
}

func TestUserVerificationStore_SaveReconciledKeepsStatus(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()
	insertUser(t, factory, "u1")
	users := factory.UserVerificationStore()

	createdAt := time.Date(2026, 2, 13, 9, 0, 0, 0, time.UTC)
	if err := users.SaveSession(ctx, "u1", core.SessionDescriptor{SessionID: "s1"}, createdAt); err != nil {
		t.Fatalf("save session: %v", err)
	}

	score := 0.8
	err := users.SaveReconciled(ctx, core.ReconciledData{
		UserID:    "u1",
		SessionID: "s1",
		Person:    &core.PersonRecord{GivenName: "Ada", LastName: "Lovelace"},
		Decision: &core.DecisionRecord{
			Decision:      "approved",
			DecisionScore: &score,
			Document:      core.DecisionDocument{Type: core.ConfidenceField{Value: "ID_CARD", ConfidenceCategory: "high", Sources: []string{"document"}}},
			Insights:      []core.Insight{{Label: "documentAccepted", Result: "yes"}},
		},
	})
	if err != nil {
		t.Fatalf("save reconciled: %v", err)
	}

	user, err := users.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.Status != core.VerificationStatusCreated || user.IdentityVerified {
		t.Fatalf("expected reconciliation to leave the state machine alone, got %+v", user)
	}
	if user.Decision == nil || user.Decision.Document.Type.ConfidenceCategory != "high" {
		t.Fatalf("expected confidence-tagged decision persisted, got %+v", user.Decision)
	}
	if user.Document.Type != "ID_CARD" || len(user.Insights) != 1 || user.Person.LastName != "Lovelace" {
		t.Fatalf("expected flattened columns, got %+v", user)
	}

	err = users.SaveReconciled(ctx, core.ReconciledData{UserID: "u1", SessionID: "old", Person: &core.PersonRecord{GivenName: "X"}})
	if core.KindOf(err) != core.KindConflict {
		t.Fatalf("expected conflict for a stale session, got %v", err)
	}
}

func TestUserVerificationStore_ListSessionsFilters(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()
	users := factory.UserVerificationStore()
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)

	for i, status := range []core.VerificationStatus{
		core.VerificationStatusSubmitted,
		core.VerificationStatusApproved,
		core.VerificationStatusCreated,
	} {
		userID := fmt.Sprintf("u%d", i)
		insertUser(t, factory, userID)
		if err := users.SaveSession(ctx, userID, core.SessionDescriptor{SessionID: "s-" + userID}, now.Add(-time.Duration(i*30)*time.Hour)); err != nil {
			t.Fatalf("save session: %v", err)
		}
		if _, err := users.ApplyTransition(ctx, core.TransitionPatch{UserID: userID, EventKey: "k-" + userID, Status: status}); err != nil {
			t.Fatalf("apply status: %v", err)
		}
	}
	insertUser(t, factory, "no-session")

	all, err := users.ListSessions(ctx, core.SessionFilter{})
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(all))
	}

	pending, err := users.ListSessions(ctx, core.SessionFilter{
		Statuses: []core.VerificationStatus{core.VerificationStatusSubmitted, core.VerificationStatusCreated},
	})
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending sessions, got %d", len(pending))
	}

	since := now.Add(-24 * time.Hour)
	recent, err := users.ListSessions(ctx, core.SessionFilter{Since: &since})
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(recent) != 1 || recent[0].UserID != "u0" {
		t.Fatalf("expected only u0 inside the window, got %+v", recent)
	}
}

func TestWebhookEventStore_DedupesByIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()
	events := factory.WebhookEventStore()

	first, created, err := events.LogWebhookEvent(ctx, core.WebhookEvent{
		UserID:         "u1",
		SessionID:      "s1",
		WebhookType:    core.WebhookTypeApproved,
		IdempotencyKey: "provider:s1:a1:approved",
		Payload:        map[string]any{"id": "s1", "decisionScore": 0.95},
	})
	if err != nil || !created {
		t.Fatalf("expected first event created, got %v (%v)", created, err)
	}
	if first.Status != core.WebhookStatusPending || first.EventType != core.WebhookEventReceived {
		t.Fatalf("expected pending received row, got %+v", first)
	}

	second, created, err := events.LogWebhookEvent(ctx, core.WebhookEvent{
		UserID:         "u1",
		SessionID:      "s1",
		WebhookType:    core.WebhookTypeApproved,
		IdempotencyKey: "provider:s1:a1:approved",
	})
	if err != nil {
		t.Fatalf("log duplicate: %v", err)
	}
	if created || second.ID != first.ID {
		t.Fatalf("expected existing row for duplicate key, got %+v created=%v", second, created)
	}

	if err := events.MarkWebhookProcessed(ctx, first.ID, true, ""); err != nil {
		t.Fatalf("mark processed: %v", err)
	}
	stored, err := events.GetWebhookEvent(ctx, first.ID)
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if stored.Status != core.WebhookStatusSuccess || stored.ProcessedAt == nil {
		t.Fatalf("expected success with processed timestamp, got %+v", stored)
	}
	if stored.Payload["decisionScore"] != 0.95 {
		t.Fatalf("expected payload snapshot, got %+v", stored.Payload)
	}
}

func TestWebhookEventStore_FailedSetRespectsRetryBudget(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()
	events := factory.WebhookEventStore()

	failed, _, err := events.LogWebhookEvent(ctx, core.WebhookEvent{IdempotencyKey: "k-failed", WebhookType: core.WebhookTypeSubmitted})
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	if err := events.MarkWebhookProcessed(ctx, failed.ID, false, "store unavailable"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if _, _, err := events.LogWebhookEvent(ctx, core.WebhookEvent{
		IdempotencyKey: "invalid:abc",
		Status:         core.WebhookStatusError,
		EventType:      core.WebhookEventFailed,
		RetryCount:     core.MaxWebhookRetries,
	}); err != nil {
		t.Fatalf("log exhausted: %v", err)
	}

	candidates, err := events.GetFailedWebhooks(ctx, 10)
	if err != nil {
		t.Fatalf("failed webhooks: %v", err)
	}
	if len(candidates) != 1 || candidates[0].ID != failed.ID || candidates[0].Error != "store unavailable" {
		t.Fatalf("expected only the event with budget left, got %+v", candidates)
	}

	for i := 1; i <= core.MaxWebhookRetries; i++ {
		retried, err := events.MarkWebhookRetry(ctx, failed.ID)
		if err != nil {
			t.Fatalf("mark retry: %v", err)
		}
		if retried.RetryCount != i || retried.Status != core.WebhookStatusPending || retried.EventType != core.WebhookEventRetry {
			t.Fatalf("unexpected retried event %+v", retried)
		}
		if err := events.MarkWebhookProcessed(ctx, failed.ID, false, "still failing"); err != nil {
			t.Fatalf("mark failed again: %v", err)
		}
	}
	candidates, err = events.GetFailedWebhooks(ctx, 10)
	if err != nil {
		t.Fatalf("failed webhooks after budget: %v", err)
	}
	if len(candidates) != 0 {
		t.Fatalf("expected exhausted event to leave the re-drive set, got %+v", candidates)
	}

	if _, err := events.MarkWebhookRetry(ctx, "missing"); core.KindOf(err) != core.KindNotFound {
		t.Fatalf("expected not found for unknown event, got %v", err)
	}
}

func TestWebhookEventStore_MetricsWindow(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()
	events := factory.WebhookEventStore()
	now := time.Now().UTC()

	log := func(key string, webhookType core.WebhookType, createdAt time.Time) string {
		t.Helper()
		event, _, err := events.LogWebhookEvent(ctx, core.WebhookEvent{
			IdempotencyKey: key,
			WebhookType:    webhookType,
			CreatedAt:      createdAt,
		})
		if err != nil {
			t.Fatalf("log %s: %v", key, err)
		}
		return event.ID
	}
	okID := log("ok", core.WebhookTypeApproved, now.Add(-time.Minute))
	failedID := log("failed", core.WebhookTypeDeclined, now.Add(-time.Minute))
	log("pending", core.WebhookTypeApproved, now.Add(-time.Minute))
	log("old", core.WebhookTypeSubmitted, now.Add(-48*time.Hour))

	if err := events.MarkWebhookProcessed(ctx, okID, true, ""); err != nil {
		t.Fatalf("mark ok: %v", err)
	}
	if err := events.MarkWebhookProcessed(ctx, failedID, false, "boom"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	metrics, err := events.GetWebhookMetrics(ctx, 24)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if metrics.Total != 3 || metrics.Success != 1 || metrics.Error != 1 || metrics.Pending != 1 {
		t.Fatalf("unexpected counts %+v", metrics)
	}
	if metrics.ByWebhookType[core.WebhookTypeApproved] != 2 || metrics.ByWebhookType[core.WebhookTypeSubmitted] != 0 {
		t.Fatalf("unexpected breakdown %+v", metrics.ByWebhookType)
	}
	if metrics.AverageProcessingTime <= 0 || metrics.AverageProcessingTime > time.Minute {
		t.Fatalf("expected capped average processing time, got %s", metrics.AverageProcessingTime)
	}
}

func TestSummarizeWebhookEvents_CapsSlowSamples(t *testing.T) {
	created := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	fast := created.Add(10 * time.Second)
	slow := created.Add(2 * time.Hour)
	metrics := sqlstore.SummarizeWebhookEvents([]core.WebhookEvent{
		{Status: core.WebhookStatusSuccess, WebhookType: core.WebhookTypeApproved, CreatedAt: created, ProcessedAt: &fast},
		{Status: core.WebhookStatusSuccess, WebhookType: core.WebhookTypeApproved, CreatedAt: created, ProcessedAt: &slow},
		{Status: core.WebhookStatusError, CreatedAt: created},
		{Status: core.WebhookStatusSuccess, WebhookType: core.WebhookTypeSubmitted, CreatedAt: created},
	}, 24)

	if metrics.AverageProcessingTime != 35*time.Second {
		t.Fatalf("expected (10s+60s)/2, got %s", metrics.AverageProcessingTime)
	}
	if metrics.SuccessRate != 75 {
		t.Fatalf("expected 75%% success rate, got %v", metrics.SuccessRate)
	}
	if metrics.ByWebhookType[core.WebhookTypeUnknown] != 1 {
		t.Fatalf("expected untyped event counted as unknown, got %+v", metrics.ByWebhookType)
	}
}

func TestActivityStore_RecordRedactsAndFilters(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()
	activity := factory.ActivityStore()

	if err := activity.Record(ctx, core.ActivityEntry{
		UserID:   "u1",
		Action:   "verification_declined",
		Status:   core.ActivityStatusConflict,
		Metadata: map[string]any{"session_id": "s1", "reason": "replay", "api_secret": "x"},
	}); err != nil {
		t.Fatalf("record conflict: %v", err)
	}
	if err := activity.Record(ctx, core.ActivityEntry{UserID: "u2", Action: "verification_approved"}); err != nil {
		t.Fatalf("record approval: %v", err)
	}
	if err := activity.Record(ctx, core.ActivityEntry{UserID: "u2"}); core.KindOf(err) != core.KindValidation {
		t.Fatalf("expected validation error without action, got %v", err)
	}

	conflicts, err := activity.ListActivity(ctx, core.ActivityFilter{Status: core.ActivityStatusConflict})
	if err != nil {
		t.Fatalf("list conflicts: %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("expected one conflict entry, got %d", len(conflicts))
	}
	entry := conflicts[0]
	if entry.SessionID != "s1" || entry.Metadata["reason"] != "replay" {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if entry.Metadata["api_secret"] != core.RedactedValue {
		t.Fatalf("expected secret metadata redacted, got %+v", entry.Metadata)
	}

	approvals, err := activity.ListActivity(ctx, core.ActivityFilter{UserID: "u2"})
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if len(approvals) != 1 || approvals[0].Status != core.ActivityStatusOK {
		t.Fatalf("expected default ok status, got %+v", approvals)
	}

	pruned, err := activity.Prune(ctx, time.Now().UTC().Add(time.Hour))
	if err != nil || pruned != 2 {
		t.Fatalf("expected both entries pruned, got %d (%v)", pruned, err)
	}
}

func TestActivityStore_RecordWithIDIsIdempotent(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()
	activity := factory.ActivityStore()

	entry := core.ActivityEntry{
		ID:     "7f1f4a52-0d1c-5b8e-9c1a-3f0e2d4b6a10",
		UserID: "u1",
		Action: "verification_approved",
	}
	for i := 0; i < 2; i++ {
		if err := activity.Record(ctx, entry); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	entries, err := activity.ListActivity(ctx, core.ActivityFilter{UserID: "u1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != entry.ID {
		t.Fatalf("expected a single entry for a repeated id, got %+v", entries)
	}
}

func TestWebhookEventStore_ReleaseStalePending(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()
	events := factory.WebhookEventStore()
	now := time.Now().UTC()

	stale, _, err := events.LogWebhookEvent(ctx, core.WebhookEvent{
		IdempotencyKey: "k-stale",
		WebhookType:    core.WebhookTypeApproved,
		CreatedAt:      now.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("log stale: %v", err)
	}
	live, _, err := events.LogWebhookEvent(ctx, core.WebhookEvent{
		IdempotencyKey: "k-live",
		WebhookType:    core.WebhookTypeApproved,
		CreatedAt:      now,
	})
	if err != nil {
		t.Fatalf("log live: %v", err)
	}

	released, err := events.ReleaseStalePending(ctx, now.Add(-core.PendingLease))
	if err != nil || released != 1 {
		t.Fatalf("expected one released row, got %d (%v)", released, err)
	}
	candidates, err := events.GetFailedWebhooks(ctx, 10)
	if err != nil {
		t.Fatalf("failed webhooks: %v", err)
	}
	if len(candidates) != 1 || candidates[0].ID != stale.ID {
		t.Fatalf("expected the stale row to become a re-drive candidate, got %+v", candidates)
	}
	if row, _ := events.GetWebhookEvent(ctx, live.ID); row.Status != core.WebhookStatusPending {
		t.Fatalf("expected the live row untouched, got %s", row.Status)
	}
}

func TestAlertStore_DedupesOpenAlertsAndResolves(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()
	alerts := factory.AlertStore()

	alert := core.VerificationAlert{
		Type:     core.AlertTypeErrorRate,
		Severity: core.AlertSeverityHigh,
		Message:  "verification success rate below threshold",
		Details:  map[string]any{"success_rate": 70.0},
	}
	first, created, err := alerts.CreateAlert(ctx, alert)
	if err != nil || !created {
		t.Fatalf("expected alert created, got %v (%v)", created, err)
	}
	seenAgain := time.Date(2026, 2, 13, 12, 30, 0, 0, time.UTC)
	repeat := alert
	repeat.Details = map[string]any{"success_rate": 65.0}
	repeat.Timestamp = seenAgain
	again, created, err := alerts.CreateAlert(ctx, repeat)
	if err != nil {
		t.Fatalf("create duplicate: %v", err)
	}
	if created || again.ID != first.ID {
		t.Fatalf("expected open alert reused, got %+v created=%v", again, created)
	}
	if again.Details["success_rate"] != 65.0 || !again.Timestamp.Equal(seenAgain) {
		t.Fatalf("expected open alert refreshed with the latest details, got %+v", again)
	}

	resolvedAt := time.Date(2026, 2, 13, 13, 0, 0, 0, time.UTC)
	resolved, err := alerts.ResolveAlert(ctx, first.ID, resolvedAt)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !resolved.Resolved || resolved.ResolvedAt == nil || !resolved.ResolvedAt.Equal(resolvedAt) {
		t.Fatalf("unexpected resolved alert %+v", resolved)
	}

	reopened, created, err := alerts.CreateAlert(ctx, alert)
	if err != nil || !created || reopened.ID == first.ID {
		t.Fatalf("expected a new alert once the old one is resolved, got %+v created=%v (%v)", reopened, created, err)
	}

	open, err := alerts.ListAlerts(ctx, false, 10)
	if err != nil {
		t.Fatalf("list open: %v", err)
	}
	if len(open) != 1 || open[0].ID != reopened.ID {
		t.Fatalf("expected only the reopened alert, got %+v", open)
	}
	all, err := alerts.ListAlerts(ctx, true, 10)
	if err != nil || len(all) != 2 {
		t.Fatalf("expected two alerts overall, got %d (%v)", len(all), err)
	}

	if _, err := alerts.ResolveAlert(ctx, "missing", resolvedAt); core.KindOf(err) != core.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func newFactory(t *testing.T) (*sqlstore.RepositoryFactory, func()) {
	t.Helper()
	client, cleanup := newSQLiteClient(t)
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		cleanup()
		t.Fatalf("new repository factory: %v", err)
	}
	return factory, cleanup
}

func insertUser(t *testing.T, factory *sqlstore.RepositoryFactory, userID string) {
	t.Helper()
	if _, err := factory.DB().NewRaw("INSERT INTO users (id) VALUES (?)", userID).Exec(context.Background()); err != nil {
		t.Fatalf("insert user %s: %v", userID, err)
	}
}

func newSQLiteClient(t *testing.T) (*persistence.Client, func()) {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:verification-test-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	cfg := testPersistenceConfig{
		driver: "sqlite3",
		server: dsn,
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}

	ctx := context.Background()
	err = verificationmigrations.Register(ctx, func(_ context.Context, _ string, _ string, fsys fs.FS) error {
		client.RegisterSQLMigrations(fsys)
		return nil
	}, verificationmigrations.DialectSQLite)
	if err != nil {
		_ = client.Close()
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		t.Fatalf("migrate: %v", err)
	}

	return client, func() {
		_ = client.Close()
	}
}
