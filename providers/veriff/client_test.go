package veriff

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-verification/core"
	"github.com/goliatone/go-verification/retry"
	"github.com/goliatone/go-verification/webhooks"
)

const (
	testAPIKey    = "api-key"
	testAPISecret = "api-secret"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewClient(Config{
		BaseURL:   server.URL + "/v1",
		APIKey:    testAPIKey,
		APISecret: testAPISecret,
		Retry: retry.Config{
			MaxRetries: 2,
			BaseDelay:  time.Millisecond,
			Multiplier: 2,
			Sleep:      func(context.Context, time.Duration) error { return nil },
		},
	}, server.Client())
	client.Now = func() time.Time { return time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC) }
	return client
}

func requireSigned(t *testing.T, r *http.Request, payload []byte) {
	t.Helper()
	if r.Header.Get(HeaderAuthClient) != testAPIKey {
		t.Errorf("expected auth client header, got %q", r.Header.Get(HeaderAuthClient))
	}
	if r.Header.Get(HeaderHMACSignature) != webhooks.Sign(testAPISecret, payload) {
		t.Errorf("unexpected signature for %s", r.URL.Path)
	}
}

func TestClient_CreateSessionSignsBody(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/sessions" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		requireSigned(t, r, body)
		var decoded createSessionRequest
		if err := json.Unmarshal(body, &decoded); err != nil || decoded.Verification.VendorData != "u1" {
			t.Errorf("unexpected session body %s", body)
		}
		_, _ = w.Write([]byte(`{"status":"success","verification":{"id":"s1","url":"https://magic.example/s1","vendorData":"u1","status":"created","sessionToken":"tok"}}`))
	}))

	session, err := client.CreateSession(context.Background(), "u1", core.SessionPerson{FirstName: "Ada", LastName: "Lovelace"})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if session.SessionID != "s1" || session.URL == "" || session.Status != "created" {
		t.Fatalf("unexpected session %+v", session)
	}
}

func TestClient_GetPersonDataSignsSessionID(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requireSigned(t, r, []byte("s1"))
		_, _ = w.Write([]byte(`{"status":"success","person":{"firstName":"Ada","lastName":"Lovelace","idNumber":"123","pepSanctionMatches":[{"list":"pep"}]}}`))
	}))

	person, err := client.GetPersonData(context.Background(), "s1")
	if err != nil {
		t.Fatalf("get person: %v", err)
	}
	if person == nil || person.GivenName != "Ada" || len(person.PepSanctionMatches) != 1 {
		t.Fatalf("unexpected person %+v", person)
	}
}

func TestClient_EscapesSessionIDInPath(t *testing.T) {
	var gotPath string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		_, _ = w.Write([]byte(`{"status":"success","person":null}`))
	}))

	if _, err := client.GetPersonData(context.Background(), "../admin?x"); err != nil {
		t.Fatalf("get person: %v", err)
	}
	if gotPath != "/v1/sessions/..%2Fadmin%3Fx/person" {
		t.Fatalf("expected the session id kept inside one segment, got %q", gotPath)
	}
}

func TestClient_GetPersonDataReturnsNilWithoutData(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","person":null}`))
	}))
	person, err := client.GetPersonData(context.Background(), "s1")
	if err != nil || person != nil {
		t.Fatalf("expected nil person without error, got %+v (%v)", person, err)
	}
}

func TestClient_GetDecisionDataPrefersFullAuto(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/decision/fullauto") || r.URL.Query().Get("version") != "1.0.0" {
			t.Errorf("unexpected request %s?%s", r.URL.Path, r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"status":"success","data":{"verification":{"decision":"approved","decisionScore":0.95,
			"person":{"firstName":{"value":"Ada","confidenceCategory":"high","sources":["document"]}},
			"document":{"type":{"value":"PASSPORT","confidenceCategory":"medium","sources":["document"]}},
			"insights":[{"label":"documentAccepted","result":"yes","category":"document"}]}}}`))
	}))

	decision, err := client.GetDecisionData(context.Background(), "s1")
	if err != nil {
		t.Fatalf("get decision: %v", err)
	}
	if decision == nil || decision.Decision != "approved" || *decision.DecisionScore != 0.95 {
		t.Fatalf("unexpected decision %+v", decision)
	}
	if decision.Document.Type.ConfidenceCategory != "medium" || len(decision.Person.FirstName.Sources) != 1 {
		t.Fatalf("expected confidence tags preserved, got %+v", decision.Document.Type)
	}
}

func TestClient_GetDecisionDataFallsBackToPlainDecision(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/fullauto") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		requireSigned(t, r, []byte("s1"))
		_, _ = w.Write([]byte(`{"status":"success","verification":{"id":"s1","status":"declined","reason":"Document expired","riskScore":{"score":0.2},"person":{"firstName":"Ada"},"document":{"type":"PASSPORT"}}}`))
	}))

	decision, err := client.GetDecisionData(context.Background(), "s1")
	if err != nil {
		t.Fatalf("get decision: %v", err)
	}
	if decision == nil || decision.Decision != "declined" || decision.Reason != "Document expired" {
		t.Fatalf("unexpected decision %+v", decision)
	}
	if decision.Person.FirstName.ConfidenceCategory != "high" || decision.Person.FirstName.Sources == nil || len(decision.Person.FirstName.Sources) != 0 {
		t.Fatalf("expected reshaped high-confidence fields, got %+v", decision.Person.FirstName)
	}
	if decision.DecisionScore == nil || *decision.DecisionScore != 0.2 {
		t.Fatalf("expected risk score fallback")
	}
}

func TestClient_RetriesTransientStatusesOnly(t *testing.T) {
	var calls int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"status":"success","person":{"firstName":"Ada"}}`))
	}))
	if _, err := client.GetPersonData(context.Background(), "s1"); err != nil {
		t.Fatalf("expected success after transient failures, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}

	atomic.StoreInt32(&calls, 0)
	unauthorized := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	_, err := unauthorized.GetPersonData(context.Background(), "s1")
	if core.KindOf(err) != core.KindConfiguration {
		t.Fatalf("expected configuration error, got %v (%s)", err, core.KindOf(err))
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected a single call for a permanent failure, got %d", calls)
	}
}

func TestClient_RequiresCredentialsBeforeRequest(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, server.Client())
	_, err := client.GetDecisionData(context.Background(), "s1")
	if core.KindOf(err) != core.KindConfiguration {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("expected no request without credentials")
	}
}

func TestClient_ComprehensiveDataKeepsPartialSuccess(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/person") {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if strings.HasSuffix(r.URL.Path, "/fullauto") {
			_, _ = w.Write([]byte(`{"status":"success","verification":{"decision":"approved","decisionScore":0.9}}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))

	data, err := client.GetComprehensiveVerificationData(context.Background(), "s1")
	if err != nil {
		t.Fatalf("expected partial success, got %v", err)
	}
	if data.Decision == nil || data.Person != nil || data.PersonError == nil {
		t.Fatalf("unexpected data %+v", data)
	}

	failing := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	if _, err := failing.GetComprehensiveVerificationData(context.Background(), "s1"); err == nil {
		t.Fatalf("expected error when both branches fail")
	}
}
