package veriff

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-verification/core"
	"github.com/goliatone/go-verification/retry"
	"github.com/goliatone/go-verification/transport"
	"github.com/goliatone/go-verification/webhooks"
	"golang.org/x/sync/errgroup"
)

const ProviderID = "veriff"

const (
	HeaderAuthClient    = "X-AUTH-CLIENT"
	HeaderHMACSignature = webhooks.SignatureHeader

	fullAutoVersion = "1.0.0"
)

var _ core.ProviderClient = (*Client)(nil)

type Config struct {
	BaseURL     string
	APIKey      string
	APISecret   string
	CallbackURL string
	Timeout     time.Duration
	Retry       retry.Config
}

func ConfigFromCore(cfg core.Config) Config {
	return Config{
		BaseURL:   cfg.Provider.BaseURL,
		APIKey:    cfg.Provider.APIKey,
		APISecret: cfg.Provider.APISecret,
		Timeout:   cfg.Provider.Timeout,
		Retry:     retry.FromCoreConfig(cfg.Retry),
	}
}

// Client talks to the provider pull API. Every request is signed with the
// API secret and wrapped in the retry executor.
type Client struct {
	config   Config
	api      *transport.Client
	apiErr   error
	Observer core.Observer
	Now      func() time.Time
}

func NewClient(cfg Config, doer transport.HTTPDoer) *Client {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.APISecret = strings.TrimSpace(cfg.APISecret)
	api, err := transport.NewClient(cfg.BaseURL, doer)
	if api != nil {
		api.Timeout = cfg.Timeout
	}
	return &Client{
		config: cfg,
		api:    api,
		apiErr: err,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (c *Client) CreateSession(ctx context.Context, userID string, person core.SessionPerson) (core.SessionDescriptor, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return core.SessionDescriptor{}, core.NewValidationError("userId", "veriff: user id is required")
	}
	request := createSessionRequest{Verification: createSessionVerification{
		Callback:   strings.TrimSpace(c.config.CallbackURL),
		VendorData: userID,
		Timestamp:  c.now().Format(time.RFC3339Nano),
	}}
	if strings.TrimSpace(person.FirstName) != "" || strings.TrimSpace(person.LastName) != "" {
		request.Verification.Person = &person
	}
	body, err := json.Marshal(request)
	if err != nil {
		return core.SessionDescriptor{}, core.WrapError(err, core.KindValidation, "veriff: encode session request")
	}

	var decoded createSessionResponse
	if err := c.call(ctx, "create_session", http.MethodPost, "/sessions", nil, body, body, &decoded); err != nil {
		return core.SessionDescriptor{}, err
	}
	if strings.TrimSpace(decoded.Verification.ID) == "" {
		return core.SessionDescriptor{}, core.NewError(core.KindReconciliation, "veriff: session response carried no id")
	}
	return core.SessionDescriptor{
		SessionID:    strings.TrimSpace(decoded.Verification.ID),
		URL:          strings.TrimSpace(decoded.Verification.URL),
		SessionToken: strings.TrimSpace(decoded.Verification.SessionToken),
		Status:       firstNonEmpty(decoded.Verification.Status, string(core.VerificationStatusCreated)),
		Host:         strings.TrimSpace(decoded.Verification.Host),
		VendorData:   firstNonEmpty(decoded.Verification.VendorData, userID),
	}, nil
}

// GetPersonData returns nil when the provider holds no person data yet.
func (c *Client) GetPersonData(ctx context.Context, sessionID string) (*core.PersonRecord, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, core.NewValidationError("sessionId", "veriff: session id is required")
	}
	var decoded personResponse
	err := c.call(ctx, "get_person", http.MethodGet, sessionPath(sessionID, "person"), nil, nil, []byte(sessionID), &decoded)
	if err != nil {
		if core.KindOf(err) == core.KindNotFound {
			return nil, nil
		}
		return nil, err
	}
	return decoded.Person.record(), nil
}

// GetDecisionData prefers the confidence-tagged full-auto endpoint and falls
// back to the plain decision endpoint.
func (c *Client) GetDecisionData(ctx context.Context, sessionID string) (*core.DecisionRecord, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, core.NewValidationError("sessionId", "veriff: session id is required")
	}

	var fullAuto fullAutoResponse
	fullAutoErr := c.call(ctx, "get_decision_fullauto", http.MethodGet, sessionPath(sessionID, "decision/fullauto"),
		url.Values{"version": []string{fullAutoVersion}}, nil, []byte(sessionID), &fullAuto)
	if fullAutoErr == nil {
		if record := fullAuto.decision().record(sessionID); record != nil {
			return record, nil
		}
	} else if errors.Is(fullAutoErr, context.Canceled) {
		return nil, fullAutoErr
	} else {
		c.Observer.LogWarn(ctx, "full-auto decision unavailable, using plain decision", map[string]any{
			"session_id": sessionID,
			"error":      fullAutoErr.Error(),
		})
	}

	var plain decisionResponse
	err := c.call(ctx, "get_decision", http.MethodGet, sessionPath(sessionID, "decision"), nil, nil, []byte(sessionID), &plain)
	if err != nil {
		if core.KindOf(err) == core.KindNotFound {
			return nil, nil
		}
		return nil, err
	}
	return plain.Verification.record(sessionID), nil
}

// GetComprehensiveVerificationData fetches person and decision concurrently.
// One failing branch does not discard the other; an error is returned only
// when neither branch produced data.
func (c *Client) GetComprehensiveVerificationData(ctx context.Context, sessionID string) (core.ComprehensiveData, error) {
	data := core.ComprehensiveData{SessionID: strings.TrimSpace(sessionID)}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		person, err := c.GetPersonData(groupCtx, data.SessionID)
		data.Person, data.PersonError = person, err
		return nil
	})
	group.Go(func() error {
		decision, err := c.GetDecisionData(groupCtx, data.SessionID)
		data.Decision, data.DecisionError = decision, err
		return nil
	})
	_ = group.Wait()

	if data.HasData() {
		return data, nil
	}
	if err := errors.Join(data.PersonError, data.DecisionError); err != nil {
		return data, core.WrapError(err, core.KindReconciliation, "veriff: fetch verification data")
	}
	return data, nil
}

func (c *Client) call(
	ctx context.Context,
	operation string,
	method string,
	path string,
	query url.Values,
	body []byte,
	signed []byte,
	out any,
) (err error) {
	startedAt := time.Now()
	defer func() {
		if c == nil {
			return
		}
		c.Observer.ObserveOperation(ctx, startedAt, "veriff_"+operation, err, map[string]any{
			"provider": ProviderID,
			"path":     path,
		})
	}()

	if c == nil {
		return core.NewConfigurationError("veriff: client is not initialized")
	}
	if c.apiErr != nil {
		return c.apiErr
	}
	if c.config.APIKey == "" || c.config.APISecret == "" {
		return core.NewConfigurationError("veriff: api key and api secret are required")
	}

	header := http.Header{}
	header.Set(HeaderAuthClient, c.config.APIKey)
	header.Set(HeaderHMACSignature, webhooks.Sign(c.config.APISecret, signed))
	response, err := retry.Do(ctx, "veriff."+operation, c.config.Retry, func(ctx context.Context) (transport.Response, error) {
		res, err := c.api.Do(ctx, transport.Request{
			Operation: operation,
			Method:    method,
			Path:      path,
			Query:     query,
			Header:    header,
			Body:      body,
		})
		if err != nil {
			return transport.Response{}, err
		}
		return res, res.Err()
	})
	if err != nil {
		return err
	}
	return response.DecodeJSON(out)
}

func (c *Client) now() time.Time {
	if c != nil && c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}

func sessionPath(sessionID string, suffix string) string {
	return "/sessions/" + url.PathEscape(sessionID) + "/" + suffix
}
