package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-verification/core"
)

const (
	defaultTimeout       = 30 * time.Second
	defaultMaxBodyBytes  = int64(10 << 20)
	errorBodyExcerptSize = 512
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Request describes one call relative to the client's base URL. Path is taken
// as already escaped, so segments built from caller data go through
// url.PathEscape first.
type Request struct {
	Operation string
	Method    string
	Path      string
	Query     url.Values
	Header    http.Header
	Body      []byte
	Timeout   time.Duration
}

type Response struct {
	Operation  string
	StatusCode int
	Header     http.Header
	Body       []byte
	Duration   time.Duration
}

// Err classifies a non-2xx response. An excerpt of the body is kept in the
// metadata so provider error messages reach the logs.
func (r Response) Err() error {
	kind := KindForStatus(r.StatusCode)
	if kind == core.KindUnknown {
		return nil
	}
	return transportError(
		fmt.Sprintf("transport: %s returned status %d", r.operation(), r.StatusCode),
		kind,
		r.StatusCode,
		map[string]any{
			"operation":   r.operation(),
			"status_code": r.StatusCode,
			"body":        excerpt(r.Body),
		},
	)
}

// DecodeJSON unmarshals the body into out. An empty body leaves out as is.
// Malformed payloads are reconciliation errors: the provider answered but
// the answer cannot be mapped.
func (r Response) DecodeJSON(out any) error {
	if out == nil || len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return core.WrapError(err, core.KindReconciliation, "transport: decode "+r.operation()+" response")
	}
	return nil
}

func (r Response) operation() string {
	if op := strings.TrimSpace(r.Operation); op != "" {
		return op
	}
	return "request"
}

// Client issues JSON API calls against a single provider base URL.
type Client struct {
	BaseURL      *url.URL
	Doer         HTTPDoer
	Header       http.Header
	Timeout      time.Duration
	MaxBodyBytes int64
}

func NewClient(baseURL string, doer HTTPDoer) (*Client, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, core.NewConfigurationError("transport: base url is required")
	}
	parsed, err := url.Parse(strings.TrimRight(trimmed, "/"))
	if err != nil {
		return nil, core.WrapError(err, core.KindConfiguration, "transport: invalid base url")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, core.NewConfigurationError("transport: base url must be http or https")
	}
	if doer == nil {
		doer = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		BaseURL:      parsed,
		Doer:         doer,
		Header:       http.Header{"Content-Type": []string{"application/json"}},
		MaxBodyBytes: defaultMaxBodyBytes,
	}, nil
}

// Do sends req. Only failures to obtain a full response are returned as
// errors; status handling is left to Response.Err.
func (c *Client) Do(ctx context.Context, req Request) (Response, error) {
	if c == nil || c.Doer == nil || c.BaseURL == nil {
		return Response{}, transportError(
			"transport: client is not configured",
			core.KindConfiguration,
			http.StatusInternalServerError,
			nil,
		)
	}
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	target := c.resolve(req.Path, req.Query)

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var body io.Reader = http.NoBody
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return Response{}, transportWrapError(err, core.KindConfiguration, "transport: build request",
			http.StatusInternalServerError, map[string]any{"operation": req.Operation, "method": method})
	}
	for _, headers := range []http.Header{c.Header, req.Header} {
		for key, values := range headers {
			httpReq.Header.Del(key)
			for _, value := range values {
				httpReq.Header.Add(key, value)
			}
		}
	}

	startedAt := time.Now()
	httpRes, err := c.Doer.Do(httpReq)
	if err != nil {
		return Response{}, transportWrapError(err, kindForRequestError(err), "transport: send request",
			http.StatusBadGateway, map[string]any{"operation": req.Operation, "method": method, "path": req.Path})
	}
	defer httpRes.Body.Close()

	limit := c.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}
	payload, err := io.ReadAll(io.LimitReader(httpRes.Body, limit+1))
	if err != nil {
		return Response{}, transportWrapError(err, core.KindTransient, "transport: read response",
			http.StatusBadGateway, map[string]any{"operation": req.Operation, "status_code": httpRes.StatusCode})
	}
	if int64(len(payload)) > limit {
		return Response{}, transportError(
			fmt.Sprintf("transport: %s response exceeds %d bytes", req.Operation, limit),
			core.KindValidation,
			http.StatusBadGateway,
			map[string]any{"operation": req.Operation, "status_code": httpRes.StatusCode, "limit_bytes": limit},
		)
	}

	return Response{
		Operation:  req.Operation,
		StatusCode: httpRes.StatusCode,
		Header:     httpRes.Header.Clone(),
		Body:       payload,
		Duration:   time.Since(startedAt),
	}, nil
}

func (c *Client) resolve(path string, query url.Values) string {
	target := *c.BaseURL
	escaped := strings.TrimRight(target.EscapedPath(), "/") + "/" + strings.TrimLeft(strings.TrimSpace(path), "/")
	if decoded, err := url.PathUnescape(escaped); err == nil {
		target.Path = decoded
		target.RawPath = escaped
	} else {
		target.Path = escaped
		target.RawPath = ""
	}
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}
	return target.String()
}

func excerpt(body []byte) string {
	if len(body) <= errorBodyExcerptSize {
		return string(body)
	}
	return string(body[:errorBodyExcerptSize])
}
