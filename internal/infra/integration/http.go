// Package integration implements the client side of third-party calls.
//
// This package contains:
//   - HTTPClient: JSON over HTTP, failures returned as NormalizedErrors
//   - UnaryClientInterceptor / DialGRPC: the same contract for gRPC clients
//   - CallWithRetry: caller-managed retries driven by the retry decision
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vietddude/faultline/internal/classify"
	"github.com/vietddude/faultline/internal/metrics"
	"github.com/vietddude/faultline/internal/reporting"
)

const (
	defaultTimeout  = 30 * time.Second
	maxBodyBytes    = 1 << 20
	maxMessageBytes = 512
)

// Request describes one call relative to the service base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   any
}

// Response is a successful (2xx) reply.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return nil
	}
	return json.Unmarshal(r.Body, v)
}

// HTTPClient calls a single third-party HTTP API.
type HTTPClient struct {
	service    string
	cfg        Config
	httpClient *http.Client
	classifier *classify.Classifier
	reporter   reporting.Reporter
}

// NewHTTPClient creates a client for service. A nil reporter discards reports.
func NewHTTPClient(
	service string,
	cfg Config,
	classifier *classify.Classifier,
	reporter reporting.Reporter,
) *HTTPClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	if reporter == nil {
		reporter = reporting.Nop{}
	}
	return &HTTPClient{
		service: service,
		cfg:     cfg,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		classifier: classifier,
		reporter:   reporter,
	}
}

// Service returns the integration name.
func (c *HTTPClient) Service() string {
	return c.service
}

// Do performs the request. Every failure, transport or API, is returned as
// a *classify.NormalizedError.
func (c *HTTPClient) Do(ctx context.Context, r Request) (*Response, error) {
	start := time.Now()
	resp, err := c.do(ctx, r)
	metrics.IntegrationLatency.WithLabelValues(c.service, "http").Observe(time.Since(start).Seconds())

	if err != nil {
		ne := c.classify(err)
		metrics.IntegrationCallsTotal.WithLabelValues(c.service, "http", ne.Category().String()).Inc()
		c.reporter.Report(ctx, ne)
		return nil, ne
	}
	metrics.IntegrationCallsTotal.WithLabelValues(c.service, "http", "success").Inc()
	return resp, nil
}

// classify feeds API replies to the classifier as their decoded body and
// everything else as the Go error.
func (c *HTTPClient) classify(err error) *classify.NormalizedError {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return c.classifier.Classify(apiErr.fields)
	}
	return c.classifier.Classify(err)
}

// PostJSON posts body and decodes the reply into out when out is non-nil.
func (c *HTTPClient) PostJSON(ctx context.Context, path string, body, out any) error {
	resp, err := c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := resp.Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", c.service, err)
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, r Request) (*Response, error) {
	var body io.Reader
	if r.Body != nil {
		data, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(r), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if r.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &apiError{fields: errorBody(resp.StatusCode, resp.Header, data)}
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func (c *HTTPClient) url(r Request) string {
	u := strings.TrimRight(c.cfg.BaseURL, "/")
	if r.Path != "" {
		u += "/" + strings.TrimLeft(r.Path, "/")
	}
	if len(r.Query) > 0 {
		u += "?" + r.Query.Encode()
	}
	return u
}

// apiError carries a non-2xx reply out of do. It is never returned to
// callers; Do replaces it with the NormalizedError.
type apiError struct {
	fields map[string]any
}

func (e *apiError) Error() string {
	return fmt.Sprintf("http %v: %v", e.fields["statusCode"], e.fields["message"])
}

// errorBody builds the error-shaped map for a failed reply. A nested
// "error" object is flattened onto the top level without replacing keys
// already present.
func errorBody(status int, header http.Header, body []byte) map[string]any {
	var fields map[string]any

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		fields = make(map[string]any)
		if text := strings.TrimSpace(string(body)); text != "" {
			if len(text) > maxMessageBytes {
				text = text[:maxMessageBytes]
			}
			fields["message"] = text
		}
	}
	// a JSON null body decodes without error into a nil map
	if fields == nil {
		fields = make(map[string]any)
	}

	switch nested := fields["error"].(type) {
	case map[string]any:
		for k, v := range nested {
			if _, ok := fields[k]; !ok {
				fields[k] = v
			}
		}
	case string:
		if _, ok := fields["message"]; !ok {
			fields["message"] = nested
		}
	}

	fields["statusCode"] = status
	if secs, ok := retryAfterSeconds(header.Get("Retry-After")); ok {
		fields["retry_after"] = secs
	}
	return fields
}

// retryAfterSeconds parses delay-seconds or an HTTP date.
func retryAfterSeconds(v string) (float64, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return float64(secs), true
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d.Seconds(), true
		}
	}
	return 0, false
}
