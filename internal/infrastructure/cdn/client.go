package cdn

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"streamgate/internal/core/domain"
	"streamgate/pkg/circuitbreaker"
	"streamgate/pkg/retry"
	"streamgate/pkg/tracing"
)

const maxResponseBytes = 4 << 20

// CallObserver receives one observation per management API call.
type CallObserver interface {
	ObserveCDNCall(provider, operation, outcome string, duration time.Duration)
}

type nopCallObserver struct{}

func (nopCallObserver) ObserveCDNCall(string, string, string, time.Duration) {}

// ClientOptions tune the shared management API client.
type ClientOptions struct {
	Timeout      time.Duration
	MaxFailures  int
	ResetTimeout time.Duration
	RetryDelay   time.Duration
	HTTPClient   *http.Client
	Observer     CallObserver
}

// APIError describes a failed management API call. It unwraps to the domain error the
// failure maps to, so callers match it with errors.Is.
type APIError struct {
	Provider  string
	Operation string
	Status    int
	Message   string
	kind      error
	transient bool
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s %s: %v: %s", e.Provider, e.Operation, e.kind, e.Message)
	}
	return fmt.Sprintf("%s %s: %v: status %d: %s", e.Provider, e.Operation, e.kind, e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.kind
}

func isTransient(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.transient
}

// apiClient runs management calls with a timeout, one retry on transient failures and a
// circuit breaker that only counts transient failures.
type apiClient struct {
	provider string
	http     *http.Client
	retry    retry.Config
	breaker  *circuitbreaker.CircuitBreaker
	observer CallObserver
	logger   *zap.SugaredLogger
}

func newAPIClient(provider string, opts ClientOptions, logger *zap.SugaredLogger) *apiClient {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if opts.Timeout > 0 {
		clone := *httpClient
		clone.Timeout = opts.Timeout
		httpClient = &clone
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopCallObserver{}
	}

	retryCfg := retry.DefaultConfig()
	retryCfg.ShouldRetry = isTransient
	if opts.RetryDelay > 0 {
		retryCfg.InitialDelay = opts.RetryDelay
	}

	breakerCfg := circuitbreaker.DefaultConfig()
	breakerCfg.IsFailure = isTransient
	if opts.MaxFailures > 0 {
		breakerCfg.FailureThreshold = opts.MaxFailures
	}
	if opts.ResetTimeout > 0 {
		breakerCfg.Timeout = opts.ResetTimeout
	}
	breaker := circuitbreaker.New(breakerCfg)
	breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Warnw("cdn circuit breaker state changed", "provider", provider, "from", from.String(), "to", to.String())
	})

	return &apiClient{
		provider: provider,
		http:     httpClient,
		retry:    retryCfg,
		breaker:  breaker,
		observer: observer,
		logger:   logger,
	}
}

// request describes one management call. Header values are set verbatim.
type request struct {
	method  string
	url     string
	headers map[string]string
	body    interface{}
}

// do executes req and decodes a 2xx JSON body into out when out is non-nil.
func (c *apiClient) do(ctx context.Context, op string, req request, out interface{}) error {
	start := time.Now()
	ctx, span := tracing.TraceCDNCall(ctx, c.provider, op)
	defer span.End()

	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return retry.Retry(ctx, c.retry, func(ctx context.Context) error {
			return c.attempt(ctx, op, req, out)
		})
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		err = &APIError{Provider: c.provider, Operation: op, Message: "circuit breaker open", kind: domain.ErrUpstreamUnavailable}
	}
	if err != nil && ctx.Err() != nil {
		err = ctx.Err()
	}

	c.observer.ObserveCDNCall(c.provider, op, outcome(err), time.Since(start))
	if err != nil {
		tracing.RecordError(ctx, err)
		return err
	}
	return nil
}

func (c *apiClient) attempt(ctx context.Context, op string, req request, out interface{}) error {
	var body io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, req.url, body)
	if err != nil {
		return &APIError{Provider: c.provider, Operation: op, Message: err.Error(), kind: domain.ErrConfiguration}
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return &APIError{Provider: c.provider, Operation: op, Message: err.Error(), kind: domain.ErrUpstreamUnavailable, transient: true}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &APIError{Provider: c.provider, Operation: op, Status: resp.StatusCode, Message: err.Error(), kind: domain.ErrUpstreamUnavailable, transient: true}
	}

	if apiErr := c.classify(op, resp.StatusCode, data); apiErr != nil {
		return apiErr
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &APIError{Provider: c.provider, Operation: op, Status: resp.StatusCode, Message: "malformed response: " + err.Error(), kind: domain.ErrUpstreamUnavailable}
	}
	return nil
}

func (c *apiClient) classify(op string, status int, body []byte) *APIError {
	if status >= 200 && status < 300 {
		return nil
	}
	apiErr := &APIError{Provider: c.provider, Operation: op, Status: status, Message: snippet(body)}
	switch {
	case status == http.StatusNotFound:
		apiErr.kind = domain.ErrNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		apiErr.kind = domain.ErrConfiguration
	case status == http.StatusTooManyRequests || status >= 500:
		apiErr.kind = domain.ErrUpstreamUnavailable
		apiErr.transient = true
	default:
		apiErr.kind = domain.ErrInvalidInput
	}
	return apiErr
}

func snippet(body []byte) string {
	const limit = 256
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrConfiguration):
		return "configuration_error"
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
