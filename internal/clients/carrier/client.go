package carrier

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"hubon-pickup/internal/config"
	"hubon-pickup/internal/services/circuitbreaker"
	"hubon-pickup/internal/services/signer"
	"hubon-pickup/pkg/errors"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

const maxResponseBytes = 4 << 20

// Recorder receives per-operation call metrics.
type Recorder interface {
	RecordCarrierCall(operation, outcome string, duration time.Duration)
	RecordCarrierRetry(operation string)
}

// Tracer wraps a call in a span.
type Tracer interface {
	Trace(ctx context.Context, name string, attrs map[string]string, fn func(context.Context) error) error
}

// Client calls the HubOn external API. Every attempt is signed with a fresh
// timestamp, so a retried request never reuses a stale signature.
type Client struct {
	httpClient *http.Client
	baseURL    string
	clientID   string
	signer     signer.Signer
	breaker    *circuitbreaker.CircuitBreaker
	maxRetries int
	backoff    []time.Duration
	metrics    Recorder
	tracer     Tracer
	logger     *zap.Logger
	now        func() time.Time
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithClock replaces time.Now for request timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func NewClient(
	cfg config.CarrierConfig,
	s signer.Signer,
	breaker *circuitbreaker.CircuitBreaker,
	metrics Recorder,
	tracer Tracer,
	logger *zap.Logger,
	opts ...Option,
) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		baseURL:    cfg.APIURL,
		clientID:   cfg.ClientID,
		signer:     s,
		breaker:    breaker,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.RetryBackoff,
		metrics:    metrics,
		tracer:     tracer,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// call describes one logical API operation.
type call struct {
	operation string
	method    string
	path      string
	query     string
	apiKey    string // empty sends the request unsigned
	body      interface{}
	// single disables retries for calls that are not safe to repeat.
	single bool
}

func (c *Client) do(ctx context.Context, req call, out interface{}) error {
	var body []byte
	if req.body != nil {
		var err error
		body, err = json.Marshal(req.body)
		if err != nil {
			return errors.WrapDomainError(err, errors.CodeInternal, "carrier request failed", "failed to marshal request body")
		}
	}

	url := c.baseURL + req.path
	if req.query != "" {
		url += "?" + req.query
	}

	start := time.Now()
	err := c.trace(ctx, req, func(ctx context.Context) error {
		return c.withRetry(ctx, req, url, body, out)
	})
	if c.metrics != nil {
		c.metrics.RecordCarrierCall(req.operation, outcome(err), time.Since(start))
	}
	return err
}

func (c *Client) trace(ctx context.Context, req call, fn func(context.Context) error) error {
	if c.tracer == nil {
		return fn(ctx)
	}
	return c.tracer.Trace(ctx, "carrier."+req.operation, map[string]string{
		"http.method": req.method,
		"http.path":   req.path,
	}, fn)
}

func (c *Client) withRetry(ctx context.Context, req call, url string, body []byte, out interface{}) error {
	logger := c.logger.With(
		zap.String("operation", req.operation),
		zap.String("key_fp", KeyFingerprint(req.apiKey)),
	)

	maxRetries := c.maxRetries
	if req.single {
		maxRetries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			if c.metrics != nil {
				c.metrics.RecordCarrierRetry(req.operation)
			}
			if err := sleep(ctx, c.backoffFor(attempt)); err != nil {
				return errors.WrapDomainError(err, errors.CodeUnavailable, "carrier request cancelled", "context done while backing off")
			}
		}

		lastErr = c.breaker.Execute(ctx, func(ctx context.Context) error {
			return c.attempt(ctx, req, url, body, out)
		})
		if lastErr == nil {
			return nil
		}
		lastErr = translateBreakerError(lastErr)

		if !isRetryable(lastErr) || attempt == maxRetries {
			break
		}
		logger.Warn("carrier call failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Error(lastErr),
		)
	}

	logger.Error("carrier call failed", zap.Error(lastErr))
	return lastErr
}

func (c *Client) backoffFor(attempt int) time.Duration {
	if len(c.backoff) == 0 {
		return 0
	}
	if attempt-1 < len(c.backoff) {
		return c.backoff[attempt-1]
	}
	return c.backoff[len(c.backoff)-1]
}

func (c *Client) attempt(ctx context.Context, req call, url string, body []byte, out interface{}) error {
	sigReq := signer.NewSignatureRequest(req.method, url, string(body), req.apiKey, c.now())

	var headers http.Header
	if req.apiKey != "" {
		signature, err := c.signer.Sign(sigReq)
		if err != nil {
			return err
		}
		headers = signer.Headers(sigReq, signature, c.clientID)
	} else {
		headers = make(http.Header, 3)
		headers.Set(signer.HeaderContentType, "application/json")
		headers.Set(signer.HeaderRequestDate, sigReq.Timestamp)
		headers.Set(signer.HeaderClientID, c.clientID)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, sigReq.Method, url, reader)
	if err != nil {
		return errors.WrapDomainError(err, errors.CodeInternal, "carrier request failed", "failed to create request")
	}
	httpReq.Header = headers

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return errors.WrapDomainError(ctx.Err(), errors.CodeUnavailable, "carrier request cancelled", err.Error())
		}
		return errors.WrapDomainError(err, errors.CodeCarrierFailure, "carrier request failed", "http request failed").WithRetryable(true)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return errors.WrapDomainError(err, errors.CodeCarrierFailure, "carrier request failed", "failed to read response").WithRetryable(true)
	}

	if err := statusError(resp.StatusCode, raw); err != nil {
		return err
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.WrapDomainError(err, errors.CodeCarrierFailure, "carrier response invalid", "failed to decode response").WithRawBody(raw)
	}
	return nil
}

// statusError maps a non-2xx carrier status to a DomainError carrying the
// response body unchanged.
func statusError(status int, raw []byte) error {
	details := fmt.Sprintf("unexpected status: %d", status)
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.NewDomainError(errors.CodeCarrierAuth, "carrier rejected credentials", details).WithRawBody(raw)
	case status == http.StatusNotFound:
		return errors.NewDomainError(errors.CodeNotFound, "not found", details).WithRawBody(raw)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return errors.NewDomainError(errors.CodeValidation, "carrier rejected request", details).WithRawBody(raw)
	case status >= 500:
		return errors.NewDomainError(errors.CodeCarrierFailure, "carrier request failed", details).WithRawBody(raw).WithRetryable(true)
	default:
		return errors.NewDomainError(errors.CodeCarrierFailure, "carrier request failed", details).WithRawBody(raw)
	}
}

// translateBreakerError wraps breaker rejections and context errors, the only
// plain errors Execute can return.
func translateBreakerError(err error) error {
	if errors.IsDomainError(err) {
		return err
	}
	if err == circuitbreaker.ErrCircuitBreakerOpen || err == circuitbreaker.ErrCircuitBreakerHalfOpen {
		return errors.WrapDomainError(err, errors.CodeUnavailable, "carrier unavailable", err.Error())
	}
	return errors.WrapDomainError(err, errors.CodeUnavailable, "carrier request cancelled", err.Error())
}

func isRetryable(err error) bool {
	domainErr, ok := errors.As(err)
	return ok && domainErr.Retryable
}

// IsBreakerFailure reports whether err should count against the carrier
// circuit breaker. Only retryable upstream failures do.
func IsBreakerFailure(err error) bool {
	return isRetryable(err)
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	if domainErr, ok := errors.As(err); ok {
		switch domainErr.Code {
		case errors.CodeCarrierAuth:
			return "unauthorized"
		case errors.CodeNotFound:
			return "not_found"
		case errors.CodeValidation:
			return "rejected"
		case errors.CodeUnavailable:
			return "unavailable"
		}
	}
	return "error"
}

// KeyFingerprint identifies an API key in logs without revealing it.
func KeyFingerprint(apiKey string) string {
	if apiKey == "" {
		return "none"
	}
	sum := blake2b.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:6])
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
