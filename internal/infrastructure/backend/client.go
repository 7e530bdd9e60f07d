package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dealerhub/internal/core/domain"
	"dealerhub/internal/core/ports"
	"dealerhub/pkg/circuitbreaker"
	"dealerhub/pkg/retry"
	"dealerhub/pkg/tracing"

	"go.uber.org/zap"
)

// Responses above this size are refused rather than cut short.
const maxResponseBytes = 10 << 20

// ErrUnavailable wraps transport failures talking to the backend.
var ErrUnavailable = errors.New("backend unavailable")

// errServerStatus marks 5xx responses so they count against the breaker
// and are retried. It never leaves this package.
var errServerStatus = errors.New("backend server error")

type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
	Retry   retry.Policy
	Breaker circuitbreaker.Config

	// OnBreakerState is told about every circuit transition. Optional.
	OnBreakerState func(name string, state circuitbreaker.State)
}

// Client talks to the backend REST API through a circuit breaker.
// Idempotent requests are retried with backoff.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	retry   retry.Policy
	breaker *circuitbreaker.Breaker
	logger  *zap.SugaredLogger
}

func NewClient(cfg ClientConfig, logger *zap.SugaredLogger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid backend base url %q", cfg.BaseURL)
	}

	policy := cfg.Retry
	policy.Retryable = func(err error) bool {
		return !errors.Is(err, circuitbreaker.ErrOpen) &&
			!errors.Is(err, context.Canceled) &&
			(errors.Is(err, ErrUnavailable) || errors.Is(err, errServerStatus))
	}

	breakerCfg := cfg.Breaker
	breakerCfg.IsFailure = func(err error) bool {
		return errors.Is(err, ErrUnavailable) || errors.Is(err, errServerStatus)
	}
	breaker := circuitbreaker.New(breakerCfg)
	breaker.OnStateChange(func(name string, from, to circuitbreaker.State) {
		logger.Warnw("backend circuit breaker state changed",
			"breaker", name,
			"from", from.String(),
			"to", to.String(),
		)
		if cfg.OnBreakerState != nil {
			cfg.OnBreakerState(name, to)
		}
	})

	return &Client{
		baseURL: base,
		http:    &http.Client{Timeout: cfg.Timeout},
		retry:   policy,
		breaker: breaker,
		logger:  logger,
	}, nil
}

// Breaker exposes the circuit for health and metrics reporting.
func (c *Client) Breaker() *circuitbreaker.Breaker {
	return c.breaker
}

// Forward sends req with req.Token as bearer credential. Any HTTP
// response, 5xx included, comes back as a response; errors are transport
// failures (ErrUnavailable) or circuitbreaker.ErrOpen.
func (c *Client) Forward(ctx context.Context, req *ports.UpstreamRequest) (*ports.UpstreamResponse, error) {
	ctx, span := tracing.TraceUpstreamCall(ctx, req.Method, req.Path)
	defer span.End()

	var last *ports.UpstreamResponse
	call := func(ctx context.Context) error {
		return c.breaker.Do(ctx, func(ctx context.Context) error {
			resp, err := c.send(ctx, req)
			if err != nil {
				return err
			}
			last = resp
			if resp.StatusCode >= http.StatusInternalServerError {
				return fmt.Errorf("%w: status %d", errServerStatus, resp.StatusCode)
			}
			return nil
		})
	}

	var err error
	if idempotent(req.Method) {
		err = retry.Do(ctx, c.retry, call)
	} else {
		err = call(ctx)
	}

	if err != nil && errors.Is(err, errServerStatus) && last != nil {
		return last, nil
	}
	if err != nil {
		tracing.RecordError(ctx, err)
		c.logger.Warnw("backend request failed",
			"method", req.Method,
			"path", req.Path,
			"error", err,
		)
		return nil, err
	}
	return last, nil
}

func (c *Client) send(ctx context.Context, req *ports.UpstreamRequest) (*ports.UpstreamResponse, error) {
	target := *c.baseURL
	target.Path = c.baseURL.Path + "/" + strings.TrimLeft(req.Path, "/")
	target.RawQuery = req.RawQuery

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target.String(), body)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to build backend request: %w", err))
	}
	for k, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}
	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}
	if len(data) > maxResponseBytes {
		return nil, retry.Permanent(fmt.Errorf("%w: more than %d bytes from %s %s",
			domain.ErrResponseTooLarge, maxResponseBytes, req.Method, req.Path))
	}

	return &ports.UpstreamResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       data,
	}, nil
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}
