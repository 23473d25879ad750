package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
)

const (
	defaultAPIVersion = "2024-10"
	defaultTimeout    = 10 * time.Second
	accessTokenHeader = "X-Shopify-Storefront-Access-Token"
)

// BreakerConfig tunes the circuit breaker around the Storefront API.
type BreakerConfig struct {
	ConsecutiveFailures uint32
	ErrorRatePercent    int
	OpenTimeout         time.Duration
}

// Config holds the Storefront API connection settings. Domain and Token are
// injected by the hosting layer; a client constructed with either missing is
// valid but fails every call fast with ErrNotConfigured.
type Config struct {
	// Domain is the store host, e.g. "my-shop.myshopify.com". A
	// scheme-qualified value is used verbatim as the endpoint (tests).
	Domain     string
	Token      string
	APIVersion string
	// Timeout bounds each remote call; the in-flight request is cancelled
	// when it elapses.
	Timeout time.Duration
	Breaker BreakerConfig
}

// Client executes GraphQL documents against the Storefront API. It is
// stateless and safe for concurrent use; it never retries.
type Client struct {
	endpoint   string
	token      string
	configured bool
	timeout    time.Duration
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	logger     *slog.Logger
}

// New creates a Client from explicit configuration. There is no package-level
// client: every consumer receives one by dependency passing.
func New(cfg Config, logger *slog.Logger) *Client {
	version := cfg.APIVersion
	if version == "" {
		version = defaultAPIVersion
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	endpoint := ""
	if cfg.Domain != "" {
		if strings.Contains(cfg.Domain, "://") {
			endpoint = cfg.Domain
		} else {
			endpoint = fmt.Sprintf("https://%s/api/%s/graphql.json", cfg.Domain, version)
		}
	}

	return &Client{
		endpoint:   endpoint,
		token:      cfg.Token,
		configured: cfg.Domain != "" && cfg.Token != "",
		timeout:    timeout,
		httpClient: &http.Client{},
		breaker:    newBreaker(cfg.Breaker),
		logger:     logger.With("component", "shopify"),
	}
}

// Configured reports whether the client has a domain and token to work with.
func (c *Client) Configured() bool {
	return c.configured
}

func newBreaker(cfg BreakerConfig) *gobreaker.CircuitBreaker[*http.Response] {
	consecutive := cfg.ConsecutiveFailures
	if consecutive == 0 {
		consecutive = 5
	}
	ratePercent := cfg.ErrorRatePercent
	if ratePercent == 0 {
		ratePercent = 50
	}
	openTimeout := cfg.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}
	st := gobreaker.Settings{
		Name:        "storefront-api-cb",
		MaxRequests: 3,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > consecutive ||
				(counts.TotalSuccesses+counts.TotalFailures > consecutive &&
					float64(counts.TotalFailures)/float64(counts.TotalSuccesses+counts.TotalFailures)*100 > float64(ratePercent))
		},
		// Business rejections arrive inside 2xx responses and never reach
		// the breaker; everything that errors here is a system failure.
	}
	return gobreaker.NewCircuitBreaker[*http.Response](st)
}

// do posts a GraphQL document and decodes the data envelope into out.
// Error mapping: envelope `errors` -> ErrRemoteRejected, non-2xx and network
// failures -> ErrTransport, deadline -> ErrTimeout.
func (c *Client) do(ctx context.Context, operation, query string, variables map[string]any, out any) error {
	if !c.configured {
		return fmt.Errorf("%s: %w", operation, ErrNotConfigured)
	}

	body, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", operation, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(accessTokenHeader, c.token)

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("unexpected status %d: %w", resp.StatusCode, ErrTransport)
		}
		return resp, nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", operation, classifyCallError(err))
	}
	defer func() { _ = resp.Body.Close() }()

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphQLError  `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("%s: decode response: %w", operation, ErrTransport)
	}
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	if len(envelope.Errors) > 0 {
		c.logger.Warn("GraphQL errors in response", "operation", operation, "message", envelope.Errors[0].Message)
		return fmt.Errorf("%s: %s: %w", operation, envelope.Errors[0].Message, ErrRemoteRejected)
	}
	if envelope.Data == nil {
		return fmt.Errorf("%s: response has no data: %w", operation, ErrTransport)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("%s: decode data: %w", operation, ErrTransport)
	}
	return nil
}

// classifyCallError maps a round-trip failure onto the gateway taxonomy.
func classifyCallError(err error) error {
	switch {
	case errors.Is(err, ErrTransport):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("circuit open: %w", ErrTransport)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	return fmt.Errorf("%v: %w", err, ErrTransport)
}

// firstUserError maps the mutation payload's userErrors to the taxonomy.
func firstUserError(errs []userError) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%s: %w", errs[0].Message, ErrRemoteRejected)
}
