package nexmo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ajayykmr/shortcode-marketing-go/internal/config"
	"github.com/ajayykmr/shortcode-marketing-go/internal/shortcode"
)

const (
	defaultBaseURL      = "https://rest.nexmo.com"
	defaultTimeout      = 30 * time.Second
	defaultMaxBodyBytes = 16 * 1024
)

// HTTPClient abstracts the http.Client Do method for easier testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPError is returned when the provider answers with a non-2xx status.
type HTTPError struct {
	Code int
	Body string
}

func (e *HTTPError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		body = http.StatusText(e.Code)
	}
	return fmt.Sprintf("nexmo transport: http %d: %s", e.Code, body)
}

// StatusCode exposes the HTTP status for error classification.
func (e *HTTPError) StatusCode() int { return e.Code }

// Option customises the transport.
type Option func(*Transport)

// WithHTTPClient overrides the HTTP client used to reach the provider.
func WithHTTPClient(client HTTPClient) Option {
	return func(t *Transport) {
		if client != nil {
			t.httpClient = client
		}
	}
}

// WithBaseURL sets the provider REST base URL. Useful for tests.
func WithBaseURL(baseURL string) Option {
	return func(t *Transport) {
		if trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/"); trimmed != "" {
			t.baseURL = trimmed
		}
	}
}

// WithBodyLimit adjusts how many bytes are read from a response body.
func WithBodyLimit(limit int64) Option {
	return func(t *Transport) {
		if limit > 0 {
			t.maxBodyBytes = limit
		}
	}
}

// WithRateLimit throttles outbound requests to perSecond with the given burst.
// A non-positive rate disables throttling.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(t *Transport) {
		if perSecond <= 0 {
			t.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// Transport posts form-encoded requests to the provider REST API and decodes
// the JSON reply. It implements shortcode.Transport.
type Transport struct {
	logger       zerolog.Logger
	apiKey       string
	apiSecret    string
	baseURL      string
	httpClient   HTTPClient
	limiter      *rate.Limiter
	maxBodyBytes int64
}

// NewTransport constructs a transport authenticated with the configured key
// and secret.
func NewTransport(cfg config.NexmoConfig, logger zerolog.Logger, opts ...Option) (*Transport, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("nexmo transport: api key is required")
	}
	if strings.TrimSpace(cfg.APISecret) == "" {
		return nil, errors.New("nexmo transport: api secret is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	t := &Transport{
		logger:       logger,
		apiKey:       strings.TrimSpace(cfg.APIKey),
		apiSecret:    strings.TrimSpace(cfg.APISecret),
		baseURL:      defaultBaseURL,
		httpClient:   &http.Client{Timeout: defaultTimeout},
		maxBodyBytes: defaultMaxBodyBytes,
	}
	WithBaseURL(cfg.BaseURL)(t)
	WithRateLimit(cfg.RateLimitPerSecond, cfg.RateBurst)(t)

	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t, nil
}

// Exec posts params to endpoint and returns the decoded JSON object.
func (t *Transport) Exec(ctx context.Context, endpoint string, params map[string]string) (map[string]any, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("nexmo transport: rate limit wait: %w", err)
		}
	}

	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}
	form.Set("api_key", t.apiKey)
	form.Set("api_secret", t.apiSecret)

	target := t.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("nexmo transport: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nexmo transport: http do: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("nexmo transport: read body: %w", err)
	}
	truncated := int64(len(body)) > t.maxBodyBytes
	if truncated {
		body = body[:t.maxBodyBytes]
	}

	t.logger.Debug().
		Str("endpoint", endpoint).
		Int("http_status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("nexmo transport: request completed")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{Code: resp.StatusCode, Body: string(body)}
	}

	if truncated {
		return nil, &shortcode.ProtocolError{Reason: fmt.Sprintf("response body exceeds %d bytes", t.maxBodyBytes)}
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, &shortcode.ProtocolError{Reason: fmt.Sprintf("response body is not valid JSON: %v", err)}
	}
	if out == nil {
		return nil, &shortcode.ProtocolError{Reason: "response body is not a JSON object"}
	}
	return out, nil
}
