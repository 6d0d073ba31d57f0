package mock

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Scenario enumerates the replies the mock transport can produce.
type Scenario string

const (
	ScenarioSuccess         Scenario = "success"
	ScenarioMultipart       Scenario = "multipart"
	ScenarioDeliveryFailure Scenario = "delivery_failure"
	ScenarioThrottled       Scenario = "throttled"
	ScenarioMalformed       Scenario = "malformed"
	ScenarioTimeout         Scenario = "timeout"
)

// Call records one Exec invocation.
type Call struct {
	Endpoint string
	Params   map[string]string
}

// Option customises the mock transport.
type Option func(*Transport)

// WithScenario sets the scenario used when no keyword override matches.
func WithScenario(s Scenario) Option {
	return func(t *Transport) {
		t.defaultScenario = s
	}
}

// WithKeywordScenario makes requests carrying keyword (case-insensitive)
// follow scenario s.
func WithKeywordScenario(keyword string, s Scenario) Option {
	return func(t *Transport) {
		t.byKeyword[strings.ToLower(strings.TrimSpace(keyword))] = s
	}
}

// WithLatency configures the artificial latency injected before replying.
func WithLatency(d time.Duration) Option {
	return func(t *Transport) {
		if d < 0 {
			d = 0
		}
		t.latency = d
	}
}

// Transport is a deterministic stand-in for the provider used in development
// and tests. It implements shortcode.Transport.
type Transport struct {
	logger          zerolog.Logger
	defaultScenario Scenario
	byKeyword       map[string]Scenario
	latency         time.Duration

	mu    sync.Mutex
	seq   int
	calls []Call
}

// NewTransport constructs a mock transport.
func NewTransport(logger zerolog.Logger, opts ...Option) *Transport {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	t := &Transport{
		logger:          logger,
		defaultScenario: ScenarioSuccess,
		byKeyword:       map[string]Scenario{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// Exec returns a canned provider reply for the selected scenario.
func (t *Transport) Exec(ctx context.Context, endpoint string, params map[string]string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.seq++
	seq := t.seq
	t.calls = append(t.calls, Call{Endpoint: endpoint, Params: copyParams(params)})
	t.mu.Unlock()

	scenario := t.defaultScenario
	if s, ok := t.byKeyword[strings.ToLower(strings.TrimSpace(params["keyword"]))]; ok {
		scenario = s
	}

	if scenario == ScenarioTimeout {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	if t.latency > 0 {
		timer := time.NewTimer(t.latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	t.logger.Debug().
		Str("endpoint", endpoint).
		Str("scenario", string(scenario)).
		Msg("mock transport: replying")

	to := params["to"]
	switch scenario {
	case ScenarioSuccess:
		return reply(part(seq, 1, to, 0, "")), nil
	case ScenarioMultipart:
		return reply(part(seq, 1, to, 0, ""), part(seq, 2, to, 0, "")), nil
	case ScenarioDeliveryFailure:
		return reply(part(seq, 1, to, 3, "Invalid to address")), nil
	case ScenarioThrottled:
		return reply(part(seq, 1, to, 1, "Throughput Rate Exceeded")), nil
	case ScenarioMalformed:
		return map[string]any{"messages": []any{}}, nil
	default:
		return nil, fmt.Errorf("mock transport: unknown scenario %q", scenario)
	}
}

// Calls returns a snapshot of the recorded invocations.
func (t *Transport) Calls() []Call {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Call(nil), t.calls...)
}

func reply(parts ...map[string]any) map[string]any {
	messages := make([]any, 0, len(parts))
	for _, p := range parts {
		messages = append(messages, p)
	}
	return map[string]any{
		"message-count": fmt.Sprint(len(parts)),
		"messages":      messages,
	}
}

func part(seq, n int, to string, status int, errorText string) map[string]any {
	p := map[string]any{
		"status":            fmt.Sprint(status),
		"message-id":        fmt.Sprintf("MOCK%06d-%d", seq, n),
		"to":                to,
		"remaining-balance": "10.00",
		"message-price":     "0.03",
	}
	if errorText != "" {
		p["error-text"] = errorText
	}
	return p
}

func copyParams(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
