package marketing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	common "github.com/ajayykmr/shortcode-marketing-go/internal/adapters/common"
	"github.com/ajayykmr/shortcode-marketing-go/internal/metrics"
	"github.com/ajayykmr/shortcode-marketing-go/internal/models"
	"github.com/ajayykmr/shortcode-marketing-go/internal/shortcode"
)

// Provider status values reported on ProviderResponse.Status.
const (
	StatusOK          = "ok"
	StatusRejected    = "rejected"
	StatusRateLimited = "rate_limited"
	StatusFailed      = "failed"
)

// Sender is the behaviour the adapter needs from shortcode.Sender.
type Sender interface {
	Send(ctx context.Context, from, keyword, to, text string) (*shortcode.SendResponse, error)
}

// Option modifies adapter behaviour.
type Option func(*Adapter)

// WithRawBodyLimit overrides how much of the provider reply to keep in responses.
func WithRawBodyLimit(limit int) Option {
	return func(a *Adapter) {
		if limit > 0 {
			a.maxRawChars = limit
		}
	}
}

// WithMetrics records send outcomes on rec.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(a *Adapter) {
		a.metrics = rec
	}
}

// WithClock overrides the clock used for latency measurements.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) {
		if now != nil {
			a.now = now
		}
	}
}

// Adapter implements common.Adapter for shared short-code marketing SMS.
type Adapter struct {
	logger      zerolog.Logger
	sender      Sender
	metrics     *metrics.Recorder
	maxRawChars int
	now         func() time.Time
}

// NewAdapter constructs a marketing SMS adapter on top of sender.
func NewAdapter(sender Sender, logger zerolog.Logger, opts ...Option) (*Adapter, error) {
	if sender == nil {
		return nil, errors.New("marketing adapter: sender dependency is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	a := &Adapter{
		logger:      logger,
		sender:      sender,
		maxRawChars: common.DefaultRawBodyLimit,
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a, nil
}

// Send delivers the validated request and classifies any failure as
// transient or permanent. Context cancellation is returned unwrapped.
func (a *Adapter) Send(ctx context.Context, msg *common.ValidatedMessage) (*common.ProviderResponse, error) {
	if msg == nil || msg.Request == nil {
		return nil, common.WrapPermanent(errors.New("marketing adapter: message request is nil"))
	}
	req, ok := msg.Request.(*models.MarketingRequest)
	if !ok {
		return nil, common.WrapPermanent(fmt.Errorf("marketing adapter: expected *models.MarketingRequest, got %T", msg.Request))
	}

	done := a.metrics.TrackInFlight()
	start := a.now()
	resp, err := a.sender.Send(ctx, req.From, req.Keyword, req.To, req.Text)
	elapsed := a.now().Sub(start)
	done()

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			a.metrics.ObserveSend("cancelled", elapsed)
			return nil, err
		}

		status, classified := classify(err)
		a.metrics.ObserveSend(status, elapsed)

		out := a.buildErrorResponse(err, status)
		a.logger.Warn().
			Str("message_id", msg.MessageID).
			Str("channel", models.ChannelMarketingSMS).
			Str("provider_status", status).
			Dur("duration", elapsed).
			Err(err).
			Msg("marketing adapter send failed")
		return out, classified
	}

	a.metrics.ObserveSend("sent", elapsed)
	out := a.buildSuccessResponse(resp)
	a.logger.Debug().
		Str("message_id", msg.MessageID).
		Str("channel", models.ChannelMarketingSMS).
		Str("provider_ids", out.Meta["provider_ids"]).
		Dur("duration", elapsed).
		Msg("marketing adapter send succeeded")
	return out, nil
}

func (a *Adapter) buildSuccessResponse(resp *shortcode.SendResponse) *common.ProviderResponse {
	meta := map[string]string{
		"message_count": strconv.Itoa(resp.MessageCount),
	}
	if ids := resp.MessageIDs(); len(ids) > 0 {
		meta["provider_ids"] = strings.Join(ids, ",")
	}
	if n := len(resp.Messages); n > 0 {
		last := resp.Messages[n-1]
		if last.RemainingBalance != "" {
			meta["remaining_balance"] = last.RemainingBalance
		}
		if last.Network != "" {
			meta["network"] = last.Network
		}
	}

	code := shortcode.StatusSuccess
	return &common.ProviderResponse{
		Status:  StatusOK,
		Code:    &code,
		Message: "sent",
		Raw:     a.truncateRaw(resp),
		Meta:    meta,
	}
}

func (a *Adapter) buildErrorResponse(err error, status string) *common.ProviderResponse {
	out := &common.ProviderResponse{
		Status:  status,
		Message: err.Error(),
	}

	var dErr *shortcode.DeliveryError
	var codeErr interface{ StatusCode() int }
	switch {
	case errors.As(err, &dErr):
		code := dErr.Status
		out.Code = &code
		if text := shortcode.StatusText(dErr.Status); text != "" {
			out.Meta = map[string]string{"provider_status_text": text}
		}
	case errors.As(err, &codeErr):
		code := codeErr.StatusCode()
		out.Code = &code
		out.Meta = map[string]string{"http_status": strconv.Itoa(code)}
	}
	return out
}

func (a *Adapter) truncateRaw(resp *shortcode.SendResponse) string {
	raw, err := json.Marshal(resp)
	if err != nil {
		return ""
	}
	return common.TruncateRaw(string(raw), a.maxRawChars)
}

// classify maps a send error to a provider status and wraps it as transient
// or permanent.
func classify(err error) (string, error) {
	var vErr *shortcode.ValidationError
	var pErr *shortcode.ProtocolError
	var dErr *shortcode.DeliveryError
	var codeErr interface{ StatusCode() int }

	switch {
	case errors.As(err, &vErr):
		return StatusRejected, common.WrapPermanent(err)
	case errors.As(err, &pErr):
		return StatusFailed, common.WrapPermanent(err)
	case errors.As(err, &dErr):
		if dErr.Temporary() {
			return StatusRateLimited, common.WrapTransient(err)
		}
		return StatusRejected, common.WrapPermanent(err)
	case errors.As(err, &codeErr):
		code := codeErr.StatusCode()
		switch {
		case code == http.StatusTooManyRequests, code >= http.StatusInternalServerError:
			return StatusRateLimited, common.WrapTransient(err)
		case code >= http.StatusBadRequest:
			return StatusRejected, common.WrapPermanent(err)
		}
	}
	return StatusFailed, common.WrapTransient(err)
}
