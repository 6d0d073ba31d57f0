package marketing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	common "github.com/ajayykmr/shortcode-marketing-go/internal/adapters/common"
	"github.com/ajayykmr/shortcode-marketing-go/internal/config"
	"github.com/ajayykmr/shortcode-marketing-go/internal/metrics"
	"github.com/ajayykmr/shortcode-marketing-go/internal/models"
	"github.com/ajayykmr/shortcode-marketing-go/internal/providers/mock"
	"github.com/ajayykmr/shortcode-marketing-go/internal/providers/nexmo"
	"github.com/ajayykmr/shortcode-marketing-go/internal/shortcode"
)

type senderFunc func(ctx context.Context, from, keyword, to, text string) (*shortcode.SendResponse, error)

func (f senderFunc) Send(ctx context.Context, from, keyword, to, text string) (*shortcode.SendResponse, error) {
	return f(ctx, from, keyword, to, text)
}

type statusErr struct{ code int }

func (e *statusErr) Error() string   { return "http failure" }
func (e *statusErr) StatusCode() int { return e.code }

func validated(keyword string) *common.ValidatedMessage {
	return &common.ValidatedMessage{
		Channel:   models.ChannelMarketingSMS,
		MessageID: "6f1c7c8e-0e7a-4c55-9f39-3f0a5e4b2c11",
		Request: &models.MarketingRequest{
			From:    "12345",
			Keyword: keyword,
			To:      "447525856424",
			Text:    "Summer sale starts today",
		},
	}
}

func newMockAdapter(t *testing.T, opts ...mock.Option) (*Adapter, *mock.Transport) {
	t.Helper()
	tr := mock.NewTransport(zerolog.Nop(), opts...)
	sender, err := shortcode.NewSender(tr)
	require.NoError(t, err)
	a, err := NewAdapter(sender, zerolog.Nop(), WithMetrics(metrics.NewRecorder()))
	require.NoError(t, err)
	return a, tr
}

func TestNewAdapterRequiresSender(t *testing.T) {
	_, err := NewAdapter(nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestSendSuccess(t *testing.T) {
	a, tr := newMockAdapter(t, mock.WithScenario(mock.ScenarioMultipart))

	resp, err := a.Send(context.Background(), validated("SUMMER"))
	require.NoError(t, err)
	assert.Equal(t, StatusOK, resp.Status)
	require.NotNil(t, resp.Code)
	assert.Equal(t, shortcode.StatusSuccess, *resp.Code)
	assert.Equal(t, "2", resp.Meta["message_count"])
	assert.Equal(t, "MOCK000001-1,MOCK000001-2", resp.Meta["provider_ids"])
	assert.Equal(t, "10.00", resp.Meta["remaining_balance"])
	assert.Contains(t, resp.Raw, "MOCK000001-1")

	calls := tr.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "SUMMER", calls[0].Params["keyword"])
	assert.Equal(t, "12345", calls[0].Params["from"])
}

func TestSendDeliveryFailureIsPermanent(t *testing.T) {
	a, _ := newMockAdapter(t, mock.WithScenario(mock.ScenarioDeliveryFailure))

	resp, err := a.Send(context.Background(), validated("SUMMER"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrPermanent))
	assert.True(t, errors.Is(err, shortcode.ErrDelivery))
	require.NotNil(t, resp)
	assert.Equal(t, StatusRejected, resp.Status)
	require.NotNil(t, resp.Code)
	assert.Equal(t, shortcode.StatusInvalidParams, *resp.Code)
}

func TestSendThrottledIsTransient(t *testing.T) {
	a, _ := newMockAdapter(t, mock.WithScenario(mock.ScenarioThrottled))

	resp, err := a.Send(context.Background(), validated("SUMMER"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrTransient))
	assert.Equal(t, StatusRateLimited, resp.Status)
}

func TestSendMalformedIsPermanent(t *testing.T) {
	a, _ := newMockAdapter(t, mock.WithScenario(mock.ScenarioMalformed))

	resp, err := a.Send(context.Background(), validated("SUMMER"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrPermanent))
	assert.True(t, errors.Is(err, shortcode.ErrProtocol))
	assert.Equal(t, StatusFailed, resp.Status)
}

func TestSendUndecodableProviderReplyIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message-count":"1","messages":[{"sta`))
	}))
	t.Cleanup(server.Close)

	tr, err := nexmo.NewTransport(config.NexmoConfig{APIKey: "key", APISecret: "secret", BaseURL: server.URL}, zerolog.Nop(),
		nexmo.WithHTTPClient(server.Client()))
	require.NoError(t, err)
	sender, err := shortcode.NewSender(tr)
	require.NoError(t, err)
	a, err := NewAdapter(sender, zerolog.Nop())
	require.NoError(t, err)

	resp, err := a.Send(context.Background(), validated("SUMMER"))
	assert.True(t, errors.Is(err, common.ErrPermanent), "got %v", err)
	assert.True(t, errors.Is(err, shortcode.ErrProtocol))
	assert.Equal(t, StatusFailed, resp.Status)
}

func TestSendBlankFieldIsPermanent(t *testing.T) {
	a, tr := newMockAdapter(t)

	_, err := a.Send(context.Background(), validated(""))
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrPermanent))
	assert.True(t, errors.Is(err, shortcode.ErrValidation))
	assert.Empty(t, tr.Calls())
}

func TestSendContextErrorReturnedAsIs(t *testing.T) {
	a, _ := newMockAdapter(t, mock.WithScenario(mock.ScenarioTimeout))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	resp, err := a.Send(ctx, validated("SUMMER"))
	assert.Nil(t, resp)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.False(t, errors.Is(err, common.ErrTransient))
	assert.False(t, errors.Is(err, common.ErrPermanent))
}

func TestSendHTTPStatusClassification(t *testing.T) {
	cases := []struct {
		name   string
		code   int
		class  error
		status string
	}{
		{name: "too many requests", code: http.StatusTooManyRequests, class: common.ErrTransient, status: StatusRateLimited},
		{name: "server error", code: http.StatusBadGateway, class: common.ErrTransient, status: StatusRateLimited},
		{name: "unauthorized", code: http.StatusUnauthorized, class: common.ErrPermanent, status: StatusRejected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a, err := NewAdapter(senderFunc(func(context.Context, string, string, string, string) (*shortcode.SendResponse, error) {
				return nil, &statusErr{code: tc.code}
			}), zerolog.Nop())
			require.NoError(t, err)

			resp, err := a.Send(context.Background(), validated("SUMMER"))
			assert.True(t, errors.Is(err, tc.class), "got %v", err)
			assert.Equal(t, tc.status, resp.Status)
			require.NotNil(t, resp.Code)
			assert.Equal(t, tc.code, *resp.Code)
		})
	}
}

func TestSendUnknownErrorIsTransient(t *testing.T) {
	a, err := NewAdapter(senderFunc(func(context.Context, string, string, string, string) (*shortcode.SendResponse, error) {
		return nil, errors.New("connection reset")
	}), zerolog.Nop())
	require.NoError(t, err)

	_, err = a.Send(context.Background(), validated("SUMMER"))
	assert.True(t, errors.Is(err, common.ErrTransient))
}

func TestSendRejectsUnexpectedRequest(t *testing.T) {
	a, _ := newMockAdapter(t)

	_, err := a.Send(context.Background(), nil)
	assert.True(t, errors.Is(err, common.ErrPermanent))

	_, err = a.Send(context.Background(), &common.ValidatedMessage{Request: "not a request"})
	assert.True(t, errors.Is(err, common.ErrPermanent))
}

func TestRawBodyLimit(t *testing.T) {
	tr := mock.NewTransport(zerolog.Nop())
	sender, err := shortcode.NewSender(tr)
	require.NoError(t, err)
	a, err := NewAdapter(sender, zerolog.Nop(), WithRawBodyLimit(10))
	require.NoError(t, err)

	resp, err := a.Send(context.Background(), validated("SUMMER"))
	require.NoError(t, err)
	assert.Len(t, resp.Raw, 10)
	assert.True(t, strings.HasPrefix(resp.Raw, "{"))
}
