package shortcode_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajayykmr/shortcode-marketing-go/internal/shortcode"
)

type transportStub struct {
	calls    int
	endpoint string
	params   map[string]string
	reply    map[string]any
	err      error
}

func (s *transportStub) Exec(_ context.Context, endpoint string, params map[string]string) (map[string]any, error) {
	s.calls++
	s.endpoint = endpoint
	s.params = params
	return s.reply, s.err
}

func okReply() map[string]any {
	return map[string]any{
		"message-count": 1,
		"messages":      []any{map[string]any{"status": 0, "message-id": "0A0000001"}},
	}
}

func TestNewSenderRequiresTransport(t *testing.T) {
	_, err := shortcode.NewSender(nil)
	require.Error(t, err)
}

func TestSendRejectsBlankFields(t *testing.T) {
	cases := []struct {
		name    string
		from    string
		keyword string
		to      string
		text    string
		field   string
	}{
		{name: "from", from: "", keyword: "promo", to: "447525856424", text: "Hello", field: "from"},
		{name: "keyword", from: "1234", keyword: "", to: "447525856424", text: "Hello", field: "keyword"},
		{name: "to", from: "1234", keyword: "promo", to: "", text: "Hello", field: "to"},
		{name: "text", from: "1234", keyword: "promo", to: "447525856424", text: "", field: "text"},
		{name: "all blank reports from first", field: "from"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			transport := &transportStub{reply: okReply()}
			sender, err := shortcode.NewSender(transport)
			require.NoError(t, err)

			_, err = sender.Send(context.Background(), tc.from, tc.keyword, tc.to, tc.text)
			require.Error(t, err)

			var vErr *shortcode.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tc.field, vErr.Field)
			assert.Equal(t, tc.field+" cannot be blank", err.Error())
			assert.ErrorIs(t, err, shortcode.ErrValidation)
			assert.Zero(t, transport.calls, "transport must not be called")
		})
	}
}

func TestSendPassesWhitespaceFieldsThrough(t *testing.T) {
	transport := &transportStub{reply: okReply()}
	sender, err := shortcode.NewSender(transport)
	require.NoError(t, err)

	_, err = sender.Send(context.Background(), "1234", "0", "447525856424", "   ")
	require.NoError(t, err)
	assert.Equal(t, 1, transport.calls)
	assert.Equal(t, "0", transport.params["keyword"])
	assert.Equal(t, "   ", transport.params["text"])
}

func TestSendBuildsRequestBody(t *testing.T) {
	transport := &transportStub{reply: okReply()}
	sender, err := shortcode.NewSender(transport)
	require.NoError(t, err)

	resp, err := sender.Send(context.Background(), "1234", "promo", "447525856424", "Hello")
	require.NoError(t, err)

	assert.Equal(t, 1, transport.calls)
	assert.Equal(t, "sc/us/marketing/json", transport.endpoint)
	assert.Equal(t, map[string]string{
		"from":    "1234",
		"keyword": "promo",
		"to":      "447525856424",
		"text":    "Hello",
	}, transport.params)

	require.NotNil(t, resp)
	assert.Equal(t, 1, resp.MessageCount)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, 0, resp.Messages[0].Status)
	assert.Equal(t, []string{"0A0000001"}, resp.MessageIDs())
}

func TestSendWrapsTransportError(t *testing.T) {
	boom := errors.New("connection reset")
	sender, err := shortcode.NewSender(&transportStub{err: boom})
	require.NoError(t, err)

	_, err = sender.Send(context.Background(), "1234", "promo", "447525856424", "Hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, shortcode.ErrProtocol)
}

func TestSendSurfacesDeliveryError(t *testing.T) {
	transport := &transportStub{reply: map[string]any{
		"message-count": "1",
		"messages":      []any{map[string]any{"status": "1", "error-text": "Throughput Rate Exceeded"}},
	}}
	sender, err := shortcode.NewSender(transport)
	require.NoError(t, err)

	_, err = sender.Send(context.Background(), "1234", "promo", "447525856424", "Hello")

	var dErr *shortcode.DeliveryError
	require.ErrorAs(t, err, &dErr)
	assert.Equal(t, shortcode.StatusThrottled, dErr.Status)
	assert.True(t, dErr.Temporary())
}
