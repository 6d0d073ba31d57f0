package nexmo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajayykmr/shortcode-marketing-go/internal/config"
	"github.com/ajayykmr/shortcode-marketing-go/internal/shortcode"
)

func newTestTransport(t *testing.T, handler http.HandlerFunc, opts ...Option) *Transport {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts = append([]Option{WithHTTPClient(server.Client())}, opts...)
	tr, err := NewTransport(config.NexmoConfig{APIKey: "key", APISecret: "secret", BaseURL: server.URL}, zerolog.Nop(), opts...)
	require.NoError(t, err)
	return tr
}

func TestNewTransportRequiresCredentials(t *testing.T) {
	_, err := NewTransport(config.NexmoConfig{APISecret: "secret"}, zerolog.Nop())
	assert.Error(t, err)

	_, err = NewTransport(config.NexmoConfig{APIKey: "key"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestExecPostsFormAndDecodes(t *testing.T) {
	t.Parallel()
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/sc/us/marketing/json", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "key", r.PostForm.Get("api_key"))
		assert.Equal(t, "secret", r.PostForm.Get("api_secret"))
		assert.Equal(t, "1234", r.PostForm.Get("from"))
		assert.Equal(t, "promo", r.PostForm.Get("keyword"))
		assert.Equal(t, "447525856424", r.PostForm.Get("to"))
		assert.Equal(t, "Hello & welcome", r.PostForm.Get("text"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"message-count":"1","messages":[{"status":"0","message-id":"0A01"}]}`))
	})

	reply, err := tr.Exec(context.Background(), shortcode.Endpoint, map[string]string{
		"from": "1234", "keyword": "promo", "to": "447525856424", "text": "Hello & welcome",
	})
	require.NoError(t, err)
	assert.Equal(t, "1", reply["message-count"])

	resp, err := shortcode.ValidateResponse(reply)
	require.NoError(t, err)
	assert.Equal(t, []string{"0A01"}, resp.MessageIDs())
}

func TestExecWorksWithSender(t *testing.T) {
	t.Parallel()
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message-count":1,"messages":[{"status":4,"error-text":"Bad Credentials"}]}`))
	})

	sender, err := shortcode.NewSender(tr)
	require.NoError(t, err)

	_, err = sender.Send(context.Background(), "1234", "promo", "447525856424", "Hello")
	var dErr *shortcode.DeliveryError
	require.ErrorAs(t, err, &dErr)
	assert.Equal(t, shortcode.StatusInvalidCredentials, dErr.Status)
	assert.Equal(t, "Bad Credentials", dErr.ErrorText)
}

func TestExecNon2xxReturnsHTTPError(t *testing.T) {
	t.Parallel()
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`service down`))
	})

	_, err := tr.Exec(context.Background(), shortcode.Endpoint, nil)
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode())
	assert.Contains(t, err.Error(), "service down")
}

func TestExecMalformedJSON(t *testing.T) {
	t.Parallel()
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{broken`))
	})

	_, err := tr.Exec(context.Background(), shortcode.Endpoint, nil)
	var pErr *shortcode.ProtocolError
	require.ErrorAs(t, err, &pErr)
	assert.Contains(t, pErr.Reason, "not valid JSON")
}

func TestExecTruncatedBodyIsProtocolError(t *testing.T) {
	t.Parallel()
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message-count":"1","messages":[{"status":"0","message-id":"0A01"}]}`))
	}, WithBodyLimit(20))

	_, err := tr.Exec(context.Background(), shortcode.Endpoint, nil)
	var pErr *shortcode.ProtocolError
	require.ErrorAs(t, err, &pErr)
	assert.Contains(t, pErr.Reason, "exceeds 20 bytes")
}

func TestExecBodyAtLimitDecodes(t *testing.T) {
	t.Parallel()
	body := `{"message-count":1,"messages":[{"status":0}]}`
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}, WithBodyLimit(int64(len(body))))

	reply, err := tr.Exec(context.Background(), shortcode.Endpoint, nil)
	require.NoError(t, err)
	_, err = shortcode.ValidateResponse(reply)
	assert.NoError(t, err)
}

func TestExecNullBody(t *testing.T) {
	t.Parallel()
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`null`))
	})

	_, err := tr.Exec(context.Background(), shortcode.Endpoint, nil)
	assert.ErrorIs(t, err, shortcode.ErrProtocol)
}

func TestExecHonoursContextTimeout(t *testing.T) {
	t.Parallel()
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := tr.Exec(ctx, shortcode.Endpoint, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestExecRateLimitWaitRespectsContext(t *testing.T) {
	t.Parallel()
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message-count":1,"messages":[{"status":0}]}`))
	}, WithRateLimit(0.001, 1))

	_, err := tr.Exec(context.Background(), shortcode.Endpoint, nil)
	require.NoError(t, err, "first request uses the burst token")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = tr.Exec(ctx, shortcode.Endpoint, nil)
	assert.Error(t, err, "second request must wait past the deadline")
}
