// Package shortcode sends marketing SMS through the provider's shared short
// code and interprets the per-part delivery status it returns.
package shortcode

import (
	"context"
	"errors"
	"fmt"
)

// Endpoint is the provider resource for shared short-code marketing SMS.
const Endpoint = "sc/us/marketing/json"

// Transport executes a provider call and returns the decoded JSON reply. It
// owns the HTTP method, authentication, encoding and any throttling.
type Transport interface {
	Exec(ctx context.Context, endpoint string, params map[string]string) (map[string]any, error)
}

// SendRequest holds the four mandatory marketing SMS fields.
type SendRequest struct {
	From    string
	Keyword string
	To      string
	Text    string
}

// Validate checks the fields in a fixed order and reports the first blank one.
func (r SendRequest) Validate() error {
	switch {
	case isBlank(r.From):
		return &ValidationError{Field: "from"}
	case isBlank(r.Keyword):
		return &ValidationError{Field: "keyword"}
	case isBlank(r.To):
		return &ValidationError{Field: "to"}
	case isBlank(r.Text):
		return &ValidationError{Field: "text"}
	}
	return nil
}

// Params returns the request body sent to the provider.
func (r SendRequest) Params() map[string]string {
	return map[string]string{
		"from":    r.From,
		"keyword": r.Keyword,
		"to":      r.To,
		"text":    r.Text,
	}
}

// Sender sends marketing SMS from a shared short code. It holds no mutable
// state and is safe for concurrent use.
type Sender struct {
	transport Transport
}

// NewSender constructs a Sender on top of the supplied transport.
func NewSender(transport Transport) (*Sender, error) {
	if transport == nil {
		return nil, errors.New("shortcode: transport is required")
	}
	return &Sender{transport: transport}, nil
}

// Send validates the request, delivers it through the transport and checks the
// provider reply. The returned error is a *ValidationError, *ProtocolError,
// *DeliveryError or a wrapped transport error.
func (s *Sender) Send(ctx context.Context, from, keyword, to, text string) (*SendResponse, error) {
	req := SendRequest{From: from, Keyword: keyword, To: to, Text: text}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	reply, err := s.transport.Exec(ctx, Endpoint, req.Params())
	if err != nil {
		return nil, fmt.Errorf("shortcode: exec %s: %w", Endpoint, err)
	}

	return ValidateResponse(reply)
}

func isBlank(v string) bool {
	return v == ""
}
