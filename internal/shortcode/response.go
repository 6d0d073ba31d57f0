package shortcode

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Message is the provider's report for one part of a possibly multi-part SMS.
type Message struct {
	Status           int    `json:"status"`
	ErrorText        string `json:"error-text,omitempty"`
	MessageID        string `json:"message-id,omitempty"`
	To               string `json:"to,omitempty"`
	Network          string `json:"network,omitempty"`
	RemainingBalance string `json:"remaining-balance,omitempty"`
	MessagePrice     string `json:"message-price,omitempty"`
}

// SendResponse is the parsed provider reply for a successful send.
type SendResponse struct {
	MessageCount int       `json:"message-count"`
	Messages     []Message `json:"messages"`
}

// MessageIDs returns the provider identifiers of every part that carried one.
func (r *SendResponse) MessageIDs() []string {
	if r == nil {
		return nil
	}
	ids := make([]string, 0, len(r.Messages))
	for _, m := range r.Messages {
		if m.MessageID != "" {
			ids = append(ids, m.MessageID)
		}
	}
	return ids
}

// ValidateResponse checks a decoded provider reply and returns the parsed
// response. It stops at the first part that failed; later parts are not
// inspected. JSON nulls are treated as absent keys.
func ValidateResponse(reply map[string]any) (*SendResponse, error) {
	rawCount, ok := lookup(reply, "message-count")
	if !ok {
		return nil, &ProtocolError{Reason: "message-count property expected"}
	}
	rawMessages, ok := lookup(reply, "messages")
	if !ok {
		return nil, &ProtocolError{Reason: "messages property expected"}
	}

	count, err := toInt(rawCount)
	if err != nil {
		return nil, &ProtocolError{Reason: fmt.Sprintf("message-count property: %v", err)}
	}

	entries, ok := rawMessages.([]any)
	if !ok {
		return nil, &ProtocolError{Reason: "messages property must be a list"}
	}

	resp := &SendResponse{
		MessageCount: count,
		Messages:     make([]Message, 0, len(entries)),
	}

	for i, entry := range entries {
		fields, ok := entry.(map[string]any)
		if !ok {
			return nil, &ProtocolError{Reason: fmt.Sprintf("messages[%d] must be an object", i)}
		}

		msg, err := parseMessage(fields)
		if err != nil {
			return nil, err
		}

		if msg.ErrorText != "" {
			return nil, &DeliveryError{Status: msg.Status, ErrorText: msg.ErrorText}
		}
		if msg.Status > 0 {
			return nil, &DeliveryError{Status: msg.Status}
		}

		resp.Messages = append(resp.Messages, msg)
	}

	return resp, nil
}

func parseMessage(fields map[string]any) (Message, error) {
	rawStatus, ok := lookup(fields, "status")
	if !ok {
		return Message{}, &ProtocolError{Reason: "status property expected"}
	}
	status, err := toInt(rawStatus)
	if err != nil {
		return Message{}, &ProtocolError{Reason: fmt.Sprintf("status property: %v", err)}
	}

	return Message{
		Status:           status,
		ErrorText:        stringField(fields, "error-text"),
		MessageID:        stringField(fields, "message-id"),
		To:               stringField(fields, "to"),
		Network:          stringField(fields, "network"),
		RemainingBalance: stringField(fields, "remaining-balance"),
		MessagePrice:     stringField(fields, "message-price"),
	}, nil
}

func lookup(m map[string]any, key string) (any, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func stringField(m map[string]any, key string) string {
	v, ok := lookup(m, key)
	if !ok {
		return ""
	}
	switch value := v.(type) {
	case string:
		return value
	case json.Number:
		return value.String()
	default:
		return fmt.Sprint(value)
	}
}

func toInt(v any) (int, error) {
	switch value := v.(type) {
	case int:
		return value, nil
	case int64:
		return int(value), nil
	case float64:
		if value != math.Trunc(value) {
			return 0, fmt.Errorf("expected integer, got %v", value)
		}
		return int(value), nil
	case json.Number:
		n, err := strconv.Atoi(value.String())
		if err != nil {
			return 0, fmt.Errorf("expected integer, got %q", value.String())
		}
		return n, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return 0, fmt.Errorf("expected integer, got %q", value)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}
