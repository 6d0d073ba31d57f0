package models

import "time"

// ChannelMarketingSMS identifies shared short-code marketing SMS requests.
const ChannelMarketingSMS = "marketing_sms"

// Envelope carries the attributes shared by every inbound request.
type Envelope struct {
	MessageID string            `json:"message_id"`
	Channel   string            `json:"channel"`
	TenantID  string            `json:"tenant_id,omitempty"`
	TraceID   string            `json:"trace_id,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// MarketingRequest is the Kafka payload asking for one marketing SMS to be
// sent from a shared short code.
type MarketingRequest struct {
	Envelope
	From    string `json:"from"`
	Keyword string `json:"keyword"`
	To      string `json:"to"`
	Text    string `json:"text"`
}
