package common

import "time"

// ValidatedMessage is a request that passed validation, together with the
// Kafka record data needed to enrich status and DLQ events.
type ValidatedMessage struct {
	Channel      string
	MessageID    string
	TraceID      string
	TenantID     string
	CreatedAt    time.Time
	Metadata     map[string]string
	Request      any
	RawPayload   []byte
	Key          []byte
	KafkaHeaders map[string][]byte
}
