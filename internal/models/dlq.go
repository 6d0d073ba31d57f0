package models

import (
	"encoding/json"
	"time"
)

// DLQRecord is written to the dead-letter topic when a request cannot be sent.
type DLQRecord struct {
	MessageID       string            `json:"message_id"`
	Channel         string            `json:"channel"`
	OriginalMessage json.RawMessage   `json:"original_message,omitempty"`
	Attempts        int               `json:"attempts"`
	FailureType     string            `json:"failure_type"`
	LastError       string            `json:"last_error,omitempty"`
	FirstFailedAt   time.Time         `json:"first_failed_at"`
	LastAttemptAt   time.Time         `json:"last_attempt_at"`
	TraceID         string            `json:"trace_id,omitempty"`
	Meta            map[string]string `json:"meta,omitempty"`
}
