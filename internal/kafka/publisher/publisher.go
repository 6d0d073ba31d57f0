package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/rs/zerolog"

	"github.com/ajayykmr/shortcode-marketing-go/internal/kafka/producer"
	"github.com/ajayykmr/shortcode-marketing-go/internal/models"
)

var errProducerNotInitialised = errors.New("kafka publisher: producer not initialised")

// Header keys attached to every published record.
const (
	HeaderContentType = "content-type"
	HeaderChannel     = "channel"
	HeaderTraceID     = "trace-id"
	HeaderEventType   = "event-type"
)

// SyncProducer appends a record and waits for the brokers to acknowledge it.
// *producer.Producer satisfies it.
type SyncProducer interface {
	Publish(ctx context.Context, msg producer.Message) error
}

// ErrProducerNotInitialised exposes the sentinel error for callers and tests.
func ErrProducerNotInitialised() error {
	return errProducerNotInitialised
}

type base struct {
	producer SyncProducer
	topic    string
	logger   zerolog.Logger
}

func newBase(prod SyncProducer, topic string, logger zerolog.Logger) base {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return base{producer: prod, topic: topic, logger: logger}
}

func (b *base) publishJSON(ctx context.Context, kind, key string, headers map[string][]byte, v any) error {
	if b.producer == nil {
		return errProducerNotInitialised
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("kafka publisher: marshal %s: %w", kind, err)
	}

	headers[HeaderContentType] = []byte("application/json")
	msg := producer.Message{Topic: b.topic, Key: []byte(key), Headers: headers, Value: payload}
	if err := b.producer.Publish(ctx, msg); err != nil {
		return fmt.Errorf("kafka publisher: publish %s: %w", kind, err)
	}

	b.logger.Debug().
		Str("topic", b.topic).
		Str("message_id", key).
		Int("bytes", len(payload)).
		Msgf("kafka publisher: %s published", kind)
	return nil
}

// StatusPublisher emits status events to a Kafka topic using the shared producer.
type StatusPublisher struct {
	base
}

// NewStatusPublisher constructs a StatusPublisher instance. It returns nil
// when prod is nil.
func NewStatusPublisher(prod SyncProducer, topic string, logger zerolog.Logger) *StatusPublisher {
	if prod == nil {
		return nil
	}
	return &StatusPublisher{base: newBase(prod, topic, logger)}
}

// PublishStatus writes the supplied status event to Kafka synchronously,
// keyed by message id so every event for a message lands on one partition.
func (p *StatusPublisher) PublishStatus(ctx context.Context, event models.StatusEvent) error {
	if p == nil {
		return errProducerNotInitialised
	}
	return p.publishJSON(ctx, "status event", event.MessageID, headersFor(event.Channel, event.TraceID, event.EventType), event)
}

// DLQPublisher writes DLQ records to the configured Kafka topic.
type DLQPublisher struct {
	base
}

// NewDLQPublisher constructs a DLQPublisher instance. It returns nil when
// prod is nil.
func NewDLQPublisher(prod SyncProducer, topic string, logger zerolog.Logger) *DLQPublisher {
	if prod == nil {
		return nil
	}
	return &DLQPublisher{base: newBase(prod, topic, logger)}
}

// PublishDLQ writes the supplied DLQ record to Kafka synchronously. The
// write ignores cancellation of ctx because the caller commits the request
// offset once it returns.
func (p *DLQPublisher) PublishDLQ(ctx context.Context, record models.DLQRecord) error {
	if p == nil {
		return errProducerNotInitialised
	}
	return p.publishJSON(context.WithoutCancel(ctx), "dlq record", record.MessageID, headersFor(record.Channel, record.TraceID, ""), record)
}

func headersFor(channel, traceID, eventType string) map[string][]byte {
	headers := make(map[string][]byte, 4)
	if channel != "" {
		headers[HeaderChannel] = []byte(channel)
	}
	if traceID != "" {
		headers[HeaderTraceID] = []byte(traceID)
	}
	if eventType != "" {
		headers[HeaderEventType] = []byte(eventType)
	}
	return headers
}
