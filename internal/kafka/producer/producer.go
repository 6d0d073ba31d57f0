package producer

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
)

const (
	clientID          = "shortcode-marketing-producer"
	metadataStaleness = 30 * time.Second
	sendRetries       = 6
	sendRetryBackoff  = 250 * time.Millisecond
)

// Message is one record to append to a topic.
type Message struct {
	Topic   string
	Key     []byte
	Headers map[string][]byte
	Value   []byte
}

// Option customises the producer during construction.
type Option func(*settings)

type settings struct {
	base      *sarama.Config
	staleness time.Duration
}

// WithConfig supplies the Sarama config to start from. It is copied, and the
// delivery guarantees (acks from all replicas, idempotence, returned
// successes) are always enforced.
func WithConfig(cfg *sarama.Config) Option {
	return func(s *settings) {
		if cfg != nil {
			s.base = cfg
		}
	}
}

// WithMetadataStaleness sets how old cluster metadata may get before
// IsReady refreshes it.
func WithMetadataStaleness(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.staleness = d
		}
	}
}

// Producer appends status and DLQ records with a synchronous, idempotent
// Sarama producer.
type Producer struct {
	logger zerolog.Logger
	client sarama.Client
	sender sarama.SyncProducer
	health *health

	closeOnce sync.Once
	closeErr  error
}

// New connects to brokers and prepares the producer. An unreachable cluster
// fails construction; a failed first metadata refresh only marks the
// producer as not ready.
func New(brokers []string, logger zerolog.Logger, opts ...Option) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka producer: at least one broker is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	s := &settings{staleness: metadataStaleness}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	client, err := sarama.NewClient(brokers, producerConfig(s))
	if err != nil {
		return nil, fmt.Errorf("kafka producer: connect: %w", err)
	}
	sender, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("kafka producer: sync producer: %w", err)
	}

	p := &Producer{
		logger: logger,
		client: client,
		sender: sender,
		health: newHealth(s.staleness, func() error { return client.RefreshMetadata() }, time.Now),
	}
	if !p.health.refresh() {
		logger.Warn().Msg("kafka producer: initial metadata refresh failed")
	}
	return p, nil
}

// Publish appends msg and waits until every in-sync replica has it. When ctx
// ends first Publish returns the context error; the record may still land.
func (p *Producer) Publish(ctx context.Context, msg Message) error {
	if msg.Topic == "" {
		return errors.New("kafka producer: topic is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	type result struct {
		partition int32
		offset    int64
		err       error
	}
	done := make(chan result, 1)
	go func() {
		partition, offset, err := p.sender.SendMessage(toProducerMessage(msg))
		done <- result{partition: partition, offset: offset, err: err}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case r := <-done:
		p.health.observe(r.err)
		if r.err != nil {
			return fmt.Errorf("kafka producer: append to %s: %w", msg.Topic, r.err)
		}
		p.logger.Trace().
			Str("topic", msg.Topic).
			Int32("partition", r.partition).
			Int64("offset", r.offset).
			Msg("kafka producer: record appended")
		return nil
	}
}

// IsReady reports whether the last send succeeded and cluster metadata is
// fresh, refreshing metadata when it has gone stale.
func (p *Producer) IsReady() bool {
	return p.health.ready()
}

// Close flushes the producer and releases the client. It is safe to call
// more than once.
func (p *Producer) Close() error {
	p.closeOnce.Do(func() {
		var errs []error
		if err := p.sender.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := p.client.Close(); err != nil && !errors.Is(err, sarama.ErrClosedClient) {
			errs = append(errs, err)
		}
		p.closeErr = errors.Join(errs...)
	})
	return p.closeErr
}

func toProducerMessage(msg Message) *sarama.ProducerMessage {
	out := &sarama.ProducerMessage{
		Topic: msg.Topic,
		Value: sarama.ByteEncoder(msg.Value),
	}
	if len(msg.Key) > 0 {
		out.Key = sarama.ByteEncoder(msg.Key)
	}
	for k, v := range msg.Headers {
		out.Headers = append(out.Headers, sarama.RecordHeader{
			Key:   []byte(k),
			Value: append([]byte(nil), v...),
		})
	}
	return out
}

func producerConfig(s *settings) *sarama.Config {
	var cfg sarama.Config
	if s.base != nil {
		cfg = *s.base
	} else {
		cfg = *sarama.NewConfig()
		cfg.Version = sarama.V2_5_0_0
		cfg.ClientID = clientID
		cfg.Producer.Retry.Max = sendRetries
		cfg.Producer.Retry.Backoff = sendRetryBackoff
		cfg.Producer.Partitioner = sarama.NewHashPartitioner
		cfg.Metadata.Full = false
	}
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Idempotent = true
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Net.MaxOpenRequests = 1
	return &cfg
}
