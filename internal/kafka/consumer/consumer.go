package consumer

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
)

const (
	clientID = "shortcode-marketing-consumer"

	sessionTimeout   = 30 * time.Second
	heartbeat        = 3 * time.Second
	rebalanceTimeout = 30 * time.Second
	retryDelay       = time.Second
)

// Handler receives each delivered record. Handlers may finish records out of
// order; the consumer keeps offset marks in delivery order per partition.
type Handler func(ctx context.Context, record *Record) error

// Option customises the consumer during construction.
type Option func(*settings)

type settings struct {
	base          *sarama.Config
	initialOffset int64
}

// WithConfig supplies the Sarama config to start from. It is copied, and the
// commit mode and initial offset are always overridden.
func WithConfig(cfg *sarama.Config) Option {
	return func(s *settings) {
		if cfg != nil {
			s.base = cfg
		}
	}
}

// WithInitialOffset selects where a new consumer group starts reading:
// sarama.OffsetOldest or sarama.OffsetNewest.
func WithInitialOffset(offset int64) Option {
	return func(s *settings) {
		if offset == sarama.OffsetOldest || offset == sarama.OffsetNewest {
			s.initialOffset = offset
		}
	}
}

// Record is one Kafka message handed to a Handler.
type Record struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Timestamp time.Time
	Headers   map[string][]byte

	session sarama.ConsumerGroupSession
	message *sarama.ConsumerMessage
	offsets *offsetTracker
	acked   atomic.Bool
}

func newRecord(session sarama.ConsumerGroupSession, msg *sarama.ConsumerMessage, offsets *offsetTracker) *Record {
	offsets.track(msg.Offset)
	return &Record{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       cloneBytes(msg.Key),
		Value:     cloneBytes(msg.Value),
		Timestamp: msg.Timestamp,
		Headers:   fromHeaders(msg.Headers),
		session:   session,
		message:   msg,
		offsets:   offsets,
	}
}

// Consumer reads marketing requests through a Sarama consumer group.
type Consumer struct {
	logger      zerolog.Logger
	group       sarama.ConsumerGroup
	groupID     string
	commitOnAck bool

	ready atomic.Bool

	mu      sync.RWMutex
	handler Handler
	stop    context.CancelFunc

	running   sync.WaitGroup
	errorsOut chan struct{}
}

// New joins groupID on brokers. With commitOnSuccessOnly the consumer
// disables auto-commit and flushes offsets on every acknowledgement.
func New(brokers []string, groupID string, logger zerolog.Logger, commitOnSuccessOnly bool, opts ...Option) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka consumer: at least one broker is required")
	}
	if groupID == "" {
		return nil, errors.New("kafka consumer: group id is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	s := &settings{initialOffset: sarama.OffsetNewest}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	group, err := sarama.NewConsumerGroup(brokers, groupID, groupConfig(s, commitOnSuccessOnly))
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: join group %s: %w", groupID, err)
	}

	c := &Consumer{
		logger:      logger.With().Str("group_id", groupID).Logger(),
		group:       group,
		groupID:     groupID,
		commitOnAck: commitOnSuccessOnly,
		errorsOut:   make(chan struct{}),
	}
	go c.drainErrors()
	return c, nil
}

// Consume delivers records from topics to handler until ctx is cancelled or
// the consumer is closed. Group errors are retried after a short delay.
func (c *Consumer) Consume(ctx context.Context, topics []string, handler Handler) error {
	if len(topics) == 0 {
		return errors.New("kafka consumer: at least one topic is required")
	}
	if handler == nil {
		return errors.New("kafka consumer: handler is required")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	c.handler = handler
	c.stop = cancel
	c.mu.Unlock()

	c.running.Add(1)
	defer c.running.Done()

	for ctx.Err() == nil {
		err := c.group.Consume(ctx, topics, &session{consumer: c})
		switch {
		case err == nil:
		case errors.Is(err, sarama.ErrClosedConsumerGroup):
			return nil
		default:
			c.logger.Error().Err(err).Strs("topics", topics).Msg("kafka consumer: session ended with error")
			select {
			case <-ctx.Done():
			case <-time.After(retryDelay):
			}
		}
	}
	return ctx.Err()
}

// Commit acknowledges record. The partition offset advances only past
// records whose predecessors are all acknowledged, so an unacknowledged
// record is redelivered after a restart or rebalance even when later
// records on its partition succeeded. Repeated acknowledgements are no-ops.
func (c *Consumer) Commit(_ context.Context, record *Record) error {
	if record == nil {
		return errors.New("kafka consumer: record is required")
	}
	if record.session == nil || record.message == nil || record.offsets == nil {
		return errors.New("kafka consumer: record was not delivered by this consumer")
	}
	if !record.acked.CompareAndSwap(false, true) {
		return nil
	}

	mark := record.offsets.ack(record.message)
	if mark == nil {
		c.logger.Debug().
			Str("topic", record.Topic).
			Int32("partition", record.Partition).
			Int64("offset", record.Offset).
			Msg("kafka consumer: ack held behind an earlier offset")
		return nil
	}

	record.session.MarkMessage(mark, "")
	if c.commitOnAck {
		record.session.Commit()
	}
	return nil
}

// IsReady reports whether a group session is active.
func (c *Consumer) IsReady() bool {
	return c.ready.Load()
}

// Close leaves the group and waits for Consume and the error drain to return.
func (c *Consumer) Close() error {
	c.mu.RLock()
	stop := c.stop
	c.mu.RUnlock()
	if stop != nil {
		stop()
	}

	err := c.group.Close()
	c.running.Wait()
	<-c.errorsOut
	return err
}

func (c *Consumer) currentHandler() Handler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handler
}

func (c *Consumer) drainErrors() {
	defer close(c.errorsOut)
	for err := range c.group.Errors() {
		if err != nil {
			c.logger.Error().Err(err).Msg("kafka consumer: group error")
		}
	}
}

func groupConfig(s *settings, commitOnSuccessOnly bool) *sarama.Config {
	var cfg sarama.Config
	if s.base != nil {
		cfg = *s.base
	} else {
		cfg = *sarama.NewConfig()
		cfg.Version = sarama.V2_5_0_0
		cfg.ClientID = clientID
		cfg.Consumer.Group.Session.Timeout = sessionTimeout
		cfg.Consumer.Group.Heartbeat.Interval = heartbeat
		cfg.Consumer.Group.Rebalance.Timeout = rebalanceTimeout
		cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRange()}
	}
	cfg.Consumer.Return.Errors = true
	cfg.Consumer.Offsets.Initial = s.initialOffset
	cfg.Consumer.Offsets.AutoCommit.Enable = !commitOnSuccessOnly
	return &cfg
}

func cloneBytes(src []byte) []byte {
	if len(src) == 0 {
		return nil
	}
	return append([]byte(nil), src...)
}

func fromHeaders(headers []*sarama.RecordHeader) map[string][]byte {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string][]byte, len(headers))
	for _, h := range headers {
		if h == nil || len(h.Key) == 0 {
			continue
		}
		out[string(h.Key)] = cloneBytes(h.Value)
	}
	return out
}
