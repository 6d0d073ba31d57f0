package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"reflect"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	common "github.com/ajayykmr/shortcode-marketing-go/internal/adapters/common"
	"github.com/ajayykmr/shortcode-marketing-go/internal/metrics"
	"github.com/ajayykmr/shortcode-marketing-go/internal/models"
)

// Config contains the runtime settings the worker engine relies on to
// orchestrate processing, retries, and DLQ handling for a channel.
type Config struct {
	Channel           string
	MsgMaxBytes       int
	MaxAttempts       int
	BaseBackoff       time.Duration
	MaxBackoff        time.Duration
	WorkerConcurrency int
	// SendTimeout bounds a single adapter call. Zero means no per-attempt
	// deadline beyond the caller's context.
	SendTimeout time.Duration
}

// Record represents a Kafka message delivered to the worker. It keeps the
// engine decoupled from the concrete consumer implementation.
type Record struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Timestamp time.Time
	Headers   map[string][]byte

	commitFn func(context.Context) error
}

func (r *Record) setCommitFn(fn func(context.Context) error) {
	r.commitFn = fn
}

// Commit acknowledges the record with the consumer it came from. Records
// built without a commit function commit as a no-op.
func (r *Record) Commit(ctx context.Context) error {
	if r == nil || r.commitFn == nil {
		return nil
	}
	return r.commitFn(ctx)
}

// Clone returns a deep copy of the record so it can be shared with
// asynchronous goroutines. The commit function is carried over.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}

	clone := *r
	clone.Key = cloneBytes(r.Key)
	clone.Value = cloneBytes(r.Value)
	if len(r.Headers) > 0 {
		clone.Headers = cloneHeaders(r.Headers)
	}

	return &clone
}

// FailureType enumerates the DLQ failure classifications supported by the
// engine.
type FailureType string

const (
	// FailureTypePermanent is used when the provider signalled a permanent
	// failure for the request.
	FailureTypePermanent FailureType = "permanent"
	// FailureTypeTransient captures transient errors that exhausted the
	// retry budget.
	FailureTypeTransient FailureType = "transient"
	// FailureTypeValidation is emitted for validation and size failures.
	FailureTypeValidation FailureType = "validation"
	// FailureTypeUnknown is a safety net for unclassified errors.
	FailureTypeUnknown FailureType = "unknown"
)

// Validator parses and validates inbound Kafka records for a channel. When a
// validation error is encountered the returned message may be nil or
// partially populated.
type Validator interface {
	ParseAndValidate(ctx context.Context, channel string, payload []byte) (*common.ValidatedMessage, error)
}

// StatusPublisher publishes lifecycle updates for a message.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, event models.StatusEvent) error
}

// DLQPublisher writes failed messages to the channel DLQ topic.
type DLQPublisher interface {
	PublishDLQ(ctx context.Context, record models.DLQRecord) error
}

// Committer commits Kafka offsets after processing.
type Committer interface {
	Commit(ctx context.Context, record *Record) error
}

// CommitFunc adapts a function to the Committer interface.
type CommitFunc func(ctx context.Context, record *Record) error

// Commit implements Committer.
func (f CommitFunc) Commit(ctx context.Context, record *Record) error {
	return f(ctx, record)
}

// RecordCommitter commits through the function bound to each record.
var RecordCommitter Committer = CommitFunc(func(ctx context.Context, record *Record) error {
	return record.Commit(ctx)
})

// Dependencies collects the runtime collaborators required by the engine.
// Committer defaults to RecordCommitter and Metrics is optional.
type Dependencies struct {
	Adapter         common.Adapter
	Validator       Validator
	StatusPublisher StatusPublisher
	DLQPublisher    DLQPublisher
	Committer       Committer
	Metrics         *metrics.Recorder
	Logger          zerolog.Logger
	Now             func() time.Time
}

// Engine orchestrates validation, retries, backoff, DLQ handling and offset
// commits for inbound Kafka records.
type Engine struct {
	cfg             Config
	adapter         common.Adapter
	validator       Validator
	statusPublisher StatusPublisher
	dlqPublisher    DLQPublisher
	committer       Committer
	metrics         *metrics.Recorder
	logger          zerolog.Logger

	semaphore *semaphore.Weighted
	wg        sync.WaitGroup

	now func() time.Time

	randMu sync.Mutex
	rnd    *rand.Rand
}

// NewEngine constructs a worker engine using the supplied configuration and
// collaborators.
func NewEngine(cfg Config, deps Dependencies) (*Engine, error) {
	if cfg.Channel == "" {
		return nil, errors.New("worker: channel must be provided")
	}
	if cfg.MaxAttempts < 1 {
		return nil, errors.New("worker: max attempts must be >= 1")
	}
	if cfg.WorkerConcurrency < 1 {
		return nil, errors.New("worker: worker concurrency must be >= 1")
	}
	if cfg.MsgMaxBytes < 0 {
		return nil, errors.New("worker: msg max bytes cannot be negative")
	}
	if deps.Adapter == nil {
		return nil, errors.New("worker: adapter dependency is required")
	}
	if deps.Validator == nil {
		return nil, errors.New("worker: validator dependency is required")
	}
	if deps.StatusPublisher == nil {
		return nil, errors.New("worker: status publisher dependency is required")
	}
	if deps.DLQPublisher == nil {
		return nil, errors.New("worker: DLQ publisher dependency is required")
	}

	committer := deps.Committer
	if committer == nil {
		committer = RecordCommitter
	}

	logger := deps.Logger
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	logger = logger.With().Str("component", "worker_engine").Logger()

	nowFunc := deps.Now
	if nowFunc == nil {
		nowFunc = time.Now
	}

	eng := &Engine{
		cfg:             cfg,
		adapter:         deps.Adapter,
		validator:       deps.Validator,
		statusPublisher: deps.StatusPublisher,
		dlqPublisher:    deps.DLQPublisher,
		committer:       committer,
		metrics:         deps.Metrics,
		logger:          logger,
		semaphore:       semaphore.NewWeighted(int64(cfg.WorkerConcurrency)),
		now:             nowFunc,
		rnd:             rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	return eng, nil
}

// HandleRecord checks the record size, parses the payload and hands valid
// requests to a background goroutine bounded by the concurrency semaphore.
func (e *Engine) HandleRecord(ctx context.Context, record *Record) {
	if record == nil {
		return
	}

	if e.cfg.MsgMaxBytes > 0 && len(record.Value) > e.cfg.MsgMaxBytes {
		err := fmt.Errorf("payload exceeds maximum size: got %d bytes, limit %d bytes", len(record.Value), e.cfg.MsgMaxBytes)
		msg := e.partialMessageFromRecord(record)
		e.logger.Warn().
			Str("channel", msg.Channel).
			Str("message_id", msg.MessageID).
			Err(err).
			Msg("worker: record discarded because it exceeds configured size limit")
		e.reject(ctx, record, msg, err)
		return
	}

	validated, err := e.validator.ParseAndValidate(ctx, e.cfg.Channel, record.Value)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if validated == nil {
			validated = e.partialMessageFromRecord(record)
		}
		e.fillFromRecord(validated, record)
		e.logger.Warn().
			Str("channel", validated.Channel).
			Str("message_id", validated.MessageID).
			Err(err).
			Msg("worker: validation failed for record")
		e.reject(ctx, record, validated, err)
		return
	}
	e.fillFromRecord(validated, record)

	if err := e.semaphore.Acquire(ctx, 1); err != nil {
		e.logger.Error().
			Str("channel", validated.Channel).
			Str("message_id", validated.MessageID).
			Err(err).
			Msg("worker: failed to acquire concurrency semaphore")
		return
	}

	recCopy := record.Clone()

	e.wg.Add(1)
	go e.processRecord(ctx, recCopy, validated)
}

// Wait blocks until every in-flight record has finished processing.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) reject(ctx context.Context, record *Record, msg *common.ValidatedMessage, err error) {
	now := e.now()
	e.publishStatus(ctx, msg, statusEvent{Type: models.StatusEventFailed, Error: err.Error(), Timestamp: now})
	e.publishDLQ(ctx, msg, dlqPayload{FailureType: FailureTypeValidation, LastError: err.Error(), FirstFailedAt: now, LastAttemptAt: now})
	e.commitRecord(ctx, record)
}

func (e *Engine) processRecord(ctx context.Context, record *Record, msg *common.ValidatedMessage) {
	defer e.wg.Done()
	defer e.semaphore.Release(1)

	if ctx.Err() != nil {
		e.logger.Warn().
			Str("channel", msg.Channel).
			Str("message_id", msg.MessageID).
			Msg("worker: context cancelled before processing began")
		return
	}

	e.publishStatus(ctx, msg, statusEvent{Type: models.StatusEventQueued})

	attempt := 1
	firstFailedAt := time.Time{}

	for {
		e.publishStatus(ctx, msg, statusEvent{Type: models.StatusEventAttempt, Attempt: attempt})
		start := e.now()
		providerResp, err := e.send(ctx, msg)
		duration := e.now().Sub(start)

		logEvent := e.logger.With().
			Str("channel", msg.Channel).
			Str("message_id", msg.MessageID).
			Int("attempt", attempt).
			Dur("duration", duration).
			Logger()

		if err == nil {
			logEvent.Info().Msg("worker: message sent successfully")
			e.publishStatus(ctx, msg, statusEvent{Type: models.StatusEventSent, Attempt: attempt, ProviderResponse: providerResp, Duration: duration})
			e.commitRecord(ctx, record)
			return
		}

		if ctx.Err() != nil {
			logEvent.Warn().Err(err).Msg("worker: context cancelled during send; deferring commit for reprocessing")
			return
		}

		logEvent.Warn().Err(err).Msg("worker: adapter returned error")

		now := e.now()
		if firstFailedAt.IsZero() {
			firstFailedAt = now
		}

		if errors.Is(err, common.ErrPermanent) {
			e.publishStatus(ctx, msg, statusEvent{Type: models.StatusEventFailed, Attempt: attempt, ProviderResponse: providerResp, Error: err.Error(), Duration: duration, Timestamp: now})
			e.publishDLQ(ctx, msg, dlqPayload{FailureType: FailureTypePermanent, Attempts: attempt, LastError: err.Error(), FirstFailedAt: firstFailedAt, LastAttemptAt: now})
			e.commitRecord(ctx, record)
			return
		}

		if attempt >= e.cfg.MaxAttempts {
			e.publishStatus(ctx, msg, statusEvent{Type: models.StatusEventFailed, Attempt: attempt, ProviderResponse: providerResp, Error: err.Error(), Duration: duration, Timestamp: now})
			failureType := FailureTypeTransient
			if !errors.Is(err, common.ErrTransient) {
				failureType = FailureTypeUnknown
			}
			e.publishDLQ(ctx, msg, dlqPayload{FailureType: failureType, Attempts: attempt, LastError: err.Error(), FirstFailedAt: firstFailedAt, LastAttemptAt: now})
			e.commitRecord(ctx, record)
			return
		}

		backoff := e.computeBackoff(attempt)
		if backoff > 0 {
			logEvent.Info().Dur("backoff", backoff).Msg("worker: scheduling retry after transient error")
		}

		if !e.wait(ctx, backoff) {
			e.logger.Warn().
				Str("channel", msg.Channel).
				Str("message_id", msg.MessageID).
				Int("attempt", attempt).
				Msg("worker: context cancelled while waiting for retry; message will be retried on next poll")
			return
		}

		attempt++
	}
}

// send calls the adapter, bounding the attempt by SendTimeout. A per-attempt
// deadline that expires while the parent context is still live is reported
// as a transient failure so the attempt is retried.
func (e *Engine) send(ctx context.Context, msg *common.ValidatedMessage) (*common.ProviderResponse, error) {
	if e.cfg.SendTimeout <= 0 {
		return e.adapter.Send(ctx, msg)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.SendTimeout)
	defer cancel()

	resp, err := e.adapter.Send(attemptCtx, msg)
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		err = common.WrapTransient(fmt.Errorf("send attempt timed out after %s: %w", e.cfg.SendTimeout, err))
	}
	return resp, err
}

func (e *Engine) computeBackoff(attempt int) time.Duration {
	if e.cfg.BaseBackoff <= 0 {
		return 0
	}

	multiplier := math.Pow(2, float64(attempt-1))
	raw := time.Duration(float64(e.cfg.BaseBackoff) * multiplier)
	if e.cfg.MaxBackoff > 0 && raw > e.cfg.MaxBackoff {
		raw = e.cfg.MaxBackoff
	}

	return e.fullJitter(raw)
}

func (e *Engine) fullJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}

	e.randMu.Lock()
	defer e.randMu.Unlock()

	n := e.rnd.Int63n(int64(max) + 1)
	return time.Duration(n)
}

func (e *Engine) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

type statusEvent struct {
	Type             string
	Attempt          int
	ProviderResponse *common.ProviderResponse
	Error            string
	Duration         time.Duration
	Timestamp        time.Time
}

type dlqPayload struct {
	FailureType   FailureType
	Attempts      int
	LastError     string
	FirstFailedAt time.Time
	LastAttemptAt time.Time
}

func (e *Engine) publishStatus(ctx context.Context, msg *common.ValidatedMessage, event statusEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = e.now()
	}
	if msg == nil {
		return
	}

	out := models.StatusEvent{
		MessageID:        msg.MessageID,
		Channel:          msg.Channel,
		EventType:        event.Type,
		Attempt:          event.Attempt,
		ProviderResponse: event.ProviderResponse.Model(),
		Error:            event.Error,
		DurationMs:       event.Duration.Milliseconds(),
		TraceID:          msg.TraceID,
		Timestamp:        event.Timestamp.UTC(),
	}
	if err := e.statusPublisher.PublishStatus(ctx, out); err != nil {
		e.logger.Error().
			Str("channel", msg.Channel).
			Str("message_id", msg.MessageID).
			Str("event", event.Type).
			Err(err).
			Msg("worker: failed to publish status event")
	}
}

func (e *Engine) publishDLQ(ctx context.Context, msg *common.ValidatedMessage, payload dlqPayload) {
	if payload.FirstFailedAt.IsZero() {
		payload.FirstFailedAt = e.now()
	}
	if payload.LastAttemptAt.IsZero() {
		payload.LastAttemptAt = payload.FirstFailedAt
	}
	if msg == nil {
		return
	}

	e.metrics.ObserveDLQ(string(payload.FailureType))

	record := models.DLQRecord{
		MessageID:       msg.MessageID,
		Channel:         msg.Channel,
		OriginalMessage: originalMessage(msg.RawPayload),
		Attempts:        payload.Attempts,
		FailureType:     string(payload.FailureType),
		LastError:       payload.LastError,
		FirstFailedAt:   payload.FirstFailedAt.UTC(),
		LastAttemptAt:   payload.LastAttemptAt.UTC(),
		TraceID:         msg.TraceID,
		Meta:            msg.Metadata,
	}
	if err := e.dlqPublisher.PublishDLQ(ctx, record); err != nil {
		e.logger.Error().
			Str("channel", msg.Channel).
			Str("message_id", msg.MessageID).
			Err(err).
			Msg("worker: failed to publish DLQ record")
	}
}

func (e *Engine) commitRecord(ctx context.Context, record *Record) {
	if record == nil {
		return
	}
	if err := e.committer.Commit(ctx, record); err != nil {
		e.logger.Error().
			Str("topic", record.Topic).
			Int32("partition", record.Partition).
			Int64("offset", record.Offset).
			Err(err).
			Msg("worker: failed to commit record offset")
	}
}

func (e *Engine) fillFromRecord(msg *common.ValidatedMessage, record *Record) {
	if msg.Channel == "" {
		msg.Channel = e.cfg.Channel
	}
	if msg.MessageID == "" {
		msg.MessageID = string(record.Key)
	}
	if len(msg.RawPayload) == 0 {
		msg.RawPayload = cloneBytes(record.Value)
	}
	if len(msg.Key) == 0 {
		msg.Key = cloneBytes(record.Key)
	}
	if len(msg.KafkaHeaders) == 0 && len(record.Headers) > 0 {
		msg.KafkaHeaders = cloneHeaders(record.Headers)
	}
}

func (e *Engine) partialMessageFromRecord(record *Record) *common.ValidatedMessage {
	return &common.ValidatedMessage{
		Channel:      e.cfg.Channel,
		MessageID:    string(record.Key),
		RawPayload:   cloneBytes(record.Value),
		Key:          cloneBytes(record.Key),
		KafkaHeaders: cloneHeaders(record.Headers),
	}
}

// originalMessage embeds raw as JSON when it is valid and as a JSON string
// otherwise, so DLQ records always marshal.
func originalMessage(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	if json.Valid(raw) {
		return json.RawMessage(cloneBytes(raw))
	}
	quoted, err := json.Marshal(string(raw))
	if err != nil {
		return nil
	}
	return quoted
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	clone := make([]byte, len(b))
	copy(clone, b)
	return clone
}

func cloneHeaders(headers map[string][]byte) map[string][]byte {
	if len(headers) == 0 {
		return nil
	}
	clone := make(map[string][]byte, len(headers))
	for k, v := range headers {
		clone[k] = cloneBytes(v)
	}
	return clone
}
