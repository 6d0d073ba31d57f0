package worker

import (
	"context"

	"github.com/ajayykmr/shortcode-marketing-go/internal/kafka/consumer"
)

// Acker acknowledges consumer records. *consumer.Consumer satisfies it and
// keeps partition offsets in delivery order, so the engine may finish
// records in any order.
type Acker interface {
	Commit(ctx context.Context, record *consumer.Record) error
}

// KafkaHandler returns a consumer.Handler that hands each delivered record to
// engine, bound so that committing it acknowledges the record through ack.
func KafkaHandler(engine *Engine, ack Acker) consumer.Handler {
	return func(ctx context.Context, rec *consumer.Record) error {
		if engine == nil || rec == nil {
			return nil
		}

		var commit func(context.Context) error
		if ack != nil {
			commit = func(c context.Context) error {
				return ack.Commit(c, rec)
			}
		}

		engine.HandleRecord(ctx, NewRecordFromConsumer(rec, commit))
		return nil
	}
}

// NewRecordFromConsumer copies a consumer record into a worker record. When
// commit is non-nil it runs once the record reaches a terminal outcome.
func NewRecordFromConsumer(rec *consumer.Record, commit func(context.Context) error) *Record {
	if rec == nil {
		return nil
	}

	wr := &Record{
		Topic:     rec.Topic,
		Partition: rec.Partition,
		Offset:    rec.Offset,
		Key:       cloneBytes(rec.Key),
		Value:     cloneBytes(rec.Value),
		Timestamp: rec.Timestamp,
		Headers:   cloneHeaders(rec.Headers),
	}
	if commit != nil {
		wr.setCommitFn(commit)
	}
	return wr
}
