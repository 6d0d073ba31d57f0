package consumer

import (
	"context"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
)

type MarkingSession = markingSession

func NewMarkingSession(ctx context.Context) *MarkingSession {
	return newMarkingSession(ctx)
}

func NewStaticClaim(topic string, partition int32, msgs ...*sarama.ConsumerMessage) sarama.ConsumerGroupClaim {
	return newStaticClaim(topic, partition, msgs...)
}

// NewDetached returns a consumer without a broker connection whose claims
// are driven by ConsumeClaim.
func NewDetached(handler Handler, commitOnAck bool) *Consumer {
	return &Consumer{
		logger:      zerolog.Nop(),
		commitOnAck: commitOnAck,
		handler:     handler,
	}
}

func (c *Consumer) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	return (&session{consumer: c}).ConsumeClaim(sess, claim)
}
