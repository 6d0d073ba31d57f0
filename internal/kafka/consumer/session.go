package consumer

import "github.com/IBM/sarama"

// session implements sarama.ConsumerGroupHandler for one group generation.
type session struct {
	consumer *Consumer
}

func (s *session) Setup(sess sarama.ConsumerGroupSession) error {
	s.consumer.ready.Store(true)
	s.consumer.logger.Info().
		Int32("generation", sess.GenerationID()).
		Interface("claims", sess.Claims()).
		Msg("kafka consumer: session started")
	return nil
}

func (s *session) Cleanup(sess sarama.ConsumerGroupSession) error {
	s.consumer.ready.Store(false)
	s.consumer.logger.Info().
		Int32("generation", sess.GenerationID()).
		Msg("kafka consumer: session ended")
	return nil
}

// ConsumeClaim hands every message of one partition claim to the handler.
// Each claim gets its own offset tracker, so ordering state never crosses a
// rebalance.
func (s *session) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	offsets := newOffsetTracker()
	defer func() {
		if n := offsets.outstanding(); n > 0 {
			s.consumer.logger.Info().
				Str("topic", claim.Topic()).
				Int32("partition", claim.Partition()).
				Int("unacknowledged", n).
				Msg("kafka consumer: claim released with records left for redelivery")
		}
	}()

	for {
		select {
		case <-sess.Context().Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			s.deliver(sess, msg, offsets)
		}
	}
}

func (s *session) deliver(sess sarama.ConsumerGroupSession, msg *sarama.ConsumerMessage, offsets *offsetTracker) {
	handler := s.consumer.currentHandler()
	if handler == nil {
		s.consumer.logger.Error().Msg("kafka consumer: message received without handler")
		return
	}

	if err := handler(sess.Context(), newRecord(sess, msg, offsets)); err != nil {
		s.consumer.logger.Error().
			Err(err).
			Str("topic", msg.Topic).
			Int32("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("kafka consumer: handler error")
	}
}
