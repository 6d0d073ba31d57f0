package consumer

import (
	"context"
	"sync"

	"github.com/IBM/sarama"
)

// markingSession is a sarama.ConsumerGroupSession that remembers every
// message marked through it.
type markingSession struct {
	ctx context.Context

	mu      sync.Mutex
	marked  []int64
	commits int
}

func newMarkingSession(ctx context.Context) *markingSession {
	return &markingSession{ctx: ctx}
}

func (s *markingSession) Claims() map[string][]int32 { return nil }
func (s *markingSession) MemberID() string           { return "member-1" }
func (s *markingSession) GenerationID() int32        { return 1 }
func (s *markingSession) MarkOffset(string, int32, int64, string) {
}
func (s *markingSession) ResetOffset(string, int32, int64, string) {
}
func (s *markingSession) Context() context.Context { return s.ctx }

func (s *markingSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, msg.Offset)
}

func (s *markingSession) Commit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits++
}

func (s *markingSession) Marked() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.marked...)
}

func (s *markingSession) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

// staticClaim replays a fixed set of messages for one partition.
type staticClaim struct {
	topic     string
	partition int32
	messages  chan *sarama.ConsumerMessage
}

func newStaticClaim(topic string, partition int32, msgs ...*sarama.ConsumerMessage) *staticClaim {
	ch := make(chan *sarama.ConsumerMessage, len(msgs))
	for _, m := range msgs {
		ch <- m
	}
	close(ch)
	return &staticClaim{topic: topic, partition: partition, messages: ch}
}

func (c *staticClaim) Topic() string                            { return c.topic }
func (c *staticClaim) Partition() int32                         { return c.partition }
func (c *staticClaim) InitialOffset() int64                     { return 0 }
func (c *staticClaim) HighWaterMarkOffset() int64               { return 0 }
func (c *staticClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }
