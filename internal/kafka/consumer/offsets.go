package consumer

import (
	"sync"

	"github.com/IBM/sarama"
)

// offsetTracker orders acknowledgements for one claimed partition. Kafka
// offsets only move forward, so a record may be marked only once every
// record delivered before it on the same partition has been acknowledged.
type offsetTracker struct {
	mu      sync.Mutex
	pending []int64
	acked   map[int64]*sarama.ConsumerMessage
}

func newOffsetTracker() *offsetTracker {
	return &offsetTracker{acked: make(map[int64]*sarama.ConsumerMessage)}
}

// track registers a delivered offset. Offsets arrive in increasing order
// within a claim.
func (t *offsetTracker) track(offset int64) {
	t.mu.Lock()
	t.pending = append(t.pending, offset)
	t.mu.Unlock()
}

// ack records msg as done and returns the highest message that may now be
// marked, or nil while an earlier offset is still outstanding.
func (t *offsetTracker) ack(msg *sarama.ConsumerMessage) *sarama.ConsumerMessage {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.acked[msg.Offset] = msg

	var mark *sarama.ConsumerMessage
	for len(t.pending) > 0 {
		next, ok := t.acked[t.pending[0]]
		if !ok {
			break
		}
		delete(t.acked, t.pending[0])
		t.pending = t.pending[1:]
		mark = next
	}
	return mark
}

// outstanding reports how many delivered offsets are not yet markable.
func (t *offsetTracker) outstanding() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
