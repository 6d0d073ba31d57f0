package producer

import (
	"sync"
	"time"
)

// health tracks producer readiness from send outcomes and metadata age.
type health struct {
	mu        sync.Mutex
	staleness time.Duration
	refreshFn func() error
	now       func() time.Time

	refreshedAt time.Time
	metadataOK  bool
	sendOK      bool
}

func newHealth(staleness time.Duration, refresh func() error, now func() time.Time) *health {
	return &health{staleness: staleness, refreshFn: refresh, now: now, sendOK: true}
}

// observe records the outcome of a send.
func (h *health) observe(err error) {
	h.mu.Lock()
	h.sendOK = err == nil
	h.mu.Unlock()
}

func (h *health) refresh() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.refreshLocked()
}

func (h *health) refreshLocked() bool {
	h.metadataOK = h.refreshFn() == nil
	h.refreshedAt = h.now()
	if h.metadataOK {
		// a working metadata round trip means the brokers answer again
		h.sendOK = true
	}
	return h.metadataOK
}

func (h *health) ready() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.refreshedAt.IsZero() || h.now().Sub(h.refreshedAt) >= h.staleness || !h.metadataOK {
		h.refreshLocked()
	}
	return h.metadataOK && h.sendOK
}
