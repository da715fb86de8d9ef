package gateway

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sosiggg/EnviroSense/internal/infra/logging"
)

// Invalidation reasons published on the bus.
const (
	// ReasonAuthorizationFailed marks a request the backend rejected with 401.
	ReasonAuthorizationFailed = "authorization_failed"
	// ReasonStreamPolicyViolation marks a sensor stream closed with a policy violation.
	ReasonStreamPolicyViolation = "stream_policy_violation"
)

const subscriberBufferSize = 8

// Invalidation describes one session invalidation detected at the transport layer.
type Invalidation struct {
	Reason string    // One of the Reason constants
	Status int       // HTTP status or WebSocket close code that triggered it
	Path   string    // Request path or stream endpoint
	At     time.Time // When the invalidation was detected
}

// Bus fans session invalidations out to subscribers. Publishing never blocks:
// events for subscribers with full buffers are dropped and counted.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]chan Invalidation
	nextID  int
	dropped atomic.Uint64
	log     logging.Logger
}

// NewBus creates an empty invalidation bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[int]chan Invalidation),
		log:  logging.GetLogger("infra.transport.gateway.bus"),
	}
}

// Subscribe registers a new subscriber and returns its channel together with a
// cancel function. The channel is closed when the cancel function is called.
func (b *Bus) Subscribe() (<-chan Invalidation, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	ch := make(chan Invalidation, subscriberBufferSize)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}

	return ch, cancel
}

// Publish delivers the invalidation to all subscribers without blocking.
func (b *Bus) Publish(ctx context.Context, inv Invalidation) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		select {
		case sub <- inv:
		default:
			b.dropped.Add(1)
			b.log.WarnContext(ctx, "invalidation dropped",
				"reason", inv.Reason,
				"dropped_total", b.dropped.Load(),
			)
		}
	}
}

// Dropped returns the number of invalidations dropped due to full subscriber buffers.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}
