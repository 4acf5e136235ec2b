// Package bus implements the process-wide signal fan-out bus of spec
// §4.5: best-effort delivery per subscriber, with per-subscriber
// backpressure dropping rather than a single shared channel that would
// let one slow subscriber stall every other. Grounded directly on
// pkg/bus/bus.go's MessageBus fan-out taps (SubscribeInboundTap/
// fanOutInbound's non-blocking `select{...default: drop}` pattern),
// generalized from three fixed fan-out lists (inbound/outbound/system)
// to one fan-out list keyed by session id, and from anonymous taps to
// liveness-tracked subscriber handles that the bus reaps on cancellation.
package bus

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/docflow/docflow/internal/domain"
)

// DefaultMaxQueueLen is the default per-subscriber inbox depth before
// signals are dropped for that subscriber (spec §4.5).
const DefaultMaxQueueLen = 200

// DefaultMaxPayloadBytes bounds a single data value before it is
// replaced with a TruncatedMarker on broadcast.
const DefaultMaxPayloadBytes = 8192

type subscriber struct {
	id      uint64
	ch      chan domain.Signal
	drops   uint64
	mu      sync.Mutex
}

// Bus is a process-wide, session-keyed signal fan-out bus.
type Bus struct {
	mu              sync.RWMutex
	subs            map[domain.SessionID][]*subscriber
	nextID          uint64
	maxQueueLen     int
	maxPayloadBytes int
}

// Option configures a Bus at construction.
type Option func(*Bus)

// WithMaxQueueLen overrides DefaultMaxQueueLen.
func WithMaxQueueLen(n int) Option { return func(b *Bus) { b.maxQueueLen = n } }

// WithMaxPayloadBytes overrides DefaultMaxPayloadBytes.
func WithMaxPayloadBytes(n int) Option { return func(b *Bus) { b.maxPayloadBytes = n } }

// New returns an empty Bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		subs:            make(map[domain.SessionID][]*subscriber),
		maxQueueLen:     DefaultMaxQueueLen,
		maxPayloadBytes: DefaultMaxPayloadBytes,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Subscribe registers a new tap on sessionID's signal stream. The
// returned channel receives signals in broadcast order until ctx is
// canceled, at which point a watcher goroutine removes the subscriber
// and closes its channel (mirroring "the bus monitors handle liveness and
// removes dead handles automatically", spec §4.5).
func (b *Bus) Subscribe(ctx context.Context, sessionID domain.SessionID) (<-chan domain.Signal, error) {
	if sessionID.IsZero() {
		return nil, domain.NewError(domain.ErrSubscription, "session id must not be empty")
	}
	b.mu.Lock()
	b.nextID++
	sub := &subscriber{id: b.nextID, ch: make(chan domain.Signal, b.maxQueueLen)}
	b.subs[sessionID] = append(b.subs[sessionID], sub)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.removeSubscriber(sessionID, sub.id)
	}()

	return sub.ch, nil
}

func (b *Bus) removeSubscriber(sessionID domain.SessionID, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[sessionID]
	for i, s := range list {
		if s.id == id {
			close(s.ch)
			b.subs[sessionID] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(b.subs[sessionID]) == 0 {
		delete(b.subs, sessionID)
	}
}

// Publish broadcasts sig to every live subscriber of its session. A
// subscriber whose inbox is at capacity has the signal dropped for it
// alone; its drop counter increments and every other subscriber still
// receives the signal (spec §4.5).
func (b *Bus) Publish(sig domain.Signal) {
	sig.Data = boundPayload(sig.Data, b.maxPayloadBytes)

	b.mu.RLock()
	subs := b.subs[sig.SessionID]
	snapshot := make([]*subscriber, len(subs))
	copy(snapshot, subs)
	b.mu.RUnlock()

	for _, s := range snapshot {
		select {
		case s.ch <- sig:
		default:
			s.mu.Lock()
			s.drops++
			s.mu.Unlock()
		}
	}
}

// boundPayload replaces any data value whose serialized size exceeds
// maxBytes with a TruncatedMarker carrying its original size.
func boundPayload(data map[string]any, maxBytes int) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		encoded, err := json.Marshal(v)
		if err == nil && len(encoded) > maxBytes {
			out[k] = domain.TruncatedMarker{Truncated: true, OriginalSize: len(encoded)}
			continue
		}
		out[k] = v
	}
	return out
}

// DropCount returns the total number of signals dropped across all
// current subscribers of a session, for diagnostics.
func (b *Bus) DropCount(sessionID domain.SessionID) uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var total uint64
	for _, s := range b.subs[sessionID] {
		s.mu.Lock()
		total += s.drops
		s.mu.Unlock()
	}
	return total
}

// SubscriberCount reports how many live subscribers a session currently has.
func (b *Bus) SubscriberCount(sessionID domain.SessionID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[sessionID])
}
