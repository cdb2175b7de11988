// Package eventbus is a generic pub-sub fan-out used to decouple the
// pipeline from the analytics sink (§4.6, §4.10): the handler chain
// publishes every persisted event once, and any number of subscribers
// (today just internal/analytics) drain it independently, without the
// pipeline importing ClickHouse or knowing the sink exists.
//
// Grounded on the teacher's internal/event_manager.EventManager
// (buffered queue, per-subscriber buffered channel, type/server
// filtering, drop-and-count on backpressure instead of blocking the
// publisher), generalized from a UUID-keyed, Squad-specific event
// shape to model.Event.
package eventbus

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jstnmthw/hlstatsnext-sub008/internal/model"
)

// DefaultQueueCapacity bounds the bus's internal distribution queue.
const DefaultQueueCapacity = 4096

// DefaultSubscriberCapacity bounds each subscriber's own channel.
const DefaultSubscriberCapacity = 256

// Filter narrows a subscription to specific servers and/or event
// kinds; a zero-value Filter matches everything.
type Filter struct {
	ServerIDs []model.ServerID
	Types     []model.EventType
}

func (f Filter) matches(evt model.Event) bool {
	if len(f.ServerIDs) > 0 {
		found := false
		for _, id := range f.ServerIDs {
			if id == evt.ServerID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Types) == 0 {
		return true
	}
	for _, t := range f.Types {
		if t == evt.Data.EventType() {
			return true
		}
	}
	return false
}

type subscriber struct {
	id     uuid.UUID
	ch     chan model.Event
	filter Filter
}

// Bus distributes published events to matching subscribers, dropping
// (and counting) on a full subscriber channel rather than blocking the
// publisher: a slow or stuck subscriber must never stall persistence.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[uuid.UUID]*subscriber
	queue       chan model.Event
	log         zerolog.Logger

	dropped int64
}

// New builds a Bus and starts its distribution loop; cancelling ctx
// stops it.
func New(ctx context.Context, capacity int, log zerolog.Logger) *Bus {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	b := &Bus{
		subscribers: make(map[uuid.UUID]*subscriber),
		queue:       make(chan model.Event, capacity),
		log:         log.With().Str("component", "eventbus").Logger(),
	}
	go b.run(ctx)
	return b
}

// Subscribe registers a new subscriber matching filter and returns its
// receive channel plus an unsubscribe func.
func (b *Bus) Subscribe(filter Filter) (<-chan model.Event, func()) {
	sub := &subscriber{
		id:     uuid.New(),
		ch:     make(chan model.Event, DefaultSubscriberCapacity),
		filter: filter,
	}

	b.mu.Lock()
	b.subscribers[sub.id] = sub
	b.mu.Unlock()

	return sub.ch, func() { b.unsubscribe(sub.id) }
}

func (b *Bus) unsubscribe(id uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subscribers[id]; ok {
		close(sub.ch)
		delete(b.subscribers, id)
	}
}

// Publish enqueues evt for distribution; if the bus's own queue is
// full the event is dropped and counted rather than blocking the
// caller (the handler chain's persist step, which must never stall on
// a downstream consumer).
func (b *Bus) Publish(evt model.Event) {
	select {
	case b.queue <- evt:
	default:
		b.dropped++
		b.log.Warn().Str("event_id", evt.ID.String()).Msg("eventbus queue full, dropping event")
	}
}

// Dropped returns the count of events dropped for a full internal queue
// or a full subscriber channel.
func (b *Bus) Dropped() int64 { return b.dropped }

func (b *Bus) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-b.queue:
			b.distribute(evt)
		}
	}
}

func (b *Bus) distribute(evt model.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if !sub.filter.matches(evt) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			b.dropped++
			b.log.Warn().Str("event_id", evt.ID.String()).Msg("subscriber channel full, dropping event")
		}
	}
}
