package goLearn

import (
	"context"
	"sync"
	"sync/atomic"
)

// eventTypes indexes the per-type drop counters. Types outside the list share the last slot.
var eventTypes = [...]string{
	EventLogin,
	EventRegister,
	EventLogout,
	EventRefresh,
	EventSignOut,
	EventReplaySkipped,
	EventUploadComplete,
}

// EventTypeOther labels drops of event types the client does not emit itself.
const EventTypeOther = "other"

// queuedEvent is either an event or, when flushed is set, a barrier closed once every
// earlier item has reached the sink.
type queuedEvent struct {
	event   Event
	flushed chan struct{}
}

// eventQueue hands events to the sink on one goroutine, in emission order. A nil
// *eventQueue discards everything, which is what a client with events disabled holds.
type eventQueue struct {
	sink       EventSink
	dropIfFull bool

	items   chan queuedEvent
	quit    chan struct{}
	drained chan struct{}
	closing atomic.Bool
	once    sync.Once

	drops [len(eventTypes) + 1]atomic.Uint64
}

func newEventQueue(cfg EventsConfig, sink EventSink) *eventQueue {
	if !cfg.Enabled {
		return nil
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	q := &eventQueue{
		sink:       sink,
		dropIfFull: cfg.DropIfFull,
		items:      make(chan queuedEvent, size),
		quit:       make(chan struct{}),
		drained:    make(chan struct{}),
	}
	go q.deliver()
	return q
}

func (q *eventQueue) deliver() {
	defer close(q.drained)
	for {
		select {
		case item := <-q.items:
			q.handle(item)
			continue
		case <-q.quit:
		}
		// Only this goroutine receives, so len is stable enough to drain by.
		for len(q.items) > 0 {
			q.handle(<-q.items)
		}
		return
	}
}

func (q *eventQueue) handle(item queuedEvent) {
	if item.flushed != nil {
		close(item.flushed)
		return
	}
	q.sink.Emit(context.Background(), item.event)
}

// Emit queues event. With DropIfFull a full buffer drops it at once; otherwise Emit waits
// for room until ctx ends. Either way a drop is counted against the event's type.
func (q *eventQueue) Emit(ctx context.Context, event Event) {
	if q == nil || q.closing.Load() {
		return
	}
	item := queuedEvent{event: event}

	if q.dropIfFull {
		select {
		case q.items <- item:
		case <-q.quit:
		default:
			q.drop(event.Type)
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case q.items <- item:
	case <-ctx.Done():
		q.drop(event.Type)
	case <-q.quit:
	}
}

// Flush waits until every event queued before the call has reached the sink. It reports
// false when ctx ended first.
func (q *eventQueue) Flush(ctx context.Context) bool {
	if q == nil {
		return true
	}
	barrier := make(chan struct{})
	select {
	case q.items <- queuedEvent{flushed: barrier}:
	case <-q.quit:
		<-q.drained
		return true
	case <-ctx.Done():
		return false
	}

	select {
	case <-barrier:
		return true
	case <-q.drained:
		return true
	case <-ctx.Done():
		return false
	}
}

// Close delivers what is queued and stops the goroutine. Later calls are no-ops.
func (q *eventQueue) Close() {
	if q == nil {
		return
	}
	q.once.Do(func() {
		q.closing.Store(true)
		close(q.quit)
		<-q.drained
	})
}

func (q *eventQueue) drop(eventType string) {
	for i, t := range eventTypes {
		if t == eventType {
			q.drops[i].Add(1)
			return
		}
	}
	q.drops[len(eventTypes)].Add(1)
}

func (q *eventQueue) Dropped() uint64 {
	if q == nil {
		return 0
	}
	var total uint64
	for i := range q.drops {
		total += q.drops[i].Load()
	}
	return total
}

// DroppedByType reports drops for every client event type plus EventTypeOther, zeros
// included, so exported series stay stable.
func (q *eventQueue) DroppedByType() map[string]uint64 {
	out := make(map[string]uint64, len(eventTypes)+1)
	for i, t := range eventTypes {
		out[t] = 0
		if q != nil {
			out[t] = q.drops[i].Load()
		}
	}
	out[EventTypeOther] = 0
	if q != nil {
		out[EventTypeOther] = q.drops[len(eventTypes)].Load()
	}
	return out
}
