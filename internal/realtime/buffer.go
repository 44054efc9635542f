package realtime

import (
	"sync"
	"sync/atomic"
)

// DefaultMaxBufferedEvents bounds each user's queue between drain cycles.
const DefaultMaxBufferedEvents = 1000

// EventBuffers holds per-user queues of events awaiting aggregation.
//
// Queues are bounded: once a user's queue reaches capacity the oldest
// event is dropped to admit the new one (drop-oldest overflow policy).
// Draining swaps the whole map out under the lock, so events appended
// concurrently with a drain land in the fresh map and are neither lost
// nor double counted.
type EventBuffers struct {
	mu         sync.Mutex
	buffers    map[string][]BufferedEvent
	maxPerUser int
	dropped    atomic.Int64
}

// NewEventBuffers creates buffers with the given per-user capacity.
// Non-positive capacity falls back to DefaultMaxBufferedEvents.
func NewEventBuffers(maxPerUser int) *EventBuffers {
	if maxPerUser <= 0 {
		maxPerUser = DefaultMaxBufferedEvents
	}
	return &EventBuffers{
		buffers:    make(map[string][]BufferedEvent),
		maxPerUser: maxPerUser,
	}
}

// Append queues one event for the user, dropping the oldest on overflow.
func (b *EventBuffers) Append(userID string, event BufferedEvent) {
	b.mu.Lock()
	queue := b.buffers[userID]
	if len(queue) >= b.maxPerUser {
		copy(queue, queue[1:])
		queue = queue[:len(queue)-1]
		b.dropped.Add(1)
	}
	b.buffers[userID] = append(queue, event)
	b.mu.Unlock()
}

// DrainAll atomically takes every queued event and resets the buffers.
func (b *EventBuffers) DrainAll() map[string][]BufferedEvent {
	b.mu.Lock()
	drained := b.buffers
	b.buffers = make(map[string][]BufferedEvent)
	b.mu.Unlock()

	return drained
}

// QueuedCount returns the total number of events across all users.
func (b *EventBuffers) QueuedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	total := 0
	for _, queue := range b.buffers {
		total += len(queue)
	}
	return total
}

// DroppedCount returns the cumulative number of events dropped to overflow.
func (b *EventBuffers) DroppedCount() int64 {
	return b.dropped.Load()
}
