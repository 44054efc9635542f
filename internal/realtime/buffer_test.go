package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEventBuffers_AppendAndDrain(t *testing.T) {
	buffers := NewEventBuffers(10)
	now := time.Now().UTC()

	buffers.Append("u1", BufferedEvent{Timestamp: now, Event: Event{"action": "page_view"}})
	buffers.Append("u1", BufferedEvent{Timestamp: now, Event: Event{"action": "click"}})
	buffers.Append("u2", BufferedEvent{Timestamp: now, Event: Event{"action": "scroll"}})

	assert.Equal(t, 3, buffers.QueuedCount())

	drained := buffers.DrainAll()
	assert.Len(t, drained, 2)
	assert.Len(t, drained["u1"], 2)
	assert.Len(t, drained["u2"], 1)

	// Drain resets the buffers
	assert.Equal(t, 0, buffers.QueuedCount())
	assert.Empty(t, buffers.DrainAll())
}

func TestEventBuffers_DropOldestOnOverflow(t *testing.T) {
	buffers := NewEventBuffers(3)
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		buffers.Append("u1", BufferedEvent{
			Timestamp: now,
			Event:     Event{"seq": i},
		})
	}

	assert.Equal(t, 3, buffers.QueuedCount())
	assert.Equal(t, int64(2), buffers.DroppedCount())

	drained := buffers.DrainAll()
	queue := drained["u1"]
	assert.Len(t, queue, 3)

	// The two oldest events were dropped
	assert.Equal(t, 2, queue[0].Event["seq"])
	assert.Equal(t, 4, queue[2].Event["seq"])
}

func TestEventBuffers_NonPositiveCapacityFallsBack(t *testing.T) {
	buffers := NewEventBuffers(0)
	now := time.Now().UTC()

	for i := 0; i < DefaultMaxBufferedEvents; i++ {
		buffers.Append("u1", BufferedEvent{Timestamp: now, Event: Event{}})
	}

	assert.Equal(t, DefaultMaxBufferedEvents, buffers.QueuedCount())
	assert.Equal(t, int64(0), buffers.DroppedCount())
}
