package telemetry

import (
	"maps"
	"sync"
	"time"

	"cybertodo/internal/clock"
)

const DefaultLimit = 1000

// MemoryRepository keeps the most recent events in memory. The activity log
// is diagnostic and is not persisted with the task collection.
type MemoryRepository struct {
	mu     sync.RWMutex
	events []Event
	nextID int
	limit  int
	clock  clock.Clock
}

func NewMemoryRepository(c clock.Clock, limit int) *MemoryRepository {
	if c == nil {
		c = clock.Real{}
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &MemoryRepository{
		events: make([]Event, 0),
		nextID: 1,
		limit:  limit,
		clock:  c,
	}
}

func (r *MemoryRepository) RecordEvent(eventType EventType, metadata EventMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, Event{
		ID:        r.nextID,
		Type:      eventType,
		Timestamp: r.clock.Now(),
		Metadata:  maps.Clone(metadata),
	})
	r.nextID++

	if over := len(r.events) - r.limit; over > 0 {
		r.events = append(r.events[:0:0], r.events[over:]...)
	}
	return nil
}

// GetEvents returns events at or after since, optionally narrowed to types.
func (r *MemoryRepository) GetEvents(since time.Time, eventTypes []EventType) ([]Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	typeFilter := make(map[EventType]bool, len(eventTypes))
	for _, t := range eventTypes {
		typeFilter[t] = true
	}

	result := make([]Event, 0)
	for _, event := range r.events {
		if event.Timestamp.Before(since) {
			continue
		}
		if len(eventTypes) > 0 && !typeFilter[event.Type] {
			continue
		}
		result = append(result, event)
	}
	return result, nil
}

func (r *MemoryRepository) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = make([]Event, 0)
	r.nextID = 1
	return nil
}
