package telemetry

import "time"

type EventType string

const (
	EventTaskAdded        EventType = "task_added"
	EventTaskToggled      EventType = "task_toggled"
	EventTaskDeleted      EventType = "task_deleted"
	EventTaskEdited       EventType = "task_edited"
	EventPrioritySet      EventType = "priority_set"
	EventCategorySet      EventType = "category_set"
	EventCompletedCleared EventType = "completed_cleared"
	EventAllToggled       EventType = "all_toggled"
	EventTasksReordered   EventType = "tasks_reordered"
	EventBulkDeleted      EventType = "bulk_deleted"
	EventBulkCompleted    EventType = "bulk_completed"
	EventBulkPrioritySet  EventType = "bulk_priority_set"
	EventFilterChanged    EventType = "filter_changed"
	EventSnapshotImported EventType = "snapshot_imported"
	EventStoreReset       EventType = "store_reset"
)

type Event struct {
	ID        int           `json:"id"`
	Type      EventType     `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
	Metadata  EventMetadata `json:"metadata,omitempty"`
}

type EventMetadata map[string]any

// Recorder receives one event per applied store mutation.
type Recorder interface {
	RecordEvent(eventType EventType, metadata EventMetadata) error
}

// Nop discards events.
type Nop struct{}

func (Nop) RecordEvent(EventType, EventMetadata) error { return nil }
