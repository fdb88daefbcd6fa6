package telemetry

import "time"

type Stats struct {
	Since       time.Time         `json:"since"`
	EventCounts map[EventType]int `json:"event_counts"`
	Added       int               `json:"added"`
	Completions int               `json:"completions"`
	Deletions   int               `json:"deletions"`
	Imports     int               `json:"imports"`
}

// CalculateStats summarizes activity. Completions and deletions count tasks,
// not events, so a bulk operation touching five tasks adds five.
func CalculateStats(events []Event, since time.Time) Stats {
	stats := Stats{
		Since:       since,
		EventCounts: make(map[EventType]int),
	}

	for _, event := range events {
		stats.EventCounts[event.Type]++

		switch event.Type {
		case EventTaskAdded:
			stats.Added++
		case EventTaskToggled:
			if done, ok := event.Metadata["completed"].(bool); ok && done {
				stats.Completions++
			}
		case EventAllToggled:
			if done, ok := event.Metadata["completed"].(bool); ok && done {
				stats.Completions += count(event.Metadata)
			}
		case EventBulkCompleted:
			stats.Completions += count(event.Metadata)
		case EventTaskDeleted:
			stats.Deletions++
		case EventBulkDeleted, EventCompletedCleared:
			stats.Deletions += count(event.Metadata)
		case EventSnapshotImported:
			stats.Imports++
		}
	}
	return stats
}

func count(m EventMetadata) int {
	switch v := m["count"].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}
