package task

import (
	"encoding/json"
	"strings"

	"cybertodo/internal/storage"
)

// SchemaVersion is the version written into the storage slot.
//
//	v1: {"todos":[...],"filter":...} as written by the browser client
//	v2: {"tasks":[...],"filter":...}
const SchemaVersion = 2

// NewSlot returns a slot for key with every known migration registered.
func NewSlot(kv storage.KV, key string) *storage.Slot {
	slot := storage.NewSlot(kv, key, SchemaVersion)
	slot.Migrations[1] = migrateV1
	return slot
}

// migrateV1 renames todos to tasks, maps the old "normal" priority onto
// medium and drops entries whose text is blank.
func migrateV1(state json.RawMessage) (json.RawMessage, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(state, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return state, nil
	}

	raw, ok := doc["todos"]
	if !ok {
		raw, ok = doc["tasks"]
	}
	delete(doc, "todos")
	if !ok {
		return json.Marshal(doc)
	}

	var items []map[string]any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	kept := make([]map[string]any, 0, len(items))
	for _, it := range items {
		text, _ := it["text"].(string)
		if strings.TrimSpace(text) == "" {
			continue
		}
		if p, _ := it["priority"].(string); p == "" || p == "normal" {
			it["priority"] = "medium"
		}
		kept = append(kept, it)
	}

	tasks, err := json.Marshal(kept)
	if err != nil {
		return nil, err
	}
	doc["tasks"] = tasks
	return json.Marshal(doc)
}
