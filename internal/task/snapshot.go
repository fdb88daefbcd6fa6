package task

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"cybertodo/internal/model"
	"cybertodo/internal/telemetry"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown snapshot format %q", s)
}

// ExportSnapshot serializes the collection, in order, as a JSON array.
func (s *Store) ExportSnapshot() ([]byte, error) {
	return s.ExportSnapshotAs(FormatJSON)
}

func (s *Store) ExportSnapshotAs(f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		return json.MarshalIndent(s.tasks, "", "  ")
	case FormatYAML:
		return yaml.Marshal(s.tasks)
	}
	return nil, fmt.Errorf("unknown snapshot format %q", f)
}

// ImportSnapshot replaces the whole collection with the tasks in data. Any
// parse or shape problem returns ErrInvalidSnapshot and changes nothing.
func (s *Store) ImportSnapshot(data []byte) error {
	return s.ImportSnapshotAs(data, FormatJSON)
}

func (s *Store) ImportSnapshotAs(data []byte, f Format) error {
	raw, err := decodeSnapshot(data, f)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	tasks, err := s.normalizeTasks(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}

	s.tasks = tasks
	s.view.EditingID = ""
	return s.commit(telemetry.EventSnapshotImported, telemetry.EventMetadata{"count": len(tasks)})
}

func decodeSnapshot(data []byte, f Format) ([]model.Task, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty input")
	}

	var tasks []model.Task
	switch f {
	case FormatJSON:
		if trimmed[0] != '[' {
			return nil, fmt.Errorf("expected a JSON array of tasks")
		}
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		if err := dec.Decode(&tasks); err != nil {
			return nil, err
		}
		if _, err := dec.Token(); err != io.EOF {
			return nil, fmt.Errorf("unexpected data after task array")
		}
	case FormatYAML:
		var node yaml.Node
		if err := yaml.Unmarshal(trimmed, &node); err != nil {
			return nil, err
		}
		if len(node.Content) != 1 || node.Content[0].Kind != yaml.SequenceNode {
			return nil, fmt.Errorf("expected a YAML sequence of tasks")
		}
		if err := node.Content[0].Decode(&tasks); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown snapshot format %q", f)
	}

	if tasks == nil {
		tasks = []model.Task{}
	}
	return tasks, nil
}

// normalizeTasks checks a foreign task list against the collection
// invariants and fills defaults. It never mutates the store.
func (s *Store) normalizeTasks(in []model.Task) ([]model.Task, error) {
	out := make([]model.Task, 0, len(in))
	seen := make(map[model.TaskID]bool, len(in))
	now := s.clock.Now()

	for i, t := range in {
		t = t.Clone()

		t.ID = model.TaskID(strings.TrimSpace(string(t.ID)))
		if t.ID == "" {
			return nil, fmt.Errorf("task %d: missing id", i)
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("task %d: duplicate id %q", i, t.ID)
		}
		seen[t.ID] = true

		t.Text = strings.TrimSpace(t.Text)
		if t.Text == "" {
			return nil, fmt.Errorf("task %d (%s): empty text", i, t.ID)
		}

		if t.Priority == "" {
			t.Priority = s.defaults.Priority
		}
		if !t.Priority.Valid() {
			return nil, fmt.Errorf("task %d (%s): unknown priority %q", i, t.ID, t.Priority)
		}

		t.Category = strings.TrimSpace(t.Category)
		if t.Category == "" {
			t.Category = s.defaults.Category
		}

		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		if !t.Completed {
			t.CompletedAt = nil
		}
		out = append(out, t)
	}
	return out, nil
}
