package task

import (
	"slices"
	"strings"

	"cybertodo/internal/model"
	"cybertodo/internal/telemetry"
)

// AddTask prepends a new active task. Blank text returns ErrEmptyText.
func (s *Store) AddTask(text string) (model.Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Task{}, ErrEmptyText
	}

	t := model.Task{
		ID:        s.nextID(),
		Text:      text,
		CreatedAt: s.clock.Now(),
		Priority:  s.defaults.Priority,
		Category:  s.defaults.Category,
	}
	s.tasks = slices.Insert(s.tasks, 0, t)

	return t.Clone(), s.commit(telemetry.EventTaskAdded, telemetry.EventMetadata{"id": string(t.ID)})
}

func (s *Store) ToggleTask(id model.TaskID) (bool, error) {
	i := s.index(id)
	if i < 0 {
		return false, nil
	}
	t := &s.tasks[i]
	t.SetCompleted(!t.Completed, s.clock.Now())

	return true, s.commit(telemetry.EventTaskToggled, telemetry.EventMetadata{
		"id":        string(id),
		"completed": t.Completed,
	})
}

func (s *Store) DeleteTask(id model.TaskID) (bool, error) {
	i := s.index(id)
	if i < 0 {
		return false, nil
	}
	s.tasks = slices.Delete(s.tasks, i, i+1)
	if s.view.EditingID == id {
		s.view.EditingID = ""
	}
	return true, s.commit(telemetry.EventTaskDeleted, telemetry.EventMetadata{"id": string(id)})
}

// EditTask replaces a task's text. A successful edit ends edit mode for that
// task.
func (s *Store) EditTask(id model.TaskID, text string) (bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return false, ErrEmptyText
	}
	i := s.index(id)
	if i < 0 {
		return false, nil
	}
	s.tasks[i].Text = text
	if s.view.EditingID == id {
		s.view.EditingID = ""
	}
	return true, s.commit(telemetry.EventTaskEdited, telemetry.EventMetadata{"id": string(id)})
}

func (s *Store) SetPriority(id model.TaskID, p model.Priority) (bool, error) {
	if !p.Valid() {
		return false, ErrUnknownPriority
	}
	i := s.index(id)
	if i < 0 {
		return false, nil
	}
	s.tasks[i].Priority = p
	return true, s.commit(telemetry.EventPrioritySet, telemetry.EventMetadata{
		"id":       string(id),
		"priority": string(p),
	})
}

// SetCategory trims the label; a blank label resets to the default category.
func (s *Store) SetCategory(id model.TaskID, category string) (bool, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		category = s.defaults.Category
	}
	i := s.index(id)
	if i < 0 {
		return false, nil
	}
	s.tasks[i].Category = category
	return true, s.commit(telemetry.EventCategorySet, telemetry.EventMetadata{
		"id":       string(id),
		"category": category,
	})
}

// ClearCompleted removes every completed task and reports how many went.
func (s *Store) ClearCompleted() (int, error) {
	before := len(s.tasks)
	s.tasks = slices.DeleteFunc(s.tasks, func(t model.Task) bool { return t.Completed })
	removed := before - len(s.tasks)
	if removed == 0 {
		return 0, nil
	}
	if s.view.EditingID != "" && s.index(s.view.EditingID) < 0 {
		s.view.EditingID = ""
	}
	return removed, s.commit(telemetry.EventCompletedCleared, telemetry.EventMetadata{"count": removed})
}

// CompleteAll marks every task completed, unless every task already is, in
// which case it marks every task active. It returns the resulting state.
// TODO: confirm with product whether the un-complete branch is intended.
func (s *Store) CompleteAll() (bool, error) {
	if len(s.tasks) == 0 {
		return false, nil
	}
	allDone := !slices.ContainsFunc(s.tasks, func(t model.Task) bool { return !t.Completed })
	target := !allDone

	now := s.clock.Now()
	for i := range s.tasks {
		s.tasks[i].SetCompleted(target, now)
	}
	return target, s.commit(telemetry.EventAllToggled, telemetry.EventMetadata{
		"completed": target,
		"count":     len(s.tasks),
	})
}

func (s *Store) SetFilter(f model.Filter) error {
	if !f.Valid() {
		return ErrUnknownFilter
	}
	if s.view.Filter == f {
		return nil
	}
	s.view.Filter = f
	return s.commit(telemetry.EventFilterChanged, telemetry.EventMetadata{"filter": string(f)})
}

func (s *Store) SetSearchTerm(term string) {
	s.view.SearchTerm = term
}

// BeginEdit puts id into edit mode, replacing any task already being edited.
func (s *Store) BeginEdit(id model.TaskID) bool {
	if s.index(id) < 0 {
		return false
	}
	s.view.EditingID = id
	return true
}

func (s *Store) CancelEdit() {
	s.view.EditingID = ""
}

// Reorder moves the task at from so that it ends up at index to.
func (s *Store) Reorder(from, to int) error {
	n := len(s.tasks)
	if from < 0 || from >= n || to < 0 || to >= n {
		return ErrIndexOutOfRange
	}
	if from == to {
		return nil
	}
	t := s.tasks[from]
	s.tasks = slices.Delete(s.tasks, from, from+1)
	s.tasks = slices.Insert(s.tasks, to, t)

	return s.commit(telemetry.EventTasksReordered, telemetry.EventMetadata{
		"id":   string(t.ID),
		"from": from,
		"to":   to,
	})
}

func idSet(ids []model.TaskID) map[model.TaskID]struct{} {
	set := make(map[model.TaskID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// BulkDelete removes every listed task; unknown ids are skipped.
func (s *Store) BulkDelete(ids []model.TaskID) (int, error) {
	set := idSet(ids)
	before := len(s.tasks)
	s.tasks = slices.DeleteFunc(s.tasks, func(t model.Task) bool {
		_, ok := set[t.ID]
		return ok
	})
	removed := before - len(s.tasks)
	if removed == 0 {
		return 0, nil
	}
	if _, ok := set[s.view.EditingID]; ok {
		s.view.EditingID = ""
	}
	return removed, s.commit(telemetry.EventBulkDeleted, telemetry.EventMetadata{"count": removed})
}

// BulkComplete marks every listed task completed. Already-completed tasks
// keep their original CompletedAt.
func (s *Store) BulkComplete(ids []model.TaskID) (int, error) {
	set := idSet(ids)
	now := s.clock.Now()
	matched := 0
	for i := range s.tasks {
		if _, ok := set[s.tasks[i].ID]; !ok {
			continue
		}
		s.tasks[i].SetCompleted(true, now)
		matched++
	}
	if matched == 0 {
		return 0, nil
	}
	return matched, s.commit(telemetry.EventBulkCompleted, telemetry.EventMetadata{"count": matched})
}

func (s *Store) BulkSetPriority(ids []model.TaskID, p model.Priority) (int, error) {
	if !p.Valid() {
		return 0, ErrUnknownPriority
	}
	set := idSet(ids)
	matched := 0
	for i := range s.tasks {
		if _, ok := set[s.tasks[i].ID]; !ok {
			continue
		}
		s.tasks[i].Priority = p
		matched++
	}
	if matched == 0 {
		return 0, nil
	}
	return matched, s.commit(telemetry.EventBulkPrioritySet, telemetry.EventMetadata{
		"count":    matched,
		"priority": string(p),
	})
}

// Reset empties the collection and restores the default view state.
func (s *Store) Reset() error {
	s.tasks = []model.Task{}
	s.view = defaultView()
	return s.commit(telemetry.EventStoreReset, nil)
}
