package task

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"cybertodo/internal/clock"
	"cybertodo/internal/jsonlog"
	"cybertodo/internal/model"
	"cybertodo/internal/storage"
	"cybertodo/internal/telemetry"
)

// ViewState is what the view layer is currently looking at. Filter is
// persisted with the tasks; SearchTerm and EditingID live for the session.
type ViewState struct {
	Filter     model.Filter `json:"filter"`
	SearchTerm string       `json:"searchTerm"`
	EditingID  model.TaskID `json:"editingId,omitempty"`
}

func defaultView() ViewState {
	return ViewState{Filter: model.FilterAll}
}

// persistedState is the shape written into the storage slot.
type persistedState struct {
	Tasks  []model.Task `json:"tasks"`
	Filter model.Filter `json:"filter"`
}

type Defaults struct {
	Priority model.Priority
	Category string
}

// Store owns the ordered task collection and the view state. Every mutation
// changes memory first and then writes the whole state through to its slot
// before returning.
//
// A Store is not safe for concurrent use; callers that share one across
// goroutines must serialize access.
type Store struct {
	tasks []model.Task
	view  ViewState

	slot          *storage.Slot
	clock         clock.Clock
	newID         func() model.TaskID
	log           *jsonlog.Logger
	events        telemetry.Recorder
	defaults      Defaults
	matchCategory bool
}

type Option func(*Store)

func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithIDSource replaces the UUID generator.
func WithIDSource(fn func() model.TaskID) Option {
	return func(s *Store) { s.newID = fn }
}

func WithLogger(l *jsonlog.Logger) Option {
	return func(s *Store) { s.log = l }
}

func WithRecorder(r telemetry.Recorder) Option {
	return func(s *Store) { s.events = r }
}

func WithDefaults(d Defaults) Option {
	return func(s *Store) {
		if d.Priority.Valid() {
			s.defaults.Priority = d.Priority
		}
		if c := strings.TrimSpace(d.Category); c != "" {
			s.defaults.Category = c
		}
	}
}

// WithCategorySearch controls whether search terms also match categories.
func WithCategorySearch(on bool) Option {
	return func(s *Store) { s.matchCategory = on }
}

func newUUID() model.TaskID {
	return model.TaskID(uuid.NewString())
}

// NewStore builds a store bound to slot and hydrates it from whatever the
// slot holds.
func NewStore(slot *storage.Slot, opts ...Option) (*Store, error) {
	if slot == nil || slot.KV == nil {
		return nil, errors.New("storage slot is required")
	}
	s := &Store{
		tasks:         []model.Task{},
		view:          defaultView(),
		slot:          slot,
		clock:         clock.Real{},
		newID:         newUUID,
		events:        telemetry.Nop{},
		defaults:      Defaults{Priority: model.PriorityMedium, Category: model.DefaultCategory},
		matchCategory: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = jsonlog.Discard()
	}

	if err := s.hydrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) hydrate() error {
	var st persistedState
	found, err := s.slot.Load(&st)
	if err != nil {
		return fmt.Errorf("hydrate tasks: %w", err)
	}
	if !found {
		s.log.Info("store_hydrated", map[string]any{"key": s.slot.Key, "tasks": 0, "first_run": true})
		return nil
	}

	tasks, err := s.normalizeTasks(st.Tasks)
	if err != nil {
		return fmt.Errorf("hydrate tasks: %w", err)
	}
	s.tasks = tasks
	if st.Filter.Valid() {
		s.view.Filter = st.Filter
	}
	s.log.Info("store_hydrated", map[string]any{"key": s.slot.Key, "tasks": len(s.tasks)})
	return nil
}

// commit records the applied mutation and writes the full state through.
func (s *Store) commit(ev telemetry.EventType, md telemetry.EventMetadata) error {
	if err := s.events.RecordEvent(ev, md); err != nil {
		s.log.Warn("activity_record_failed", map[string]any{"event": string(ev), "error": err})
	}

	st := persistedState{Tasks: s.tasks, Filter: s.view.Filter}
	if err := s.slot.Save(st); err != nil {
		s.log.Error("persist_failed", map[string]any{
			"key":   s.slot.Key,
			"event": string(ev),
			"tasks": len(s.tasks),
			"error": err,
		})
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

func (s *Store) index(id model.TaskID) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) nextID() model.TaskID {
	for {
		id := s.newID()
		if id != "" && s.index(id) < 0 {
			return id
		}
	}
}

func cloneTasks(in []model.Task) []model.Task {
	out := make([]model.Task, len(in))
	for i, t := range in {
		out[i] = t.Clone()
	}
	return out
}

// Tasks returns a copy of the whole collection in order.
func (s *Store) Tasks() []model.Task {
	return cloneTasks(s.tasks)
}

func (s *Store) Len() int { return len(s.tasks) }

func (s *Store) Get(id model.TaskID) (model.Task, bool) {
	i := s.index(id)
	if i < 0 {
		return model.Task{}, false
	}
	return s.tasks[i].Clone(), true
}

func (s *Store) View() ViewState { return s.view }

func (s *Store) Defaults() Defaults { return s.defaults }
