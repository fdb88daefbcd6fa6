package task

import (
	"strings"

	"cybertodo/internal/model"
)

type Stats struct {
	Total      int                    `json:"total"`
	Completed  int                    `json:"completed"`
	Active     int                    `json:"active"`
	ByPriority map[model.Priority]int `json:"byPriority"`
	ByCategory map[string]int         `json:"byCategory"`
}

func (s *Store) matcher(query string) func(model.Task) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return func(model.Task) bool { return true }
	}
	return func(t model.Task) bool {
		if strings.Contains(strings.ToLower(t.Text), q) {
			return true
		}
		return s.matchCategory && strings.Contains(strings.ToLower(t.Category), q)
	}
}

func (s *Store) collect(keep func(model.Task) bool) []model.Task {
	out := make([]model.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if keep(t) {
			out = append(out, t.Clone())
		}
	}
	return out
}

// FilteredTasks applies the current filter and then the search term, keeping
// collection order.
func (s *Store) FilteredTasks() []model.Task {
	byStatus := s.view.Filter.Predicate()
	bySearch := s.matcher(s.view.SearchTerm)
	return s.collect(func(t model.Task) bool {
		return byStatus(t) && bySearch(t)
	})
}

// Search matches query against the whole collection, ignoring the filter.
// A blank query returns every task.
func (s *Store) Search(query string) []model.Task {
	return s.collect(s.matcher(query))
}

func (s *Store) TasksByCategory(category string) []model.Task {
	return s.collect(func(t model.Task) bool { return t.Category == category })
}

func (s *Store) TasksByPriority(p model.Priority) []model.Task {
	return s.collect(func(t model.Task) bool { return t.Priority == p })
}

func (s *Store) Statistics() Stats {
	st := Stats{
		Total:      len(s.tasks),
		ByPriority: make(map[model.Priority]int, len(model.Priorities)),
		ByCategory: map[string]int{},
	}
	for _, p := range model.Priorities {
		st.ByPriority[p] = 0
	}
	for _, t := range s.tasks {
		if t.Completed {
			st.Completed++
		}
		st.ByPriority[t.Priority]++
		st.ByCategory[t.Category]++
	}
	st.Active = st.Total - st.Completed
	return st
}
