package model

import "strings"

// Filter narrows which tasks a view returns. It is a closed set; every variant
// maps to exactly one predicate via Predicate.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterActive    Filter = "active"
	FilterCompleted Filter = "completed"
)

var Filters = []Filter{FilterAll, FilterActive, FilterCompleted}

var filterPredicates = map[Filter]func(Task) bool{
	FilterAll:       func(Task) bool { return true },
	FilterActive:    func(t Task) bool { return !t.Completed },
	FilterCompleted: func(t Task) bool { return t.Completed },
}

func (f Filter) Valid() bool {
	_, ok := filterPredicates[f]
	return ok
}

// Predicate returns the match function for f. Unknown filters match everything.
func (f Filter) Predicate() func(Task) bool {
	if p, ok := filterPredicates[f]; ok {
		return p
	}
	return filterPredicates[FilterAll]
}

func ParseFilter(s string) (Filter, bool) {
	f := Filter(strings.ToLower(strings.TrimSpace(s)))
	if f == "" {
		return FilterAll, true
	}
	return f, f.Valid()
}
