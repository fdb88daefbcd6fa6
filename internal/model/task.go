package model

import (
	"strings"
	"time"
)

type TaskID string

const DefaultCategory = "general"

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Priorities lists every priority, highest first.
var Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

func ParsePriority(s string) (Priority, bool) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	return p, p.Valid()
}

type Task struct {
	ID          TaskID     `json:"id" yaml:"id"`
	Text        string     `json:"text" yaml:"text"`
	Completed   bool       `json:"completed" yaml:"completed"`
	CreatedAt   time.Time  `json:"createdAt" yaml:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty" yaml:"completedAt,omitempty"`
	Priority    Priority   `json:"priority" yaml:"priority"`
	Category    string     `json:"category" yaml:"category"`
}

// Clone returns a copy that shares no pointers with t.
func (t Task) Clone() Task {
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		t.CompletedAt = &at
	}
	return t
}

// SetCompleted updates the completion flag and keeps CompletedAt in step:
// stamped when the task becomes completed, cleared when it becomes active.
func (t *Task) SetCompleted(done bool, now time.Time) {
	if t.Completed == done {
		return
	}
	t.Completed = done
	if done {
		t.CompletedAt = &now
	} else {
		t.CompletedAt = nil
	}
}
