package core

import "time"

// Priority selects the ranking dimension for model routing.
type Priority string

const (
	PriorityQuality  Priority = "quality"
	PrioritySpeed    Priority = "speed"
	PriorityCost     Priority = "cost"
	PriorityBalanced Priority = "balanced"
)

// TaskContext carries per-request routing constraints. It is created once per
// generation request, passed by value through the pipeline, and never mutated
// after creation; quality-assurance sub-stages derive copies with an
// overridden priority instead.
type TaskContext struct {
	Priority  Priority
	BudgetUSD float64   // 0 means unlimited
	Deadline  time.Time // zero means none
	LocalOnly bool
}

// NewTaskContext creates a context with a validated priority.
func NewTaskContext(priority Priority, localOnly bool) TaskContext {
	switch priority {
	case PriorityQuality, PrioritySpeed, PriorityCost, PriorityBalanced:
	default:
		priority = PriorityBalanced
	}
	return TaskContext{Priority: priority, LocalOnly: localOnly}
}

// WithPriority derives a copy with a different priority. Used by QA sub-stages
// that prefer a faster tier than the main content stages.
func (c TaskContext) WithPriority(p Priority) TaskContext {
	c.Priority = p
	return c
}
