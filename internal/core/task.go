package core

import (
	"fmt"
	"time"
)

// TaskID uniquely identifies an agent task within a pipeline run.
type TaskID string

// TaskStatus represents the current state of an agent task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// AgentTask tracks one agent invocation through the pipeline. Tasks live only
// for the duration of a run; they are mutated exclusively by the execution
// loop that owns them and discarded when the pipeline finishes.
type AgentTask struct {
	ID          TaskID
	Role        string
	Input       any
	Status      TaskStatus
	Attempt     int
	MaxAttempts int
	CreatedAt   time.Time
	CompletedAt *time.Time
	LastError   string
}

// NewAgentTask creates a pending task for a role.
func NewAgentTask(id TaskID, role string, input any) *AgentTask {
	return &AgentTask{
		ID:          id,
		Role:        role,
		Input:       input,
		Status:      TaskStatusPending,
		MaxAttempts: 3,
		CreatedAt:   time.Now(),
	}
}

// WithMaxAttempts sets the attempt ceiling.
func (t *AgentTask) WithMaxAttempts(n int) *AgentTask {
	t.MaxAttempts = n
	return t
}

// MarkRunning transitions the task to running state.
func (t *AgentTask) MarkRunning() error {
	if t.Status != TaskStatusPending {
		return ErrState(CodeInvalidState, fmt.Sprintf("cannot start task in %s state", t.Status))
	}
	t.Status = TaskStatusRunning
	t.Attempt++
	return nil
}

// MarkCompleted transitions the task to completed state.
func (t *AgentTask) MarkCompleted() error {
	if t.Status != TaskStatusRunning {
		return ErrState(CodeInvalidState, fmt.Sprintf("cannot complete task in %s state", t.Status))
	}
	t.Status = TaskStatusCompleted
	now := time.Now()
	t.CompletedAt = &now
	return nil
}

// MarkFailed transitions the task to failed state.
func (t *AgentTask) MarkFailed(err error) error {
	if t.Status != TaskStatusRunning {
		return ErrState(CodeInvalidState, fmt.Sprintf("cannot fail task in %s state", t.Status))
	}
	t.Status = TaskStatusFailed
	t.LastError = err.Error()
	now := time.Now()
	t.CompletedAt = &now
	return nil
}

// CanRetry reports whether another attempt is allowed. Retries reuse the same
// task ID; a retry never creates a new task.
func (t *AgentTask) CanRetry() bool {
	return t.Status == TaskStatusFailed && t.Attempt < t.MaxAttempts
}

// Reset prepares the task for the next attempt on the same ID.
func (t *AgentTask) Reset() error {
	if !t.CanRetry() {
		return ErrState(CodeInvalidState, fmt.Sprintf("cannot retry task: attempt=%d, max=%d", t.Attempt, t.MaxAttempts))
	}
	t.Status = TaskStatusPending
	t.LastError = ""
	t.CompletedAt = nil
	return nil
}

// Validate checks task invariants.
func (t *AgentTask) Validate() error {
	if t.ID == "" {
		return ErrValidation(CodeTaskIDRequired, "task ID cannot be empty")
	}
	if t.Role == "" {
		return ErrValidation(CodeInvalidConfig, "task role cannot be empty")
	}
	return nil
}

// Duration returns the elapsed time since creation, or the total runtime if
// the task already finished.
func (t *AgentTask) Duration() time.Duration {
	end := time.Now()
	if t.CompletedAt != nil {
		end = *t.CompletedAt
	}
	return end.Sub(t.CreatedAt)
}

// IsTerminal returns true if the task is in a terminal state.
func (t *AgentTask) IsTerminal() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusFailed
}
