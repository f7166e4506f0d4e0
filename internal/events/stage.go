package events

import "time"

// Event type constants for pipeline stage and step events.
const (
	TypeStageStarted   = "stage_started"
	TypeStageCompleted = "stage_completed"
	TypeStageDegraded  = "stage_degraded"
	TypeStepStatus     = "step_status"
	TypeAgentRetry     = "agent_retry"
	TypeModelSelected  = "model_selected"
	TypeCheckReported  = "check_reported"
	TypeRunPaused      = "run_paused"
	TypeRunResumed     = "run_resumed"
)

// StageStartedEvent is emitted when a pipeline stage begins.
type StageStartedEvent struct {
	BaseEvent
	Stage string `json:"stage"`
}

// NewStageStartedEvent creates a stage started event.
func NewStageStartedEvent(deckID, stage string) StageStartedEvent {
	return StageStartedEvent{
		BaseEvent: NewBaseEvent(TypeStageStarted, deckID),
		Stage:     stage,
	}
}

// StageCompletedEvent is emitted when a stage finishes.
type StageCompletedEvent struct {
	BaseEvent
	Stage    string        `json:"stage"`
	Duration time.Duration `json:"duration"`
}

// NewStageCompletedEvent creates a stage completed event.
func NewStageCompletedEvent(deckID, stage string, duration time.Duration) StageCompletedEvent {
	return StageCompletedEvent{
		BaseEvent: NewBaseEvent(TypeStageCompleted, deckID),
		Stage:     stage,
		Duration:  duration,
	}
}

// StageDegradedEvent is emitted when a stage substitutes fallback output
// instead of failing the run.
type StageDegradedEvent struct {
	BaseEvent
	Stage  string `json:"stage"`
	Unit   string `json:"unit,omitempty"` // section ID or checker name
	Reason string `json:"reason"`
}

// NewStageDegradedEvent creates a stage degraded event.
func NewStageDegradedEvent(deckID, stage, unit, reason string) StageDegradedEvent {
	return StageDegradedEvent{
		BaseEvent: NewBaseEvent(TypeStageDegraded, deckID),
		Stage:     stage,
		Unit:      unit,
		Reason:    reason,
	}
}

// StepStatusEvent is emitted on every step status transition.
type StepStatusEvent struct {
	BaseEvent
	StepID string `json:"step_id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// NewStepStatusEvent creates a step status event.
func NewStepStatusEvent(deckID, stepID, status string, err error) StepStatusEvent {
	errStr := ""
	if err != nil {
		errStr = err.Error()
	}
	return StepStatusEvent{
		BaseEvent: NewBaseEvent(TypeStepStatus, deckID),
		StepID:    stepID,
		Status:    status,
		Error:     errStr,
	}
}

// AgentRetryEvent is emitted when an agent attempt is retried.
type AgentRetryEvent struct {
	BaseEvent
	Role        string `json:"role"`
	Attempt     int    `json:"attempt"`
	MaxAttempts int    `json:"max_attempts"`
	Error       string `json:"error"`
}

// NewAgentRetryEvent creates an agent retry event.
func NewAgentRetryEvent(deckID, role string, attempt, maxAttempts int, err error) AgentRetryEvent {
	errStr := ""
	if err != nil {
		errStr = err.Error()
	}
	return AgentRetryEvent{
		BaseEvent:   NewBaseEvent(TypeAgentRetry, deckID),
		Role:        role,
		Attempt:     attempt,
		MaxAttempts: maxAttempts,
		Error:       errStr,
	}
}

// ModelSelectedEvent is emitted when routing picks a model for a role.
type ModelSelectedEvent struct {
	BaseEvent
	Role   string  `json:"role"`
	Model  string  `json:"model"`
	Policy string  `json:"policy"`
	Score  float64 `json:"score"`
}

// NewModelSelectedEvent creates a model selected event.
func NewModelSelectedEvent(deckID, role, model, policy string, score float64) ModelSelectedEvent {
	return ModelSelectedEvent{
		BaseEvent: NewBaseEvent(TypeModelSelected, deckID),
		Role:      role,
		Model:     model,
		Policy:    policy,
		Score:     score,
	}
}

// CheckReportedEvent is emitted when a quality checker completes.
type CheckReportedEvent struct {
	BaseEvent
	CheckType string  `json:"check_type"`
	Findings  int     `json:"findings"`
	Score     float64 `json:"score"`
}

// NewCheckReportedEvent creates a check reported event.
func NewCheckReportedEvent(deckID, checkType string, findings int, score float64) CheckReportedEvent {
	return CheckReportedEvent{
		BaseEvent: NewBaseEvent(TypeCheckReported, deckID),
		CheckType: checkType,
		Findings:  findings,
		Score:     score,
	}
}

// RunPausedEvent is emitted when the control plane pauses execution.
type RunPausedEvent struct {
	BaseEvent
}

// NewRunPausedEvent creates a run paused event.
func NewRunPausedEvent(deckID string) RunPausedEvent {
	return RunPausedEvent{BaseEvent: NewBaseEvent(TypeRunPaused, deckID)}
}

// RunResumedEvent is emitted when the control plane resumes execution.
type RunResumedEvent struct {
	BaseEvent
}

// NewRunResumedEvent creates a run resumed event.
func NewRunResumedEvent(deckID string) RunResumedEvent {
	return RunResumedEvent{BaseEvent: NewBaseEvent(TypeRunResumed, deckID)}
}
