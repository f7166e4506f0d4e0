package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/deckhand-ai/deckhand/internal/core"
	"github.com/deckhand-ai/deckhand/internal/events"
	"github.com/deckhand-ai/deckhand/internal/logging"
)

// StepStatus is the lifecycle state of one pipeline step.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// Step is one unit of pipeline work. Run is invoked once all dependencies
// have completed.
type Step struct {
	ID        string
	DependsOn []string
	Run       func(ctx context.Context) error
}

// StepListener observes status transitions. Listeners are called from the
// executor's run loop, after the status map has been updated.
type StepListener func(stepID string, status StepStatus, err error)

// StepExecutor runs a fixed dependency graph of steps. Independent steps run
// concurrently; the status map is written only by the Run loop, so listeners
// and Status observe consistent transitions. A pause requested through the
// control plane takes effect between step launches.
type StepExecutor struct {
	deckID  string
	control *ControlPlane
	bus     *events.Bus
	logger  *logging.Logger

	steps []Step
	index map[string]int

	mu        sync.RWMutex
	status    map[string]StepStatus
	listeners []StepListener
}

// NewStepExecutor creates an executor for one generation run. The control
// plane and bus may be nil.
func NewStepExecutor(deckID string, control *ControlPlane, bus *events.Bus, logger *logging.Logger) *StepExecutor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StepExecutor{
		deckID:  deckID,
		control: control,
		bus:     bus,
		logger:  logger.WithDeck(deckID),
		index:   make(map[string]int),
		status:  make(map[string]StepStatus),
	}
}

// Add registers a step. Steps must be added before Run; duplicate IDs and
// unknown dependencies are rejected when Run validates the graph.
func (e *StepExecutor) Add(step Step) {
	e.index[step.ID] = len(e.steps)
	e.steps = append(e.steps, step)
	e.mu.Lock()
	e.status[step.ID] = StepPending
	e.mu.Unlock()
}

// Listen registers a transition listener.
func (e *StepExecutor) Listen(l StepListener) {
	e.mu.Lock()
	e.listeners = append(e.listeners, l)
	e.mu.Unlock()
}

// Status returns the current status of a step.
func (e *StepExecutor) Status(stepID string) (StepStatus, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.status[stepID]
	return s, ok
}

// Snapshot returns a copy of the full status map.
func (e *StepExecutor) Snapshot() map[string]StepStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]StepStatus, len(e.status))
	for k, v := range e.status {
		out[k] = v
	}
	return out
}

type stepResult struct {
	id  string
	err error
}

// Run executes the graph to completion. It returns the first step error, or
// the context error when the run is cancelled mid-graph. Steps whose
// dependencies failed are marked skipped, never run.
func (e *StepExecutor) Run(ctx context.Context) error {
	if err := e.validate(); err != nil {
		return err
	}

	results := make(chan stepResult, len(e.steps))
	running := 0
	var firstErr error

	for {
		if err := e.waitIfPaused(ctx); err != nil {
			return err
		}

		launched := e.launchReady(ctx, results)
		running += launched

		if running == 0 {
			break
		}

		res := <-results
		running--
		if res.err != nil {
			e.transition(res.id, StepFailed, res.err)
			if firstErr == nil {
				firstErr = res.err
			}
			e.skipDependents(res.id)
		} else {
			e.transition(res.id, StepCompleted, nil)
		}
	}

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

// validate checks the graph for unknown dependencies and cycles.
func (e *StepExecutor) validate() error {
	seen := make(map[string]bool, len(e.steps))
	for _, s := range e.steps {
		if seen[s.ID] {
			return core.ErrValidation(core.CodeInvalidConfig, "duplicate step: "+s.ID)
		}
		seen[s.ID] = true
	}
	for _, s := range e.steps {
		for _, dep := range s.DependsOn {
			if !seen[dep] {
				return core.ErrValidation(core.CodeInvalidConfig,
					fmt.Sprintf("step %s depends on unknown step %s", s.ID, dep))
			}
		}
	}

	// Kahn's algorithm: anything left unprocessed sits on a cycle.
	indegree := make(map[string]int, len(e.steps))
	for _, s := range e.steps {
		indegree[s.ID] = len(s.DependsOn)
	}
	queue := make([]string, 0, len(e.steps))
	for id, d := range indegree {
		if d == 0 {
			queue = append(queue, id)
		}
	}
	processed := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		processed++
		for _, s := range e.steps {
			for _, dep := range s.DependsOn {
				if dep == id {
					indegree[s.ID]--
					if indegree[s.ID] == 0 {
						queue = append(queue, s.ID)
					}
				}
			}
		}
	}
	if processed != len(e.steps) {
		remaining := make([]string, 0)
		for id, d := range indegree {
			if d > 0 {
				remaining = append(remaining, id)
			}
		}
		sort.Strings(remaining)
		return core.ErrValidation(core.CodeStepCycleDetected,
			"step graph has a cycle involving: "+fmt.Sprint(remaining))
	}
	return nil
}

// launchReady starts every pending step whose dependencies completed.
func (e *StepExecutor) launchReady(ctx context.Context, results chan<- stepResult) int {
	launched := 0
	for _, s := range e.steps {
		if st, _ := e.Status(s.ID); st != StepPending {
			continue
		}
		if !e.depsCompleted(s) {
			continue
		}
		e.transition(s.ID, StepRunning, nil)
		launched++
		step := s
		go func() {
			results <- stepResult{id: step.ID, err: step.Run(ctx)}
		}()
	}
	return launched
}

func (e *StepExecutor) depsCompleted(s Step) bool {
	for _, dep := range s.DependsOn {
		if st, _ := e.Status(dep); st != StepCompleted {
			return false
		}
	}
	return true
}

// skipDependents marks every pending step that can no longer run because a
// transitive dependency failed or was skipped.
func (e *StepExecutor) skipDependents(failedID string) {
	dead := map[string]bool{failedID: true}
	for changed := true; changed; {
		changed = false
		for _, s := range e.steps {
			if st, _ := e.Status(s.ID); st != StepPending {
				continue
			}
			for _, dep := range s.DependsOn {
				if dead[dep] {
					e.transition(s.ID, StepSkipped, nil)
					dead[s.ID] = true
					changed = true
					break
				}
			}
		}
	}
}

func (e *StepExecutor) waitIfPaused(ctx context.Context) error {
	if e.control == nil {
		return ctx.Err()
	}
	if e.control.IsPaused() {
		e.logger.Info("run paused")
		if e.bus != nil {
			e.bus.Publish(events.NewRunPausedEvent(e.deckID))
		}
		if err := e.control.WaitIfPaused(ctx); err != nil {
			return err
		}
		e.logger.Info("run resumed")
		if e.bus != nil {
			e.bus.Publish(events.NewRunResumedEvent(e.deckID))
		}
		return nil
	}
	return ctx.Err()
}

func (e *StepExecutor) transition(stepID string, status StepStatus, err error) {
	e.mu.Lock()
	e.status[stepID] = status
	listeners := e.listeners
	e.mu.Unlock()

	if err != nil {
		e.logger.Warn("step transition", "step", stepID, "status", string(status), "error", err.Error())
	} else {
		e.logger.Debug("step transition", "step", stepID, "status", string(status))
	}
	if e.bus != nil {
		e.bus.Publish(events.NewStepStatusEvent(e.deckID, stepID, string(status), err))
	}
	for _, l := range listeners {
		l(stepID, status, err)
	}
}
