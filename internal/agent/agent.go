// Package agent implements the execution contract shared by every pipeline
// role: route a model, call it with timeout and bounded retry, normalize and
// strict-parse the response, validate the output, and fall back to a
// schema-valid default rather than failing the pipeline.
package agent

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/deckhand-ai/deckhand/internal/core"
	"github.com/deckhand-ai/deckhand/internal/events"
	"github.com/deckhand-ai/deckhand/internal/llm"
	"github.com/deckhand-ai/deckhand/internal/logging"
	"github.com/deckhand-ai/deckhand/internal/router"
)

// DefaultCallTimeout bounds a single model call.
const DefaultCallTimeout = 45 * time.Second

// FallbackScore is attached to degraded outputs.
const FallbackScore = 0.5

// maxGenerations bounds attempts on one task: the initial generation plus
// one regeneration for parse or validator failures.
const maxGenerations = 2

// RunInfo carries per-request routing parameters into agent executions.
type RunInfo struct {
	DeckID  string
	Policy  string
	Context core.TaskContext
}

// CallerFactory builds callers for selected models. *llm.Factory is the
// production implementation; tests substitute scriptable fakes.
type CallerFactory interface {
	For(model core.ModelDescriptor) (llm.Caller, error)
}

// Deps bundles the collaborators every agent needs.
type Deps struct {
	Router  *router.Router
	Callers CallerFactory
	Logger  *logging.Logger
	Bus     *events.Bus
	Retry   *RetryPolicy
	Timeout time.Duration
}

// Agent is the common surface of all roles.
type Agent interface {
	Role() string
}

// Base provides the shared execution machinery. Concrete agents embed it and
// expose a typed Execute method built on the run helper.
type Base struct {
	role    string
	router  *router.Router
	callers CallerFactory
	retry   *RetryPolicy
	timeout time.Duration
	logger  *logging.Logger
	bus     *events.Bus
}

// NewBase creates the shared machinery for a role.
func NewBase(role string, deps Deps) Base {
	retry := deps.Retry
	if retry == nil {
		retry = DefaultRetryPolicy()
	}
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return Base{
		role:    role,
		router:  deps.Router,
		callers: deps.Callers,
		retry:   retry,
		timeout: timeout,
		logger:  logger.WithAgent(role),
		bus:     deps.Bus,
	}
}

// Role returns the agent's role name.
func (b *Base) Role() string { return b.role }

// callModel invokes the caller under the retry policy and per-call timeout.
func (b *Base) callModel(ctx context.Context, info RunInfo, caller llm.Caller, prompt string) (string, error) {
	var raw string
	err := b.retry.ExecuteWithNotify(ctx, func(ctx context.Context) error {
		out, callErr := caller.Call(ctx, prompt, llm.CallOptions{Timeout: b.timeout})
		if callErr != nil {
			return callErr
		}
		raw = out
		return nil
	}, func(attempt int, err error, delay time.Duration) {
		b.logger.Warn("model call failed, backing off",
			"attempt", attempt, "delay", delay, "error", err.Error())
		if b.bus != nil {
			b.bus.Publish(events.NewAgentRetryEvent(info.DeckID, b.role, attempt, b.retry.MaxAttempts, err))
		}
	})
	if err != nil {
		return "", err
	}
	return raw, nil
}

// Outcome is a typed payload plus its quality score. Degraded marks outputs
// substituted from the agent's fallback. Task carries the invocation's
// lifecycle record: attempt count, terminal status, and last error.
type Outcome[T any] struct {
	Value    T
	Score    float64
	Degraded bool
	Model    string
	Task     *core.AgentTask
}

// plan describes one typed generation for the run helper.
type plan[T any] struct {
	prompt   string
	parse    func(raw string) (T, error) // nil means strict JSON decode
	validate func(T) error               // nil means always valid
	fallback func() T
	score    func(T) float64
}

// jsonParse is the default strict decode after normalization.
func jsonParse[T any](role, raw string) (T, error) {
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return v, core.ErrMalformedResponse(role, err)
	}
	return v, nil
}

// run executes one generation under the full contract. It returns an error
// only for routing failures; every other failure, including cancellation of
// in-flight calls, degrades to the agent's fallback payload so fan-in can
// complete with partial results.
func run[T any](ctx context.Context, b *Base, info RunInfo, p plan[T]) (Outcome[T], error) {
	sel, err := b.router.SelectModel(b.role, info.Context, info.Policy)
	if err != nil {
		return Outcome[T]{}, err
	}
	if b.bus != nil {
		b.bus.Publish(events.NewModelSelectedEvent(info.DeckID, b.role, sel.Model.Name, sel.Policy, sel.Score))
	}

	caller, err := b.callers.For(sel.Model)
	if err != nil {
		return Outcome[T]{}, err
	}

	// One task per invocation. A regeneration is a new attempt on the
	// same task ID, never a new task.
	task := core.NewAgentTask(core.TaskID(uuid.NewString()), b.role, p.prompt).
		WithMaxAttempts(maxGenerations)

	var value T
	for {
		if err := task.MarkRunning(); err != nil {
			return Outcome[T]{}, err
		}
		v, attErr := attempt(ctx, b, info, caller, p)
		if attErr == nil {
			value = v
			_ = task.MarkCompleted()
			break
		}
		_ = task.MarkFailed(attErr)
		if !task.CanRetry() {
			break
		}
		_ = task.Reset()
	}

	if task.Status != core.TaskStatusCompleted {
		b.logger.Warn("substituting fallback payload",
			"deck_id", info.DeckID, "model", sel.Model.Name,
			"attempts", task.Attempt, "last_error", task.LastError)
		return Outcome[T]{
			Value:    p.fallback(),
			Score:    FallbackScore,
			Degraded: true,
			Model:    sel.Model.Name,
			Task:     task,
		}, nil
	}

	return Outcome[T]{
		Value: value,
		Score: clampScore(p.score(value)),
		Model: sel.Model.Name,
		Task:  task,
	}, nil
}

// attempt performs one generation: call with retry, normalize, strict parse,
// validate. The returned error says why the result cannot be used.
func attempt[T any](ctx context.Context, b *Base, info RunInfo, caller llm.Caller, p plan[T]) (value T, err error) {
	raw, err := b.callModel(ctx, info, caller, p.prompt)
	if err != nil {
		b.logger.Warn("model call unrecoverable", "error", err.Error())
		return value, err
	}

	clean := Normalize(raw)

	if p.parse != nil {
		value, err = p.parse(clean)
	} else {
		value, err = jsonParse[T](b.role, clean)
	}
	if err != nil {
		b.logger.Debug("response parse failed", "error", err.Error(),
			"raw_prefix", prefix(clean, 120))
		return value, err
	}

	if p.validate != nil {
		if err := p.validate(value); err != nil {
			b.logger.Debug("output validation failed", "error", err.Error())
			return value, err
		}
	}
	return value, nil
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// header builds the structured prompt headers shared by all roles. The
// simulated backend keys its canned responses off the same headers, so both
// transports see identical prompts.
func header(role string, fields ...[2]string) string {
	var sb strings.Builder
	sb.WriteString("ROLE: ")
	sb.WriteString(role)
	sb.WriteString("\n")
	for _, f := range fields {
		sb.WriteString(f[0])
		sb.WriteString(": ")
		sb.WriteString(f[1])
		sb.WriteString("\n")
	}
	return sb.String()
}
