// Package orchestrator runs the fixed slide-generation pipeline: research,
// structure, parallel section writing, quality checks, and assembly. Stage
// failures degrade rather than abort; only unroutable models and cancelled
// contexts end a run early.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/deckhand-ai/deckhand/internal/agent"
	"github.com/deckhand-ai/deckhand/internal/core"
	"github.com/deckhand-ai/deckhand/internal/events"
	"github.com/deckhand-ai/deckhand/internal/logging"
	"github.com/deckhand-ai/deckhand/internal/router"
)

// Slide count bounds for a generation request.
const (
	MinSlideCount     = 3
	MaxSlideCount     = 50
	DefaultSlideCount = 10
)

// Stage names used in events, metadata, and the step graph.
const (
	StageResearch  = "research"
	StageStructure = "structure"
	StageContent   = "content"
	StageQuality   = "quality"
	StageAssembly  = "assembly"
	StageSummary   = "summary"
)

// Request describes one deck to generate. SlideCount is the body slide
// budget; the title, agenda, conclusion, and reference slides come on top.
type Request struct {
	Topic      string
	SlideCount int
	Audience   string
	Tone       string
	Theme      string
	Policy     string
	LocalOnly  bool
	Priority   core.Priority
}

// Validate checks request bounds and fills defaults in place.
func (r *Request) Validate() error {
	if r.Topic == "" {
		return core.ErrValidation(core.CodeEmptyTopic, "topic is required")
	}
	if r.SlideCount == 0 {
		r.SlideCount = DefaultSlideCount
	}
	if r.SlideCount < MinSlideCount || r.SlideCount > MaxSlideCount {
		return core.ErrValidation(core.CodeSlideCountBounds,
			fmt.Sprintf("slide count %d outside [%d, %d]", r.SlideCount, MinSlideCount, MaxSlideCount))
	}
	return nil
}

// Orchestrator drives the pipeline with agents created from an explicit
// registration table.
type Orchestrator struct {
	researcher *agent.Researcher
	structurer *agent.Structurer
	writer     *agent.Writer
	tightener  *agent.Tightener
	summarizer *agent.Summarizer
	checkers   []agent.Checker
	bus        *events.Bus
	logger     *logging.Logger
}

// New builds an orchestrator from the agent table. Every built-in role must
// resolve, so a miswired table fails at construction rather than mid-run.
func New(reg *agent.Registry, deps agent.Deps) (*Orchestrator, error) {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	o := &Orchestrator{bus: deps.Bus, logger: logger}

	var err error
	if o.researcher, err = createAs[*agent.Researcher](reg, agent.RoleResearcher, deps); err != nil {
		return nil, err
	}
	if o.structurer, err = createAs[*agent.Structurer](reg, agent.RoleStructurer, deps); err != nil {
		return nil, err
	}
	if o.writer, err = createAs[*agent.Writer](reg, agent.RoleWriter, deps); err != nil {
		return nil, err
	}
	if o.tightener, err = createAs[*agent.Tightener](reg, agent.RoleTightener, deps); err != nil {
		return nil, err
	}
	if o.summarizer, err = createAs[*agent.Summarizer](reg, agent.RoleSummarizer, deps); err != nil {
		return nil, err
	}

	// Merge order of the quality report is fixed regardless of which
	// checker finishes first.
	for _, role := range []string{agent.RoleFactCheck, agent.RoleAccessibility, agent.RoleReadability, agent.RoleConsistency} {
		c, err := createAs[agent.Checker](reg, role, deps)
		if err != nil {
			return nil, err
		}
		o.checkers = append(o.checkers, c)
	}
	return o, nil
}

func createAs[T any](reg *agent.Registry, role string, deps agent.Deps) (T, error) {
	var zero T
	a, err := reg.Create(role, deps)
	if err != nil {
		return zero, err
	}
	t, ok := a.(T)
	if !ok {
		return zero, core.ErrValidation(core.CodeInvalidConfig,
			fmt.Sprintf("registered agent for role %s has unexpected type %T", role, a))
	}
	return t, nil
}

// runState carries one generation's intermediate results between stages. A
// fresh state is created per run, so concurrent Generate calls never share
// mutable data.
type runState struct {
	deck    *core.Deck
	info    agent.RunInfo
	started time.Time

	research core.ResearchResult
	outline  core.Outline
	body     []*core.Slide
	qa       core.QAReport

	mu sync.Mutex // guards metadata writes from concurrent section writers
}

func (s *runState) recordOutcome(role string, score float64, model string, degraded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	md := &s.deck.Metadata
	if md.QualityScores == nil {
		md.QualityScores = make(map[string]float64)
	}
	if md.ModelsUsed == nil {
		md.ModelsUsed = make(map[string]string)
	}
	md.QualityScores[role] = score
	if model != "" {
		md.ModelsUsed[role] = model
	}
	if degraded && !containsString(md.DegradedStages, role) {
		md.DegradedStages = append(md.DegradedStages, role)
	}
}

func containsString(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

// Generate runs the full pipeline and returns the assembled deck.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (*core.Deck, error) {
	return o.GenerateControlled(ctx, req, nil)
}

// GenerateControlled runs the pipeline under an optional control plane for
// pause and resume. Cancellation propagates to in-flight model calls, but a
// stage that already fanned out completes its fan-in with degraded results
// before the run stops.
func (o *Orchestrator) GenerateControlled(ctx context.Context, req Request, control *ControlPlane) (*core.Deck, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	state := &runState{
		deck: &core.Deck{
			ID:       uuid.NewString(),
			Topic:    req.Topic,
			Audience: req.Audience,
			Tone:     req.Tone,
			Theme:    req.Theme,
		},
		started: time.Now(),
	}
	policy := req.Policy
	if policy == "" {
		policy = router.DefaultPolicyName
	}
	state.deck.Metadata.Policy = policy
	state.info = agent.RunInfo{
		DeckID:  state.deck.ID,
		Policy:  policy,
		Context: core.NewTaskContext(req.Priority, req.LocalOnly),
	}

	logger := o.logger.WithDeck(state.deck.ID)
	logger.Info("generation started", "topic", req.Topic, "slides", req.SlideCount, "policy", policy)
	o.publish(events.NewDeckStartedEvent(state.deck.ID, req.Topic, req.SlideCount, policy))

	exec := NewStepExecutor(state.deck.ID, control, o.bus, logger)
	exec.Add(Step{ID: StageResearch, Run: func(ctx context.Context) error {
		return o.runStage(ctx, state, StageResearch, func(ctx context.Context) error {
			return o.researchStage(ctx, state, req)
		})
	}})
	exec.Add(Step{ID: StageStructure, DependsOn: []string{StageResearch}, Run: func(ctx context.Context) error {
		return o.runStage(ctx, state, StageStructure, func(ctx context.Context) error {
			return o.structureStage(ctx, state, req)
		})
	}})
	exec.Add(Step{ID: StageContent, DependsOn: []string{StageStructure}, Run: func(ctx context.Context) error {
		return o.runStage(ctx, state, StageContent, func(ctx context.Context) error {
			return o.contentStage(ctx, state, req)
		})
	}})
	exec.Add(Step{ID: StageQuality, DependsOn: []string{StageContent}, Run: func(ctx context.Context) error {
		return o.runStage(ctx, state, StageQuality, func(ctx context.Context) error {
			return o.qualityStage(ctx, state)
		})
	}})
	exec.Add(Step{ID: StageAssembly, DependsOn: []string{StageQuality}, Run: func(ctx context.Context) error {
		return o.runStage(ctx, state, StageAssembly, func(ctx context.Context) error {
			return o.assemblyStage(ctx, state, req)
		})
	}})

	if err := exec.Run(ctx); err != nil {
		if ctx.Err() != nil {
			logger.Warn("generation cancelled")
			o.publish(events.NewDeckCancelledEvent(state.deck.ID, failedStage(exec)))
			return nil, core.ErrState(core.CodeCancelled, "generation cancelled").WithCause(ctx.Err())
		}
		logger.Error("generation failed", "error", err.Error())
		o.publish(events.NewDeckFailedEvent(state.deck.ID, failedStage(exec), err))
		return nil, err
	}

	md := &state.deck.Metadata
	md.GeneratedAt = time.Now()
	md.ProcessingTime = time.Since(state.started)
	md.OverallScore = overallScore(md.QualityScores)

	logger.Info("generation completed",
		"slides", state.deck.SlideCount(),
		"score", md.OverallScore,
		"degraded", len(md.DegradedStages),
		"duration", md.ProcessingTime)
	o.publish(events.NewDeckCompletedEvent(state.deck.ID, state.deck.SlideCount(), md.OverallScore, md.DegradedStages, md.ProcessingTime))
	return state.deck, nil
}

// runStage wraps one step with stage events and timing.
func (o *Orchestrator) runStage(ctx context.Context, state *runState, stage string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	started := time.Now()
	o.publish(events.NewStageStartedEvent(state.deck.ID, stage))
	if err := fn(ctx); err != nil {
		return err
	}
	o.publish(events.NewStageCompletedEvent(state.deck.ID, stage, time.Since(started)))
	return nil
}

func (o *Orchestrator) researchStage(ctx context.Context, state *runState, req Request) error {
	out, err := o.researcher.Execute(ctx, state.info, req.Topic)
	if err != nil {
		return err
	}
	state.research = out.Value
	state.recordOutcome(agent.RoleResearcher, out.Score, out.Model, out.Degraded)
	if out.Degraded {
		o.publish(events.NewStageDegradedEvent(state.deck.ID, StageResearch, "", "fallback evidence substituted"))
	}
	return nil
}

func (o *Orchestrator) structureStage(ctx context.Context, state *runState, req Request) error {
	out, err := o.structurer.Execute(ctx, state.info, agent.StructureInput{
		Topic:      req.Topic,
		BodySlides: req.SlideCount,
		Evidence:   state.research.Snippets,
	})
	if err != nil {
		return err
	}
	state.outline = out.Value.Outline
	// Checkers read the title during QA, before assembly runs.
	state.deck.Title = state.outline.Title
	state.recordOutcome(agent.RoleStructurer, out.Score, out.Model, out.Degraded)
	if out.Degraded {
		o.publish(events.NewStageDegradedEvent(state.deck.ID, StageStructure, "", "fallback outline substituted"))
	}
	return nil
}

// contentStage fans one writer out per outline section. Section results come
// back in outline order regardless of completion order. A section whose
// writer degrades ships fallback slides; the deck still completes.
func (o *Orchestrator) contentStage(ctx context.Context, state *runState, req Request) error {
	sections := state.outline.Sections
	results := make([]core.SectionResult, len(sections))

	g, gctx := errgroup.WithContext(ctx)
	for i, section := range sections {
		g.Go(func() error {
			out, err := o.writer.Execute(gctx, state.info, agent.WriteInput{
				Section:  section,
				Evidence: EvidenceForSection(section, state.research.Snippets),
				Audience: req.Audience,
				Tone:     req.Tone,
			})
			if err != nil {
				return err
			}
			results[i] = out.Value
			state.recordOutcome(agent.RoleWriter, out.Score, out.Model, out.Degraded)
			if out.Degraded {
				o.publish(events.NewStageDegradedEvent(state.deck.ID, StageContent, section.ID, "fallback slides substituted"))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	state.body = state.body[:0]
	for _, r := range results {
		state.body = append(state.body, r.Slides...)
	}
	return nil
}

// qualityStage tightens copy first, then runs the checkers concurrently. A
// checker that cannot run contributes a neutral score with no findings.
func (o *Orchestrator) qualityStage(ctx context.Context, state *runState) error {
	tightened, err := o.tightener.Execute(ctx, state.info, state.body)
	if err != nil {
		// Unroutable tightener: ship the untightened copy.
		o.logger.Warn("tightener unavailable, keeping original copy", "error", err.Error())
		state.recordOutcome(agent.RoleTightener, agent.FallbackScore, "", true)
		o.publish(events.NewStageDegradedEvent(state.deck.ID, StageQuality, agent.RoleTightener, err.Error()))
	} else {
		state.body = tightened.Value.Slides
		state.recordOutcome(agent.RoleTightener, tightened.Score, tightened.Model, tightened.Degraded)
		if tightened.Degraded {
			o.publish(events.NewStageDegradedEvent(state.deck.ID, StageQuality, agent.RoleTightener, "tightening skipped"))
		}
	}

	results := make([]core.CheckResult, len(o.checkers))
	var wg sync.WaitGroup
	for i, checker := range o.checkers {
		wg.Add(1)
		go func(i int, checker agent.Checker) {
			defer wg.Done()
			out, err := checker.Check(ctx, state.info, state.deck.Title, state.body)
			if err != nil {
				results[i] = agent.NeutralCheck(checker.CheckType())
				state.recordOutcome(checker.Role(), agent.FallbackScore, "", true)
				o.publish(events.NewStageDegradedEvent(state.deck.ID, StageQuality, checker.Role(), err.Error()))
				return
			}
			results[i] = out.Value
			state.recordOutcome(checker.Role(), out.Score, out.Model, out.Degraded)
			if out.Degraded {
				o.publish(events.NewStageDegradedEvent(state.deck.ID, StageQuality, checker.Role(), "neutral score substituted"))
			}
		}(i, checker)
	}
	wg.Wait()

	state.qa = core.QAReport{Results: results}
	for _, r := range results {
		o.publish(events.NewCheckReportedEvent(state.deck.ID, string(r.Type), len(r.Checks), r.Score))
	}
	return nil
}

func (o *Orchestrator) assemblyStage(ctx context.Context, state *runState, req Request) error {
	assemble(state.deck, state.outline, state.body, state.research.References)

	if agent.ExecutiveAudience(req.Audience) {
		out, err := o.summarizer.Execute(ctx, state.info, state.deck)
		if err != nil {
			o.logger.Warn("summarizer unavailable, skipping executive summary", "error", err.Error())
			state.recordOutcome(agent.RoleSummarizer, agent.FallbackScore, "", true)
		} else {
			state.deck.Summary = out.Value.Body
			state.recordOutcome(agent.RoleSummarizer, out.Score, out.Model, out.Degraded)
		}
	}
	return nil
}

func (o *Orchestrator) publish(ev events.Event) {
	if o.bus != nil {
		o.bus.Publish(ev)
	}
}

// failedStage names the step that failed, for the terminal event.
func failedStage(exec *StepExecutor) string {
	for id, st := range exec.Snapshot() {
		if st == StepFailed || st == StepRunning {
			return id
		}
	}
	return ""
}

func overallScore(scores map[string]float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}
