package agent

import (
	"context"
	"testing"
	"time"

	"github.com/deckhand-ai/deckhand/internal/core"
	"github.com/deckhand-ai/deckhand/internal/llm"
	"github.com/deckhand-ai/deckhand/internal/logging"
	"github.com/deckhand-ai/deckhand/internal/router"
)

// scriptedCaller replays a fixed sequence of responses and errors.
type scriptedCaller struct {
	model core.ModelDescriptor
	steps []scriptStep
	calls int
}

type scriptStep struct {
	response string
	err      error
}

func (c *scriptedCaller) Call(ctx context.Context, prompt string, opts llm.CallOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	step := c.steps[len(c.steps)-1]
	if c.calls < len(c.steps) {
		step = c.steps[c.calls]
	}
	c.calls++
	return step.response, step.err
}

func (c *scriptedCaller) Model() core.ModelDescriptor { return c.model }

type scriptedFactory struct{ caller *scriptedCaller }

func (f *scriptedFactory) For(core.ModelDescriptor) (llm.Caller, error) { return f.caller, nil }

func testDeps(t *testing.T, steps ...scriptStep) (Deps, *scriptedCaller) {
	t.Helper()
	reg := router.NewRegistry(nil, nil, logging.NewNop())
	err := reg.Register(core.ModelDescriptor{
		Name: "sim-test", Kind: core.BackendSimulated,
		Capabilities: []string{core.CapabilityGeneral},
		Speed:        core.SpeedFast, Quality: core.QualityMedium,
	})
	if err != nil {
		t.Fatal(err)
	}
	caller := &scriptedCaller{steps: steps}
	return Deps{
		Router:  router.New(reg, router.NewPolicyTable(), logging.NewNop()),
		Callers: &scriptedFactory{caller: caller},
		Logger:  logging.NewNop(),
		Retry:   NewRetryPolicy(WithMaxAttempts(3), WithBaseDelay(time.Millisecond), WithJitter(0)),
	}, caller
}

func testInfo() RunInfo {
	return RunInfo{
		DeckID:  "deck-test",
		Policy:  "balanced",
		Context: core.NewTaskContext(core.PriorityBalanced, false),
	}
}

const goodResearchJSON = `{"topic":"tides","snippets":[
	{"text":"Tides are driven by the moon.","tags":["moon"],"confidence":0.9},
	{"text":"Tides are driven by the moon. ","tags":["moon"],"confidence":0.8},
	{"text":"Spring tides are strongest.","tags":["cycle"],"confidence":0.7},
	{"text":"Weak rumor.","tags":[],"confidence":0.1}
]}`

func TestResearcher_ParsesAndFilters(t *testing.T) {
	t.Parallel()
	deps, _ := testDeps(t, scriptStep{response: goodResearchJSON})
	agent := NewResearcher(deps)

	out, err := agent.Execute(context.Background(), testInfo(), "tides")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if out.Degraded {
		t.Error("unexpected degraded output")
	}
	// Duplicate dropped by normalized-text equality, low-confidence dropped.
	if len(out.Value.Snippets) != 2 {
		t.Errorf("snippets = %d, want 2: %+v", len(out.Value.Snippets), out.Value.Snippets)
	}
	if out.Score <= 0 || out.Score > 1 {
		t.Errorf("score %f outside (0,1]", out.Score)
	}
}

func TestResearcher_RegeneratesOnMalformed(t *testing.T) {
	t.Parallel()
	deps, caller := testDeps(t,
		scriptStep{response: "this is not json at all, sorry"},
		scriptStep{response: goodResearchJSON},
	)
	agent := NewResearcher(deps)

	out, err := agent.Execute(context.Background(), testInfo(), "tides")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if out.Degraded {
		t.Error("second generation succeeded; output should not be degraded")
	}
	if caller.calls != 2 {
		t.Errorf("calls = %d, want 2 (one regeneration)", caller.calls)
	}
}

func TestResearcher_FallsBackAfterTwoMalformed(t *testing.T) {
	t.Parallel()
	deps, caller := testDeps(t, scriptStep{response: "still not json"})
	agent := NewResearcher(deps)

	out, err := agent.Execute(context.Background(), testInfo(), "tides")
	if err != nil {
		t.Fatalf("degraded run must not error, got %v", err)
	}
	if !out.Degraded {
		t.Fatal("expected degraded output")
	}
	if out.Score != FallbackScore {
		t.Errorf("score = %f, want %f", out.Score, FallbackScore)
	}
	if len(out.Value.Snippets) == 0 {
		t.Error("fallback must be schema-valid with at least one snippet")
	}
	if caller.calls != 2 {
		t.Errorf("calls = %d, want 2 (initial + one regeneration)", caller.calls)
	}
}

func TestExecute_TaskCompletedFirstAttempt(t *testing.T) {
	t.Parallel()
	deps, _ := testDeps(t, scriptStep{response: goodResearchJSON})
	agent := NewResearcher(deps)

	out, err := agent.Execute(context.Background(), testInfo(), "tides")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	task := out.Task
	if task == nil {
		t.Fatal("outcome must carry its task record")
	}
	if task.ID == "" {
		t.Error("task ID must be assigned")
	}
	if task.Status != core.TaskStatusCompleted {
		t.Errorf("status = %s, want %s", task.Status, core.TaskStatusCompleted)
	}
	if task.Attempt != 1 {
		t.Errorf("attempt = %d, want 1", task.Attempt)
	}
	if task.CompletedAt == nil {
		t.Error("completed task must record a completion time")
	}
	if task.LastError != "" {
		t.Errorf("last error = %q, want empty", task.LastError)
	}
}

func TestExecute_RegenerationBumpsAttemptOnSameTask(t *testing.T) {
	t.Parallel()
	deps, _ := testDeps(t,
		scriptStep{response: "this is not json at all, sorry"},
		scriptStep{response: goodResearchJSON},
	)
	agent := NewResearcher(deps)

	out, err := agent.Execute(context.Background(), testInfo(), "tides")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	task := out.Task
	if task.Status != core.TaskStatusCompleted {
		t.Errorf("status = %s, want %s", task.Status, core.TaskStatusCompleted)
	}
	if task.Attempt != 2 {
		t.Errorf("attempt = %d, want 2 (regeneration reuses the task)", task.Attempt)
	}
}

func TestExecute_FallbackTaskRecordsFailure(t *testing.T) {
	t.Parallel()
	deps, _ := testDeps(t, scriptStep{response: "still not json"})
	agent := NewResearcher(deps)

	out, err := agent.Execute(context.Background(), testInfo(), "tides")
	if err != nil {
		t.Fatalf("degraded run must not error, got %v", err)
	}
	task := out.Task
	if task.Status != core.TaskStatusFailed {
		t.Errorf("status = %s, want %s", task.Status, core.TaskStatusFailed)
	}
	if task.Attempt != 2 {
		t.Errorf("attempt = %d, want 2", task.Attempt)
	}
	if task.LastError == "" {
		t.Error("failed task must record its last error")
	}
	if !task.IsTerminal() {
		t.Error("exhausted task must be terminal")
	}
}

func TestResearcher_TransientErrorsRetriedThenDegraded(t *testing.T) {
	t.Parallel()
	deps, caller := testDeps(t, scriptStep{err: core.ErrModelTimeout("sim-test", "slow")})
	agent := NewResearcher(deps)

	out, err := agent.Execute(context.Background(), testInfo(), "tides")
	if err != nil {
		t.Fatalf("timeout exhaustion must degrade, not error: %v", err)
	}
	if !out.Degraded {
		t.Fatal("expected degraded output")
	}
	// 3 retry attempts per generation, two generations.
	if caller.calls != 6 {
		t.Errorf("calls = %d, want 6", caller.calls)
	}
}

func TestResearcher_RoutingFailurePropagates(t *testing.T) {
	t.Parallel()
	// Empty registry: no model can serve the role.
	reg := router.NewRegistry(nil, nil, logging.NewNop())
	deps := Deps{
		Router:  router.New(reg, router.NewPolicyTable(), logging.NewNop()),
		Callers: &scriptedFactory{caller: &scriptedCaller{}},
		Logger:  logging.NewNop(),
		Retry:   NewRetryPolicy(WithMaxAttempts(1), WithBaseDelay(time.Millisecond)),
	}
	agent := NewResearcher(deps)

	_, err := agent.Execute(context.Background(), testInfo(), "tides")
	if err == nil {
		t.Fatal("expected routing error")
	}
	if !core.IsRoutingUnavailable(err) {
		t.Errorf("expected RoutingUnavailable, got %v", err)
	}
}

func TestWriter_ValidatorTriggersRegeneration(t *testing.T) {
	t.Parallel()
	noHeading := `{"section_id":"sec-1","slides":[{"id":"sec-1-1","blocks":[{"kind":"text","text":"no heading"}]}]}`
	withHeading := `{"section_id":"sec-1","slides":[{"id":"sec-1-1","blocks":[{"kind":"heading","text":"Intro"},{"kind":"bullets","items":["a"]}]}]}`
	deps, caller := testDeps(t,
		scriptStep{response: noHeading},
		scriptStep{response: withHeading},
	)
	agent := NewWriter(deps)

	section := core.OutlineSection{ID: "sec-1", Title: "Intro", EstSlides: 1}
	out, err := agent.Execute(context.Background(), testInfo(), WriteInput{Section: section})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if out.Degraded {
		t.Error("regeneration passed validation; output should not be degraded")
	}
	if caller.calls != 2 {
		t.Errorf("calls = %d, want 2", caller.calls)
	}
}

func TestWriter_FallbackMatchesPlannedCount(t *testing.T) {
	t.Parallel()
	deps, _ := testDeps(t, scriptStep{err: core.ErrModelUnavailable("sim-test", "down")})
	agent := NewWriter(deps)

	section := core.OutlineSection{ID: "sec-3", Title: "Analysis", EstSlides: 4}
	out, err := agent.Execute(context.Background(), testInfo(), WriteInput{Section: section})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !out.Degraded {
		t.Fatal("expected degraded output")
	}
	if len(out.Value.Slides) != 4 {
		t.Errorf("fallback slides = %d, want 4", len(out.Value.Slides))
	}
	for _, sl := range out.Value.Slides {
		if !sl.Fallback {
			t.Error("fallback slides must be marked")
		}
		if sl.SectionID != "sec-3" {
			t.Errorf("slide section = %q", sl.SectionID)
		}
	}
}

func TestTightener_PreservesSlideIdentity(t *testing.T) {
	t.Parallel()
	slides := []*core.Slide{
		{ID: "a", Blocks: []core.Block{{Kind: core.BlockHeading, Text: "One"}}},
		{ID: "b", Blocks: []core.Block{{Kind: core.BlockHeading, Text: "Two"}}},
	}

	// Tightener returns a different slide count: validator rejects twice,
	// fallback passes the original slides through.
	reordered := `{"slides":[{"id":"a","blocks":[{"kind":"heading","text":"One"}]}]}`
	deps, _ := testDeps(t, scriptStep{response: reordered})
	agent := NewTightener(deps)

	out, err := agent.Execute(context.Background(), testInfo(), slides)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !out.Degraded {
		t.Fatal("expected degraded pass-through")
	}
	if len(out.Value.Slides) != 2 || out.Value.Slides[0].ID != "a" || out.Value.Slides[1].ID != "b" {
		t.Errorf("pass-through slides corrupted: %+v", out.Value.Slides)
	}
}

func TestNormalizeOutline_SumProperty(t *testing.T) {
	t.Parallel()
	for sections := 3; sections <= 6; sections++ {
		for total := 3 * sections; total <= 50; total++ {
			o := core.Outline{Title: "T"}
			for i := 0; i < sections; i++ {
				o.Sections = append(o.Sections, core.OutlineSection{Title: "s", EstSlides: 99})
			}
			got := NormalizeOutline(o, total)
			if got.TotalSlides() != total {
				t.Fatalf("sections=%d total=%d: sum = %d", sections, total, got.TotalSlides())
			}
			if len(got.Sections) != sections {
				t.Fatalf("sections=%d total=%d: section count changed to %d", sections, total, len(got.Sections))
			}
			for _, s := range got.Sections {
				if s.EstSlides < 1 {
					t.Fatalf("section with %d slides", s.EstSlides)
				}
				if s.ID == "" {
					t.Fatal("section missing ID after normalization")
				}
			}
		}
	}
}

func TestNormalizeOutline_AlreadyExactKept(t *testing.T) {
	t.Parallel()
	o := core.Outline{Sections: []core.OutlineSection{
		{ID: "a", EstSlides: 5},
		{ID: "b", EstSlides: 3},
		{ID: "c", EstSlides: 2},
	}}
	got := NormalizeOutline(o, 10)
	if got.Sections[0].EstSlides != 5 || got.Sections[1].EstSlides != 3 || got.Sections[2].EstSlides != 2 {
		t.Errorf("exact outline should keep its distribution: %+v", got.Sections)
	}
}

func TestDedupeSnippets_Idempotent(t *testing.T) {
	t.Parallel()
	snippets := []core.EvidenceSnippet{
		{Text: "The moon drives tides.", Confidence: 0.9},
		{Text: "the moon drives tides", Confidence: 0.8},
		{Text: "  The MOON drives tides.  ", Confidence: 0.7},
		{Text: "Spring tides are strongest.", Confidence: 0.6},
	}

	once := DedupeSnippets(snippets)
	twice := DedupeSnippets(once)

	if len(once) != 2 {
		t.Errorf("dedupe kept %d, want 2", len(once))
	}
	if len(once) != len(twice) {
		t.Errorf("dedupe not idempotent: %d then %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].Text != twice[i].Text {
			t.Errorf("dedupe not stable at %d", i)
		}
	}
}

func TestAccessibilityLinter_Deterministic(t *testing.T) {
	t.Parallel()
	deps, _ := testDeps(t)
	linter := NewAccessibilityLinter(deps)

	slides := []*core.Slide{
		{ID: "ok", Blocks: []core.Block{{Kind: core.BlockHeading, Text: "Fine"}}},
		{ID: "bad", Blocks: []core.Block{{Kind: core.BlockText, Text: "no heading here"}}},
	}

	first, err := linter.Check(context.Background(), testInfo(), "Deck", slides)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	second, _ := linter.Check(context.Background(), testInfo(), "Deck", slides)

	if first.Score != second.Score {
		t.Error("lint score must be deterministic")
	}
	if len(first.Value.Checks) != 1 || first.Value.Checks[0].TargetID != "bad" {
		t.Errorf("expected one finding on slide bad: %+v", first.Value.Checks)
	}
	if first.Score >= 1 {
		t.Error("finding should lower the score below 1")
	}
}

func TestReadabilityAnalyzer_WordBudgets(t *testing.T) {
	t.Parallel()
	deps, _ := testDeps(t)
	analyzer := NewReadabilityAnalyzer(deps)

	slides := []*core.Slide{{
		ID: "s",
		Blocks: []core.Block{
			{Kind: core.BlockHeading, Text: "A heading that is much too long to fit the budget easily"},
			{Kind: core.BlockBullets, Items: []string{"short", "this bullet runs far past the twelve word budget that we allow for bullets"}},
		},
	}}

	out, err := analyzer.Check(context.Background(), testInfo(), "Deck", slides)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if len(out.Value.Checks) != 2 {
		t.Errorf("findings = %d, want 2: %+v", len(out.Value.Checks), out.Value.Checks)
	}
}

func TestExecutiveAudience(t *testing.T) {
	t.Parallel()
	tests := []struct {
		audience string
		want     bool
	}{
		{"executive leadership", true},
		{"Board of directors", true},
		{"C-suite briefing", true},
		{"engineering team", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ExecutiveAudience(tt.audience); got != tt.want {
			t.Errorf("ExecutiveAudience(%q) = %v, want %v", tt.audience, got, tt.want)
		}
	}
}

func TestRegistry_DefaultRoles(t *testing.T) {
	t.Parallel()
	reg := NewDefaultRegistry()
	deps, _ := testDeps(t)

	want := []string{
		RoleAccessibility, RoleConsistency, RoleFactCheck, RoleReadability,
		RoleResearcher, RoleStructurer, RoleSummarizer, RoleTightener, RoleWriter,
	}
	got := reg.Roles()
	if len(got) != len(want) {
		t.Fatalf("roles = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("roles[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	for _, role := range want {
		a, err := reg.Create(role, deps)
		if err != nil {
			t.Errorf("Create(%s) error = %v", role, err)
			continue
		}
		if a.Role() != role {
			t.Errorf("agent role = %s, want %s", a.Role(), role)
		}
	}

	if _, err := reg.Create("nonexistent", deps); err == nil {
		t.Error("unknown role should error")
	}
}
