package router

import (
	"testing"

	"github.com/deckhand-ai/deckhand/internal/core"
	"github.com/deckhand-ai/deckhand/internal/logging"
)

type mapCreds map[string]string

func (m mapCreds) Lookup(envVar string) (string, bool) {
	v, ok := m[envVar]
	return v, ok
}

type stubProbe struct{ ok bool }

func (p stubProbe) CanRun(core.ModelDescriptor) bool { return p.ok }

func testCatalog() []core.ModelDescriptor {
	return []core.ModelDescriptor{
		{
			Name: "cloud-premium", Kind: core.BackendCloud, Endpoint: "https://api.example.com/v1",
			APIKeyEnv: "PREMIUM_KEY", Capabilities: []string{core.CapabilityGeneral},
			CostPerToken: 0.00003, Speed: core.SpeedSlow, Quality: core.QualityHigh,
		},
		{
			Name: "cloud-turbo", Kind: core.BackendCloud, Endpoint: "https://api.example.com/v1",
			APIKeyEnv: "TURBO_KEY", Capabilities: []string{core.CapabilityGeneral},
			CostPerToken: 0.000002, Speed: core.SpeedFast, Quality: core.QualityMedium,
		},
		{
			Name: "local-small", Kind: core.BackendLocal, Endpoint: "http://localhost:11434/v1",
			Capabilities: []string{"writer", "tightener"},
			Speed:        core.SpeedMedium, Quality: core.QualityLow,
		},
		{
			Name: "sim-fast", Kind: core.BackendSimulated,
			Capabilities: []string{core.CapabilityGeneral},
			Speed:        core.SpeedFast, Quality: core.QualityLow,
		},
	}
}

func newTestRouter(t *testing.T, creds mapCreds, probe CapabilityProbe, opts ...Option) *Router {
	t.Helper()
	reg := NewRegistry(creds, probe, logging.NewNop())
	for _, m := range testCatalog() {
		if err := reg.Register(m); err != nil {
			t.Fatalf("Register(%s) error = %v", m.Name, err)
		}
	}
	return New(reg, NewPolicyTable(), logging.NewNop(), opts...)
}

func allCreds() mapCreds {
	return mapCreds{"PREMIUM_KEY": "k1", "TURBO_KEY": "k2"}
}

func TestRegistry_DuplicateRejected(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(nil, nil, logging.NewNop())
	m := core.ModelDescriptor{Name: "m", Kind: core.BackendSimulated}
	if err := reg.Register(m); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}
	if err := reg.Register(m); err == nil {
		t.Error("duplicate registration should fail")
	}
}

func TestRegistry_Availability(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(mapCreds{"PREMIUM_KEY": "k"}, stubProbe{ok: false}, logging.NewNop())
	for _, m := range testCatalog() {
		if err := reg.Register(m); err != nil {
			t.Fatal(err)
		}
	}

	ctx := core.NewTaskContext(core.PriorityBalanced, false)

	tests := []struct {
		model string
		want  bool
	}{
		{"cloud-premium", true},  // has credential
		{"cloud-turbo", false},   // TURBO_KEY not set
		{"local-small", false},   // probe rejects
		{"sim-fast", true},       // always available
	}
	for _, tt := range tests {
		m, _ := reg.Get(tt.model)
		if got := reg.IsAvailable(m, ctx); got != tt.want {
			t.Errorf("IsAvailable(%s) = %v, want %v", tt.model, got, tt.want)
		}
	}
}

func TestRegistry_LocalOnlyExcludesCloud(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(allCreds(), stubProbe{ok: true}, logging.NewNop())
	for _, m := range testCatalog() {
		if err := reg.Register(m); err != nil {
			t.Fatal(err)
		}
	}

	ctx := core.NewTaskContext(core.PriorityBalanced, true)
	for _, m := range reg.Available(ctx) {
		if !m.IsLocal() {
			t.Errorf("local-only set includes non-local model %s", m.Name)
		}
	}
}

func TestRouter_AllPoliciesAndRolesResolve(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t, allCreds(), stubProbe{ok: true})

	roles := []string{"researcher", "structurer", "writer", "tightener", "factcheck", "summarizer"}
	for _, policy := range []string{"quality-first", "speed-first", "cost-first", "balanced", "local-only"} {
		for _, role := range roles {
			ctx := core.NewTaskContext(core.PriorityBalanced, false)
			sel, err := r.SelectModel(role, ctx, policy)
			if err != nil {
				t.Errorf("SelectModel(%s, %s) error = %v", role, policy, err)
				continue
			}
			if sel.Model.Name == "" {
				t.Errorf("SelectModel(%s, %s) returned empty model", role, policy)
			}
		}
	}
}

func TestRouter_BalancedIsOptimal(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t, allCreds(), stubProbe{ok: true})
	ctx := core.NewTaskContext(core.PriorityBalanced, false)

	sel, err := r.SelectModel("researcher", ctx, "balanced")
	if err != nil {
		t.Fatalf("SelectModel() error = %v", err)
	}

	best := r.BalancedScore(sel.Model)
	for _, m := range r.registry.Available(ctx) {
		if s := r.BalancedScore(m); s > best {
			t.Errorf("model %s scores %f > selected %s at %f", m.Name, s, sel.Model.Name, best)
		}
	}
}

func TestRouter_PriorityRanking(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t, allCreds(), stubProbe{ok: true})

	tests := []struct {
		policy string
		want   string
	}{
		{"quality-first", "cloud-premium"}, // only high-quality model
		{"speed-first", "cloud-turbo"},     // both fast candidates tie; earliest registered wins
		{"cost-first", "sim-fast"},         // only zero-cost candidate for the role
	}
	for _, tt := range tests {
		t.Run(tt.policy, func(t *testing.T) {
			ctx := core.NewTaskContext(core.PriorityBalanced, false)
			sel, err := r.SelectModel("researcher", ctx, tt.policy)
			if err != nil {
				t.Fatalf("SelectModel() error = %v", err)
			}
			if sel.Model.Name != tt.want {
				t.Errorf("policy %s selected %s, want %s", tt.policy, sel.Model.Name, tt.want)
			}
		})
	}
}

func TestRouter_RuleTakesPrecedence(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(allCreds(), stubProbe{ok: true}, logging.NewNop())
	for _, m := range testCatalog() {
		if err := reg.Register(m); err != nil {
			t.Fatal(err)
		}
	}
	policies := NewPolicyTable()
	err := policies.Add(RoutingPolicy{
		Name:     "pinned",
		Priority: core.PriorityBalanced,
		Rules:    []RoutingRule{{Role: "writer", Model: "local-small"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	r := New(reg, policies, logging.NewNop())

	ctx := core.NewTaskContext(core.PriorityBalanced, false)
	sel, err := r.SelectModel("writer", ctx, "pinned")
	if err != nil {
		t.Fatalf("SelectModel() error = %v", err)
	}
	if !sel.ByRule || sel.Model.Name != "local-small" {
		t.Errorf("expected rule-pinned local-small, got %s (byRule=%v)", sel.Model.Name, sel.ByRule)
	}
}

func TestRouter_RuleFallsBackWhenUnavailable(t *testing.T) {
	t.Parallel()
	// Probe rejects local models, so the pinned rule cannot be honored.
	reg := NewRegistry(allCreds(), stubProbe{ok: false}, logging.NewNop())
	for _, m := range testCatalog() {
		if err := reg.Register(m); err != nil {
			t.Fatal(err)
		}
	}
	policies := NewPolicyTable()
	if err := policies.Add(RoutingPolicy{
		Name:     "pinned",
		Priority: core.PriorityBalanced,
		Rules:    []RoutingRule{{Role: "writer", Model: "local-small"}},
	}); err != nil {
		t.Fatal(err)
	}
	r := New(reg, policies, logging.NewNop())

	ctx := core.NewTaskContext(core.PriorityBalanced, false)
	sel, err := r.SelectModel("writer", ctx, "pinned")
	if err != nil {
		t.Fatalf("SelectModel() error = %v", err)
	}
	if sel.ByRule {
		t.Error("unavailable pinned model should fall through to ranking")
	}
	if sel.Model.Name == "local-small" {
		t.Error("unavailable model must not be selected")
	}
}

func TestRouter_ExhaustionIsFatalNotWrongModel(t *testing.T) {
	t.Parallel()
	// Only cloud models have credentials and the probe rejects local
	// backends, so a local-only request must fail rather than silently
	// routing to a cloud model.
	reg := NewRegistry(allCreds(), stubProbe{ok: false}, logging.NewNop())
	for _, m := range testCatalog() {
		if m.Kind == core.BackendSimulated {
			continue
		}
		if err := reg.Register(m); err != nil {
			t.Fatal(err)
		}
	}
	r := New(reg, NewPolicyTable(), logging.NewNop())

	ctx := core.NewTaskContext(core.PriorityBalanced, true)
	_, err := r.SelectModel("writer", ctx, "balanced")
	if err == nil {
		t.Fatal("expected routing failure")
	}
	if !core.IsRoutingUnavailable(err) {
		t.Errorf("expected RoutingUnavailable, got %v", err)
	}
	if core.IsRetryable(err) {
		t.Error("routing failure must never be retryable")
	}
}

func TestRouter_CustomWeights(t *testing.T) {
	t.Parallel()
	// An all-cost weighting should pick the cheapest model under balanced.
	r := newTestRouter(t, allCreds(), stubProbe{ok: true},
		WithScoreWeights(ScoreWeights{Quality: 0, Speed: 0, Cost: 1}))

	ctx := core.NewTaskContext(core.PriorityBalanced, false)
	sel, err := r.SelectModel("researcher", ctx, "balanced")
	if err != nil {
		t.Fatalf("SelectModel() error = %v", err)
	}
	if sel.Model.CostPerToken != 0 {
		t.Errorf("expected a free model, got %s at %f", sel.Model.Name, sel.Model.CostPerToken)
	}
}

func TestCostScore(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t, allCreds(), stubProbe{ok: true})

	tests := []struct {
		cost float64
		want float64
	}{
		{0, 1},
		{0.001, 0},    // caps at 1
		{0.5, 0},      // far past cap
		{0.0005, 0.5}, // halfway
	}
	for _, tt := range tests {
		m := core.ModelDescriptor{CostPerToken: tt.cost}
		if got := r.costScore(m); !almostEqual(got, tt.want) {
			t.Errorf("costScore(%f) = %f, want %f", tt.cost, got, tt.want)
		}
	}
}

func almostEqual(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}
