package router

import (
	"math"

	"github.com/deckhand-ai/deckhand/internal/core"
	"github.com/deckhand-ai/deckhand/internal/logging"
)

// ScoreWeights configures the balanced-priority ranking formula. The
// defaults are tuning choices, not correctness requirements, so they are
// exposed through configuration.
type ScoreWeights struct {
	Quality float64 `yaml:"quality" json:"quality"`
	Speed   float64 `yaml:"speed" json:"speed"`
	Cost    float64 `yaml:"cost" json:"cost"`
}

// DefaultScoreWeights returns the standard balanced weighting.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{Quality: 0.4, Speed: 0.3, Cost: 0.3}
}

// TierScores maps speed and quality tiers onto [0,1] values.
type TierScores struct {
	Low    float64 `yaml:"low" json:"low"`
	Medium float64 `yaml:"medium" json:"medium"`
	High   float64 `yaml:"high" json:"high"`
}

// DefaultTierScores returns the standard tier mapping.
func DefaultTierScores() TierScores {
	return TierScores{Low: 0.3, Medium: 0.6, High: 1.0}
}

// Router selects one model descriptor per agent role. It is read-only after
// construction and safe for concurrent use.
type Router struct {
	registry *Registry
	policies *PolicyTable
	weights  ScoreWeights
	tiers    TierScores
	logger   *logging.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithScoreWeights overrides the balanced scoring weights.
func WithScoreWeights(w ScoreWeights) Option {
	return func(r *Router) { r.weights = w }
}

// WithTierScores overrides the tier-to-score mapping.
func WithTierScores(t TierScores) Option {
	return func(r *Router) { r.tiers = t }
}

// New creates a router over a registry and policy table.
func New(registry *Registry, policies *PolicyTable, logger *logging.Logger, opts ...Option) *Router {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Router{
		registry: registry,
		policies: policies,
		weights:  DefaultScoreWeights(),
		tiers:    DefaultTierScores(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Selection reports which model was chosen and why.
type Selection struct {
	Model  core.ModelDescriptor
	Policy string
	// ByRule is true when a policy rule named the model directly rather
	// than the ranked fallback choosing it.
	ByRule bool
	Score  float64
}

// SelectModel returns the model that should serve a role under a policy.
// A routing failure is fatal for the requesting stage and is never retried.
func (r *Router) SelectModel(role string, ctx core.TaskContext, policyName string) (Selection, error) {
	if policyName == "" {
		policyName = DefaultPolicyName
	}

	policy, havePolicy := r.policies.Get(policyName)
	if havePolicy {
		if policy.LocalOnly {
			ctx.LocalOnly = true
		}
		if ctx.Priority == "" || ctx.Priority == core.PriorityBalanced {
			ctx.Priority = policy.Priority
		}

		if rule, ok := policy.FirstMatch(role, ctx); ok {
			if model, registered := r.registry.Get(rule.Model); registered && r.registry.IsAvailable(model, ctx) {
				r.logger.Debug("model selected by rule",
					"role", role, "model", model.Name, "policy", policyName)
				return Selection{Model: model, Policy: policyName, ByRule: true}, nil
			}
		}
	}

	candidates := r.capabilityCandidates(role, ctx)
	if len(candidates) == 0 {
		r.logger.Warn("routing unavailable", "role", role, "policy", policyName)
		return Selection{}, core.ErrRoutingUnavailable(role, policyName)
	}

	best, score := r.rank(candidates, ctx.Priority)
	r.logger.Debug("model selected by ranking",
		"role", role, "model", best.Name, "policy", policyName, "score", score)
	return Selection{Model: best, Policy: policyName, Score: score}, nil
}

// capabilityCandidates filters the registry to available models whose
// capability tags cover the role; when none match, it falls back to the
// full available set.
func (r *Router) capabilityCandidates(role string, ctx core.TaskContext) []core.ModelDescriptor {
	available := r.registry.Available(ctx)

	var matching []core.ModelDescriptor
	for _, m := range available {
		if m.SupportsRole(role) {
			matching = append(matching, m)
		}
	}
	if len(matching) > 0 {
		return matching
	}
	return available
}

// rank orders candidates by the context priority and returns the winner
// with its score. Ties keep the earliest-registered candidate.
func (r *Router) rank(candidates []core.ModelDescriptor, priority core.Priority) (core.ModelDescriptor, float64) {
	best := candidates[0]
	bestScore := r.score(best, priority)
	for _, m := range candidates[1:] {
		if s := r.score(m, priority); s > bestScore {
			best, bestScore = m, s
		}
	}
	return best, bestScore
}

func (r *Router) score(m core.ModelDescriptor, priority core.Priority) float64 {
	switch priority {
	case core.PriorityQuality:
		return r.qualityScore(m)
	case core.PrioritySpeed:
		return r.speedScore(m)
	case core.PriorityCost:
		return r.costScore(m)
	default:
		return r.weights.Quality*r.qualityScore(m) +
			r.weights.Speed*r.speedScore(m) +
			r.weights.Cost*r.costScore(m)
	}
}

// BalancedScore exposes the weighted score for reporting and tests.
func (r *Router) BalancedScore(m core.ModelDescriptor) float64 {
	return r.score(m, core.PriorityBalanced)
}

func (r *Router) qualityScore(m core.ModelDescriptor) float64 {
	switch m.Quality {
	case core.QualityHigh:
		return r.tiers.High
	case core.QualityMedium:
		return r.tiers.Medium
	default:
		return r.tiers.Low
	}
}

func (r *Router) speedScore(m core.ModelDescriptor) float64 {
	switch m.Speed {
	case core.SpeedFast:
		return r.tiers.High
	case core.SpeedMedium:
		return r.tiers.Medium
	default:
		return r.tiers.Low
	}
}

// costScore rewards cheap models. A missing cost is treated as free.
func (r *Router) costScore(m core.ModelDescriptor) float64 {
	return 1 - math.Min(m.CostPerToken*1000, 1)
}
