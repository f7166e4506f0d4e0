package router

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/deckhand-ai/deckhand/internal/core"
)

// Condition keys recognized in routing rules.
const (
	CondPriority = "priority"
	CondLocality = "locality"
)

// LocalityLocal is the locality condition value matching local-only requests.
const LocalityLocal = "local"

// RoutingRule binds one agent role to a preferred model, optionally guarded
// by conditions on the request context.
type RoutingRule struct {
	Role       string            `yaml:"role" json:"role"`
	Model      string            `yaml:"model" json:"model"`
	Conditions map[string]string `yaml:"conditions,omitempty" json:"conditions,omitempty"`
}

// Matches reports whether the rule applies to a role under a context.
// Condition matching is equality on context fields.
func (r RoutingRule) Matches(role string, ctx core.TaskContext) bool {
	if r.Role != role {
		return false
	}
	for key, want := range r.Conditions {
		switch key {
		case CondPriority:
			if string(ctx.Priority) != want {
				return false
			}
		case CondLocality:
			local := ctx.LocalOnly
			if (want == LocalityLocal) != local {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// RoutingPolicy is a named routing strategy: ordered per-role rules plus a
// ranking priority used when no rule matches. Policies are read-only after
// load.
type RoutingPolicy struct {
	Name      string        `yaml:"name" json:"name"`
	Priority  core.Priority `yaml:"priority" json:"priority"`
	LocalOnly bool          `yaml:"local_only,omitempty" json:"local_only,omitempty"`
	Rules     []RoutingRule `yaml:"rules,omitempty" json:"rules,omitempty"`
}

// FirstMatch returns the first rule matching role and context.
func (p RoutingPolicy) FirstMatch(role string, ctx core.TaskContext) (RoutingRule, bool) {
	for _, rule := range p.Rules {
		if rule.Matches(role, ctx) {
			return rule, true
		}
	}
	return RoutingRule{}, false
}

// DefaultPolicyName is used when a request names no policy.
const DefaultPolicyName = "balanced"

// BuiltinPolicies returns the standard policy set.
func BuiltinPolicies() []RoutingPolicy {
	return []RoutingPolicy{
		{Name: "quality-first", Priority: core.PriorityQuality},
		{Name: "speed-first", Priority: core.PrioritySpeed},
		{Name: "cost-first", Priority: core.PriorityCost},
		{Name: "balanced", Priority: core.PriorityBalanced},
		{Name: "local-only", Priority: core.PriorityBalanced, LocalOnly: true},
	}
}

// PolicyTable holds named policies loaded at process start.
type PolicyTable struct {
	policies map[string]RoutingPolicy
}

// NewPolicyTable creates a table seeded with the builtin policies.
func NewPolicyTable() *PolicyTable {
	t := &PolicyTable{policies: make(map[string]RoutingPolicy)}
	for _, p := range BuiltinPolicies() {
		t.policies[p.Name] = p
	}
	return t
}

// Add registers or replaces a policy.
func (t *PolicyTable) Add(p RoutingPolicy) error {
	if p.Name == "" {
		return core.ErrValidation(core.CodeInvalidConfig, "policy name cannot be empty")
	}
	switch p.Priority {
	case core.PriorityQuality, core.PrioritySpeed, core.PriorityCost, core.PriorityBalanced:
	case "":
		p.Priority = core.PriorityBalanced
	default:
		return core.ErrValidation(core.CodeInvalidConfig,
			fmt.Sprintf("policy %s: unknown priority %q", p.Name, p.Priority))
	}
	t.policies[p.Name] = p
	return nil
}

// Get returns a policy by name.
func (t *PolicyTable) Get(name string) (RoutingPolicy, bool) {
	p, ok := t.policies[name]
	return p, ok
}

// Names returns all policy names.
func (t *PolicyTable) Names() []string {
	names := make([]string, 0, len(t.policies))
	for name := range t.policies {
		names = append(names, name)
	}
	return names
}

type policyFile struct {
	Policies []RoutingPolicy `yaml:"policies"`
}

// LoadPolicyFile merges policies from a YAML file into the table. File
// policies may override builtins of the same name.
func (t *PolicyTable) LoadPolicyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading policy file: %w", err)
	}

	var pf policyFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return core.ErrValidation(core.CodeInvalidConfig, "policy file is not valid YAML: "+err.Error())
	}

	for _, p := range pf.Policies {
		if err := t.Add(p); err != nil {
			return err
		}
	}
	return nil
}
