package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/deckhand-ai/deckhand/internal/core"
)

const (
	// MinSnippetConfidence filters weak evidence out of the research result.
	MinSnippetConfidence = 0.35
	// MaxSnippets caps the evidence kept for downstream stages.
	MaxSnippets = 12
)

// Researcher gathers tagged, confidence-scored evidence for a topic.
type Researcher struct {
	Base
}

// NewResearcher creates the research agent.
func NewResearcher(deps Deps) *Researcher {
	return &Researcher{Base: NewBase(RoleResearcher, deps)}
}

// Execute returns filtered, deduplicated evidence for the topic.
func (a *Researcher) Execute(ctx context.Context, info RunInfo, topic string) (Outcome[core.ResearchResult], error) {
	prompt := header(RoleResearcher, [2]string{"TOPIC", topic}) +
		"\nCollect concise evidence snippets about the topic. Respond with JSON: " +
		`{"topic":"...","snippets":[{"text":"...","tags":["..."],"confidence":0.0,"source":"..."}],"references":[{"title":"...","url":"..."}]}`

	out, err := run(ctx, &a.Base, info, plan[core.ResearchResult]{
		prompt: prompt,
		validate: func(r core.ResearchResult) error {
			if len(r.Snippets) == 0 {
				return core.ErrOutputValidation(a.role, "research produced no snippets")
			}
			return nil
		},
		fallback: func() core.ResearchResult { return a.Fallback(topic) },
		score:    scoreResearch,
	})
	if err != nil {
		return out, err
	}

	out.Value.Snippets = DedupeSnippets(out.Value.Snippets)
	out.Value.Snippets = filterSnippets(out.Value.Snippets, MinSnippetConfidence, MaxSnippets)
	return out, nil
}

// Fallback is the documented schema-valid default for a failed research run.
func (a *Researcher) Fallback(topic string) core.ResearchResult {
	return core.ResearchResult{
		Topic: topic,
		Snippets: []core.EvidenceSnippet{{
			Text:       fmt.Sprintf("General overview of %s.", topic),
			Tags:       []string{"overview"},
			Confidence: 0.5,
		}},
	}
}

// DedupeSnippets drops near-identical snippets by normalized-text equality,
// keeping the first occurrence. It is idempotent.
func DedupeSnippets(snippets []core.EvidenceSnippet) []core.EvidenceSnippet {
	seen := make(map[string]bool, len(snippets))
	out := make([]core.EvidenceSnippet, 0, len(snippets))
	for _, s := range snippets {
		key := normalizeText(s.Text)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

// normalizeText lowercases, collapses whitespace, and strips trailing
// punctuation for equality comparison.
func normalizeText(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimRight(s, ".!? ")
}

func filterSnippets(snippets []core.EvidenceSnippet, minConfidence float64, cap int) []core.EvidenceSnippet {
	out := make([]core.EvidenceSnippet, 0, len(snippets))
	for _, s := range snippets {
		if s.Confidence < minConfidence {
			continue
		}
		out = append(out, s)
		if len(out) == cap {
			break
		}
	}
	return out
}

// scoreResearch rewards snippet volume and average confidence.
func scoreResearch(r core.ResearchResult) float64 {
	if len(r.Snippets) == 0 {
		return 0
	}
	volume := float64(len(r.Snippets)) / 8
	if volume > 1 {
		volume = 1
	}
	var conf float64
	for _, s := range r.Snippets {
		conf += s.Confidence
	}
	conf /= float64(len(r.Snippets))
	return 0.5*volume + 0.5*conf
}
