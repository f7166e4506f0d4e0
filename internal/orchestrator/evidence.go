package orchestrator

import (
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/deckhand-ai/deckhand/internal/core"
)

// MaxEvidencePerSection caps how many snippets a single writer receives.
const MaxEvidencePerSection = 6

// EvidenceForSection selects the snippets most relevant to one outline
// section by fuzzy-matching the section's keywords and title words against
// snippet text and tags. The result is always capped at
// MaxEvidencePerSection; when nothing matches, the stable sort keeps input
// order and the section gets the first snippets, so no writer starts
// empty-handed. The selection is deterministic for a fixed input.
func EvidenceForSection(section core.OutlineSection, snippets []core.EvidenceSnippet) []core.EvidenceSnippet {
	if len(snippets) <= MaxEvidencePerSection {
		return snippets
	}

	targets := make([]string, len(snippets))
	for i, s := range snippets {
		targets[i] = strings.ToLower(s.Text + " " + strings.Join(s.Tags, " "))
	}

	queries := make([]string, 0, len(section.Keywords)+2)
	queries = append(queries, section.Keywords...)
	for _, w := range strings.Fields(section.Title) {
		if len(w) > 3 {
			queries = append(queries, w)
		}
	}

	scores := make([]int, len(snippets))
	for _, q := range queries {
		for _, m := range fuzzy.Find(strings.ToLower(q), targets) {
			scores[m.Index] += m.Score
		}
	}

	type ranked struct {
		index int
		score int
	}
	order := make([]ranked, len(snippets))
	for i := range snippets {
		order[i] = ranked{index: i, score: scores[i]}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return order[a].score > order[b].score
	})

	out := make([]core.EvidenceSnippet, 0, MaxEvidencePerSection)
	for _, r := range order[:MaxEvidencePerSection] {
		out = append(out, snippets[r.index])
	}
	return out
}
