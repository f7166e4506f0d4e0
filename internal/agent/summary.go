package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/deckhand-ai/deckhand/internal/core"
)

// Summarizer produces an email-style executive summary over an assembled
// deck. It only runs when the audience matches the executive heuristic.
type Summarizer struct {
	Base
}

// NewSummarizer creates the executive-summary agent.
func NewSummarizer(deps Deps) *Summarizer {
	return &Summarizer{Base: NewBase(RoleSummarizer, deps)}
}

// ExecutiveAudience reports whether an audience description asks for an
// executive summary.
func ExecutiveAudience(audience string) bool {
	lower := strings.ToLower(audience)
	for _, marker := range []string{"executive", "c-suite", "board", "leadership", "ceo", "cfo", "cto"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Execute returns the summary text for the deck.
func (a *Summarizer) Execute(ctx context.Context, info RunInfo, deck *core.Deck) (Outcome[core.SummaryResult], error) {
	var headings strings.Builder
	for _, sl := range deck.Slides {
		if h := sl.Heading(); h != "" {
			headings.WriteString("- ")
			headings.WriteString(h)
			headings.WriteString("\n")
		}
	}

	prompt := header(RoleSummarizer, [2]string{"DECK_TITLE", deck.Title}) +
		"\nSlide headings:\n" + headings.String() +
		"\nWrite a short email-style executive summary. Respond with JSON: " +
		`{"subject":"...","body":"..."}`

	return run(ctx, &a.Base, info, plan[core.SummaryResult]{
		prompt: prompt,
		validate: func(r core.SummaryResult) error {
			if strings.TrimSpace(r.Body) == "" {
				return core.ErrOutputValidation(a.role, "summary body is empty")
			}
			return nil
		},
		fallback: func() core.SummaryResult { return a.Fallback(deck) },
		score:    scoreSummary,
	})
}

// Fallback builds a minimal generic summary.
func (a *Summarizer) Fallback(deck *core.Deck) core.SummaryResult {
	return core.SummaryResult{
		Subject: "Summary: " + deck.Title,
		Body: fmt.Sprintf("The deck %q contains %d slides covering %s.",
			deck.Title, len(deck.Slides), deck.Topic),
	}
}

// scoreSummary rewards summaries inside a sensible length band.
func scoreSummary(r core.SummaryResult) float64 {
	words := wordCount(r.Body)
	switch {
	case words == 0:
		return 0
	case words < 30:
		return 0.6
	case words <= 200:
		return 0.9
	default:
		return 0.7
	}
}
