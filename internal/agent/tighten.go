package agent

import (
	"context"
	"encoding/json"

	"github.com/deckhand-ai/deckhand/internal/core"
)

// Tightener rewrites slide copy for brevity. It runs before the concurrent
// quality checks and is the only QA participant that mutates slide text; on
// failure the deck passes through untouched.
type Tightener struct {
	Base
}

// NewTightener creates the copy-tightening agent.
func NewTightener(deps Deps) *Tightener {
	return &Tightener{Base: NewBase(RoleTightener, deps)}
}

// Execute returns the tightened slide set. The slide count and IDs are
// preserved; only text shrinks.
func (a *Tightener) Execute(ctx context.Context, info RunInfo, slides []*core.Slide) (Outcome[core.TightenResult], error) {
	encoded, err := json.Marshal(slides)
	if err != nil {
		return Outcome[core.TightenResult]{}, core.ErrExecution("slides_encode", err.Error())
	}

	prompt := header(RoleTightener, [2]string{"SLIDES_JSON", string(encoded)}) +
		"\nTighten the slide copy without changing slide IDs, order, or meaning. " +
		"Respond with JSON: " + `{"slides":[...]}`

	return run(ctx, &a.Base, info, plan[core.TightenResult]{
		prompt: prompt,
		validate: func(r core.TightenResult) error {
			if len(r.Slides) != len(slides) {
				return core.ErrOutputValidation(a.role, "tightener changed the slide count")
			}
			for i, sl := range r.Slides {
				if sl.ID != slides[i].ID {
					return core.ErrOutputValidation(a.role, "tightener reordered or renamed slides")
				}
			}
			return nil
		},
		fallback: func() core.TightenResult {
			// Pass-through: the deck keeps its original copy.
			return core.TightenResult{Slides: slides}
		},
		score: func(r core.TightenResult) float64 { return scoreTighten(slides, r.Slides) },
	})
}

// scoreTighten rewards text reduction, capped so aggressive cuts don't score
// higher than moderate ones.
func scoreTighten(before, after []*core.Slide) float64 {
	beforeWords := totalWords(before)
	afterWords := totalWords(after)
	if beforeWords == 0 {
		return FallbackScore
	}
	if afterWords >= beforeWords {
		return 0.6 // valid but no improvement
	}
	reduction := float64(beforeWords-afterWords) / float64(beforeWords)
	if reduction > 0.4 {
		reduction = 0.4
	}
	return 0.6 + reduction
}

func totalWords(slides []*core.Slide) int {
	n := 0
	for _, sl := range slides {
		n += wordCount(sl.PlainText())
	}
	return n
}
