package agent

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/deckhand-ai/deckhand/internal/core"
)

// Section count bounds for generated outlines.
const (
	MinSections = 3
	MaxSections = 6
)

// Structurer turns a topic plus evidence into a deck outline whose section
// slide estimates sum exactly to the requested body slide count.
type Structurer struct {
	Base
}

// NewStructurer creates the structuring agent.
func NewStructurer(deps Deps) *Structurer {
	return &Structurer{Base: NewBase(RoleStructurer, deps)}
}

// StructureInput is the structurer's typed input.
type StructureInput struct {
	Topic      string
	BodySlides int
	Evidence   []core.EvidenceSnippet
}

// Execute returns an outline normalized to the requested slide total.
func (a *Structurer) Execute(ctx context.Context, info RunInfo, in StructureInput) (Outcome[core.OutlineResult], error) {
	var ev strings.Builder
	for _, s := range in.Evidence {
		ev.WriteString("- ")
		ev.WriteString(s.Text)
		ev.WriteString("\n")
	}

	prompt := header(RoleStructurer,
		[2]string{"TOPIC", in.Topic},
		[2]string{"BODY_SLIDES", strconv.Itoa(in.BodySlides)}) +
		"\nEvidence:\n" + ev.String() +
		"\nPlan a deck outline. Respond with JSON: " +
		`{"outline":{"title":"...","sections":[{"id":"sec-1","title":"...","keywords":["..."],"est_slides":0}]}}`

	out, err := run(ctx, &a.Base, info, plan[core.OutlineResult]{
		prompt: prompt,
		validate: func(r core.OutlineResult) error {
			n := len(r.Outline.Sections)
			if n < 1 {
				return core.ErrOutputValidation(a.role, "outline has no sections")
			}
			if in.BodySlides >= MinSections && n < MinSections {
				return core.ErrOutputValidation(a.role,
					fmt.Sprintf("outline has %d sections, need at least %d", n, MinSections))
			}
			if r.Outline.Title == "" {
				return core.ErrOutputValidation(a.role, "outline has no title")
			}
			return nil
		},
		fallback: func() core.OutlineResult { return a.Fallback(in) },
		score:    func(r core.OutlineResult) float64 { return scoreOutline(r.Outline, in.BodySlides) },
	})
	if err != nil {
		return out, err
	}

	out.Value.Outline = NormalizeOutline(out.Value.Outline, in.BodySlides)
	return out, nil
}

// Fallback builds a deterministic generic outline.
func (a *Structurer) Fallback(in StructureInput) core.OutlineResult {
	n := in.BodySlides / 2
	if n < MinSections {
		n = MinSections
	}
	if n > MaxSections {
		n = MaxSections
	}
	if n > in.BodySlides {
		n = in.BodySlides
	}
	if n < 1 {
		n = 1
	}

	titles := []string{"Introduction", "Background", "Key Points", "Analysis", "Implications", "Next Steps"}
	outline := core.Outline{Title: in.Topic}
	for i := 0; i < n; i++ {
		outline.Sections = append(outline.Sections, core.OutlineSection{
			ID:        fmt.Sprintf("sec-%d", i+1),
			Title:     titles[i%len(titles)],
			EstSlides: 1,
		})
	}
	return core.OutlineResult{Outline: NormalizeOutline(outline, in.BodySlides)}
}

// NormalizeOutline caps the section count, assigns missing section IDs, and
// redistributes slide estimates so they sum exactly to total. Remainder
// slides go to the first sections.
func NormalizeOutline(o core.Outline, total int) core.Outline {
	if total < 1 {
		total = 1
	}
	if len(o.Sections) == 0 {
		o.Sections = []core.OutlineSection{{Title: o.Title, EstSlides: total}}
	}
	if len(o.Sections) > MaxSections {
		o.Sections = o.Sections[:MaxSections]
	}
	if len(o.Sections) > total {
		o.Sections = o.Sections[:total]
	}

	for i := range o.Sections {
		if o.Sections[i].ID == "" {
			o.Sections[i].ID = fmt.Sprintf("sec-%d", i+1)
		}
	}

	if o.TotalSlides() == total && minEst(o.Sections) >= 1 {
		return o
	}

	n := len(o.Sections)
	base := total / n
	extra := total % n
	for i := range o.Sections {
		o.Sections[i].EstSlides = base
		if i < extra {
			o.Sections[i].EstSlides++
		}
	}
	return o
}

func minEst(sections []core.OutlineSection) int {
	m := 1 << 30
	for _, s := range sections {
		if s.EstSlides < m {
			m = s.EstSlides
		}
	}
	return m
}

// scoreOutline rewards outlines that already match the slide budget and use
// keyword-tagged sections.
func scoreOutline(o core.Outline, total int) float64 {
	score := 0.4
	if o.TotalSlides() == total {
		score += 0.3
	}
	n := len(o.Sections)
	if n >= MinSections && n <= MaxSections {
		score += 0.15
	}
	tagged := 0
	for _, s := range o.Sections {
		if len(s.Keywords) > 0 {
			tagged++
		}
	}
	if n > 0 {
		score += 0.15 * float64(tagged) / float64(n)
	}
	return score
}
