package agent

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/deckhand-ai/deckhand/internal/core"
)

// Shared word budgets for generated slide copy.
const (
	TitleWordBudget    = 8
	BulletWordBudget   = 12
	MaxBulletsPerSlide = 6
)

// Writer produces the slides for one outline section.
type Writer struct {
	Base
}

// NewWriter creates the content-writing agent.
func NewWriter(deps Deps) *Writer {
	return &Writer{Base: NewBase(RoleWriter, deps)}
}

// WriteInput is the writer's typed input: one section plus the evidence
// relevant to it.
type WriteInput struct {
	Section  core.OutlineSection
	Evidence []core.EvidenceSnippet
	Audience string
	Tone     string
}

// Execute returns the section's slides.
func (a *Writer) Execute(ctx context.Context, info RunInfo, in WriteInput) (Outcome[core.SectionResult], error) {
	var ev strings.Builder
	for _, s := range in.Evidence {
		ev.WriteString("- ")
		ev.WriteString(s.Text)
		ev.WriteString("\n")
	}

	prompt := header(RoleWriter,
		[2]string{"SECTION_ID", in.Section.ID},
		[2]string{"SECTION_TITLE", in.Section.Title},
		[2]string{"SLIDES", strconv.Itoa(in.Section.EstSlides)},
		[2]string{"KEYWORDS", strings.Join(in.Section.Keywords, ", ")},
		[2]string{"AUDIENCE", in.Audience},
		[2]string{"TONE", in.Tone}) +
		"\nEvidence:\n" + ev.String() +
		fmt.Sprintf("\nWrite the slides. Titles at most %d words, bullets at most %d words, at most %d bullets per slide. ",
			TitleWordBudget, BulletWordBudget, MaxBulletsPerSlide) +
		"Respond with JSON: " +
		`{"section_id":"...","slides":[{"id":"...","section_id":"...","blocks":[{"kind":"heading","text":"..."},{"kind":"bullets","items":["..."]}],"notes":"..."}]}`

	out, err := run(ctx, &a.Base, info, plan[core.SectionResult]{
		prompt: prompt,
		validate: func(r core.SectionResult) error {
			if len(r.Slides) == 0 {
				return core.ErrOutputValidation(a.role, "section produced no slides")
			}
			for _, sl := range r.Slides {
				if !sl.HasHeading() {
					return core.ErrOutputValidation(a.role, "slide missing heading block")
				}
			}
			return nil
		},
		fallback: func() core.SectionResult { return a.Fallback(in.Section) },
		score:    func(r core.SectionResult) float64 { return scoreSection(r, in.Section.EstSlides) },
	})
	if err != nil {
		return out, err
	}

	normalizeSection(&out.Value, in.Section)
	return out, nil
}

// Fallback builds generic placeholder slides for the section, marked so the
// final report can account for them.
func (a *Writer) Fallback(section core.OutlineSection) core.SectionResult {
	count := section.EstSlides
	if count < 1 {
		count = 1
	}
	result := core.SectionResult{SectionID: section.ID}
	for i := 0; i < count; i++ {
		result.Slides = append(result.Slides, &core.Slide{
			ID:        fmt.Sprintf("%s-%d", section.ID, i+1),
			SectionID: section.ID,
			Fallback:  true,
			Blocks: []core.Block{
				{Kind: core.BlockHeading, Text: section.Title, Level: 2},
				{Kind: core.BlockText, Text: "Content for this slide could not be generated."},
			},
		})
	}
	return result
}

// normalizeSection pins IDs and counts to the outline's plan regardless of
// what the model returned.
func normalizeSection(r *core.SectionResult, section core.OutlineSection) {
	r.SectionID = section.ID

	want := section.EstSlides
	if want < 1 {
		want = 1
	}
	if len(r.Slides) > want {
		r.Slides = r.Slides[:want]
	}
	for len(r.Slides) < want {
		r.Slides = append(r.Slides, &core.Slide{
			Fallback: true,
			Blocks: []core.Block{
				{Kind: core.BlockHeading, Text: section.Title, Level: 2},
			},
		})
	}

	for i, sl := range r.Slides {
		sl.SectionID = section.ID
		if sl.ID == "" {
			sl.ID = fmt.Sprintf("%s-%d", section.ID, i+1)
		}
	}
}

// scoreSection measures word-budget compliance and slide-count accuracy.
func scoreSection(r core.SectionResult, want int) float64 {
	if len(r.Slides) == 0 {
		return 0
	}

	countScore := 1.0
	if want > 0 && len(r.Slides) != want {
		countScore = 0.5
	}

	compliant, checks := 0, 0
	for _, sl := range r.Slides {
		for _, b := range sl.Blocks {
			switch b.Kind {
			case core.BlockHeading:
				checks++
				if wordCount(b.Text) <= TitleWordBudget {
					compliant++
				}
			case core.BlockBullets:
				checks++
				if len(b.Items) <= MaxBulletsPerSlide {
					compliant++
				}
				for _, item := range b.Items {
					checks++
					if wordCount(item) <= BulletWordBudget {
						compliant++
					}
				}
			}
		}
	}
	budgetScore := 1.0
	if checks > 0 {
		budgetScore = float64(compliant) / float64(checks)
	}

	return 0.4*countScore + 0.6*budgetScore
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
