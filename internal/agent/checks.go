package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/deckhand-ai/deckhand/internal/core"
)

// Checker is a quality-assurance agent. Checkers read the (possibly
// tightened) slide set and never mutate it.
type Checker interface {
	Agent
	CheckType() core.QualityCheckType
	Check(ctx context.Context, info RunInfo, deckTitle string, slides []*core.Slide) (Outcome[core.CheckResult], error)
}

// NeutralCheck is the degraded fallback for a failed checker: neutral score,
// zero findings.
func NeutralCheck(t core.QualityCheckType) core.CheckResult {
	return core.CheckResult{Type: t, Score: FallbackScore}
}

// modelChecker is the shared implementation for model-backed checkers.
type modelChecker struct {
	Base
	checkType core.QualityCheckType
}

func (c *modelChecker) CheckType() core.QualityCheckType { return c.checkType }

func (c *modelChecker) Check(ctx context.Context, info RunInfo, deckTitle string, slides []*core.Slide) (Outcome[core.CheckResult], error) {
	var body strings.Builder
	for _, sl := range slides {
		fmt.Fprintf(&body, "[%s] %s\n", sl.ID, strings.TrimSpace(sl.PlainText()))
	}

	prompt := header(c.role, [2]string{"DECK_TITLE", deckTitle}) +
		"\nSlides:\n" + body.String() +
		"\nReview the deck. Respond with JSON: " +
		`{"type":"` + string(c.checkType) + `","score":0.0,"checks":[{"type":"` + string(c.checkType) +
		`","severity":"low","message":"...","target_id":"...","suggested_fix":"...","auto_fixable":false}]}`

	out, err := run(ctx, &c.Base, info, plan[core.CheckResult]{
		prompt: prompt,
		validate: func(r core.CheckResult) error {
			if r.Type != c.checkType {
				return core.ErrOutputValidation(c.role, "checker reported the wrong check type")
			}
			if r.Score < 0 || r.Score > 1 {
				return core.ErrOutputValidation(c.role, "check score outside [0,1]")
			}
			return nil
		},
		fallback: func() core.CheckResult { return NeutralCheck(c.checkType) },
		score:    func(r core.CheckResult) float64 { return r.Score },
	})
	if err != nil {
		return out, err
	}

	// The model's own score is authoritative but findings drag it down a
	// little per high-severity item, deterministically.
	for _, chk := range out.Value.Checks {
		if chk.Severity == core.SeverityHigh {
			out.Value.Score -= 0.05
		}
	}
	if out.Value.Score < 0 {
		out.Value.Score = 0
	}
	out.Score = out.Value.Score
	return out, nil
}

// FactChecker reviews factual claims against the deck's own evidence.
type FactChecker struct{ modelChecker }

// NewFactChecker creates the fact-checking agent.
func NewFactChecker(deps Deps) *FactChecker {
	return &FactChecker{modelChecker{
		Base:      NewBase(RoleFactCheck, deps),
		checkType: core.CheckFact,
	}}
}

// ConsistencyChecker reviews terminology and tone drift across slides.
type ConsistencyChecker struct{ modelChecker }

// NewConsistencyChecker creates the consistency-checking agent.
func NewConsistencyChecker(deps Deps) *ConsistencyChecker {
	return &ConsistencyChecker{modelChecker{
		Base:      NewBase(RoleConsistency, deps),
		checkType: core.CheckConsistency,
	}}
}

// AccessibilityLinter applies deterministic accessibility rules locally, with
// no model call: it flags missing headings, bullet overflow, and image
// blocks without references.
type AccessibilityLinter struct {
	Base
}

// NewAccessibilityLinter creates the accessibility lint agent.
func NewAccessibilityLinter(deps Deps) *AccessibilityLinter {
	return &AccessibilityLinter{Base: NewBase(RoleAccessibility, deps)}
}

func (a *AccessibilityLinter) CheckType() core.QualityCheckType { return core.CheckAccessibility }

// Check lints the slides. It cannot fail transiently; the error return
// exists only to satisfy the Checker contract.
func (a *AccessibilityLinter) Check(_ context.Context, _ RunInfo, _ string, slides []*core.Slide) (Outcome[core.CheckResult], error) {
	result := core.CheckResult{Type: core.CheckAccessibility}

	for _, sl := range slides {
		if !sl.HasHeading() {
			result.Checks = append(result.Checks, core.QualityCheck{
				Type:         core.CheckAccessibility,
				Severity:     core.SeverityHigh,
				Message:      "slide has no heading for screen-reader navigation",
				TargetID:     sl.ID,
				SuggestedFix: "add a heading block",
				AutoFixable:  false,
			})
		}
		if n := sl.BulletCount(); n > MaxBulletsPerSlide {
			result.Checks = append(result.Checks, core.QualityCheck{
				Type:         core.CheckAccessibility,
				Severity:     core.SeverityMedium,
				Message:      fmt.Sprintf("slide has %d bullets; dense lists are hard to follow", n),
				TargetID:     sl.ID,
				SuggestedFix: "split the slide or trim bullets",
				AutoFixable:  true,
			})
		}
		for _, b := range sl.Blocks {
			if b.Kind == core.BlockImage && b.Text == "" {
				result.Checks = append(result.Checks, core.QualityCheck{
					Type:         core.CheckAccessibility,
					Severity:     core.SeverityMedium,
					Message:      "image block has no alternative text",
					TargetID:     sl.ID,
					SuggestedFix: "describe the image in the block text",
					AutoFixable:  false,
				})
			}
		}
	}

	result.Score = lintScore(len(slides), result.Checks)
	return Outcome[core.CheckResult]{Value: result, Score: result.Score}, nil
}

// ReadabilityAnalyzer computes deterministic readability heuristics locally,
// with no model call.
type ReadabilityAnalyzer struct {
	Base
}

// NewReadabilityAnalyzer creates the readability analysis agent.
func NewReadabilityAnalyzer(deps Deps) *ReadabilityAnalyzer {
	return &ReadabilityAnalyzer{Base: NewBase(RoleReadability, deps)}
}

func (a *ReadabilityAnalyzer) CheckType() core.QualityCheckType { return core.CheckReadability }

// Check analyzes word budgets and sentence length.
func (a *ReadabilityAnalyzer) Check(_ context.Context, _ RunInfo, _ string, slides []*core.Slide) (Outcome[core.CheckResult], error) {
	result := core.CheckResult{Type: core.CheckReadability}

	for _, sl := range slides {
		for _, b := range sl.Blocks {
			switch b.Kind {
			case core.BlockHeading:
				if wordCount(b.Text) > TitleWordBudget {
					result.Checks = append(result.Checks, core.QualityCheck{
						Type:         core.CheckReadability,
						Severity:     core.SeverityLow,
						Message:      fmt.Sprintf("heading exceeds %d words", TitleWordBudget),
						TargetID:     sl.ID,
						SuggestedFix: "shorten the heading",
						AutoFixable:  true,
					})
				}
			case core.BlockBullets:
				for _, item := range b.Items {
					if wordCount(item) > BulletWordBudget {
						result.Checks = append(result.Checks, core.QualityCheck{
							Type:         core.CheckReadability,
							Severity:     core.SeverityLow,
							Message:      fmt.Sprintf("bullet exceeds %d words", BulletWordBudget),
							TargetID:     sl.ID,
							SuggestedFix: "split or shorten the bullet",
							AutoFixable:  true,
						})
					}
				}
			case core.BlockText:
				if wordCount(b.Text) > 60 {
					result.Checks = append(result.Checks, core.QualityCheck{
						Type:         core.CheckReadability,
						Severity:     core.SeverityMedium,
						Message:      "text block is too long for a slide",
						TargetID:     sl.ID,
						SuggestedFix: "convert to bullets or move to speaker notes",
						AutoFixable:  false,
					})
				}
			}
		}
	}

	result.Score = lintScore(len(slides), result.Checks)
	return Outcome[core.CheckResult]{Value: result, Score: result.Score}, nil
}

// lintScore maps finding density to [0,1]: a clean deck scores 1.0 and each
// finding costs proportionally to severity, normalized by slide count.
func lintScore(slideCount int, checks []core.QualityCheck) float64 {
	if slideCount == 0 {
		return 1
	}
	penalty := 0.0
	for _, c := range checks {
		switch c.Severity {
		case core.SeverityHigh:
			penalty += 0.3
		case core.SeverityMedium:
			penalty += 0.15
		default:
			penalty += 0.05
		}
	}
	score := 1 - penalty/float64(slideCount)
	if score < 0 {
		return 0
	}
	return score
}
