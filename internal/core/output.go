package core

// Structured outputs exchanged between pipeline stages. Each agent parses
// model text into exactly one of these shapes; downstream stages consume the
// typed value, never raw text.

// EvidenceSnippet is one unit of research material with topical tags for
// later section matching.
type EvidenceSnippet struct {
	Text       string   `json:"text"`
	Tags       []string `json:"tags,omitempty"`
	Confidence float64  `json:"confidence"`
	Source     string   `json:"source,omitempty"`
}

// ResearchResult is the research stage output: evidence plus sources.
type ResearchResult struct {
	Topic      string            `json:"topic"`
	Snippets   []EvidenceSnippet `json:"snippets"`
	References []Reference       `json:"references,omitempty"`
}

// OutlineSection is one planned deck section.
type OutlineSection struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Keywords  []string `json:"keywords,omitempty"`
	EstSlides int      `json:"est_slides"`
}

// Outline is the structuring stage output. Section slide estimates must sum
// to the requested body slide count.
type Outline struct {
	Title    string           `json:"title"`
	Sections []OutlineSection `json:"sections"`
}

// TotalSlides sums the per-section slide estimates.
func (o *Outline) TotalSlides() int {
	n := 0
	for _, s := range o.Sections {
		n += s.EstSlides
	}
	return n
}

// OutlineResult wraps the outline for the stage boundary.
type OutlineResult struct {
	Outline Outline `json:"outline"`
}

// SectionResult is one content writer's output for a single section.
type SectionResult struct {
	SectionID string   `json:"section_id"`
	Slides    []*Slide `json:"slides"`
}

// QualityCheckType identifies which checker produced a finding.
type QualityCheckType string

const (
	CheckFact          QualityCheckType = "fact"
	CheckAccessibility QualityCheckType = "accessibility"
	CheckReadability   QualityCheckType = "readability"
	CheckConsistency   QualityCheckType = "consistency"
)

// Severity ranks a quality finding.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// QualityCheck is one finding against a slide or the whole deck.
type QualityCheck struct {
	Type         QualityCheckType `json:"type"`
	Severity     Severity         `json:"severity"`
	Message      string           `json:"message"`
	TargetID     string           `json:"target_id,omitempty"` // slide ID, empty for deck-level
	SuggestedFix string           `json:"suggested_fix,omitempty"`
	AutoFixable  bool             `json:"auto_fixable"`
}

// CheckResult is one checker's full report with its quality score.
type CheckResult struct {
	Type   QualityCheckType `json:"type"`
	Checks []QualityCheck   `json:"checks"`
	Score  float64          `json:"score"`
}

// QAReport merges all checker results in fixed order.
type QAReport struct {
	Results []CheckResult `json:"results"`
}

// ScoreFor returns the named checker's score and whether it ran.
func (r *QAReport) ScoreFor(t QualityCheckType) (float64, bool) {
	for _, res := range r.Results {
		if res.Type == t {
			return res.Score, true
		}
	}
	return 0, false
}

// Overall averages the scores of the checkers that ran.
func (r *QAReport) Overall() float64 {
	if len(r.Results) == 0 {
		return 0
	}
	sum := 0.0
	for _, res := range r.Results {
		sum += res.Score
	}
	return sum / float64(len(r.Results))
}

// TightenResult is the tightener's rewritten slide set.
type TightenResult struct {
	Slides []*Slide `json:"slides"`
}

// SummaryResult is the optional executive summary output.
type SummaryResult struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}
