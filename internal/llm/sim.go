package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/deckhand-ai/deckhand/internal/core"
)

// SimCaller is a deterministic offline backend. It recognizes the structured
// prompt headers agents emit (ROLE, TOPIC, SECTION_ID, ...) and fabricates
// schema-valid responses, so full pipeline runs work with no network and no
// credentials. The same prompt always yields the same output.
type SimCaller struct {
	model core.ModelDescriptor
}

// NewSimCaller creates a simulated caller for the given descriptor.
func NewSimCaller(model core.ModelDescriptor) *SimCaller {
	return &SimCaller{model: model}
}

// Model returns the bound descriptor.
func (s *SimCaller) Model() core.ModelDescriptor { return s.model }

// Call fabricates a response for the prompt's role header.
func (s *SimCaller) Call(ctx context.Context, prompt string, _ CallOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	role := headerValue(prompt, "ROLE")
	switch role {
	case "researcher":
		return s.research(prompt), nil
	case "structurer":
		return s.structure(prompt), nil
	case "writer":
		return s.write(prompt), nil
	case "tightener":
		return s.tighten(prompt), nil
	case "factcheck", "consistency":
		return s.check(role, prompt), nil
	case "summarizer":
		return s.summarize(prompt), nil
	default:
		return "", core.ErrExecution("sim_unknown_role", "no canned response for role: "+role)
	}
}

// headerValue extracts the value of a "KEY: value" line from the prompt.
func headerValue(prompt, key string) string {
	for _, line := range strings.Split(prompt, "\n") {
		if rest, ok := strings.CutPrefix(line, key+": "); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}

func seed(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

func (s *SimCaller) research(prompt string) string {
	topic := headerValue(prompt, "TOPIC")
	n := 4 + int(seed(topic)%3)

	result := core.ResearchResult{Topic: topic}
	for i := 0; i < n; i++ {
		result.Snippets = append(result.Snippets, core.EvidenceSnippet{
			Text:       fmt.Sprintf("Key finding %d about %s.", i+1, topic),
			Tags:       []string{topicWord(topic, i), "overview"},
			Confidence: 0.6 + 0.08*float64(i%5),
			Source:     fmt.Sprintf("https://example.org/%s/%d", slug(topic), i+1),
		})
	}
	result.References = []core.Reference{
		{Title: "Survey of " + topic, URL: "https://example.org/" + slug(topic), Source: "example.org"},
	}
	return mustJSON(result)
}

func (s *SimCaller) structure(prompt string) string {
	topic := headerValue(prompt, "TOPIC")
	body, _ := strconv.Atoi(headerValue(prompt, "BODY_SLIDES"))
	if body < 1 {
		body = 1
	}

	sections := body / 2
	if sections < 3 {
		sections = 3
	}
	if sections > 6 {
		sections = 6
	}
	if sections > body {
		sections = body
	}

	out := core.Outline{Title: titleCase(topic)}
	base := body / sections
	extra := body % sections
	for i := 0; i < sections; i++ {
		est := base
		if i < extra {
			est++
		}
		out.Sections = append(out.Sections, core.OutlineSection{
			ID:        fmt.Sprintf("sec-%d", i+1),
			Title:     fmt.Sprintf("%s: part %d", titleCase(topic), i+1),
			Keywords:  []string{topicWord(topic, i)},
			EstSlides: est,
		})
	}
	return mustJSON(core.OutlineResult{Outline: out})
}

func (s *SimCaller) write(prompt string) string {
	sectionID := headerValue(prompt, "SECTION_ID")
	title := headerValue(prompt, "SECTION_TITLE")
	count, _ := strconv.Atoi(headerValue(prompt, "SLIDES"))
	if count < 1 {
		count = 1
	}

	result := core.SectionResult{SectionID: sectionID}
	for i := 0; i < count; i++ {
		result.Slides = append(result.Slides, &core.Slide{
			ID:        fmt.Sprintf("%s-%d", sectionID, i+1),
			SectionID: sectionID,
			Blocks: []core.Block{
				{Kind: core.BlockHeading, Text: fmt.Sprintf("%s (%d)", title, i+1), Level: 2},
				{Kind: core.BlockBullets, Items: []string{
					"First supporting point for " + title + ".",
					"Second supporting point with detail.",
					"Third point rounding out the argument.",
				}},
			},
			Notes: "Speaker notes for " + title + ".",
		})
	}
	return mustJSON(result)
}

func (s *SimCaller) tighten(prompt string) string {
	raw := headerValue(prompt, "SLIDES_JSON")
	var slides []*core.Slide
	if err := json.Unmarshal([]byte(raw), &slides); err != nil {
		return mustJSON(core.TightenResult{})
	}
	// Trim bullets down to at most four per block.
	for _, sl := range slides {
		for i := range sl.Blocks {
			if len(sl.Blocks[i].Items) > 4 {
				sl.Blocks[i].Items = sl.Blocks[i].Items[:4]
			}
		}
	}
	return mustJSON(core.TightenResult{Slides: slides})
}

func (s *SimCaller) check(role, prompt string) string {
	checkType := core.CheckFact
	if role == "consistency" {
		checkType = core.CheckConsistency
	}
	deck := headerValue(prompt, "DECK_TITLE")
	findings := int(seed(role+deck) % 2)

	result := core.CheckResult{Type: checkType, Score: 0.85}
	for i := 0; i < findings; i++ {
		result.Checks = append(result.Checks, core.QualityCheck{
			Type:     checkType,
			Severity: core.SeverityLow,
			Message:  fmt.Sprintf("Minor %s concern noted during review.", checkType),
		})
		result.Score -= 0.05
	}
	return mustJSON(result)
}

func (s *SimCaller) summarize(prompt string) string {
	title := headerValue(prompt, "DECK_TITLE")
	return mustJSON(core.SummaryResult{
		Subject: "Deck summary: " + title,
		Body: fmt.Sprintf("The attached deck %q covers the requested topic across its agenda, "+
			"body sections, and conclusion. Review the highlighted findings before presenting.", title),
	})
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func slug(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", "-"))
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func topicWord(topic string, i int) string {
	words := strings.Fields(strings.ToLower(topic))
	if len(words) == 0 {
		return "general"
	}
	return words[i%len(words)]
}
