package orchestrator

import (
	"fmt"
	"strings"

	"github.com/deckhand-ai/deckhand/internal/core"
)

// assemble builds the final slide sequence: title and agenda up front, body
// sections in outline order, then a conclusion and, when references exist, a
// closing references slide. Slide order and IDs are reindexed at the end so
// downstream consumers see a dense, stable numbering.
func assemble(deck *core.Deck, outline core.Outline, body []*core.Slide, refs []core.Reference) {
	title := outline.Title
	if title == "" {
		title = deck.Topic
	}
	deck.Title = title

	slides := make([]*core.Slide, 0, len(body)+4)

	slides = append(slides, &core.Slide{
		ID: "title",
		Blocks: []core.Block{
			{Kind: core.BlockHeading, Text: title, Level: 1},
			{Kind: core.BlockText, Text: subtitle(deck)},
		},
	})

	if len(outline.Sections) > 1 {
		agenda := make([]string, 0, len(outline.Sections))
		for _, s := range outline.Sections {
			agenda = append(agenda, s.Title)
		}
		slides = append(slides, &core.Slide{
			ID: "agenda",
			Blocks: []core.Block{
				{Kind: core.BlockHeading, Text: "Agenda", Level: 2},
				{Kind: core.BlockBullets, Items: agenda},
			},
		})
	}

	slides = append(slides, body...)

	slides = append(slides, conclusionSlide(outline))

	if len(refs) > 0 {
		items := make([]string, 0, len(refs))
		for _, r := range refs {
			items = append(items, formatReference(r))
		}
		slides = append(slides, &core.Slide{
			ID: "references",
			Blocks: []core.Block{
				{Kind: core.BlockHeading, Text: "References", Level: 2},
				{Kind: core.BlockBullets, Items: items},
			},
		})
	}

	deck.Slides = slides
	deck.References = refs
	deck.Reindex()
}

func subtitle(deck *core.Deck) string {
	if deck.Audience != "" {
		return fmt.Sprintf("Prepared for %s", deck.Audience)
	}
	return deck.Topic
}

func conclusionSlide(outline core.Outline) *core.Slide {
	points := make([]string, 0, len(outline.Sections))
	for _, s := range outline.Sections {
		points = append(points, s.Title)
	}
	if len(points) == 0 {
		points = []string{"Questions and discussion"}
	}
	return &core.Slide{
		ID: "conclusion",
		Blocks: []core.Block{
			{Kind: core.BlockHeading, Text: "Key Takeaways", Level: 2},
			{Kind: core.BlockBullets, Items: points},
		},
	}
}

func formatReference(r core.Reference) string {
	parts := []string{r.Title}
	if r.Source != "" {
		parts = append(parts, r.Source)
	}
	if r.URL != "" {
		parts = append(parts, r.URL)
	}
	return strings.Join(parts, ", ")
}
