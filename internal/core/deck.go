package core

import (
	"strings"
	"time"
)

// BlockKind discriminates slide block variants. The core treats a slide as an
// opaque ordered list of typed blocks it can count and filter; rendering is
// the (external) UI's concern.
type BlockKind string

const (
	BlockHeading BlockKind = "heading"
	BlockText    BlockKind = "text"
	BlockBullets BlockKind = "bullets"
	BlockQuote   BlockKind = "quote"
	BlockImage   BlockKind = "image"
	BlockCode    BlockKind = "code"
)

// Block is one content unit on a slide. Which fields are meaningful depends
// on Kind: Text for heading/text/quote/code, Items for bullets, Ref for image.
type Block struct {
	Kind  BlockKind `json:"kind"`
	Text  string    `json:"text,omitempty"`
	Items []string  `json:"items,omitempty"`
	Level int       `json:"level,omitempty"`
	Ref   string    `json:"ref,omitempty"`
}

// Slide is an ordered list of blocks plus presentation metadata.
type Slide struct {
	ID        string  `json:"id"`
	SectionID string  `json:"section_id,omitempty"`
	Order     int     `json:"order"`
	Blocks    []Block `json:"blocks"`
	Notes     string  `json:"notes,omitempty"`
	Fallback  bool    `json:"fallback,omitempty"`
}

// Heading returns the text of the slide's first heading block.
func (s *Slide) Heading() string {
	for _, b := range s.Blocks {
		if b.Kind == BlockHeading {
			return b.Text
		}
	}
	return ""
}

// HasHeading reports whether the slide contains a heading block.
func (s *Slide) HasHeading() bool {
	return s.Heading() != ""
}

// BulletCount returns the total bullet items across the slide.
func (s *Slide) BulletCount() int {
	n := 0
	for _, b := range s.Blocks {
		if b.Kind == BlockBullets {
			n += len(b.Items)
		}
	}
	return n
}

// PlainText joins all textual content for analysis passes.
func (s *Slide) PlainText() string {
	var sb strings.Builder
	for _, b := range s.Blocks {
		if b.Text != "" {
			sb.WriteString(b.Text)
			sb.WriteString("\n")
		}
		for _, item := range b.Items {
			sb.WriteString(item)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// Reference is a cited source collected during research.
type Reference struct {
	Title  string `json:"title"`
	URL    string `json:"url,omitempty"`
	Source string `json:"source,omitempty"`
}

// DeckMetadata reports how a deck was produced.
type DeckMetadata struct {
	GeneratedAt    time.Time          `json:"generated_at"`
	ProcessingTime time.Duration      `json:"processing_time"`
	Policy         string             `json:"policy"`
	ModelsUsed     map[string]string  `json:"models_used,omitempty"` // role -> model name
	QualityScores  map[string]float64 `json:"quality_scores,omitempty"`
	OverallScore   float64            `json:"overall_score"`
	DegradedStages []string           `json:"degraded_stages,omitempty"`
}

// Deck is the assembled output of a generation request.
type Deck struct {
	ID         string       `json:"id"`
	Topic      string       `json:"topic"`
	Title      string       `json:"title"`
	Audience   string       `json:"audience,omitempty"`
	Tone       string       `json:"tone,omitempty"`
	Theme      string       `json:"theme,omitempty"`
	Slides     []*Slide     `json:"slides"`
	References []Reference  `json:"references,omitempty"`
	Summary    string       `json:"summary,omitempty"` // email-style executive summary text
	Metadata   DeckMetadata `json:"metadata"`
}

// Reindex assigns sequential order indices across the slide list.
func (d *Deck) Reindex() {
	for i, s := range d.Slides {
		s.Order = i
	}
}

// SlideCount returns the number of slides in the deck.
func (d *Deck) SlideCount() int {
	return len(d.Slides)
}
