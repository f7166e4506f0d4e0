package events

import "time"

// Event type constants for deck lifecycle events.
const (
	TypeDeckStarted   = "deck_started"
	TypeDeckCompleted = "deck_completed"
	TypeDeckFailed    = "deck_failed"
	TypeDeckCancelled = "deck_cancelled"
)

// DeckStartedEvent is emitted when a generation run begins.
type DeckStartedEvent struct {
	BaseEvent
	Topic      string `json:"topic"`
	SlideCount int    `json:"slide_count"`
	Policy     string `json:"policy"`
}

// NewDeckStartedEvent creates a deck started event.
func NewDeckStartedEvent(deckID, topic string, slideCount int, policy string) DeckStartedEvent {
	return DeckStartedEvent{
		BaseEvent:  NewBaseEvent(TypeDeckStarted, deckID),
		Topic:      topic,
		SlideCount: slideCount,
		Policy:     policy,
	}
}

// DeckCompletedEvent is emitted when a run finishes with a deck.
type DeckCompletedEvent struct {
	BaseEvent
	SlideCount     int           `json:"slide_count"`
	OverallScore   float64       `json:"overall_score"`
	DegradedStages []string      `json:"degraded_stages,omitempty"`
	Duration       time.Duration `json:"duration"`
}

// NewDeckCompletedEvent creates a deck completed event.
func NewDeckCompletedEvent(deckID string, slideCount int, overallScore float64, degraded []string, duration time.Duration) DeckCompletedEvent {
	return DeckCompletedEvent{
		BaseEvent:      NewBaseEvent(TypeDeckCompleted, deckID),
		SlideCount:     slideCount,
		OverallScore:   overallScore,
		DegradedStages: degraded,
		Duration:       duration,
	}
}

// DeckFailedEvent is emitted when a run aborts without a deck.
type DeckFailedEvent struct {
	BaseEvent
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// NewDeckFailedEvent creates a deck failed event.
func NewDeckFailedEvent(deckID, stage string, err error) DeckFailedEvent {
	errStr := ""
	if err != nil {
		errStr = err.Error()
	}
	return DeckFailedEvent{
		BaseEvent: NewBaseEvent(TypeDeckFailed, deckID),
		Stage:     stage,
		Error:     errStr,
	}
}

// DeckCancelledEvent is emitted when a run stops on caller cancellation.
type DeckCancelledEvent struct {
	BaseEvent
	Stage string `json:"stage"`
}

// NewDeckCancelledEvent creates a deck cancelled event.
func NewDeckCancelledEvent(deckID, stage string) DeckCancelledEvent {
	return DeckCancelledEvent{
		BaseEvent: NewBaseEvent(TypeDeckCancelled, deckID),
		Stage:     stage,
	}
}
