package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/deckhand-ai/deckhand/internal/core"
)

//go:embed migrations/001_initial_schema.sql
var migrationV1 string

// HistoryEntry is one row of generation history.
type HistoryEntry struct {
	DeckID         string        `json:"deck_id"`
	Topic          string        `json:"topic"`
	Title          string        `json:"title"`
	Audience       string        `json:"audience,omitempty"`
	Policy         string        `json:"policy"`
	SlideCount     int           `json:"slide_count"`
	OverallScore   float64       `json:"overall_score"`
	DegradedStages []string      `json:"degraded_stages,omitempty"`
	Duration       time.Duration `json:"duration"`
	ArtifactPath   string        `json:"artifact_path"`
	CreatedAt      time.Time     `json:"created_at"`
}

// HistoryStore indexes generated decks in SQLite.
type HistoryStore struct {
	db *sql.DB
}

// NewHistoryStore opens (or creates) the history database and applies
// migrations. WAL mode keeps readers unblocked while a generation records.
func NewHistoryStore(dbPath string) (*HistoryStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	s := &HistoryStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *HistoryStore) Close() error {
	return s.db.Close()
}

func (s *HistoryStore) migrate() error {
	var version int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		version = 0
	}
	if version < 1 {
		if _, err := s.db.Exec(migrationV1); err != nil {
			return fmt.Errorf("applying migration v1: %w", err)
		}
	}
	return nil
}

// Record indexes a completed deck.
func (s *HistoryStore) Record(ctx context.Context, deck *core.Deck, artifactPath string) error {
	md := deck.Metadata
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO decks (id, topic, title, audience, policy, slide_count, overall_score, degraded_stages, duration_ms, artifact_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			slide_count = excluded.slide_count,
			overall_score = excluded.overall_score,
			degraded_stages = excluded.degraded_stages,
			duration_ms = excluded.duration_ms,
			artifact_path = excluded.artifact_path`,
		deck.ID, deck.Topic, deck.Title, deck.Audience, md.Policy,
		deck.SlideCount(), md.OverallScore, strings.Join(md.DegradedStages, ","),
		md.ProcessingTime.Milliseconds(), artifactPath,
		md.GeneratedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("recording deck: %w", err)
	}
	return nil
}

// Get returns one history entry.
func (s *HistoryStore) Get(ctx context.Context, deckID string) (*HistoryEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, topic, title, audience, policy, slide_count, overall_score, degraded_stages, duration_ms, artifact_path, created_at
		FROM decks WHERE id = ?`, deckID)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrState(core.CodeInvalidState, "no history for deck: "+deckID)
	}
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	return entry, nil
}

// List returns the most recent entries, newest first.
func (s *HistoryStore) List(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, topic, title, audience, policy, slide_count, overall_score, degraded_stages, duration_ms, artifact_path, created_at
		FROM decks ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		out = append(out, *entry)
	}
	return out, rows.Err()
}

// Delete removes a history entry.
func (s *HistoryStore) Delete(ctx context.Context, deckID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM decks WHERE id = ?", deckID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*HistoryEntry, error) {
	var e HistoryEntry
	var degraded, createdAt string
	var durationMS int64
	err := row.Scan(&e.DeckID, &e.Topic, &e.Title, &e.Audience, &e.Policy,
		&e.SlideCount, &e.OverallScore, &degraded, &durationMS, &e.ArtifactPath, &createdAt)
	if err != nil {
		return nil, err
	}
	if degraded != "" {
		e.DegradedStages = strings.Split(degraded, ",")
	}
	e.Duration = time.Duration(durationMS) * time.Millisecond
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		e.CreatedAt = t
	}
	return &e, nil
}
