// Package store persists generated decks: JSON artifacts on disk, written
// atomically, plus a SQLite history index for listing and lookup.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/deckhand-ai/deckhand/internal/core"
	"github.com/deckhand-ai/deckhand/internal/logging"
)

// ArtifactStore writes deck JSON files under a base directory. Writes go
// through a rename so a crash mid-write never leaves a torn artifact.
type ArtifactStore struct {
	dir    string
	logger *logging.Logger
}

// NewArtifactStore creates the store and its directory.
func NewArtifactStore(dir string, logger *logging.Logger) (*ArtifactStore, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating artifact directory: %w", err)
	}
	return &ArtifactStore{dir: dir, logger: logger}, nil
}

// Path returns where a deck's artifact lives.
func (s *ArtifactStore) Path(deckID string) string {
	return filepath.Join(s.dir, deckID+".json")
}

// Save writes the deck artifact atomically and returns its path.
func (s *ArtifactStore) Save(deck *core.Deck) (string, error) {
	if deck.ID == "" || strings.ContainsAny(deck.ID, `/\`) {
		return "", core.ErrValidation(core.CodeInvalidConfig, "deck ID unusable as a file name")
	}
	data, err := json.MarshalIndent(deck, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding deck: %w", err)
	}
	path := s.Path(deck.ID)
	if err := renameio.WriteFile(path, data, 0o640); err != nil {
		return "", fmt.Errorf("writing deck artifact: %w", err)
	}
	s.logger.Debug("deck artifact written", "deck_id", deck.ID, "path", path, "bytes", len(data))
	return path, nil
}

// Load reads a deck artifact back.
func (s *ArtifactStore) Load(deckID string) (*core.Deck, error) {
	data, err := os.ReadFile(s.Path(deckID))
	if err != nil {
		return nil, fmt.Errorf("reading deck artifact: %w", err)
	}
	var deck core.Deck
	if err := json.Unmarshal(data, &deck); err != nil {
		return nil, fmt.Errorf("decoding deck artifact: %w", err)
	}
	return &deck, nil
}

// Delete removes a deck artifact. Missing files are not an error.
func (s *ArtifactStore) Delete(deckID string) error {
	err := os.Remove(s.Path(deckID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
