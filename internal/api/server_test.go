package api

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deckhand-ai/deckhand/internal/agent"
	"github.com/deckhand-ai/deckhand/internal/core"
	"github.com/deckhand-ai/deckhand/internal/events"
	"github.com/deckhand-ai/deckhand/internal/llm"
	"github.com/deckhand-ai/deckhand/internal/logging"
	"github.com/deckhand-ai/deckhand/internal/orchestrator"
	"github.com/deckhand-ai/deckhand/internal/router"
	"github.com/deckhand-ai/deckhand/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	registry := router.NewRegistry(nil, nil, logging.NewNop())
	require.NoError(t, registry.Register(core.ModelDescriptor{
		Name: "sim-default", Kind: core.BackendSimulated,
		Capabilities: []string{core.CapabilityGeneral},
		Speed:        core.SpeedFast, Quality: core.QualityMedium,
	}))
	policies := router.NewPolicyTable()

	deps := agent.Deps{
		Router:  router.New(registry, policies, logging.NewNop()),
		Callers: llm.NewFactory(nil, logging.NewNop()),
		Logger:  logging.NewNop(),
		Retry:   agent.NewRetryPolicy(agent.WithMaxAttempts(2), agent.WithBaseDelay(time.Millisecond), agent.WithJitter(0)),
	}
	pipeline, err := orchestrator.New(agent.NewDefaultRegistry(), deps)
	require.NoError(t, err)

	dir := t.TempDir()
	artifacts, err := store.NewArtifactStore(filepath.Join(dir, "decks"), nil)
	require.NoError(t, err)
	history, err := store.NewHistoryStore(filepath.Join(dir, "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { history.Close() })

	bus := events.New(256)
	t.Cleanup(bus.Close)

	return NewServer(pipeline, registry, policies, artifacts, history, bus)
}

func generateDeck(t *testing.T, s *Server, body string) map[string]any {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/decks", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var deck map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &deck))
	return deck
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGenerateDeck(t *testing.T) {
	s := newTestServer(t)
	deck := generateDeck(t, s, `{"topic":"Kubernetes Operators","slide_count":8}`)

	assert.NotEmpty(t, deck["id"])
	assert.NotEmpty(t, deck["title"])
	slides := deck["slides"].([]any)
	assert.GreaterOrEqual(t, len(slides), 8)
}

func TestGenerateDeck_InvalidBody(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/decks", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateDeck_ValidationError(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/decks", strings.NewReader(`{"topic":""}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, core.CodeEmptyTopic, resp.Code)
}

func TestGetDeck_RoundTrip(t *testing.T) {
	s := newTestServer(t)
	deck := generateDeck(t, s, `{"topic":"Zero Trust Networking","slide_count":6}`)
	id := deck["id"].(string)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/decks/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, deck["title"], got["title"])
}

func TestGetDeck_NotFound(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/decks/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListDecks(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/decks", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))

	generateDeck(t, s, `{"topic":"Observability Pipelines","slide_count":6}`)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/decks?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "Observability Pipelines", entries[0]["title"])
}

func TestDeleteDeck(t *testing.T) {
	s := newTestServer(t)
	deck := generateDeck(t, s, `{"topic":"GitOps Workflows","slide_count":6}`)
	id := deck["id"].(string)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/decks/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/decks/"+id, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListModels(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/models", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var models []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &models))
	require.Len(t, models, 1)
	assert.Equal(t, "sim-default", models[0]["name"])
	assert.Equal(t, true, models[0]["available"])
}

func TestListPolicies(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/policies", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "balanced")
	assert.Contains(t, rec.Body.String(), "local-only")
}

func TestSSE_InitialEvent(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/events")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadBytes('\n')
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(line, []byte("event: connected")), string(line))
}
