package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/deckhand-ai/deckhand/internal/core"
	"github.com/deckhand-ai/deckhand/internal/logging"
)

const defaultCallTimeout = 120 * time.Second

func lookupEnv(key string) (string, bool) {
	return os.LookupEnv(key)
}

// HTTPCaller talks to OpenAI-compatible chat completion endpoints. Both
// cloud providers and local runtimes (ollama, llama.cpp server) expose this
// shape.
type HTTPCaller struct {
	model  core.ModelDescriptor
	creds  CredentialSource
	client *http.Client
	logger *logging.Logger
}

// NewHTTPCaller creates a caller bound to one model endpoint.
func NewHTTPCaller(model core.ModelDescriptor, creds CredentialSource, logger *logging.Logger) *HTTPCaller {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &HTTPCaller{
		model: model,
		creds: creds,
		// Per-call deadlines come from the context; the client itself
		// stays unbounded.
		client: &http.Client{},
		logger: logger.WithModel(model.Name),
	}
}

// Model returns the bound descriptor.
func (c *HTTPCaller) Model() core.ModelDescriptor { return c.model }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Call posts the prompt and returns the first choice's content.
func (c *HTTPCaller) Call(ctx context.Context, prompt string, opts CallOptions) (string, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.model.MaxTokens
	}
	temperature := opts.Temperature
	if temperature == 0 {
		temperature = c.model.Temperature
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.model.Name,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", core.ErrExecution("request_encode", err.Error())
	}

	url := strings.TrimRight(c.model.Endpoint, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", core.ErrExecution("request_build", err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	if c.model.Kind == core.BackendCloud {
		key, ok := c.creds.Lookup(c.model.APIKeyEnv)
		if !ok || key == "" {
			return "", core.ErrModelUnavailable(c.model.Name,
				fmt.Sprintf("credential %s not set", c.model.APIKeyEnv))
		}
		req.Header.Set("Authorization", "Bearer "+key)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return "", c.mapTransportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", c.mapTransportError(err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", c.mapStatusError(resp.StatusCode, respBody)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", core.ErrMalformedResponse(c.model.Name, err)
	}
	if parsed.Error != nil {
		return "", core.ErrExecution("provider_error", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", core.ErrMalformedResponse(c.model.Name, errors.New("response has no choices"))
	}

	c.logger.Debug("model call completed",
		"duration", time.Since(start),
		"prompt_bytes", len(prompt))

	return parsed.Choices[0].Message.Content, nil
}

func (c *HTTPCaller) mapTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return core.ErrModelTimeout(c.model.Name, "call deadline exceeded")
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return core.ErrModelUnavailable(c.model.Name, err.Error())
}

func (c *HTTPCaller) mapStatusError(status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 300 {
		msg = msg[:300]
	}
	switch {
	case status == http.StatusTooManyRequests:
		return core.ErrRateLimit(fmt.Sprintf("model %s: %s", c.model.Name, msg))
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return core.ErrModelUnavailable(c.model.Name, fmt.Sprintf("auth rejected (%d)", status))
	case status >= 500:
		return core.ErrModelUnavailable(c.model.Name, fmt.Sprintf("server error (%d): %s", status, msg))
	default:
		return core.ErrExecution("http_status", fmt.Sprintf("model %s: unexpected status %d: %s", c.model.Name, status, msg))
	}
}
