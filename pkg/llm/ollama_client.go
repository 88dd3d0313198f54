package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andrew/tutor-chat/pkg/models"
	"github.com/ollama/ollama/api"
)

// DefaultOllamaHost is used when neither the config nor OLLAMA_HOST name a server
const DefaultOllamaHost = "http://localhost:11434"

// OllamaClient sends chat turns straight to an Ollama server, skipping the relay
type OllamaClient struct {
	client    *api.Client
	baseURL   string
	modelName string
}

// NewOllamaClient creates a new client for interacting with an Ollama server
func NewOllamaClient(modelName string, baseURL string, timeout time.Duration) (*OllamaClient, error) {
	if baseURL == "" {
		baseURL = DefaultOllamaHost
	}
	// OLLAMA_HOST is commonly given without a scheme
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}

	ollamaURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama url %q: %w", baseURL, err)
	}

	httpClient := &http.Client{
		Timeout: timeout,
	}

	return &OllamaClient{
		client:    api.NewClient(ollamaURL, httpClient),
		baseURL:   baseURL,
		modelName: modelName,
	}, nil
}

// Chat processes a conversation and returns the reply
func (c *OllamaClient) Chat(ctx context.Context, history []models.WireTurn) (string, error) {
	messages := make([]api.Message, len(history))
	for i, turn := range history {
		messages[i] = api.Message{
			Role:    string(turn.Role),
			Content: turn.Content,
		}
	}

	stream := false
	req := &api.ChatRequest{
		Model:    c.modelName,
		Messages: messages,
		Stream:   &stream,
	}

	var reply strings.Builder
	var done bool
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		reply.WriteString(resp.Message.Content)
		done = done || resp.Done
		return nil
	})
	if err != nil {
		return "", translateOllamaError(c.baseURL, err)
	}
	if !done {
		return "", &DecodeError{Reason: "ollama response ended before completion"}
	}

	return reply.String(), nil
}

// Close is a no-op; api.Client holds no resources of its own
func (c *OllamaClient) Close() error {
	return nil
}

// translateOllamaError maps api.Client failures onto the package's error kinds.
// A body that is not the expected JSON is a DecodeError even on a 200.
func translateOllamaError(baseURL string, err error) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return &StatusError{StatusCode: statusErr.StatusCode, Body: statusErr.ErrorMessage}
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return &DecodeError{Reason: "malformed ollama response", Err: err}
	}
	return &TransportError{URL: baseURL, Err: err}
}
