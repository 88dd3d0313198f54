package llm

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/andrew/tutor-chat/pkg/models"
)

// DefaultModel is the model identifier sent with every chat request
const DefaultModel = "llama3.1:8b"

// DefaultTimeout bounds a single exchange; generations on small hardware can be slow
const DefaultTimeout = 5 * time.Minute

// Client is the interface for one request/response exchange with a chat backend
type Client interface {
	// Chat sends the full history and returns the assistant reply text
	Chat(ctx context.Context, history []models.WireTurn) (string, error)
	Close() error
}

// Transport selects which Client implementation talks to the backend
type Transport string

const (
	// TransportBackend speaks the relay's /chat contract
	TransportBackend Transport = "backend"
	// TransportOllama talks to an Ollama server directly
	TransportOllama Transport = "ollama"
)

// Options holds what is needed to build a Client
type Options struct {
	Transport Transport
	BaseURL   string
	Model     string
	Timeout   time.Duration
}

// NewClient creates a client for the configured transport, defaulting to the relay backend
func NewClient(opts Options) (Client, error) {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}

	switch opts.Transport {
	case TransportOllama:
		baseURL := opts.BaseURL
		if baseURL == "" {
			baseURL = os.Getenv("OLLAMA_HOST")
		}
		client, err := NewOllamaClient(opts.Model, baseURL, opts.Timeout)
		if err != nil {
			return nil, err
		}
		return client, nil
	case TransportBackend, "":
		if _, err := url.ParseRequestURI(opts.BaseURL); err != nil {
			return nil, fmt.Errorf("invalid backend url %q: %w", opts.BaseURL, err)
		}
		return NewBackendClient(opts.BaseURL, opts.Model, opts.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", opts.Transport)
	}
}
