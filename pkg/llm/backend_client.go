package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andrew/tutor-chat/pkg/models"
)

// maxErrorBody caps how much of a failed response is echoed into errors
const maxErrorBody = 512

// BackendClient talks to the chat relay over HTTP
type BackendClient struct {
	baseURL    string
	httpClient *http.Client
	modelName  string
}

// ChatRequest is the body POSTed to /chat
type ChatRequest struct {
	Messages []models.WireTurn `json:"messages"`
	Model    string            `json:"model"`
}

// ChatResponse is the body returned by /chat
type ChatResponse struct {
	Message *string `json:"message"`
	Model   string  `json:"model,omitempty"`
}

// NewBackendClient creates a client for a relay at baseURL
func NewBackendClient(baseURL, modelName string, timeout time.Duration) *BackendClient {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &BackendClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		modelName: modelName,
	}
}

// WithHTTPClient replaces the underlying HTTP client
func (c *BackendClient) WithHTTPClient(hc *http.Client) *BackendClient {
	c.httpClient = hc
	return c
}

// BaseURL returns the relay address this client sends to
func (c *BackendClient) BaseURL() string {
	return c.baseURL
}

// Chat sends the whole history and returns the reply text
func (c *BackendClient) Chat(ctx context.Context, history []models.WireTurn) (string, error) {
	if history == nil {
		history = []models.WireTurn{}
	}
	req := ChatRequest{
		Messages: history,
		Model:    c.modelName,
	}

	respBody, err := c.sendRequest(ctx, http.MethodPost, "/chat", req)
	if err != nil {
		return "", err
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", &DecodeError{Reason: "not a JSON object", Err: err}
	}
	if chatResp.Message == nil {
		return "", &DecodeError{Reason: `missing "message" field`}
	}

	return *chatResp.Message, nil
}

// Health calls GET /health and returns the reported status
func (c *BackendClient) Health(ctx context.Context) (string, error) {
	respBody, err := c.sendRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return "", err
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(respBody, &health); err != nil {
		return "", &DecodeError{Reason: "not a JSON object", Err: err}
	}
	return health.Status, nil
}

// ListModels calls GET /models and returns the names the relay knows about
func (c *BackendClient) ListModels(ctx context.Context) ([]string, error) {
	respBody, err := c.sendRequest(ctx, http.MethodGet, "/models", nil)
	if err != nil {
		return nil, err
	}

	var listResp struct {
		Models struct {
			Models []struct {
				Name string `json:"name"`
			} `json:"models"`
		} `json:"models"`
	}
	if err := json.Unmarshal(respBody, &listResp); err != nil {
		return nil, &DecodeError{Reason: "not a model list", Err: err}
	}

	names := make([]string, 0, len(listResp.Models.Models))
	for _, m := range listResp.Models.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// sendRequest performs one exchange and returns the body of a 2xx response
func (c *BackendClient) sendRequest(ctx context.Context, method, endpoint string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		reqBody, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(reqBody)
	}

	target := c.baseURL + endpoint
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(errBody)),
		}
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{URL: target, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	return respBody, nil
}

// Close cleans up any resources
func (c *BackendClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
