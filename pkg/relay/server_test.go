package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andrew/tutor-chat/pkg/conversation"
	"github.com/andrew/tutor-chat/pkg/llm"
	"github.com/andrew/tutor-chat/pkg/models"
	"github.com/gin-gonic/gin"
	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeUpstream struct {
	lastChat *api.ChatRequest
	reply    string
	chatErr  error
	list     *api.ListResponse
	listErr  error
}

func (f *fakeUpstream) Chat(_ context.Context, req *api.ChatRequest, fn api.ChatResponseFunc) error {
	f.lastChat = req
	if f.chatErr != nil {
		return f.chatErr
	}
	return fn(api.ChatResponse{
		Model:   req.Model,
		Message: api.Message{Role: "assistant", Content: f.reply},
		Done:    true,
	})
}

func (f *fakeUpstream) List(context.Context) (*api.ListResponse, error) {
	return f.list, f.listErr
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestChat_ForwardsHistory(t *testing.T) {
	up := &fakeUpstream{reply: "Sure, what language?"}
	s := NewServer(Config{}, up, zaptest.NewLogger(t))

	rec := do(t, s, http.MethodPost, "/chat",
		`{"messages":[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"},{"role":"user","content":"Help me with coding"}]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Sure, what language?", resp.Message)
	assert.Equal(t, llm.DefaultModel, resp.Model)

	require.NotNil(t, up.lastChat)
	assert.Equal(t, llm.DefaultModel, up.lastChat.Model)
	require.Len(t, up.lastChat.Messages, 3)
	assert.Equal(t, "Help me with coding", up.lastChat.Messages[2].Content)
	require.NotNil(t, up.lastChat.Stream)
	assert.False(t, *up.lastChat.Stream)
}

func TestChat_UsesRequestedModel(t *testing.T) {
	up := &fakeUpstream{reply: "ok"}
	s := NewServer(Config{}, up, nil)

	rec := do(t, s, http.MethodPost, "/chat", `{"messages":[{"role":"user","content":"hi"}],"model":"mistral"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "mistral", up.lastChat.Model)
}

func TestChat_PrependsSystemPrompt(t *testing.T) {
	up := &fakeUpstream{reply: "ok"}
	s := NewServer(Config{SystemPrompts: map[string]string{DefaultSubject: "You are a tutor."}}, up, nil)

	rec := do(t, s, http.MethodPost, "/chat", `{"messages":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, up.lastChat.Messages, 2)
	assert.Equal(t, "system", up.lastChat.Messages[0].Role)

	rec = do(t, s, http.MethodPost, "/chat", `{"messages":[{"role":"system","content":"custom"},{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, up.lastChat.Messages, 2)
	assert.Equal(t, "custom", up.lastChat.Messages[0].Content)
}

func TestChat_SystemPromptBySubject(t *testing.T) {
	up := &fakeUpstream{reply: "ok"}
	s := NewServer(Config{SystemPrompts: TutorPrompts()}, up, nil)

	tests := []struct {
		subject string
		want    string
	}{
		{"math", TutorPrompts()["math"]},
		{"history", TutorPrompts()["history"]},
		{"", TutorPrompts()[DefaultSubject]},
		{"cooking", TutorPrompts()[DefaultSubject]},
	}
	for _, tt := range tests {
		body := `{"messages":[{"role":"user","content":"hi"}],"subject":"` + tt.subject + `"}`
		rec := do(t, s, http.MethodPost, "/chat", body)
		require.Equal(t, http.StatusOK, rec.Code, tt.subject)
		require.Len(t, up.lastChat.Messages, 2, tt.subject)
		assert.Equal(t, "system", up.lastChat.Messages[0].Role)
		assert.Equal(t, tt.want, up.lastChat.Messages[0].Content, tt.subject)
	}
}

func TestChat_NoSystemPromptWithoutDefault(t *testing.T) {
	up := &fakeUpstream{reply: "ok"}
	s := NewServer(Config{SystemPrompts: map[string]string{"math": "Guide, do not answer."}}, up, nil)

	rec := do(t, s, http.MethodPost, "/chat", `{"messages":[{"role":"user","content":"hi"}],"subject":"history"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, up.lastChat.Messages, 1)
	assert.Equal(t, "user", up.lastChat.Messages[0].Role)
}

func TestTutorPrompts_ReturnsCopy(t *testing.T) {
	prompts := TutorPrompts()
	for _, subject := range []string{"math", "history", "science", DefaultSubject} {
		assert.NotEmpty(t, prompts[subject], subject)
	}

	prompts[DefaultSubject] = "changed"
	assert.NotEqual(t, "changed", TutorPrompts()[DefaultSubject])
}

func TestChat_InvalidBody(t *testing.T) {
	s := NewServer(Config{}, &fakeUpstream{}, nil)

	for _, body := range []string{`not json`, `{}`, `{"messages":[{"content":"no role"}]}`} {
		rec := do(t, s, http.MethodPost, "/chat", body)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, body)
		assert.Contains(t, rec.Body.String(), "detail")
	}
}

func TestChat_UpstreamFailure(t *testing.T) {
	s := NewServer(Config{}, &fakeUpstream{chatErr: errors.New("model 'llama3.1:8b' not found")}, nil)

	rec := do(t, s, http.MethodPost, "/chat", `{"messages":[{"role":"user","content":"hi"}]}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "not found")
}

func TestHealth(t *testing.T) {
	s := NewServer(Config{}, &fakeUpstream{}, nil)

	rec := do(t, s, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestModels(t *testing.T) {
	up := &fakeUpstream{list: &api.ListResponse{Models: []api.ListModelResponse{{Name: "llama3.1:8b"}}}}
	s := NewServer(Config{}, up, nil)

	rec := do(t, s, http.MethodGet, "/models", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"llama3.1:8b"`)

	up.listErr = errors.New("connection refused")
	rec = do(t, s, http.MethodGet, "/models", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := NewServer(Config{}, &fakeUpstream{}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "http://10.0.2.2:8081")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://10.0.2.2:8081", rec.Header().Get("Access-Control-Allow-Origin"))
}

// A full turn from the client pipeline through the relay
func TestRelay_EndToEndWithDispatcher(t *testing.T) {
	up := &fakeUpstream{reply: "Sure, what language?"}
	srv := httptest.NewServer(NewServer(Config{}, up, nil).Handler())
	defer srv.Close()

	client := llm.NewBackendClient(srv.URL, llm.DefaultModel, time.Second)
	d := conversation.NewDispatcher(conversation.NewStore(), client)
	defer d.Close()

	_, err := d.Turn(context.Background(), "Help me with coding")
	require.NoError(t, err)

	snap := d.Store().Snapshot()
	assert.Equal(t, []models.WireTurn{
		{Role: models.RoleUser, Content: "Help me with coding"},
		{Role: models.RoleAssistant, Content: "Sure, what language?"},
	}, snap.History)
}
