package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andrew/tutor-chat/pkg/models"
	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaClient_Chat(t *testing.T) {
	var got api.ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama3.1:8b","message":{"role":"assistant","content":"Sure, what language?"},"done":true}`))
	}))
	defer srv.Close()

	client, err := NewOllamaClient(DefaultModel, srv.URL, time.Second)
	require.NoError(t, err)

	reply, err := client.Chat(context.Background(), []models.WireTurn{
		{Role: models.RoleUser, Content: "Help me with coding"},
	})

	require.NoError(t, err)
	assert.Equal(t, "Sure, what language?", reply)
	assert.Equal(t, DefaultModel, got.Model)
	require.NotNil(t, got.Stream)
	assert.False(t, *got.Stream)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "Help me with coding", got.Messages[0].Content)
}

func TestOllamaClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client, err := NewOllamaClient(DefaultModel, srv.URL, time.Second)
	require.NoError(t, err)

	_, err = client.Chat(context.Background(), []models.WireTurn{{Role: models.RoleUser, Content: "hi"}})

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
}

func TestOllamaClient_MalformedBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `not json`},
		{"wrong message type", `{"message":"oops","done":true}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client, err := NewOllamaClient(DefaultModel, srv.URL, time.Second)
			require.NoError(t, err)

			_, err = client.Chat(context.Background(), []models.WireTurn{{Role: models.RoleUser, Content: "hi"}})

			var decodeErr *DecodeError
			require.ErrorAs(t, err, &decodeErr)
			var transportErr *TransportError
			assert.False(t, errors.As(err, &transportErr))
		})
	}
}

func TestOllamaClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	client, err := NewOllamaClient(DefaultModel, addr, time.Second)
	require.NoError(t, err)

	_, err = client.Chat(context.Background(), []models.WireTurn{{Role: models.RoleUser, Content: "hi"}})

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
}
