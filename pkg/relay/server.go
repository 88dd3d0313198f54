// Package relay implements the HTTP backend the chat client talks to. It
// accepts the full conversation history on every request and forwards it to
// an Ollama server, which keeps no state between turns.
package relay

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/andrew/tutor-chat/pkg/llm"
	"github.com/gin-gonic/gin"
	"github.com/ollama/ollama/api"
	"go.uber.org/zap"
)

// Upstream is the part of the Ollama API the relay needs; *api.Client satisfies it
type Upstream interface {
	Chat(ctx context.Context, req *api.ChatRequest, fn api.ChatResponseFunc) error
	List(ctx context.Context) (*api.ListResponse, error)
}

// Message is one turn of the history in a /chat request
type Message struct {
	Role    string `json:"role" binding:"required"`
	Content string `json:"content"`
}

// ChatRequest is the /chat request body
type ChatRequest struct {
	Messages []Message `json:"messages" binding:"required,dive"`
	Model    string    `json:"model"`
	// Subject picks an entry of Config.SystemPrompts
	Subject string `json:"subject"`
}

// ChatResponse is the /chat response body
type ChatResponse struct {
	Message string `json:"message"`
	Model   string `json:"model"`
}

// Config holds relay settings
type Config struct {
	Addr         string
	DefaultModel string
	// SystemPrompts maps a subject to the system prompt prepended to histories
	// that do not start with a system turn. Unknown or empty subjects use the
	// DefaultSubject entry; with no entry nothing is prepended.
	SystemPrompts map[string]string
}

// Server serves the chat relay API
type Server struct {
	cfg      Config
	upstream Upstream
	logger   *zap.Logger
	engine   *gin.Engine
}

// NewServer builds the gin engine and routes
func NewServer(cfg Config, upstream Upstream, logger *zap.Logger) *Server {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = llm.DefaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger), allowAllOrigins())

	s := &Server{
		cfg:      cfg,
		upstream: upstream,
		logger:   logger,
		engine:   engine,
	}

	engine.POST("/chat", s.handleChat)
	engine.GET("/health", s.handleHealth)
	engine.GET("/models", s.handleModels)

	return s
}

// Handler exposes the routes for use with an http.Server or httptest
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting chat relay", zap.String("addr", s.cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info("shutting down chat relay")
	return server.Shutdown(shutdownCtx)
}

func (s *Server) handleChat(c *gin.Context) {
	ctx := c.Request.Context()

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Warn("invalid chat request body", zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	model := req.Model
	if model == "" {
		model = s.cfg.DefaultModel
	}

	messages := make([]api.Message, 0, len(req.Messages)+1)
	prompt := s.systemPrompt(req.Subject)
	if prompt != "" && (len(req.Messages) == 0 || req.Messages[0].Role != "system") {
		messages = append(messages, api.Message{Role: "system", Content: prompt})
	}
	for _, m := range req.Messages {
		messages = append(messages, api.Message{Role: m.Role, Content: m.Content})
	}

	stream := false
	var reply strings.Builder
	err := s.upstream.Chat(ctx, &api.ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   &stream,
	}, func(resp api.ChatResponse) error {
		reply.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		s.logger.Error("upstream chat failed", zap.Error(err), zap.String("model", model))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	c.JSON(http.StatusOK, ChatResponse{
		Message: reply.String(),
		Model:   model,
	})
}

func (s *Server) systemPrompt(subject string) string {
	if prompt, ok := s.cfg.SystemPrompts[subject]; ok && subject != "" {
		return prompt
	}
	return s.cfg.SystemPrompts[DefaultSubject]
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) handleModels(c *gin.Context) {
	models, err := s.upstream.List(c.Request.Context())
	if err != nil {
		s.logger.Error("upstream list failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": models})
}
