package main

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/andrew/tutor-chat/pkg/config"
	"github.com/andrew/tutor-chat/pkg/logging"
	"github.com/andrew/tutor-chat/pkg/relay"
	"github.com/ollama/ollama/api"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	configPath   string
	addr         string
	ollamaHost   string
	modelName    string
	systemPrompt string
	tutorPrompts bool
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "chat-relay",
	Short: "Serve the stateless chat API in front of an Ollama server",
	Long: `chat-relay accepts POST /chat with the whole conversation history and
forwards it to Ollama. It also serves GET /health and GET /models.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&configPath, "config", "", "Path to the YAML config (default "+config.DefaultPath+" if present)")
	flags.StringVar(&addr, "addr", "", "Listen address (default from config, 0.0.0.0:8000)")
	flags.StringVar(&ollamaHost, "ollama-host", "", "Ollama server address (default $OLLAMA_HOST or http://localhost:11434)")
	flags.StringVar(&modelName, "model", "", "Model used when a request does not name one")
	flags.StringVar(&systemPrompt, "system", "", "Default system prompt prepended to every conversation")
	flags.BoolVar(&tutorPrompts, "tutor-prompts", false, "Use the built-in per-subject tutoring prompts (math, history, science, default)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Relay.Addr = addr
	}
	if ollamaHost != "" {
		cfg.OllamaHost = ollamaHost
	}
	if modelName != "" {
		cfg.Model = modelName
	}
	prompts := systemPrompts(cfg.Relay.SystemPrompts)
	if err := cfg.ValidateRelay(); err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{Verbose: verbose})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	upstream, err := newOllamaUpstream(cfg.OllamaHost)
	if err != nil {
		return err
	}

	server := relay.NewServer(relay.Config{
		Addr:          cfg.Relay.Addr,
		DefaultModel:  cfg.Model,
		SystemPrompts: prompts,
	}, upstream, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(ctx)
	})
	g.Go(func() error {
		probeOllama(ctx, upstream, cfg.OllamaHost, logger)
		return nil
	})

	return g.Wait()
}

// systemPrompts layers the built-in prompts (with --tutor-prompts), then the
// configured ones, then --system as the default entry
func systemPrompts(configured map[string]string) map[string]string {
	prompts := make(map[string]string)
	if tutorPrompts {
		maps.Copy(prompts, relay.TutorPrompts())
	}
	maps.Copy(prompts, configured)
	if systemPrompt != "" {
		prompts[relay.DefaultSubject] = systemPrompt
	}
	return prompts
}

func newOllamaUpstream(host string) (*api.Client, error) {
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	ollamaURL, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	return api.NewClient(ollamaURL, http.DefaultClient), nil
}

// probeOllama warns at startup when the upstream is not reachable; the relay
// keeps serving and reports the failure per request.
func probeOllama(ctx context.Context, upstream *api.Client, host string, logger *zap.Logger) {
	if err := upstream.Heartbeat(ctx); err != nil {
		logger.Warn("ollama server might not be running", zap.String("host", host), zap.Error(err))
		return
	}
	logger.Info("connected to ollama", zap.String("host", host))
}
