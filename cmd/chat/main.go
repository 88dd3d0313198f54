package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andrew/tutor-chat/pkg/config"
	"github.com/andrew/tutor-chat/pkg/conversation"
	"github.com/andrew/tutor-chat/pkg/llm"
	"github.com/andrew/tutor-chat/pkg/logging"
	"github.com/andrew/tutor-chat/pkg/tui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	target     string
	baseURL    string
	modelName  string
	transport  string
	verbose    bool
	useTUI     bool
	check      bool
	logFile    string
)

var rootCmd = &cobra.Command{
	Use:   "tutor-chat",
	Short: "Chat with a local language model through the tutor relay",
	Long: `tutor-chat keeps one in-memory conversation and replays the whole history
to the backend on every turn. Failed turns are shown in the timeline but are
never sent back to the model.

Run without flags for the line-oriented chat, or with --tui for the full-screen view.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&configPath, "config", "", "Path to the YAML config (default "+config.DefaultPath+" if present)")
	flags.StringVar(&target, "target", "", "Deployment target whose backend address to use (ios, android, default, ...)")
	flags.StringVar(&baseURL, "base-url", "", "Backend address; overrides --target")
	flags.StringVar(&modelName, "model", "", "Model name sent with every request")
	flags.StringVar(&transport, "transport", "", "backend (the relay) or ollama (talk to Ollama directly)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	flags.BoolVar(&useTUI, "tui", false, "Use the full-screen interface")
	flags.BoolVar(&check, "check", false, "Check the backend health and list its models before chatting")
	flags.StringVar(&logFile, "log-file", "", "Write logs to this file instead of stderr")
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
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Keep log lines off the full-screen UI
	if useTUI && logFile == "" {
		logFile = "tutor-chat.log"
	}
	logger, err := logging.New(logging.Options{Verbose: verbose, File: logFile})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	opts, err := cfg.ClientOptions()
	if err != nil {
		return err
	}
	logger.Info("starting chat",
		zap.String("transport", string(opts.Transport)),
		zap.String("base_url", opts.BaseURL),
		zap.String("model", opts.Model))

	client, err := llm.NewClient(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if check {
		if err := checkBackend(ctx, client); err != nil {
			return err
		}
	}

	dispatcher := conversation.NewDispatcher(conversation.NewStore(), client,
		conversation.WithLogger(logger))
	defer dispatcher.Close()

	if useTUI {
		return tui.Run(dispatcher)
	}

	repl := newREPL(dispatcher, os.Stdin, os.Stdout)
	repl.model = opts.Model
	return repl.Run(ctx)
}

func applyFlags(cfg *config.Config) {
	if target != "" {
		cfg.Target = target
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if modelName != "" {
		cfg.Model = modelName
	}
	if transport != "" {
		cfg.Transport = llm.Transport(transport)
	}
}

// checkBackend verifies the relay answers before the first turn
func checkBackend(ctx context.Context, client llm.Client) error {
	backend, ok := client.(*llm.BackendClient)
	if !ok {
		fmt.Println("Skipping health check: only the relay backend exposes /health")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	status, err := backend.Health(ctx)
	if err != nil {
		return fmt.Errorf("backend at %s is not reachable: %w", backend.BaseURL(), err)
	}
	fmt.Printf("Backend %s: %s\n", backend.BaseURL(), status)

	names, err := backend.ListModels(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not list models: %v\n", err)
		return nil
	}
	fmt.Printf("Models: %v\n", names)
	return nil
}
