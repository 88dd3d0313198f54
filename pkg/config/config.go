package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/andrew/tutor-chat/pkg/llm"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no --config flag is given; it may be absent
const DefaultPath = "tutor-chat.yaml"

// Environment variables that override the file
const (
	EnvBaseURL    = "TUTOR_CHAT_BASE_URL"
	EnvTarget     = "TUTOR_CHAT_TARGET"
	EnvModel      = "TUTOR_CHAT_MODEL"
	EnvTransport  = "TUTOR_CHAT_TRANSPORT"
	EnvOllamaHost = "OLLAMA_HOST"
	EnvRelayAddr  = "TUTOR_CHAT_RELAY_ADDR"
)

// DefaultTarget is used when no target is configured
const DefaultTarget = "default"

// Config holds the chat client and relay settings
type Config struct {
	// Target selects an entry of Targets as the backend address
	Target string `yaml:"target"`
	// BaseURL, when set, wins over Target
	BaseURL   string            `yaml:"base_url"`
	Targets   map[string]string `yaml:"targets"`
	Model     string            `yaml:"model"`
	Transport llm.Transport     `yaml:"transport"`
	Timeout   time.Duration     `yaml:"timeout"`

	OllamaHost string      `yaml:"ollama_host"`
	Relay      RelayConfig `yaml:"relay"`
}

// RelayConfig holds settings for the relay server
type RelayConfig struct {
	Addr string `yaml:"addr"`
	// SystemPrompts maps a subject to its system prompt; "default" is the fallback
	SystemPrompts map[string]string `yaml:"system_prompts"`
}

// Default returns the built-in configuration. The targets mirror where a
// relay on the developer machine is reachable from each device kind.
func Default() *Config {
	return &Config{
		Target: DefaultTarget,
		Targets: map[string]string{
			"ios":     "http://localhost:8000",
			"android": "http://10.0.2.2:8000",
			"default": "http://10.0.0.23:8000",
		},
		Model:      llm.DefaultModel,
		Transport:  llm.TransportBackend,
		Timeout:    llm.DefaultTimeout,
		OllamaHost: llm.DefaultOllamaHost,
		Relay: RelayConfig{
			Addr: "0.0.0.0:8000",
		},
	}
}

// Load reads the YAML file at path (if any), then .env, then environment
// overrides. A missing file is only an error when it was asked for explicitly.
// The result is not validated: callers apply their flags first, then call
// Validate or ValidateRelay.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	if err := cfg.loadFile(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// .env is optional
	_ = godotenv.Load()

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	c.merge(&file)
	return nil
}

// merge copies the fields set in other over c
func (c *Config) merge(other *Config) {
	if other.Target != "" {
		c.Target = other.Target
	}
	if other.BaseURL != "" {
		c.BaseURL = other.BaseURL
	}
	for name, addr := range other.Targets {
		c.Targets[name] = addr
	}
	if other.Model != "" {
		c.Model = other.Model
	}
	if other.Transport != "" {
		c.Transport = other.Transport
	}
	if other.Timeout != 0 {
		c.Timeout = other.Timeout
	}
	if other.OllamaHost != "" {
		c.OllamaHost = other.OllamaHost
	}
	if other.Relay.Addr != "" {
		c.Relay.Addr = other.Relay.Addr
	}
	for subject, prompt := range other.Relay.SystemPrompts {
		if c.Relay.SystemPrompts == nil {
			c.Relay.SystemPrompts = make(map[string]string)
		}
		c.Relay.SystemPrompts[subject] = prompt
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(EnvTarget); v != "" {
		c.Target = v
	}
	if v := os.Getenv(EnvBaseURL); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv(EnvModel); v != "" {
		c.Model = v
	}
	if v := os.Getenv(EnvTransport); v != "" {
		c.Transport = llm.Transport(v)
	}
	if v := os.Getenv(EnvOllamaHost); v != "" {
		c.OllamaHost = v
	}
	if v := os.Getenv(EnvRelayAddr); v != "" {
		c.Relay.Addr = v
	}
}

// ResolveBaseURL returns the backend address: BaseURL if set, else the
// address of the selected target.
func (c *Config) ResolveBaseURL() (string, error) {
	if c.BaseURL != "" {
		return c.BaseURL, nil
	}
	addr, ok := c.Targets[c.Target]
	if !ok {
		return "", fmt.Errorf("unknown target %q (known: %s)", c.Target, strings.Join(c.TargetNames(), ", "))
	}
	return addr, nil
}

// TargetNames lists the configured targets, sorted
func (c *Config) TargetNames() []string {
	names := make([]string, 0, len(c.Targets))
	for name := range c.Targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ClientOptions builds the options for llm.NewClient
func (c *Config) ClientOptions() (llm.Options, error) {
	opts := llm.Options{
		Transport: c.Transport,
		Model:     c.Model,
		Timeout:   c.Timeout,
	}
	if c.Transport == llm.TransportOllama {
		opts.BaseURL = c.OllamaHost
		return opts, nil
	}

	baseURL, err := c.ResolveBaseURL()
	if err != nil {
		return llm.Options{}, err
	}
	opts.BaseURL = baseURL
	return opts, nil
}

// Validate checks that the chat client can be started with this configuration
func (c *Config) Validate() error {
	switch c.Transport {
	case llm.TransportBackend, llm.TransportOllama:
	default:
		return fmt.Errorf("invalid transport %q: want %q or %q", c.Transport, llm.TransportBackend, llm.TransportOllama)
	}
	if err := c.validateCommon(); err != nil {
		return err
	}

	if c.Transport == llm.TransportBackend {
		baseURL, err := c.ResolveBaseURL()
		if err != nil {
			return err
		}
		u, err := url.Parse(baseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid backend url %q", baseURL)
		}
	}
	return nil
}

// ValidateRelay checks only the fields chat-relay uses. Client settings such
// as the target or backend address are ignored.
func (c *Config) ValidateRelay() error {
	if err := c.validateCommon(); err != nil {
		return err
	}
	if c.Relay.Addr == "" {
		return errors.New("relay address must not be empty")
	}
	if c.OllamaHost == "" {
		return errors.New("ollama host must not be empty")
	}
	return nil
}

func (c *Config) validateCommon() error {
	if c.Model == "" {
		return errors.New("model must not be empty")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	return nil
}
