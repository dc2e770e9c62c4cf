package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the engine configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	LLM        LLMConfig        `yaml:"llm"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Storage    StorageConfig    `yaml:"storage"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Agent      AgentConfig      `yaml:"agent"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// LLMConfig selects and configures the Decision Maker provider.
type LLMConfig struct {
	// Provider is one of "ollama", "openai", "anthropic".
	Provider string `yaml:"provider"`

	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float32       `yaml:"temperature"`
	TopP        float32       `yaml:"top_p"`
	Timeout     time.Duration `yaml:"timeout"`
}

// EmbeddingsConfig configures query/document embedding generation.
type EmbeddingsConfig struct {
	// Provider is "local" (deterministic hash projection, no network)
	// or "openai".
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	Dimension int    `yaml:"dimension"`
}

// StorageConfig locates the backing stores.
type StorageConfig struct {
	// SQLitePath is the database file; ":memory:" for ephemeral runs.
	SQLitePath string `yaml:"sqlite_path"`

	// BleveDir holds the keyword index; empty keeps it in memory and
	// rebuilds it from the catalog on every start.
	BleveDir string `yaml:"bleve_dir"`
}

// CatalogConfig controls lineage catalog ingestion.
type CatalogConfig struct {
	// Seed loads the built-in sample lineage at startup.
	Seed bool `yaml:"seed"`

	// Dir is an optional directory of catalog YAML files.
	Dir string `yaml:"dir"`

	// Watch re-ingests catalog files when they change on disk.
	Watch bool `yaml:"watch"`
}

// AgentConfig bounds the investigation loop.
type AgentConfig struct {
	MaxSteps        int           `yaml:"max_steps"`
	MaxTools        int           `yaml:"max_tools"`
	MaxTransitions  int           `yaml:"max_transitions"`
	DecisionTimeout time.Duration `yaml:"decision_timeout"`
	ToolTimeout     time.Duration `yaml:"tool_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MetricsConfig toggles the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.setDefaults()

	return &cfg, nil
}

// DefaultConfig returns a configuration that runs with no external
// services: local embeddings, in-memory stores, the sample catalog and
// a local Ollama decision maker.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.LLM.Provider {
	case "ollama", "openai", "anthropic":
	default:
		return fmt.Errorf("unknown llm provider: %q", c.LLM.Provider)
	}

	switch c.Embeddings.Provider {
	case "local", "openai":
	default:
		return fmt.Errorf("unknown embeddings provider: %q", c.Embeddings.Provider)
	}

	// Remote providers cannot run without credentials.
	if c.LLM.Provider != "ollama" && c.LLM.APIKey == "" {
		return fmt.Errorf("llm provider %s requires an api_key", c.LLM.Provider)
	}
	if c.Embeddings.Provider == "openai" && c.Embeddings.APIKey == "" {
		return fmt.Errorf("embeddings provider openai requires an api_key")
	}

	if c.Agent.MaxSteps < 1 || c.Agent.MaxTools < 1 {
		return fmt.Errorf("agent limits must be at least 1 (max_steps=%d max_tools=%d)", c.Agent.MaxSteps, c.Agent.MaxTools)
	}
	if c.Agent.MaxTransitions < c.Agent.MaxSteps {
		return fmt.Errorf("max_transitions (%d) must not undercut max_steps (%d)", c.Agent.MaxTransitions, c.Agent.MaxSteps)
	}

	if c.Catalog.Watch && c.Catalog.Dir == "" {
		return fmt.Errorf("catalog.watch requires catalog.dir")
	}

	return nil
}

// setDefaults sets default values for optional fields.
func (c *Config) setDefaults() {
	// Server defaults
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		// Streaming agent runs hold the response open across several
		// model calls.
		c.Server.WriteTimeout = 120 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}

	// LLM defaults: local Ollama with the reference model.
	if c.LLM.Provider == "" {
		c.LLM.Provider = "ollama"
	}
	if c.LLM.Model == "" {
		switch c.LLM.Provider {
		case "openai":
			c.LLM.Model = "gpt-4o-mini"
		case "anthropic":
			c.LLM.Model = "claude-3-5-haiku-20241022"
		default:
			c.LLM.Model = "mistral"
		}
	}
	if c.LLM.BaseURL == "" && c.LLM.Provider == "ollama" {
		c.LLM.BaseURL = "http://localhost:11434"
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 512
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.3
	}
	if c.LLM.TopP == 0 {
		c.LLM.TopP = 0.9
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 30 * time.Second
	}

	// Embeddings defaults
	if c.Embeddings.Provider == "" {
		c.Embeddings.Provider = "local"
	}
	if c.Embeddings.Dimension == 0 {
		if c.Embeddings.Provider == "openai" {
			c.Embeddings.Dimension = 1536
		} else {
			c.Embeddings.Dimension = 384
		}
	}

	// Storage defaults
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = ":memory:"
	}

	// Catalog defaults: seed the sample lineage unless a catalog
	// directory replaces it.
	if !c.Catalog.Seed && c.Catalog.Dir == "" {
		c.Catalog.Seed = true
	}

	// Agent defaults
	if c.Agent.MaxSteps == 0 {
		c.Agent.MaxSteps = 8
	}
	if c.Agent.MaxTools == 0 {
		c.Agent.MaxTools = 3
	}
	if c.Agent.MaxTransitions == 0 {
		c.Agent.MaxTransitions = 40
	}
	if c.Agent.DecisionTimeout == 0 {
		c.Agent.DecisionTimeout = 30 * time.Second
	}
	if c.Agent.ToolTimeout == 0 {
		c.Agent.ToolTimeout = 10 * time.Second
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
}

// expandEnvVars replaces ${VAR} and $VAR with environment variable values.
func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		return os.Getenv(key)
	})
}
