// Package file provides the TOML configuration file for the CLI.
// Configuration lives at ~/.tvrag/config.toml; environment variables
// override file values for secrets.
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the full application configuration.
type Config struct {
	// DataDir is where the database, raw PDFs and asset crops live.
	// Defaults to ~/.tvrag/data.
	DataDir string `toml:"data_dir"`

	// InboxDir is the watched directory for the watch command.
	// Defaults to ~/.tvrag/inbox.
	InboxDir string `toml:"inbox_dir"`

	Docparse  DocparseConfig  `toml:"docparse"`
	OpenAI    OpenAIConfig    `toml:"openai"`
	Chunking  ChunkingConfig  `toml:"chunking"`
	Retrieval RetrievalConfig `toml:"retrieval"`
}

// DocparseConfig configures the PDF extraction sidecar.
type DocparseConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// OpenAIConfig configures the embedding, completion and captioning services.
type OpenAIConfig struct {
	// APIKey can be left empty and supplied via OPENAI_API_KEY instead.
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	EmbeddingModel string `toml:"embedding_model"`
	Dimensions     int    `toml:"dimensions"`
	ChatModel      string `toml:"chat_model"`
}

// ChunkingConfig configures the chunk splitter and embedding batches.
type ChunkingConfig struct {
	MaxChars    int `toml:"max_chars"`
	MinFragment int `toml:"min_fragment"`
	BatchSize   int `toml:"batch_size"`
}

// RetrievalConfig configures question answering defaults.
type RetrievalConfig struct {
	TopK int `toml:"top_k"`
}

// DefaultDir returns the default config directory (~/.tvrag).
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".tvrag"), nil
}

// Load reads the config file from configDir, applying defaults for any
// missing values. A missing file is not an error; defaults are returned.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		configDir = dir
	}

	cfg := defaults(configDir)

	data, err := os.ReadFile(filepath.Join(configDir, "config.toml"))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	applyDefaults(cfg, configDir)

	// Environment overrides for secrets
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.OpenAI.APIKey = key
	}

	return cfg, nil
}

// Save writes the config to configDir/config.toml.
func Save(configDir string, cfg *Config) error {
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(configDir, "config.toml"), data, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// DocparseTimeout returns the configured sidecar timeout as a duration.
func (c *Config) DocparseTimeout() time.Duration {
	return time.Duration(c.Docparse.TimeoutSeconds) * time.Second
}

// defaults returns a fully defaulted config rooted at configDir.
func defaults(configDir string) *Config {
	cfg := &Config{}
	applyDefaults(cfg, configDir)
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.OpenAI.APIKey = key
	}
	return cfg
}

// applyDefaults fills zero values in cfg with defaults.
func applyDefaults(cfg *Config, configDir string) {
	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Join(configDir, "data")
	}
	if cfg.InboxDir == "" {
		cfg.InboxDir = filepath.Join(configDir, "inbox")
	}
	if cfg.Docparse.BaseURL == "" {
		cfg.Docparse.BaseURL = "http://localhost:8077"
	}
	if cfg.Docparse.TimeoutSeconds == 0 {
		cfg.Docparse.TimeoutSeconds = 120
	}
	if cfg.OpenAI.BaseURL == "" {
		cfg.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.OpenAI.EmbeddingModel == "" {
		cfg.OpenAI.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.OpenAI.Dimensions == 0 {
		cfg.OpenAI.Dimensions = 1536
	}
	if cfg.OpenAI.ChatModel == "" {
		cfg.OpenAI.ChatModel = "gpt-4o-mini"
	}
	if cfg.Chunking.MaxChars == 0 {
		cfg.Chunking.MaxChars = 2000
	}
	if cfg.Chunking.MinFragment == 0 {
		cfg.Chunking.MinFragment = 200
	}
	if cfg.Chunking.BatchSize == 0 {
		cfg.Chunking.BatchSize = 100
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
}
