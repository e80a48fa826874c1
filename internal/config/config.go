// Package config provides configuration loading and structs for the kotae server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Watch      WatchConfig      `yaml:"watch"`
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
}

// StorageConfig holds paths for the catalog database and the index snapshot.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	IndexPath    string `yaml:"index_path"`
	Autosave     *bool  `yaml:"autosave"`
}

// AutosaveOrDefault reports whether to persist the snapshot after each ingest; defaults to true.
func (s *StorageConfig) AutosaveOrDefault() bool {
	if s.Autosave != nil {
		return *s.Autosave
	}
	return true
}

// Provider names accepted by embedding.provider and generation.provider.
const (
	ProviderMock   = "mock"
	ProviderOpenAI = "openai"
	ProviderONNX   = "onnx"
	ProviderEcho   = "echo"
)

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
}

// GenerationConfig selects and configures the chat model.
type GenerationConfig struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Timeout     time.Duration `yaml:"timeout"`
	Temperature float32       `yaml:"temperature"`
	MaxRetries  int           `yaml:"max_retries"`
}

// ChunkingConfig holds chunk sizes in characters.
type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// RetrievalConfig holds the default and maximum number of chunks per question.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
	MaxK int `yaml:"max_k"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.IndexPath = expandPath(cfg.Storage.IndexPath, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// Save writes the config to path. Used for persisting watch directory add/remove.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ApplyEnv overrides config values from environment variables. getenv is usually os.Getenv.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if key := getenv("OPENAI_API_KEY"); key != "" {
		if cfg.Embedding.APIKey == "" {
			cfg.Embedding.APIKey = key
		}
		if cfg.Generation.APIKey == "" {
			cfg.Generation.APIKey = key
		}
	}
	if url := getenv("OPENAI_BASE_URL"); url != "" {
		if cfg.Embedding.BaseURL == "" {
			cfg.Embedding.BaseURL = url
		}
		if cfg.Generation.BaseURL == "" {
			cfg.Generation.BaseURL = url
		}
	}
	if p := getenv("KOTAE_EMBEDDING_PROVIDER"); p != "" {
		cfg.Embedding.Provider = strings.ToLower(p)
	}
	if m := getenv("KOTAE_GENERATION_MODEL"); m != "" {
		cfg.Generation.Model = m
	}
}

// Validate reports settings that cannot work together.
func Validate(cfg *Config) error {
	switch cfg.Embedding.Provider {
	case ProviderMock, ProviderOpenAI, ProviderONNX:
	default:
		return fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}
	switch cfg.Generation.Provider {
	case ProviderOpenAI, ProviderEcho:
	default:
		return fmt.Errorf("unknown generation provider %q", cfg.Generation.Provider)
	}
	if cfg.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be positive, got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Retrieval.TopK > cfg.Retrieval.MaxK {
		return fmt.Errorf("retrieval top_k %d exceeds max_k %d", cfg.Retrieval.TopK, cfg.Retrieval.MaxK)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
