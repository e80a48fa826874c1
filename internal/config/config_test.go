package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
  request_timeout: 30s
storage:
  database_path: "test.db"
  autosave: false
generation:
  provider: echo
  timeout: 5s
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
	if cfg.Server.RequestTimeout != 30*time.Second {
		t.Errorf("request_timeout = %v", cfg.Server.RequestTimeout)
	}
	if cfg.Storage.AutosaveOrDefault() {
		t.Error("autosave: false should be kept")
	}
	if cfg.Generation.Provider != ProviderEcho || cfg.Generation.Timeout != 5*time.Second {
		t.Errorf("generation = %+v", cfg.Generation)
	}
}

func TestLoad_debugTrue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
storage:
  database_path: "test.db"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "localhost"
  port: 8080
storage:
  database_path: "./data/db/kotae.db"
  index_path: "./data/indices/kotae.idx"
watch:
  directories: ["./dev/sample"]
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantDB := filepath.Join(dir, "data", "db", "kotae.db")
	if cfg.Storage.DatabasePath != wantDB {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, wantDB)
	}
	wantIdx := filepath.Join(dir, "data", "indices", "kotae.idx")
	if cfg.Storage.IndexPath != wantIdx {
		t.Errorf("index_path = %s, want %s", cfg.Storage.IndexPath, wantIdx)
	}
	if len(cfg.Watch.Directories) != 1 {
		t.Fatalf("watch directories: got %d", len(cfg.Watch.Directories))
	}
	wantWatch := filepath.Join(dir, "dev", "sample")
	if cfg.Watch.Directories[0] != wantWatch {
		t.Errorf("watch directory = %s, want %s", cfg.Watch.Directories[0], wantWatch)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout != 120*time.Second {
		t.Errorf("default request timeout: got %v", cfg.Server.RequestTimeout)
	}
	if cfg.Server.MaxUploadBytes != 32<<20 {
		t.Errorf("default max upload: got %d", cfg.Server.MaxUploadBytes)
	}
	if cfg.Embedding.Provider != ProviderMock || cfg.Embedding.Dimensions != 384 {
		t.Errorf("default embedding: got %+v", cfg.Embedding)
	}
	if cfg.Embedding.ModelPath != "" {
		t.Errorf("model path should stay empty for the mock provider, got %s", cfg.Embedding.ModelPath)
	}
	if cfg.Generation.Provider != ProviderOpenAI || cfg.Generation.Model != "gpt-3.5-turbo" {
		t.Errorf("default generation: got %+v", cfg.Generation)
	}
	if cfg.Generation.Timeout != 60*time.Second {
		t.Errorf("default generation timeout: got %v", cfg.Generation.Timeout)
	}
	if cfg.Chunking.ChunkSize != 1000 || cfg.Chunking.ChunkOverlap != 200 {
		t.Errorf("default chunking: got %+v", cfg.Chunking)
	}
	if cfg.Retrieval.TopK != 4 || cfg.Retrieval.MaxK != 50 {
		t.Errorf("default retrieval: got %+v", cfg.Retrieval)
	}
	if !cfg.Storage.AutosaveOrDefault() {
		t.Error("autosave should default to true")
	}
	if len(cfg.Watch.Extensions) != 11 || cfg.Watch.Extensions[0] != ".txt" {
		t.Errorf("watch extensions: got %v", cfg.Watch.Extensions)
	}
}

func TestApplyDefaults_ONNXModelPath(t *testing.T) {
	cfg := &Config{Embedding: EmbeddingConfig{Provider: ProviderONNX}}
	ApplyDefaults(cfg)
	if cfg.Embedding.ModelPath == "" {
		t.Error("onnx provider should get a default model path")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"OPENAI_API_KEY":           "sk-test",
		"OPENAI_BASE_URL":          "http://localhost:1234/v1",
		"KOTAE_EMBEDDING_PROVIDER": "OpenAI",
		"KOTAE_GENERATION_MODEL":   "gpt-4o-mini",
	}
	cfg := &Config{Generation: GenerationConfig{APIKey: "from-file"}}
	ApplyEnv(cfg, func(k string) string { return env[k] })
	if cfg.Embedding.APIKey != "sk-test" {
		t.Errorf("embedding api key = %q", cfg.Embedding.APIKey)
	}
	if cfg.Generation.APIKey != "from-file" {
		t.Errorf("file value should win over env, got %q", cfg.Generation.APIKey)
	}
	if cfg.Embedding.BaseURL != env["OPENAI_BASE_URL"] || cfg.Generation.BaseURL != env["OPENAI_BASE_URL"] {
		t.Errorf("base urls = %q, %q", cfg.Embedding.BaseURL, cfg.Generation.BaseURL)
	}
	if cfg.Embedding.Provider != ProviderOpenAI {
		t.Errorf("provider = %q", cfg.Embedding.Provider)
	}
	if cfg.Generation.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", cfg.Generation.Model)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"echo generator", func(c *Config) { c.Generation.Provider = ProviderEcho }, false},
		{"unknown embedding", func(c *Config) { c.Embedding.Provider = "bert" }, true},
		{"unknown generation", func(c *Config) { c.Generation.Provider = "mock" }, true},
		{"negative dimensions", func(c *Config) { c.Embedding.Dimensions = -1 }, true},
		{"top k above max", func(c *Config) { c.Retrieval.TopK = 60 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			ApplyDefaults(cfg)
			tt.mutate(cfg)
			err := Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults_WatchRecursiveWhenDirectoriesSet(t *testing.T) {
	cfg := &Config{Watch: WatchConfig{Directories: []string{"/tmp/docs"}}}
	ApplyDefaults(cfg)
	if cfg.Watch.Recursive == nil || !*cfg.Watch.Recursive {
		t.Error("recursive should default to true when directories are set")
	}
}

func TestWatchConfig_RecursiveOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		w := &WatchConfig{}
		if got := w.RecursiveOrDefault(); !got {
			t.Errorf("RecursiveOrDefault() = %v, want true", got)
		}
	})
	t.Run("true_returns_true", func(t *testing.T) {
		v := true
		w := &WatchConfig{Recursive: &v}
		if got := w.RecursiveOrDefault(); !got {
			t.Errorf("RecursiveOrDefault() = %v, want true", got)
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		w := &WatchConfig{Recursive: &f}
		if got := w.RecursiveOrDefault(); got {
			t.Errorf("RecursiveOrDefault() = %v, want false", got)
		}
	})
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := &Config{
		Server:     ServerConfig{Host: "localhost", Port: 9090},
		Storage:    StorageConfig{DatabasePath: "/tmp/db", IndexPath: "/tmp/kotae.idx"},
		Generation: GenerationConfig{Timeout: 30 * time.Second},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
	if loaded.Generation.Timeout != 30*time.Second {
		t.Errorf("loaded generation timeout: got %v", loaded.Generation.Timeout)
	}
	if loaded.Storage.IndexPath != "/tmp/kotae.idx" {
		t.Errorf("loaded index path: got %s", loaded.Storage.IndexPath)
	}
}
