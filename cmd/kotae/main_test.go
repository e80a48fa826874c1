package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/hyperjump/kotae/internal/answer"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/generation"
	"github.com/hyperjump/kotae/internal/server"
	"go.uber.org/zap"
)

func TestReorderArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after question are moved first",
			args:     []string{"what is the refund policy", "-k", "8"},
			expected: []string{"-k", "8", "what is the refund policy"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-k", "8", "what is the refund policy"},
			expected: []string{"-k", "8", "what is the refund policy"},
		},
		{
			name:     "question only returns unchanged",
			args:     []string{"what is the refund policy"},
			expected: []string{"what is the refund policy"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"one", "two", "-output", "json"},
			expected: []string{"-output", "json", "one", "two"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reorderArgs(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("reorderArgs() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"warranty"}, "warranty"},
		{"multiple words", []string{"what", "is", "covered"}, "what is covered"},
		{"single quoted phrase", []string{"what is covered"}, "what is covered"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildQuery(tt.args); got != tt.expected {
				t.Errorf("buildQuery(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestReadConfig_ExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kotae.yaml")
	if err := os.WriteFile(path, []byte("retrieval:\n  top_k: 7\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, resolved, err := readConfig(path)
	if err != nil {
		t.Fatalf("readConfig: %v", err)
	}
	if resolved != path {
		t.Errorf("resolved = %q, want %q", resolved, path)
	}
	if cfg.Retrieval.TopK != 7 {
		t.Errorf("TopK = %d, want 7", cfg.Retrieval.TopK)
	}

	if _, _, err := readConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for a missing explicit config")
	}
}

func TestNewEmbedder(t *testing.T) {
	cfg := &config.Config{Embedding: config.EmbeddingConfig{Provider: config.ProviderMock, Dimensions: 12, CacheSize: 10}}
	e, err := newEmbedder(cfg)
	if err != nil {
		t.Fatalf("newEmbedder(mock): %v", err)
	}
	if e.Dimensions() != 12 {
		t.Errorf("Dimensions() = %d, want 12", e.Dimensions())
	}

	cfg.Embedding.Provider = "word2vec"
	if _, err := newEmbedder(cfg); err == nil {
		t.Error("expected error for unknown provider")
	}

	cfg.Embedding.Provider = config.ProviderOpenAI
	if _, err := newEmbedder(cfg); err == nil {
		t.Error("expected error for openai without an api key")
	}
}

func TestNewGenerator(t *testing.T) {
	cfg := &config.Config{Generation: config.GenerationConfig{Provider: config.ProviderEcho}}
	g, err := newGenerator(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("newGenerator(echo): %v", err)
	}
	if _, ok := g.(generation.EchoGenerator); !ok {
		t.Errorf("generator = %T, want EchoGenerator", g)
	}

	cfg.Generation.Provider = config.ProviderOpenAI
	g, err = newGenerator(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("newGenerator(openai, no key): %v", err)
	}
	if _, err := g.Generate(context.Background(), nil); err == nil || !strings.Contains(err.Error(), "api key") {
		t.Errorf("Generate() err = %v, want missing api key", err)
	}

	cfg.Generation.Provider = "llama"
	if _, err := newGenerator(cfg, zap.NewNop()); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Storage: config.StorageConfig{
			DatabasePath: filepath.Join(dir, "db", "kotae.db"),
			IndexPath:    filepath.Join(dir, "indices", "kotae.idx"),
		},
		Embedding:  config.EmbeddingConfig{Provider: config.ProviderMock, Dimensions: 16},
		Generation: config.GenerationConfig{Provider: config.ProviderEcho},
	}
	config.ApplyDefaults(cfg)
	return cfg
}

func TestInitializeComponents_RestoresSnapshot(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	c, err := initializeComponents(ctx, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("initializeComponents: %v", err)
	}
	if _, err := c.Session.IngestBytes(ctx, "notes.txt", []byte("The lighthouse keeper feeds the cat at dawn.")); err != nil {
		t.Fatal(err)
	}
	c.Close()

	c, err = initializeComponents(ctx, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("initializeComponents (reopen): %v", err)
	}
	defer c.Close()
	st, err := c.Session.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Documents != 1 || st.IndexSize != 1 {
		t.Errorf("after reopen documents=%d index=%d, want 1 and 1", st.Documents, st.IndexSize)
	}
}

func TestAPIClient(t *testing.T) {
	cfg := testConfig(t)
	c, err := initializeComponents(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	ts := httptest.NewServer(server.NewServer(c.Session, zap.NewNop(), nil, "").Router())
	defer ts.Close()
	client := newAPIClient(ts.URL + "/")

	resp, err := client.Ask("anything there?", 0)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if resp.Answer != answer.FallbackMessage {
		t.Errorf("Ask before upload = %q, want fallback", resp.Answer)
	}

	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("The lighthouse keeper feeds the cat at dawn."), 0644); err != nil {
		t.Fatal(err)
	}
	doc, err := client.Upload(path)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if doc.Name != "notes.txt" || doc.Chunks != 1 {
		t.Errorf("uploaded doc = %+v", doc)
	}
	_, err = client.Upload(path)
	var apiErr *apiError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusConflict {
		t.Errorf("duplicate Upload err = %v, want 409", err)
	}

	resp, err = client.Ask("who feeds the cat?", 0)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Answer != "The lighthouse keeper feeds the cat at dawn." || resp.Degraded {
		t.Errorf("Ask = %+v", resp)
	}

	sr, err := client.Search("cat", 3)
	if err != nil {
		t.Fatal(err)
	}
	if sr.Total != 1 || sr.Hits[0].Source != "notes.txt" {
		t.Errorf("Search = %+v", sr)
	}

	hist, err := client.History(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 1 || hist[0].Question != "who feeds the cat?" {
		t.Errorf("History(1) = %+v", hist)
	}

	docs, err := client.Documents()
	if err != nil || len(docs) != 1 {
		t.Errorf("Documents = %v, %v", docs, err)
	}

	if err := client.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	st, err := client.Status()
	if err != nil {
		t.Fatal(err)
	}
	if st.Documents != 0 || st.IndexSize != 0 {
		t.Errorf("Status after reset = %+v", st)
	}

	if _, err := client.WatchList(); !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotImplemented {
		t.Errorf("WatchList without watcher err = %v, want 501", err)
	}
}
