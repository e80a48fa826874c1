package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

type embeddingsRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions"`
}

// fakeEmbeddingsServer answers /v1/embeddings with vectors whose first component is the
// input's index, after failing the first failFirst requests with a 500.
func fakeEmbeddingsServer(t *testing.T, dims int, failFirst int32, calls *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(calls, 1)
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		if n <= failFirst {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
			return
		}
		var req embeddingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data := make([]map[string]any, len(req.Input))
		for i := range req.Input {
			vec := make([]float32, dims)
			vec[0] = float32(i + 1)
			// reverse order to exercise index sorting
			data[len(req.Input)-1-i] = map[string]any{"object": "embedding", "index": i, "embedding": vec}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  req.Model,
			"data":   data,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIEmbedder_EmbedBatch(t *testing.T) {
	var calls int32
	srv := fakeEmbeddingsServer(t, 4, 0, &calls)
	e, err := NewOpenAIEmbedder(OpenAIConfig{APIKey: "test", BaseURL: srv.URL + "/v1", Dimensions: 4})
	if err != nil {
		t.Fatal(err)
	}
	embs, err := e.EmbedBatch(context.Background(), []string{"a", "", "c"})
	if err != nil {
		t.Fatal(err)
	}
	if len(embs) != 3 {
		t.Fatalf("got %d embeddings", len(embs))
	}
	// each vector has a single non-zero component, so normalization makes it 1
	for i, v := range embs {
		if len(v) != 4 || v[0] != 1 {
			t.Errorf("embedding %d = %v", i, v)
		}
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("calls=%d, want 1", calls)
	}
	if e.Dimensions() != 4 {
		t.Errorf("Dimensions=%d", e.Dimensions())
	}
}

func TestOpenAIEmbedder_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := fakeEmbeddingsServer(t, 2, 2, &calls)
	e, err := NewOpenAIEmbedder(OpenAIConfig{
		APIKey: "test", BaseURL: srv.URL + "/v1", Dimensions: 2,
		MaxRetries: 3, RetryBackoff: time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Embed(context.Background(), "hello"); err != nil {
		t.Fatalf("Embed after retries: %v", err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("calls=%d, want 3", calls)
	}
}

func TestOpenAIEmbedder_DimensionMismatch(t *testing.T) {
	var calls int32
	srv := fakeEmbeddingsServer(t, 3, 0, &calls)
	e, _ := NewOpenAIEmbedder(OpenAIConfig{APIKey: "test", BaseURL: srv.URL + "/v1", Dimensions: 8})
	if _, err := e.Embed(context.Background(), "x"); err == nil {
		t.Error("expected dimension error")
	}
}

func TestNewOpenAIEmbedder_RequiresKey(t *testing.T) {
	if _, err := NewOpenAIEmbedder(OpenAIConfig{}); err == nil {
		t.Error("expected error without api key")
	}
	e, _ := NewOpenAIEmbedder(OpenAIConfig{APIKey: "k", Model: "text-embedding-3-large"})
	if e.Dimensions() != 3072 {
		t.Errorf("native dimensions = %d", e.Dimensions())
	}
}
