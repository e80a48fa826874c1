package embedding

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hyperjump/kotae/pkg/utils"
	openai "github.com/sashabaranov/go-openai"
)

// maxInputsPerRequest is the embeddings endpoint's limit on inputs per call.
const maxInputsPerRequest = 2048

// OpenAIConfig configures an OpenAI-compatible embeddings client.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// Dimensions requests shortened vectors from models that support it. Zero uses the
	// model's native size.
	Dimensions   int
	MaxRetries   uint64
	RetryBackoff time.Duration
}

// ONNXConfig configures a local ONNX embedding model.
type ONNXConfig struct {
	ModelPath  string
	Dimensions int
	MaxTokens  int
}

// OpenAIEmbedder calls an OpenAI-compatible embeddings endpoint.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
	requestDim int
	maxRetries uint64
	backoff    time.Duration
}

// NewOpenAIEmbedder creates an embedder for cfg.Model.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is required (set OPENAI_API_KEY)")
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.SmallEmbedding3)
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	dims := cfg.Dimensions
	if dims <= 0 {
		dims = nativeDimensions(cfg.Model)
	}
	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		dimensions: dims,
		requestDim: cfg.Dimensions,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.RetryBackoff,
	}, nil
}

func nativeDimensions(model string) int {
	switch model {
	case string(openai.LargeEmbedding3):
		return 3072
	default:
		return 1536
	}
}

// Embed returns the embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embs[0], nil
}

// EmbedBatch embeds texts in as few requests as the endpoint allows.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxInputsPerRequest {
		end := start + maxInputsPerRequest
		if end > len(texts) {
			end = len(texts)
		}
		embs, err := e.embedChunk(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, embs...)
	}
	return out, nil
}

func (e *OpenAIEmbedder) embedChunk(ctx context.Context, texts []string) ([][]float32, error) {
	input := make([]string, len(texts))
	for i, t := range texts {
		// the endpoint rejects empty strings
		if strings.TrimSpace(t) == "" {
			t = " "
		}
		input[i] = t
	}
	req := openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: input,
	}
	if e.requestDim > 0 {
		req.Dimensions = e.requestDim
	}

	var resp openai.EmbeddingResponse
	err := utils.Retry(ctx, e.maxRetries, e.backoff, utils.IsTransientOpenAIError, func(ctx context.Context) error {
		var err error
		resp, err = e.client.CreateEmbeddings(ctx, req)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })
	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		if len(d.Embedding) != e.dimensions {
			return nil, fmt.Errorf("openai embeddings: got dimension %d, expected %d", len(d.Embedding), e.dimensions)
		}
		v := make([]float32, len(d.Embedding))
		for j, x := range d.Embedding {
			v[j] = float32(x)
		}
		utils.NormalizeL2(v)
		out[i] = v
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op; the HTTP client holds no resources that need releasing.
func (e *OpenAIEmbedder) Close() error {
	return nil
}
