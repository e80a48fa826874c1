package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/kotae/pkg/utils"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIConfig configures an OpenAI-compatible chat completions client.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	Temperature  float32
	MaxRetries   uint64
	RetryBackoff time.Duration
}

// OpenAIGenerator calls the chat completions endpoint.
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	temperature float32
	maxRetries  uint64
	backoff     time.Duration
	logger      *zap.Logger
}

// NewOpenAIGenerator creates a chat client for cfg.Model.
func NewOpenAIGenerator(cfg OpenAIConfig, logger *zap.Logger) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is required (set OPENAI_API_KEY)")
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT3Dot5Turbo
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &OpenAIGenerator{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxRetries:  cfg.MaxRetries,
		backoff:     cfg.RetryBackoff,
		logger:      logger,
	}, nil
}

// Generate sends messages and returns the first choice's content.
func (g *OpenAIGenerator) Generate(ctx context.Context, messages []Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    make([]openai.ChatCompletionMessage, len(messages)),
		Temperature: g.temperature,
	}
	for i, m := range messages {
		req.Messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	var resp openai.ChatCompletionResponse
	attempt := 0
	err := utils.Retry(ctx, g.maxRetries, g.backoff, utils.IsTransientOpenAIError, func(ctx context.Context) error {
		attempt++
		var err error
		resp, err = g.client.CreateChatCompletion(ctx, req)
		if err != nil && attempt <= int(g.maxRetries) {
			g.logger.Debug("chat completion attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		}
		return err
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyReply
	}
	return resp.Choices[0].Message.Content, nil
}
