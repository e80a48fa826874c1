package main

import (
	"context"
	"fmt"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/generation"
	"github.com/hyperjump/kotae/internal/session"
	"github.com/hyperjump/kotae/internal/storage"
	"go.uber.org/zap"
)

// Components holds initialized services.
type Components struct {
	Storage   storage.Storage
	Embedder  embedding.Embedder
	Generator generation.Generator
	Session   *session.Session
}

// Close releases the session, or the raw services when no session was built.
func (c *Components) Close() {
	if c.Session != nil {
		_ = c.Session.Close()
		return
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

func newEmbedder(cfg *config.Config) (embedding.Embedder, error) {
	var (
		e   embedding.Embedder
		err error
	)
	switch cfg.Embedding.Provider {
	case config.ProviderMock:
		e = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	case config.ProviderOpenAI:
		e, err = embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			MaxRetries: uint64(cfg.Generation.MaxRetries),
		})
	case config.ProviderONNX:
		e, err = embedding.NewONNXEmbedder(embedding.ONNXConfig{
			ModelPath:  cfg.Embedding.ModelPath,
			Dimensions: cfg.Embedding.Dimensions,
			MaxTokens:  cfg.Embedding.MaxTokens,
		})
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("%s embedder: %w", cfg.Embedding.Provider, err)
	}
	if cfg.Embedding.CacheSize > 0 {
		e = embedding.NewCachedEmbedder(e, cfg.Embedding.CacheSize)
	}
	return e, nil
}

// newGenerator builds the configured chat model. An OpenAI generator that cannot be
// created is replaced by one that fails every call, so commands that never generate
// still run and ask degrades to the error text.
func newGenerator(cfg *config.Config, logger *zap.Logger) (generation.Generator, error) {
	switch cfg.Generation.Provider {
	case config.ProviderEcho:
		return generation.EchoGenerator{}, nil
	case config.ProviderOpenAI:
		g, err := generation.NewOpenAIGenerator(generation.OpenAIConfig{
			APIKey:      cfg.Generation.APIKey,
			BaseURL:     cfg.Generation.BaseURL,
			Model:       cfg.Generation.Model,
			Temperature: cfg.Generation.Temperature,
			MaxRetries:  uint64(cfg.Generation.MaxRetries),
		}, logger)
		if err != nil {
			logger.Warn("generator unavailable", zap.Error(err))
			return unavailableGenerator(err), nil
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Generation.Provider)
	}
}

func unavailableGenerator(cause error) generation.Generator {
	return generation.GeneratorFunc(func(context.Context, []generation.Message) (string, error) {
		return "", cause
	})
}

// initializeComponents opens the catalog, builds the providers and restores the snapshot.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c := &Components{Storage: store}

	c.Embedder, err = newEmbedder(cfg)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	c.Generator, err = newGenerator(cfg, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize generator: %w", err)
	}

	c.Session, err = session.New(cfg, session.Components{
		Embedder:  c.Embedder,
		Generator: c.Generator,
		Storage:   c.Storage,
	}, session.WithLogger(logger))
	if err != nil {
		c.Close()
		return nil, err
	}
	if err := c.Session.Restore(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to restore index: %w", err)
	}
	logger.Info("components initialized",
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.Int("dimensions", c.Embedder.Dimensions()),
		zap.String("generation_provider", cfg.Generation.Provider),
	)
	return c, nil
}
