// Package session holds the application context: the current retrieval store and the
// components built around it, the document catalog and the question history.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hyperjump/kotae/internal/answer"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/generation"
	"github.com/hyperjump/kotae/internal/ingest"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/retrieval"
	"github.com/hyperjump/kotae/internal/storage"
	"go.uber.org/zap"
)

var (
	// ErrEmptyQuestion is returned by Ask for a blank question.
	ErrEmptyQuestion = errors.New("question cannot be empty")
	// ErrEmptyQuery is returned by Search for a blank query.
	ErrEmptyQuery = errors.New("query cannot be empty")
)

// Components are the long-lived dependencies a Session is built from. The session owns
// them and closes them in Close.
type Components struct {
	Embedder  embedding.Embedder
	Generator generation.Generator
	Storage   storage.Storage
}

// Session wires a retrieval store to the answer orchestrator and the ingestor. Reset
// swaps all three for fresh instances; every other operation reads the current ones.
type Session struct {
	cfg       *config.Config
	embedder  embedding.Embedder
	generator generation.Generator
	catalog   storage.Storage
	logger    *zap.Logger

	mu           sync.RWMutex
	store        *retrieval.Store
	orchestrator *answer.Orchestrator
	ingestor     *ingest.Ingestor
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger passed down to every component.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// New creates a session with an empty retrieval store. Call Restore to load a snapshot.
func New(cfg *config.Config, c Components, opts ...Option) (*Session, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if c.Embedder == nil || c.Generator == nil || c.Storage == nil {
		return nil, errors.New("embedder, generator and storage are required")
	}
	s := &Session{
		cfg:       cfg,
		embedder:  c.Embedder,
		generator: c.Generator,
		catalog:   c.Storage,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.rebuild(); err != nil {
		return nil, err
	}
	return s, nil
}

// rebuild replaces the store, orchestrator and ingestor. Callers hold mu or own s exclusively.
func (s *Session) rebuild() error {
	store, err := retrieval.NewStore(s.embedder, retrieval.WithLogger(s.logger))
	if err != nil {
		return fmt.Errorf("create retrieval store: %w", err)
	}
	s.store = store
	s.orchestrator = answer.New(store, s.generator,
		answer.WithTimeout(s.cfg.Generation.Timeout),
		answer.WithLogger(s.logger))
	s.ingestor = ingest.New(store, s.catalog,
		ingest.WithLogger(s.logger),
		ingest.WithChunker(ingest.NewChunker(s.cfg.Chunking.ChunkSize, s.cfg.Chunking.ChunkOverlap)))
	return nil
}

// Config returns the session's configuration.
func (s *Session) Config() *config.Config {
	return s.cfg
}

// Ask answers question from the k closest chunks (0 uses the configured top_k) and records
// the exchange in the history. With no documents uploaded the answer is the fallback
// message. A generation failure is not an error: the exchange is marked degraded.
func (s *Session) Ask(ctx context.Context, question string, k int) (*models.Exchange, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	k = s.clampK(k)

	s.mu.RLock()
	res, err := s.orchestrator.Generate(ctx, question, k)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	ex := &models.Exchange{Question: question, Answer: res.String()}
	if _, ok := res.(answer.Degraded); ok {
		ex.Degraded = true
	}
	if err := s.catalog.CreateExchange(ctx, ex); err != nil {
		return nil, fmt.Errorf("record exchange: %w", err)
	}
	s.logger.Debug("answered question",
		zap.String("exchange_id", ex.ID),
		zap.Int("k", k),
		zap.Bool("degraded", ex.Degraded))
	return ex, nil
}

// Search returns the k chunks closest to query with their distances, best first.
func (s *Session) Search(ctx context.Context, query string, k int) ([]*models.SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	k = s.clampK(k)

	s.mu.RLock()
	hits, err := s.store.SearchWithScores(ctx, query, k)
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	out := make([]*models.SearchHit, len(hits))
	for i, h := range hits {
		out[i] = &models.SearchHit{
			Rank:       i + 1,
			Text:       h.Chunk.Text(),
			Source:     h.Chunk.Source(),
			Page:       h.Chunk.Metadata().Page,
			DocumentID: h.Chunk.DocumentID(),
			Distance:   h.Distance,
		}
	}
	return out, nil
}

func (s *Session) clampK(k int) int {
	if k <= 0 {
		k = s.cfg.Retrieval.TopK
	}
	if s.cfg.Retrieval.MaxK > 0 && k > s.cfg.Retrieval.MaxK {
		k = s.cfg.Retrieval.MaxK
	}
	return k
}

// IngestFile ingests one file from disk.
func (s *Session) IngestFile(ctx context.Context, path string) (*models.Document, error) {
	s.mu.RLock()
	doc, err := s.ingestor.IngestFile(ctx, path)
	s.mu.RUnlock()
	if err != nil {
		return doc, err
	}
	return doc, s.autosave()
}

// IngestBytes ingests an uploaded file held in memory.
func (s *Session) IngestBytes(ctx context.Context, name string, content []byte) (*models.Document, error) {
	s.mu.RLock()
	doc, err := s.ingestor.IngestBytes(ctx, name, content)
	s.mu.RUnlock()
	if err != nil {
		return doc, err
	}
	return doc, s.autosave()
}

// IngestPaths ingests every file matched by patterns and saves once at the end.
func (s *Session) IngestPaths(ctx context.Context, patterns []string, progress func(done, total int)) (*ingest.Summary, error) {
	s.mu.RLock()
	summary, err := s.ingestor.IngestPaths(ctx, patterns, progress)
	s.mu.RUnlock()
	if err != nil {
		return summary, err
	}
	if len(summary.Ingested) == 0 {
		return summary, nil
	}
	return summary, s.autosave()
}

func (s *Session) autosave() error {
	if !s.cfg.Storage.AutosaveOrDefault() {
		return nil
	}
	return s.Save()
}

// Save writes the retrieval snapshot to the configured index path.
func (s *Session) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.store.Save(s.cfg.Storage.IndexPath); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Restore loads the snapshot at the configured index path. A missing snapshot leaves the
// store empty. A snapshot of another dimension or a corrupt one is returned as an error.
func (s *Session) Restore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Load(s.cfg.Storage.IndexPath); err != nil {
		return fmt.Errorf("restore snapshot %s: %w", s.cfg.Storage.IndexPath, err)
	}
	chunks, err := s.catalog.SumChunks(ctx)
	if err != nil {
		return fmt.Errorf("count catalog chunks: %w", err)
	}
	if int(chunks) != s.store.Len() {
		s.logger.Warn("snapshot and catalog disagree",
			zap.Int("snapshot_chunks", s.store.Len()),
			zap.Int64("catalog_chunks", chunks))
	}
	s.logger.Debug("restored snapshot",
		zap.String("path", s.cfg.Storage.IndexPath),
		zap.Int("chunks", s.store.Len()))
	return nil
}

// Reset clears all documents: the snapshot files are removed, the catalog and history are
// emptied and the retrieval store is replaced by a new empty one. If the snapshot cannot be
// removed nothing else changes. If the catalog cannot be emptied the live store is saved
// back so the snapshot still matches the catalog.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := s.cfg.Storage.IndexPath
	if err := retrieval.RemoveSnapshot(path); err != nil {
		return fmt.Errorf("remove snapshot: %w", err)
	}
	if err := s.catalog.Reset(ctx); err != nil {
		if serr := s.store.Save(path); serr != nil {
			s.logger.Error("failed to rewrite snapshot after catalog reset error", zap.Error(serr))
		}
		return fmt.Errorf("reset catalog: %w", err)
	}
	if err := s.rebuild(); err != nil {
		return err
	}
	s.logger.Info("cleared all documents")
	return nil
}

// Documents lists the uploaded documents in upload order.
func (s *Session) Documents(ctx context.Context) ([]*models.Document, error) {
	return s.catalog.ListDocuments(ctx, 0, 0)
}

// History returns the last limit exchanges, oldest first. A limit of zero or less returns all.
func (s *Session) History(ctx context.Context, limit int) ([]*models.Exchange, error) {
	return s.catalog.ListExchanges(ctx, limit)
}

// Stats summarizes the catalog and the index.
func (s *Session) Stats(ctx context.Context) (*models.Status, error) {
	docs, err := s.catalog.CountDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	chunks, err := s.catalog.SumChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}
	s.mu.RLock()
	size, dim := s.store.Len(), s.store.Dimensions()
	s.mu.RUnlock()

	st := &models.Status{
		Documents:  docs,
		Chunks:     chunks,
		IndexSize:  size,
		Dimensions: dim,
		Config: &models.StatusConfig{
			EmbeddingProvider: s.cfg.Embedding.Provider,
			GenerationModel:   s.cfg.Generation.Model,
			ChunkSize:         s.cfg.Chunking.ChunkSize,
			ChunkOverlap:      s.cfg.Chunking.ChunkOverlap,
			TopK:              s.cfg.Retrieval.TopK,
			DatabasePath:      s.cfg.Storage.DatabasePath,
			IndexPath:         s.cfg.Storage.IndexPath,
		},
	}
	paths := append(storage.SnapshotFiles(s.cfg.Storage.DatabasePath),
		s.cfg.Storage.IndexPath, snapshotChunks(s.cfg.Storage.IndexPath))
	if usage, err := storage.DiskUsageBytes(paths...); err == nil {
		st.DiskUsageBytes = &usage
	} else {
		s.logger.Warn("disk usage unavailable", zap.Error(err))
	}
	return st, nil
}

func snapshotChunks(indexPath string) string {
	if indexPath == "" {
		return ""
	}
	return indexPath + retrieval.ChunksSuffix
}

// Close releases the embedder and the catalog.
func (s *Session) Close() error {
	var errs []error
	if err := s.embedder.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close embedder: %w", err))
	}
	if err := s.catalog.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close storage: %w", err))
	}
	return errors.Join(errs...)
}
