// Package ingest turns uploaded files into chunks for the retrieval store and records
// each upload in the document catalog.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrAlreadyIngested is returned when a file with the same name and size is already in
// the catalog.
var ErrAlreadyIngested = errors.New("document already ingested")

// Sink receives chunks. retrieval.Store satisfies it.
type Sink interface {
	AddDocuments(ctx context.Context, chunks []models.Chunk) error
}

// Catalog records uploaded documents. storage.Storage satisfies it.
type Catalog interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	FindDocumentByName(ctx context.Context, name string) (*models.Document, error)
	DeleteDocument(ctx context.Context, id string) error
}

// Ingestor extracts, chunks and stores documents. Extraction may run in parallel;
// insertion into the sink is serialized.
type Ingestor struct {
	sink        Sink
	catalog     Catalog
	extractor   *extract.Extractor
	chunker     *Chunker
	allowedExts []string
	concurrency int
	logger      *zap.Logger
	mu          sync.Mutex
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(in *Ingestor) { in.logger = l }
}

// WithChunker replaces the default 1000/200 character chunker.
func WithChunker(c *Chunker) Option {
	return func(in *Ingestor) { in.chunker = c }
}

// WithAllowedExtensions restricts directory and glob ingestion to the given extensions.
func WithAllowedExtensions(exts []string) Option {
	return func(in *Ingestor) { in.allowedExts = exts }
}

// WithConcurrency sets how many files are extracted at once by IngestPaths.
func WithConcurrency(n int) Option {
	return func(in *Ingestor) {
		if n > 0 {
			in.concurrency = n
		}
	}
}

// New creates an ingestor that writes chunks to sink and records uploads in catalog.
func New(sink Sink, catalog Catalog, opts ...Option) *Ingestor {
	in := &Ingestor{
		sink:        sink,
		catalog:     catalog,
		extractor:   extract.NewExtractor(),
		chunker:     NewChunker(1000, 200),
		concurrency: 4,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// prepared is an extracted and chunked file waiting for insertion.
type prepared struct {
	name       string
	sourcePath string
	size       int64
	pages      int
	pieces     []piece
}

type piece struct {
	page  int
	label string
	text  string
}

// IngestBytes ingests an upload held in memory. The extension of name selects the extractor.
func (in *Ingestor) IngestBytes(ctx context.Context, name string, content []byte) (*models.Document, error) {
	p, err := in.prepare(name, "", content)
	if err != nil {
		return nil, err
	}
	return in.insert(ctx, p)
}

// IngestFile ingests the regular file at path.
func (in *Ingestor) IngestFile(ctx context.Context, path string) (*models.Document, error) {
	p, err := in.prepareFile(path)
	if err != nil {
		return nil, err
	}
	return in.insert(ctx, p)
}

func (in *Ingestor) prepareFile(path string) (*prepared, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", absPath)
	}
	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return in.prepare(filepath.Base(absPath), absPath, content)
}

func (in *Ingestor) prepare(name, sourcePath string, content []byte) (*prepared, error) {
	if name == "" {
		return nil, errors.New("document name is required")
	}
	pages, err := in.extractor.ExtractBytes(content, filepath.Ext(name))
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", name, err)
	}
	p := &prepared{name: name, sourcePath: sourcePath, size: int64(len(content)), pages: len(pages)}
	for _, page := range pages {
		for _, text := range in.chunker.Split(Preprocess(page.Text)) {
			p.pieces = append(p.pieces, piece{page: page.Number, label: page.Label, text: text})
		}
	}
	return p, nil
}

// insert records a prepared file in the catalog, then adds its chunks to the sink. A sink
// failure deletes the catalog row again. It holds the ingestor lock so the duplicate check
// and the insertion are atomic with respect to other uploads.
func (in *Ingestor) insert(ctx context.Context, p *prepared) (*models.Document, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	existing, err := in.catalog.FindDocumentByName(ctx, p.name)
	switch {
	case err == nil && existing.Size == p.size:
		return existing, fmt.Errorf("%s: %w", p.name, ErrAlreadyIngested)
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("check catalog: %w", err)
	}

	doc := &models.Document{
		ID:         uuid.New().String(),
		Name:       p.name,
		Size:       p.size,
		Pages:      p.pages,
		Chunks:     len(p.pieces),
		SourcePath: p.sourcePath,
		CreatedAt:  time.Now(),
	}
	chunks := make([]models.Chunk, len(p.pieces))
	for i, pc := range p.pieces {
		meta := models.Metadata{Source: p.name, DocumentID: doc.ID}
		if pc.page > 0 {
			meta.Page = models.PageNumber(pc.page)
		}
		if pc.label != "" {
			meta.Extra = map[string]models.Value{"sheet": models.StringValue(pc.label)}
		}
		chunks[i] = models.NewChunk(pc.text, meta)
	}
	if err := in.catalog.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("record %s: %w", p.name, err)
	}
	if err := in.sink.AddDocuments(ctx, chunks); err != nil {
		err = fmt.Errorf("add %s: %w", p.name, err)
		if derr := in.catalog.DeleteDocument(context.WithoutCancel(ctx), doc.ID); derr != nil {
			in.logger.Error("failed to roll back catalog entry",
				zap.String("name", p.name), zap.String("id", doc.ID), zap.Error(derr))
			return nil, errors.Join(err, fmt.Errorf("roll back %s: %w", p.name, derr))
		}
		return nil, err
	}
	if len(chunks) == 0 {
		in.logger.Warn("document has no extractable text", zap.String("name", p.name))
	}
	in.logger.Debug("ingested document",
		zap.String("name", p.name),
		zap.String("id", doc.ID),
		zap.Int("pages", p.pages),
		zap.Int("chunks", len(chunks)))
	return doc, nil
}

// Summary reports the outcome of IngestPaths.
type Summary struct {
	Ingested []*models.Document
	Skipped  []string
	Failed   map[string]error
}

// IngestPaths ingests every file matched by patterns. A pattern may be a file, a
// directory (walked recursively) or a doublestar glob such as "docs/**/*.pdf". Files are
// extracted concurrently and inserted in path order. Per-file failures are collected in
// the summary; only cancellation aborts the run. progress, when non-nil, is called after
// each file with the number done and the total.
func (in *Ingestor) IngestPaths(ctx context.Context, patterns []string, progress func(done, total int)) (*Summary, error) {
	paths, err := in.Expand(patterns)
	if err != nil {
		return nil, err
	}
	summary := &Summary{Failed: make(map[string]error)}
	results := make([]*prepared, len(paths))
	errs := make([]error, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.concurrency)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i], errs[i] = in.prepareFile(path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}

	for i, path := range paths {
		if errs[i] == nil {
			doc, err := in.insert(ctx, results[i])
			errs[i] = err
			if err == nil {
				summary.Ingested = append(summary.Ingested, doc)
			}
		}
		switch {
		case errors.Is(errs[i], ErrAlreadyIngested):
			summary.Skipped = append(summary.Skipped, path)
		case errs[i] != nil:
			summary.Failed[path] = errs[i]
			in.logger.Warn("ingest failed", zap.String("path", path), zap.Error(errs[i]))
		}
		if progress != nil {
			progress(i+1, len(paths))
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

// Expand resolves patterns to a sorted, de-duplicated list of regular files.
func (in *Ingestor) Expand(patterns []string) ([]string, error) {
	return ExpandPaths(patterns, in.allowed)
}

// ExpandPaths resolves file, directory and glob patterns to absolute paths. Files named
// directly are always kept; files found by walking or globbing must pass allowed.
func ExpandPaths(patterns []string, allowed func(path string) bool) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(path string) {
		abs, err := filepath.Abs(path)
		if err != nil || seen[abs] {
			return
		}
		seen[abs] = true
		out = append(out, abs)
	}

	for _, pattern := range patterns {
		if info, err := os.Stat(pattern); err == nil {
			if !info.IsDir() {
				add(pattern)
				continue
			}
			err := filepath.WalkDir(pattern, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if d.Type().IsRegular() && allowed(path) {
					add(path)
				}
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("walk %s: %w", pattern, err)
			}
			continue
		}
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %q", pattern)
		}
		for _, m := range matches {
			if info, err := os.Stat(m); err == nil && info.Mode().IsRegular() && allowed(m) {
				add(m)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// allowed reports whether path's extension passes the configured filter. With no
// filter, any extension with a dedicated extractor passes.
func (in *Ingestor) allowed(path string) bool {
	return PathAllowed(path, in.allowedExts)
}

// PathAllowed reports whether path's extension is in exts, or, when exts is empty,
// whether a dedicated extractor handles it.
func PathAllowed(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if len(exts) == 0 {
		return extract.IsSupported(ext)
	}
	return ExtensionAllowed(ext, exts)
}

// ExtensionAllowed reports whether ext is in allowed, ignoring case and leading dots.
func ExtensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
