// Package answer turns retrieved chunks and a question into a grounded answer.
package answer

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/kotae/internal/generation"
	"github.com/hyperjump/kotae/internal/models"
	"go.uber.org/zap"
)

const (
	// FallbackMessage is the answer when retrieval finds nothing.
	FallbackMessage = "No relevant information found. Please try a different question or upload documents."
	// DefaultK is the number of chunks retrieved when the caller does not choose.
	DefaultK = 4
	// DefaultTimeout bounds a single generation call.
	DefaultTimeout = 60 * time.Second

	unknown      = "Unknown"
	systemPrompt = "You are a helpful assistant that answers questions based on the provided documents. " +
		"Use only the information in the documents to answer the question. " +
		"If the answer cannot be found in the documents, say so directly.\n\nDocuments:\n"
	degradedPrefix = "Error generating response: "
)

// Searcher returns up to k chunks for query, best match first.
type Searcher interface {
	SimilaritySearch(ctx context.Context, query string, k int) ([]models.Chunk, error)
}

// Result is either Answer or Degraded.
type Result interface {
	// String renders the result as the text shown to a user.
	String() string
	isResult()
}

// Answer is a successful reply, or the fallback when nothing was retrieved.
type Answer struct {
	Text string
}

// Degraded reports that generation failed; Reason is the failure description.
type Degraded struct {
	Reason string
}

func (a Answer) String() string   { return a.Text }
func (d Degraded) String() string { return degradedPrefix + d.Reason }
func (Answer) isResult()          {}
func (Degraded) isResult()        {}

// Orchestrator retrieves context for a question and asks the generator to answer from it.
type Orchestrator struct {
	searcher  Searcher
	generator generation.Generator
	timeout   time.Duration
	logger    *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTimeout bounds each generation call. Zero or less disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// New creates an orchestrator.
func New(searcher Searcher, generator generation.Generator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		searcher:  searcher,
		generator: generator,
		timeout:   DefaultTimeout,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Generate answers query from the k best chunks. Retrieval errors are returned; generation
// errors, including a timeout, become a Degraded result.
func (o *Orchestrator) Generate(ctx context.Context, query string, k int) (Result, error) {
	chunks, err := o.searcher.SimilaritySearch(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}
	if len(chunks) == 0 {
		o.logger.Debug("no chunks retrieved", zap.String("query", query))
		return Answer{Text: FallbackMessage}, nil
	}

	messages := BuildMessages(query, BuildContext(chunks))

	genCtx := ctx
	if o.timeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	start := time.Now()
	text, err := o.generator.Generate(genCtx, messages)
	if err != nil {
		o.logger.Warn("generation failed",
			zap.Int("chunks", len(chunks)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return Degraded{Reason: err.Error()}, nil
	}
	o.logger.Debug("generated answer",
		zap.Int("chunks", len(chunks)),
		zap.Duration("elapsed", time.Since(start)))
	return Answer{Text: text}, nil
}

// GenerateAnswer is Generate rendered as text; a Degraded result reads
// "Error generating response: <reason>".
func (o *Orchestrator) GenerateAnswer(ctx context.Context, query string, k int) (string, error) {
	res, err := o.Generate(ctx, query, k)
	if err != nil {
		return "", err
	}
	return res.String(), nil
}

// BuildContext renders chunks in order as "Document: <source>, Page: <page>" headers
// followed by the chunk text, separated by blank lines.
func BuildContext(chunks []models.Chunk) string {
	var b strings.Builder
	for i, c := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		source := c.Source()
		if source == "" {
			source = unknown
		}
		page := unknown
		if n, ok := c.Page(); ok {
			page = strconv.Itoa(n)
		}
		fmt.Fprintf(&b, "Document: %s, Page: %s\n%s", source, page, c.Text())
	}
	return b.String()
}

// BuildMessages returns the system instruction carrying the context, then the raw query.
func BuildMessages(query, docs string) []generation.Message {
	return []generation.Message{
		{Role: generation.RoleSystem, Content: systemPrompt + docs},
		{Role: generation.RoleUser, Content: query},
	}
}
