package ingest

import (
	"strings"
	"unicode/utf8"
)

// DefaultSeparators are tried in order: paragraphs, lines, words, then characters.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Chunker splits text into pieces of at most ChunkSize characters. Adjacent pieces
// share up to ChunkOverlap characters of context.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// NewChunker creates a chunker with the given size and overlap in characters. A size of
// zero or less becomes 1000; an overlap that is negative or not smaller than the size
// becomes a fifth of the size.
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 5
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   DefaultSeparators,
	}
}

// Size returns the maximum chunk length in characters.
func (c *Chunker) Size() int { return c.chunkSize }

// Overlap returns the overlap between adjacent chunks in characters.
func (c *Chunker) Overlap() int { return c.chunkOverlap }

// Split returns the chunks of text in order. Whitespace-only chunks are dropped.
func (c *Chunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return c.split(text, c.separators)
}

// split uses the first separator present in text, recursing with the remaining
// separators into pieces that are still too long.
func (c *Chunker) split(text string, separators []string) []string {
	sep, rest := "", []string(nil)
	for i, s := range separators {
		if s == "" || strings.Contains(text, s) {
			sep, rest = s, separators[i+1:]
			break
		}
	}

	var out, fitting []string
	for _, piece := range strings.Split(text, sep) {
		if piece == "" {
			continue
		}
		if utf8.RuneCountInString(piece) <= c.chunkSize {
			fitting = append(fitting, piece)
			continue
		}
		if len(fitting) > 0 {
			out = append(out, c.merge(fitting, sep)...)
			fitting = nil
		}
		if len(rest) == 0 {
			out = append(out, piece)
		} else {
			out = append(out, c.split(piece, rest)...)
		}
	}
	if len(fitting) > 0 {
		out = append(out, c.merge(fitting, sep)...)
	}
	return out
}

// merge joins pieces with sep into chunks no longer than chunkSize. When a chunk is
// emitted, pieces are dropped from its front until at most chunkOverlap characters
// remain to start the next one.
func (c *Chunker) merge(pieces []string, sep string) []string {
	sepLen := utf8.RuneCountInString(sep)
	var chunks, window []string
	total := 0
	joinCost := func() int {
		if len(window) > 0 {
			return sepLen
		}
		return 0
	}

	for _, p := range pieces {
		n := utf8.RuneCountInString(p)
		if len(window) > 0 && total+joinCost()+n > c.chunkSize {
			chunks = appendChunk(chunks, window, sep)
			for len(window) > 0 && (total > c.chunkOverlap || total+joinCost()+n > c.chunkSize) {
				total -= utf8.RuneCountInString(window[0])
				if len(window) > 1 {
					total -= sepLen
				}
				window = window[1:]
			}
		}
		total += joinCost() + n
		window = append(window, p)
	}
	return appendChunk(chunks, window, sep)
}

func appendChunk(chunks, window []string, sep string) []string {
	if text := strings.TrimSpace(strings.Join(window, sep)); text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
