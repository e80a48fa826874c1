package answer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/kotae/internal/generation"
	"github.com/hyperjump/kotae/internal/models"
)

type stubSearcher struct {
	chunks []models.Chunk
	err    error
	gotK   int
}

func (s *stubSearcher) SimilaritySearch(_ context.Context, _ string, k int) ([]models.Chunk, error) {
	s.gotK = k
	if s.err != nil {
		return nil, s.err
	}
	if k < len(s.chunks) {
		return s.chunks[:k], nil
	}
	return s.chunks, nil
}

type recordingGenerator struct {
	reply    string
	err      error
	calls    int
	messages []generation.Message
}

func (g *recordingGenerator) Generate(_ context.Context, messages []generation.Message) (string, error) {
	g.calls++
	g.messages = messages
	return g.reply, g.err
}

func twoChunks() []models.Chunk {
	return []models.Chunk{
		models.NewChunk("alpha text", models.Metadata{Source: "a.pdf", Page: models.PageNumber(1)}),
		models.NewChunk("beta text", models.Metadata{Source: "b.pdf", Page: models.PageNumber(2)}),
	}
}

func TestGenerate_FallbackWithoutCallingGenerator(t *testing.T) {
	gen := &recordingGenerator{reply: "unused"}
	o := New(&stubSearcher{}, gen)
	got, err := o.GenerateAnswer(context.Background(), "anything", DefaultK)
	if err != nil {
		t.Fatal(err)
	}
	if got != "No relevant information found. Please try a different question or upload documents." {
		t.Errorf("got %q", got)
	}
	if gen.calls != 0 {
		t.Errorf("generator called %d times", gen.calls)
	}
}

func TestGenerate_Success(t *testing.T) {
	gen := &recordingGenerator{reply: "  The answer.  "}
	s := &stubSearcher{chunks: twoChunks()}
	res, err := New(s, gen).Generate(context.Background(), "What is alpha?", 4)
	if err != nil {
		t.Fatal(err)
	}
	a, ok := res.(Answer)
	if !ok {
		t.Fatalf("result = %T, want Answer", res)
	}
	if a.Text != "  The answer.  " {
		t.Errorf("text should be returned unchanged, got %q", a.Text)
	}
	if s.gotK != 4 {
		t.Errorf("search k = %d", s.gotK)
	}
	if len(gen.messages) != 2 {
		t.Fatalf("messages = %d", len(gen.messages))
	}
	sys, user := gen.messages[0], gen.messages[1]
	if sys.Role != generation.RoleSystem || user.Role != generation.RoleUser {
		t.Errorf("roles = %s, %s", sys.Role, user.Role)
	}
	if user.Content != "What is alpha?" {
		t.Errorf("user content = %q", user.Content)
	}
	if !strings.Contains(sys.Content, "Document: a.pdf, Page: 1\nalpha text") {
		t.Errorf("system prompt missing context: %q", sys.Content)
	}
	if !strings.Contains(sys.Content, "cannot be found in the documents") {
		t.Error("system prompt should instruct to say when the answer is missing")
	}
}

func TestGenerate_DegradedOnFailure(t *testing.T) {
	gen := &recordingGenerator{err: errors.New("timeout")}
	o := New(&stubSearcher{chunks: twoChunks()}, gen)
	res, err := o.Generate(context.Background(), "q", 4)
	if err != nil {
		t.Fatal(err)
	}
	d, ok := res.(Degraded)
	if !ok || d.Reason != "timeout" {
		t.Fatalf("result = %#v", res)
	}
	text, _ := o.GenerateAnswer(context.Background(), "q", 4)
	if !strings.Contains(text, "Error generating response:") || !strings.Contains(text, "timeout") {
		t.Errorf("rendered = %q", text)
	}
}

func TestGenerate_TimeoutIsDegraded(t *testing.T) {
	slow := generation.GeneratorFunc(func(ctx context.Context, _ []generation.Message) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	o := New(&stubSearcher{chunks: twoChunks()}, slow, WithTimeout(10*time.Millisecond))
	res, err := o.Generate(context.Background(), "q", 4)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := res.(Degraded); !ok {
		t.Fatalf("result = %#v, want Degraded", res)
	}
	if !strings.Contains(res.String(), "deadline exceeded") {
		t.Errorf("rendered = %q", res.String())
	}
}

func TestGenerate_SearchErrorPropagates(t *testing.T) {
	boom := errors.New("embedder down")
	gen := &recordingGenerator{}
	_, err := New(&stubSearcher{err: boom}, gen).Generate(context.Background(), "q", 4)
	if !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
	if gen.calls != 0 {
		t.Error("generator should not be called")
	}
}

func TestBuildContext(t *testing.T) {
	got := BuildContext(twoChunks())
	want := "Document: a.pdf, Page: 1\nalpha text\n\nDocument: b.pdf, Page: 2\nbeta text"
	if got != want {
		t.Errorf("got %q\nwant %q", got, want)
	}

	missing := BuildContext([]models.Chunk{
		models.NewChunk("no page", models.Metadata{Source: "c.txt"}),
		models.NewChunk("nothing", models.Metadata{}),
	})
	if !strings.Contains(missing, "Document: c.txt, Page: Unknown\nno page") {
		t.Errorf("missing page: %q", missing)
	}
	if !strings.Contains(missing, "Document: Unknown, Page: Unknown") {
		t.Errorf("missing source: %q", missing)
	}
}

func TestBuildContext_PageZero(t *testing.T) {
	got := BuildContext([]models.Chunk{
		models.NewChunk("first page", models.Metadata{Source: "a.pdf", Page: models.PageNumber(0)}),
	})
	if want := "Document: a.pdf, Page: 0\nfirst page"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
