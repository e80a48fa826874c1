package generation

import (
	"context"
	"strings"
)

// EchoGenerator answers offline by quoting the first document from the system prompt.
// It lets the pipeline run end to end without a model endpoint.
type EchoGenerator struct{}

// Generate returns the text of the first document block found in the system message,
// or a notice that no documents were supplied.
func (EchoGenerator) Generate(ctx context.Context, messages []Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	for _, m := range messages {
		if m.Role != RoleSystem {
			continue
		}
		_, docs, ok := strings.Cut(m.Content, "Documents:\n")
		if !ok {
			continue
		}
		first, _, _ := strings.Cut(docs, "\n\n")
		if _, body, ok := strings.Cut(first, "\n"); ok && strings.TrimSpace(body) != "" {
			return strings.TrimSpace(body), nil
		}
	}
	return "No documents were provided to answer from.", nil
}
