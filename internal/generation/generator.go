// Package generation turns a chat transcript into a model reply.
package generation

import (
	"context"
	"errors"
)

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyReply is returned when the model produced no choices.
var ErrEmptyReply = errors.New("model returned no reply")

// Message is one turn of a chat transcript.
type Message struct {
	Role    string
	Content string
}

// Generator produces the assistant's reply to messages.
type Generator interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, messages []Message) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, messages []Message) (string, error) {
	return f(ctx, messages)
}
