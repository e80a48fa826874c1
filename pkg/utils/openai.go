package utils

import (
	"context"
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// IsTransientOpenAIError reports whether an error from an OpenAI-compatible endpoint is
// worth retrying. Rate limits and 5xx responses are; so is any failure that never
// produced an HTTP status.
func IsTransientOpenAIError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return transientStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return transientStatus(reqErr.HTTPStatusCode)
	}
	return true
}

func transientStatus(code int) bool {
	return code == 0 || code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
