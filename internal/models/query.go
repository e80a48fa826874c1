package models

import (
	"fmt"
	"strings"
)

// AskRequest is a question to answer from the uploaded documents.
type AskRequest struct {
	Question string `json:"question"`
	K        int    `json:"k,omitempty"` // number of chunks to retrieve; 0 uses the configured default
}

// Validate rejects a blank question and normalizes K into [1, maxK], using defaultK when unset.
func (q *AskRequest) Validate(defaultK, maxK int) error {
	if strings.TrimSpace(q.Question) == "" {
		return fmt.Errorf("question cannot be empty")
	}
	q.K = normalizeK(q.K, defaultK, maxK)
	return nil
}

// SearchRequest asks for the chunks closest to Query without generating an answer.
type SearchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k,omitempty"`
}

// Validate rejects a blank query and normalizes K like AskRequest.Validate.
func (q *SearchRequest) Validate(defaultK, maxK int) error {
	if strings.TrimSpace(q.Query) == "" {
		return fmt.Errorf("query cannot be empty")
	}
	q.K = normalizeK(q.K, defaultK, maxK)
	return nil
}

func normalizeK(k, defaultK, maxK int) int {
	if k <= 0 {
		k = defaultK
	}
	if maxK > 0 && k > maxK {
		k = maxK
	}
	return k
}
