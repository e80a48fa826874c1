package models

// SearchHit is one retrieved chunk with its squared L2 distance to the query.
type SearchHit struct {
	Rank       int     `json:"rank"`
	Text       string  `json:"text"`
	Source     string  `json:"source,omitempty"`
	Page       *int    `json:"page,omitempty"`
	DocumentID string  `json:"document_id,omitempty"`
	Distance   float32 `json:"distance"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Query     string       `json:"query"`
	Hits      []*SearchHit `json:"hits"`
	Total     int          `json:"total"`
	QueryTime int64        `json:"query_time_ms"`
}

// AskResponse is the response for a question. When Degraded is true, Answer holds
// the rendered generation failure rather than model output.
type AskResponse struct {
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	Degraded   bool   `json:"degraded"`
	ExchangeID string `json:"exchange_id,omitempty"`
	QueryTime  int64  `json:"query_time_ms"`
}

// Status summarizes the session's catalog and index.
type Status struct {
	Documents      int64         `json:"documents"`
	Chunks         int64         `json:"chunks"`
	IndexSize      int           `json:"index_size"`
	Dimensions     int           `json:"dimensions"`
	DiskUsageBytes *int64        `json:"disk_usage_bytes,omitempty"`
	Config         *StatusConfig `json:"config,omitempty"`
}

// StatusConfig holds configuration echoed by status.
type StatusConfig struct {
	EmbeddingProvider string `json:"embedding_provider"`
	GenerationModel   string `json:"generation_model,omitempty"`
	ChunkSize         int    `json:"chunk_size,omitempty"`
	ChunkOverlap      int    `json:"chunk_overlap,omitempty"`
	TopK              int    `json:"top_k,omitempty"`
	DatabasePath      string `json:"database_path,omitempty"`
	IndexPath         string `json:"index_path,omitempty"`
}
