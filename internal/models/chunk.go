// Package models defines core data structures for chunks, uploaded documents, and answers.
package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Metadata is the provenance attached to a chunk. A nil Page or an empty Source means
// the key is absent; a present Page may be any integer, including 0.
type Metadata struct {
	Source     string           `json:"source,omitempty"`
	Page       *int             `json:"page,omitempty"`
	DocumentID string           `json:"document_id,omitempty"`
	Extra      map[string]Value `json:"extra,omitempty"`
}

// PageNumber returns a present page key holding n.
func PageNumber(n int) *int {
	return &n
}

func (m Metadata) clone() Metadata {
	if m.Page != nil {
		m.Page = PageNumber(*m.Page)
	}
	if m.Extra == nil {
		return m
	}
	extra := make(map[string]Value, len(m.Extra))
	for k, v := range m.Extra {
		extra[k] = v
	}
	m.Extra = extra
	return m
}

// Value is an extra metadata value: either a string or an integer.
type Value struct {
	str   string
	num   int
	isInt bool
}

// StringValue wraps s.
func StringValue(s string) Value {
	return Value{str: s}
}

// IntValue wraps n.
func IntValue(n int) Value {
	return Value{num: n, isInt: true}
}

// Int returns the integer held by v and whether v holds one.
func (v Value) Int() (int, bool) {
	return v.num, v.isInt
}

// String returns the string held by v, or the decimal form of its integer.
func (v Value) String() string {
	if v.isInt {
		return strconv.Itoa(v.num)
	}
	return v.str
}

// MarshalJSON encodes v as a JSON string or number.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.isInt {
		return json.Marshal(v.num)
	}
	return json.Marshal(v.str)
}

// UnmarshalJSON accepts a JSON string or integer.
func (v *Value) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*v = IntValue(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("metadata value must be a string or integer: %s", data)
	}
	*v = StringValue(s)
	return nil
}

// Chunk is a segment of document text plus its provenance, the unit of retrieval.
// A Chunk cannot be changed after NewChunk; accessors hand out copies.
type Chunk struct {
	text string
	meta Metadata
}

// NewChunk returns a chunk holding text and a private copy of meta.
func NewChunk(text string, meta Metadata) Chunk {
	return Chunk{text: text, meta: meta.clone()}
}

// Text returns the chunk's raw text.
func (c Chunk) Text() string {
	return c.text
}

// Metadata returns a copy of the chunk's provenance.
func (c Chunk) Metadata() Metadata {
	return c.meta.clone()
}

// Source returns the document name, or "" when absent.
func (c Chunk) Source() string {
	return c.meta.Source
}

// Page returns the page number and whether the chunk has one.
func (c Chunk) Page() (int, bool) {
	if c.meta.Page == nil {
		return 0, false
	}
	return *c.meta.Page, true
}

// DocumentID returns the id of the upload the chunk came from, or "".
func (c Chunk) DocumentID() string {
	return c.meta.DocumentID
}

type chunkJSON struct {
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// MarshalJSON encodes the chunk as {"text": ..., "metadata": {...}}.
func (c Chunk) MarshalJSON() ([]byte, error) {
	return json.Marshal(chunkJSON{Text: c.text, Metadata: c.meta})
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (c *Chunk) UnmarshalJSON(data []byte) error {
	var w chunkJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*c = NewChunk(w.Text, w.Metadata)
	return nil
}
