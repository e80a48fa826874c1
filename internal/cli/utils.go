// Package cli renders answers, search hits, status and history for the kotae command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text" or "json", case-insensitively.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case OutputText, OutputJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (use text or json)", s)
	}
}

const previewLen = 300

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteAnswer writes the answer to a question.
func WriteAnswer(w io.Writer, resp *models.AskResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintln(w, resp.Answer)
	if resp.Degraded {
		fmt.Fprintln(w, "\n(answer generation failed; shown text is the error)")
	}
	return nil
}

// WriteSearchResults writes retrieved chunks, closest first.
func WriteSearchResults(w io.Writer, resp *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "\nFound %d chunks in %dms\n\n", resp.Total, resp.QueryTime)
	for _, hit := range resp.Hits {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Distance: %.4f\n", hit.Rank, hit.Distance)
		fmt.Fprintf(w, "Source: %s", orUnknown(hit.Source))
		if hit.Page != nil {
			fmt.Fprintf(w, " | Page: %d", *hit.Page)
		}
		fmt.Fprintf(w, "\n\n%s\n\n", utils.Truncate(hit.Text, previewLen))
	}
	return nil
}

// WriteStatus writes catalog and index counts.
func WriteStatus(w io.Writer, st *models.Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "Documents:   %d\n", st.Documents)
	fmt.Fprintf(w, "Chunks:      %d\n", st.Chunks)
	fmt.Fprintf(w, "Index size:  %d\n", st.IndexSize)
	fmt.Fprintf(w, "Dimensions:  %d\n", st.Dimensions)
	if st.DiskUsageBytes != nil {
		fmt.Fprintf(w, "Disk usage:  %s\n", FormatBytes(*st.DiskUsageBytes))
	}
	if c := st.Config; c != nil {
		fmt.Fprintf(w, "Embedding:   %s\n", c.EmbeddingProvider)
		if c.GenerationModel != "" {
			fmt.Fprintf(w, "Model:       %s\n", c.GenerationModel)
		}
		if c.IndexPath != "" {
			fmt.Fprintf(w, "Index path:  %s\n", c.IndexPath)
		}
	}
	return nil
}

// WriteHistory writes exchanges oldest first.
func WriteHistory(w io.Writer, exchanges []*models.Exchange, format OutputFormat) error {
	if format == OutputJSON {
		if exchanges == nil {
			exchanges = []*models.Exchange{}
		}
		return writeJSON(w, exchanges)
	}
	if len(exchanges) == 0 {
		fmt.Fprintln(w, "No questions asked yet.")
		return nil
	}
	for _, ex := range exchanges {
		fmt.Fprintf(w, "[%s] Q: %s\n", ex.CreatedAt.Format("2006-01-02 15:04"), ex.Question)
		fmt.Fprintf(w, "A: %s\n\n", TruncateWords(ex.Answer, 60))
	}
	return nil
}

// WriteDocuments writes the document catalog.
func WriteDocuments(w io.Writer, docs []*models.Document, format OutputFormat) error {
	if format == OutputJSON {
		if docs == nil {
			docs = []*models.Document{}
		}
		return writeJSON(w, docs)
	}
	if len(docs) == 0 {
		fmt.Fprintln(w, "No documents uploaded.")
		return nil
	}
	for _, d := range docs {
		fmt.Fprintf(w, "%s  %-40s %8s  %d chunks\n", d.ID, d.Name, FormatBytes(d.Size), d.Chunks)
	}
	return nil
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
