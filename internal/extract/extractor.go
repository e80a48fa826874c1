// Package extract turns document files into page-addressed plain text.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Page is the text of one addressable unit of a document: a PDF page, a slide or a
// sheet. Number is 1-based; 0 means the format has no page structure.
type Page struct {
	Number int
	// Label names the unit when it has a name, such as a spreadsheet sheet.
	Label string
	Text  string
}

// SupportedExtensions lists the extensions with a dedicated extractor. Other extensions
// are read as plain text.
var SupportedExtensions = []string{
	".pdf", ".docx", ".odt", ".rtf", ".xlsx", ".pptx", ".odp", ".ods", ".txt", ".md", ".rst",
}

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its pages.
func (e *Extractor) Extract(path string) ([]Page, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, filepath.Ext(path))
}

// ExtractBytes extracts pages from content based on ext, which includes the leading
// dot (e.g. ".pdf"). Pages whose text is blank are dropped.
func (e *Extractor) ExtractBytes(content []byte, ext string) ([]Page, error) {
	var (
		pages []Page
		err   error
	)
	switch strings.ToLower(ext) {
	case ".pdf":
		pages, err = extractPDF(content)
	case ".docx":
		pages, err = single(extractDOCX(content))
	case ".odt", ".rtf":
		pages, err = single(extractWithCat(content))
	case ".xlsx":
		pages, err = extractExcel(content)
	case ".pptx":
		pages, err = extractPPTX(content)
	case ".odp":
		pages, err = extractODP(content)
	case ".ods":
		pages, err = single(extractODS(content))
	default:
		pages, err = single(extractPlain(content))
	}
	if err != nil {
		return nil, err
	}
	out := pages[:0]
	for _, p := range pages {
		if strings.TrimSpace(p.Text) != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

// IsSupported reports whether ext has a dedicated extractor.
func IsSupported(ext string) bool {
	ext = strings.ToLower(ext)
	for _, s := range SupportedExtensions {
		if s == ext {
			return true
		}
	}
	return false
}

// JoinText concatenates page texts separated by blank lines.
func JoinText(pages []Page) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = p.Text
	}
	return strings.Join(parts, "\n\n")
}

func single(text string, err error) ([]Page, error) {
	if err != nil {
		return nil, err
	}
	return []Page{{Text: text}}, nil
}
