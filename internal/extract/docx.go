package extract

import (
	"archive/zip"
	"fmt"
	"regexp"
	"strings"
)

const (
	docxDocumentXMLPath = "word/document.xml"
	contentTypesPath    = "[Content_Types].xml"
	docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

var (
	// wtTag matches <w:t>text</w:t> with any attributes.
	wtTag  = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>`)
	wpDone = regexp.MustCompile(`</w:p>`)
)

// The main part's Override element may list PartName and ContentType in either order.
var (
	partNameFirst = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)
	partNameLast  = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)
)

// mainDocumentPath finds the main document part from [Content_Types].xml, falling back
// to word/document.xml.
func mainDocumentPath(zr *zip.Reader) string {
	data, err := readEntry(zr, contentTypesPath, "DOCX")
	if err != nil || data == nil {
		return docxDocumentXMLPath
	}
	for _, re := range []*regexp.Regexp{partNameFirst, partNameLast} {
		if m := re.FindSubmatch(data); len(m) > 1 {
			return strings.TrimPrefix(string(m[1]), "/")
		}
	}
	return docxDocumentXMLPath
}

// extractDOCX returns the document body with one line per paragraph. Runs are read
// from <w:t> nodes directly because real documents carry attributes on <w:p>.
func extractDOCX(content []byte) (string, error) {
	zr, err := openZip(content, "DOCX")
	if err != nil {
		return "", err
	}
	docPath := mainDocumentPath(zr)
	docXML, err := readEntry(zr, docPath, "DOCX")
	if err != nil {
		return "", err
	}
	if docXML == nil {
		return "", fmt.Errorf("extract DOCX: %s not found", docPath)
	}
	return joinRuns(string(docXML), wpDone, wtTag), nil
}
