package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
)

// openZip opens an OOXML or OpenDocument package held in memory.
func openZip(content []byte, format string) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extract %s: not a zip: %w", format, err)
	}
	return zr, nil
}

// readEntry returns the named file from the package, or nil if it is absent.
func readEntry(zr *zip.Reader, name, format string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("extract %s: open %s: %w", format, f.Name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("extract %s: read %s: %w", format, f.Name, err)
		}
		return data, nil
	}
	return nil, nil
}

// textRuns returns the unescaped inner text of every match of re's first group, in
// document order.
func textRuns(re *regexp.Regexp, xml string) []string {
	matches := re.FindAllStringSubmatch(xml, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, html.UnescapeString(m[1]))
	}
	return out
}

// joinRuns returns one line per paragraph, splitting xml at paragraphEnd and
// concatenating the runs inside each paragraph. Empty paragraphs are dropped.
func joinRuns(xml string, paragraphEnd, run *regexp.Regexp) string {
	var lines []string
	for _, para := range paragraphEnd.Split(xml, -1) {
		line := strings.TrimSpace(strings.Join(textRuns(run, para), ""))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
