package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// slideName matches slide parts such as ppt/slides/slide12.xml.
var slideName = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

var (
	// atTag matches <a:t>text</a:t> with any attributes.
	atTag  = regexp.MustCompile(`<a:t(?:\s[^>]*)?>([^<]*)</a:t>`)
	apDone = regexp.MustCompile(`</a:p>`)
)

// extractPPTX returns one page per slide, numbered by the slide part name.
func extractPPTX(content []byte) ([]Page, error) {
	zr, err := openZip(content, "PPTX")
	if err != nil {
		return nil, err
	}
	type slide struct {
		number int
		name   string
	}
	var slides []slide
	for _, f := range zr.File {
		m := slideName.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{number: n, name: f.Name})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].number < slides[j].number })

	pages := make([]Page, 0, len(slides))
	for _, s := range slides {
		data, err := readEntry(zr, s.name, "PPTX")
		if err != nil {
			return nil, err
		}
		pages = append(pages, Page{Number: s.number, Text: joinRuns(string(data), apDone, atTag)})
	}
	return pages, nil
}

const odfContentPath = "content.xml"

var (
	// odfText captures the text directly inside text:p, text:h and text:span elements,
	// up to the next tag.
	odfText = regexp.MustCompile(`<text:(?:p|h|span)(?:\s[^>]*)?>([^<]*)`)
	odfDone = regexp.MustCompile(`</text:(?:p|h)>`)
	odfPage = regexp.MustCompile(`(?s)<draw:page(?:\s[^>]*)?>(.*?)</draw:page>`)
)

// readODFContent returns content.xml of an OpenDocument package.
func readODFContent(content []byte, format string) (string, error) {
	zr, err := openZip(content, format)
	if err != nil {
		return "", err
	}
	data, err := readEntry(zr, odfContentPath, format)
	if err != nil {
		return "", err
	}
	if data == nil {
		return "", fmt.Errorf("extract %s: %s not found", format, odfContentPath)
	}
	return string(data), nil
}

// extractODP returns one page per draw:page element.
func extractODP(content []byte) ([]Page, error) {
	xml, err := readODFContent(content, "ODP")
	if err != nil {
		return nil, err
	}
	var pages []Page
	for i, m := range odfPage.FindAllStringSubmatch(xml, -1) {
		pages = append(pages, Page{Number: i + 1, Text: joinRuns(m[1], odfDone, odfText)})
	}
	if len(pages) == 0 {
		// presentations without draw:page wrappers still carry text
		pages = append(pages, Page{Text: joinRuns(xml, odfDone, odfText)})
	}
	return pages, nil
}

// extractODS returns all cell text with one line per table row and tab-separated cells.
func extractODS(content []byte) (string, error) {
	xml, err := readODFContent(content, "ODS")
	if err != nil {
		return "", err
	}
	var rows []string
	for _, row := range strings.Split(xml, "</table:table-row>") {
		var cells []string
		for _, cell := range strings.Split(row, "</table:table-cell>") {
			if text := strings.TrimSpace(strings.Join(textRuns(odfText, cell), "")); text != "" {
				cells = append(cells, text)
			}
		}
		if len(cells) > 0 {
			rows = append(rows, strings.Join(cells, "\t"))
		}
	}
	return strings.Join(rows, "\n"), nil
}
