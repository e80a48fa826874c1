// Package e2e runs the full ingest and answer pipeline over generated document files.
package e2e

import (
	"archive/zip"
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// FixtureExtensions are the file types the fixtures can generate. PDF is missing because
// there is no small hand-written PDF with extractable text; .odt and .rtf go through the
// same converter and are covered by the extractor tests.
var FixtureExtensions = []string{
	".txt", ".md", ".rst",
	".docx", ".xlsx", ".pptx", ".odp", ".ods",
}

var builders = map[string]func(text string) ([]byte, error){
	".txt":  plain,
	".md":   func(text string) ([]byte, error) { return []byte("# Notes\n" + text + "\n"), nil },
	".rst":  func(text string) ([]byte, error) { return []byte("Notes\n=====\n" + text + "\n"), nil },
	".docx": docx,
	".xlsx": xlsx,
	".pptx": pptx,
	".odp":  odp,
	".ods":  ods,
}

// BuildFile returns the bytes of a minimal file of type ext whose extracted text
// contains text.
func BuildFile(ext, text string) ([]byte, error) {
	build, ok := builders[ext]
	if !ok {
		return nil, fmt.Errorf("no fixture builder for %q", ext)
	}
	return build(text)
}

func plain(text string) ([]byte, error) { return []byte(text), nil }

func zipped(name, body string) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, err := w.Create(name)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write([]byte(body)); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func docx(text string) ([]byte, error) {
	return zipped("word/document.xml",
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>`+text+`</w:t></w:r></w:p></w:body></w:document>`)
}

func pptx(text string) ([]byte, error) {
	return zipped("ppt/slides/slide1.xml",
		`<p:sld><p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>`+text+`</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`)
}

func odp(text string) ([]byte, error) {
	return zipped("content.xml",
		`<office:document><office:body><office:presentation><draw:page draw:name="p1"><text:p>`+text+`</text:p></draw:page></office:presentation></office:body></office:document>`)
}

func ods(text string) ([]byte, error) {
	return zipped("content.xml",
		`<office:document><office:body><table:table><table:table-row><table:table-cell><text:p>`+text+`</text:p></table:table-cell></table:table-row></table:table></office:body></office:document>`)
}

func xlsx(text string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetCellValue("Sheet1", "A1", text); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
