package extract

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

// zipOf builds an in-memory zip with the given entries, in order.
func zipOf(t *testing.T, entries ...[2]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, e := range entries {
		fw, err := w.Create(e[0])
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(e[1])); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func onePage(t *testing.T, pages []Page, err error) Page {
	t.Helper()
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected 1 page, got %d: %+v", len(pages), pages)
	}
	return pages[0]
}

func TestExtractBytes_plain(t *testing.T) {
	tests := []struct {
		name    string
		content string
		ext     string
		want    string
	}{
		{"txt", "Hello world\nLine 2", ".txt", "Hello world\nLine 2"},
		{"utf8", "caf\xc3\xa9", ".md", "café"},
		{"invalid utf8", "hello\x80world", ".rst", "hello�world"},
		{"unknown extension", "raw content", ".xyz", "raw content"},
		{"uppercase extension", "shout", ".TXT", "shout"},
		{"byte order mark", "\xef\xbb\xbfheader", ".txt", "header"},
	}
	e := NewExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages, err := e.ExtractBytes([]byte(tt.content), tt.ext)
			p := onePage(t, pages, err)
			if p.Text != tt.want || p.Number != 0 {
				t.Errorf("got %+v", p)
			}
		})
	}
}

func TestExtractBytes_pdfInvalid(t *testing.T) {
	if _, err := NewExtractor().ExtractBytes([]byte("%PDF-1.4 truncated"), ".pdf"); err == nil {
		t.Error("expected error for a truncated PDF")
	}
}

func TestExtractBytes_blankDropped(t *testing.T) {
	pages, err := NewExtractor().ExtractBytes([]byte("  \n\t "), ".txt")
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 0 {
		t.Errorf("expected no pages, got %+v", pages)
	}
}

func TestExtractBytes_excelSheetsArePages(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "Title")
	f.SetCellValue("Sheet1", "A2", "Value 1")
	f.SetCellValue("Sheet1", "B2", "Value 2")
	if _, err := f.NewSheet("Q2"); err != nil {
		t.Fatal(err)
	}
	f.SetCellValue("Q2", "A1", "Second sheet")
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	pages, err := NewExtractor().ExtractBytes(buf.Bytes(), ".xlsx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %+v", pages)
	}
	if pages[0].Text != "Title\nValue 1\tValue 2" || pages[0].Number != 1 || pages[0].Label != "Sheet1" {
		t.Errorf("sheet 1 = %+v", pages[0])
	}
	if pages[1].Text != "Second sheet" || pages[1].Number != 2 || pages[1].Label != "Q2" {
		t.Errorf("sheet 2 = %+v", pages[1])
	}
}

func TestExtract_files(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "test.txt")
	if err := os.WriteFile(txt, []byte("File content"), 0600); err != nil {
		t.Fatal(err)
	}
	xlsx := filepath.Join(dir, "data.xlsx")
	f := excelize.NewFile()
	f.SetCellValue("Sheet1", "A1", "Searchable text")
	if err := f.SaveAs(xlsx); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	f.Close()

	e := NewExtractor()
	for path, want := range map[string]string{txt: "File content", xlsx: "Searchable text"} {
		pages, err := e.Extract(path)
		if p := onePage(t, pages, err); p.Text != want {
			t.Errorf("%s: got %q", filepath.Base(path), p.Text)
		}
	}
	if _, err := e.Extract("/nonexistent/path/file.txt"); err == nil {
		t.Error("expected error for nonexistent file")
	}
}

const wordNS = `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`

func TestExtractBytes_docx(t *testing.T) {
	body := wordNS +
		`<w:p w:rsidR="00A1"><w:r><w:t>Hel</w:t></w:r><w:r><w:t xml:space="preserve">lo &amp; bye</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Second paragraph</w:t></w:r></w:p></w:body></w:document>`
	pages, err := NewExtractor().ExtractBytes(zipOf(t, [2]string{"word/document.xml", body}), ".docx")
	p := onePage(t, pages, err)
	if p.Text != "Hello & bye\nSecond paragraph" {
		t.Errorf("got %q", p.Text)
	}
}

func TestExtractBytes_docxContentTypes(t *testing.T) {
	tests := []struct {
		name     string
		override string
	}{
		{"part name first", `<Override PartName="/word/document2.xml" ContentType="` + docxMainContentType + `"/>`},
		{"content type first", `<Override ContentType="` + docxMainContentType + `" PartName="/word/document2.xml"/>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := zipOf(t,
				[2]string{"[Content_Types].xml", `<?xml version="1.0"?><Types>` + tt.override + `</Types>`},
				[2]string{"word/document2.xml", wordNS + `<w:p><w:r><w:t>Moved body</w:t></w:r></w:p></w:body></w:document>`},
			)
			pages, err := NewExtractor().ExtractBytes(content, ".docx")
			if p := onePage(t, pages, err); p.Text != "Moved body" {
				t.Errorf("got %q", p.Text)
			}
		})
	}
}

func TestExtractBytes_docxMissingBody(t *testing.T) {
	if _, err := NewExtractor().ExtractBytes(zipOf(t, [2]string{"other.xml", ""}), ".docx"); err == nil {
		t.Error("expected error when the document part is missing")
	}
}

func slideXML(text string) string {
	return `<p:sld><p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>` + text + `</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`
}

func TestExtractBytes_pptxSlidesArePages(t *testing.T) {
	content := zipOf(t,
		[2]string{"ppt/slides/slide10.xml", slideXML("Tenth slide")},
		[2]string{"ppt/slides/slide2.xml", slideXML("Second slide")},
		[2]string{"ppt/slides/slide1.xml", slideXML("First slide")},
		[2]string{"ppt/slides/_rels/slide1.xml.rels", "<Relationships/>"},
	)
	pages, err := NewExtractor().ExtractBytes(content, ".pptx")
	if err != nil {
		t.Fatal(err)
	}
	want := []Page{{Number: 1, Text: "First slide"}, {Number: 2, Text: "Second slide"}, {Number: 10, Text: "Tenth slide"}}
	if len(pages) != len(want) {
		t.Fatalf("got %+v", pages)
	}
	for i := range want {
		if pages[i] != want[i] {
			t.Errorf("page %d = %+v, want %+v", i, pages[i], want[i])
		}
	}
}

func TestExtractBytes_pptxEmptyAndInvalid(t *testing.T) {
	e := NewExtractor()
	pages, err := e.ExtractBytes(zipOf(t, [2]string{"ppt/slides/other.xml", ""}, [2]string{"docProps/core.xml", ""}), ".pptx")
	if err != nil || len(pages) != 0 {
		t.Errorf("empty deck: %+v, %v", pages, err)
	}
	if _, err := e.ExtractBytes([]byte("not a zip"), ".pptx"); err == nil {
		t.Error("expected error for invalid pptx")
	}
}

func TestExtractBytes_odp(t *testing.T) {
	contentXML := `<office:document><office:body><office:presentation>` +
		`<draw:page draw:name="p1"><text:h>Slide title</text:h><text:p>Hello <text:span>World</text:span></text:p></draw:page>` +
		`<draw:page draw:name="p2"><text:p>Second &lt;slide&gt;</text:p></draw:page>` +
		`</office:presentation></office:body></office:document>`
	pages, err := NewExtractor().ExtractBytes(zipOf(t, [2]string{"content.xml", contentXML}), ".odp")
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 2 {
		t.Fatalf("got %+v", pages)
	}
	if pages[0].Number != 1 || pages[0].Text != "Slide title\nHello World" {
		t.Errorf("page 1 = %+v", pages[0])
	}
	if pages[1].Number != 2 || pages[1].Text != "Second <slide>" {
		t.Errorf("page 2 = %+v", pages[1])
	}
}

func TestExtractBytes_ods(t *testing.T) {
	contentXML := `<office:document><office:body><table:table>` +
		`<table:table-row><table:table-cell><text:p>Cell A</text:p></table:table-cell><table:table-cell><text:p><text:span>Cell B</text:span></text:p></table:table-cell></table:table-row>` +
		`<table:table-row><table:table-cell><text:p>Next row</text:p></table:table-cell></table:table-row>` +
		`</table:table></office:body></office:document>`
	pages, err := NewExtractor().ExtractBytes(zipOf(t, [2]string{"content.xml", contentXML}), ".ods")
	p := onePage(t, pages, err)
	if p.Text != "Cell A\tCell B\nNext row" || p.Number != 0 {
		t.Errorf("got %+v", p)
	}
}

func TestExtractBytes_openDocumentContentMissing(t *testing.T) {
	e := NewExtractor()
	for _, ext := range []string{".odp", ".ods"} {
		if _, err := e.ExtractBytes(zipOf(t, [2]string{"other.xml", ""}), ext); err == nil {
			t.Errorf("%s: expected error when content.xml missing", ext)
		}
	}
}

func TestIsSupported(t *testing.T) {
	if !IsSupported(".PDF") || !IsSupported(".odt") {
		t.Error("expected pdf and odt to be supported")
	}
	if IsSupported(".exe") {
		t.Error("exe should not be supported")
	}
}

func TestJoinText(t *testing.T) {
	got := JoinText([]Page{{Number: 1, Text: "a"}, {Number: 2, Text: "b"}})
	if got != "a\n\nb" {
		t.Errorf("got %q", got)
	}
}
