package document

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/dreamerdocs/document-analysis/internal/core/domain"
)

func buildDOCX(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	write := func(name, content string) {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	write("[Content_Types].xml", `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"></Types>`)
	write("_rels/.rels", `<?xml version="1.0" encoding="UTF-8"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`)

	var body strings.Builder
	body.WriteString(`<?xml version="1.0" encoding="UTF-8"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paragraphs {
		fmt.Fprintf(&body, `<w:p><w:r><w:t xml:space="preserve">%s</w:t></w:r></w:p>`, p)
	}
	body.WriteString(`</w:body></w:document>`)
	write("word/document.xml", body.String())

	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// buildPDF writes a single-page PDF with a correct cross-reference table.
func buildPDF(text string) []byte {
	content := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestDetectorRecognizesSupportedFormats(t *testing.T) {
	detector := NewDetector()
	if got := detector.Detect(buildPDF("hello")); got != domain.MimeTypePDF {
		t.Fatalf("expected pdf, got %q", got)
	}
	if got := detector.Detect(buildDOCX(t, "hello")); got != domain.MimeTypeDOCX {
		t.Fatalf("expected docx, got %q", got)
	}
}

func TestDetectorStripsParameters(t *testing.T) {
	got := NewDetector().Detect([]byte("just some plain words\n"))
	if got != "text/plain" {
		t.Fatalf("expected text/plain, got %q", got)
	}
	if domain.SupportedMimeType(got) {
		t.Fatalf("plain text must not be supported")
	}
}

func TestExtractDOCXParagraphs(t *testing.T) {
	data := buildDOCX(t, "The Long Night", "", "It was cold.  ", "天很冷。")
	text, err := NewExtractor().Extract(context.Background(), domain.MimeTypeDOCX, data)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	want := "The Long Night\n\nIt was cold.\n天很冷。"
	if text != want {
		t.Fatalf("unexpected text %q, want %q", text, want)
	}
}

func TestExtractDOCXWithoutBodyFails(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	if _, err := w.Create("[Content_Types].xml"); err != nil {
		t.Fatalf("create: %v", err)
	}
	_ = w.Close()

	_, err := NewExtractor().Extract(context.Background(), domain.MimeTypeDOCX, buf.Bytes())
	if !domain.IsKind(err, domain.ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", err)
	}
}

func TestExtractPDFText(t *testing.T) {
	text, err := NewExtractor().Extract(context.Background(), domain.MimeTypePDF, buildPDF("Hello PDF"))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if text != "Hello PDF" {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestExtractCorruptPDFIsExtractionError(t *testing.T) {
	data := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("garbage "), 32)...)
	_, err := NewExtractor().Extract(context.Background(), domain.MimeTypePDF, data)
	if !domain.IsKind(err, domain.ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", err)
	}
}

func TestExtractUnsupportedType(t *testing.T) {
	_, err := NewExtractor().Extract(context.Background(), "image/png", []byte{0x89, 'P', 'N', 'G'})
	if !domain.IsKind(err, domain.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestNormalizeTextRepairsInvalidUTF8(t *testing.T) {
	got := normalizeText("Chapter\xff\xfe One\r\n\r\n\r\nBody  ")
	if !utf8.ValidString(got) {
		t.Fatalf("expected valid UTF-8, got %q", got)
	}
	if got != "Chapter\uFFFD One\n\nBody" {
		t.Fatalf("unexpected text %q", got)
	}
}
