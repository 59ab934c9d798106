package document

import (
	"context"
	"fmt"
	"strings"

	"github.com/dreamerdocs/document-analysis/internal/core/domain"
)

const (
	mimeTypePDF  = domain.MimeTypePDF
	mimeTypeDOCX = domain.MimeTypeDOCX
)

// Extractor pulls plain text out of PDF and DOCX files.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(ctx context.Context, mimeType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var (
		text string
		err  error
	)
	switch mimeType {
	case mimeTypePDF:
		text, err = extractPDF(data)
	case mimeTypeDOCX:
		text, err = extractDOCX(data)
	default:
		return "", domain.WrapError(domain.ErrExtraction, "extract text", fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, mimeType))
	}
	if err != nil {
		return "", domain.WrapError(domain.ErrExtraction, "extract text", err)
	}
	return normalizeText(text), nil
}

// normalizeText replaces invalid UTF-8, trims trailing blanks per line and
// collapses runs of empty lines.
func normalizeText(text string) string {
	text = strings.ToValidUTF8(text, "\uFFFD")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			if blank || len(out) == 0 {
				continue
			}
			blank = true
			out = append(out, "")
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
