package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/dreamerdocs/document-analysis/internal/core/domain"
	"github.com/dreamerdocs/document-analysis/internal/core/ports"
)

const maxTitleRunes = 100

type UploadDocumentUseCase struct {
	lifecycle ports.DocumentLifecycle
	storage   ports.ObjectStorage
	detector  ports.ContentDetector
	extractor ports.TextExtractor
}

func NewUploadDocumentUseCase(
	lifecycle ports.DocumentLifecycle,
	storage ports.ObjectStorage,
	detector ports.ContentDetector,
	extractor ports.TextExtractor,
) *UploadDocumentUseCase {
	return &UploadDocumentUseCase{
		lifecycle: lifecycle,
		storage:   storage,
		detector:  detector,
		extractor: extractor,
	}
}

// Upload validates and extracts the file before any document exists, so a
// rejected upload leaves no record behind. The declared MIME type is only
// logged by callers; the content decides.
func (uc *UploadDocumentUseCase) Upload(
	ctx context.Context,
	filename, _ string,
	body io.Reader,
) (*domain.Document, error) {
	data, err := io.ReadAll(io.LimitReader(body, domain.MaxUploadBytes+1))
	if err != nil {
		return nil, domain.WrapError(domain.ErrValidation, "read upload", err)
	}
	if int64(len(data)) > domain.MaxUploadBytes {
		return nil, domain.WrapError(domain.ErrValidation, "read upload", fmt.Errorf("%w: limit is %d bytes", domain.ErrFileTooLarge, domain.MaxUploadBytes))
	}
	if len(data) == 0 {
		return nil, domain.WrapError(domain.ErrValidation, "read upload", errors.New("empty file"))
	}

	mimeType := uc.detector.Detect(data)
	if !domain.SupportedMimeType(mimeType) {
		return nil, domain.WrapError(
			domain.ErrValidation,
			"detect format",
			fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, mimeType),
		)
	}

	text, err := uc.extractor.Extract(ctx, mimeType, data)
	if err != nil {
		if domain.IsKind(err, domain.ErrExtraction) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrExtraction, "extract text", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.WrapError(domain.ErrExtraction, "extract text", errors.New("document contains no text"))
	}

	key := uuid.NewString()
	storageKey := fmt.Sprintf("originals/%s_%s", key, sanitizeFilename(filename))
	textKey := fmt.Sprintf("texts/%s.txt", key)

	if err := uc.storage.Save(ctx, storageKey, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}
	if err := uc.storage.Save(ctx, textKey, strings.NewReader(text)); err != nil {
		_ = uc.storage.Delete(ctx, storageKey)
		return nil, fmt.Errorf("save extracted text: %w", err)
	}

	doc, err := uc.lifecycle.Create(ctx, domain.NewDocument{
		Title:       deriveTitle(text, filename),
		Filename:    filepath.Base(filename),
		MimeType:    mimeType,
		FileSize:    int64(len(data)),
		CharCount:   utf8.RuneCountInString(text),
		StoragePath: storageKey,
		TextPath:    textKey,
	})
	if err != nil {
		_ = uc.storage.Delete(ctx, storageKey)
		_ = uc.storage.Delete(ctx, textKey)
		return nil, err
	}
	return doc, nil
}

// deriveTitle uses the first non-empty line when it is short enough,
// otherwise a readable form of the filename.
func deriveTitle(text, filename string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if utf8.RuneCountInString(line) <= maxTitleRunes {
			return line
		}
		break
	}

	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	stem = strings.NewReplacer("_", " ", "-", " ").Replace(stem)
	words := strings.Fields(stem)
	for i, word := range words {
		r, size := utf8.DecodeRuneInString(word)
		words[i] = string(unicode.ToUpper(r)) + word[size:]
	}
	if len(words) == 0 {
		return "Untitled document"
	}
	return strings.Join(words, " ")
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "document.bin"
	}
	return base
}
