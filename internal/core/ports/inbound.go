package ports

import (
	"context"
	"io"
	"time"

	"github.com/dreamerdocs/document-analysis/internal/core/domain"
)

// DocumentUploader is the inbound contract for upload orchestration.
type DocumentUploader interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error)
}

// DocumentLifecycle owns document creation, payment start and reads,
// including the uploaded original.
type DocumentLifecycle interface {
	Create(ctx context.Context, in domain.NewDocument) (*domain.Document, error)
	BeginPayment(ctx context.Context, documentID string, options domain.AnalysisOptions) (*domain.PaymentSession, error)
	Get(ctx context.Context, documentID string) (*domain.Document, error)
	Original(ctx context.Context, documentID string) (*domain.Document, io.ReadCloser, error)
	List(ctx context.Context, limit, offset int) ([]domain.Document, error)
}

// PaymentGate correlates payment outcomes with pending documents.
type PaymentGate interface {
	Confirm(ctx context.Context, confirmation domain.PaymentConfirmation) (*domain.Document, error)
	ConfirmFromProvider(ctx context.Context, documentID, paymentIntentID string) (*domain.Document, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

// AnalysisService triggers analysis once per paid document and replays results.
type AnalysisService interface {
	RequestAnalysis(ctx context.Context, documentID string, options domain.AnalysisOptions) (*domain.AnalysisResult, error)
	Result(ctx context.Context, documentID string) (*domain.Document, error)
}

// StaleAnalysisReaper fails analyses abandoned by a crashed process.
type StaleAnalysisReaper interface {
	FailStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// ReportExporter renders analyzed documents for download.
type ReportExporter interface {
	Export(ctx context.Context, documentID string) (*domain.Document, []byte, error)
}
