package ports

import (
	"context"
	"io"
	"time"

	"github.com/dreamerdocs/document-analysis/internal/core/domain"
)

// DocumentRepository persists document state. Every status change is a
// check-and-set against the expected current status; the bool result reports
// whether the row was actually moved.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context, limit, offset int) ([]domain.Document, error)
	Transition(ctx context.Context, id string, from, to domain.DocumentStatus, errMessage string) (bool, error)
	BeginPayment(ctx context.Context, id, paymentIntentID string, options domain.AnalysisOptions) (bool, error)
	CompleteAnalysis(ctx context.Context, id string, result *domain.AnalysisResult) (bool, error)
	ListStale(ctx context.Context, status domain.DocumentStatus, changedBefore time.Time, limit int) ([]string, error)
}

// ResultCache keeps analysis results keyed by document id.
type ResultCache interface {
	Get(ctx context.Context, documentID string) (*domain.AnalysisResult, bool, error)
	Set(ctx context.Context, documentID string, result *domain.AnalysisResult) error
}

// ObjectStorage stores source documents and their extracted text.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// ContentDetector sniffs the MIME type from file content.
type ContentDetector interface {
	Detect(data []byte) string
}

// TextExtractor extracts plain text from PDF or DOCX bytes.
type TextExtractor interface {
	Extract(ctx context.Context, mimeType string, data []byte) (string, error)
}

// PaymentProvider creates and reads payment intents.
type PaymentProvider interface {
	CreatePaymentIntent(ctx context.Context, req domain.PaymentIntentRequest) (*domain.PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, id string) (*domain.PaymentIntent, error)
	PublishableKey() string
}

// WebhookVerifier authenticates and decodes provider notifications.
type WebhookVerifier interface {
	ParseEvent(payload []byte, signature string) (*domain.PaymentEvent, error)
}

// EventGuard deduplicates provider notifications by event id.
type EventGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

// Analyzer is the external language model analysis call.
type Analyzer interface {
	Analyze(ctx context.Context, text string, options domain.AnalysisOptions) (*domain.AnalysisResult, error)
}

// MessageQueue publishes/consumes paid-document events.
type MessageQueue interface {
	PublishDocumentPaid(ctx context.Context, documentID string) error
	SubscribeDocumentPaid(ctx context.Context, handler func(context.Context, domain.DocumentPaid) error) error
}

// ReportRenderer renders an analyzed document for download.
type ReportRenderer interface {
	Render(doc *domain.Document) ([]byte, error)
}

// WorkflowObserver receives workflow outcomes for metrics.
type WorkflowObserver interface {
	DocumentUploaded(cost int64)
	PaymentConfirmed(outcome string)
	AnalysisFinished(outcome string, duration time.Duration)
	ResultCacheLookup(hit bool)
}
