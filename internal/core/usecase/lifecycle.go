package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dreamerdocs/document-analysis/internal/core/domain"
	"github.com/dreamerdocs/document-analysis/internal/core/ports"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type LifecycleUseCase struct {
	repo     ports.DocumentRepository
	payments ports.PaymentProvider
	storage  ports.ObjectStorage
	pricing  domain.PricingSchedule
	currency string
	observer ports.WorkflowObserver
}

func NewLifecycleUseCase(
	repo ports.DocumentRepository,
	payments ports.PaymentProvider,
	storage ports.ObjectStorage,
	pricing domain.PricingSchedule,
	currency string,
	observer ports.WorkflowObserver,
) *LifecycleUseCase {
	return &LifecycleUseCase{
		repo:     repo,
		payments: payments,
		storage:  storage,
		pricing:  pricing,
		currency: strings.ToLower(strings.TrimSpace(currency)),
		observer: observerOrNoop(observer),
	}
}

func (uc *LifecycleUseCase) Create(ctx context.Context, in domain.NewDocument) (*domain.Document, error) {
	if in.FileSize <= 0 || in.FileSize > domain.MaxUploadBytes {
		return nil, domain.WrapError(domain.ErrValidation, "create document", fmt.Errorf("file size %d out of range", in.FileSize))
	}
	if !domain.SupportedMimeType(in.MimeType) {
		return nil, domain.WrapError(domain.ErrValidation, "create document", fmt.Errorf("unsupported mime type %q", in.MimeType))
	}
	if in.CharCount == 0 {
		return nil, domain.WrapError(domain.ErrExtraction, "create document", errors.New("document has no text"))
	}

	cost, err := uc.pricing.Price(in.CharCount)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	doc := &domain.Document{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Filename:    in.Filename,
		MimeType:    in.MimeType,
		FileSize:    in.FileSize,
		CharCount:   in.CharCount,
		Cost:        cost,
		Currency:    uc.currency,
		Status:      domain.StatusUploaded,
		StoragePath: in.StoragePath,
		TextPath:    in.TextPath,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := uc.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document metadata: %w", err)
	}
	uc.observer.DocumentUploaded(cost)
	return doc, nil
}

func (uc *LifecycleUseCase) BeginPayment(
	ctx context.Context,
	documentID string,
	options domain.AnalysisOptions,
) (*domain.PaymentSession, error) {
	normalized, err := options.Normalize()
	if err != nil {
		return nil, err
	}

	doc, err := uc.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}

	switch doc.Status {
	case domain.StatusPaymentPending:
		return uc.resumePayment(ctx, doc)
	case domain.StatusUploaded:
	default:
		return nil, invalidState("begin payment", doc, domain.StatusUploaded)
	}

	// The idempotency key makes concurrent callers receive the same intent.
	intent, err := uc.payments.CreatePaymentIntent(ctx, domain.PaymentIntentRequest{
		DocumentID:     doc.ID,
		Amount:         doc.Cost,
		Currency:       doc.Currency,
		IdempotencyKey: "begin-payment:" + doc.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	moved, err := uc.repo.BeginPayment(ctx, doc.ID, intent.ID, normalized)
	if err != nil {
		return nil, fmt.Errorf("set status=%s: %w", domain.StatusPaymentPending, err)
	}
	if !moved {
		current, err := uc.Get(ctx, doc.ID)
		if err != nil {
			return nil, err
		}
		if current.Status != domain.StatusPaymentPending || current.PaymentIntentID != intent.ID {
			return nil, invalidState("begin payment", current, domain.StatusUploaded)
		}
	}

	return uc.session(doc.ID, intent), nil
}

func (uc *LifecycleUseCase) resumePayment(ctx context.Context, doc *domain.Document) (*domain.PaymentSession, error) {
	intent, err := uc.payments.GetPaymentIntent(ctx, doc.PaymentIntentID)
	if err != nil {
		return nil, fmt.Errorf("get payment intent: %w", err)
	}
	return uc.session(doc.ID, intent), nil
}

func (uc *LifecycleUseCase) session(documentID string, intent *domain.PaymentIntent) *domain.PaymentSession {
	return &domain.PaymentSession{
		DocumentID:      documentID,
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		PublishableKey:  uc.payments.PublishableKey(),
		Amount:          intent.Amount,
		DisplayAmount:   domain.DisplayAmount(intent.Amount, intent.Currency),
		Currency:        intent.Currency,
	}
}

func (uc *LifecycleUseCase) Get(ctx context.Context, documentID string) (*domain.Document, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New("empty document id"))
	}
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	return doc, nil
}

// Original opens the uploaded file as it was received. The caller closes the
// reader. A document whose stored object is gone reports ErrDocumentNotFound.
func (uc *LifecycleUseCase) Original(ctx context.Context, documentID string) (*domain.Document, io.ReadCloser, error) {
	doc, err := uc.Get(ctx, documentID)
	if err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(doc.StoragePath) == "" {
		return nil, nil, domain.WrapError(domain.ErrDocumentNotFound, "open original", fmt.Errorf("document %s has no stored file", doc.ID))
	}
	rc, err := uc.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open original %s: %w", doc.ID, err)
	}
	return doc, rc, nil
}

func (uc *LifecycleUseCase) List(ctx context.Context, limit, offset int) ([]domain.Document, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	docs, err := uc.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}
