package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dreamerdocs/document-analysis/internal/core/domain"
	"github.com/dreamerdocs/document-analysis/internal/core/ports"
)

const (
	outcomePaid      = "paid"
	outcomeFailed    = "failed"
	outcomeDuplicate = "duplicate"
	outcomeRejected  = "rejected"
)

type PaymentGateUseCase struct {
	repo     ports.DocumentRepository
	payments ports.PaymentProvider
	verifier ports.WebhookVerifier
	guard    ports.EventGuard
	queue    ports.MessageQueue
	observer ports.WorkflowObserver
	logger   *slog.Logger
}

func NewPaymentGateUseCase(
	repo ports.DocumentRepository,
	payments ports.PaymentProvider,
	verifier ports.WebhookVerifier,
	guard ports.EventGuard,
	queue ports.MessageQueue,
	observer ports.WorkflowObserver,
	logger *slog.Logger,
) *PaymentGateUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentGateUseCase{
		repo:     repo,
		payments: payments,
		verifier: verifier,
		guard:    guard,
		queue:    queue,
		observer: observerOrNoop(observer),
		logger:   logger,
	}
}

// Confirm applies one delivery of a payment outcome. Deliveries may repeat;
// a repeat that matches what is already recorded returns the current document.
func (uc *PaymentGateUseCase) Confirm(ctx context.Context, in domain.PaymentConfirmation) (*domain.Document, error) {
	if !in.Status.Valid() || in.Status == domain.PaymentPending {
		return nil, domain.WrapError(domain.ErrInvalidInput, "confirm payment", fmt.Errorf("unexpected provider status %q", in.Status))
	}
	if in.PaymentIntentID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "confirm payment", errors.New("empty payment intent id"))
	}

	doc, err := uc.repo.GetByID(ctx, in.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	if doc.PaymentIntentID != in.PaymentIntentID {
		uc.observer.PaymentConfirmed(outcomeRejected)
		return nil, domain.WrapError(
			domain.ErrInvalidState,
			"confirm payment",
			fmt.Errorf("payment intent %s does not belong to document %s", in.PaymentIntentID, doc.ID),
		)
	}

	if doc.Status != domain.StatusPaymentPending {
		return uc.absorbDuplicate(doc, in)
	}

	if in.Status == domain.PaymentFailed {
		return uc.fail(ctx, doc, in, "payment failed")
	}
	if in.Amount < doc.Cost {
		return uc.fail(ctx, doc, in, fmt.Sprintf("paid amount %d below cost %d", in.Amount, doc.Cost))
	}

	moved, err := transition(ctx, uc.repo, doc.ID, domain.StatusPaymentPending, domain.StatusPaid, "")
	if err != nil {
		return nil, err
	}
	current, err := uc.repo.GetByID(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	if !moved {
		return uc.absorbDuplicate(current, in)
	}

	uc.observer.PaymentConfirmed(outcomePaid)
	uc.logger.Info("payment_confirmed", "document_id", doc.ID, "payment_intent_id", in.PaymentIntentID, "amount", in.Amount)
	if uc.queue != nil {
		if err := uc.queue.PublishDocumentPaid(ctx, doc.ID); err != nil {
			uc.logger.Warn("document_paid_publish_failed", "document_id", doc.ID, "error", err)
		}
	}
	return current, nil
}

func (uc *PaymentGateUseCase) fail(
	ctx context.Context,
	doc *domain.Document,
	in domain.PaymentConfirmation,
	reason string,
) (*domain.Document, error) {
	moved, err := transition(ctx, uc.repo, doc.ID, domain.StatusPaymentPending, domain.StatusFailed, reason)
	if err != nil {
		return nil, err
	}
	if !moved {
		current, err := uc.repo.GetByID(ctx, doc.ID)
		if err != nil {
			return nil, fmt.Errorf("fetch document by id: %w", err)
		}
		return uc.absorbDuplicate(current, in)
	}
	uc.observer.PaymentConfirmed(outcomeFailed)
	uc.logger.Info("payment_failed", "document_id", doc.ID, "payment_intent_id", in.PaymentIntentID, "reason", reason)
	return nil, domain.WrapError(domain.ErrPaymentFailed, "confirm payment", errors.New(reason))
}

// absorbDuplicate handles a confirmation for a document that already left
// payment_pending under the same intent.
func (uc *PaymentGateUseCase) absorbDuplicate(doc *domain.Document, in domain.PaymentConfirmation) (*domain.Document, error) {
	switch doc.Status {
	case domain.StatusPaid, domain.StatusAnalyzing, domain.StatusAnalyzed:
		if in.Status == domain.PaymentSucceeded {
			uc.observer.PaymentConfirmed(outcomeDuplicate)
			return doc, nil
		}
	case domain.StatusFailed:
		if in.Status == domain.PaymentFailed {
			uc.observer.PaymentConfirmed(outcomeDuplicate)
			return doc, nil
		}
	}
	uc.observer.PaymentConfirmed(outcomeRejected)
	return nil, invalidState("confirm payment", doc, domain.StatusPaymentPending)
}

// ConfirmFromProvider reads the intent's outcome from the provider, for clients
// returning from the hosted payment page.
func (uc *PaymentGateUseCase) ConfirmFromProvider(ctx context.Context, documentID, paymentIntentID string) (*domain.Document, error) {
	if paymentIntentID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "confirm payment", errors.New("empty payment intent id"))
	}
	intent, err := uc.payments.GetPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		return nil, fmt.Errorf("get payment intent: %w", err)
	}
	if intent.DocumentID != "" && intent.DocumentID != documentID {
		return nil, domain.WrapError(
			domain.ErrInvalidState,
			"confirm payment",
			fmt.Errorf("payment intent %s does not belong to document %s", intent.ID, documentID),
		)
	}
	if intent.Status == domain.PaymentPending {
		doc, err := uc.repo.GetByID(ctx, documentID)
		if err != nil {
			return nil, fmt.Errorf("fetch document by id: %w", err)
		}
		return doc, nil
	}
	return uc.Confirm(ctx, domain.PaymentConfirmation{
		DocumentID:      documentID,
		PaymentIntentID: intent.ID,
		Status:          intent.Status,
		Amount:          intent.Amount,
	})
}

// HandleWebhook verifies a provider notification and applies it at most once
// per event id.
func (uc *PaymentGateUseCase) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := uc.verifier.ParseEvent(payload, signature)
	if err != nil {
		return err
	}
	if event.Type != domain.PaymentEventSucceeded && event.Type != domain.PaymentEventFailed {
		uc.logger.Debug("webhook_event_ignored", "event_id", event.ID, "type", event.Type)
		return nil
	}
	if event.Intent == nil || event.Intent.DocumentID == "" {
		uc.logger.Warn("webhook_event_without_document", "event_id", event.ID, "type", event.Type)
		return nil
	}

	first, err := uc.guard.CheckAndMark(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("check webhook idempotency: %w", err)
	}
	if !first {
		uc.logger.Info("webhook_event_duplicate", "event_id", event.ID)
		return nil
	}

	status := domain.PaymentSucceeded
	if event.Type == domain.PaymentEventFailed {
		status = domain.PaymentFailed
	}
	_, err = uc.Confirm(ctx, domain.PaymentConfirmation{
		DocumentID:      event.Intent.DocumentID,
		PaymentIntentID: event.Intent.ID,
		Status:          status,
		Amount:          event.Intent.Amount,
	})
	switch {
	case err == nil, domain.IsKind(err, domain.ErrPaymentFailed):
		return nil
	case domain.IsKind(err, domain.ErrInvalidState), domain.IsKind(err, domain.ErrDocumentNotFound):
		uc.logger.Warn("webhook_event_rejected", "event_id", event.ID, "document_id", event.Intent.DocumentID, "error", err)
		return nil
	}

	if releaseErr := uc.guard.Release(context.WithoutCancel(ctx), event.ID); releaseErr != nil {
		uc.logger.Error("webhook_guard_release_failed", "event_id", event.ID, "error", releaseErr)
	}
	return err
}
