package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/dreamerdocs/document-analysis/internal/core/domain"
	"github.com/dreamerdocs/document-analysis/internal/core/ports"
)

// transition validates a status change against the state machine and applies
// it as a check-and-set. A false result means another writer moved the
// document first.
func transition(
	ctx context.Context,
	repo ports.DocumentRepository,
	documentID string,
	from, to domain.DocumentStatus,
	errMessage string,
) (bool, error) {
	if !domain.CanTransition(from, to) {
		return false, domain.WrapError(
			domain.ErrInvalidState,
			"transition",
			fmt.Errorf("document %s cannot move from %s to %s", documentID, from, to),
		)
	}
	moved, err := repo.Transition(ctx, documentID, from, to, errMessage)
	if err != nil {
		return false, fmt.Errorf("set status=%s: %w", to, err)
	}
	return moved, nil
}

func invalidState(op string, doc *domain.Document, want ...domain.DocumentStatus) error {
	return domain.WrapError(
		domain.ErrInvalidState,
		op,
		fmt.Errorf("document %s is %s, want %v", doc.ID, doc.Status, want),
	)
}

type noopObserver struct{}

func (noopObserver) DocumentUploaded(int64)                 {}
func (noopObserver) PaymentConfirmed(string)                {}
func (noopObserver) AnalysisFinished(string, time.Duration) {}
func (noopObserver) ResultCacheLookup(bool)                 {}

func observerOrNoop(observer ports.WorkflowObserver) ports.WorkflowObserver {
	if observer == nil {
		return noopObserver{}
	}
	return observer
}
