package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dreamerdocs/document-analysis/internal/core/domain"
	"github.com/dreamerdocs/document-analysis/internal/core/ports"
)

const (
	abandonedReason = "analysis abandoned"
	reapBatchSize   = 100
)

// ReaperUseCase fails analyses left behind by a process that died mid-run.
type ReaperUseCase struct {
	repo   ports.DocumentRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewReaperUseCase(repo ports.DocumentRepository, logger *slog.Logger) *ReaperUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReaperUseCase{repo: repo, logger: logger, now: time.Now}
}

func (uc *ReaperUseCase) FailStale(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "fail stale analyses", fmt.Errorf("non-positive threshold %s", olderThan))
	}
	cutoff := uc.now().UTC().Add(-olderThan)

	ids, err := uc.repo.ListStale(ctx, domain.StatusAnalyzing, cutoff, reapBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list stale analyses: %w", err)
	}

	failed := 0
	for _, id := range ids {
		moved, err := transition(ctx, uc.repo, id, domain.StatusAnalyzing, domain.StatusFailed, abandonedReason)
		if err != nil {
			return failed, err
		}
		if moved {
			failed++
			uc.logger.Warn("analysis_reaped", "document_id", id, "cutoff", cutoff)
		}
	}
	return failed, nil
}
