package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dreamerdocs/document-analysis/internal/core/domain"
	"github.com/dreamerdocs/document-analysis/internal/core/ports"
)

const defaultAnalysisTimeout = 2 * time.Minute

type AnalysisUseCase struct {
	repo     ports.DocumentRepository
	storage  ports.ObjectStorage
	analyzer ports.Analyzer
	cache    ports.ResultCache
	observer ports.WorkflowObserver
	logger   *slog.Logger
	timeout  time.Duration
	flights  singleflight.Group
}

func NewAnalysisUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	analyzer ports.Analyzer,
	cache ports.ResultCache,
	observer ports.WorkflowObserver,
	logger *slog.Logger,
	timeout time.Duration,
) *AnalysisUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultAnalysisTimeout
	}
	return &AnalysisUseCase{
		repo:     repo,
		storage:  storage,
		analyzer: analyzer,
		cache:    cache,
		observer: observerOrNoop(observer),
		logger:   logger,
		timeout:  timeout,
	}
}

// RequestAnalysis returns the analysis of a paid document, running the
// external analysis at most once. Analyzed documents replay the stored
// result; callers in this process share an in-flight run; callers elsewhere
// see ErrAlreadyInProgress while the document is analyzing.
func (uc *AnalysisUseCase) RequestAnalysis(
	ctx context.Context,
	documentID string,
	options domain.AnalysisOptions,
) (*domain.AnalysisResult, error) {
	doc, err := uc.load(ctx, documentID)
	if err != nil {
		return nil, err
	}

	switch doc.Status {
	case domain.StatusAnalyzed:
		return uc.replay(ctx, doc)
	case domain.StatusPaid, domain.StatusAnalyzing:
	default:
		return nil, invalidState("request analysis", doc, domain.StatusPaid, domain.StatusAnalyzed)
	}

	if len(options) == 0 {
		options = doc.Options
	}
	normalized, err := options.Normalize()
	if err != nil {
		return nil, err
	}

	// The flight outlives any single caller; it is bounded by the analysis timeout.
	flightCtx := context.WithoutCancel(ctx)
	ch := uc.flights.DoChan(documentID, func() (any, error) {
		return uc.runOnce(flightCtx, documentID, normalized)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.AnalysisResult), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (uc *AnalysisUseCase) runOnce(
	ctx context.Context,
	documentID string,
	options domain.AnalysisOptions,
) (*domain.AnalysisResult, error) {
	doc, err := uc.load(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if settled, result, err := uc.settled(ctx, doc); settled {
		return result, err
	}

	text, err := uc.readText(ctx, doc)
	if err != nil {
		return nil, err
	}

	moved, err := transition(ctx, uc.repo, doc.ID, domain.StatusPaid, domain.StatusAnalyzing, "")
	if err != nil {
		return nil, err
	}
	if !moved {
		current, err := uc.load(ctx, documentID)
		if err != nil {
			return nil, err
		}
		_, result, err := uc.settled(ctx, current)
		return result, err
	}

	started := time.Now()
	uc.logger.Info("analysis_started", "document_id", doc.ID, "options", options, "char_count", doc.CharCount)

	result, err := uc.analyze(ctx, text, options)
	if err != nil {
		uc.markFailed(ctx, doc.ID, err)
		uc.observer.AnalysisFinished(outcomeFailed, time.Since(started))
		return nil, domain.WrapError(domain.ErrAnalysisFailed, "request analysis", err)
	}

	moved, err = uc.repo.CompleteAnalysis(ctx, doc.ID, result)
	if err != nil {
		uc.markFailed(ctx, doc.ID, err)
		uc.observer.AnalysisFinished(outcomeFailed, time.Since(started))
		return nil, domain.WrapError(domain.ErrAnalysisFailed, "request analysis", fmt.Errorf("store result: %w", err))
	}
	if !moved {
		uc.observer.AnalysisFinished(outcomeFailed, time.Since(started))
		return nil, domain.WrapError(domain.ErrAnalysisFailed, "request analysis", errors.New("analysis abandoned"))
	}

	uc.storeInCache(ctx, doc.ID, result)
	uc.observer.AnalysisFinished("analyzed", time.Since(started))
	uc.logger.Info("analysis_completed", "document_id", doc.ID, "duration_ms", time.Since(started).Milliseconds())
	return result, nil
}

// settled resolves documents that no longer need this run: analyzed replays,
// analyzing is owned elsewhere, anything but paid is out of sequence.
func (uc *AnalysisUseCase) settled(ctx context.Context, doc *domain.Document) (bool, *domain.AnalysisResult, error) {
	switch doc.Status {
	case domain.StatusPaid:
		return false, nil, nil
	case domain.StatusAnalyzed:
		result, err := uc.replay(ctx, doc)
		return true, result, err
	case domain.StatusAnalyzing:
		return true, nil, domain.WrapError(
			domain.ErrAlreadyInProgress,
			"request analysis",
			fmt.Errorf("document %s is being analyzed", doc.ID),
		)
	default:
		return true, nil, invalidState("request analysis", doc, domain.StatusPaid, domain.StatusAnalyzed)
	}
}

func (uc *AnalysisUseCase) analyze(
	ctx context.Context,
	text string,
	options domain.AnalysisOptions,
) (*domain.AnalysisResult, error) {
	analyzeCtx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	result, err := uc.analyzer.Analyze(analyzeCtx, text, options)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !domain.IsKind(err, domain.ErrTimeout) {
			return nil, domain.WrapError(domain.ErrTimeout, "analyze", err)
		}
		return nil, err
	}
	if err := result.Validate(); err != nil {
		return nil, domain.WrapError(domain.ErrProvider, "analyze", fmt.Errorf("malformed result: %w", err))
	}
	result.ApplyBands()
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}
	return result, nil
}

func (uc *AnalysisUseCase) readText(ctx context.Context, doc *domain.Document) (string, error) {
	if doc.TextPath == "" {
		return "", domain.WrapError(domain.ErrInvalidState, "read text", fmt.Errorf("document %s has no extracted text", doc.ID))
	}
	rc, err := uc.storage.Open(ctx, doc.TextPath)
	if err != nil {
		return "", fmt.Errorf("open extracted text: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("read extracted text: %w", err)
	}
	return string(data), nil
}

// markFailed records the failure even when the caller's context is gone, so a
// document never stays analyzing after its run ended.
func (uc *AnalysisUseCase) markFailed(ctx context.Context, documentID string, cause error) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	reason := failureReason(cause)
	if _, err := transition(writeCtx, uc.repo, documentID, domain.StatusAnalyzing, domain.StatusFailed, reason); err != nil {
		uc.logger.Error("analysis_fail_write_failed", "document_id", documentID, "error", err)
	}
	uc.logger.Warn("analysis_failed", "document_id", documentID, "reason", reason, "error", cause)
}

// failureReason is the user-facing message stored on the document. Provider
// error bodies stay in the logs.
func failureReason(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrRateLimited):
		return "analysis provider rate limited"
	case domain.IsKind(err, domain.ErrTimeout):
		return "analysis timed out"
	case domain.IsKind(err, domain.ErrProvider):
		return "analysis provider error"
	default:
		return "analysis failed"
	}
}

func (uc *AnalysisUseCase) replay(ctx context.Context, doc *domain.Document) (*domain.AnalysisResult, error) {
	if uc.cache != nil {
		result, ok, err := uc.cache.Get(ctx, doc.ID)
		if err != nil {
			uc.logger.Warn("result_cache_get_failed", "document_id", doc.ID, "error", err)
		}
		uc.observer.ResultCacheLookup(ok)
		if ok {
			return result, nil
		}
	}
	if doc.Result == nil {
		return nil, domain.WrapError(domain.ErrInvalidState, "replay analysis", fmt.Errorf("document %s has no stored result", doc.ID))
	}
	uc.storeInCache(ctx, doc.ID, doc.Result)
	return doc.Result, nil
}

func (uc *AnalysisUseCase) storeInCache(ctx context.Context, documentID string, result *domain.AnalysisResult) {
	if uc.cache == nil {
		return
	}
	if err := uc.cache.Set(ctx, documentID, result); err != nil {
		uc.logger.Warn("result_cache_set_failed", "document_id", documentID, "error", err)
	}
}

// Result returns the document with its stored result, without triggering analysis.
func (uc *AnalysisUseCase) Result(ctx context.Context, documentID string) (*domain.Document, error) {
	doc, err := uc.load(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Status == domain.StatusAnalyzed && doc.Result == nil {
		result, err := uc.replay(ctx, doc)
		if err != nil {
			return nil, err
		}
		doc.Result = result
	}
	return doc, nil
}

func (uc *AnalysisUseCase) load(ctx context.Context, documentID string) (*domain.Document, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New("empty document id"))
	}
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	return doc, nil
}
