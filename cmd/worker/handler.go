package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/dreamerdocs/document-analysis/internal/core/domain"
	"github.com/dreamerdocs/document-analysis/internal/core/ports"
)

const (
	outcomeAnalyzed = "analyzed"
	outcomeSkipped  = "skipped"
	outcomeDropped  = "dropped"
	outcomeFailed   = "failed"
)

// jobTimeoutMargin covers the work around the analyze call: loading the
// document, reading its text and storing the result.
const jobTimeoutMargin = 30 * time.Second

type jobMetrics interface {
	StartJob()
	FinishJob(outcome string, duration time.Duration)
	ObserveQueueLag(lag time.Duration)
}

// analysisJob consumes document.paid events. Redeliveries and races with the
// API are expected: an analysis already running elsewhere or already stored
// counts as done.
type analysisJob struct {
	analysis ports.AnalysisService
	metrics  jobMetrics
	logger   *slog.Logger
	// timeout is the analysis timeout; the job itself gets jobTimeoutMargin more.
	timeout  time.Duration
	now      func() time.Time
}

func (j *analysisJob) handle(ctx context.Context, event domain.DocumentPaid) error {
	started := j.now()
	if !event.PaidAt.IsZero() {
		j.metrics.ObserveQueueLag(started.Sub(event.PaidAt))
	}
	j.metrics.StartJob()

	jobCtx, cancel := context.WithTimeout(ctx, j.timeout+jobTimeoutMargin)
	defer cancel()

	// Nil options fall back to the ones stored at payment time.
	_, err := j.analysis.RequestAnalysis(jobCtx, event.DocumentID, nil)
	outcome := outcomeFailed
	switch {
	case err == nil:
		outcome = outcomeAnalyzed
		j.logger.Info("analysis_job_done", "document_id", event.DocumentID, "duration_ms", j.now().Sub(started).Milliseconds())
	case domain.IsKind(err, domain.ErrAlreadyInProgress):
		outcome = outcomeSkipped
		j.logger.Info("analysis_job_skipped", "document_id", event.DocumentID, "reason", "in_progress")
		err = nil
	case domain.IsKind(err, domain.ErrInvalidState), domain.IsKind(err, domain.ErrDocumentNotFound):
		// Nothing a retry could fix; the document moved on or never existed.
		outcome = outcomeDropped
		j.logger.Warn("analysis_job_dropped", "document_id", event.DocumentID, "error", err)
		err = nil
	}

	j.metrics.FinishJob(outcome, j.now().Sub(started))
	return err
}

// runReaper fails stale analyses on every tick until ctx is done.
func runReaper(ctx context.Context, reaper ports.StaleAnalysisReaper, interval, olderThan time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reaped, err := reaper.FailStale(ctx, olderThan)
			if err != nil {
				logger.Error("stale_analysis_reap_failed", "error", err)
				continue
			}
			if reaped > 0 {
				logger.Warn("stale_analyses_failed", "count", reaped, "older_than", olderThan.String())
			}
		}
	}
}
