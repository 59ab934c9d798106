package usecase

import (
	"context"
	"fmt"

	"github.com/dreamerdocs/document-analysis/internal/core/domain"
	"github.com/dreamerdocs/document-analysis/internal/core/ports"
)

type ReportUseCase struct {
	analysis ports.AnalysisService
	renderer ports.ReportRenderer
}

func NewReportUseCase(analysis ports.AnalysisService, renderer ports.ReportRenderer) *ReportUseCase {
	return &ReportUseCase{analysis: analysis, renderer: renderer}
}

func (uc *ReportUseCase) Export(ctx context.Context, documentID string) (*domain.Document, []byte, error) {
	doc, err := uc.analysis.Result(ctx, documentID)
	if err != nil {
		return nil, nil, err
	}
	if doc.Status != domain.StatusAnalyzed || doc.Result == nil {
		return nil, nil, invalidState("export report", doc, domain.StatusAnalyzed)
	}
	data, err := uc.renderer.Render(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("render report: %w", err)
	}
	return doc, data, nil
}
