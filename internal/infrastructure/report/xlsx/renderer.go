package xlsx

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/dreamerdocs/document-analysis/internal/core/domain"
)

const (
	analysisSheet = "Analysis"
	documentSheet = "Document"
)

// sectionLabels are the row headings shown in the workbook.
var sectionLabels = map[domain.AnalysisKind]string{
	domain.KindSummary:     "Summary",
	domain.KindCharacter:   "Character analysis",
	domain.KindPlot:        "Plot analysis",
	domain.KindTheme:       "Theme analysis",
	domain.KindReadability: "Readability",
	domain.KindSentiment:   "Sentiment",
	domain.KindStyle:       "Style consistency",
}

type Renderer struct{}

func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render writes the analysis result as an XLSX workbook with an Analysis sheet
// (section, value, band) and a Document sheet with the billing details.
func (r *Renderer) Render(doc *domain.Document) ([]byte, error) {
	if doc == nil || doc.Result == nil {
		return nil, domain.WrapError(domain.ErrInvalidState, "render report", fmt.Errorf("document has no analysis result"))
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", analysisSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeAnalysisSheet(f, doc.Result); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(documentSheet); err != nil {
		return nil, fmt.Errorf("create document sheet: %w", err)
	}
	if err := writeDocumentSheet(f, doc); err != nil {
		return nil, err
	}
	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   doc.Title,
		Subject: "Document analysis",
		Creator: "document-analysis",
		Created: doc.Result.CreatedAt.UTC().Format(time.RFC3339),
	}); err != nil {
		return nil, fmt.Errorf("set document properties: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeAnalysisSheet(f *excelize.File, result *domain.AnalysisResult) error {
	if err := writeHeader(f, analysisSheet, "Section", "Value", "Band"); err != nil {
		return err
	}

	row := 2
	for _, kind := range result.Kinds() {
		section := result.Sections[kind]
		var value any = section.Text
		if section.Score != nil {
			value = *section.Score
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(analysisSheet, cell, &[]any{sectionLabels[kind], value, section.Band}); err != nil {
			return fmt.Errorf("write section %s: %w", kind, err)
		}
		row++
	}

	if err := f.SetColWidth(analysisSheet, "A", "A", 22); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetColWidth(analysisSheet, "B", "B", 90); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	return f.SetColWidth(analysisSheet, "C", "C", 18)
}

func writeDocumentSheet(f *excelize.File, doc *domain.Document) error {
	if err := writeHeader(f, documentSheet, "Field", "Value"); err != nil {
		return err
	}
	rows := [][]any{
		{"Document ID", doc.ID},
		{"Title", doc.Title},
		{"File name", doc.Filename},
		{"Characters", doc.CharCount},
		{"Cost", domain.DisplayAmount(doc.Cost, doc.Currency)},
		{"Model", doc.Result.Model},
		{"Analyzed at", doc.Result.CreatedAt.UTC().Format(time.RFC3339)},
	}
	for i, values := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(documentSheet, cell, &values); err != nil {
			return fmt.Errorf("write document row: %w", err)
		}
	}
	if err := f.SetColWidth(documentSheet, "A", "A", 16); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	return f.SetColWidth(documentSheet, "B", "B", 48)
}

func writeHeader(f *excelize.File, sheet string, titles ...string) error {
	values := make([]any, len(titles))
	for i, title := range titles {
		values[i] = title
	}
	if err := f.SetSheetRow(sheet, "A1", &values); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(titles), 1)
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	return nil
}
