package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dreamerdocs/document-analysis/internal/core/domain"
)

const maxJSONBodyBytes = 64 << 10

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// decodeJSONBody decodes and validates a request body. An empty body leaves
// dest at its zero value when allowEmpty is set.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dest any, allowEmpty bool) error {
	body := http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	defer func() {
		_, _ = io.Copy(io.Discard, body)
	}()

	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		if !(allowEmpty && errors.Is(err, io.EOF)) {
			return domain.WrapError(domain.ErrValidation, "decode request body", err)
		}
	}
	if err := validate.Struct(dest); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

func formatValidationErrors(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return domain.WrapError(domain.ErrValidation, "validate request", err)
	}
	parts := make([]string, 0, len(errs))
	for _, fieldErr := range errs {
		parts = append(parts, fieldErr.Field()+" "+validationMessage(fieldErr))
	}
	return domain.WrapError(domain.ErrValidation, "validate request", errors.New(strings.Join(parts, "; ")))
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	}
	return "is invalid"
}

// analysisOptionsRequest accepts either an explicit list of kinds or the
// per-section flags. Flags default to enabled; the summary is always included.
type analysisOptionsRequest struct {
	Options               []string `json:"options" validate:"omitempty,max=7,dive,oneof=summary character plot theme readability sentiment style"`
	CharacterAnalysis     *bool    `json:"character_analysis"`
	PlotAnalysis          *bool    `json:"plot_analysis"`
	ThemeAnalysis         *bool    `json:"theme_analysis"`
	ReadabilityAssessment *bool    `json:"readability_assessment"`
	SentimentAnalysis     *bool    `json:"sentiment_analysis"`
	StyleConsistency      *bool    `json:"style_consistency"`
}

func (req analysisOptionsRequest) toDomain() domain.AnalysisOptions {
	if len(req.Options) > 0 {
		out := make(domain.AnalysisOptions, 0, len(req.Options))
		for _, kind := range req.Options {
			out = append(out, domain.AnalysisKind(kind))
		}
		return out
	}

	flags := []struct {
		kind domain.AnalysisKind
		flag *bool
	}{
		{domain.KindCharacter, req.CharacterAnalysis},
		{domain.KindPlot, req.PlotAnalysis},
		{domain.KindTheme, req.ThemeAnalysis},
		{domain.KindReadability, req.ReadabilityAssessment},
		{domain.KindSentiment, req.SentimentAnalysis},
		{domain.KindStyle, req.StyleConsistency},
	}
	anySet := false
	for _, f := range flags {
		if f.flag != nil {
			anySet = true
			break
		}
	}
	if !anySet {
		return nil
	}
	out := domain.AnalysisOptions{domain.KindSummary}
	for _, f := range flags {
		if f.flag == nil || *f.flag {
			out = append(out, f.kind)
		}
	}
	return out
}

type confirmPaymentRequest struct {
	PaymentIntentID string `json:"payment_intent_id" validate:"required,max=255"`
}

type listQuery struct {
	Limit  int `validate:"min=1,max=100"`
	Offset int `validate:"min=0"`
}

type documentResponse struct {
	ID              string                 `json:"id"`
	Title           string                 `json:"title"`
	Filename        string                 `json:"filename"`
	MimeType        string                 `json:"mime_type"`
	FileSize        int64                  `json:"file_size"`
	CharCount       int                    `json:"char_count"`
	Cost            int64                  `json:"cost"`
	DisplayPrice    string                 `json:"display_price"`
	Currency        string                 `json:"currency"`
	Status          domain.DocumentStatus  `json:"status"`
	PaymentIntentID string                 `json:"payment_intent_id,omitempty"`
	Options         domain.AnalysisOptions `json:"analysis_options,omitempty"`
	Error           string                 `json:"error,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

func toDocumentResponse(doc *domain.Document) documentResponse {
	return documentResponse{
		ID:              doc.ID,
		Title:           doc.Title,
		Filename:        doc.Filename,
		MimeType:        doc.MimeType,
		FileSize:        doc.FileSize,
		CharCount:       doc.CharCount,
		Cost:            doc.Cost,
		DisplayPrice:    domain.DisplayAmount(doc.Cost, doc.Currency),
		Currency:        doc.Currency,
		Status:          doc.Status,
		PaymentIntentID: doc.PaymentIntentID,
		Options:         doc.Options,
		Error:           doc.Error,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}
}

type listResponse struct {
	Documents []documentResponse `json:"documents"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
}

type analysisResponse struct {
	DocumentID string                 `json:"document_id"`
	Status     domain.DocumentStatus  `json:"status"`
	Error      string                 `json:"error,omitempty"`
	Result     *domain.AnalysisResult `json:"result,omitempty"`
}
