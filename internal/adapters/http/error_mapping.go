package httpadapter

import (
	"context"
	"errors"
	"net/http"

	"github.com/dreamerdocs/document-analysis/internal/core/domain"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// mapError turns a domain error into a status, a stable code and a message
// safe to show to the caller. Order matters: wrapped errors can carry
// several kinds, and the most specific one wins.
func mapError(err error) (int, errorBody) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge), domain.IsKind(err, domain.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, errorBody{Error: "file exceeds the upload limit", Code: "file_too_large"}
	case domain.IsKind(err, domain.ErrUnsupportedFormat):
		return http.StatusBadRequest, errorBody{Error: "only PDF and DOCX files are supported", Code: "unsupported_format"}
	case domain.IsKind(err, domain.ErrExtraction):
		return http.StatusBadRequest, errorBody{Error: "could not read text from the document", Code: "extraction_error"}
	case domain.IsKind(err, domain.ErrValidation), domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, errorBody{Error: err.Error(), Code: "validation_error"}
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusBadRequest, errorBody{Error: "invalid signature", Code: "invalid_signature"}
	case domain.IsKind(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound, errorBody{Error: "document not found", Code: "not_found"}
	case domain.IsKind(err, domain.ErrInvalidState):
		return http.StatusConflict, errorBody{Error: err.Error(), Code: "invalid_state"}
	case domain.IsKind(err, domain.ErrAlreadyInProgress):
		return http.StatusAccepted, errorBody{Error: "analysis already in progress", Code: "already_in_progress"}
	case domain.IsKind(err, domain.ErrPaymentFailed):
		return http.StatusPaymentRequired, errorBody{Error: "payment was not completed", Code: "payment_failed"}
	case domain.IsKind(err, domain.ErrAnalysisFailed):
		return http.StatusBadGateway, errorBody{Error: "analysis failed", Code: "analysis_failed"}
	case domain.IsKind(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, errorBody{Error: "upstream rate limit reached, retry later", Code: "rate_limited"}
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable, errorBody{Error: "service temporarily unavailable", Code: "unavailable"}
	case domain.IsKind(err, domain.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, errorBody{Error: "upstream timed out", Code: "timeout"}
	case domain.IsKind(err, domain.ErrProvider):
		return http.StatusBadGateway, errorBody{Error: "upstream provider error", Code: "provider_error"}
	default:
		return http.StatusInternalServerError, errorBody{Error: "internal error", Code: "internal"}
	}
}
