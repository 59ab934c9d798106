package httpadapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/dreamerdocs/document-analysis/internal/core/domain"
)

func TestMapErrorStatuses(t *testing.T) {
	cause := errors.New("cause")
	cases := []struct {
		name string
		err  error
		want int
		code string
	}{
		{"oversize wins over validation", domain.WrapError(domain.ErrValidation, "read upload", fmt.Errorf("%w: limit", domain.ErrFileTooLarge)), http.StatusRequestEntityTooLarge, "file_too_large"},
		{"body limit", &http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge, "file_too_large"},
		{"extraction", domain.WrapError(domain.ErrExtraction, "extract", cause), http.StatusBadRequest, "extraction_error"},
		{"invalid input", domain.WrapError(domain.ErrInvalidInput, "options", cause), http.StatusBadRequest, "validation_error"},
		{"signature", domain.WrapError(domain.ErrUnauthorized, "verify webhook", cause), http.StatusBadRequest, "invalid_signature"},
		{"not found", domain.WrapError(domain.ErrDocumentNotFound, "get", cause), http.StatusNotFound, "not_found"},
		{"invalid state", domain.WrapError(domain.ErrInvalidState, "pay", cause), http.StatusConflict, "invalid_state"},
		{"in progress", domain.WrapError(domain.ErrAlreadyInProgress, "analyze", cause), http.StatusAccepted, "already_in_progress"},
		{"payment failed", domain.WrapError(domain.ErrPaymentFailed, "confirm", cause), http.StatusPaymentRequired, "payment_failed"},
		{"analysis wins over timeout", domain.WrapError(domain.ErrAnalysisFailed, "analyze", domain.WrapError(domain.ErrTimeout, "llm", cause)), http.StatusBadGateway, "analysis_failed"},
		{"rate limited", domain.WrapError(domain.ErrRateLimited, "stripe", cause), http.StatusTooManyRequests, "rate_limited"},
		{"temporary", domain.WrapError(domain.ErrTemporary, "publish", cause), http.StatusServiceUnavailable, "unavailable"},
		{"timeout", domain.WrapError(domain.ErrTimeout, "stripe", cause), http.StatusGatewayTimeout, "timeout"},
		{"deadline", fmt.Errorf("load: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, "timeout"},
		{"provider", domain.WrapError(domain.ErrProvider, "stripe", cause), http.StatusBadGateway, "provider_error"},
		{"unknown", cause, http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := mapError(tc.err)
			if status != tc.want || body.Code != tc.code {
				t.Fatalf("mapError() = %d %q, want %d %q", status, body.Code, tc.want, tc.code)
			}
		})
	}
}

func TestMapErrorHidesInternalDetails(t *testing.T) {
	_, body := mapError(errors.New("pq: password authentication failed for user admin"))
	if body.Error != "internal error" {
		t.Fatalf("expected generic message, got %q", body.Error)
	}
}
