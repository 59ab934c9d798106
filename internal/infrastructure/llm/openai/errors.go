package openai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dreamerdocs/document-analysis/internal/core/domain"
	"github.com/dreamerdocs/document-analysis/internal/infrastructure/resilience"
)

// HTTPStatusError is a non-2xx answer from the chat completions endpoint.
type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
	RetryAfter time.Duration
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "llm status error"
	}
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("llm %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("llm %s status: %s: %s", e.Operation, e.Status, body)
}

func classifyLLMError(err error) resilience.ErrorClassification {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if !resilience.IsRetryableHTTPStatus(statusErr.StatusCode) {
			// 4xx answers are about the request, not provider health.
			return resilience.ErrorClassification{}
		}
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
			RetryAfter:    statusErr.RetryAfter,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{RecordFailure: true}
}

// mapLLMError assigns the provider error kinds the analysis workflow reports.
func mapLLMError(operation string, err error) error {
	kind := domain.ErrProvider
	var (
		netErr    net.Error
		statusErr *HTTPStatusError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = domain.ErrTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = domain.ErrTimeout
	case errors.As(err, &statusErr):
		switch statusErr.StatusCode {
		case http.StatusTooManyRequests:
			kind = domain.ErrRateLimited
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			kind = domain.ErrTimeout
		}
	}
	return domain.WrapError(kind, operation, err)
}
