package stripe

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/dreamerdocs/document-analysis/internal/core/domain"
)

// WebhookVerifier checks the Stripe-Signature header and decodes
// payment_intent events.
type WebhookVerifier struct {
	secret string
}

func NewWebhookVerifier(secret string) (*WebhookVerifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("stripe webhook secret is required")
	}
	return &WebhookVerifier{secret: secret}, nil
}

func (v *WebhookVerifier) ParseEvent(payload []byte, signature string) (*domain.PaymentEvent, error) {
	if strings.TrimSpace(signature) == "" {
		return nil, domain.WrapError(domain.ErrUnauthorized, "verify webhook", errors.New("stripe signature missing"))
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrUnauthorized, "verify webhook", err)
	}

	out := &domain.PaymentEvent{
		ID:   event.ID,
		Type: domain.PaymentEventType(event.Type),
	}
	if !strings.HasPrefix(string(event.Type), "payment_intent.") || event.Data == nil {
		return out, nil
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "decode webhook", fmt.Errorf("payment intent: %w", err))
	}
	out.Intent = toDomainIntent(&intent)
	return out, nil
}
