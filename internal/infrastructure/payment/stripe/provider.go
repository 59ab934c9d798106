package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"

	"github.com/dreamerdocs/document-analysis/internal/core/domain"
	"github.com/dreamerdocs/document-analysis/internal/infrastructure/resilience"
)

const documentIDMetadataKey = "document_id"

type Config struct {
	SecretKey      string
	PublishableKey string
	WebhookSecret  string
}

// Provider creates and reads payment intents through the Stripe API.
type Provider struct {
	publishableKey string
	executor       *resilience.Executor

	newIntent func(*stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	getIntent func(string, *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

func NewProvider(cfg Config, executor *resilience.Executor) (*Provider, error) {
	secret := strings.TrimSpace(cfg.SecretKey)
	if secret == "" {
		return nil, errors.New("stripe secret key is required")
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	stripe.Key = secret

	return &Provider{
		publishableKey: strings.TrimSpace(cfg.PublishableKey),
		executor:       executor,
		newIntent:      paymentintent.New,
		getIntent:      paymentintent.Get,
	}, nil
}

func (p *Provider) PublishableKey() string {
	return p.publishableKey
}

func (p *Provider) CreatePaymentIntent(ctx context.Context, req domain.PaymentIntentRequest) (*domain.PaymentIntent, error) {
	if req.Amount <= 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "create payment intent", fmt.Errorf("amount %d", req.Amount))
	}

	intent, err := resilience.Do(ctx, p.executor, "stripe.payment_intent.create", func(callCtx context.Context) (*stripe.PaymentIntent, error) {
		params := &stripe.PaymentIntentParams{
			Amount:   stripe.Int64(req.Amount),
			Currency: stripe.String(strings.ToLower(req.Currency)),
			AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
				Enabled: stripe.Bool(true),
			},
		}
		params.Context = callCtx
		params.AddMetadata(documentIDMetadataKey, req.DocumentID)
		if req.IdempotencyKey != "" {
			params.SetIdempotencyKey(req.IdempotencyKey)
		}
		return p.newIntent(params)
	}, classifyStripeError)
	if err != nil {
		return nil, mapStripeError("create payment intent", err)
	}
	return toDomainIntent(intent), nil
}

func (p *Provider) GetPaymentIntent(ctx context.Context, id string) (*domain.PaymentIntent, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "get payment intent", errors.New("empty payment intent id"))
	}

	intent, err := resilience.Do(ctx, p.executor, "stripe.payment_intent.get", func(callCtx context.Context) (*stripe.PaymentIntent, error) {
		params := &stripe.PaymentIntentParams{}
		params.Context = callCtx
		return p.getIntent(id, params)
	}, classifyStripeError)
	if err != nil {
		return nil, mapStripeError("get payment intent", err)
	}
	return toDomainIntent(intent), nil
}

func toDomainIntent(intent *stripe.PaymentIntent) *domain.PaymentIntent {
	if intent == nil {
		return nil
	}
	return &domain.PaymentIntent{
		ID:           intent.ID,
		DocumentID:   intent.Metadata[documentIDMetadataKey],
		ClientSecret: intent.ClientSecret,
		Amount:       intent.Amount,
		Currency:     string(intent.Currency),
		Status:       toDomainStatus(intent.Status),
	}
}

// toDomainStatus collapses Stripe's intent lifecycle into the three outcomes
// the payment gate understands.
func toDomainStatus(status stripe.PaymentIntentStatus) domain.PaymentStatus {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return domain.PaymentSucceeded
	case stripe.PaymentIntentStatusCanceled:
		return domain.PaymentFailed
	default:
		return domain.PaymentPending
	}
}

func classifyStripeError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode == 0 || resilience.IsRetryableHTTPStatus(stripeErr.HTTPStatusCode) {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}

	// Transport failures surface as plain errors from the SDK backend.
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}

func mapStripeError(operation string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.WrapError(domain.ErrTimeout, operation, err)
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == 429 {
		return domain.WrapError(domain.ErrRateLimited, operation, err)
	}
	if wrapped := resilience.WrapTemporary(operation, err, classifyStripeError); domain.IsKind(wrapped, domain.ErrTemporary) {
		return wrapped
	}
	return domain.WrapError(domain.ErrProvider, operation, err)
}
