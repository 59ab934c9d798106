package domain

import "time"

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
)

func (s PaymentStatus) Valid() bool {
	return s == PaymentPending || s == PaymentSucceeded || s == PaymentFailed
}

// PaymentIntent is the provider-side entity. It is read, never mutated.
type PaymentIntent struct {
	ID           string        `json:"id"`
	DocumentID   string        `json:"document_id,omitempty"`
	ClientSecret string        `json:"-"`
	Amount       int64         `json:"amount"`
	Currency     string        `json:"currency"`
	Status       PaymentStatus `json:"status"`
}

type PaymentIntentRequest struct {
	DocumentID     string
	Amount         int64
	Currency       string
	IdempotencyKey string
}

// PaymentSession is what a client needs to drive the provider's payment UI.
type PaymentSession struct {
	DocumentID      string `json:"document_id"`
	PaymentIntentID string `json:"payment_intent_id"`
	ClientSecret    string `json:"client_secret"`
	PublishableKey  string `json:"publishable_key,omitempty"`
	Amount          int64  `json:"amount"`
	DisplayAmount   string `json:"display_amount"`
	Currency        string `json:"currency"`
}

// PaymentConfirmation is one (possibly repeated) delivery of a payment outcome.
type PaymentConfirmation struct {
	DocumentID      string
	PaymentIntentID string
	Status          PaymentStatus
	Amount          int64
}

type PaymentEventType string

const (
	PaymentEventSucceeded PaymentEventType = "payment_intent.succeeded"
	PaymentEventFailed    PaymentEventType = "payment_intent.payment_failed"
)

// PaymentEvent is a verified provider notification.
type PaymentEvent struct {
	ID     string
	Type   PaymentEventType
	Intent *PaymentIntent
}

// DocumentPaid announces that a document reached paid and can be analyzed.
type DocumentPaid struct {
	DocumentID string    `json:"document_id"`
	PaidAt     time.Time `json:"paid_at"`
}
