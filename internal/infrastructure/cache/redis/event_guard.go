package redis

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const webhookScope = "payment_webhook"

// EventGuard marks provider event ids so repeated deliveries are handled once.
type EventGuard struct {
	client *Client
	ttl    time.Duration
}

func NewEventGuard(client *Client, ttl time.Duration) *EventGuard {
	return &EventGuard{client: client, ttl: ttl}
}

// CheckAndMark returns true the first time an event id is seen within the TTL.
func (g *EventGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	first, err := g.client.SetNX(ctx, g.client.IdempotencyKey(webhookScope, eventID), time.Now().UTC().Format(time.RFC3339), g.ttl)
	if err != nil {
		return false, fmt.Errorf("mark webhook event: %w", err)
	}
	return first, nil
}

// Release forgets an event id so a redelivery is processed again.
func (g *EventGuard) Release(ctx context.Context, eventID string) error {
	if err := g.client.Del(ctx, g.client.IdempotencyKey(webhookScope, eventID)); err != nil {
		return fmt.Errorf("release webhook event: %w", err)
	}
	return nil
}
