package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dreamerdocs/document-analysis/internal/core/domain"
)

// ResultCache stores analysis results as JSON under a per-document key.
type ResultCache struct {
	client *Client
	ttl    time.Duration
}

func NewResultCache(client *Client, ttl time.Duration) *ResultCache {
	return &ResultCache{client: client, ttl: ttl}
}

func (c *ResultCache) Get(ctx context.Context, documentID string) (*domain.AnalysisResult, bool, error) {
	raw, ok, err := c.client.Get(ctx, c.client.AnalysisKey(documentID))
	if err != nil {
		return nil, false, fmt.Errorf("get cached analysis: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	var result domain.AnalysisResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		// Callers treat this as a miss and overwrite the entry.
		return nil, false, fmt.Errorf("decode cached analysis: %w", err)
	}
	return &result, true, nil
}

func (c *ResultCache) Set(ctx context.Context, documentID string, result *domain.AnalysisResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}
	if err := c.client.Set(ctx, c.client.AnalysisKey(documentID), string(raw), c.ttl); err != nil {
		return fmt.Errorf("cache analysis: %w", err)
	}
	return nil
}
