package cache

import (
	"context"
	"time"

	"balcaopos/backend/internal/domain"
)

// DraftCache persists in-progress sale sessions per terminal so an
// interrupted terminal can resume where it left off.
type DraftCache interface {
	Get(ctx context.Context, terminalID string) (*domain.SaleSessionView, bool, error)
	Set(ctx context.Context, terminalID string, draft *domain.SaleSessionView, ttl time.Duration) error
	Delete(ctx context.Context, terminalID string) error
}

type NoopDraftCache struct{}

func (NoopDraftCache) Get(_ context.Context, _ string) (*domain.SaleSessionView, bool, error) {
	return nil, false, nil
}

func (NoopDraftCache) Set(_ context.Context, _ string, _ *domain.SaleSessionView, _ time.Duration) error {
	return nil
}

func (NoopDraftCache) Delete(_ context.Context, _ string) error {
	return nil
}
