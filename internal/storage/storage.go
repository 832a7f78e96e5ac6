// Package storage defines the delivery journal interface and its implementations.
package storage

import (
	"context"

	"telemux/internal/model"
)

// Journal records the outcome of every processed update.
type Journal interface {
	Record(ctx context.Context, d *model.Delivery) error
	ListRecent(ctx context.Context, limit int) ([]model.Delivery, error)
	CountByOutcome(ctx context.Context) (map[model.Outcome]int, error)

	Close() error
}
