// Package reporting serves the library statistics block: totals, active and
// overdue loans, pending reservations and the most-borrowed ranking.
package reporting

import (
	"context"
	"time"

	"biblioteca/internal/models"
	"biblioteca/internal/storage"
)

type Service interface {
	Stats(ctx context.Context) (*models.LibraryStats, error)
}

type service struct {
	store storage.StatsStore
}

func NewService(store storage.StatsStore) Service {
	return &service{store: store}
}

func (s *service) Stats(ctx context.Context) (*models.LibraryStats, error) {
	return s.store.Stats(ctx, time.Now().UTC())
}
