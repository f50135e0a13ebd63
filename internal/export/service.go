package export

import (
	"context"
	"fmt"
	"time"

	"github.com/fgrust/zero-liquid/internal/domain"
	"github.com/fgrust/zero-liquid/internal/store"
)

// Service generates fill reports from settlement history.
type Service struct {
	store store.Store
}

// NewService creates a report service over the host store.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// Generate builds the report for the UTC day containing date.
func (s *Service) Generate(ctx context.Context, date time.Time) (Report, error) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	var fills []domain.Fill
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		fills, err = tx.FillsBetween(ctx, day, day.AddDate(0, 0, 1))
		return err
	})
	if err != nil {
		return Report{}, fmt.Errorf("loading fills: %w", err)
	}

	return BuildReport(day, fills), nil
}
