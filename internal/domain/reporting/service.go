package reporting

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinio/clinio/internal/platform/apperr"
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Daily returns the summary for the given date string, defaulting to today.
func (s *Service) Daily(ctx context.Context, date string) (*DailySummary, error) {
	day := time.Now()
	if date != "" {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, apperr.Validation("date must be YYYY-MM-DD")
		}
		day = parsed
	}
	return s.repo.DailySummary(ctx, day)
}

// Monthly returns the summary for the given YYYY-MM month string.
func (s *Service) Monthly(ctx context.Context, month string) (*MonthlySummary, error) {
	parsed, err := time.Parse("2006-01", month)
	if err != nil {
		return nil, apperr.Validation("month must be YYYY-MM")
	}
	return s.repo.MonthlySummary(ctx, parsed.Year(), parsed.Month())
}

// Reconciliation reports dispensing order traffic for one pharmacy over an
// inclusive date range.
func (s *Service) Reconciliation(ctx context.Context, pharmacyID uuid.UUID, from, to string) (*PharmacyReconciliation, error) {
	fromDay, err := time.Parse("2006-01-02", from)
	if err != nil {
		return nil, apperr.Validation("from must be YYYY-MM-DD")
	}
	toDay, err := time.Parse("2006-01-02", to)
	if err != nil {
		return nil, apperr.Validation("to must be YYYY-MM-DD")
	}
	if toDay.Before(fromDay) {
		return nil, apperr.Validation("to must not be before from")
	}
	rec, err := s.repo.PharmacyReconciliation(ctx, pharmacyID, fromDay, toDay)
	if err != nil {
		return nil, apperr.NotFound("pharmacy not found")
	}
	return rec, nil
}
