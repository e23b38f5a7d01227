package patient

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinio/clinio/internal/platform/apperr"
	"github.com/clinio/clinio/internal/platform/db"
)

type Service struct {
	patients Repository
	numbers  db.NumberGenerator
}

func NewService(patients Repository, numbers db.NumberGenerator) *Service {
	return &Service{patients: patients, numbers: numbers}
}

var validGenders = map[string]bool{"male": true, "female": true, "other": true}

func (s *Service) Create(ctx context.Context, p *Patient, createdBy uuid.UUID) (*Patient, error) {
	if p.Name == "" {
		return nil, apperr.Validation("name is required")
	}
	if p.Gender == "" {
		p.Gender = "other"
	}
	if !validGenders[p.Gender] {
		return nil, apperr.Validation("invalid gender: " + p.Gender)
	}

	chartNumber, err := s.numbers.NextNumber(ctx, "P", time.Now())
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "allocate chart number", err)
	}
	p.ChartNumber = chartNumber
	p.Balance = 0
	p.IsActive = true
	if createdBy != uuid.Nil {
		p.CreatedBy = &createdBy
	}

	if err := s.patients.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.NotFound("patient not found")
	}
	return p, nil
}

func (s *Service) GetByChartNumber(ctx context.Context, chartNumber string) (*Patient, error) {
	p, err := s.patients.GetByChartNumber(ctx, chartNumber)
	if err != nil {
		return nil, apperr.NotFound("patient not found")
	}
	return p, nil
}

func (s *Service) Update(ctx context.Context, p *Patient) error {
	if p.Gender != "" && !validGenders[p.Gender] {
		return apperr.Validation("invalid gender: " + p.Gender)
	}
	existing, err := s.patients.GetByID(ctx, p.ID)
	if err != nil {
		return apperr.NotFound("patient not found")
	}
	p.ChartNumber = existing.ChartNumber
	p.Balance = existing.Balance
	return s.patients.Update(ctx, p)
}

func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return apperr.NotFound("patient not found")
	}
	p.IsActive = false
	return s.patients.Update(ctx, p)
}

func (s *Service) Search(ctx context.Context, query string, limit, offset int) ([]*Patient, int, error) {
	return s.patients.Search(ctx, query, limit, offset)
}
