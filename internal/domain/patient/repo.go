package patient

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines persistence operations for patients.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByChartNumber(ctx context.Context, chartNumber string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Search(ctx context.Context, query string, limit, offset int) ([]*Patient, int, error)
	// CreditBalance atomically adds amount (may be negative) to the
	// patient's balance.
	CreditBalance(ctx context.Context, id uuid.UUID, amount float64) error
}
