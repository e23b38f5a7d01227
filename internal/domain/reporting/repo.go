package reporting

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository runs the aggregation queries backing the reports. All methods
// are read-only.
type Repository interface {
	DailySummary(ctx context.Context, day time.Time) (*DailySummary, error)
	MonthlySummary(ctx context.Context, year int, month time.Month) (*MonthlySummary, error)
	PharmacyReconciliation(ctx context.Context, pharmacyID uuid.UUID, from, to time.Time) (*PharmacyReconciliation, error)
}
