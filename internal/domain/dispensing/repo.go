package dispensing

import (
	"context"

	"github.com/google/uuid"
)

// PharmacyRepository defines persistence for the pharmacy catalog.
type PharmacyRepository interface {
	Create(ctx context.Context, p *ExternalPharmacy) error
	GetByID(ctx context.Context, id uuid.UUID) (*ExternalPharmacy, error)
	Update(ctx context.Context, p *ExternalPharmacy) error
	List(ctx context.Context, activeOnly bool) ([]*ExternalPharmacy, error)
}

// OrderRepository defines persistence for dispensing orders.
type OrderRepository interface {
	Create(ctx context.Context, o *DispensingOrder) error
	GetByID(ctx context.Context, id uuid.UUID) (*DispensingOrder, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*DispensingOrder, error)
	GetByClientOrderID(ctx context.Context, clientOrderID uuid.UUID) (*DispensingOrder, error)
	Update(ctx context.Context, o *DispensingOrder) error
	ListByPrescription(ctx context.Context, prescriptionID uuid.UUID) ([]*DispensingOrder, error)
	List(ctx context.Context, status OrderStatus, limit, offset int) ([]*DispensingOrder, int, error)
	// PrescriptionInfo loads the prescription slice needed to build the
	// outbound payload: number, dose count, pharmacy and medicine lines.
	PrescriptionInfo(ctx context.Context, prescriptionID uuid.UUID) (*PrescriptionInfo, error)
}
