package consultation

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines persistence for consultations.
type Repository interface {
	Create(ctx context.Context, c *Consultation) error
	GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error)
	GetByRegistration(ctx context.Context, registrationID uuid.UUID) (*Consultation, error)
	Update(ctx context.Context, c *Consultation) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Consultation, int, error)
}

// PrescriptionRepository defines persistence for prescriptions and items.
type PrescriptionRepository interface {
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Prescription, error)
	Update(ctx context.Context, p *Prescription) error
	ListItems(ctx context.Context, prescriptionID uuid.UUID) ([]*PrescriptionItem, error)
	ListByConsultation(ctx context.Context, consultationID uuid.UUID) ([]*Prescription, error)
	// SumMedicineFeesByRegistration totals medicine fees across all
	// prescriptions of the registration's consultation.
	SumMedicineFeesByRegistration(ctx context.Context, registrationID uuid.UUID) (float64, error)
	// AnyDispensedByRegistration reports whether any prescription of the
	// registration's consultation has been dispensed.
	AnyDispensedByRegistration(ctx context.Context, registrationID uuid.UUID) (bool, error)
}

// CertificateRepository defines persistence for certificates.
type CertificateRepository interface {
	Create(ctx context.Context, c *Certificate) error
	GetByID(ctx context.Context, id uuid.UUID) (*Certificate, error)
	Update(ctx context.Context, c *Certificate) error
	ListByConsultation(ctx context.Context, consultationID uuid.UUID) ([]*Certificate, error)
}

// Inventory is the stock contract dispensing relies on.
type Inventory interface {
	DispenseStock(ctx context.Context, medicineID uuid.UUID, quantity float64, referenceNumber string, actor uuid.UUID) error
	StockQuantity(ctx context.Context, medicineID uuid.UUID) (float64, error)
}
