package registration

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AppointmentRepository defines persistence for appointments.
type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	ListByDate(ctx context.Context, date time.Time, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
}

// Repository defines persistence for registrations.
type Repository interface {
	Create(ctx context.Context, r *Registration) error
	GetByID(ctx context.Context, id uuid.UUID) (*Registration, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Registration, error)
	Update(ctx context.Context, r *Registration) error
	ListByDate(ctx context.Context, date time.Time, doctorID uuid.UUID, room string, limit, offset int) ([]*Registration, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Registration, int, error)
}

// BillCreator is billing's write contract used when a consultation ends.
// Implementations must be idempotent per registration.
type BillCreator interface {
	CreateBillForRegistration(ctx context.Context, registrationID, patientID uuid.UUID, actor uuid.UUID) error
}
