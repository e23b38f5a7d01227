package billing

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines persistence for bills, their items and payments.
type Repository interface {
	Create(ctx context.Context, b *Bill) error
	GetByID(ctx context.Context, id uuid.UUID) (*Bill, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Bill, error)
	GetByRegistration(ctx context.Context, registrationID uuid.UUID) (*Bill, error)
	Update(ctx context.Context, b *Bill) error
	ListItems(ctx context.Context, billID uuid.UUID) ([]*BillItem, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Bill, int, error)
	AddPayment(ctx context.Context, p *Payment) error
	ListPayments(ctx context.Context, billID uuid.UUID) ([]*Payment, error)
}

// DebtRepository defines persistence for debts.
type DebtRepository interface {
	Create(ctx context.Context, d *Debt) error
	GetByID(ctx context.Context, id uuid.UUID) (*Debt, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Debt, error)
	GetByBillID(ctx context.Context, billID uuid.UUID) (*Debt, error)
	Update(ctx context.Context, d *Debt) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Debt, error)
}

// ChargeItemRepository defines persistence for the charge catalog.
type ChargeItemRepository interface {
	Create(ctx context.Context, c *ChargeItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*ChargeItem, error)
	Update(ctx context.Context, c *ChargeItem) error
	List(ctx context.Context, activeOnly bool) ([]*ChargeItem, error)
}

// Consultations is the read contract billing needs from the consultation
// side: the medicine fees feeding into a new bill and the dispensed flag
// guarding refunds.
type Consultations interface {
	SumMedicineFees(ctx context.Context, registrationID uuid.UUID) (float64, error)
	AnyDispensed(ctx context.Context, registrationID uuid.UUID) (bool, error)
}

// Patients is the write contract for account-balance credits.
type Patients interface {
	CreditBalance(ctx context.Context, id uuid.UUID, amount float64) error
}
