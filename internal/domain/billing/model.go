package billing

import (
	"time"

	"github.com/google/uuid"
)

// BillStatus is the bill lifecycle state.
type BillStatus string

const (
	BillPending   BillStatus = "pending"
	BillPartial   BillStatus = "partial"
	BillPaid      BillStatus = "paid"
	BillRefunded  BillStatus = "refunded"
	BillCancelled BillStatus = "cancelled"
)

func (s BillStatus) Valid() bool {
	switch s {
	case BillPending, BillPartial, BillPaid, BillRefunded, BillCancelled:
		return true
	}
	return false
}

// DebtStatus is the debt lifecycle state.
type DebtStatus string

const (
	DebtOutstanding DebtStatus = "outstanding"
	DebtPartial     DebtStatus = "partial"
	DebtCleared     DebtStatus = "cleared"
	DebtWrittenOff  DebtStatus = "written_off"
)

func (s DebtStatus) Valid() bool {
	switch s {
	case DebtOutstanding, DebtPartial, DebtCleared, DebtWrittenOff:
		return true
	}
	return false
}

// ChargeItemType classifies catalog entries.
type ChargeItemType string

const (
	ChargeRegistration ChargeItemType = "registration"
	ChargeConsultation ChargeItemType = "consultation"
	ChargeMedicine     ChargeItemType = "medicine"
	ChargeTreatment    ChargeItemType = "treatment"
	ChargeCertificate  ChargeItemType = "certificate"
	ChargeOther        ChargeItemType = "other"
)

func (t ChargeItemType) Valid() bool {
	switch t {
	case ChargeRegistration, ChargeConsultation, ChargeMedicine,
		ChargeTreatment, ChargeCertificate, ChargeOther:
		return true
	}
	return false
}

// ChargeItem is a reusable catalog entry for billable services. Transactions
// reference entries but never mutate them.
type ChargeItem struct {
	ID          uuid.UUID      `json:"id"`
	Code        string         `json:"code"`
	Name        string         `json:"name"`
	Type        ChargeItemType `json:"item_type"`
	Description string         `json:"description,omitempty"`
	Price       float64        `json:"price"`
	IsActive    bool           `json:"is_active"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Bill is the payable record for one registration.
type Bill struct {
	ID             uuid.UUID  `json:"id"`
	BillNumber     string     `json:"bill_number"`
	PatientID      uuid.UUID  `json:"patient_id"`
	RegistrationID uuid.UUID  `json:"registration_id"`
	Subtotal       float64    `json:"subtotal"`
	Discount       float64    `json:"discount"`
	TotalAmount    float64    `json:"total_amount"`
	PaidAmount     float64    `json:"paid_amount"`
	BalanceDue     float64    `json:"balance_due"`
	Status         BillStatus `json:"status"`
	PaymentMethod  string     `json:"payment_method,omitempty"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
	CreatedBy      uuid.UUID  `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	Items []*BillItem `json:"items,omitempty"`
}

// Recalculate re-derives the monetary invariants. Every lifecycle operation
// calls this before saving so total_amount == subtotal - discount and
// balance_due == total_amount - paid_amount hold on every stored row.
func (b *Bill) Recalculate() {
	b.TotalAmount = b.Subtotal - b.Discount
	b.BalanceDue = b.TotalAmount - b.PaidAmount
}

// BillItem is one line of a bill. Items are written at bill creation and
// never updated afterwards.
type BillItem struct {
	ID             uuid.UUID  `json:"id"`
	BillID         uuid.UUID  `json:"bill_id"`
	ChargeItemID   *uuid.UUID `json:"charge_item_id,omitempty"`
	PrescriptionID *uuid.UUID `json:"prescription_id,omitempty"`
	Description    string     `json:"description"`
	Quantity       float64    `json:"quantity"`
	UnitPrice      float64    `json:"unit_price"`
	Subtotal       float64    `json:"subtotal"`
}

// Payment is an append-only ledger row. Positive amounts are payments,
// negative amounts are refunds or transfers to the patient account.
type Payment struct {
	ID              uuid.UUID `json:"id"`
	BillID          uuid.UUID `json:"bill_id"`
	Amount          float64   `json:"amount"`
	PaymentMethod   string    `json:"payment_method"`
	ReferenceNumber string    `json:"reference_number,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	CreatedBy       uuid.UUID `json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
}

// Debt tracks the unpaid remainder of a bill, one per bill at most.
// OriginalAmount is the balance at the time the debt first arose and is
// never overwritten by later partial payments.
type Debt struct {
	ID              uuid.UUID  `json:"id"`
	PatientID       uuid.UUID  `json:"patient_id"`
	BillID          uuid.UUID  `json:"bill_id"`
	OriginalAmount  float64    `json:"original_amount"`
	RemainingAmount float64    `json:"remaining_amount"`
	Status          DebtStatus `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// PayRequest records a payment against a bill.
type PayRequest struct {
	Amount          float64 `json:"amount"`
	PaymentMethod   string  `json:"payment_method"`
	ReferenceNumber string  `json:"reference_number"`
}

// RefundRequest reverses part or all of a bill's payments.
type RefundRequest struct {
	Amount         float64 `json:"amount"`
	Reason         string  `json:"reason"`
	StoreToAccount bool    `json:"store_to_account"`
}

// CreditRequest moves paid money onto the patient's account balance.
type CreditRequest struct {
	Amount float64 `json:"amount"`
}

// PayDebtRequest settles part or all of a tracked debt.
type PayDebtRequest struct {
	Amount        float64 `json:"amount"`
	PaymentMethod string  `json:"payment_method"`
}
