package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinio/clinio/internal/platform/apperr"
	"github.com/clinio/clinio/internal/platform/db"
	"github.com/clinio/clinio/internal/platform/metrics"
)

type Service struct {
	bills         Repository
	debts         DebtRepository
	charges       ChargeItemRepository
	consultations Consultations
	patients      Patients
	numbers       db.NumberGenerator
	tx            db.Transactor
	metrics       *metrics.Metrics
	logger        zerolog.Logger

	consultationFee float64
}

func NewService(bills Repository, debts DebtRepository, charges ChargeItemRepository,
	consultations Consultations, patients Patients, numbers db.NumberGenerator,
	tx db.Transactor, m *metrics.Metrics, logger zerolog.Logger, consultationFee float64) *Service {
	return &Service{
		bills:           bills,
		debts:           debts,
		charges:         charges,
		consultations:   consultations,
		patients:        patients,
		numbers:         numbers,
		tx:              tx,
		metrics:         m,
		logger:          logger,
		consultationFee: consultationFee,
	}
}

// CreateBillForRegistration builds the bill for a completed registration:
// the consultation fee plus the summed medicine fees of its prescriptions.
// Idempotent per registration; a second call is a no-op.
func (s *Service) CreateBillForRegistration(ctx context.Context, registrationID, patientID uuid.UUID, actor uuid.UUID) error {
	if existing, err := s.bills.GetByRegistration(ctx, registrationID); err == nil && existing != nil {
		return nil
	}

	medicineFees, err := s.consultations.SumMedicineFees(ctx, registrationID)
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, "sum medicine fees", err)
	}

	number, err := s.numbers.NextNumber(ctx, "B", time.Now())
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, "allocate bill number", err)
	}

	bill := &Bill{
		BillNumber:     number,
		PatientID:      patientID,
		RegistrationID: registrationID,
		Subtotal:       s.consultationFee + medicineFees,
		Status:         BillPending,
		CreatedBy:      actor,
		Items: []*BillItem{
			{Description: "Consultation fee", Quantity: 1, UnitPrice: s.consultationFee, Subtotal: s.consultationFee},
		},
	}
	if medicineFees > 0 {
		bill.Items = append(bill.Items, &BillItem{
			Description: "Medicine fee",
			Quantity:    1,
			UnitPrice:   medicineFees,
			Subtotal:    medicineFees,
		})
	}
	bill.Recalculate()

	if err := s.bills.Create(ctx, bill); err != nil {
		return err
	}
	s.logger.Info().
		Str("bill_number", bill.BillNumber).
		Str("registration_id", registrationID.String()).
		Float64("total", bill.TotalAmount).
		Msg("bill created")
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Bill, error) {
	b, err := s.bills.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.NotFound("bill not found")
	}
	items, err := s.bills.ListItems(ctx, id)
	if err != nil {
		return nil, err
	}
	b.Items = items
	return b, nil
}

func (s *Service) GetByRegistration(ctx context.Context, registrationID uuid.UUID) (*Bill, error) {
	b, err := s.bills.GetByRegistration(ctx, registrationID)
	if err != nil {
		return nil, apperr.NotFound("bill not found")
	}
	return b, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Bill, int, error) {
	return s.bills.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListPayments(ctx context.Context, billID uuid.UUID) ([]*Payment, error) {
	if _, err := s.bills.GetByID(ctx, billID); err != nil {
		return nil, apperr.NotFound("bill not found")
	}
	return s.bills.ListPayments(ctx, billID)
}

// Pay records a payment against a bill and mirrors any remaining balance
// into the debt ledger. A full payment clears the linked debt.
func (s *Service) Pay(ctx context.Context, billID uuid.UUID, req PayRequest, actor uuid.UUID) (*Bill, error) {
	if req.Amount <= 0 {
		return nil, apperr.Validation("amount must be positive")
	}
	if req.PaymentMethod == "" {
		return nil, apperr.Validation("payment_method is required")
	}

	var out *Bill
	err := s.tx(ctx, func(ctx context.Context) error {
		bill, err := s.bills.GetByIDForUpdate(ctx, billID)
		if err != nil {
			return apperr.NotFound("bill not found")
		}
		if bill.Status == BillCancelled {
			return apperr.Conflict("cannot pay a cancelled bill")
		}

		if err := s.bills.AddPayment(ctx, &Payment{
			BillID:          bill.ID,
			Amount:          req.Amount,
			PaymentMethod:   req.PaymentMethod,
			ReferenceNumber: req.ReferenceNumber,
			CreatedBy:       actor,
		}); err != nil {
			return err
		}

		bill.PaidAmount += req.Amount
		bill.Recalculate()
		if bill.BalanceDue <= 0 {
			now := time.Now()
			bill.Status = BillPaid
			bill.PaidAt = &now
			bill.PaymentMethod = req.PaymentMethod
		} else if bill.PaidAmount > 0 {
			bill.Status = BillPartial
		}
		if err := s.bills.Update(ctx, bill); err != nil {
			return err
		}

		if bill.BalanceDue > 0 {
			if err := s.upsertDebt(ctx, bill); err != nil {
				return err
			}
		} else {
			if err := s.clearDebt(ctx, bill.ID); err != nil {
				return err
			}
		}
		out = bill
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.PaymentsRecorded.Inc()
	}
	return out, nil
}

// upsertDebt records the bill's open balance in the debt ledger. The first
// snapshot fixes original_amount; later partial payments only move
// remaining_amount.
func (s *Service) upsertDebt(ctx context.Context, bill *Bill) error {
	debt, err := s.debts.GetByBillID(ctx, bill.ID)
	if err != nil {
		return s.debts.Create(ctx, &Debt{
			PatientID:       bill.PatientID,
			BillID:          bill.ID,
			OriginalAmount:  bill.BalanceDue,
			RemainingAmount: bill.BalanceDue,
			Status:          DebtOutstanding,
		})
	}
	debt.RemainingAmount = bill.BalanceDue
	if debt.RemainingAmount < debt.OriginalAmount {
		debt.Status = DebtPartial
	} else {
		debt.Status = DebtOutstanding
	}
	return s.debts.Update(ctx, debt)
}

// clearDebt zeroes the debt linked to a fully paid bill, if one exists.
func (s *Service) clearDebt(ctx context.Context, billID uuid.UUID) error {
	debt, err := s.debts.GetByBillID(ctx, billID)
	if err != nil {
		return nil
	}
	if debt.Status == DebtCleared {
		return nil
	}
	debt.RemainingAmount = 0
	debt.Status = DebtCleared
	if err := s.debts.Update(ctx, debt); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.DebtsSettled.Inc()
	}
	return nil
}

// Refund reverses part or all of a bill's payments. Bills whose
// prescriptions have been dispensed are refund-locked.
func (s *Service) Refund(ctx context.Context, billID uuid.UUID, req RefundRequest, actor uuid.UUID) (*Bill, error) {
	if req.Amount <= 0 {
		return nil, apperr.Validation("amount must be positive")
	}

	var out *Bill
	err := s.tx(ctx, func(ctx context.Context) error {
		bill, err := s.bills.GetByIDForUpdate(ctx, billID)
		if err != nil {
			return apperr.NotFound("bill not found")
		}

		dispensed, err := s.consultations.AnyDispensed(ctx, bill.RegistrationID)
		if err != nil {
			return apperr.Wrap(apperr.CodeInternal, "check dispensed prescriptions", err)
		}
		if dispensed {
			return apperr.Validation("bill has dispensed prescriptions and cannot be refunded")
		}
		if req.Amount > bill.PaidAmount {
			return apperr.Validation("refund exceeds paid amount")
		}

		if err := s.bills.AddPayment(ctx, &Payment{
			BillID:        bill.ID,
			Amount:        -req.Amount,
			PaymentMethod: bill.PaymentMethod,
			Notes:         req.Reason,
			CreatedBy:     actor,
		}); err != nil {
			return err
		}

		bill.PaidAmount -= req.Amount
		bill.Recalculate()
		if bill.PaidAmount <= 0 {
			bill.Status = BillRefunded
		} else {
			bill.Status = BillPartial
		}
		if err := s.bills.Update(ctx, bill); err != nil {
			return err
		}

		if req.StoreToAccount {
			if err := s.patients.CreditBalance(ctx, bill.PatientID, req.Amount); err != nil {
				return apperr.Wrap(apperr.CodeInternal, "credit patient balance", err)
			}
		}
		out = bill
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RefundsIssued.Inc()
	}
	return out, nil
}

// CreditToAccount moves part of the paid amount onto the patient's account
// balance for use against future bills.
func (s *Service) CreditToAccount(ctx context.Context, billID uuid.UUID, amount float64, actor uuid.UUID) (*Bill, error) {
	if amount <= 0 {
		return nil, apperr.Validation("amount must be positive")
	}

	var out *Bill
	err := s.tx(ctx, func(ctx context.Context) error {
		bill, err := s.bills.GetByIDForUpdate(ctx, billID)
		if err != nil {
			return apperr.NotFound("bill not found")
		}
		if amount > bill.PaidAmount {
			return apperr.Validation("amount exceeds paid amount")
		}

		if err := s.patients.CreditBalance(ctx, bill.PatientID, amount); err != nil {
			return apperr.Wrap(apperr.CodeInternal, "credit patient balance", err)
		}
		if err := s.bills.AddPayment(ctx, &Payment{
			BillID:        bill.ID,
			Amount:        -amount,
			PaymentMethod: "account_credit",
			Notes:         "transferred to patient account",
			CreatedBy:     actor,
		}); err != nil {
			return err
		}

		bill.PaidAmount -= amount
		bill.Recalculate()
		if bill.PaidAmount <= 0 {
			bill.Status = BillPending
		} else if bill.BalanceDue > 0 {
			bill.Status = BillPartial
		}
		if err := s.bills.Update(ctx, bill); err != nil {
			return err
		}
		out = bill
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Cancel voids an unpaid bill. Cancelling an already-cancelled bill is a
// no-op; a paid bill cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, billID uuid.UUID) (*Bill, error) {
	var out *Bill
	err := s.tx(ctx, func(ctx context.Context) error {
		bill, err := s.bills.GetByIDForUpdate(ctx, billID)
		if err != nil {
			return apperr.NotFound("bill not found")
		}
		switch bill.Status {
		case BillPaid:
			return apperr.Conflict("cannot cancel a paid bill")
		case BillCancelled:
			out = bill
			return nil
		}
		bill.Status = BillCancelled
		if err := s.bills.Update(ctx, bill); err != nil {
			return err
		}
		out = bill
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PayDebt settles part or all of a tracked debt. Every debt payment is
// mirrored into the linked bill so the two ledgers stay consistent.
func (s *Service) PayDebt(ctx context.Context, debtID uuid.UUID, req PayDebtRequest, actor uuid.UUID) (*Debt, error) {
	if req.Amount <= 0 {
		return nil, apperr.Validation("amount must be positive")
	}
	if req.PaymentMethod == "" {
		return nil, apperr.Validation("payment_method is required")
	}

	var out *Debt
	err := s.tx(ctx, func(ctx context.Context) error {
		debt, err := s.debts.GetByIDForUpdate(ctx, debtID)
		if err != nil {
			return apperr.NotFound("debt not found")
		}
		if debt.Status == DebtCleared || debt.Status == DebtWrittenOff {
			return apperr.Conflict("debt is already settled")
		}
		bill, err := s.bills.GetByIDForUpdate(ctx, debt.BillID)
		if err != nil {
			return apperr.Wrap(apperr.CodeInternal, "load linked bill", err)
		}

		debt.RemainingAmount -= req.Amount
		if debt.RemainingAmount <= 0 {
			debt.RemainingAmount = 0
			debt.Status = DebtCleared
		} else {
			debt.Status = DebtPartial
		}
		if err := s.debts.Update(ctx, debt); err != nil {
			return err
		}

		bill.PaidAmount += req.Amount
		bill.Recalculate()
		if bill.BalanceDue <= 0 {
			now := time.Now()
			bill.Status = BillPaid
			bill.PaidAt = &now
			bill.PaymentMethod = req.PaymentMethod
		} else {
			bill.Status = BillPartial
		}
		if err := s.bills.Update(ctx, bill); err != nil {
			return err
		}

		if err := s.bills.AddPayment(ctx, &Payment{
			BillID:        bill.ID,
			Amount:        req.Amount,
			PaymentMethod: req.PaymentMethod,
			Notes:         "debt settlement",
			CreatedBy:     actor,
		}); err != nil {
			return err
		}
		out = debt
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.PaymentsRecorded.Inc()
		if out.Status == DebtCleared {
			s.metrics.DebtsSettled.Inc()
		}
	}
	return out, nil
}

func (s *Service) GetDebt(ctx context.Context, id uuid.UUID) (*Debt, error) {
	d, err := s.debts.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.NotFound("debt not found")
	}
	return d, nil
}

func (s *Service) DebtsByPatient(ctx context.Context, patientID uuid.UUID) ([]*Debt, error) {
	return s.debts.ListByPatient(ctx, patientID)
}

// -- Charge items --

func (s *Service) CreateChargeItem(ctx context.Context, c *ChargeItem) (*ChargeItem, error) {
	if c.Code == "" || c.Name == "" {
		return nil, apperr.Validation("code and name are required")
	}
	if c.Type == "" {
		c.Type = ChargeOther
	}
	if !c.Type.Valid() {
		return nil, apperr.Validation("invalid item_type: " + string(c.Type))
	}
	if c.Price < 0 {
		return nil, apperr.Validation("price cannot be negative")
	}
	c.IsActive = true
	if err := s.charges.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) GetChargeItem(ctx context.Context, id uuid.UUID) (*ChargeItem, error) {
	c, err := s.charges.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.NotFound("charge item not found")
	}
	return c, nil
}

func (s *Service) UpdateChargeItem(ctx context.Context, c *ChargeItem) error {
	if _, err := s.charges.GetByID(ctx, c.ID); err != nil {
		return apperr.NotFound("charge item not found")
	}
	if c.Code == "" || c.Name == "" {
		return apperr.Validation("code and name are required")
	}
	if !c.Type.Valid() {
		return apperr.Validation("invalid item_type: " + string(c.Type))
	}
	if c.Price < 0 {
		return apperr.Validation("price cannot be negative")
	}
	return s.charges.Update(ctx, c)
}

func (s *Service) ListChargeItems(ctx context.Context, activeOnly bool) ([]*ChargeItem, error) {
	return s.charges.List(ctx, activeOnly)
}
