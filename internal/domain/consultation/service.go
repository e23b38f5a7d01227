package consultation

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
	consultations Repository
	prescriptions PrescriptionRepository
	certificates  CertificateRepository
	stock         Inventory
	numbers       db.NumberGenerator
	tx            db.Transactor
	metrics       *metrics.Metrics
	logger        zerolog.Logger
}

func NewService(consultations Repository, prescriptions PrescriptionRepository, certificates CertificateRepository,
	stock Inventory, numbers db.NumberGenerator, tx db.Transactor, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		consultations: consultations,
		prescriptions: prescriptions,
		certificates:  certificates,
		stock:         stock,
		numbers:       numbers,
		tx:            tx,
		metrics:       m,
		logger:        logger,
	}
}

// -- Consultations --

func (s *Service) Create(ctx context.Context, c *Consultation) (*Consultation, error) {
	if c.RegistrationID == uuid.Nil || c.PatientID == uuid.Nil || c.DoctorID == uuid.Nil {
		return nil, apperr.Validation("registration_id, patient_id and doctor_id are required")
	}
	if existing, err := s.consultations.GetByRegistration(ctx, c.RegistrationID); err == nil && existing != nil {
		return nil, apperr.Conflict("registration already has a consultation")
	}
	if err := s.consultations.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	c, err := s.consultations.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.NotFound("consultation not found")
	}
	return c, nil
}

func (s *Service) GetByRegistration(ctx context.Context, registrationID uuid.UUID) (*Consultation, error) {
	c, err := s.consultations.GetByRegistration(ctx, registrationID)
	if err != nil {
		return nil, apperr.NotFound("consultation not found")
	}
	return c, nil
}

func (s *Service) Update(ctx context.Context, c *Consultation) error {
	if _, err := s.consultations.GetByID(ctx, c.ID); err != nil {
		return apperr.NotFound("consultation not found")
	}
	return s.consultations.Update(ctx, c)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Consultation, int, error) {
	return s.consultations.ListByPatient(ctx, patientID, limit, offset)
}

// -- Prescriptions --

func (s *Service) CreatePrescription(ctx context.Context, p *Prescription) (*Prescription, error) {
	if p.ConsultationID == uuid.Nil {
		return nil, apperr.Validation("consultation_id is required")
	}
	if p.TotalDoses <= 0 {
		return nil, apperr.Validation("total_doses must be positive")
	}
	if p.DispensingMethod == "" {
		p.DispensingMethod = DispenseInternal
	}
	if !p.DispensingMethod.Valid() {
		return nil, apperr.Validation("invalid dispensing_method: " + string(p.DispensingMethod))
	}
	if p.DispensingMethod.External() && p.ExternalPharmacyID == nil {
		return nil, apperr.Validation("external dispensing requires external_pharmacy_id")
	}
	if len(p.Items) == 0 {
		return nil, apperr.Validation("at least one item is required")
	}

	var fee float64
	for _, item := range p.Items {
		if item.MedicineID == uuid.Nil || item.Dosage <= 0 {
			return nil, apperr.Validation("each item needs a medicine_id and a positive dosage")
		}
		item.Subtotal = item.Dosage * float64(p.TotalDoses) * item.UnitPrice
		fee += item.Subtotal
	}
	if p.MedicineFee == 0 {
		p.MedicineFee = fee
	}

	number, err := s.numbers.NextNumber(ctx, "RX", time.Now())
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "allocate prescription number", err)
	}
	p.PrescriptionNumber = number

	if err := s.tx(ctx, func(ctx context.Context) error {
		return s.prescriptions.Create(ctx, p)
	}); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.PrescriptionsCreated.Inc()
	}
	return p, nil
}

func (s *Service) GetPrescription(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p, err := s.prescriptions.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.NotFound("prescription not found")
	}
	items, err := s.prescriptions.ListItems(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Items = items
	return p, nil
}

func (s *Service) ListPrescriptions(ctx context.Context, consultationID uuid.UUID) ([]*Prescription, error) {
	return s.prescriptions.ListByConsultation(ctx, consultationID)
}

// Dispense marks an internal prescription dispensed and pulls every item's
// total usage out of stock, writing ledger rows, all in one transaction.
func (s *Service) Dispense(ctx context.Context, id uuid.UUID, actor uuid.UUID) (*Prescription, error) {
	var out *Prescription
	err := s.tx(ctx, func(ctx context.Context) error {
		p, err := s.prescriptions.GetByIDForUpdate(ctx, id)
		if err != nil {
			return apperr.NotFound("prescription not found")
		}
		if p.IsDispensed {
			return apperr.Conflict("prescription already dispensed")
		}

		items, err := s.prescriptions.ListItems(ctx, id)
		if err != nil {
			return err
		}
		for _, item := range items {
			quantity := item.Dosage * float64(p.TotalDoses)
			if err := s.stock.DispenseStock(ctx, item.MedicineID, quantity, p.PrescriptionNumber, actor); err != nil {
				return err
			}
		}

		now := time.Now()
		p.IsDispensed = true
		p.DispensedAt = &now
		if err := s.prescriptions.Update(ctx, p); err != nil {
			return err
		}
		p.Items = items
		out = p
		return nil
	})
	return out, err
}

// CheckStock reports whether stock covers each item's total usage.
func (s *Service) CheckStock(ctx context.Context, id uuid.UUID) ([]*StockCheckEntry, error) {
	p, err := s.prescriptions.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.NotFound("prescription not found")
	}
	items, err := s.prescriptions.ListItems(ctx, id)
	if err != nil {
		return nil, err
	}

	report := make([]*StockCheckEntry, 0, len(items))
	for _, item := range items {
		required := item.Dosage * float64(p.TotalDoses)
		available, err := s.stock.StockQuantity(ctx, item.MedicineID)
		if err != nil {
			available = 0
		}
		report = append(report, &StockCheckEntry{
			MedicineID: item.MedicineID,
			Required:   required,
			Available:  available,
			Sufficient: available >= required,
		})
	}
	return report, nil
}

// SumMedicineFees is billing's read contract for bill creation.
func (s *Service) SumMedicineFees(ctx context.Context, registrationID uuid.UUID) (float64, error) {
	return s.prescriptions.SumMedicineFeesByRegistration(ctx, registrationID)
}

// AnyDispensed is billing's read contract for the refund lock.
func (s *Service) AnyDispensed(ctx context.Context, registrationID uuid.UUID) (bool, error) {
	return s.prescriptions.AnyDispensedByRegistration(ctx, registrationID)
}

// -- Certificates --

func (s *Service) CreateCertificate(ctx context.Context, c *Certificate) (*Certificate, error) {
	if c.ConsultationID == uuid.Nil {
		return nil, apperr.Validation("consultation_id is required")
	}
	if c.Type == "" {
		c.Type = CertMedical
	}
	if !c.Type.Valid() {
		return nil, apperr.Validation("invalid certificate type: " + string(c.Type))
	}
	if c.Type == CertSickLeave && (c.SickLeaveStart == nil || c.SickLeaveEnd == nil) {
		return nil, apperr.Validation("sick leave certificates require a date range")
	}

	number, err := s.numbers.NextNumber(ctx, "C", time.Now())
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "allocate certificate number", err)
	}
	c.CertificateNumber = number
	if c.IssueDate.IsZero() {
		c.IssueDate = time.Now()
	}

	if err := s.certificates.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) GetCertificate(ctx context.Context, id uuid.UUID) (*Certificate, error) {
	c, err := s.certificates.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.NotFound("certificate not found")
	}
	return c, nil
}

func (s *Service) ListCertificates(ctx context.Context, consultationID uuid.UUID) ([]*Certificate, error) {
	return s.certificates.ListByConsultation(ctx, consultationID)
}

// PrintCertificate increments the print counter and stamps the print time.
func (s *Service) PrintCertificate(ctx context.Context, id uuid.UUID) (*Certificate, error) {
	c, err := s.certificates.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.NotFound("certificate not found")
	}
	now := time.Now()
	c.PrintCount++
	c.LastPrintedAt = &now
	if err := s.certificates.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}
