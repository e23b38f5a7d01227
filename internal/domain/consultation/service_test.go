package consultation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinio/clinio/internal/platform/apperr"
)

type mockRxRepo struct {
	prescriptions map[uuid.UUID]*Prescription
	items         map[uuid.UUID][]*PrescriptionItem
}

func newMockRxRepo() *mockRxRepo {
	return &mockRxRepo{
		prescriptions: make(map[uuid.UUID]*Prescription),
		items:         make(map[uuid.UUID][]*PrescriptionItem),
	}
}

func (m *mockRxRepo) Create(ctx context.Context, p *Prescription) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	m.prescriptions[p.ID] = p
	m.items[p.ID] = p.Items
	return nil
}

func (m *mockRxRepo) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p, ok := m.prescriptions[id]
	if !ok {
		return nil, fmt.Errorf("no rows")
	}
	return p, nil
}

func (m *mockRxRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return m.GetByID(ctx, id)
}

func (m *mockRxRepo) Update(ctx context.Context, p *Prescription) error {
	if _, ok := m.prescriptions[p.ID]; !ok {
		return fmt.Errorf("no rows")
	}
	m.prescriptions[p.ID] = p
	return nil
}

func (m *mockRxRepo) ListItems(ctx context.Context, id uuid.UUID) ([]*PrescriptionItem, error) {
	return m.items[id], nil
}

func (m *mockRxRepo) ListByConsultation(ctx context.Context, consultationID uuid.UUID) ([]*Prescription, error) {
	var items []*Prescription
	for _, p := range m.prescriptions {
		if p.ConsultationID == consultationID {
			items = append(items, p)
		}
	}
	return items, nil
}

func (m *mockRxRepo) SumMedicineFeesByRegistration(ctx context.Context, registrationID uuid.UUID) (float64, error) {
	return 0, nil
}

func (m *mockRxRepo) AnyDispensedByRegistration(ctx context.Context, registrationID uuid.UUID) (bool, error) {
	for _, p := range m.prescriptions {
		if p.IsDispensed {
			return true, nil
		}
	}
	return false, nil
}

type mockInventory struct {
	quantities map[uuid.UUID]float64
	dispensed  []string
	failOn     uuid.UUID
}

func newMockInventory() *mockInventory {
	return &mockInventory{quantities: make(map[uuid.UUID]float64)}
}

func (m *mockInventory) DispenseStock(ctx context.Context, medicineID uuid.UUID, quantity float64, ref string, actor uuid.UUID) error {
	if medicineID == m.failOn {
		return fmt.Errorf("stock write failed")
	}
	m.quantities[medicineID] -= quantity
	m.dispensed = append(m.dispensed, fmt.Sprintf("%s:%.1f:%s", medicineID, quantity, ref))
	return nil
}

func (m *mockInventory) StockQuantity(ctx context.Context, medicineID uuid.UUID) (float64, error) {
	q, ok := m.quantities[medicineID]
	if !ok {
		return 0, fmt.Errorf("no rows")
	}
	return q, nil
}

type fakeNumbers struct{ counters map[string]int }

func newFakeNumbers() *fakeNumbers { return &fakeNumbers{counters: make(map[string]int)} }

func (f *fakeNumbers) Next(ctx context.Context, prefix string) (int, error) {
	f.counters[prefix]++
	return f.counters[prefix], nil
}

func (f *fakeNumbers) NextNumber(ctx context.Context, kind string, day time.Time) (string, error) {
	prefix := kind + day.Format("20060102")
	n, _ := f.Next(ctx, prefix)
	return fmt.Sprintf("%s%04d", prefix, n), nil
}

func passthroughTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestService(rx *mockRxRepo, inv *mockInventory) *Service {
	return NewService(nil, rx, nil, inv, newFakeNumbers(), passthroughTx, nil, zerolog.Nop())
}

func createRx(t *testing.T, svc *Service, medID uuid.UUID, dosage float64, doses int) *Prescription {
	t.Helper()
	p, err := svc.CreatePrescription(context.Background(), &Prescription{
		ConsultationID: uuid.New(),
		Name:           "decoction A",
		TotalDoses:     doses,
		DosesPerDay:    3,
		Days:           doses / 3,
		Items: []*PrescriptionItem{
			{MedicineID: medID, Dosage: dosage, Unit: "g", UnitPrice: 0.5},
		},
	})
	if err != nil {
		t.Fatalf("create prescription: %v", err)
	}
	return p
}

func TestCreatePrescriptionComputesFee(t *testing.T) {
	svc := newTestService(newMockRxRepo(), newMockInventory())

	p := createRx(t, svc, uuid.New(), 10, 6)
	// 10 g per dose, 6 doses, 0.5 per g
	if p.MedicineFee != 30 {
		t.Errorf("medicine fee = %v, want 30", p.MedicineFee)
	}
	if p.PrescriptionNumber == "" {
		t.Error("prescription number not assigned")
	}
}

func TestDispenseDecrementsStockByDosageTimesDoses(t *testing.T) {
	rx := newMockRxRepo()
	inv := newMockInventory()
	svc := newTestService(rx, inv)
	medID := uuid.New()
	inv.quantities[medID] = 100

	p := createRx(t, svc, medID, 10, 6)

	got, err := svc.Dispense(context.Background(), p.ID, uuid.New())
	if err != nil {
		t.Fatalf("dispense: %v", err)
	}
	if !got.IsDispensed || got.DispensedAt == nil {
		t.Error("prescription not marked dispensed")
	}
	if inv.quantities[medID] != 40 {
		t.Errorf("stock = %v, want 40 (100 - 10*6)", inv.quantities[medID])
	}
}

func TestDispenseRejectsAlreadyDispensed(t *testing.T) {
	rx := newMockRxRepo()
	inv := newMockInventory()
	svc := newTestService(rx, inv)
	medID := uuid.New()
	inv.quantities[medID] = 100

	p := createRx(t, svc, medID, 10, 6)
	if _, err := svc.Dispense(context.Background(), p.ID, uuid.Nil); err != nil {
		t.Fatalf("dispense: %v", err)
	}
	if _, err := svc.Dispense(context.Background(), p.ID, uuid.Nil); !apperr.IsCode(err, apperr.CodeConflict) {
		t.Errorf("expected conflict, got %v", err)
	}
	if inv.quantities[medID] != 40 {
		t.Errorf("stock decremented twice: %v", inv.quantities[medID])
	}
}

func TestCheckStockReportsShortage(t *testing.T) {
	rx := newMockRxRepo()
	inv := newMockInventory()
	svc := newTestService(rx, inv)
	medID := uuid.New()
	inv.quantities[medID] = 30

	p := createRx(t, svc, medID, 10, 6) // needs 60

	report, err := svc.CheckStock(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("check stock: %v", err)
	}
	if len(report) != 1 {
		t.Fatalf("report length = %d", len(report))
	}
	e := report[0]
	if e.Required != 60 || e.Available != 30 || e.Sufficient {
		t.Errorf("entry = %+v, want required 60, available 30, insufficient", e)
	}
}

func TestExternalPrescriptionRequiresPharmacy(t *testing.T) {
	svc := newTestService(newMockRxRepo(), newMockInventory())

	_, err := svc.CreatePrescription(context.Background(), &Prescription{
		ConsultationID:   uuid.New(),
		Name:             "decoction B",
		TotalDoses:       6,
		DispensingMethod: DispenseExternalDecoction,
		Items: []*PrescriptionItem{
			{MedicineID: uuid.New(), Dosage: 5, Unit: "g"},
		},
	})
	if !apperr.IsCode(err, apperr.CodeValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestCertificateLifecycle(t *testing.T) {
	certs := &mockCertRepo{certs: make(map[uuid.UUID]*Certificate)}
	svc := NewService(nil, newMockRxRepo(), certs, newMockInventory(), newFakeNumbers(), passthroughTx, nil, zerolog.Nop())

	start := time.Now()
	end := start.Add(72 * time.Hour)
	c, err := svc.CreateCertificate(context.Background(), &Certificate{
		ConsultationID: uuid.New(),
		Type:           CertSickLeave,
		Content:        "rest for three days",
		SickLeaveStart: &start,
		SickLeaveEnd:   &end,
	})
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	if c.CertificateNumber == "" {
		t.Error("certificate number not assigned")
	}

	printed, err := svc.PrintCertificate(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("print: %v", err)
	}
	if printed.PrintCount != 1 || printed.LastPrintedAt == nil {
		t.Errorf("print count = %d", printed.PrintCount)
	}
}

func TestSickLeaveCertificateRequiresRange(t *testing.T) {
	certs := &mockCertRepo{certs: make(map[uuid.UUID]*Certificate)}
	svc := NewService(nil, newMockRxRepo(), certs, newMockInventory(), newFakeNumbers(), passthroughTx, nil, zerolog.Nop())

	_, err := svc.CreateCertificate(context.Background(), &Certificate{
		ConsultationID: uuid.New(),
		Type:           CertSickLeave,
		Content:        "rest",
	})
	if !apperr.IsCode(err, apperr.CodeValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

type mockCertRepo struct {
	certs map[uuid.UUID]*Certificate
}

func (m *mockCertRepo) Create(ctx context.Context, c *Certificate) error {
	c.ID = uuid.New()
	m.certs[c.ID] = c
	return nil
}

func (m *mockCertRepo) GetByID(ctx context.Context, id uuid.UUID) (*Certificate, error) {
	c, ok := m.certs[id]
	if !ok {
		return nil, fmt.Errorf("no rows")
	}
	return c, nil
}

func (m *mockCertRepo) Update(ctx context.Context, c *Certificate) error {
	m.certs[c.ID] = c
	return nil
}

func (m *mockCertRepo) ListByConsultation(ctx context.Context, consultationID uuid.UUID) ([]*Certificate, error) {
	var items []*Certificate
	for _, c := range m.certs {
		if c.ConsultationID == consultationID {
			items = append(items, c)
		}
	}
	return items, nil
}
