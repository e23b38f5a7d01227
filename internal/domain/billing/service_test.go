package billing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinio/clinio/internal/platform/apperr"
)

type mockBillRepo struct {
	bills    map[uuid.UUID]*Bill
	items    map[uuid.UUID][]*BillItem
	payments map[uuid.UUID][]*Payment
}

func newMockBillRepo() *mockBillRepo {
	return &mockBillRepo{
		bills:    make(map[uuid.UUID]*Bill),
		items:    make(map[uuid.UUID][]*BillItem),
		payments: make(map[uuid.UUID][]*Payment),
	}
}

func (m *mockBillRepo) Create(ctx context.Context, b *Bill) error {
	b.ID = uuid.New()
	b.CreatedAt = time.Now()
	m.bills[b.ID] = b
	m.items[b.ID] = b.Items
	return nil
}

func (m *mockBillRepo) GetByID(ctx context.Context, id uuid.UUID) (*Bill, error) {
	b, ok := m.bills[id]
	if !ok {
		return nil, fmt.Errorf("no rows")
	}
	cp := *b
	return &cp, nil
}

func (m *mockBillRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Bill, error) {
	return m.GetByID(ctx, id)
}

func (m *mockBillRepo) GetByRegistration(ctx context.Context, registrationID uuid.UUID) (*Bill, error) {
	for _, b := range m.bills {
		if b.RegistrationID == registrationID {
			cp := *b
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("no rows")
}

func (m *mockBillRepo) Update(ctx context.Context, b *Bill) error {
	if _, ok := m.bills[b.ID]; !ok {
		return fmt.Errorf("no rows")
	}
	cp := *b
	m.bills[b.ID] = &cp
	return nil
}

func (m *mockBillRepo) ListItems(ctx context.Context, billID uuid.UUID) ([]*BillItem, error) {
	return m.items[billID], nil
}

func (m *mockBillRepo) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Bill, int, error) {
	var out []*Bill
	for _, b := range m.bills {
		if b.PatientID == patientID {
			out = append(out, b)
		}
	}
	return out, len(out), nil
}

func (m *mockBillRepo) AddPayment(ctx context.Context, p *Payment) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	m.payments[p.BillID] = append(m.payments[p.BillID], p)
	return nil
}

func (m *mockBillRepo) ListPayments(ctx context.Context, billID uuid.UUID) ([]*Payment, error) {
	return m.payments[billID], nil
}

type mockDebtRepo struct {
	debts map[uuid.UUID]*Debt
}

func newMockDebtRepo() *mockDebtRepo {
	return &mockDebtRepo{debts: make(map[uuid.UUID]*Debt)}
}

func (m *mockDebtRepo) Create(ctx context.Context, d *Debt) error {
	d.ID = uuid.New()
	d.CreatedAt = time.Now()
	cp := *d
	m.debts[d.ID] = &cp
	return nil
}

func (m *mockDebtRepo) GetByID(ctx context.Context, id uuid.UUID) (*Debt, error) {
	d, ok := m.debts[id]
	if !ok {
		return nil, fmt.Errorf("no rows")
	}
	cp := *d
	return &cp, nil
}

func (m *mockDebtRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Debt, error) {
	return m.GetByID(ctx, id)
}

func (m *mockDebtRepo) GetByBillID(ctx context.Context, billID uuid.UUID) (*Debt, error) {
	for _, d := range m.debts {
		if d.BillID == billID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("no rows")
}

func (m *mockDebtRepo) Update(ctx context.Context, d *Debt) error {
	if _, ok := m.debts[d.ID]; !ok {
		return fmt.Errorf("no rows")
	}
	cp := *d
	m.debts[d.ID] = &cp
	return nil
}

func (m *mockDebtRepo) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Debt, error) {
	var out []*Debt
	for _, d := range m.debts {
		if d.PatientID == patientID {
			out = append(out, d)
		}
	}
	return out, nil
}

type mockConsultations struct {
	medicineFees float64
	dispensed    bool
}

func (m *mockConsultations) SumMedicineFees(ctx context.Context, registrationID uuid.UUID) (float64, error) {
	return m.medicineFees, nil
}

func (m *mockConsultations) AnyDispensed(ctx context.Context, registrationID uuid.UUID) (bool, error) {
	return m.dispensed, nil
}

type mockPatients struct {
	balances map[uuid.UUID]float64
}

func newMockPatients() *mockPatients {
	return &mockPatients{balances: make(map[uuid.UUID]float64)}
}

func (m *mockPatients) CreditBalance(ctx context.Context, id uuid.UUID, amount float64) error {
	m.balances[id] += amount
	return nil
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

type mockChargeItemRepo struct {
	items map[uuid.UUID]*ChargeItem
}

func newMockChargeItemRepo() *mockChargeItemRepo {
	return &mockChargeItemRepo{items: make(map[uuid.UUID]*ChargeItem)}
}

func (m *mockChargeItemRepo) Create(ctx context.Context, c *ChargeItem) error {
	c.ID = uuid.New()
	cp := *c
	m.items[c.ID] = &cp
	return nil
}

func (m *mockChargeItemRepo) GetByID(ctx context.Context, id uuid.UUID) (*ChargeItem, error) {
	c, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("no rows")
	}
	cp := *c
	return &cp, nil
}

func (m *mockChargeItemRepo) Update(ctx context.Context, c *ChargeItem) error {
	cp := *c
	m.items[c.ID] = &cp
	return nil
}

func (m *mockChargeItemRepo) List(ctx context.Context, activeOnly bool) ([]*ChargeItem, error) {
	var out []*ChargeItem
	for _, c := range m.items {
		if activeOnly && !c.IsActive {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

type fixture struct {
	svc      *Service
	bills    *mockBillRepo
	debts    *mockDebtRepo
	charges  *mockChargeItemRepo
	cons     *mockConsultations
	patients *mockPatients
}

func newFixture() *fixture {
	f := &fixture{
		bills:    newMockBillRepo(),
		debts:    newMockDebtRepo(),
		charges:  newMockChargeItemRepo(),
		cons:     &mockConsultations{},
		patients: newMockPatients(),
	}
	f.svc = NewService(f.bills, f.debts, f.charges, f.cons, f.patients,
		newFakeNumbers(), passthroughTx, nil, zerolog.Nop(), 300)
	return f
}

func (f *fixture) newBill(t *testing.T) *Bill {
	t.Helper()
	regID := uuid.New()
	patientID := uuid.New()
	if err := f.svc.CreateBillForRegistration(context.Background(), regID, patientID, uuid.New()); err != nil {
		t.Fatalf("create bill: %v", err)
	}
	b, err := f.bills.GetByRegistration(context.Background(), regID)
	if err != nil {
		t.Fatalf("bill not created: %v", err)
	}
	return b
}

func checkInvariants(t *testing.T, b *Bill) {
	t.Helper()
	if b.TotalAmount != b.Subtotal-b.Discount {
		t.Errorf("total %v != subtotal %v - discount %v", b.TotalAmount, b.Subtotal, b.Discount)
	}
	if b.BalanceDue != b.TotalAmount-b.PaidAmount {
		t.Errorf("balance %v != total %v - paid %v", b.BalanceDue, b.TotalAmount, b.PaidAmount)
	}
}

func TestCreateBillIncludesMedicineFees(t *testing.T) {
	f := newFixture()
	f.cons.medicineFees = 700

	b := f.newBill(t)
	if b.Subtotal != 1000 {
		t.Errorf("subtotal = %v, want 1000 (300 consultation + 700 medicine)", b.Subtotal)
	}
	if b.Status != BillPending || b.BalanceDue != 1000 {
		t.Errorf("status = %s, balance = %v", b.Status, b.BalanceDue)
	}
	if len(f.bills.items[b.ID]) != 2 {
		t.Errorf("item count = %d, want 2", len(f.bills.items[b.ID]))
	}
	checkInvariants(t, b)
}

func TestCreateBillIsIdempotentPerRegistration(t *testing.T) {
	f := newFixture()
	b := f.newBill(t)

	if err := f.svc.CreateBillForRegistration(context.Background(), b.RegistrationID, b.PatientID, uuid.Nil); err != nil {
		t.Fatalf("second create: %v", err)
	}
	if len(f.bills.bills) != 1 {
		t.Errorf("bill count = %d, want 1", len(f.bills.bills))
	}
}

func TestPayFullSetsStatusPaid(t *testing.T) {
	f := newFixture()
	f.cons.medicineFees = 700
	b := f.newBill(t)

	paid, err := f.svc.Pay(context.Background(), b.ID, PayRequest{Amount: 1000, PaymentMethod: "cash"}, uuid.New())
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if paid.Status != BillPaid || paid.PaidAt == nil || paid.BalanceDue != 0 {
		t.Errorf("status = %s, paid_at = %v, balance = %v", paid.Status, paid.PaidAt, paid.BalanceDue)
	}
	if len(f.debts.debts) != 0 {
		t.Errorf("no debt expected, got %d", len(f.debts.debts))
	}
	checkInvariants(t, paid)
}

func TestPartialPaymentCreatesDebt(t *testing.T) {
	f := newFixture()
	f.cons.medicineFees = 700
	b := f.newBill(t)

	paid, err := f.svc.Pay(context.Background(), b.ID, PayRequest{Amount: 600, PaymentMethod: "cash"}, uuid.New())
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if paid.Status != BillPartial || paid.BalanceDue != 400 {
		t.Errorf("status = %s, balance = %v", paid.Status, paid.BalanceDue)
	}
	debt, err := f.debts.GetByBillID(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("debt not created: %v", err)
	}
	if debt.OriginalAmount != 400 || debt.RemainingAmount != 400 || debt.Status != DebtOutstanding {
		t.Errorf("debt = %+v", debt)
	}
	checkInvariants(t, paid)
}

func TestPartialThenFullPaymentClearsDebt(t *testing.T) {
	f := newFixture()
	f.cons.medicineFees = 700
	b := f.newBill(t)

	if _, err := f.svc.Pay(context.Background(), b.ID, PayRequest{Amount: 600, PaymentMethod: "cash"}, uuid.Nil); err != nil {
		t.Fatalf("first pay: %v", err)
	}
	paid, err := f.svc.Pay(context.Background(), b.ID, PayRequest{Amount: 400, PaymentMethod: "cash"}, uuid.Nil)
	if err != nil {
		t.Fatalf("second pay: %v", err)
	}
	if paid.Status != BillPaid {
		t.Errorf("status = %s, want paid", paid.Status)
	}
	debt, err := f.debts.GetByBillID(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("debt missing: %v", err)
	}
	if debt.Status != DebtCleared || debt.RemainingAmount != 0 {
		t.Errorf("debt = %+v, want cleared with zero remaining", debt)
	}
}

func TestRepeatedPartialPaymentsPreserveOriginalDebtAmount(t *testing.T) {
	f := newFixture()
	f.cons.medicineFees = 700
	b := f.newBill(t)

	if _, err := f.svc.Pay(context.Background(), b.ID, PayRequest{Amount: 400, PaymentMethod: "cash"}, uuid.Nil); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Pay(context.Background(), b.ID, PayRequest{Amount: 300, PaymentMethod: "cash"}, uuid.Nil); err != nil {
		t.Fatal(err)
	}
	debt, err := f.debts.GetByBillID(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("debt missing: %v", err)
	}
	if debt.OriginalAmount != 600 {
		t.Errorf("original_amount = %v, want 600 (first snapshot kept)", debt.OriginalAmount)
	}
	if debt.RemainingAmount != 300 || debt.Status != DebtPartial {
		t.Errorf("remaining = %v, status = %s", debt.RemainingAmount, debt.Status)
	}
}

func TestPayValidatesInput(t *testing.T) {
	f := newFixture()
	b := f.newBill(t)

	if _, err := f.svc.Pay(context.Background(), b.ID, PayRequest{Amount: 0, PaymentMethod: "cash"}, uuid.Nil); !apperr.IsCode(err, apperr.CodeValidation) {
		t.Errorf("zero amount: got %v", err)
	}
	if _, err := f.svc.Pay(context.Background(), b.ID, PayRequest{Amount: 100}, uuid.Nil); !apperr.IsCode(err, apperr.CodeValidation) {
		t.Errorf("missing method: got %v", err)
	}
	if len(f.bills.payments[b.ID]) != 0 {
		t.Errorf("payment rows written on rejected pay")
	}
}

func TestRefundRejectedWhenPrescriptionDispensed(t *testing.T) {
	f := newFixture()
	b := f.newBill(t)
	if _, err := f.svc.Pay(context.Background(), b.ID, PayRequest{Amount: 300, PaymentMethod: "cash"}, uuid.Nil); err != nil {
		t.Fatal(err)
	}

	f.cons.dispensed = true
	_, err := f.svc.Refund(context.Background(), b.ID, RefundRequest{Amount: 300, Reason: "changed mind"}, uuid.Nil)
	if !apperr.IsCode(err, apperr.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	got, _ := f.bills.GetByID(context.Background(), b.ID)
	if got.PaidAmount != 300 || got.Status != BillPaid {
		t.Errorf("bill changed on rejected refund: %+v", got)
	}
}

func TestRefundStoreToAccountCreditsPatient(t *testing.T) {
	f := newFixture()
	b := f.newBill(t)
	if _, err := f.svc.Pay(context.Background(), b.ID, PayRequest{Amount: 300, PaymentMethod: "cash"}, uuid.Nil); err != nil {
		t.Fatal(err)
	}

	refunded, err := f.svc.Refund(context.Background(), b.ID, RefundRequest{Amount: 300, Reason: "cancelled visit", StoreToAccount: true}, uuid.Nil)
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if refunded.Status != BillRefunded || refunded.PaidAmount != 0 {
		t.Errorf("bill = %+v", refunded)
	}
	if f.patients.balances[b.PatientID] != 300 {
		t.Errorf("patient balance = %v, want 300", f.patients.balances[b.PatientID])
	}
	payments := f.bills.payments[b.ID]
	if len(payments) != 2 || payments[1].Amount != -300 {
		t.Errorf("expected negative payment row, got %+v", payments)
	}
	checkInvariants(t, refunded)
}

func TestCreditToAccountValidatesBounds(t *testing.T) {
	f := newFixture()
	b := f.newBill(t)
	if _, err := f.svc.Pay(context.Background(), b.ID, PayRequest{Amount: 200, PaymentMethod: "cash"}, uuid.Nil); err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.CreditToAccount(context.Background(), b.ID, 0, uuid.Nil); !apperr.IsCode(err, apperr.CodeValidation) {
		t.Errorf("zero amount: got %v", err)
	}
	if _, err := f.svc.CreditToAccount(context.Background(), b.ID, 500, uuid.Nil); !apperr.IsCode(err, apperr.CodeValidation) {
		t.Errorf("amount above paid: got %v", err)
	}
	if f.patients.balances[b.PatientID] != 0 {
		t.Errorf("patient balance changed on rejected credit: %v", f.patients.balances[b.PatientID])
	}

	credited, err := f.svc.CreditToAccount(context.Background(), b.ID, 200, uuid.Nil)
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if credited.Status != BillPending || credited.PaidAmount != 0 {
		t.Errorf("bill = %+v, want pending with zero paid", credited)
	}
	if f.patients.balances[b.PatientID] != 200 {
		t.Errorf("patient balance = %v, want 200", f.patients.balances[b.PatientID])
	}
	checkInvariants(t, credited)
}

func TestCancelRejectedWhenPaid(t *testing.T) {
	f := newFixture()
	b := f.newBill(t)
	if _, err := f.svc.Pay(context.Background(), b.ID, PayRequest{Amount: 300, PaymentMethod: "cash"}, uuid.Nil); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Cancel(context.Background(), b.ID); !apperr.IsCode(err, apperr.CodeConflict) {
		t.Errorf("expected conflict, got %v", err)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	f := newFixture()
	b := f.newBill(t)

	first, err := f.svc.Cancel(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if first.Status != BillCancelled {
		t.Errorf("status = %s", first.Status)
	}
	second, err := f.svc.Cancel(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	if second.Status != BillCancelled {
		t.Errorf("status = %s", second.Status)
	}
	if _, err := f.svc.Pay(context.Background(), b.ID, PayRequest{Amount: 100, PaymentMethod: "cash"}, uuid.Nil); !apperr.IsCode(err, apperr.CodeConflict) {
		t.Errorf("pay after cancel: got %v", err)
	}
}

func TestPayDebtMirrorsIntoBill(t *testing.T) {
	f := newFixture()
	f.cons.medicineFees = 700
	b := f.newBill(t)
	if _, err := f.svc.Pay(context.Background(), b.ID, PayRequest{Amount: 600, PaymentMethod: "cash"}, uuid.Nil); err != nil {
		t.Fatal(err)
	}
	debt, err := f.debts.GetByBillID(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("debt missing: %v", err)
	}

	settled, err := f.svc.PayDebt(context.Background(), debt.ID, PayDebtRequest{Amount: 400, PaymentMethod: "cash"}, uuid.Nil)
	if err != nil {
		t.Fatalf("pay debt: %v", err)
	}
	if settled.Status != DebtCleared || settled.RemainingAmount != 0 {
		t.Errorf("debt = %+v", settled)
	}

	bill, _ := f.bills.GetByID(context.Background(), b.ID)
	if bill.Status != BillPaid || bill.PaidAmount != 1000 || bill.BalanceDue != 0 {
		t.Errorf("bill not mirrored: %+v", bill)
	}
	payments := f.bills.payments[b.ID]
	last := payments[len(payments)-1]
	if last.Notes != "debt settlement" || last.Amount != 400 {
		t.Errorf("settlement payment = %+v", last)
	}
	checkInvariants(t, bill)
}

func TestPayDebtClampsRemainingToZero(t *testing.T) {
	f := newFixture()
	f.cons.medicineFees = 700
	b := f.newBill(t)
	if _, err := f.svc.Pay(context.Background(), b.ID, PayRequest{Amount: 600, PaymentMethod: "cash"}, uuid.Nil); err != nil {
		t.Fatal(err)
	}
	debt, _ := f.debts.GetByBillID(context.Background(), b.ID)

	settled, err := f.svc.PayDebt(context.Background(), debt.ID, PayDebtRequest{Amount: 900, PaymentMethod: "cash"}, uuid.Nil)
	if err != nil {
		t.Fatalf("pay debt: %v", err)
	}
	if settled.RemainingAmount != 0 || settled.Status != DebtCleared {
		t.Errorf("debt = %+v, want remaining clamped to 0", settled)
	}

	if _, err := f.svc.PayDebt(context.Background(), debt.ID, PayDebtRequest{Amount: 10, PaymentMethod: "cash"}, uuid.Nil); !apperr.IsCode(err, apperr.CodeConflict) {
		t.Errorf("pay on cleared debt: got %v", err)
	}
}

func TestCreateChargeItemRequiresCode(t *testing.T) {
	f := newFixture()
	_, err := f.svc.CreateChargeItem(context.Background(), &ChargeItem{Name: "Acupuncture", Price: 150})
	if !apperr.IsCode(err, apperr.CodeValidation) {
		t.Errorf("create without code: got %v", err)
	}
}

func TestCreateChargeItemDefaultsTypeToOther(t *testing.T) {
	f := newFixture()
	created, err := f.svc.CreateChargeItem(context.Background(),
		&ChargeItem{Code: "MISC-01", Name: "Sundries", Price: 20})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Type != ChargeOther {
		t.Errorf("type = %q, want %q", created.Type, ChargeOther)
	}
	if !created.IsActive {
		t.Error("new charge item should be active")
	}
}

func TestCreateChargeItemRejectsUnknownType(t *testing.T) {
	f := newFixture()
	_, err := f.svc.CreateChargeItem(context.Background(),
		&ChargeItem{Code: "TRT-01", Name: "Cupping", Type: "surgery", Price: 300})
	if !apperr.IsCode(err, apperr.CodeValidation) {
		t.Errorf("create with unknown type: got %v", err)
	}
}

func TestUpdateChargeItemValidatesCodeAndType(t *testing.T) {
	f := newFixture()
	created, err := f.svc.CreateChargeItem(context.Background(),
		&ChargeItem{Code: "TRT-02", Name: "Moxibustion", Type: ChargeTreatment, Price: 200})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	created.Code = ""
	if err := f.svc.UpdateChargeItem(context.Background(), created); !apperr.IsCode(err, apperr.CodeValidation) {
		t.Errorf("update without code: got %v", err)
	}

	created.Code = "TRT-02"
	created.Type = "bogus"
	if err := f.svc.UpdateChargeItem(context.Background(), created); !apperr.IsCode(err, apperr.CodeValidation) {
		t.Errorf("update with unknown type: got %v", err)
	}
}
