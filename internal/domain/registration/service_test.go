package registration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/clinio/clinio/internal/platform/apperr"
	"github.com/clinio/clinio/internal/platform/metrics"
)

type mockRepo struct {
	regs map[uuid.UUID]*Registration
}

func newMockRepo() *mockRepo {
	return &mockRepo{regs: make(map[uuid.UUID]*Registration)}
}

func (m *mockRepo) Create(ctx context.Context, r *Registration) error {
	r.ID = uuid.New()
	r.CreatedAt = time.Now()
	m.regs[r.ID] = r
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*Registration, error) {
	r, ok := m.regs[id]
	if !ok {
		return nil, fmt.Errorf("no rows")
	}
	return r, nil
}

func (m *mockRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Registration, error) {
	return m.GetByID(ctx, id)
}

func (m *mockRepo) Update(ctx context.Context, r *Registration) error {
	if _, ok := m.regs[r.ID]; !ok {
		return fmt.Errorf("no rows")
	}
	m.regs[r.ID] = r
	return nil
}

func (m *mockRepo) ListByDate(ctx context.Context, date time.Time, doctorID uuid.UUID, room string, limit, offset int) ([]*Registration, int, error) {
	var items []*Registration
	day := date.Format("2006-01-02")
	for _, r := range m.regs {
		if r.RegistrationDate.Format("2006-01-02") != day {
			continue
		}
		if doctorID != uuid.Nil && r.DoctorID != doctorID {
			continue
		}
		if room != "" && (r.Room == nil || *r.Room != room) {
			continue
		}
		items = append(items, r)
	}
	return items, len(items), nil
}

func (m *mockRepo) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Registration, int, error) {
	var items []*Registration
	for _, r := range m.regs {
		if r.PatientID == patientID {
			items = append(items, r)
		}
	}
	return items, len(items), nil
}

type mockApptRepo struct {
	appts map[uuid.UUID]*Appointment
}

func newMockApptRepo() *mockApptRepo {
	return &mockApptRepo{appts: make(map[uuid.UUID]*Appointment)}
}

func (m *mockApptRepo) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	m.appts[a.ID] = a
	return nil
}

func (m *mockApptRepo) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := m.appts[id]
	if !ok {
		return nil, fmt.Errorf("no rows")
	}
	return a, nil
}

func (m *mockApptRepo) Update(ctx context.Context, a *Appointment) error {
	m.appts[a.ID] = a
	return nil
}

func (m *mockApptRepo) ListByDate(ctx context.Context, date time.Time, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	var items []*Appointment
	for _, a := range m.appts {
		items = append(items, a)
	}
	return items, len(items), nil
}

type mockBiller struct {
	calls []uuid.UUID
	err   error
}

func (m *mockBiller) CreateBillForRegistration(ctx context.Context, registrationID, patientID uuid.UUID, actor uuid.UUID) error {
	if m.err != nil {
		return m.err
	}
	m.calls = append(m.calls, registrationID)
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

func newTestService(repo *mockRepo, biller *mockBiller) *Service {
	return NewService(repo, newMockApptRepo(), biller, newFakeNumbers(), passthroughTx, nil)
}

func register(t *testing.T, svc *Service, doctorID uuid.UUID) *Registration {
	t.Helper()
	reg, err := svc.Register(context.Background(), &Registration{
		PatientID: uuid.New(),
		DoctorID:  doctorID,
	}, uuid.New())
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return reg
}

func TestRegisterAssignsQueueNumberPerDoctor(t *testing.T) {
	svc := newTestService(newMockRepo(), &mockBiller{})
	docA := uuid.New()
	docB := uuid.New()

	a1 := register(t, svc, docA)
	a2 := register(t, svc, docA)
	b1 := register(t, svc, docB)

	if a1.QueueNumber != 1 || a2.QueueNumber != 2 {
		t.Errorf("doctor A queue numbers = %d, %d, want 1, 2", a1.QueueNumber, a2.QueueNumber)
	}
	if b1.QueueNumber != 1 {
		t.Errorf("doctor B queue number = %d, want 1", b1.QueueNumber)
	}
	if a1.Status != StatusRegistered {
		t.Errorf("status = %q, want registered", a1.Status)
	}
}

func TestCheckInThenStartThenEnd(t *testing.T) {
	biller := &mockBiller{}
	svc := newTestService(newMockRepo(), biller)
	reg := register(t, svc, uuid.New())

	if _, err := svc.CheckIn(context.Background(), reg.ID); err != nil {
		t.Fatalf("check in: %v", err)
	}
	if _, err := svc.StartConsultation(context.Background(), reg.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	ended, err := svc.EndConsultation(context.Background(), reg.ID, uuid.New())
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if ended.Status != StatusCompleted {
		t.Errorf("status = %q, want completed", ended.Status)
	}
	if ended.ConsultationEndedAt == nil {
		t.Error("consultation_ended_at not set")
	}
	if len(biller.calls) != 1 || biller.calls[0] != reg.ID {
		t.Errorf("expected exactly one bill creation for %s, got %v", reg.ID, biller.calls)
	}
}

func TestEndConsultationRequiresInConsultation(t *testing.T) {
	biller := &mockBiller{}
	svc := newTestService(newMockRepo(), biller)
	reg := register(t, svc, uuid.New())

	if _, err := svc.EndConsultation(context.Background(), reg.ID, uuid.Nil); !apperr.IsCode(err, apperr.CodeConflict) {
		t.Errorf("expected conflict, got %v", err)
	}
	if len(biller.calls) != 0 {
		t.Error("bill must not be created on rejected transition")
	}
}

func TestStartConsultationRequiresWaiting(t *testing.T) {
	svc := newTestService(newMockRepo(), &mockBiller{})
	reg := register(t, svc, uuid.New())

	if _, err := svc.StartConsultation(context.Background(), reg.ID); !apperr.IsCode(err, apperr.CodeConflict) {
		t.Errorf("expected conflict, got %v", err)
	}
}

func TestCancelRejectedWhenCompleted(t *testing.T) {
	svc := newTestService(newMockRepo(), &mockBiller{})
	reg := register(t, svc, uuid.New())

	if _, err := svc.CheckIn(context.Background(), reg.ID); err != nil {
		t.Fatalf("check in: %v", err)
	}
	if _, err := svc.StartConsultation(context.Background(), reg.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.EndConsultation(context.Background(), reg.ID, uuid.Nil); err != nil {
		t.Fatalf("end: %v", err)
	}
	if _, err := svc.Cancel(context.Background(), reg.ID); !apperr.IsCode(err, apperr.CodeConflict) {
		t.Errorf("expected conflict, got %v", err)
	}
}

func TestNoShowOnlyBeforeConsultation(t *testing.T) {
	svc := newTestService(newMockRepo(), &mockBiller{})
	reg := register(t, svc, uuid.New())

	if _, err := svc.CheckIn(context.Background(), reg.ID); err != nil {
		t.Fatalf("check in: %v", err)
	}
	if _, err := svc.NoShow(context.Background(), reg.ID); err != nil {
		t.Fatalf("no-show from waiting: %v", err)
	}

	other := register(t, svc, uuid.New())
	if _, err := svc.CheckIn(context.Background(), other.ID); err != nil {
		t.Fatalf("check in: %v", err)
	}
	if _, err := svc.StartConsultation(context.Background(), other.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.NoShow(context.Background(), other.ID); !apperr.IsCode(err, apperr.CodeConflict) {
		t.Errorf("expected conflict, got %v", err)
	}
}

func TestTodayQueueGroupsByStatus(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockBiller{})
	doc := uuid.New()

	waiting := register(t, svc, doc)
	if _, err := svc.CheckIn(context.Background(), waiting.ID); err != nil {
		t.Fatalf("check in: %v", err)
	}

	inConsult := register(t, svc, doc)
	if _, err := svc.CheckIn(context.Background(), inConsult.ID); err != nil {
		t.Fatalf("check in: %v", err)
	}
	if _, err := svc.StartConsultation(context.Background(), inConsult.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	register(t, svc, doc) // still registered, not in any queue bucket

	summary, err := svc.TodayQueue(context.Background(), doc, "")
	if err != nil {
		t.Fatalf("today queue: %v", err)
	}
	if summary.Counts.Waiting != 1 || summary.Counts.InConsultation != 1 || summary.Counts.Completed != 0 {
		t.Errorf("counts = %+v", summary.Counts)
	}
	if summary.Counts.Total != 3 {
		t.Errorf("total = %d, want 3", summary.Counts.Total)
	}
}

func TestEndConsultationIncrementsCounter(t *testing.T) {
	m := metrics.New()
	svc := NewService(newMockRepo(), newMockApptRepo(), &mockBiller{}, newFakeNumbers(), passthroughTx, m)
	reg := register(t, svc, uuid.New())

	if _, err := svc.CheckIn(context.Background(), reg.ID); err != nil {
		t.Fatalf("check in: %v", err)
	}
	if _, err := svc.StartConsultation(context.Background(), reg.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.EndConsultation(context.Background(), reg.ID, uuid.Nil); err != nil {
		t.Fatalf("end: %v", err)
	}
	if got := testutil.ToFloat64(m.ConsultationsEnded); got != 1 {
		t.Errorf("consultations_ended_total = %v, want 1", got)
	}

	// A rejected transition must not count.
	if _, err := svc.EndConsultation(context.Background(), reg.ID, uuid.Nil); !apperr.IsCode(err, apperr.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if got := testutil.ToFloat64(m.ConsultationsEnded); got != 1 {
		t.Errorf("consultations_ended_total = %v after rejected end, want 1", got)
	}
}

func TestConvertAppointment(t *testing.T) {
	repo := newMockRepo()
	appts := newMockApptRepo()
	svc := NewService(repo, appts, &mockBiller{}, newFakeNumbers(), passthroughTx, nil)

	a := &Appointment{PatientID: uuid.New(), DoctorID: uuid.New(), AppointmentTime: "09:30"}
	if _, err := svc.CreateAppointment(context.Background(), a, uuid.Nil); err != nil {
		t.Fatalf("create appointment: %v", err)
	}

	reg, err := svc.ConvertAppointment(context.Background(), a.ID, 150, uuid.New())
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if reg.AppointmentID == nil || *reg.AppointmentID != a.ID {
		t.Error("registration not linked to appointment")
	}
	if a.Status != AppointmentConverted {
		t.Errorf("appointment status = %q, want converted", a.Status)
	}

	if _, err := svc.ConvertAppointment(context.Background(), a.ID, 150, uuid.Nil); !apperr.IsCode(err, apperr.CodeConflict) {
		t.Errorf("expected conflict on double convert, got %v", err)
	}
}
