package patient

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinio/clinio/internal/platform/apperr"
)

type mockRepo struct {
	patients map[uuid.UUID]*Patient
}

func newMockRepo() *mockRepo {
	return &mockRepo{patients: make(map[uuid.UUID]*Patient)}
}

func (m *mockRepo) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	m.patients[p.ID] = p
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, fmt.Errorf("no rows")
	}
	return p, nil
}

func (m *mockRepo) GetByChartNumber(ctx context.Context, chartNumber string) (*Patient, error) {
	for _, p := range m.patients {
		if p.ChartNumber == chartNumber {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no rows")
}

func (m *mockRepo) Update(ctx context.Context, p *Patient) error {
	if _, ok := m.patients[p.ID]; !ok {
		return fmt.Errorf("no rows")
	}
	m.patients[p.ID] = p
	return nil
}

func (m *mockRepo) Search(ctx context.Context, query string, limit, offset int) ([]*Patient, int, error) {
	var items []*Patient
	for _, p := range m.patients {
		if query == "" || strings.Contains(p.Name, query) || strings.Contains(p.ChartNumber, query) {
			items = append(items, p)
		}
	}
	return items, len(items), nil
}

func (m *mockRepo) CreditBalance(ctx context.Context, id uuid.UUID, amount float64) error {
	p, ok := m.patients[id]
	if !ok {
		return fmt.Errorf("no rows")
	}
	p.Balance += amount
	return nil
}

type fakeNumbers struct {
	counters map[string]int
}

func newFakeNumbers() *fakeNumbers {
	return &fakeNumbers{counters: make(map[string]int)}
}

func (f *fakeNumbers) Next(ctx context.Context, prefix string) (int, error) {
	f.counters[prefix]++
	return f.counters[prefix], nil
}

func (f *fakeNumbers) NextNumber(ctx context.Context, kind string, day time.Time) (string, error) {
	prefix := kind + day.Format("20060102")
	n, _ := f.Next(ctx, prefix)
	return fmt.Sprintf("%s%04d", prefix, n), nil
}

func TestCreateAssignsChartNumber(t *testing.T) {
	svc := NewService(newMockRepo(), newFakeNumbers())

	p, err := svc.Create(context.Background(), &Patient{Name: "Chen Wei", Gender: "male"}, uuid.New())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	wantPrefix := "P" + time.Now().Format("20060102")
	if !strings.HasPrefix(p.ChartNumber, wantPrefix) {
		t.Errorf("chart number %q missing prefix %q", p.ChartNumber, wantPrefix)
	}
	if !p.IsActive {
		t.Error("new patient should be active")
	}
}

func TestCreateChartNumbersAreSequential(t *testing.T) {
	svc := NewService(newMockRepo(), newFakeNumbers())

	first, err := svc.Create(context.Background(), &Patient{Name: "A"}, uuid.Nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := svc.Create(context.Background(), &Patient{Name: "B"}, uuid.Nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.ChartNumber == second.ChartNumber {
		t.Errorf("chart numbers must be unique, both are %q", first.ChartNumber)
	}
}

func TestCreateRequiresName(t *testing.T) {
	svc := NewService(newMockRepo(), newFakeNumbers())

	_, err := svc.Create(context.Background(), &Patient{}, uuid.Nil)
	if !apperr.IsCode(err, apperr.CodeValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestUpdatePreservesChartNumberAndBalance(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, newFakeNumbers())

	p, err := svc.Create(context.Background(), &Patient{Name: "Chen Wei"}, uuid.Nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.CreditBalance(context.Background(), p.ID, 150); err != nil {
		t.Fatalf("credit: %v", err)
	}

	upd := &Patient{ID: p.ID, Name: "Chen Wei", Gender: "male", ChartNumber: "FORGED", Balance: 9999}
	if err := svc.Update(context.Background(), upd); err != nil {
		t.Fatalf("update: %v", err)
	}
	if upd.ChartNumber != p.ChartNumber {
		t.Errorf("chart number overwritten: %q", upd.ChartNumber)
	}
	if upd.Balance != 150 {
		t.Errorf("balance overwritten: %v", upd.Balance)
	}
}

func TestDeactivate(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, newFakeNumbers())

	p, err := svc.Create(context.Background(), &Patient{Name: "Chen Wei"}, uuid.Nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Deactivate(context.Background(), p.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	got, _ := repo.GetByID(context.Background(), p.ID)
	if got.IsActive {
		t.Error("patient should be inactive")
	}
}
