package reporting

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinio/clinio/internal/platform/apperr"
)

type mockRepo struct {
	daily   *DailySummary
	monthly *MonthlySummary
	rec     *PharmacyReconciliation

	gotDay   time.Time
	gotYear  int
	gotMonth time.Month
}

func (m *mockRepo) DailySummary(ctx context.Context, day time.Time) (*DailySummary, error) {
	m.gotDay = day
	return m.daily, nil
}

func (m *mockRepo) MonthlySummary(ctx context.Context, year int, month time.Month) (*MonthlySummary, error) {
	m.gotYear, m.gotMonth = year, month
	return m.monthly, nil
}

func (m *mockRepo) PharmacyReconciliation(ctx context.Context, pharmacyID uuid.UUID, from, to time.Time) (*PharmacyReconciliation, error) {
	return m.rec, nil
}

func TestDailyParsesDate(t *testing.T) {
	repo := &mockRepo{daily: &DailySummary{Date: "2025-01-15"}}
	svc := NewService(repo, zerolog.Nop())

	if _, err := svc.Daily(context.Background(), "2025-01-15"); err != nil {
		t.Fatalf("daily: %v", err)
	}
	if repo.gotDay.Format("2006-01-02") != "2025-01-15" {
		t.Errorf("day = %v", repo.gotDay)
	}

	if _, err := svc.Daily(context.Background(), "15/01/2025"); !apperr.IsCode(err, apperr.CodeValidation) {
		t.Errorf("bad date: got %v", err)
	}
}

func TestDailyDefaultsToToday(t *testing.T) {
	repo := &mockRepo{daily: &DailySummary{}}
	svc := NewService(repo, zerolog.Nop())

	if _, err := svc.Daily(context.Background(), ""); err != nil {
		t.Fatalf("daily: %v", err)
	}
	if repo.gotDay.Format("2006-01-02") != time.Now().Format("2006-01-02") {
		t.Errorf("day = %v, want today", repo.gotDay)
	}
}

func TestMonthlyParsesMonth(t *testing.T) {
	repo := &mockRepo{monthly: &MonthlySummary{}}
	svc := NewService(repo, zerolog.Nop())

	if _, err := svc.Monthly(context.Background(), "2025-02"); err != nil {
		t.Fatalf("monthly: %v", err)
	}
	if repo.gotYear != 2025 || repo.gotMonth != time.February {
		t.Errorf("parsed %d-%v", repo.gotYear, repo.gotMonth)
	}

	if _, err := svc.Monthly(context.Background(), "Feb 2025"); !apperr.IsCode(err, apperr.CodeValidation) {
		t.Errorf("bad month: got %v", err)
	}
}

func TestReconciliationValidatesRange(t *testing.T) {
	repo := &mockRepo{rec: &PharmacyReconciliation{}}
	svc := NewService(repo, zerolog.Nop())

	if _, err := svc.Reconciliation(context.Background(), uuid.New(), "2025-01-31", "2025-01-01"); !apperr.IsCode(err, apperr.CodeValidation) {
		t.Errorf("inverted range: got %v", err)
	}
	if _, err := svc.Reconciliation(context.Background(), uuid.New(), "2025-01-01", "2025-01-31"); err != nil {
		t.Errorf("valid range: %v", err)
	}
}
