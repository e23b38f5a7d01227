package reporting

import (
	"time"

	"github.com/google/uuid"
)

// DailySummary aggregates one day of clinic activity.
type DailySummary struct {
	Date              string             `json:"date"`
	Registrations     int                `json:"registrations"`
	CompletedVisits   int                `json:"completed_visits"`
	BillsIssued       int                `json:"bills_issued"`
	BillsPaid         int                `json:"bills_paid"`
	Revenue           float64            `json:"revenue"`
	RevenueByMethod   map[string]float64 `json:"revenue_by_method"`
	RefundsTotal      float64            `json:"refunds_total"`
	OutstandingDebt   float64            `json:"outstanding_debt"`
	PrescriptionCount int                `json:"prescription_count"`
}

// MonthlySummary aggregates a calendar month, with per-day revenue.
type MonthlySummary struct {
	Month           string             `json:"month"`
	Registrations   int                `json:"registrations"`
	BillsIssued     int                `json:"bills_issued"`
	Revenue         float64            `json:"revenue"`
	RevenueByMethod map[string]float64 `json:"revenue_by_method"`
	RefundsTotal    float64            `json:"refunds_total"`
	RevenueByDay    []DayRevenue       `json:"revenue_by_day"`
}

// DayRevenue is one day's net revenue inside a monthly summary.
type DayRevenue struct {
	Date    string  `json:"date"`
	Revenue float64 `json:"revenue"`
}

// PharmacyReconciliation summarizes dispensing order traffic per pharmacy
// over a date range, for checking against the pharmacy's own statement.
type PharmacyReconciliation struct {
	PharmacyID   uuid.UUID             `json:"pharmacy_id"`
	PharmacyName string                `json:"pharmacy_name"`
	From         string                `json:"from"`
	To           string                `json:"to"`
	OrdersTotal  int                   `json:"orders_total"`
	FeesTotal    float64               `json:"fees_total"`
	ByStatus     map[string]int        `json:"by_status"`
	Orders       []ReconciliationOrder `json:"orders"`
}

// ReconciliationOrder is one order row in a reconciliation report.
type ReconciliationOrder struct {
	OrderNumber   string     `json:"order_number"`
	ClientOrderID uuid.UUID  `json:"client_order_id"`
	Status        string     `json:"status"`
	TotalAmount   float64    `json:"total_amount"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}
