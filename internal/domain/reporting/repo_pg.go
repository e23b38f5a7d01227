package reporting

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const dateFmt = "2006-01-02"

func (r *repoPG) DailySummary(ctx context.Context, day time.Time) (*DailySummary, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	s := &DailySummary{
		Date:            start.Format(dateFmt),
		RevenueByMethod: make(map[string]float64),
	}

	err := r.pool.QueryRow(ctx,
		`SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'completed')
		 FROM registrations
		 WHERE registration_date >= $1 AND registration_date < $2`, start, end).
		Scan(&s.Registrations, &s.CompletedVisits)
	if err != nil {
		return nil, err
	}

	err = r.pool.QueryRow(ctx,
		`SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'paid')
		 FROM bills
		 WHERE created_at >= $1 AND created_at < $2`, start, end).
		Scan(&s.BillsIssued, &s.BillsPaid)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT payment_method, SUM(amount)
		 FROM payments
		 WHERE amount > 0 AND created_at >= $1 AND created_at < $2
		 GROUP BY payment_method`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var method string
		var amount float64
		if err := rows.Scan(&method, &amount); err != nil {
			return nil, err
		}
		s.RevenueByMethod[method] = amount
		s.Revenue += amount
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = r.pool.QueryRow(ctx,
		`SELECT COALESCE(-SUM(amount), 0)
		 FROM payments
		 WHERE amount < 0 AND created_at >= $1 AND created_at < $2`, start, end).
		Scan(&s.RefundsTotal)
	if err != nil {
		return nil, err
	}

	err = r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(remaining_amount), 0)
		 FROM debts
		 WHERE status IN ('outstanding', 'partial')`).
		Scan(&s.OutstandingDebt)
	if err != nil {
		return nil, err
	}

	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM prescriptions WHERE created_at >= $1 AND created_at < $2`,
		start, end).Scan(&s.PrescriptionCount)
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (r *repoPG) MonthlySummary(ctx context.Context, year int, month time.Month) (*MonthlySummary, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.Local)
	end := start.AddDate(0, 1, 0)

	s := &MonthlySummary{
		Month:           start.Format("2006-01"),
		RevenueByMethod: make(map[string]float64),
	}

	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM registrations
		 WHERE registration_date >= $1 AND registration_date < $2`, start, end).
		Scan(&s.Registrations)
	if err != nil {
		return nil, err
	}

	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM bills WHERE created_at >= $1 AND created_at < $2`,
		start, end).Scan(&s.BillsIssued)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT payment_method, SUM(amount)
		 FROM payments
		 WHERE amount > 0 AND created_at >= $1 AND created_at < $2
		 GROUP BY payment_method`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var method string
		var amount float64
		if err := rows.Scan(&method, &amount); err != nil {
			return nil, err
		}
		s.RevenueByMethod[method] = amount
		s.Revenue += amount
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = r.pool.QueryRow(ctx,
		`SELECT COALESCE(-SUM(amount), 0)
		 FROM payments
		 WHERE amount < 0 AND created_at >= $1 AND created_at < $2`, start, end).
		Scan(&s.RefundsTotal)
	if err != nil {
		return nil, err
	}

	dayRows, err := r.pool.Query(ctx,
		`SELECT created_at::date AS day, SUM(amount)
		 FROM payments
		 WHERE created_at >= $1 AND created_at < $2
		 GROUP BY day ORDER BY day`, start, end)
	if err != nil {
		return nil, err
	}
	defer dayRows.Close()
	for dayRows.Next() {
		var day time.Time
		var amount float64
		if err := dayRows.Scan(&day, &amount); err != nil {
			return nil, err
		}
		s.RevenueByDay = append(s.RevenueByDay, DayRevenue{
			Date:    day.Format(dateFmt),
			Revenue: amount,
		})
	}
	return s, dayRows.Err()
}

func (r *repoPG) PharmacyReconciliation(ctx context.Context, pharmacyID uuid.UUID, from, to time.Time) (*PharmacyReconciliation, error) {
	rec := &PharmacyReconciliation{
		PharmacyID: pharmacyID,
		From:       from.Format(dateFmt),
		To:         to.Format(dateFmt),
		ByStatus:   make(map[string]int),
	}

	err := r.pool.QueryRow(ctx,
		`SELECT name FROM external_pharmacies WHERE id = $1`, pharmacyID).
		Scan(&rec.PharmacyName)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT order_number, client_order_id, status, total_amount, sent_at, completed_at
		 FROM dispensing_orders
		 WHERE external_pharmacy_id = $1 AND created_at >= $2 AND created_at < $3
		 ORDER BY created_at`, pharmacyID, from, to.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var o ReconciliationOrder
		if err := rows.Scan(&o.OrderNumber, &o.ClientOrderID, &o.Status, &o.TotalAmount,
			&o.SentAt, &o.CompletedAt); err != nil {
			return nil, err
		}
		rec.Orders = append(rec.Orders, o)
		rec.ByStatus[o.Status]++
		rec.OrdersTotal++
		rec.FeesTotal += o.TotalAmount
	}
	return rec, rows.Err()
}
