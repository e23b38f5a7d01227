package billing

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinio/clinio/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// =========== Bill Repository ===========

const billCols = `id, bill_number, patient_id, registration_id, subtotal, discount,
	total_amount, paid_amount, balance_due, status, payment_method, paid_at,
	created_by, created_at, updated_at`

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func scanBill(row pgx.Row) (*Bill, error) {
	var b Bill
	err := row.Scan(&b.ID, &b.BillNumber, &b.PatientID, &b.RegistrationID,
		&b.Subtotal, &b.Discount, &b.TotalAmount, &b.PaidAmount, &b.BalanceDue,
		&b.Status, &b.PaymentMethod, &b.PaidAt, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *repoPG) Create(ctx context.Context, b *Bill) error {
	q := conn(ctx, r.pool)
	b.ID = uuid.New()
	_, err := q.Exec(ctx,
		`INSERT INTO bills (id, bill_number, patient_id, registration_id, subtotal,
			discount, total_amount, paid_amount, balance_due, status, payment_method,
			paid_at, created_by)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		b.ID, b.BillNumber, b.PatientID, b.RegistrationID, b.Subtotal,
		b.Discount, b.TotalAmount, b.PaidAmount, b.BalanceDue, b.Status,
		b.PaymentMethod, b.PaidAt, b.CreatedBy)
	if err != nil {
		return err
	}
	for _, item := range b.Items {
		item.ID = uuid.New()
		item.BillID = b.ID
		_, err := q.Exec(ctx,
			`INSERT INTO bill_items (id, bill_id, charge_item_id, prescription_id,
				description, quantity, unit_price, subtotal)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			item.ID, item.BillID, item.ChargeItemID, item.PrescriptionID,
			item.Description, item.Quantity, item.UnitPrice, item.Subtotal)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Bill, error) {
	return scanBill(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+billCols+` FROM bills WHERE id = $1`, id))
}

func (r *repoPG) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Bill, error) {
	return scanBill(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+billCols+` FROM bills WHERE id = $1 FOR UPDATE`, id))
}

func (r *repoPG) GetByRegistration(ctx context.Context, registrationID uuid.UUID) (*Bill, error) {
	return scanBill(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+billCols+` FROM bills WHERE registration_id = $1`, registrationID))
}

func (r *repoPG) Update(ctx context.Context, b *Bill) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE bills SET subtotal=$2, discount=$3, total_amount=$4, paid_amount=$5,
			balance_due=$6, status=$7, payment_method=$8, paid_at=$9, updated_at=now()
		 WHERE id = $1`,
		b.ID, b.Subtotal, b.Discount, b.TotalAmount, b.PaidAmount,
		b.BalanceDue, b.Status, b.PaymentMethod, b.PaidAt)
	return err
}

func (r *repoPG) ListItems(ctx context.Context, billID uuid.UUID) ([]*BillItem, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT id, bill_id, charge_item_id, prescription_id, description, quantity,
			unit_price, subtotal
		 FROM bill_items WHERE bill_id = $1 ORDER BY id`, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*BillItem
	for rows.Next() {
		var it BillItem
		if err := rows.Scan(&it.ID, &it.BillID, &it.ChargeItemID, &it.PrescriptionID,
			&it.Description, &it.Quantity, &it.UnitPrice, &it.Subtotal); err != nil {
			return nil, err
		}
		items = append(items, &it)
	}
	return items, rows.Err()
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Bill, int, error) {
	q := conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM bills WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.Query(ctx,
		`SELECT `+billCols+` FROM bills WHERE patient_id = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, b)
	}
	return items, total, rows.Err()
}

func (r *repoPG) AddPayment(ctx context.Context, p *Payment) error {
	p.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO payments (id, bill_id, amount, payment_method, reference_number,
			notes, created_by)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		p.ID, p.BillID, p.Amount, p.PaymentMethod, p.ReferenceNumber, p.Notes, p.CreatedBy)
	return err
}

func (r *repoPG) ListPayments(ctx context.Context, billID uuid.UUID) ([]*Payment, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT id, bill_id, amount, payment_method, reference_number, notes,
			created_by, created_at
		 FROM payments WHERE bill_id = $1 ORDER BY created_at`, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.BillID, &p.Amount, &p.PaymentMethod,
			&p.ReferenceNumber, &p.Notes, &p.CreatedBy, &p.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &p)
	}
	return items, rows.Err()
}

// =========== Debt Repository ===========

const debtCols = `id, patient_id, bill_id, original_amount, remaining_amount,
	status, created_at, updated_at`

type debtRepoPG struct{ pool *pgxpool.Pool }

func NewDebtRepoPG(pool *pgxpool.Pool) DebtRepository { return &debtRepoPG{pool: pool} }

func scanDebt(row pgx.Row) (*Debt, error) {
	var d Debt
	err := row.Scan(&d.ID, &d.PatientID, &d.BillID, &d.OriginalAmount,
		&d.RemainingAmount, &d.Status, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *debtRepoPG) Create(ctx context.Context, d *Debt) error {
	d.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO debts (id, patient_id, bill_id, original_amount, remaining_amount, status)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		d.ID, d.PatientID, d.BillID, d.OriginalAmount, d.RemainingAmount, d.Status)
	return err
}

func (r *debtRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Debt, error) {
	return scanDebt(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+debtCols+` FROM debts WHERE id = $1`, id))
}

func (r *debtRepoPG) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Debt, error) {
	return scanDebt(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+debtCols+` FROM debts WHERE id = $1 FOR UPDATE`, id))
}

func (r *debtRepoPG) GetByBillID(ctx context.Context, billID uuid.UUID) (*Debt, error) {
	return scanDebt(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+debtCols+` FROM debts WHERE bill_id = $1 FOR UPDATE`, billID))
}

func (r *debtRepoPG) Update(ctx context.Context, d *Debt) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE debts SET remaining_amount=$2, status=$3, updated_at=now() WHERE id = $1`,
		d.ID, d.RemainingAmount, d.Status)
	return err
}

func (r *debtRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Debt, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+debtCols+` FROM debts WHERE patient_id = $1 ORDER BY created_at DESC`,
		patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Debt
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

// =========== Charge Item Repository ===========

type chargeItemRepoPG struct{ pool *pgxpool.Pool }

func NewChargeItemRepoPG(pool *pgxpool.Pool) ChargeItemRepository {
	return &chargeItemRepoPG{pool: pool}
}

func (r *chargeItemRepoPG) Create(ctx context.Context, c *ChargeItem) error {
	c.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO charge_items (id, code, name, item_type, description, price, is_active)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		c.ID, c.Code, c.Name, c.Type, c.Description, c.Price, c.IsActive)
	return err
}

func (r *chargeItemRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ChargeItem, error) {
	var c ChargeItem
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, code, name, item_type, description, price, is_active, created_at, updated_at
		 FROM charge_items WHERE id = $1`, id).
		Scan(&c.ID, &c.Code, &c.Name, &c.Type, &c.Description, &c.Price, &c.IsActive,
			&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *chargeItemRepoPG) Update(ctx context.Context, c *ChargeItem) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE charge_items SET code=$2, name=$3, item_type=$4, description=$5, price=$6,
			is_active=$7, updated_at=now()
		 WHERE id = $1`,
		c.ID, c.Code, c.Name, c.Type, c.Description, c.Price, c.IsActive)
	return err
}

func (r *chargeItemRepoPG) List(ctx context.Context, activeOnly bool) ([]*ChargeItem, error) {
	sql := `SELECT id, code, name, item_type, description, price, is_active, created_at, updated_at
		 FROM charge_items`
	if activeOnly {
		sql += ` WHERE is_active`
	}
	sql += ` ORDER BY code`
	rows, err := conn(ctx, r.pool).Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*ChargeItem
	for rows.Next() {
		var c ChargeItem
		if err := rows.Scan(&c.ID, &c.Code, &c.Name, &c.Type, &c.Description, &c.Price,
			&c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, &c)
	}
	return items, rows.Err()
}
