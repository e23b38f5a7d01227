package inventory

import (
	"context"
	"fmt"

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

// =========== Category Repository ===========

type categoryRepoPG struct{ pool *pgxpool.Pool }

func NewCategoryRepoPG(pool *pgxpool.Pool) CategoryRepository { return &categoryRepoPG{pool: pool} }

func (r *categoryRepoPG) Create(ctx context.Context, c *MedicineCategory) error {
	c.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO medicine_categories (id, name, sort_order) VALUES ($1,$2,$3)`,
		c.ID, c.Name, c.SortOrder)
	return err
}

func (r *categoryRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*MedicineCategory, error) {
	var c MedicineCategory
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, name, sort_order, created_at FROM medicine_categories WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.SortOrder, &c.CreatedAt)
	return &c, err
}

func (r *categoryRepoPG) Update(ctx context.Context, c *MedicineCategory) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE medicine_categories SET name=$2, sort_order=$3 WHERE id = $1`,
		c.ID, c.Name, c.SortOrder)
	return err
}

func (r *categoryRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM medicine_categories WHERE id = $1`, id)
	return err
}

func (r *categoryRepoPG) List(ctx context.Context) ([]*MedicineCategory, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT id, name, sort_order, created_at FROM medicine_categories ORDER BY sort_order, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*MedicineCategory
	for rows.Next() {
		var c MedicineCategory
		if err := rows.Scan(&c.ID, &c.Name, &c.SortOrder, &c.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &c)
	}
	return items, rows.Err()
}

// =========== Supplier Repository ===========

type supplierRepoPG struct{ pool *pgxpool.Pool }

func NewSupplierRepoPG(pool *pgxpool.Pool) SupplierRepository { return &supplierRepoPG{pool: pool} }

const supplierCols = `id, name, contact_person, phone, email, address, notes, is_active, created_at`

func (r *supplierRepoPG) scanSupplier(row pgx.Row) (*Supplier, error) {
	var s Supplier
	err := row.Scan(&s.ID, &s.Name, &s.ContactPerson, &s.Phone, &s.Email, &s.Address, &s.Notes, &s.IsActive, &s.CreatedAt)
	return &s, err
}

func (r *supplierRepoPG) Create(ctx context.Context, s *Supplier) error {
	s.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO suppliers (id, name, contact_person, phone, email, address, notes, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		s.ID, s.Name, s.ContactPerson, s.Phone, s.Email, s.Address, s.Notes, s.IsActive)
	return err
}

func (r *supplierRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Supplier, error) {
	return r.scanSupplier(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+supplierCols+` FROM suppliers WHERE id = $1`, id))
}

func (r *supplierRepoPG) Update(ctx context.Context, s *Supplier) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE suppliers SET name=$2, contact_person=$3, phone=$4, email=$5, address=$6, notes=$7, is_active=$8
		WHERE id = $1`,
		s.ID, s.Name, s.ContactPerson, s.Phone, s.Email, s.Address, s.Notes, s.IsActive)
	return err
}

func (r *supplierRepoPG) List(ctx context.Context, limit, offset int) ([]*Supplier, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM suppliers`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+supplierCols+` FROM suppliers ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Supplier
	for rows.Next() {
		s, err := r.scanSupplier(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, nil
}

// =========== Medicine Repository ===========

type medicineRepoPG struct{ pool *pgxpool.Pool }

func NewMedicineRepoPG(pool *pgxpool.Pool) MedicineRepository { return &medicineRepoPG{pool: pool} }

const medicineCols = `id, code, name, english_name, pinyin, medicine_type, category_id,
	specification, unit, package_unit, package_size, supplier_id,
	cost_price, selling_price, safety_stock, external_sku, is_active, created_at, updated_at`

func (r *medicineRepoPG) scanMedicine(row pgx.Row) (*Medicine, error) {
	var m Medicine
	err := row.Scan(&m.ID, &m.Code, &m.Name, &m.EnglishName, &m.Pinyin, &m.MedicineType, &m.CategoryID,
		&m.Specification, &m.Unit, &m.PackageUnit, &m.PackageSize, &m.SupplierID,
		&m.CostPrice, &m.SellingPrice, &m.SafetyStock, &m.ExternalSKU, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	return &m, err
}

func (r *medicineRepoPG) Create(ctx context.Context, m *Medicine) error {
	m.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO medicines (id, code, name, english_name, pinyin, medicine_type, category_id,
			specification, unit, package_unit, package_size, supplier_id,
			cost_price, selling_price, safety_stock, external_sku, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		m.ID, m.Code, m.Name, m.EnglishName, m.Pinyin, m.MedicineType, m.CategoryID,
		m.Specification, m.Unit, m.PackageUnit, m.PackageSize, m.SupplierID,
		m.CostPrice, m.SellingPrice, m.SafetyStock, m.ExternalSKU, m.IsActive)
	if err != nil {
		return err
	}
	// Every medicine carries a stock row from day one.
	_, err = conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO inventory (id, medicine_id, quantity) VALUES ($1,$2,0)`, uuid.New(), m.ID)
	return err
}

func (r *medicineRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Medicine, error) {
	return r.scanMedicine(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+medicineCols+` FROM medicines WHERE id = $1`, id))
}

func (r *medicineRepoPG) GetByCode(ctx context.Context, code string) (*Medicine, error) {
	return r.scanMedicine(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+medicineCols+` FROM medicines WHERE code = $1`, code))
}

func (r *medicineRepoPG) Update(ctx context.Context, m *Medicine) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE medicines SET name=$2, english_name=$3, pinyin=$4, medicine_type=$5, category_id=$6,
			specification=$7, unit=$8, package_unit=$9, package_size=$10, supplier_id=$11,
			cost_price=$12, selling_price=$13, safety_stock=$14, external_sku=$15, is_active=$16,
			updated_at=NOW()
		WHERE id = $1`,
		m.ID, m.Name, m.EnglishName, m.Pinyin, m.MedicineType, m.CategoryID,
		m.Specification, m.Unit, m.PackageUnit, m.PackageSize, m.SupplierID,
		m.CostPrice, m.SellingPrice, m.SafetyStock, m.ExternalSKU, m.IsActive)
	return err
}

func (r *medicineRepoPG) Search(ctx context.Context, query string, medicineType MedicineType, limit, offset int) ([]*Medicine, int, error) {
	where := `WHERE is_active`
	args := []interface{}{}
	if query != "" {
		args = append(args, "%"+query+"%")
		where += fmt.Sprintf(` AND (name ILIKE $%d OR code ILIKE $%d OR pinyin ILIKE $%d OR english_name ILIKE $%d)`,
			len(args), len(args), len(args), len(args))
	}
	if medicineType != "" {
		args = append(args, medicineType)
		where += fmt.Sprintf(` AND medicine_type = $%d`, len(args))
	}

	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM medicines `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dataSQL := fmt.Sprintf(`SELECT %s FROM medicines %s ORDER BY code LIMIT $%d OFFSET $%d`,
		medicineCols, where, len(args)+1, len(args)+2)
	rows, err := conn(ctx, r.pool).Query(ctx, dataSQL, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Medicine
	for rows.Next() {
		m, err := r.scanMedicine(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, nil
}

// =========== Stock Repository ===========

type stockRepoPG struct{ pool *pgxpool.Pool }

func NewStockRepoPG(pool *pgxpool.Pool) StockRepository { return &stockRepoPG{pool: pool} }

func (r *stockRepoPG) GetByMedicine(ctx context.Context, medicineID uuid.UUID) (*Stock, error) {
	var s Stock
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, medicine_id, quantity, updated_at FROM inventory WHERE medicine_id = $1`, medicineID).
		Scan(&s.ID, &s.MedicineID, &s.Quantity, &s.UpdatedAt)
	return &s, err
}

func (r *stockRepoPG) AdjustQuantity(ctx context.Context, medicineID uuid.UUID, delta float64) (float64, float64, error) {
	var after float64
	err := conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE inventory SET quantity = quantity + $2, updated_at=NOW()
		WHERE medicine_id = $1
		RETURNING quantity`, medicineID, delta).Scan(&after)
	if err != nil {
		return 0, 0, err
	}
	return after - delta, after, nil
}

func (r *stockRepoPG) RecordTransaction(ctx context.Context, t *Transaction) error {
	t.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO inventory_transactions (id, medicine_id, type, quantity,
			before_quantity, after_quantity, unit_cost, reference_number, notes, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		t.ID, t.MedicineID, t.Type, t.Quantity,
		t.BeforeQuantity, t.AfterQuantity, t.UnitCost, t.ReferenceNumber, t.Notes, t.CreatedBy)
	return err
}

func (r *stockRepoPG) ListTransactions(ctx context.Context, medicineID uuid.UUID, limit, offset int) ([]*Transaction, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM inventory_transactions WHERE medicine_id = $1`, medicineID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, medicine_id, type, quantity, before_quantity, after_quantity,
			unit_cost, reference_number, notes, created_by, created_at
		FROM inventory_transactions
		WHERE medicine_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, medicineID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.MedicineID, &t.Type, &t.Quantity, &t.BeforeQuantity, &t.AfterQuantity,
			&t.UnitCost, &t.ReferenceNumber, &t.Notes, &t.CreatedBy, &t.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &t)
	}
	return items, total, nil
}

func (r *stockRepoPG) LowStock(ctx context.Context) ([]*LowStockEntry, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT m.id, m.code, m.name, m.unit, i.quantity, m.safety_stock
		FROM medicines m
		JOIN inventory i ON i.medicine_id = m.id
		WHERE m.is_active AND i.quantity <= m.safety_stock
		ORDER BY i.quantity / NULLIF(m.safety_stock, 0) NULLS FIRST`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*LowStockEntry
	for rows.Next() {
		var e LowStockEntry
		if err := rows.Scan(&e.MedicineID, &e.Code, &e.Name, &e.Unit, &e.Quantity, &e.SafetyStock); err != nil {
			return nil, err
		}
		items = append(items, &e)
	}
	return items, rows.Err()
}

// =========== Purchase Order Repository ===========

type purchaseOrderRepoPG struct{ pool *pgxpool.Pool }

func NewPurchaseOrderRepoPG(pool *pgxpool.Pool) PurchaseOrderRepository {
	return &purchaseOrderRepoPG{pool: pool}
}

const poCols = `id, order_number, supplier_id, status, order_date, expected_date, received_date,
	total_amount, notes, created_by, created_at, updated_at`

func (r *purchaseOrderRepoPG) scanPO(row pgx.Row) (*PurchaseOrder, error) {
	var po PurchaseOrder
	err := row.Scan(&po.ID, &po.OrderNumber, &po.SupplierID, &po.Status, &po.OrderDate, &po.ExpectedDate,
		&po.ReceivedDate, &po.TotalAmount, &po.Notes, &po.CreatedBy, &po.CreatedAt, &po.UpdatedAt)
	return &po, err
}

func (r *purchaseOrderRepoPG) Create(ctx context.Context, po *PurchaseOrder) error {
	po.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO purchase_orders (id, order_number, supplier_id, status, order_date,
			expected_date, total_amount, notes, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		po.ID, po.OrderNumber, po.SupplierID, po.Status, po.OrderDate,
		po.ExpectedDate, po.TotalAmount, po.Notes, po.CreatedBy)
	if err != nil {
		return err
	}
	for _, item := range po.Items {
		item.ID = uuid.New()
		item.PurchaseOrderID = po.ID
		if _, err := conn(ctx, r.pool).Exec(ctx, `
			INSERT INTO purchase_order_items (id, purchase_order_id, medicine_id, quantity, unit_cost, subtotal)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			item.ID, item.PurchaseOrderID, item.MedicineID, item.Quantity, item.UnitCost, item.Subtotal); err != nil {
			return err
		}
	}
	return nil
}

func (r *purchaseOrderRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*PurchaseOrder, error) {
	return r.scanPO(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+poCols+` FROM purchase_orders WHERE id = $1`, id))
}

func (r *purchaseOrderRepoPG) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*PurchaseOrder, error) {
	return r.scanPO(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+poCols+` FROM purchase_orders WHERE id = $1 FOR UPDATE`, id))
}

func (r *purchaseOrderRepoPG) Update(ctx context.Context, po *PurchaseOrder) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE purchase_orders SET status=$2, expected_date=$3, received_date=$4,
			total_amount=$5, notes=$6, updated_at=NOW()
		WHERE id = $1`,
		po.ID, po.Status, po.ExpectedDate, po.ReceivedDate, po.TotalAmount, po.Notes)
	return err
}

func (r *purchaseOrderRepoPG) ListItems(ctx context.Context, poID uuid.UUID) ([]*PurchaseOrderItem, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, purchase_order_id, medicine_id, quantity, unit_cost, subtotal
		FROM purchase_order_items WHERE purchase_order_id = $1`, poID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*PurchaseOrderItem
	for rows.Next() {
		var it PurchaseOrderItem
		if err := rows.Scan(&it.ID, &it.PurchaseOrderID, &it.MedicineID, &it.Quantity, &it.UnitCost, &it.Subtotal); err != nil {
			return nil, err
		}
		items = append(items, &it)
	}
	return items, rows.Err()
}

func (r *purchaseOrderRepoPG) List(ctx context.Context, status PurchaseOrderStatus, limit, offset int) ([]*PurchaseOrder, int, error) {
	where := ``
	args := []interface{}{}
	if status != "" {
		where = `WHERE status = $1`
		args = append(args, status)
	}

	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM purchase_orders `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dataSQL := fmt.Sprintf(`SELECT %s FROM purchase_orders %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		poCols, where, len(args)+1, len(args)+2)
	rows, err := conn(ctx, r.pool).Query(ctx, dataSQL, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*PurchaseOrder
	for rows.Next() {
		po, err := r.scanPO(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, po)
	}
	return items, total, nil
}
